package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"aidflow/internal/core"
	"aidflow/internal/data/memory"
	"aidflow/internal/services"

	"github.com/shopspring/decimal"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store, err := memory.NewWithCalendars(core.CustomYearDefinition{
		ID:         "fy-apr",
		Name:       "April fiscal year",
		StartMonth: 4,
		StartDay:   1,
	})
	if err != nil {
		t.Fatalf("NewWithCalendars() error = %v", err)
	}

	usd := func(s string) decimal.Decimal {
		d, err := decimal.NewFromString(s)
		if err != nil {
			t.Fatalf("bad decimal literal %q: %v", s, err)
		}
		return d
	}
	ctx := context.Background()
	if _, err := store.AppendTransaction(ctx, core.TransactionRecord{
		ActivityID:      "XM-DAC-41114-PROJECT-1",
		TransactionType: "3",
		TransactionDate: core.NewDate(2023, 5, 10),
		USDValue:        usd("100.00"),
		Currency:        "USD",
		FlowType:        "10",
	}); err != nil {
		t.Fatalf("AppendTransaction() error = %v", err)
	}

	alloc := services.NewAllocationService(store, store)
	records := services.NewRecordService(store, nil, alloc)
	srv := NewServer(":0", alloc, records, store, store)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv, store
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doRequest(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}
}

func TestTransactionSeriesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv, http.MethodGet, "/api/series/transactions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp seriesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Kind != "transactions" || resp.CalendarID != "calendar" {
		t.Errorf("kind = %q, calendar_id = %q", resp.Kind, resp.CalendarID)
	}
	if len(resp.Series) != 1 {
		t.Fatalf("len(series) = %d, want 1", len(resp.Series))
	}
	if resp.Series[0].Year != 2023 || resp.Series[0].Total != "100.00" {
		t.Errorf("series[0] = %+v", resp.Series[0])
	}
	if len(resp.Series[0].ByGroup) != 1 || resp.Series[0].ByGroup[0].Name != "10" {
		t.Errorf("by_group = %+v", resp.Series[0].ByGroup)
	}
}

func TestSeriesEndpointCustomCalendar(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv, http.MethodGet, "/api/series/transactions?calendar=fy-apr", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp seriesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	// May 2023 falls inside fiscal 2023 for an April 1 start.
	if resp.Series[0].Label != "2023/24" {
		t.Errorf("label = %q, want 2023/24", resp.Series[0].Label)
	}
}

func TestSeriesEndpointConfiguredDefaultCalendar(t *testing.T) {
	store, err := memory.NewWithCalendars()
	if err != nil {
		t.Fatalf("NewWithCalendars() error = %v", err)
	}
	ctx := context.Background()
	if _, err := store.AppendTransaction(ctx, core.TransactionRecord{
		ActivityID:      "XM-DAC-41114-PROJECT-1",
		TransactionDate: core.NewDate(2023, 5, 10),
		USDValue:        decimal.NewFromInt(100),
		Currency:        "USD",
	}); err != nil {
		t.Fatalf("AppendTransaction() error = %v", err)
	}

	alloc, err := services.NewAllocationServiceWithDefault(store, store, 4, 1)
	if err != nil {
		t.Fatalf("NewAllocationServiceWithDefault() error = %v", err)
	}
	records := services.NewRecordService(store, nil, alloc)
	srv := NewServer(":0", alloc, records, store, store)
	t.Cleanup(func() { srv.rateLimiter.stop() })

	rr := doRequest(t, srv, http.MethodGet, "/api/series/transactions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp seriesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.CalendarID != "default" {
		t.Errorf("calendar_id = %q, want default", resp.CalendarID)
	}
	if len(resp.Series) != 1 || resp.Series[0].Label != "2023/24" {
		t.Errorf("series = %+v, want single 2023/24 point", resp.Series)
	}
}

func TestSeriesEndpointUnknownCalendar(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv, http.MethodGet, "/api/series/transactions?calendar=nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestCustomYearEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv, http.MethodGet, "/api/custom-years", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var listed []customYearResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "fy-apr" || !listed[0].Crosses {
		t.Errorf("listed = %+v", listed)
	}

	rr = doRequest(t, srv, http.MethodPost, "/api/custom-years",
		`{"id":"fy-oct","name":"October fiscal year","start_month":10,"start_day":1}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, srv, http.MethodGet, "/api/series/budgets?calendar=fy-oct", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("series with new calendar status = %d", rr.Code)
	}
}

func TestCreateCustomYearValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid month", `{"id":"bad","name":"Bad","start_month":13,"start_day":1}`},
		{"invalid day", `{"id":"bad","name":"Bad","start_month":2,"start_day":30}`},
		{"missing id", `{"name":"Bad","start_month":4,"start_day":1}`},
		{"malformed json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, srv, http.MethodPost, "/api/custom-years", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
			var body errorBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Error == "" {
				t.Errorf("expected structured error body, got %s", rr.Body.String())
			}
		})
	}
}

func TestCreateTransactionEndpoint(t *testing.T) {
	srv, store := newTestServer(t)

	rr := doRequest(t, srv, http.MethodPost, "/api/transactions",
		`{"activity_id":"XM-DAC-41114-PROJECT-2","transaction_type":"2","transaction_date":"2024-01-15","usd_value":"250.00","currency":"USD","flow_type":"10"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var created createdResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil || created.ID == "" {
		t.Fatalf("expected created id, got %s", rr.Body.String())
	}

	stored, err := store.ListTransactions(context.Background(), "XM-DAC-41114-PROJECT-2")
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored = %d, want 1", len(stored))
	}
	if stored[0].TransactionDate.String() != "2024-01-15" {
		t.Errorf("stored date = %s", stored[0].TransactionDate)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing activity", `{"usd_value":"10.00"}`, http.StatusUnprocessableEntity},
		{"no amount", `{"activity_id":"X"}`, http.StatusUnprocessableEntity},
		{"bad amount", `{"activity_id":"X","value":"abc"}`, http.StatusUnprocessableEntity},
		{"malformed json", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, srv, http.MethodPost, "/api/transactions", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestCreateBudgetReflectsInSeries(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv, http.MethodPost, "/api/budgets",
		`{"activity_id":"XM-DAC-41114-PROJECT-1","period_start":"2023-01-01","period_end":"2023-12-31","usd_value":"500.00"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, srv, http.MethodGet, "/api/series/budgets", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("series status = %d", rr.Code)
	}
	var resp seriesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Series) != 1 || resp.Series[0].Total != "500.00" {
		t.Errorf("series = %+v", resp.Series)
	}
}

func TestActivitiesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv, http.MethodGet, "/api/activities", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var ids []string
	if err := json.Unmarshal(rr.Body.Bytes(), &ids); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(ids) != 1 || ids[0] != "XM-DAC-41114-PROJECT-1" {
		t.Errorf("ids = %v", ids)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv, http.MethodGet, "/api/series/transactions", "")
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"id":"fy-x","name":"X","start_month":7,"start_day":1}`
	var last int
	for i := 0; i < 70; i++ {
		rr := doRequest(t, srv, http.MethodPost, "/api/custom-years", body)
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("status after 70 writes = %d, want 429", last)
	}
}
