package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"aidflow/internal/core"
	applog "aidflow/internal/log"
	"aidflow/internal/services"
)

// seriesPoint is the wire shape of one year in an allocation series.
type seriesPoint struct {
	Year    int          `json:"year"`
	Label   string       `json:"label"`
	Total   string       `json:"total"`
	ByGroup []groupPoint `json:"by_group,omitempty"`
}

type groupPoint struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

type seriesResponse struct {
	Kind       string        `json:"kind"`
	CalendarID string        `json:"calendar_id"`
	ActivityID string        `json:"activity_id,omitempty"`
	Series     []seriesPoint `json:"series"`
}

type customYearResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	StartMonth int    `json:"start_month"`
	StartDay   int    `json:"start_day"`
	Crosses    bool   `json:"crosses_calendar_year"`
}

type createdResponse struct {
	ID string `json:"id"`
}

// handleHealth performs a basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).String(),
	})
}

// handleReady performs a readiness check with dependency verification.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if _, err := s.calendars.ListCustomYears(ctx); err != nil {
		checks["calendar_store"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["calendar_store"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleSeries serves /api/series/{kind}?calendar=&activity=. An absent
// calendar parameter selects the configured default calendar.
func (s *Server) handleSeries(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calendarID := sanitizeInput(r.URL.Query().Get("calendar"))
		activityID := sanitizeInput(r.URL.Query().Get("activity"))

		overviews, err := s.alloc.Series(r.Context(), kind, calendarID, activityID)
		if err != nil {
			switch {
			case errors.Is(err, core.ErrInvalidStartMonth) || errors.Is(err, core.ErrInvalidStartDay):
				writeError(w, http.StatusBadRequest, err.Error())
			case errors.Is(err, services.ErrUnknownCalendar):
				writeError(w, http.StatusNotFound, "unknown calendar: "+calendarID)
			default:
				s.logger.LogError(r.Context(), "Series computation failed", err,
					applog.ComponentAllocation, applog.OpRead,
					applog.NewFields().WithCalendar(calendarID))
				writeError(w, http.StatusInternalServerError, "failed to compute series")
			}
			return
		}

		resp := seriesResponse{
			Kind:       kind,
			CalendarID: calendarID,
			ActivityID: activityID,
			Series:     make([]seriesPoint, 0, len(overviews)),
		}
		if resp.CalendarID == "" {
			resp.CalendarID = s.alloc.DefaultCalendarID()
		}
		for _, ov := range overviews {
			point := seriesPoint{
				Year:  ov.Year,
				Label: ov.Label,
				Total: ov.Total.StringFixed(2),
			}
			for _, g := range ov.ByGroup {
				point.ByGroup = append(point.ByGroup, groupPoint{Name: g.Name, Amount: g.Amount.StringFixed(2)})
			}
			resp.Series = append(resp.Series, point)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleListCustomYears(w http.ResponseWriter, r *http.Request) {
	defs, err := s.calendars.ListCustomYears(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List custom years failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list custom years")
		return
	}

	out := make([]customYearResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, customYearResponse{
			ID:         def.ID,
			Name:       def.Name,
			StartMonth: def.StartMonth,
			StartDay:   def.StartDay,
			Crosses:    def.CrossesCalendarYear(),
		})
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCustomYear(w http.ResponseWriter, r *http.Request) {
	var req CustomYearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	def := req.ToDefinition()
	if def.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	// Definitions are rejected here, never silently patched: a bad
	// calendar would skew every allocation computed against it.
	if err := def.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.calendars.SaveCustomYear(r.Context(), def); err != nil {
		slog.ErrorContext(r.Context(), "Save custom year failed",
			"calendar_id", def.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save custom year")
		return
	}

	// Series computed under an older definition of this calendar are stale.
	s.alloc.InvalidateAll()

	slog.InfoContext(r.Context(), "Custom year saved",
		"calendar_id", def.ID,
		"start_month", def.StartMonth,
		"start_day", def.StartDay)

	writeJSON(w, http.StatusCreated, customYearResponse{
		ID:         def.ID,
		Name:       def.Name,
		StartMonth: def.StartMonth,
		StartDay:   def.StartDay,
		Crosses:    def.CrossesCalendarYear(),
	})
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	ids, err := s.activities.ListActivityIDs(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List activities failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list activities")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	record, err := req.ToRecord()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id, err := s.records.CreateTransaction(r.Context(), record)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create transaction failed",
			"activity_id", record.ActivityID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save transaction")
		return
	}

	s.logger.LogRecordStored(r.Context(), services.KindTransactions, id, record.ActivityID)
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req BudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	record, err := req.ToRecord()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id, err := s.records.CreateBudget(r.Context(), record)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create budget failed",
			"activity_id", record.ActivityID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save budget")
		return
	}

	s.logger.LogRecordStored(r.Context(), services.KindBudgets, id, record.ActivityID)
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (s *Server) handleCreatePlannedDisbursement(w http.ResponseWriter, r *http.Request) {
	var req PlannedDisbursementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	record, err := req.ToRecord()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id, err := s.records.CreatePlannedDisbursement(r.Context(), record)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create planned disbursement failed",
			"activity_id", record.ActivityID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save planned disbursement")
		return
	}

	s.logger.LogRecordStored(r.Context(), services.KindPlannedDisbursements, id, record.ActivityID)
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}
