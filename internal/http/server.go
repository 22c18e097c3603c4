package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"aidflow/internal/data"
	applog "aidflow/internal/log"
	"aidflow/internal/services"
)

// Server exposes the JSON API: per-year allocation series, custom year
// management, and record writes.
type Server struct {
	http.Server

	alloc      *services.AllocationService
	records    *services.RecordService
	calendars  data.CalendarStore
	activities data.ActivityLister

	rateLimiter *rateLimiter
	secMetrics  *securityMetrics
	logger      *applog.StructuredLogger

	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, alloc *services.AllocationService, records *services.RecordService, calendars data.CalendarStore, activities data.ActivityLister) *Server {
	mux := http.NewServeMux()

	httpLogger := applog.Default().WithComponent(applog.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           applog.Middleware(httpLogger)(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
		alloc:       alloc,
		records:     records,
		calendars:   calendars,
		activities:  activities,
		rateLimiter: newRateLimiter(),
		secMetrics:  &securityMetrics{},
		logger:      applog.NewStructuredLogger(httpLogger),
		startedAt:   time.Now(),
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("GET /api/series/transactions", s.withSecurity(s.handleSeries(services.KindTransactions)))
	mux.HandleFunc("GET /api/series/budgets", s.withSecurity(s.handleSeries(services.KindBudgets)))
	mux.HandleFunc("GET /api/series/planned-disbursements", s.withSecurity(s.handleSeries(services.KindPlannedDisbursements)))

	mux.HandleFunc("GET /api/custom-years", s.withSecurity(s.handleListCustomYears))
	mux.HandleFunc("POST /api/custom-years", s.withSecurity(s.handleCreateCustomYear))

	mux.HandleFunc("GET /api/activities", s.withSecurity(s.handleListActivities))

	mux.HandleFunc("POST /api/transactions", s.withSecurity(s.handleCreateTransaction))
	mux.HandleFunc("POST /api/budgets", s.withSecurity(s.handleCreateBudget))
	mux.HandleFunc("POST /api/planned-disbursements", s.withSecurity(s.handleCreatePlannedDisbursement))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurity adds security headers, rate limiting, and request logging.
func (s *Server) withSecurity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		if detectSuspiciousRequest(r, s.secMetrics) {
			slog.WarnContext(ctx, "Suspicious request detected",
				"request_id", requestID,
				"client_ip", clientIP,
				"method", r.Method,
				"url", r.URL.Path)
		}

		// Writes are rate limited per client IP; series reads are cheap
		// once memoized.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.secMetrics) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.logger.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
