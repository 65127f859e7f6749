// Package api serves the read-only inspection API: live tracker status and
// the goal records persisted by the current run.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/motion.report/internal/dispatch"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/records"
	"github.com/banshee-data/motion.report/internal/serialmux"
	"github.com/banshee-data/motion.report/internal/units"
)

// ANSI escape codes for request logging
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// SnapshotSource publishes the dispatch loop's state.
type SnapshotSource interface {
	Snapshot() dispatch.Snapshot
}

// StatsSource reports emitter write counters.
type StatsSource interface {
	Stats() records.Stats
}

type Server struct {
	loop    SnapshotSource
	store   *records.Store
	emitter StatsSource
	m       serialmux.SerialMuxInterface
	units   string
}

// NewServer creates the API server. emitter and m may be nil. Distances in
// status and list responses are reported in displayUnits unless a request
// overrides them with ?units=; invalid values fall back to metres.
func NewServer(loop SnapshotSource, store *records.Store, emitter StatsSource, m serialmux.SerialMuxInterface, displayUnits string) *Server {
	if !units.IsValid(displayUnits) {
		displayUnits = units.Metres
	}
	return &Server{
		loop:    loop,
		store:   store,
		emitter: emitter,
		m:       m,
		units:   displayUnits,
	}
}

// requestUnits returns the distance units for r.
func (s *Server) requestUnits(r *http.Request) (string, error) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.units, nil
	}
	if !units.IsValid(u) {
		return "", fmt.Errorf("invalid units %q: expected one of %s", u, units.GetValidUnitsString())
	}
	return u, nil
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns a mux with the API routes and, when a serial mux is
// attached, its /debug/ routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/goals", s.listGoals)
	mux.HandleFunc("/api/goals/", s.handleGoalByIndex)
	if s.m != nil {
		s.m.AttachAdminRoutes(mux)
	}
	return mux
}
