package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"energycalc/internal/chart"
	"energycalc/internal/core"
	"energycalc/internal/log"
)

const backendTimeout = 5 * time.Second

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
	defer cancel()
	logger := log.FromContext(ctx)

	sid := s.startSession(ctx, w, r)
	snap, err := s.svc.Snapshot(ctx, sid)
	if err != nil {
		logger.ErrorContext(ctx, "Snapshot failed", log.FieldSessionID, sid, log.FieldError, err)
		InternalServerError("Could not load the calculator").Write(w)
		return
	}

	body, err := s.renderTemplates(s.pageData(snap), "index.html")
	if err != nil {
		logger.ErrorContext(ctx, "Index template execution failed", log.FieldError, err)
		InternalServerError("Could not render the page").Write(w)
		return
	}
	NewHTMXResponse().HTML(body).Write(w)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
	defer cancel()
	logger := log.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		logger.WarnContext(ctx, "Parse form error", log.FieldError, err)
		BadRequestError("Invalid request").Write(w)
		return
	}

	sid := s.currentSession(w, r)
	snap, e, err := s.svc.Submit(ctx, sid, postedFields(r))
	if err != nil {
		logger.ErrorContext(ctx, "Entry submit failed", log.FieldSessionID, sid, log.FieldError, err)
		InternalServerError("Could not save the device").Write(w)
		return
	}
	s.appMetrics.entriesTotal.Add(1)

	data := s.pageData(snap)
	data.OOB = true
	body, err := s.renderTemplates(data, "entry_form", "charts")
	if err != nil {
		logger.ErrorContext(ctx, "Partial template execution failed", log.FieldError, err)
		InternalServerError("Could not render the charts").Write(w)
		return
	}

	NewHTMXResponse().
		EntryAdded(e.Category, len(snap.Entries)).
		FormReset().
		Notify(NotificationSuccess, "Device added").
		ChartsUpdated().
		HTML(body).
		Write(w)
}

// handleDraft stores draft edits. It accepts either field/value pairs or
// the form field names themselves.
func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
	defer cancel()
	logger := log.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request").Write(w)
		return
	}

	updates := postedFields(r)
	if field := sanitizeInput(r.PostForm.Get("field")); field != "" {
		updates = map[string]string{field: sanitizeInput(r.PostForm.Get("value"))}
	}

	sid := s.currentSession(w, r)
	for _, field := range draftFieldOrder {
		raw, ok := updates[field]
		if !ok {
			continue
		}
		if _, err := s.svc.UpdateDraft(ctx, sid, field, raw); err != nil {
			logger.ErrorContext(ctx, "Draft update failed", log.FieldSessionID, sid, log.FieldError, err)
			InternalServerError("Could not save the form").Write(w)
			return
		}
		s.appMetrics.draftUpdates.Add(1)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChartsPartial(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
	defer cancel()

	sid := s.currentSession(w, r)
	snap, err := s.svc.Snapshot(ctx, sid)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Snapshot failed", log.FieldSessionID, sid, log.FieldError, err)
		InternalServerError("Could not load the charts").Write(w)
		return
	}
	body, err := s.renderTemplates(s.pageData(snap), "charts")
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Charts template execution failed", log.FieldError, err)
		InternalServerError("Could not render the charts").Write(w)
		return
	}
	NewHTMXResponse().ChartsUpdated().HTML(body).Write(w)
}

// chartsResponse is the body of GET /api/charts.
type chartsResponse struct {
	chart.Set
	Totals    core.Totals `json:"totals"`
	EnergyKWh float64     `json:"energyKwh"`
	Cost      float64     `json:"cost"`
	Entries   int         `json:"entries"`
}

func (s *Server) handleChartsAPI(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
	defer cancel()

	sid := s.currentSession(w, r)
	snap, err := s.svc.Snapshot(ctx, sid)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Snapshot failed", log.FieldSessionID, sid, log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load charts"})
		return
	}
	energy, cost := snap.Totals.Sum()
	writeJSON(w, http.StatusOK, chartsResponse{
		Set:       snap.Charts,
		Totals:    snap.Totals,
		EnergyKWh: energy,
		Cost:      cost,
		Entries:   len(snap.Entries),
	})
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady checks templates and the session backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.svc.Ping(ctx); err != nil {
		checks["session_backend"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["session_backend"] = "ok"
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.traceMiddleware.GetMetrics()
	limits := s.rateLimiter.GetMetrics()

	var b bytes.Buffer
	counter := func(name, help string, value int64) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, value)
	}
	gauge := func(name, help string, value int64) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, value)
	}

	counter("http_requests_total", "Total number of HTTP requests", tm.TotalRequests)
	counter("http_server_errors_total", "Responses with a 5xx status", tm.ServerErrors)
	gauge("http_response_time_avg_microseconds", "Average response time", tm.AverageResponseTime)
	counter("entries_submitted_total", "Entries appended to sessions", s.appMetrics.entriesTotal.Load())
	counter("draft_updates_total", "Draft field edits stored", s.appMetrics.draftUpdates.Load())
	counter("sessions_started_total", "Sessions started", s.appMetrics.sessionsStarted.Load())
	counter("rate_limit_hits_total", "Requests rejected by the rate limiter", limits.TotalHits)
	gauge("rate_limit_active_clients", "Clients tracked by the rate limiter", limits.ClientCount)
	counter("suspicious_requests_total", "Requests matching scanner patterns", s.detector.SuspiciousRequests())
	gauge("uptime_seconds", "Process uptime", int64(time.Since(s.appMetrics.uptime).Seconds()))

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
