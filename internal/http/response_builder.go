// Package http serves the calculator page, its HTMX partials and the JSON
// chart API.
package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Client-side events carried in HX-Trigger headers.
const (
	EventEntryAdded    = "entry:added"
	EventFormReset     = "form:reset"
	EventChartsUpdated = "charts:updated"
	EventNotification  = "show-notification"
)

// NotificationType selects the style of a toast.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

type entryAdded struct {
	Category string `json:"category"`
	Entries  int    `json:"entries"`
}

type notification struct {
	Type     NotificationType `json:"type"`
	Message  string           `json:"message"`
	Duration int              `json:"duration"`
}

// HTMXResponse collects status, events and an HTML body before writing.
// Events in triggers fire on receipt; settled fires once the swap settled.
type HTMXResponse struct {
	status   int
	triggers map[string]any
	settled  map[string]any
	html     string
}

func NewHTMXResponse() *HTMXResponse {
	return &HTMXResponse{status: http.StatusOK}
}

func (r *HTMXResponse) Status(code int) *HTMXResponse {
	r.status = code
	return r
}

// Trigger adds an event to HX-Trigger. payload may be nil.
func (r *HTMXResponse) Trigger(event string, payload any) *HTMXResponse {
	if r.triggers == nil {
		r.triggers = make(map[string]any)
	}
	r.triggers[event] = payload
	return r
}

// TriggerAfterSettle adds an event to HX-Trigger-After-Settle.
func (r *HTMXResponse) TriggerAfterSettle(event string, payload any) *HTMXResponse {
	if r.settled == nil {
		r.settled = make(map[string]any)
	}
	r.settled[event] = payload
	return r
}

// EntryAdded announces the appended entry and the new session size.
func (r *HTMXResponse) EntryAdded(category string, entries int) *HTMXResponse {
	return r.Trigger(EventEntryAdded, entryAdded{Category: category, Entries: entries})
}

func (r *HTMXResponse) FormReset() *HTMXResponse {
	return r.Trigger(EventFormReset, nil)
}

// ChartsUpdated asks the page to redraw once the new chart data is in place.
func (r *HTMXResponse) ChartsUpdated() *HTMXResponse {
	return r.TriggerAfterSettle(EventChartsUpdated, nil)
}

// Notify shows a toast. Errors stay up longer.
func (r *HTMXResponse) Notify(kind NotificationType, message string) *HTMXResponse {
	duration := 3000
	if kind == NotificationError {
		duration = 5000
	}
	return r.Trigger(EventNotification, notification{Type: kind, Message: message, Duration: duration})
}

func (r *HTMXResponse) HTML(body string) *HTMXResponse {
	r.html = body
	return r
}

// Write sends headers, status and body. Events that fail to encode are
// dropped.
func (r *HTMXResponse) Write(w http.ResponseWriter) {
	setEvents(w, "HX-Trigger", r.triggers)
	setEvents(w, "HX-Trigger-After-Settle", r.settled)
	if r.html != "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.WriteHeader(r.status)
	if r.html != "" {
		_, _ = w.Write([]byte(r.html))
	}
}

func setEvents(w http.ResponseWriter, header string, events map[string]any) {
	if len(events) == 0 {
		return
	}
	if encoded, err := json.Marshal(events); err == nil {
		w.Header().Set(header, string(encoded))
	}
}

// ErrorFragment renders an escaped error message for an HTMX target.
func ErrorFragment(status int, message string) *HTMXResponse {
	return NewHTMXResponse().
		Status(status).
		HTML(`<div class="error" role="alert">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponse {
	return ErrorFragment(http.StatusBadRequest, message)
}

func InternalServerError(message string) *HTMXResponse {
	return ErrorFragment(http.StatusInternalServerError, message).Notify(NotificationError, message)
}
