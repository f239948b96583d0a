// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Shivanand-hulikatti/event-attendance/internal/errdef"
	"github.com/Shivanand-hulikatti/event-attendance/internal/model"
	"github.com/Shivanand-hulikatti/event-attendance/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// retryAfterSeconds is sent with 503 responses when an event's admission
// step is saturated.
const retryAfterSeconds = "1"

// EventHandler holds all HTTP handlers for the attendance API.
type EventHandler struct {
	events   *service.EventService
	identity *service.IdentityService
	logger   zerolog.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(events *service.EventService, identity *service.IdentityService, logger zerolog.Logger) *EventHandler {
	return &EventHandler{
		events:   events,
		identity: identity,
		logger:   logger.With().Str("component", "http").Logger(),
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// fail maps a service error onto its HTTP status.
func (h *EventHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errdef.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errdef.IsAuth(err):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errdef.IsUnauthorized(err):
		writeError(w, http.StatusForbidden, err.Error())
	case errdef.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errdef.IsDuplicateIdentity(err):
		writeError(w, http.StatusConflict, err.Error())
	case errdef.IsCapacityExceeded(err):
		resp := model.ErrorResponse{Error: "event is full"}
		if view, ok := errdef.CapacitySnapshot(err); ok {
			resp.Capacity = &view
		}
		writeJSON(w, http.StatusConflict, resp)
	case errdef.IsUnavailable(err):
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeError(w, http.StatusServiceUnavailable, "event is busy, retry shortly")
	default:
		h.logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// ─── Identity ─────────────────────────────────────────────────────────────────

// Register handles POST /auth/register
func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	actor, err := h.identity.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, actor)
}

// Login handles POST /auth/login
func (h *EventHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	session, err := h.identity.Authenticate(r.Context(), creds)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// ─── Catalog ──────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	view, err := h.events.CreateEvent(r.Context(), ActorFrom(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// ListEvents handles GET /events?q=&category=
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter := model.EventFilter{
		Text:     strings.TrimSpace(r.URL.Query().Get("q")),
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
	}

	views, err := h.events.ListEvents(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if views == nil {
		views = []model.EventView{}
	}
	writeJSON(w, http.StatusOK, views)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	view, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateEvent handles PATCH /events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	view, err := h.events.UpdateEvent(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteEvent handles DELETE /events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.events.DeleteEvent(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Attendance ───────────────────────────────────────────────────────────────

// SetAttendance handles PUT /events/{id}/attendance
// The body is {"status": "confirmed" | "maybe" | "declined"}.
func (h *EventHandler) SetAttendance(w http.ResponseWriter, r *http.Request) {
	var req model.SetAttendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	view, err := h.events.SetAttendance(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetAttendance handles GET /events/{id}/attendance
func (h *EventHandler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	rec, err := h.events.GetAttendance(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListAttendees handles GET /events/{id}/attendees
func (h *EventHandler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	recs, err := h.events.ListAttendees(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if recs == nil {
		recs = []model.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
