// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-attendance/internal/authz"
	"github.com/Shivanand-hulikatti/event-attendance/internal/errdef"
	"github.com/Shivanand-hulikatti/event-attendance/internal/metrics"
	"github.com/Shivanand-hulikatti/event-attendance/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventRepository interface {
	Create(ctx context.Context, event model.Event) error
	Update(ctx context.Context, event model.Event) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (model.EventView, error)
	List(ctx context.Context, filter model.EventFilter) ([]model.EventView, error)
}

// AttendanceRepository is the ledger. SetStatus must check and write a
// confirmation as one step per event.
type AttendanceRepository interface {
	SetStatus(ctx context.Context, eventID, actorID string, status model.AttendanceStatus, at time.Time) (model.CapacityView, error)
	Get(ctx context.Context, eventID, actorID string) (model.AttendanceRecord, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.AttendanceRecord, error)
}

// EventService orchestrates the catalog and the attendance ledger.
type EventService struct {
	events     EventRepository
	attendance AttendanceRepository
	policy     authz.Policy
	logger     zerolog.Logger
	validator  *validator.Validate
	now        func() time.Time
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventRepository, attendance AttendanceRepository, policy authz.Policy, logger zerolog.Logger) *EventService {
	return &EventService{
		events:     events,
		attendance: attendance,
		policy:     policy,
		logger:     logger.With().Str("component", "events").Logger(),
		validator:  newValidator(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateEvent makes actor the owner of a new event.
func (s *EventService) CreateEvent(ctx context.Context, actor model.Actor, req model.CreateEventRequest) (model.EventView, error) {
	if err := s.policy.Authorize(actor, authz.ActionCreateEvent, nil); err != nil {
		return model.EventView{}, err
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Location = strings.TrimSpace(req.Location)
	req.Category = strings.TrimSpace(req.Category)
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	if err := validationError(s.validator.Struct(req)); err != nil {
		return model.EventView{}, err
	}

	now := s.now()
	event := model.Event{
		ID:          uuid.NewString(),
		OwnerID:     actor.ID,
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Time:        req.Time,
		Location:    req.Location,
		Capacity:    req.Capacity,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if event.Category == "" {
		event.Category = model.DefaultCategory
	}
	if event.ImageURL == "" {
		event.ImageURL = model.DefaultImageURL
	}

	if err := s.events.Create(ctx, event); err != nil {
		return model.EventView{}, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info().
		Str("event_id", event.ID).
		Str("owner_id", actor.ID).
		Int("capacity", event.Capacity).
		Msg("event created")

	return model.EventView{Event: event, Capacity: model.NewCapacityView(event.ID, event.Capacity, 0)}, nil
}

// UpdateEvent applies a partial update. Only the owner may change an event.
// Lowering capacity below the confirmed population evicts nobody.
func (s *EventService) UpdateEvent(ctx context.Context, actor model.Actor, id string, req model.UpdateEventRequest) (model.EventView, error) {
	current, err := s.GetEvent(ctx, id)
	if err != nil {
		return model.EventView{}, err
	}
	if err := s.policy.Authorize(actor, authz.ActionUpdateEvent, &current.Event); err != nil {
		return model.EventView{}, err
	}

	trimPtr(req.Title)
	trimPtr(req.Location)
	trimPtr(req.Category)
	if req.ImageURL != nil && strings.TrimSpace(*req.ImageURL) == "" {
		def := model.DefaultImageURL
		req.ImageURL = &def
	}
	if err := validationError(s.validator.Struct(req)); err != nil {
		return model.EventView{}, err
	}

	updated := current.Event
	req.Apply(&updated)
	updated.UpdatedAt = s.now()

	if err := s.events.Update(ctx, updated); err != nil {
		return model.EventView{}, fmt.Errorf("update event: %w", err)
	}

	view, err := s.GetEvent(ctx, id)
	if err != nil {
		return model.EventView{}, err
	}
	if view.Capacity.OverSubscribed {
		s.logger.Warn().
			Str("event_id", id).
			Int("capacity", view.Capacity.Capacity).
			Int("confirmed", view.Capacity.ConfirmedCount).
			Msg("capacity lowered below confirmed attendance")
	}
	return view, nil
}

// DeleteEvent removes an event together with its attendance records.
func (s *EventService) DeleteEvent(ctx context.Context, actor model.Actor, id string) error {
	current, err := s.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(actor, authz.ActionDeleteEvent, &current.Event); err != nil {
		return err
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	s.logger.Info().Str("event_id", id).Str("owner_id", actor.ID).Msg("event deleted")
	return nil
}

// ListEvents returns the events matching filter, earliest date first.
func (s *EventService) ListEvents(ctx context.Context, filter model.EventFilter) ([]model.EventView, error) {
	views, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return views, nil
}

// GetEvent returns a single event with its capacity view.
func (s *EventService) GetEvent(ctx context.Context, id string) (model.EventView, error) {
	if strings.TrimSpace(id) == "" {
		return model.EventView{}, errdef.NewValidation("event id is required")
	}
	view, err := s.events.Get(ctx, id)
	if err != nil {
		if errdef.IsNotFound(err) {
			return model.EventView{}, err
		}
		return model.EventView{}, fmt.Errorf("get event: %w", err)
	}
	return view, nil
}

// SetAttendance records actor's RSVP. A confirmation is admitted only while
// the event has room; otherwise the error carries the capacity view and the
// actor keeps their previous status.
func (s *EventService) SetAttendance(ctx context.Context, actor model.Actor, eventID string, req model.SetAttendanceRequest) (model.CapacityView, error) {
	current, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return model.CapacityView{}, err
	}
	if err := s.policy.Authorize(actor, authz.ActionSetAttendance, &current.Event); err != nil {
		return model.CapacityView{}, err
	}
	if err := validationError(s.validator.Struct(req)); err != nil {
		return model.CapacityView{}, err
	}

	var unchanged bool
	if prev, err := s.attendance.Get(ctx, eventID, actor.ID); err == nil {
		unchanged = prev.Status == req.Status
	}

	start := time.Now()
	view, err := s.attendance.SetStatus(ctx, eventID, actor.ID, req.Status, s.now())
	metrics.AdmissionDuration.Observe(time.Since(start).Seconds())

	log := s.logger.With().
		Str("event_id", eventID).
		Str("actor_id", actor.ID).
		Str("status", string(req.Status)).
		Logger()

	if err != nil {
		switch {
		case errdef.IsCapacityExceeded(err):
			metrics.AdmissionsTotal.WithLabelValues(metrics.OutcomeFull).Inc()
			log.Debug().Msg("admission rejected, event full")
			return model.CapacityView{}, err
		case errdef.IsUnavailable(err):
			metrics.AdmissionsTotal.WithLabelValues(metrics.OutcomeUnavailable).Inc()
			log.Warn().Err(err).Msg("admission timed out")
			return model.CapacityView{}, err
		case errdef.IsNotFound(err):
			return model.CapacityView{}, err
		}
		if req.Status == model.StatusConfirmed {
			metrics.AdmissionsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		}
		return model.CapacityView{}, fmt.Errorf("set attendance: %w", err)
	}

	if unchanged {
		if req.Status == model.StatusConfirmed {
			metrics.AdmissionsTotal.WithLabelValues(metrics.OutcomeUnchanged).Inc()
		}
		return view, nil
	}
	if req.Status == model.StatusConfirmed {
		metrics.AdmissionsTotal.WithLabelValues(metrics.OutcomeAdmitted).Inc()
	}
	metrics.AttendanceTransitionsTotal.WithLabelValues(string(req.Status)).Inc()
	log.Debug().Int("confirmed", view.ConfirmedCount).Int("spots_left", view.SpotsLeft).Msg("attendance updated")
	return view, nil
}

// GetAttendance returns actor's own record for the event.
func (s *EventService) GetAttendance(ctx context.Context, actor model.Actor, eventID string) (model.AttendanceRecord, error) {
	current, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	if err := s.policy.Authorize(actor, authz.ActionViewOwnAttendance, &current.Event); err != nil {
		return model.AttendanceRecord{}, err
	}
	rec, err := s.attendance.Get(ctx, eventID, actor.ID)
	if err != nil {
		if errdef.IsNotFound(err) {
			return model.AttendanceRecord{}, err
		}
		return model.AttendanceRecord{}, fmt.Errorf("get attendance: %w", err)
	}
	return rec, nil
}

// ListAttendees exposes attendee identities to the event owner only.
func (s *EventService) ListAttendees(ctx context.Context, actor model.Actor, eventID string) ([]model.AttendanceRecord, error) {
	current, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(actor, authz.ActionViewAttendees, &current.Event); err != nil {
		return nil, err
	}
	recs, err := s.attendance.ListByEvent(ctx, eventID)
	if err != nil {
		if errdef.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	return recs, nil
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
