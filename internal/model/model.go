// Package model defines the core domain types for the event attendance system.
package model

import (
	"strings"
	"time"
)

// Role is assigned to an actor once, at registration.
type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleAttendee  Role = "attendee"
)

// ParseRole maps user input to a Role. The legacy "student" label is an
// alias for attendee.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleOrganizer):
		return RoleOrganizer, true
	case string(RoleAttendee), "student":
		return RoleAttendee, true
	default:
		return "", false
	}
}

// Actor is an authenticated identity.
type Actor struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Anonymous reports whether a is the zero actor used for unauthenticated reads.
func (a Actor) Anonymous() bool {
	return a.ID == ""
}

// Session is the result of a successful authentication.
type Session struct {
	Token     string    `json:"token"`
	ActorID   string    `json:"actor_id"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Actor returns the identity carried by the session.
func (s Session) Actor() Actor {
	return Actor{ID: s.ActorID, Role: s.Role}
}

const (
	DefaultCategory = "General"
	DefaultImageURL = "https://images.unsplash.com/photo-1540575467063-178a50c2df87?w=800"

	// AllCategories is the category filter value that matches every event.
	AllCategories = "All"

	MaxCapacity = 100_000
)

// Event is a capacity-bounded event owned by the organizer who created it.
type Event struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Location    string    `json:"location"`
	Capacity    int       `json:"capacity"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AttendanceStatus is an actor's RSVP state for one event.
type AttendanceStatus string

const (
	StatusConfirmed AttendanceStatus = "confirmed"
	StatusMaybe     AttendanceStatus = "maybe"
	StatusDeclined  AttendanceStatus = "declined"
)

// Valid reports whether s is one of the known statuses.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusMaybe, StatusDeclined:
		return true
	}
	return false
}

// AttendanceRecord is the single record for an (event, actor) pair.
type AttendanceRecord struct {
	EventID   string           `json:"event_id"`
	ActorID   string           `json:"actor_id"`
	Status    AttendanceStatus `json:"status"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// CapacityView is derived from the capacity and confirmed count read in the
// same snapshot. It is never stored.
type CapacityView struct {
	EventID        string `json:"event_id"`
	Capacity       int    `json:"capacity"`
	ConfirmedCount int    `json:"confirmed_count"`
	SpotsLeft      int    `json:"spots_left"`
	FillingFast    bool   `json:"filling_fast"`
	OverSubscribed bool   `json:"over_subscribed"`
}

// NewCapacityView computes the derived statistics for an event.
func NewCapacityView(eventID string, capacity, confirmed int) CapacityView {
	spotsLeft := capacity - confirmed
	return CapacityView{
		EventID:        eventID,
		Capacity:       capacity,
		ConfirmedCount: confirmed,
		SpotsLeft:      spotsLeft,
		// spotsLeft < 0.3 * capacity, kept in integers.
		FillingFast:    10*spotsLeft < 3*capacity,
		OverSubscribed: spotsLeft < 0,
	}
}

// HasRoom reports whether one more confirmation fits.
func (v CapacityView) HasRoom() bool {
	return v.ConfirmedCount < v.Capacity
}

// EventView pairs an event with its capacity statistics.
type EventView struct {
	Event    Event        `json:"event"`
	Capacity CapacityView `json:"capacity"`
}

// EventFilter holds the listing predicates.
type EventFilter struct {
	Text     string
	Category string
}

// Matches applies the filter to a single event.
func (f EventFilter) Matches(e Event) bool {
	if c := strings.TrimSpace(f.Category); c != "" && c != AllCategories && e.Category != c {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(f.Text))
	if text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Title), text) ||
		strings.Contains(strings.ToLower(e.Description), text) ||
		strings.Contains(strings.ToLower(e.Location), text)
}

// Credentials identify an actor at registration and login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// RegisterRequest is the payload for creating an actor.
type RegisterRequest struct {
	Credentials
	Role string `json:"role" validate:"required"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string `json:"time" validate:"required,datetime=15:04"`
	Location    string `json:"location" validate:"required,max=300"`
	Capacity    int    `json:"capacity" validate:"gt=0,lte=100000"`
	Category    string `json:"category" validate:"max=100"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

// UpdateEventRequest carries a partial update; nil fields are left alone.
type UpdateEventRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	Date        *string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Time        *string `json:"time,omitempty" validate:"omitempty,datetime=15:04"`
	Location    *string `json:"location,omitempty" validate:"omitempty,min=1,max=300"`
	Capacity    *int    `json:"capacity,omitempty" validate:"omitempty,gt=0,lte=100000"`
	Category    *string `json:"category,omitempty" validate:"omitempty,max=100"`
	ImageURL    *string `json:"image_url,omitempty" validate:"omitempty,url"`
}

// Apply copies the supplied fields onto e.
func (r UpdateEventRequest) Apply(e *Event) {
	if r.Title != nil {
		e.Title = strings.TrimSpace(*r.Title)
	}
	if r.Description != nil {
		e.Description = *r.Description
	}
	if r.Date != nil {
		e.Date = *r.Date
	}
	if r.Time != nil {
		e.Time = *r.Time
	}
	if r.Location != nil {
		e.Location = strings.TrimSpace(*r.Location)
	}
	if r.Capacity != nil {
		e.Capacity = *r.Capacity
	}
	if r.Category != nil {
		e.Category = strings.TrimSpace(*r.Category)
		if e.Category == "" {
			e.Category = DefaultCategory
		}
	}
	if r.ImageURL != nil {
		e.ImageURL = *r.ImageURL
		if e.ImageURL == "" {
			e.ImageURL = DefaultImageURL
		}
	}
}

// SetAttendanceRequest is the payload for an RSVP.
type SetAttendanceRequest struct {
	Status AttendanceStatus `json:"status" validate:"required,oneof=confirmed maybe declined"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error    string        `json:"error"`
	Capacity *CapacityView `json:"capacity,omitempty"`
}

// AdmissionResult summarises the outcome of a single RSVP attempt.
// Used by the concurrent admission tests.
type AdmissionResult struct {
	ActorID string
	View    CapacityView
	Error   error
}
