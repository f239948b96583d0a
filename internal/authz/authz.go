// Package authz gates catalog and ledger operations by role and ownership.
package authz

import (
	"github.com/Shivanand-hulikatti/event-attendance/internal/errdef"
	"github.com/Shivanand-hulikatti/event-attendance/internal/model"
)

type Action string

const (
	ActionCreateEvent       Action = "event.create"
	ActionUpdateEvent       Action = "event.update"
	ActionDeleteEvent       Action = "event.delete"
	ActionViewEvent         Action = "event.view"
	ActionSetAttendance     Action = "attendance.set"
	ActionViewOwnAttendance Action = "attendance.view_own"
	ActionViewAttendees     Action = "attendance.view_attendees"
)

// Policy is the static action/role matrix. AllowOwnerRSVP decides whether an
// organizer may RSVP to an event they own.
type Policy struct {
	AllowOwnerRSVP bool
}

// Authorize returns an Unauthorized error when actor may not perform action.
// event is the target event for event-scoped actions and may be nil for
// ActionCreateEvent. The zero Actor is anonymous and may only view.
func (p Policy) Authorize(actor model.Actor, action Action, event *model.Event) error {
	if action == ActionViewEvent {
		return nil
	}
	if actor.Anonymous() {
		return errdef.NewUnauthorized("%s requires an authenticated actor", action)
	}

	owner := event != nil && event.OwnerID == actor.ID
	organizer := actor.Role == model.RoleOrganizer

	var allowed bool
	switch action {
	case ActionCreateEvent:
		allowed = organizer
	case ActionUpdateEvent, ActionDeleteEvent, ActionViewAttendees:
		allowed = organizer && owner
	case ActionSetAttendance:
		switch actor.Role {
		case model.RoleAttendee:
			allowed = true
		case model.RoleOrganizer:
			allowed = !owner || p.AllowOwnerRSVP
		}
	case ActionViewOwnAttendance:
		// Only the caller's own record is ever returned.
		allowed = actor.Role == model.RoleAttendee || organizer
	}
	if !allowed {
		return errdef.NewUnauthorized("actor %s (%s) may not perform %s", actor.ID, actor.Role, action)
	}
	return nil
}
