// Package memory is a process-local implementation of the event, attendance
// and actor repositories.
//
// Every event owns an entry holding the event record, its attendance records
// and the confirmed counter. Writers to an entry are serialised by a
// per-event semaphore so that admission (read count, compare with capacity,
// write record) is one step; the counter only ever changes together with the
// record that caused it. Readers take the entry's RWMutex and never queue
// behind waiting writers. Different events never contend.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-attendance/internal/errdef"
	"github.com/Shivanand-hulikatti/event-attendance/internal/model"
	"golang.org/x/sync/semaphore"
)

// DefaultLockTimeout bounds the wait for an event's write step.
const DefaultLockTimeout = 2 * time.Second

type Store struct {
	mu      sync.RWMutex
	events  map[string]*eventEntry
	actors  map[string]actorEntry
	byEmail map[string]string

	lockTimeout time.Duration
}

type eventEntry struct {
	writer *semaphore.Weighted

	mu        sync.RWMutex
	event     model.Event
	records   map[string]model.AttendanceRecord
	confirmed int
	deleted   bool
}

type actorEntry struct {
	actor        model.Actor
	passwordHash string
}

func NewStore(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{
		events:      make(map[string]*eventEntry),
		actors:      make(map[string]actorEntry),
		byEmail:     make(map[string]string),
		lockTimeout: lockTimeout,
	}
}

func (s *Store) Events() *EventRepository {
	return &EventRepository{s: s}
}

func (s *Store) Attendance() *AttendanceRepository {
	return &AttendanceRepository{s: s}
}

func (s *Store) Actors() *ActorRepository {
	return &ActorRepository{s: s}
}

func (s *Store) entry(eventID string) (*eventEntry, error) {
	s.mu.RLock()
	e, ok := s.events[eventID]
	s.mu.RUnlock()
	if !ok {
		return nil, errdef.NewNotFound("event %s not found", eventID)
	}
	return e, nil
}

// acquire takes the write step of an event, waiting at most lockTimeout.
// The caller must call release on the returned entry.
func (s *Store) acquire(ctx context.Context, eventID string) (*eventEntry, error) {
	e, err := s.entry(eventID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	if err := e.writer.Acquire(ctx, 1); err != nil {
		return nil, errdef.NewUnavailable("event %s is busy: %w", eventID, err)
	}
	if e.deleted {
		e.writer.Release(1)
		return nil, errdef.NewNotFound("event %s not found", eventID)
	}
	return e, nil
}

func (e *eventEntry) release() {
	e.writer.Release(1)
}

// view must be called with e.mu held.
func (e *eventEntry) view() model.CapacityView {
	return model.NewCapacityView(e.event.ID, e.event.Capacity, e.confirmed)
}

func (e *eventEntry) snapshot() (model.EventView, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.deleted {
		return model.EventView{}, false
	}
	return model.EventView{Event: e.event, Capacity: e.view()}, true
}

func (s *Store) actorExists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.actors[id]
	return ok
}
