package memory

import (
	"context"
	"sort"

	"github.com/Shivanand-hulikatti/event-attendance/internal/errdef"
	"github.com/Shivanand-hulikatti/event-attendance/internal/model"
	"golang.org/x/sync/semaphore"
)

// EventRepository is the catalog half of the store.
type EventRepository struct {
	s *Store
}

func (r *EventRepository) Create(_ context.Context, event model.Event) error {
	if !r.s.actorExists(event.OwnerID) {
		return errdef.NewNotFound("owner %s not found", event.OwnerID)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.events[event.ID]; ok {
		return errdef.NewValidation("event %s already exists", event.ID)
	}
	r.s.events[event.ID] = &eventEntry{
		writer:  semaphore.NewWeighted(1),
		event:   event,
		records: make(map[string]model.AttendanceRecord),
	}
	return nil
}

// Update replaces the mutable fields of an event. Lowering the capacity
// below the confirmed population is allowed and evicts no one.
func (r *EventRepository) Update(ctx context.Context, event model.Event) error {
	e, err := r.s.acquire(ctx, event.ID)
	if err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	defer e.mu.Unlock()
	event.OwnerID = e.event.OwnerID
	event.CreatedAt = e.event.CreatedAt
	e.event = event
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	e, err := r.s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer e.release()

	r.s.mu.Lock()
	delete(r.s.events, id)
	r.s.mu.Unlock()

	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return nil
}

func (r *EventRepository) Get(_ context.Context, id string) (model.EventView, error) {
	e, err := r.s.entry(id)
	if err != nil {
		return model.EventView{}, err
	}
	v, ok := e.snapshot()
	if !ok {
		return model.EventView{}, errdef.NewNotFound("event %s not found", id)
	}
	return v, nil
}

// List returns the events matching filter ordered by date, then id.
func (r *EventRepository) List(_ context.Context, filter model.EventFilter) ([]model.EventView, error) {
	r.s.mu.RLock()
	entries := make([]*eventEntry, 0, len(r.s.events))
	for _, e := range r.s.events {
		entries = append(entries, e)
	}
	r.s.mu.RUnlock()

	views := make([]model.EventView, 0, len(entries))
	for _, e := range entries {
		v, ok := e.snapshot()
		if !ok || !filter.Matches(v.Event) {
			continue
		}
		views = append(views, v)
	}

	sort.Slice(views, func(i, j int) bool {
		a, b := views[i].Event, views[j].Event
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.ID < b.ID
	})
	return views, nil
}
