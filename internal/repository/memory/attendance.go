package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Shivanand-hulikatti/event-attendance/internal/errdef"
	"github.com/Shivanand-hulikatti/event-attendance/internal/model"
)

// AttendanceRepository is the ledger half of the store.
type AttendanceRepository struct {
	s *Store
}

// SetStatus upserts the (event, actor) record. A transition into confirmed
// is admitted only if the confirmed count, read in the same step, is below
// capacity; otherwise nothing is written and CapacityExceeded carries the
// snapshot. Requesting the current status is a no-op.
func (r *AttendanceRepository) SetStatus(ctx context.Context, eventID, actorID string, status model.AttendanceStatus, at time.Time) (model.CapacityView, error) {
	if !r.s.actorExists(actorID) {
		return model.CapacityView{}, errdef.NewNotFound("actor %s not found", actorID)
	}

	e, err := r.s.acquire(ctx, eventID)
	if err != nil {
		return model.CapacityView{}, err
	}
	defer e.release()

	e.mu.Lock()
	defer e.mu.Unlock()

	prev, had := e.records[actorID]
	if had && prev.Status == status {
		return e.view(), nil
	}

	if status == model.StatusConfirmed {
		if view := e.view(); !view.HasRoom() {
			return model.CapacityView{}, errdef.NewCapacityExceeded(view, "event %s is full (%d/%d confirmed)", eventID, view.ConfirmedCount, view.Capacity)
		}
		e.confirmed++
	}
	if had && prev.Status == model.StatusConfirmed {
		e.confirmed--
	}

	e.records[actorID] = model.AttendanceRecord{
		EventID:   eventID,
		ActorID:   actorID,
		Status:    status,
		UpdatedAt: at,
	}
	return e.view(), nil
}

func (r *AttendanceRepository) Get(_ context.Context, eventID, actorID string) (model.AttendanceRecord, error) {
	e, err := r.s.entry(eventID)
	if err != nil {
		return model.AttendanceRecord{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.records[actorID]
	if !ok || e.deleted {
		return model.AttendanceRecord{}, errdef.NewNotFound("no attendance for actor %s on event %s", actorID, eventID)
	}
	return rec, nil
}

// ListByEvent returns every record of an event, oldest change first.
func (r *AttendanceRepository) ListByEvent(_ context.Context, eventID string) ([]model.AttendanceRecord, error) {
	e, err := r.s.entry(eventID)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	recs := make([]model.AttendanceRecord, 0, len(e.records))
	for _, rec := range e.records {
		recs = append(recs, rec)
	}
	e.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].UpdatedAt.Equal(recs[j].UpdatedAt) {
			return recs[i].UpdatedAt.Before(recs[j].UpdatedAt)
		}
		return recs[i].ActorID < recs[j].ActorID
	})
	return recs, nil
}
