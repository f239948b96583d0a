package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-attendance/internal/errdef"
	"github.com/Shivanand-hulikatti/event-attendance/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store, capacity int, attendees int) (model.Event, []string) {
	t.Helper()
	ctx := context.Background()

	owner := model.Actor{ID: "owner", Email: "owner@example.com", Role: model.RoleOrganizer}
	require.NoError(t, s.Actors().Create(ctx, owner, "hash"))

	event := model.Event{
		ID:       "event-1",
		OwnerID:  owner.ID,
		Title:    "Launch",
		Date:     "2026-04-01",
		Time:     "18:00",
		Capacity: capacity,
		Category: "Tech",
	}
	require.NoError(t, s.Events().Create(ctx, event))

	ids := make([]string, attendees)
	for i := range ids {
		ids[i] = fmt.Sprintf("actor-%03d", i)
		require.NoError(t, s.Actors().Create(ctx, model.Actor{
			ID:    ids[i],
			Email: ids[i] + "@example.com",
			Role:  model.RoleAttendee,
		}, "hash"))
	}
	return event, ids
}

func TestSetStatusAdmitsUntilFull(t *testing.T) {
	s := NewStore(time.Second)
	event, actors := seed(t, s, 2, 3)
	ledger := s.Attendance()
	ctx := context.Background()

	v, err := ledger.SetStatus(ctx, event.ID, actors[0], model.StatusConfirmed, now)
	require.NoError(t, err)
	assert.Equal(t, 1, v.ConfirmedCount)

	v, err = ledger.SetStatus(ctx, event.ID, actors[1], model.StatusConfirmed, now)
	require.NoError(t, err)
	assert.Equal(t, 2, v.ConfirmedCount)
	assert.Equal(t, 0, v.SpotsLeft)

	_, err = ledger.SetStatus(ctx, event.ID, actors[2], model.StatusConfirmed, now)
	require.True(t, errdef.IsCapacityExceeded(err), "got %v", err)

	snap, ok := errdef.CapacitySnapshot(err)
	require.True(t, ok)
	assert.Equal(t, 2, snap.ConfirmedCount)
	assert.Equal(t, 2, snap.Capacity)

	_, err = ledger.Get(ctx, event.ID, actors[2])
	assert.True(t, errdef.IsNotFound(err), "rejected admission must not write a record")
}

func TestSetStatusRejectionKeepsPriorStatus(t *testing.T) {
	s := NewStore(time.Second)
	event, actors := seed(t, s, 1, 2)
	ledger := s.Attendance()
	ctx := context.Background()

	_, err := ledger.SetStatus(ctx, event.ID, actors[0], model.StatusConfirmed, now)
	require.NoError(t, err)
	_, err = ledger.SetStatus(ctx, event.ID, actors[1], model.StatusMaybe, now)
	require.NoError(t, err)

	_, err = ledger.SetStatus(ctx, event.ID, actors[1], model.StatusConfirmed, now.Add(time.Minute))
	require.True(t, errdef.IsCapacityExceeded(err))

	rec, err := ledger.Get(ctx, event.ID, actors[1])
	require.NoError(t, err)
	assert.Equal(t, model.StatusMaybe, rec.Status)
	assert.Equal(t, now, rec.UpdatedAt)
}

func TestSetStatusIdempotent(t *testing.T) {
	s := NewStore(time.Second)
	event, actors := seed(t, s, 5, 1)
	ledger := s.Attendance()
	ctx := context.Background()

	first, err := ledger.SetStatus(ctx, event.ID, actors[0], model.StatusConfirmed, now)
	require.NoError(t, err)
	second, err := ledger.SetStatus(ctx, event.ID, actors[0], model.StatusConfirmed, now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, second.ConfirmedCount)

	rec, err := ledger.Get(ctx, event.ID, actors[0])
	require.NoError(t, err)
	assert.Equal(t, now, rec.UpdatedAt, "no-op must not touch the record")
}

func TestFreeThenAdmit(t *testing.T) {
	s := NewStore(time.Second)
	event, actors := seed(t, s, 1, 2)
	ledger := s.Attendance()
	ctx := context.Background()

	_, err := ledger.SetStatus(ctx, event.ID, actors[0], model.StatusConfirmed, now)
	require.NoError(t, err)
	_, err = ledger.SetStatus(ctx, event.ID, actors[1], model.StatusConfirmed, now)
	require.True(t, errdef.IsCapacityExceeded(err))

	v, err := ledger.SetStatus(ctx, event.ID, actors[0], model.StatusDeclined, now)
	require.NoError(t, err)
	assert.Equal(t, 0, v.ConfirmedCount)

	v, err = ledger.SetStatus(ctx, event.ID, actors[1], model.StatusConfirmed, now)
	require.NoError(t, err)
	assert.Equal(t, 1, v.ConfirmedCount)
}

func TestConcurrentAdmissionLastSpot(t *testing.T) {
	const capacity = 10
	for round := 0; round < 50; round++ {
		s := NewStore(time.Second)
		event, actors := seed(t, s, capacity, capacity+1)
		ledger := s.Attendance()
		ctx := context.Background()

		for _, id := range actors[:capacity-1] {
			_, err := ledger.SetStatus(ctx, event.ID, id, model.StatusConfirmed, now)
			require.NoError(t, err)
		}

		contenders := actors[capacity-1:]
		results := make([]model.AdmissionResult, len(contenders))
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i, id := range contenders {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				<-start
				v, err := ledger.SetStatus(ctx, event.ID, id, model.StatusConfirmed, now)
				results[i] = model.AdmissionResult{ActorID: id, View: v, Error: err}
			}(i, id)
		}
		close(start)
		wg.Wait()

		var admitted, rejected int
		for _, r := range results {
			switch {
			case r.Error == nil:
				admitted++
			case errdef.IsCapacityExceeded(r.Error):
				rejected++
			default:
				t.Fatalf("unexpected error: %v", r.Error)
			}
		}
		require.Equal(t, 1, admitted)
		require.Equal(t, 1, rejected)

		v, err := s.Events().Get(ctx, event.ID)
		require.NoError(t, err)
		require.Equal(t, capacity, v.Capacity.ConfirmedCount)
	}
}

func TestConcurrentChurnNeverExceedsCapacity(t *testing.T) {
	const capacity = 7
	s := NewStore(5 * time.Second)
	event, actors := seed(t, s, capacity, 40)
	ledger := s.Attendance()
	ctx := context.Background()

	var stop atomic.Bool
	var observerErr atomic.Value
	observerDone := make(chan struct{})
	go func() {
		defer close(observerDone)
		for !stop.Load() {
			v, err := s.Events().Get(ctx, event.ID)
			if err != nil {
				observerErr.Store(err)
				return
			}
			if v.Capacity.ConfirmedCount > capacity {
				observerErr.Store(fmt.Errorf("observed %d confirmed with capacity %d", v.Capacity.ConfirmedCount, capacity))
				return
			}
		}
	}()

	statuses := []model.AttendanceStatus{model.StatusConfirmed, model.StatusMaybe, model.StatusConfirmed, model.StatusDeclined}
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range actors {
		g.Go(func() error {
			for j := 0; j < 25; j++ {
				st := statuses[(i+j)%len(statuses)]
				_, err := ledger.SetStatus(gctx, event.ID, id, st, now)
				if err != nil && !errdef.IsCapacityExceeded(err) {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	stop.Store(true)
	<-observerDone
	if err, ok := observerErr.Load().(error); ok {
		t.Fatal(err)
	}

	recs, err := ledger.ListByEvent(ctx, event.ID)
	require.NoError(t, err)
	confirmed := 0
	for _, r := range recs {
		if r.Status == model.StatusConfirmed {
			confirmed++
		}
	}
	v, err := s.Events().Get(ctx, event.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, confirmed, capacity)
	assert.Equal(t, confirmed, v.Capacity.ConfirmedCount, "counter must match records")
}

func TestSetStatusTimesOutWhenEventBusy(t *testing.T) {
	s := NewStore(20 * time.Millisecond)
	event, actors := seed(t, s, 5, 1)
	ctx := context.Background()

	e, err := s.acquire(ctx, event.ID)
	require.NoError(t, err)
	defer e.release()

	_, err = s.Attendance().SetStatus(ctx, event.ID, actors[0], model.StatusConfirmed, now)
	assert.True(t, errdef.IsUnavailable(err), "got %v", err)

	// Reads are not blocked by a held write step.
	_, err = s.Events().Get(ctx, event.ID)
	assert.NoError(t, err)
}

func TestOtherEventsDoNotContend(t *testing.T) {
	s := NewStore(20 * time.Millisecond)
	event, actors := seed(t, s, 5, 1)
	ctx := context.Background()

	other := event
	other.ID = "event-2"
	require.NoError(t, s.Events().Create(ctx, other))

	e, err := s.acquire(ctx, event.ID)
	require.NoError(t, err)
	defer e.release()

	_, err = s.Attendance().SetStatus(ctx, other.ID, actors[0], model.StatusConfirmed, now)
	assert.NoError(t, err)
}

func TestCapacityReductionDoesNotEvict(t *testing.T) {
	s := NewStore(time.Second)
	event, actors := seed(t, s, 4, 5)
	ledger := s.Attendance()
	ctx := context.Background()

	for _, id := range actors[:4] {
		_, err := ledger.SetStatus(ctx, event.ID, id, model.StatusConfirmed, now)
		require.NoError(t, err)
	}

	event.Capacity = 2
	require.NoError(t, s.Events().Update(ctx, event))

	v, err := s.Events().Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, v.Capacity.ConfirmedCount)
	assert.Equal(t, -2, v.Capacity.SpotsLeft)
	assert.True(t, v.Capacity.OverSubscribed)

	// Already confirmed actors keep their spot and re-confirming is a no-op.
	_, err = ledger.SetStatus(ctx, event.ID, actors[0], model.StatusConfirmed, now)
	assert.NoError(t, err)

	_, err = ledger.SetStatus(ctx, event.ID, actors[4], model.StatusConfirmed, now)
	assert.True(t, errdef.IsCapacityExceeded(err))

	for _, id := range actors[:3] {
		_, err := ledger.SetStatus(ctx, event.ID, id, model.StatusDeclined, now)
		require.NoError(t, err)
	}
	v2, err := ledger.SetStatus(ctx, event.ID, actors[4], model.StatusConfirmed, now)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.ConfirmedCount)
	assert.False(t, v2.OverSubscribed)
}

func TestSetStatusUnknownEventOrActor(t *testing.T) {
	s := NewStore(time.Second)
	event, actors := seed(t, s, 5, 1)
	ctx := context.Background()

	_, err := s.Attendance().SetStatus(ctx, "missing", actors[0], model.StatusConfirmed, now)
	assert.True(t, errdef.IsNotFound(err))

	_, err = s.Attendance().SetStatus(ctx, event.ID, "ghost", model.StatusConfirmed, now)
	assert.True(t, errdef.IsNotFound(err))
}

func TestDeleteEvent(t *testing.T) {
	s := NewStore(time.Second)
	event, actors := seed(t, s, 5, 1)
	ctx := context.Background()

	require.NoError(t, s.Events().Delete(ctx, event.ID))

	_, err := s.Events().Get(ctx, event.ID)
	assert.True(t, errdef.IsNotFound(err))
	_, err = s.Attendance().SetStatus(ctx, event.ID, actors[0], model.StatusMaybe, now)
	assert.True(t, errdef.IsNotFound(err))
	assert.True(t, errdef.IsNotFound(s.Events().Delete(ctx, event.ID)))
}

func TestListFiltersAndOrders(t *testing.T) {
	s := NewStore(time.Second)
	ctx := context.Background()
	require.NoError(t, s.Actors().Create(ctx, model.Actor{ID: "o", Email: "o@example.com", Role: model.RoleOrganizer}, "h"))

	for _, e := range []model.Event{
		{ID: "b", OwnerID: "o", Title: "Jazz night", Date: "2026-05-02", Capacity: 10, Category: "Music", Location: "Club"},
		{ID: "a", OwnerID: "o", Title: "Go workshop", Date: "2026-05-02", Capacity: 10, Category: "Tech", Location: "Lab"},
		{ID: "c", OwnerID: "o", Title: "Rust meetup", Date: "2026-04-10", Capacity: 10, Category: "Tech", Location: "Jazz bar"},
	} {
		require.NoError(t, s.Events().Create(ctx, e))
	}

	ids := func(views []model.EventView) []string {
		out := make([]string, len(views))
		for i, v := range views {
			out[i] = v.Event.ID
		}
		return out
	}

	all, err := s.Events().List(ctx, model.EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids(all))

	tech, err := s.Events().List(ctx, model.EventFilter{Category: "Tech"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(tech))

	jazz, err := s.Events().List(ctx, model.EventFilter{Text: "JAZZ", Category: model.AllCategories})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids(jazz))
}

func TestActorRepository(t *testing.T) {
	s := NewStore(time.Second)
	ctx := context.Background()
	actor := model.Actor{ID: "a1", Email: "Ada@Example.com", Role: model.RoleAttendee}

	require.NoError(t, s.Actors().Create(ctx, actor, "hash"))
	err := s.Actors().Create(ctx, model.Actor{ID: "a2", Email: "ada@example.com"}, "hash")
	assert.True(t, errdef.IsDuplicateIdentity(err))

	got, hash, err := s.Actors().GetByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, actor, got)
	assert.Equal(t, "hash", hash)

	_, err = s.Actors().GetByID(ctx, "nope")
	assert.True(t, errdef.IsNotFound(err))
}
