// Package repository implements the PostgreSQL-backed repositories.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-attendance/internal/errdef"
	"github.com/Shivanand-hulikatti/event-attendance/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQL error codes the repositories translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeLockNotAvailable    = "55P03"
	codeQueryCanceled       = "57014"
)

const eventColumns = `e.id, e.owner_id, e.title, e.description, e.event_date, e.event_time,
	e.location, e.capacity, e.category, e.image_url, e.created_at, e.updated_at`

// confirmedCount is evaluated in the same statement as the event row so the
// capacity and the count come from one snapshot.
const confirmedCount = `(SELECT count(*) FROM attendance a
	WHERE a.event_id = e.id AND a.status = 'confirmed')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEventView(row rowScanner) (model.EventView, error) {
	var e model.Event
	var confirmed int
	err := row.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Description, &e.Date, &e.Time,
		&e.Location, &e.Capacity, &e.Category, &e.ImageURL, &e.CreatedAt, &e.UpdatedAt, &confirmed)
	if err != nil {
		return model.EventView{}, err
	}
	return model.EventView{Event: e, Capacity: model.NewCapacityView(e.ID, e.Capacity, confirmed)}, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, e model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, owner_id, title, description, event_date, event_time,
		                     location, capacity, category, image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.OwnerID, e.Title, e.Description, e.Date, e.Time,
		e.Location, e.Capacity, e.Category, e.ImageURL, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return errdef.NewNotFound("owner %s not found", e.OwnerID)
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields. Owner and creation time never change.
func (r *EventRepository) Update(ctx context.Context, e model.Event) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events
		    SET title = $2, description = $3, event_date = $4, event_time = $5,
		        location = $6, capacity = $7, category = $8, image_url = $9, updated_at = $10
		  WHERE id = $1`,
		e.ID, e.Title, e.Description, e.Date, e.Time,
		e.Location, e.Capacity, e.Category, e.ImageURL, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errdef.NewNotFound("event %s not found", e.ID)
	}
	return nil
}

// Delete removes the event; its attendance records go with it.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errdef.NewNotFound("event %s not found", id)
	}
	return nil
}

// Get returns a single event with its capacity view.
func (r *EventRepository) Get(ctx context.Context, id string) (model.EventView, error) {
	v, err := scanEventView(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+`, `+confirmedCount+`
		   FROM events e
		  WHERE e.id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EventView{}, errdef.NewNotFound("event %s not found", id)
		}
		return model.EventView{}, fmt.Errorf("get event: %w", err)
	}
	return v, nil
}

// List returns the events matching filter ordered by date, then id.
func (r *EventRepository) List(ctx context.Context, filter model.EventFilter) ([]model.EventView, error) {
	var (
		where []string
		args  []any
	)
	if text := strings.TrimSpace(filter.Text); text != "" {
		args = append(args, "%"+escapeLike(text)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			`(e.title ILIKE $%[1]d OR e.description ILIKE $%[1]d OR e.location ILIKE $%[1]d)`, n))
	}
	if c := strings.TrimSpace(filter.Category); c != "" && c != model.AllCategories {
		args = append(args, c)
		where = append(where, fmt.Sprintf(`e.category = $%d`, len(args)))
	}

	query := `SELECT ` + eventColumns + `, ` + confirmedCount + ` FROM events e`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY e.event_date ASC, e.id ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	views := []model.EventView{}
	for rows.Next() {
		v, err := scanEventView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// AttendanceRepository is the PostgreSQL attendance ledger.
type AttendanceRepository struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration

	// beforeView runs after the write and before the view is read; tests
	// use it to interleave a concurrent edit.
	beforeView func()
}

// NewAttendanceRepository constructs an AttendanceRepository. lockTimeout
// bounds the wait for an event's admission lock.
func NewAttendanceRepository(db *pgxpool.Pool, lockTimeout time.Duration) *AttendanceRepository {
	return &AttendanceRepository{db: db, lockTimeout: lockTimeout}
}

// SetStatus upserts the attendance record for (eventID, actorID).
//
// Admission into confirmed is serialised per event with SELECT … FOR UPDATE
// on the event row: the lock holder counts confirmed records, compares with
// capacity and writes inside one transaction, so two callers racing for the
// last spot can never both commit. Other transitions do not take the
// admission lock; they cannot raise the count. The returned view reads
// capacity and count together after the write, so it never mixes an old
// capacity with a newer count.
//
// Waiting for the lock is bounded by lock_timeout; a timeout surfaces as
// Unavailable and leaves nothing written.
func (r *AttendanceRepository) SetStatus(ctx context.Context, eventID, actorID string, status model.AttendanceStatus, at time.Time) (_ model.CapacityView, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.lockTimeout+time.Second)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.CapacityView{}, r.translate(err, "begin transaction")
	}
	// Ensure the transaction is always resolved.
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.Background())
		}
	}()

	if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`,
		fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())); err != nil {
		return model.CapacityView{}, r.translate(err, "set lock timeout")
	}

	if err := r.actorExists(ctx, tx, actorID); err != nil {
		return model.CapacityView{}, err
	}

	lock := ""
	if status == model.StatusConfirmed {
		lock = " FOR UPDATE"
	}
	var capacity int
	if err := tx.QueryRow(ctx, `SELECT capacity FROM events WHERE id = $1`+lock, eventID).Scan(&capacity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CapacityView{}, errdef.NewNotFound("event %s not found", eventID)
		}
		return model.CapacityView{}, r.translate(err, "lock event row")
	}

	var current model.AttendanceStatus
	if scanErr := tx.QueryRow(ctx,
		`SELECT status FROM attendance WHERE event_id = $1 AND actor_id = $2`,
		eventID, actorID,
	).Scan(&current); scanErr != nil && !errors.Is(scanErr, pgx.ErrNoRows) {
		return model.CapacityView{}, r.translate(scanErr, "read attendance")
	}

	if current != status {
		if status == model.StatusConfirmed {
			confirmed, err := countConfirmed(ctx, tx, eventID)
			if err != nil {
				return model.CapacityView{}, r.translate(err, "count confirmed")
			}
			if snap := model.NewCapacityView(eventID, capacity, confirmed); !snap.HasRoom() {
				return model.CapacityView{}, errdef.NewCapacityExceeded(snap,
					"event %s is full (%d/%d confirmed)", eventID, confirmed, capacity)
			}
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO attendance (event_id, actor_id, status, updated_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (event_id, actor_id)
			 DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
			eventID, actorID, status, at,
		)
		if err != nil {
			if pgCode(err) == codeForeignKeyViolation {
				return model.CapacityView{}, errdef.NewNotFound("event %s not found", eventID)
			}
			return model.CapacityView{}, r.translate(err, "upsert attendance")
		}
	}

	if r.beforeView != nil {
		r.beforeView()
	}

	// Unlocked transitions may race an owner's capacity edit, so the
	// returned view is read again from a single statement.
	var confirmed int
	if err := tx.QueryRow(ctx,
		`SELECT e.capacity, `+confirmedCount+` FROM events e WHERE e.id = $1`, eventID,
	).Scan(&capacity, &confirmed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CapacityView{}, errdef.NewNotFound("event %s not found", eventID)
		}
		return model.CapacityView{}, r.translate(err, "read capacity view")
	}

	// Commit: only now does any other transaction see the change.
	if err := tx.Commit(ctx); err != nil {
		return model.CapacityView{}, r.translate(err, "commit transaction")
	}
	return model.NewCapacityView(eventID, capacity, confirmed), nil
}

func (r *AttendanceRepository) actorExists(ctx context.Context, tx pgx.Tx, actorID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM actors WHERE id = $1)`, actorID).Scan(&exists); err != nil {
		return r.translate(err, "check actor")
	}
	if !exists {
		return errdef.NewNotFound("actor %s not found", actorID)
	}
	return nil
}

func countConfirmed(ctx context.Context, tx pgx.Tx, eventID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx,
		`SELECT count(*) FROM attendance WHERE event_id = $1 AND status = 'confirmed'`,
		eventID,
	).Scan(&n)
	return n, err
}

// translate maps lock and deadline failures to Unavailable.
func (r *AttendanceRepository) translate(err error, op string) error {
	switch code := pgCode(err); {
	case code == codeLockNotAvailable, code == codeQueryCanceled,
		errors.Is(err, context.DeadlineExceeded):
		return errdef.NewUnavailable("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *AttendanceRepository) Get(ctx context.Context, eventID, actorID string) (model.AttendanceRecord, error) {
	rec := model.AttendanceRecord{EventID: eventID, ActorID: actorID}
	err := r.db.QueryRow(ctx,
		`SELECT status, updated_at FROM attendance WHERE event_id = $1 AND actor_id = $2`,
		eventID, actorID,
	).Scan(&rec.Status, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AttendanceRecord{}, errdef.NewNotFound("no attendance for actor %s on event %s", actorID, eventID)
		}
		return model.AttendanceRecord{}, fmt.Errorf("get attendance: %w", err)
	}
	return rec, nil
}

// ListByEvent returns all attendance records for a given event.
func (r *AttendanceRepository) ListByEvent(ctx context.Context, eventID string) ([]model.AttendanceRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT event_id, actor_id, status, updated_at
		 FROM attendance
		 WHERE event_id = $1
		 ORDER BY updated_at ASC, actor_id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	recs := []model.AttendanceRecord{}
	for rows.Next() {
		var rec model.AttendanceRecord
		if err := rows.Scan(&rec.EventID, &rec.ActorID, &rec.Status, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ActorRepository persists actors and their password hashes.
type ActorRepository struct {
	db *pgxpool.Pool
}

func NewActorRepository(db *pgxpool.Pool) *ActorRepository {
	return &ActorRepository{db: db}
}

func (r *ActorRepository) Create(ctx context.Context, a model.Actor, passwordHash string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO actors (id, email, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, strings.ToLower(a.Email), passwordHash, a.Role, a.CreatedAt,
	)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return errdef.NewDuplicateIdentity("email %s is already registered", a.Email)
		}
		return fmt.Errorf("insert actor: %w", err)
	}
	return nil
}

func (r *ActorRepository) GetByID(ctx context.Context, id string) (model.Actor, error) {
	var a model.Actor
	err := r.db.QueryRow(ctx,
		`SELECT id, email, role, created_at FROM actors WHERE id = $1`, id,
	).Scan(&a.ID, &a.Email, &a.Role, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Actor{}, errdef.NewNotFound("actor %s not found", id)
		}
		return model.Actor{}, fmt.Errorf("get actor: %w", err)
	}
	return a, nil
}

func (r *ActorRepository) GetByEmail(ctx context.Context, email string) (model.Actor, string, error) {
	var a model.Actor
	var hash string
	err := r.db.QueryRow(ctx,
		`SELECT id, email, role, created_at, password_hash FROM actors WHERE lower(email) = lower($1)`, email,
	).Scan(&a.ID, &a.Email, &a.Role, &a.CreatedAt, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Actor{}, "", errdef.NewNotFound("actor with email %s not found", email)
		}
		return model.Actor{}, "", fmt.Errorf("get actor by email: %w", err)
	}
	return a, hash, nil
}
