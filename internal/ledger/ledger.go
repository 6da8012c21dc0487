// Package ledger implements the transactional store of events and per-user
// registration state. It uses pgx directly (no ORM) for transparency and
// performance; every operation is a single database transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VictoriiaShtyreva/event-registration-consumer/internal/model"
)

// ErrEventNotFound is returned by Register when the referenced event
// does not exist. The transaction is rolled back; no counter change occurs.
var ErrEventNotFound = errors.New("event not found")

// Ledger owns the Event and Registration rows. No other component
// mutates them.
//
// Counter policy: events.registered_count mirrors the number of
// (event, user) pairs currently in state Register. It is incremented only
// on a transition into that state and decremented only on a transition out
// of it, always under an exclusive row lock on the event, so it can never
// go negative and can never be double-counted on redelivery.
type Ledger struct {
	db *pgxpool.Pool
}

// New constructs a Ledger on the given connection pool.
func New(db *pgxpool.Pool) *Ledger {
	return &Ledger{db: db}
}

// Register applies a Register command for (eventID, userID) as one
// transaction.
//
// SELECT … FOR UPDATE acquires a row-level exclusive lock on the event row
// the moment the SELECT executes inside the transaction. Any concurrent
// transaction attempting the same lock blocks until this one commits or
// rolls back, which serialises concurrent registrations against the same
// event and eliminates lost updates on the counter.
//
// Redelivering the same command is safe: the counter is incremented only
// when the pair was not already registered, decided from state observed
// under the lock rather than from a unique-constraint failure.
func (l *Ledger) Register(ctx context.Context, eventID uuid.UUID, userID string) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Ensure the transaction is always resolved.
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Step 1: exclusive lock on the event row. A missing event aborts the
	// whole transaction before anything is written.
	var registeredCount int
	err = tx.QueryRow(ctx,
		`SELECT registered_count
		 FROM events
		 WHERE id = $1
		 FOR UPDATE`,
		eventID,
	).Scan(&registeredCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrEventNotFound
			return err
		}
		return fmt.Errorf("lock event row: %w", err)
	}

	// Step 2: read the pair's current state. The event lock serialises
	// every writer for this event, so the read is stable.
	current, err := currentAction(ctx, tx, eventID, userID)
	if err != nil {
		return err
	}

	// Step 3: apply the transition. Already-registered pairs are a no-op
	// so a redelivered command cannot double-increment the counter.
	if current != model.ActionRegister {
		if err = upsertRegistration(ctx, tx, eventID, userID, model.ActionRegister); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE events SET registered_count = registered_count + 1 WHERE id = $1`,
			eventID,
		)
		if err != nil {
			return fmt.Errorf("increment registered_count: %w", err)
		}
	}

	// Step 4: audit trail, one row per applied command.
	if err = appendHistory(ctx, tx, eventID, userID, model.ActionRegister); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Unregister applies an Unregister command for (eventID, userID) as one
// transaction. A pair with no prior row gets a row inserted directly in
// state Unregister: an unregister-before-register is not an error, it
// records intent and is idempotent with a later register.
//
// A missing event is not an error either. The counter is decremented only
// when the event row exists and the pair was currently registered, under
// the same exclusive lock discipline as Register.
func (l *Ledger) Unregister(ctx context.Context, eventID uuid.UUID, userID string) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var eventExists bool
	var registeredCount int
	err = tx.QueryRow(ctx,
		`SELECT registered_count
		 FROM events
		 WHERE id = $1
		 FOR UPDATE`,
		eventID,
	).Scan(&registeredCount)
	switch {
	case err == nil:
		eventExists = true
	case errors.Is(err, pgx.ErrNoRows):
		err = nil
	default:
		return fmt.Errorf("lock event row: %w", err)
	}

	current, err := currentAction(ctx, tx, eventID, userID)
	if err != nil {
		return err
	}

	if current != model.ActionUnregister {
		if err = upsertRegistration(ctx, tx, eventID, userID, model.ActionUnregister); err != nil {
			return err
		}
		if eventExists && current == model.ActionRegister {
			_, err = tx.Exec(ctx,
				`UPDATE events SET registered_count = registered_count - 1 WHERE id = $1`,
				eventID,
			)
			if err != nil {
				return fmt.Errorf("decrement registered_count: %w", err)
			}
		}
	}

	if err = appendHistory(ctx, tx, eventID, userID, model.ActionUnregister); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// currentAction returns the pair's current action, or ActionUnknown when
// no row exists yet.
func currentAction(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, userID string) (model.Action, error) {
	var action string
	err := tx.QueryRow(ctx,
		`SELECT action FROM event_registrations WHERE event_id = $1 AND user_id = $2`,
		eventID, userID,
	).Scan(&action)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ActionUnknown, nil
		}
		return model.ActionUnknown, fmt.Errorf("read registration: %w", err)
	}
	return model.ParseAction(action), nil
}

func upsertRegistration(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, userID string, action model.Action) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO event_registrations (event_id, user_id, action, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (event_id, user_id)
		 DO UPDATE SET action = EXCLUDED.action, updated_at = EXCLUDED.updated_at`,
		eventID, userID, string(action), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert registration: %w", err)
	}
	return nil
}

func appendHistory(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, userID string, action model.Action) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO event_registration_history (id, event_id, user_id, action, recorded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), eventID, userID, string(action), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append registration history: %w", err)
	}
	return nil
}

// GetEvent returns a single event or ErrEventNotFound.
func (l *Ledger) GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	var e model.Event
	err := l.db.QueryRow(ctx,
		`SELECT id, registered_count FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.RegisteredCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// GetRegistration returns the current registration row for a pair, or nil
// when the pair has never been seen.
func (l *Ledger) GetRegistration(ctx context.Context, eventID uuid.UUID, userID string) (*model.Registration, error) {
	var (
		reg    model.Registration
		action string
	)
	err := l.db.QueryRow(ctx,
		`SELECT event_id, user_id, action, updated_at
		 FROM event_registrations
		 WHERE event_id = $1 AND user_id = $2`,
		eventID, userID,
	).Scan(&reg.EventID, &reg.UserID, &action, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	reg.Action = model.ParseAction(action)
	return &reg, nil
}

// HistoryFor returns the audit trail for a pair, oldest first.
func (l *Ledger) HistoryFor(ctx context.Context, eventID uuid.UUID, userID string) ([]model.HistoryEntry, error) {
	rows, err := l.db.Query(ctx,
		`SELECT id, event_id, user_id, action, recorded_at
		 FROM event_registration_history
		 WHERE event_id = $1 AND user_id = $2
		 ORDER BY recorded_at ASC`,
		eventID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registration history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var (
			entry  model.HistoryEntry
			action string
		)
		if err := rows.Scan(&entry.ID, &entry.EventID, &entry.UserID, &action, &entry.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entry.Action = model.ParseAction(action)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
