package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lukereed/readalong/pkg/store"
	"github.com/lukereed/readalong/pkg/types"
)

// CreateAttempt implements [store.AttemptStore].
func (s *Store) CreateAttempt(ctx context.Context, a store.Attempt) error {
	const q = `
		INSERT INTO attempts
		    (id, learner_id, story_id, story_level, state, started_at, current_index, hints, skips, interventions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, q,
		a.ID,
		a.LearnerID,
		a.StoryID,
		a.StoryLevel,
		string(a.State),
		a.StartedAt,
		a.CurrentIndex,
		a.Hints,
		a.Skips,
		a.Interventions,
	)
	if err != nil {
		return fmt.Errorf("attempt store: create: %w", err)
	}
	return nil
}

// AppendEvents implements [store.AttemptStore]. Events are inserted in slice
// order inside one transaction so the serial ordering key matches emission
// order.
func (s *Store) AppendEvents(ctx context.Context, attemptID string, events []types.WordEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("attempt store: append events: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := appendEventsTx(ctx, tx, attemptID, events); err != nil {
		return fmt.Errorf("attempt store: append events: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("attempt store: append events: commit: %w", err)
	}
	return nil
}

func appendEventsTx(ctx context.Context, tx pgx.Tx, attemptID string, events []types.WordEvent) error {
	const q = `
		INSERT INTO word_events
		    (attempt_id, word_index, expected, recognized, event_type, severity, ts_ns)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, ev := range events {
		_, err := tx.Exec(ctx, q,
			attemptID,
			ev.WordIndex,
			ev.Expected,
			ev.Recognized,
			string(ev.Type),
			ev.Severity,
			ev.Timestamp.Nanoseconds(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// FinishAttempt implements [store.AttemptStore]. The terminal state, the
// unpersisted event tail, and the score land in one transaction. The attempt
// row is locked first; if it is already terminal the whole call is a no-op,
// making duplicate finalize signals harmless.
func (s *Store) FinishAttempt(ctx context.Context, a store.Attempt, events []types.WordEvent, sc types.Score) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("attempt store: finish: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const lockQ = `SELECT state FROM attempts WHERE id = $1 FOR UPDATE`
	var state string
	err = tx.QueryRow(ctx, lockQ, a.ID).Scan(&state)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("attempt store: finish %q: %w", a.ID, store.ErrNotFound)
	case err != nil:
		return fmt.Errorf("attempt store: finish: lock: %w", err)
	}
	if types.AttemptState(state).Terminal() {
		return nil
	}

	const updateQ = `
		UPDATE attempts
		SET    state = $2, ended_at = $3, current_index = $4,
		       hints = $5, skips = $6, interventions = $7
		WHERE  id = $1`
	_, err = tx.Exec(ctx, updateQ,
		a.ID,
		string(a.State),
		nullableTime(a.EndedAt),
		a.CurrentIndex,
		a.Hints,
		a.Skips,
		a.Interventions,
	)
	if err != nil {
		return fmt.Errorf("attempt store: finish: update attempt: %w", err)
	}

	if err := appendEventsTx(ctx, tx, a.ID, events); err != nil {
		return fmt.Errorf("attempt store: finish: append events: %w", err)
	}

	const scoreQ = `
		INSERT INTO scores
		    (attempt_id, accuracy, fluency, independence, total, wpm, words_reached, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (attempt_id) DO NOTHING`
	_, err = tx.Exec(ctx, scoreQ,
		a.ID,
		sc.Accuracy,
		sc.Fluency,
		sc.Independence,
		sc.Total,
		sc.WPM,
		sc.WordsReached,
		sc.Summary,
	)
	if err != nil {
		return fmt.Errorf("attempt store: finish: insert score: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("attempt store: finish: commit: %w", err)
	}
	return nil
}

// Events implements [store.AttemptStore].
func (s *Store) Events(ctx context.Context, attemptID string) ([]types.WordEvent, error) {
	const q = `
		SELECT word_index, expected, recognized, event_type, severity, ts_ns
		FROM   word_events
		WHERE  attempt_id = $1
		ORDER  BY id`

	rows, err := s.pool.Query(ctx, q, attemptID)
	if err != nil {
		return nil, fmt.Errorf("attempt store: events: %w", err)
	}
	defer rows.Close()

	var out []types.WordEvent
	for rows.Next() {
		var (
			ev   types.WordEvent
			kind string
			tsNS int64
		)
		if err := rows.Scan(&ev.WordIndex, &ev.Expected, &ev.Recognized, &kind, &ev.Severity, &tsNS); err != nil {
			return nil, fmt.Errorf("attempt store: events: scan: %w", err)
		}
		ev.AttemptID = attemptID
		ev.Type = types.EventType(kind)
		ev.Timestamp = time.Duration(tsNS)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("attempt store: events: %w", err)
	}
	return out, nil
}

// Attempt implements [store.AttemptStore].
func (s *Store) Attempt(ctx context.Context, attemptID string) (store.Attempt, error) {
	const q = `
		SELECT id, learner_id, story_id, story_level, state, started_at, ended_at,
		       current_index, hints, skips, interventions
		FROM   attempts
		WHERE  id = $1`

	var (
		a       store.Attempt
		state   string
		endedAt *time.Time
	)
	err := s.pool.QueryRow(ctx, q, attemptID).Scan(
		&a.ID, &a.LearnerID, &a.StoryID, &a.StoryLevel, &state, &a.StartedAt, &endedAt,
		&a.CurrentIndex, &a.Hints, &a.Skips, &a.Interventions,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return store.Attempt{}, fmt.Errorf("attempt store: get %q: %w", attemptID, store.ErrNotFound)
	case err != nil:
		return store.Attempt{}, fmt.Errorf("attempt store: get: %w", err)
	}
	a.State = types.AttemptState(state)
	if endedAt != nil {
		a.EndedAt = *endedAt
	}
	return a, nil
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
