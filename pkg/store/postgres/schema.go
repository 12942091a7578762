// Package postgres provides the PostgreSQL-backed implementation of
// [store.Store]: attempts, append-only word event logs, scores, per-learner
// level state, and the problem-word aggregate.
//
// All tables share a single [pgxpool.Pool] connection pool. [Migrate] creates
// the schema idempotently via CREATE TABLE IF NOT EXISTS.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
//
//	_ = st.CreateAttempt(ctx, attempt)
//	_ = st.AppendEvents(ctx, attempt.ID, events)
//	_ = st.FinishAttempt(ctx, attempt, tail, score)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlAttempts = `
CREATE TABLE IF NOT EXISTS attempts (
    id             TEXT         PRIMARY KEY,
    learner_id     TEXT         NOT NULL,
    story_id       TEXT         NOT NULL,
    story_level    INT          NOT NULL DEFAULT 1,
    state          TEXT         NOT NULL,
    started_at     TIMESTAMPTZ  NOT NULL,
    ended_at       TIMESTAMPTZ,
    current_index  INT          NOT NULL DEFAULT 0,
    hints          INT          NOT NULL DEFAULT 0,
    skips          INT          NOT NULL DEFAULT 0,
    interventions  INT          NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_attempts_learner_ended
    ON attempts (learner_id, ended_at);
`

// Word events are ordered by the serial id: rows are only ever appended in
// emission order by a single writer per attempt.
const ddlWordEvents = `
CREATE TABLE IF NOT EXISTS word_events (
    id          BIGSERIAL  PRIMARY KEY,
    attempt_id  TEXT       NOT NULL REFERENCES attempts (id) ON DELETE CASCADE,
    word_index  INT        NOT NULL,
    expected    TEXT       NOT NULL,
    recognized  TEXT       NOT NULL DEFAULT '',
    event_type  TEXT       NOT NULL,
    severity    INT        NOT NULL DEFAULT 0,
    ts_ns       BIGINT     NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_word_events_attempt
    ON word_events (attempt_id, id);
`

const ddlScores = `
CREATE TABLE IF NOT EXISTS scores (
    attempt_id     TEXT              PRIMARY KEY REFERENCES attempts (id) ON DELETE CASCADE,
    accuracy       DOUBLE PRECISION  NOT NULL,
    fluency        DOUBLE PRECISION  NOT NULL,
    independence   DOUBLE PRECISION  NOT NULL,
    total          DOUBLE PRECISION  NOT NULL,
    wpm            DOUBLE PRECISION  NOT NULL,
    words_reached  INT               NOT NULL,
    summary        TEXT              NOT NULL DEFAULT ''
);
`

const ddlLevelState = `
CREATE TABLE IF NOT EXISTS level_state (
    learner_id            TEXT              PRIMARY KEY,
    current_level         INT               NOT NULL DEFAULT 1,
    confidence            DOUBLE PRECISION  NOT NULL DEFAULT 0,
    last_decision_reason  TEXT              NOT NULL DEFAULT '',
    overridden_at         TIMESTAMPTZ
);
`

const ddlProblemWords = `
CREATE TABLE IF NOT EXISTS problem_words (
    learner_id        TEXT              NOT NULL,
    word              TEXT              NOT NULL,
    lookups           INT               NOT NULL DEFAULT 0,
    misses            INT               NOT NULL DEFAULT 0,
    mastery           DOUBLE PRECISION  NOT NULL DEFAULT 0,
    level_first_seen  INT               NOT NULL DEFAULT 1,
    last_seen_at      TIMESTAMPTZ       NOT NULL DEFAULT now(),
    PRIMARY KEY (learner_id, word)
);

CREATE INDEX IF NOT EXISTS idx_problem_words_mastery
    ON problem_words (learner_id, mastery, misses DESC);
`

// Migrate ensures all required tables and indexes exist. Safe to run on every
// startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlAttempts,
		ddlWordEvents,
		ddlScores,
		ddlLevelState,
		ddlProblemWords,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
