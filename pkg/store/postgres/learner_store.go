package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lukereed/readalong/pkg/types"
)

// LevelState implements [store.LearnerStore]. A learner with no recorded row
// starts at level 1 with zero confidence.
func (s *Store) LevelState(ctx context.Context, learnerID string) (types.LevelState, error) {
	const q = `
		SELECT current_level, confidence, last_decision_reason, overridden_at
		FROM   level_state
		WHERE  learner_id = $1`

	st := types.LevelState{LearnerID: learnerID, CurrentLevel: 1}
	var overriddenAt *time.Time
	err := s.pool.QueryRow(ctx, q, learnerID).Scan(
		&st.CurrentLevel, &st.Confidence, &st.LastDecisionReason, &overriddenAt,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return st, nil
	case err != nil:
		return types.LevelState{}, fmt.Errorf("learner store: level state: %w", err)
	}
	if overriddenAt != nil {
		st.OverriddenAt = *overriddenAt
	}
	return st, nil
}

// SaveLevelState implements [store.LearnerStore].
func (s *Store) SaveLevelState(ctx context.Context, st types.LevelState) error {
	const q = `
		INSERT INTO level_state
		    (learner_id, current_level, confidence, last_decision_reason, overridden_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (learner_id) DO UPDATE
		SET current_level        = EXCLUDED.current_level,
		    confidence           = EXCLUDED.confidence,
		    last_decision_reason = EXCLUDED.last_decision_reason,
		    overridden_at        = EXCLUDED.overridden_at`

	_, err := s.pool.Exec(ctx, q,
		st.LearnerID,
		st.CurrentLevel,
		st.Confidence,
		st.LastDecisionReason,
		nullableTime(st.OverriddenAt),
	)
	if err != nil {
		return fmt.Errorf("learner store: save level state: %w", err)
	}
	return nil
}

// History implements [store.LearnerStore]. It returns up to limit
// finished-attempt summaries ordered oldest first.
func (s *Store) History(ctx context.Context, learnerID string, limit int) ([]types.AttemptSummary, error) {
	const q = `
		SELECT a.id, a.story_level, sc.total, sc.accuracy, a.ended_at
		FROM   attempts a
		JOIN   scores sc ON sc.attempt_id = a.id
		WHERE  a.learner_id = $1
		  AND  a.ended_at IS NOT NULL
		ORDER  BY a.ended_at DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, learnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("learner store: history: %w", err)
	}
	defer rows.Close()

	var out []types.AttemptSummary
	for rows.Next() {
		var sum types.AttemptSummary
		if err := rows.Scan(&sum.AttemptID, &sum.StoryLevel, &sum.Total, &sum.Accuracy, &sum.FinishedAt); err != nil {
			return nil, fmt.Errorf("learner store: history: scan: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("learner store: history: %w", err)
	}

	// The query selects the newest rows; callers want them oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
