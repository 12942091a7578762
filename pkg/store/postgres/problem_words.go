package postgres

import (
	"context"
	"fmt"

	"github.com/lukereed/readalong/internal/align"
	"github.com/lukereed/readalong/pkg/store"
)

// masteryStep is the mastery credit per correct read of a tracked problem
// word; a word leaves the list once mastery reaches 1.0 (about three reads).
const masteryStep = 0.34

// RecordLookup implements [store.ProblemWordStore]. A fresh lookup resets the
// word's mastery: asking for help again means the word is not learned yet.
func (s *Store) RecordLookup(ctx context.Context, learnerID, word string, level int) error {
	key := align.Normalize(word)
	if key == "" {
		return nil
	}

	const q = `
		INSERT INTO problem_words
		    (learner_id, word, lookups, misses, mastery, level_first_seen, last_seen_at)
		VALUES ($1, $2, 1, 0, 0, $3, now())
		ON CONFLICT (learner_id, word) DO UPDATE
		SET lookups      = problem_words.lookups + 1,
		    mastery      = 0,
		    last_seen_at = now()`

	if _, err := s.pool.Exec(ctx, q, learnerID, key, level); err != nil {
		return fmt.Errorf("problem words: record lookup: %w", err)
	}
	return nil
}

// RecordMiss implements [store.ProblemWordStore].
func (s *Store) RecordMiss(ctx context.Context, learnerID, word string, level int) error {
	key := align.Normalize(word)
	if key == "" {
		return nil
	}

	const q = `
		INSERT INTO problem_words
		    (learner_id, word, lookups, misses, mastery, level_first_seen, last_seen_at)
		VALUES ($1, $2, 0, 1, 0, $3, now())
		ON CONFLICT (learner_id, word) DO UPDATE
		SET misses       = problem_words.misses + 1,
		    mastery      = 0,
		    last_seen_at = now()`

	if _, err := s.pool.Exec(ctx, q, learnerID, key, level); err != nil {
		return fmt.Errorf("problem words: record miss: %w", err)
	}
	return nil
}

// RecordCorrect implements [store.ProblemWordStore]. Only words already on
// the problem list are credited; a word whose mastery reaches 1.0 is retired
// from the list.
func (s *Store) RecordCorrect(ctx context.Context, learnerID, word string) error {
	key := align.Normalize(word)
	if key == "" {
		return nil
	}

	const q = `
		UPDATE problem_words
		SET    mastery = mastery + $3, last_seen_at = now()
		WHERE  learner_id = $1 AND word = $2`
	if _, err := s.pool.Exec(ctx, q, learnerID, key, masteryStep); err != nil {
		return fmt.Errorf("problem words: record correct: %w", err)
	}

	const retireQ = `
		DELETE FROM problem_words
		WHERE  learner_id = $1 AND word = $2 AND mastery >= 1.0`
	if _, err := s.pool.Exec(ctx, retireQ, learnerID, key); err != nil {
		return fmt.Errorf("problem words: retire: %w", err)
	}
	return nil
}

// ProblemWords implements [store.ProblemWordStore]. Worst first: lowest
// mastery, then most misses.
func (s *Store) ProblemWords(ctx context.Context, learnerID string, limit int) ([]store.ProblemWord, error) {
	const q = `
		SELECT word, lookups, misses, mastery, level_first_seen, last_seen_at
		FROM   problem_words
		WHERE  learner_id = $1
		ORDER  BY mastery, misses DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, learnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("problem words: list: %w", err)
	}
	defer rows.Close()

	var out []store.ProblemWord
	for rows.Next() {
		var pw store.ProblemWord
		if err := rows.Scan(&pw.Word, &pw.Lookups, &pw.Misses, &pw.Mastery, &pw.LevelFirstSeen, &pw.LastSeenAt); err != nil {
			return nil, fmt.Errorf("problem words: list: scan: %w", err)
		}
		out = append(out, pw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("problem words: list: %w", err)
	}
	return out, nil
}
