package store

import (
	"context"
	"fmt"
	"time"
)

// MatchScore is the most recent scoring view for a (candidate, role) pair. It
// is replaced wholesale on every matching run and carries no authority over
// contact history.
type MatchScore struct {
	CandidateID string
	RoleID      string
	Total       float64
	Industry    float64
	Location    float64
	WorkPolicy  float64
	Skill       float64
	ComputedAt  time.Time
}

// ReplaceMatches drops the candidate's previous match view and stores the new
// one in a single transaction.
func (s *Store) ReplaceMatches(ctx context.Context, candidateID string, scores []MatchScore) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin match replace for candidate %s: %w", candidateID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM match_scores WHERE candidate_id = ?`, candidateID); err != nil {
		return fmt.Errorf("clear matches for candidate %s: %w", candidateID, err)
	}

	for _, m := range scores {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO match_scores (candidate_id, role_id, total, industry, location, work_policy, skill, computed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.CandidateID, m.RoleID, m.Total, m.Industry, m.Location, m.WorkPolicy, m.Skill, formatTime(m.ComputedAt),
		); err != nil {
			return fmt.Errorf("store match %s/%s: %w", m.CandidateID, m.RoleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit match replace for candidate %s: %w", candidateID, err)
	}
	return nil
}

// MatchesForCandidate returns the stored match view, best score first with
// ties broken by ascending role id.
func (s *Store) MatchesForCandidate(ctx context.Context, candidateID string) ([]MatchScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT candidate_id, role_id, total, industry, location, work_policy, skill, computed_at
		FROM match_scores WHERE candidate_id = ? ORDER BY total DESC, role_id`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("query matches for candidate %s: %w", candidateID, err)
	}
	defer rows.Close()

	var out []MatchScore
	for rows.Next() {
		var m MatchScore
		var computedAt string
		if err := rows.Scan(&m.CandidateID, &m.RoleID, &m.Total, &m.Industry, &m.Location,
			&m.WorkPolicy, &m.Skill, &computedAt); err != nil {
			return nil, err
		}
		if m.ComputedAt, err = parseTime(computedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
