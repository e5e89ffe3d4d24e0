package store

import (
	"context"
	"fmt"
	"time"
)

// Stage names recorded in contact history. StageNone marks records for cycles
// that closed before any email went out.
const (
	StageNone      = "none"
	StageInitial   = "initial"
	StageFollowUp1 = "follow_up_1"
	StageFollowUp2 = "follow_up_2"
	StageFollowUp3 = "follow_up_3"
)

// History outcomes.
const (
	OutcomeSent       = "sent"
	OutcomeResponded  = "responded"
	OutcomeInterested = "interested"
	OutcomeDeclined   = "declined"
	OutcomeSendFailed = "send_failed"
	OutcomeExhausted  = "exhausted"
)

// HistoryRecord is an immutable contact event. Once a pair appears here it is
// permanently excluded from selection, whatever the outcome.
type HistoryRecord struct {
	CandidateID string
	RoleID      string
	Stage       string
	Outcome     string
	MessageID   string
	SentAt      time.Time
}

// RecordContact appends a history record. History is append-only; nothing ever
// updates or deletes rows in this table.
func (s *Store) RecordContact(ctx context.Context, rec HistoryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_history (candidate_id, role_id, stage, outcome, message_id, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.CandidateID, rec.RoleID, rec.Stage, rec.Outcome, rec.MessageID, formatTime(rec.SentAt),
	)
	if err != nil {
		return fmt.Errorf("record contact %s/%s: %w", rec.CandidateID, rec.RoleID, err)
	}
	return nil
}

// HasContact reports whether any history record exists for the pair.
func (s *Store) HasContact(ctx context.Context, candidateID, roleID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM contact_history WHERE candidate_id = ? AND role_id = ?`,
		candidateID, roleID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query contact history %s/%s: %w", candidateID, roleID, err)
	}
	return n > 0, nil
}

// ContactedRoleIDs returns the set of roles the candidate was ever contacted
// about. Selection uses this as the permanent exclusion set.
func (s *Store) ContactedRoleIDs(ctx context.Context, candidateID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT role_id FROM contact_history WHERE candidate_id = ?`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("query contacted roles for candidate %s: %w", candidateID, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// ContactsForPair returns the full history for a pair, oldest first.
func (s *Store) ContactsForPair(ctx context.Context, candidateID, roleID string) ([]HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT candidate_id, role_id, stage, outcome, message_id, sent_at
		FROM contact_history WHERE candidate_id = ? AND role_id = ? ORDER BY sent_at, id`,
		candidateID, roleID)
	if err != nil {
		return nil, fmt.Errorf("query contacts %s/%s: %w", candidateID, roleID, err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		var sentAt string
		if err := rows.Scan(&rec.CandidateID, &rec.RoleID, &rec.Stage, &rec.Outcome, &rec.MessageID, &sentAt); err != nil {
			return nil, err
		}
		if rec.SentAt, err = parseTime(sentAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
