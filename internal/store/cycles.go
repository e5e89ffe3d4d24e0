package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// State is a stage of an outreach cycle's lifecycle.
type State string

const (
	StatePendingSend   State = "PENDING_SEND"
	StateInitialSent   State = "INITIAL_SENT"
	StateFollowUp1Sent State = "FOLLOWUP1_SENT"
	StateFollowUp2Sent State = "FOLLOWUP2_SENT"
	StateFollowUp3Sent State = "FOLLOWUP3_SENT"
	StateExhausted     State = "EXHAUSTED"
	StateResponded     State = "RESPONDED"
	StateFailed        State = "FAILED"
)

// Terminal reports whether the state can never transition again.
func (s State) Terminal() bool {
	switch s {
	case StateResponded, StateExhausted, StateFailed:
		return true
	}
	return false
}

// SentStages returns how many stage emails a cycle in this state has sent.
func (s State) SentStages() int {
	switch s {
	case StateInitialSent:
		return 1
	case StateFollowUp1Sent:
		return 2
	case StateFollowUp2Sent:
		return 3
	case StateFollowUp3Sent:
		return 4
	}
	return 0
}

var (
	// ErrStaleState is returned when a compare-and-set transition observes a
	// cycle whose state no longer matches the expected precondition.
	ErrStaleState = errors.New("cycle state changed concurrently")

	// ErrOpenCycleExists is returned when creating a cycle for a pair that
	// already has a non-terminal cycle.
	ErrOpenCycleExists = errors.New("open cycle already exists for pair")
)

// Cycle is one outreach attempt for a (candidate, role) pair. StageSentAt
// holds T0..T3 in order; entries are nil until the stage email went out.
type Cycle struct {
	ID           string
	CandidateID  string
	RoleID       string
	CompanyID    string
	State        State
	Urgent       bool
	ThreadID     string
	SendAttempts int
	StageSentAt  [4]*time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InitialSentAt returns T0, the anchor for the entire follow-up cadence.
func (c *Cycle) InitialSentAt() *time.Time {
	return c.StageSentAt[0]
}

// CreateCycle inserts a fresh PENDING_SEND cycle. The partial unique index on
// non-terminal (candidate, role) pairs rejects concurrent duplicates.
func (s *Store) CreateCycle(ctx context.Context, c Cycle) error {
	now := formatTime(c.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outreach_cycles (id, candidate_id, role_id, company_id, state, urgent, thread_id, send_attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		c.ID, c.CandidateID, c.RoleID, c.CompanyID, string(StatePendingSend), boolToInt(c.Urgent), c.ThreadID, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("cycle %s/%s: %w", c.CandidateID, c.RoleID, ErrOpenCycleExists)
		}
		return fmt.Errorf("create cycle %s: %w", c.ID, err)
	}
	return nil
}

// AdvanceStage performs the compare-and-set transition from -> to, recording
// the stage timestamp for stageIdx (0..3). Exactly one of any concurrent
// attempts succeeds; the rest get ErrStaleState.
func (s *Store) AdvanceStage(ctx context.Context, cycleID string, from, to State, stageIdx int, sentAt time.Time) error {
	if stageIdx < 0 || stageIdx > 3 {
		return fmt.Errorf("stage index %d out of range", stageIdx)
	}
	col := fmt.Sprintf("t%d", stageIdx)
	query := fmt.Sprintf(
		`UPDATE outreach_cycles SET state = ?, %s = ?, updated_at = ? WHERE id = ? AND state = ?`, col)

	res, err := s.db.ExecContext(ctx, query,
		string(to), formatTime(sentAt), formatTime(sentAt), cycleID, string(from))
	if err != nil {
		return fmt.Errorf("advance cycle %s to %s: %w", cycleID, to, err)
	}
	return casResult(res, cycleID, from)
}

// RevertStage undoes a claimed stage transition after delivery failed, moving
// the cycle back to the prior state and clearing the stage timestamp so the
// next pass retries the send.
func (s *Store) RevertStage(ctx context.Context, cycleID string, from, to State, stageIdx int, now time.Time) error {
	if stageIdx < 0 || stageIdx > 3 {
		return fmt.Errorf("stage index %d out of range", stageIdx)
	}
	query := fmt.Sprintf(
		`UPDATE outreach_cycles SET state = ?, t%d = NULL, updated_at = ? WHERE id = ? AND state = ?`, stageIdx)

	res, err := s.db.ExecContext(ctx, query,
		string(to), formatTime(now), cycleID, string(from))
	if err != nil {
		return fmt.Errorf("revert cycle %s to %s: %w", cycleID, to, err)
	}
	return casResult(res, cycleID, from)
}

// SetState performs a compare-and-set transition without touching stage
// timestamps. Used for RESPONDED, EXHAUSTED and FAILED.
func (s *Store) SetState(ctx context.Context, cycleID string, from, to State, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE outreach_cycles SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		string(to), formatTime(now), cycleID, string(from))
	if err != nil {
		return fmt.Errorf("set cycle %s state %s: %w", cycleID, to, err)
	}
	return casResult(res, cycleID, from)
}

// RecordSendAttempt bumps the transport attempt counter for a pending cycle.
func (s *Store) RecordSendAttempt(ctx context.Context, cycleID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outreach_cycles SET send_attempts = send_attempts + 1, updated_at = ? WHERE id = ?`,
		formatTime(now), cycleID)
	if err != nil {
		return fmt.Errorf("record send attempt for cycle %s: %w", cycleID, err)
	}
	return nil
}

// Cycle returns a single cycle by id.
func (s *Store) Cycle(ctx context.Context, id string) (Cycle, error) {
	row := s.db.QueryRowContext(ctx, cycleColumns+` WHERE id = ?`, id)
	c, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Cycle{}, fmt.Errorf("cycle %s: %w", id, ErrNotFound)
	}
	return c, err
}

// PendingCycles returns all PENDING_SEND cycles, urgent first, then oldest
// first, then by id for a reproducible order.
func (s *Store) PendingCycles(ctx context.Context) ([]Cycle, error) {
	return s.queryCycles(ctx,
		cycleColumns+` WHERE state = ? ORDER BY urgent DESC, created_at, id`,
		string(StatePendingSend))
}

// SentCycles returns all cycles that have sent at least one stage and are not
// yet terminal, ordered urgent first for pass prioritisation.
func (s *Store) SentCycles(ctx context.Context) ([]Cycle, error) {
	return s.queryCycles(ctx,
		cycleColumns+` WHERE state IN (?, ?, ?, ?) ORDER BY urgent DESC, created_at, id`,
		string(StateInitialSent), string(StateFollowUp1Sent), string(StateFollowUp2Sent), string(StateFollowUp3Sent))
}

// CyclesForCandidate returns every cycle for the candidate, newest first.
func (s *Store) CyclesForCandidate(ctx context.Context, candidateID string) ([]Cycle, error) {
	return s.queryCycles(ctx,
		cycleColumns+` WHERE candidate_id = ? ORDER BY created_at DESC, id`, candidateID)
}

// HasOpenCycle reports whether a non-terminal cycle exists for the pair.
func (s *Store) HasOpenCycle(ctx context.Context, candidateID, roleID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM outreach_cycles
		WHERE candidate_id = ? AND role_id = ? AND state NOT IN (?, ?, ?)`,
		candidateID, roleID, string(StateResponded), string(StateExhausted), string(StateFailed),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query open cycle %s/%s: %w", candidateID, roleID, err)
	}
	return n > 0, nil
}

// OpenRoleIDs returns role ids with a non-terminal cycle for the candidate.
func (s *Store) OpenRoleIDs(ctx context.Context, candidateID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role_id FROM outreach_cycles
		WHERE candidate_id = ? AND state NOT IN (?, ?, ?)`,
		candidateID, string(StateResponded), string(StateExhausted), string(StateFailed))
	if err != nil {
		return nil, fmt.Errorf("query open roles for candidate %s: %w", candidateID, err)
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

const cycleColumns = `
	SELECT id, candidate_id, role_id, company_id, state, urgent, thread_id, send_attempts,
	       t0, t1, t2, t3, created_at, updated_at
	FROM outreach_cycles`

func (s *Store) queryCycles(ctx context.Context, query string, args ...any) ([]Cycle, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var out []Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCycle(row rowScanner) (Cycle, error) {
	var c Cycle
	var state, createdAt, updatedAt string
	var urgent int
	var stamps [4]sql.NullString
	if err := row.Scan(&c.ID, &c.CandidateID, &c.RoleID, &c.CompanyID, &state, &urgent, &c.ThreadID,
		&c.SendAttempts, &stamps[0], &stamps[1], &stamps[2], &stamps[3], &createdAt, &updatedAt); err != nil {
		return Cycle{}, err
	}
	c.State = State(state)
	c.Urgent = urgent != 0

	var err error
	for i, st := range stamps {
		if c.StageSentAt[i], err = parseNullTime(st); err != nil {
			return Cycle{}, err
		}
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return Cycle{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Cycle{}, err
	}
	return c, nil
}

func casResult(res sql.Result, cycleID string, from State) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for cycle %s: %w", cycleID, err)
	}
	if n == 0 {
		return fmt.Errorf("cycle %s no longer in %s: %w", cycleID, from, ErrStaleState)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
