package store

import (
	"context"
	"fmt"
	"time"
)

// WeekKey returns the ISO week key used as the quota reset boundary, for
// example "2026-W35". A new week key naturally starts at a zero count; nothing
// ever resets counters explicitly.
func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// TryReserve atomically reserves one send slot for the company in the ISO week
// of now. It returns true when the reservation was granted and the counter
// incremented; false leaves the counter untouched. Callers must only send
// after an approval.
func (s *Store) TryReserve(ctx context.Context, companyID string, now time.Time, limit int) (bool, error) {
	if limit <= 0 {
		return false, nil
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO email_quota (company_id, week, count) VALUES (?, ?, 1)
		ON CONFLICT(company_id, week) DO UPDATE SET count = count + 1 WHERE count < ?`,
		companyID, WeekKey(now), limit,
	)
	if err != nil {
		return false, fmt.Errorf("reserve quota for company %s: %w", companyID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("quota rows affected for company %s: %w", companyID, err)
	}
	return n > 0, nil
}

// SentThisWeek returns the current counter for the company in the ISO week of
// now. Missing rows count as zero.
func (s *Store) SentThisWeek(ctx context.Context, companyID string, now time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(count), 0) FROM email_quota WHERE company_id = ? AND week = ?`,
		companyID, WeekKey(now),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("query quota for company %s: %w", companyID, err)
	}
	return n, nil
}
