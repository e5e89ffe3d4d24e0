package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Work policy values shared by candidates and roles.
const (
	PolicyRemote = "remote"
	PolicyOffice = "office"
	PolicyHybrid = "hybrid"
)

// Role status values. Matching only considers open roles.
const (
	RoleStatusOpen   = "open"
	RoleStatusClosed = "closed"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Candidate is a read-only snapshot of a candidate record supplied by the
// upstream sync. Industries is an ordered preference list of up to five
// entries. Skills may be empty until the extraction pipeline has run.
type Candidate struct {
	ID           string    `mapstructure:"id"`
	FullName     string    `mapstructure:"full_name"`
	Email        string    `mapstructure:"email"`
	Industries   []string  `mapstructure:"industries"`
	Location     string    `mapstructure:"location"`
	WorkPolicy   string    `mapstructure:"work_policy"`
	Skills       []string  `mapstructure:"skills"`
	Bio          string    `mapstructure:"bio"`
	RequiresVisa bool      `mapstructure:"requires_visa"`
	StartDate    time.Time `mapstructure:"-"`
	UpdatedAt    time.Time `mapstructure:"-"`
}

// Role is a read-only snapshot of an open position at a company.
type Role struct {
	ID             string   `mapstructure:"id"`
	CompanyID      string   `mapstructure:"company_id"`
	Title          string   `mapstructure:"title"`
	Industries     []string `mapstructure:"industries"`
	Location       string   `mapstructure:"location"`
	WorkPolicy     string   `mapstructure:"work_policy"`
	RequiredSkills []string `mapstructure:"required_skills"`
	Status         string   `mapstructure:"status"`
	UpdatedAt      time.Time
}

// Company holds the outreach contact for a set of roles.
type Company struct {
	ID           string `mapstructure:"id"`
	Name         string `mapstructure:"name"`
	ContactEmail string `mapstructure:"contact_email"`
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func decodeList(v string) []string {
	if v == "" || v == "[]" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(v), &items); err != nil {
		return nil
	}
	return items
}

// UpsertCandidate stores or replaces a candidate snapshot.
func (s *Store) UpsertCandidate(ctx context.Context, c Candidate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candidates (id, full_name, email, industries, location, work_policy, skills, bio, requires_visa, start_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name,
			email = excluded.email,
			industries = excluded.industries,
			location = excluded.location,
			work_policy = excluded.work_policy,
			skills = excluded.skills,
			bio = excluded.bio,
			requires_visa = excluded.requires_visa,
			start_date = excluded.start_date,
			updated_at = excluded.updated_at`,
		c.ID, c.FullName, c.Email, encodeList(c.Industries), c.Location, c.WorkPolicy,
		encodeList(c.Skills), c.Bio, boolToInt(c.RequiresVisa), formatTime(c.StartDate), formatTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert candidate %s: %w", c.ID, err)
	}
	return nil
}

// UpsertRole stores or replaces a role snapshot.
func (s *Store) UpsertRole(ctx context.Context, r Role) error {
	status := r.Status
	if status == "" {
		status = RoleStatusOpen
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roles (id, company_id, title, industries, location, work_policy, required_skills, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			company_id = excluded.company_id,
			title = excluded.title,
			industries = excluded.industries,
			location = excluded.location,
			work_policy = excluded.work_policy,
			required_skills = excluded.required_skills,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		r.ID, r.CompanyID, r.Title, encodeList(r.Industries), r.Location, r.WorkPolicy,
		encodeList(r.RequiredSkills), status, formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert role %s: %w", r.ID, err)
	}
	return nil
}

// UpsertCompany stores or replaces a company snapshot.
func (s *Store) UpsertCompany(ctx context.Context, c Company) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO companies (id, name, contact_email)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			contact_email = excluded.contact_email`,
		c.ID, c.Name, c.ContactEmail,
	)
	if err != nil {
		return fmt.Errorf("upsert company %s: %w", c.ID, err)
	}
	return nil
}

// Candidate returns a single candidate snapshot.
func (s *Store) Candidate(ctx context.Context, id string) (Candidate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, industries, location, work_policy, skills, bio, requires_visa, start_date, updated_at
		FROM candidates WHERE id = ?`, id)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Candidate{}, fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}
	return c, err
}

// Candidates returns all candidate snapshots ordered by identifier.
func (s *Store) Candidates(ctx context.Context) ([]Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_name, email, industries, location, work_policy, skills, bio, requires_visa, start_date, updated_at
		FROM candidates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// OpenRoles returns snapshots of all roles still accepting candidates,
// ordered by identifier.
func (s *Store) OpenRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, title, industries, location, work_policy, required_skills, status, updated_at
		FROM roles WHERE status = ? ORDER BY id`, RoleStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("query open roles: %w", err)
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Role returns a single role snapshot.
func (s *Store) Role(ctx context.Context, id string) (Role, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, title, industries, location, work_policy, required_skills, status, updated_at
		FROM roles WHERE id = ?`, id)
	r, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Role{}, fmt.Errorf("role %s: %w", id, ErrNotFound)
	}
	return r, err
}

// Company returns a single company snapshot.
func (s *Store) Company(ctx context.Context, id string) (Company, error) {
	var c Company
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, contact_email FROM companies WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.ContactEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return Company{}, fmt.Errorf("company %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Company{}, fmt.Errorf("query company %s: %w", id, err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (Candidate, error) {
	var c Candidate
	var industries, skills, startDate, updatedAt string
	var visa int
	if err := row.Scan(&c.ID, &c.FullName, &c.Email, &industries, &c.Location, &c.WorkPolicy,
		&skills, &c.Bio, &visa, &startDate, &updatedAt); err != nil {
		return Candidate{}, err
	}
	c.Industries = decodeList(industries)
	c.Skills = decodeList(skills)
	c.RequiresVisa = visa != 0

	var err error
	if c.StartDate, err = parseTime(startDate); err != nil {
		return Candidate{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Candidate{}, err
	}
	return c, nil
}

func scanRole(row rowScanner) (Role, error) {
	var r Role
	var industries, skills, updatedAt string
	if err := row.Scan(&r.ID, &r.CompanyID, &r.Title, &industries, &r.Location, &r.WorkPolicy,
		&skills, &r.Status, &updatedAt); err != nil {
		return Role{}, err
	}
	r.Industries = decodeList(industries)
	r.RequiredSkills = decodeList(skills)

	var err error
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Role{}, err
	}
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
