package selection

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/Erprabhat8423/beyond-academy/internal/matching"
	"github.com/Erprabhat8423/beyond-academy/internal/store"
)

type stubHistory struct {
	contacted map[string]map[string]bool
}

func (s *stubHistory) ContactedRoleIDs(_ context.Context, candidateID string) (map[string]bool, error) {
	if s.contacted == nil {
		return map[string]bool{}, nil
	}
	set, ok := s.contacted[candidateID]
	if !ok {
		return map[string]bool{}, nil
	}
	return set, nil
}

type stubCycles struct {
	open map[string]map[string]bool
}

func (s *stubCycles) OpenRoleIDs(_ context.Context, candidateID string) (map[string]bool, error) {
	if s.open == nil {
		return map[string]bool{}, nil
	}
	set, ok := s.open[candidateID]
	if !ok {
		return map[string]bool{}, nil
	}
	return set, nil
}

func newTestSelector(t *testing.T, history *stubHistory, cycles *stubCycles) *Selector {
	t.Helper()

	engine, err := matching.New(matching.DefaultWeights(), nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if history == nil {
		history = &stubHistory{}
	}
	if cycles == nil {
		cycles = &stubCycles{}
	}
	return New(engine, history, cycles, zap.NewNop(), DefaultTopN)
}

func testCandidate() store.Candidate {
	return store.Candidate{
		ID:         "cand-1",
		Industries: []string{"Finance"},
		Location:   "London",
		WorkPolicy: store.PolicyHybrid,
	}
}

// roleSet returns roles with descending affinity for the test candidate:
// role-a and role-b tie at the top, role-c is location-only, role-d is a
// policy mismatch for remote candidates but matches here.
func roleSet() []store.Role {
	finance := []string{"Finance"}
	return []store.Role{
		{ID: "role-b", CompanyID: "co-1", Industries: finance, Location: "London", WorkPolicy: store.PolicyOffice},
		{ID: "role-a", CompanyID: "co-2", Industries: finance, Location: "London", WorkPolicy: store.PolicyHybrid},
		{ID: "role-c", CompanyID: "co-3", Location: "London", WorkPolicy: store.PolicyOffice},
		{ID: "role-d", CompanyID: "co-4", Location: "Manchester", WorkPolicy: store.PolicyOffice},
	}
}

func idsOf(pairs []Pair) []string {
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.Role.ID)
	}
	return out
}

func TestTopRolesStableOrdering(t *testing.T) {
	t.Parallel()

	s := newTestSelector(t, nil, nil)
	ctx := context.Background()

	first, err := s.TopRoles(ctx, testCandidate(), roleSet())
	if err != nil {
		t.Fatalf("top roles: %v", err)
	}

	// role-a and role-b score identically; the tie must break on role id.
	want := []string{"role-a", "role-b", "role-c"}
	got := idsOf(first)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	for i := 0; i < 20; i++ {
		again, err := s.TopRoles(ctx, testCandidate(), roleSet())
		if err != nil {
			t.Fatalf("top roles: %v", err)
		}
		for j := range first {
			if again[j].Role.ID != first[j].Role.ID {
				t.Fatalf("ranking changed between runs: %v vs %v", idsOf(first), idsOf(again))
			}
		}
	}
}

func TestTopRolesPermanentHistoryExclusion(t *testing.T) {
	t.Parallel()

	history := &stubHistory{contacted: map[string]map[string]bool{
		"cand-1": {"role-a": true},
	}}
	s := newTestSelector(t, history, nil)

	got, err := s.TopRoles(context.Background(), testCandidate(), roleSet())
	if err != nil {
		t.Fatalf("top roles: %v", err)
	}

	for _, p := range got {
		if p.Role.ID == "role-a" {
			t.Fatal("previously contacted role must never be re-proposed")
		}
	}
	want := []string{"role-b", "role-c", "role-d"}
	got2 := idsOf(got)
	for i := range want {
		if got2[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got2)
		}
	}
}

func TestTopRolesOpenCycleExclusion(t *testing.T) {
	t.Parallel()

	cycles := &stubCycles{open: map[string]map[string]bool{
		"cand-1": {"role-b": true},
	}}
	s := newTestSelector(t, nil, cycles)

	got, err := s.TopRoles(context.Background(), testCandidate(), roleSet())
	if err != nil {
		t.Fatalf("top roles: %v", err)
	}
	for _, p := range got {
		if p.Role.ID == "role-b" {
			t.Fatal("pair with a live cycle must be excluded")
		}
	}
}

func TestNextRolesEscalation(t *testing.T) {
	t.Parallel()

	history := &stubHistory{contacted: map[string]map[string]bool{
		"cand-1": {"role-a": true},
	}}
	s := newTestSelector(t, history, nil)

	got, err := s.NextRoles(context.Background(), testCandidate(), roleSet(), "role-a")
	if err != nil {
		t.Fatalf("next roles: %v", err)
	}

	want := []string{"role-b", "role-c", "role-d"}
	got2 := idsOf(got)
	if len(got2) != len(want) {
		t.Fatalf("expected %v, got %v", want, got2)
	}
	for i := range want {
		if got2[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got2)
		}
	}
}

func TestNextRolesFewerThanTopN(t *testing.T) {
	t.Parallel()

	history := &stubHistory{contacted: map[string]map[string]bool{
		"cand-1": {"role-a": true, "role-b": true, "role-c": true},
	}}
	s := newTestSelector(t, history, nil)

	got, err := s.NextRoles(context.Background(), testCandidate(), roleSet(), "role-a")
	if err != nil {
		t.Fatalf("next roles: %v", err)
	}
	if len(got) != 1 || got[0].Role.ID != "role-d" {
		t.Fatalf("expected only role-d, got %v", idsOf(got))
	}

	// With everything contacted, escalation returns zero pairs, not an error.
	history.contacted["cand-1"]["role-d"] = true
	got, err = s.NextRoles(context.Background(), testCandidate(), roleSet(), "role-a")
	if err != nil {
		t.Fatalf("next roles: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no roles, got %v", idsOf(got))
	}
}

func TestScoreAllSkipsClosedAndBadRecords(t *testing.T) {
	t.Parallel()

	s := newTestSelector(t, nil, nil)
	roles := append(roleSet(),
		store.Role{ID: "role-closed", Status: store.RoleStatusClosed, Industries: []string{"Finance"}},
		store.Role{ /* missing id: skipped, not fatal */ },
	)

	pairs := s.ScoreAll(testCandidate(), roles)
	for _, p := range pairs {
		if p.Role.ID == "role-closed" || p.Role.ID == "" {
			t.Fatalf("unexpected pair in score view: %+v", p.Role)
		}
	}
	if len(pairs) != 4 {
		t.Fatalf("expected 4 scored pairs, got %d", len(pairs))
	}
}

func TestTopCandidates(t *testing.T) {
	t.Parallel()

	s := newTestSelector(t, nil, nil)
	role := store.Role{ID: "role-1", Industries: []string{"Finance"}, Location: "London", WorkPolicy: store.PolicyOffice}

	candidates := []store.Candidate{
		{ID: "cand-b", Industries: []string{"Finance"}, Location: "London", WorkPolicy: store.PolicyHybrid},
		{ID: "cand-a", Industries: []string{"Finance"}, Location: "London", WorkPolicy: store.PolicyOffice},
		{ID: "cand-c", Location: "Manchester", WorkPolicy: store.PolicyOffice},
	}

	got, err := s.TopCandidates(context.Background(), role, candidates)
	if err != nil {
		t.Fatalf("top candidates: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0].Candidate.ID != "cand-a" || got[1].Candidate.ID != "cand-b" {
		t.Fatalf("tie must break on candidate id: %s, %s", got[0].Candidate.ID, got[1].Candidate.ID)
	}
}
