package matching

import (
	"errors"
	"testing"

	"github.com/Erprabhat8423/beyond-academy/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	e, err := New(DefaultWeights(), nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestWeightsMustSumToOne(t *testing.T) {
	t.Parallel()

	if _, err := New(Weights{Industry: 0.5, Location: 0.5, WorkPolicy: 0.5, Skill: 0.5}, nil); err == nil {
		t.Fatal("expected error for weights summing to 2.0")
	}
	if _, err := New(Weights{Industry: 1.5, Location: -0.5, WorkPolicy: 0, Skill: 0}, nil); err == nil {
		t.Fatal("expected error for negative weight")
	}
	if _, err := New(DefaultWeights(), nil); err != nil {
		t.Fatalf("default weights must be valid: %v", err)
	}
}

func TestScoreComponents(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	tests := []struct {
		name      string
		candidate store.Candidate
		role      store.Role
		want      Breakdown
	}{
		{
			name: "full match",
			candidate: store.Candidate{
				ID:         "c1",
				Industries: []string{"Finance"},
				Location:   "London",
				WorkPolicy: store.PolicyHybrid,
				Skills:     []string{"Excel", "SQL"},
			},
			role: store.Role{
				ID:             "r1",
				Industries:     []string{"finance", "banking"},
				Location:       "london",
				WorkPolicy:     store.PolicyOffice,
				RequiredSkills: []string{"excel"},
			},
			want: Breakdown{Total: 100, Industry: 100, Location: 100, WorkPolicy: 100, Skill: 100},
		},
		{
			name: "half industry overlap",
			candidate: store.Candidate{
				ID:         "c1",
				Industries: []string{"Finance", "Marketing"},
				Location:   "London",
				WorkPolicy: store.PolicyOffice,
			},
			role: store.Role{
				ID:         "r1",
				Industries: []string{"Finance"},
				Location:   "London",
				WorkPolicy: store.PolicyOffice,
			},
			// 0.40*50 + 0.25*100 + 0.20*100 + 0.15*0
			want: Breakdown{Total: 65, Industry: 50, Location: 100, WorkPolicy: 100, Skill: 0},
		},
		{
			name: "same region partial location tier",
			candidate: store.Candidate{
				ID:         "c1",
				Location:   "Manchester",
				WorkPolicy: store.PolicyHybrid,
			},
			role: store.Role{
				ID:       "r1",
				Location: "London",
			},
			// 0.25*50 + 0.20*100
			want: Breakdown{Total: 32.5, Location: 50, WorkPolicy: 100},
		},
		{
			name: "remote candidate rejects office role",
			candidate: store.Candidate{
				ID:         "c1",
				WorkPolicy: store.PolicyRemote,
			},
			role: store.Role{
				ID:         "r1",
				WorkPolicy: store.PolicyOffice,
			},
			want: Breakdown{},
		},
		{
			name: "remote candidate accepts remote role",
			candidate: store.Candidate{
				ID:         "c1",
				WorkPolicy: store.PolicyRemote,
			},
			role: store.Role{
				ID:         "r1",
				WorkPolicy: store.PolicyRemote,
			},
			want: Breakdown{Total: 20, WorkPolicy: 100},
		},
		{
			name: "missing skills degrade instead of disqualify",
			candidate: store.Candidate{
				ID:         "c1",
				Industries: []string{"Finance"},
				Location:   "London",
				WorkPolicy: store.PolicyHybrid,
				// Skill extraction has not run yet.
			},
			role: store.Role{
				ID:             "r1",
				Industries:     []string{"Finance"},
				Location:       "London",
				WorkPolicy:     store.PolicyOffice,
				RequiredSkills: []string{"Excel"},
			},
			want: Breakdown{Total: 85, Industry: 100, Location: 100, WorkPolicy: 100, Skill: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := e.Score(tt.candidate, tt.role)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
			if got.Total < 0 || got.Total > 100 {
				t.Fatalf("total out of bounds: %v", got.Total)
			}
		})
	}
}

func TestScoreDeterministic(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	candidate := store.Candidate{
		ID:         "c1",
		Industries: []string{"Tech", "Finance", "Media"},
		Location:   "Berlin",
		WorkPolicy: store.PolicyHybrid,
		Skills:     []string{"Python", "SQL"},
	}
	role := store.Role{
		ID:             "r1",
		Industries:     []string{"tech"},
		Location:       "Munich",
		WorkPolicy:     store.PolicyHybrid,
		RequiredSkills: []string{"Python", "Go"},
	}

	first, err := e.Score(candidate, role)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 100; i++ {
		got, err := e.Score(candidate, role)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != first {
			t.Fatalf("score changed between calls: %+v vs %+v", first, got)
		}
	}
}

func TestScoreIncompleteRecords(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	if _, err := e.Score(store.Candidate{}, store.Role{ID: "r1"}); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete for empty candidate id, got %v", err)
	}
	if _, err := e.Score(store.Candidate{ID: "c1"}, store.Role{}); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete for empty role id, got %v", err)
	}
}

func TestUnknownLocationOnlyExactMatches(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	c := store.Candidate{ID: "c1", Location: "Reykjavik", WorkPolicy: store.PolicyOffice}

	got, err := e.Score(c, store.Role{ID: "r1", Location: "Reykjavik"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Location != 100 {
		t.Fatalf("expected exact match for unknown city, got %v", got.Location)
	}

	got, err = e.Score(c, store.Role{ID: "r1", Location: "London"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Location != 0 {
		t.Fatalf("expected zero for unknown city vs known city, got %v", got.Location)
	}
}
