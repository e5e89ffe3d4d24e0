// Package matching implements the candidate-role scoring engine. Scoring is a
// pure function of the two snapshots: no state, no side effects, safe to call
// concurrently, and identical inputs always produce identical scores.
package matching

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Erprabhat8423/beyond-academy/internal/store"
)

// Weights holds the relative importance of each scoring dimension. The four
// weights must sum to exactly 1.0.
type Weights struct {
	Industry   float64 `mapstructure:"industry"`
	Location   float64 `mapstructure:"location"`
	WorkPolicy float64 `mapstructure:"work-policy"`
	Skill      float64 `mapstructure:"skill"`
}

// DefaultWeights mirror the production scoring split: industry interest is the
// dominant signal, skills the weakest because extraction lags behind intake.
func DefaultWeights() Weights {
	return Weights{Industry: 0.40, Location: 0.25, WorkPolicy: 0.20, Skill: 0.15}
}

const weightSumTolerance = 1e-9

// Breakdown is a match score with its per-dimension components, all in [0,100].
type Breakdown struct {
	Total      float64
	Industry   float64
	Location   float64
	WorkPolicy float64
	Skill      float64
}

// ErrIncomplete marks records that cannot be scored at all. Callers skip the
// pair and continue the batch.
var ErrIncomplete = errors.New("record is missing required fields")

// Engine scores candidate-role pairs with fixed weights and a fixed region
// lookup table.
type Engine struct {
	weights Weights
	regions map[string]string
}

// New validates the weights and returns an Engine. Extra region entries extend
// the built-in city-to-region table; they never override scoring semantics.
func New(w Weights, extraRegions map[string]string) (*Engine, error) {
	sum := w.Industry + w.Location + w.WorkPolicy + w.Skill
	if math.Abs(sum-1.0) > weightSumTolerance {
		return nil, fmt.Errorf("scoring weights must sum to 1.0, got %v", sum)
	}
	for _, v := range []float64{w.Industry, w.Location, w.WorkPolicy, w.Skill} {
		if v < 0 {
			return nil, fmt.Errorf("scoring weights must be non-negative, got %v", v)
		}
	}

	regions := make(map[string]string, len(builtinRegions)+len(extraRegions))
	for city, region := range builtinRegions {
		regions[city] = region
	}
	for city, region := range extraRegions {
		regions[normalize(city)] = normalize(region)
	}

	return &Engine{weights: w, regions: regions}, nil
}

// Score computes the weighted match between a candidate and a role.
func (e *Engine) Score(c store.Candidate, r store.Role) (Breakdown, error) {
	if strings.TrimSpace(c.ID) == "" {
		return Breakdown{}, fmt.Errorf("candidate id: %w", ErrIncomplete)
	}
	if strings.TrimSpace(r.ID) == "" {
		return Breakdown{}, fmt.Errorf("role id: %w", ErrIncomplete)
	}

	b := Breakdown{
		Industry:   industryComponent(c.Industries, r.Industries),
		Location:   e.locationComponent(c.Location, r.Location),
		WorkPolicy: workPolicyComponent(c.WorkPolicy, r.WorkPolicy),
		Skill:      skillComponent(c.Skills, r.RequiredSkills),
	}
	b.Total = clamp(e.weights.Industry*b.Industry +
		e.weights.Location*b.Location +
		e.weights.WorkPolicy*b.WorkPolicy +
		e.weights.Skill*b.Skill)

	return b, nil
}

// industryComponent is the fraction of the candidate's non-empty industry
// preferences found in the role's tag set, scaled to 0-100. A candidate with
// no preferences scores zero.
func industryComponent(prefs, tags []string) float64 {
	prefs = nonEmpty(prefs)
	if len(prefs) == 0 || len(tags) == 0 {
		return 0
	}

	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[normalize(tag)] = true
	}

	matched := 0
	for _, pref := range prefs {
		if tagSet[normalize(pref)] {
			matched++
		}
	}
	return 100 * float64(matched) / float64(len(prefs))
}

// locationComponent scores an exact location match 100, a same-region match
// 50 via the fixed lookup table, and anything else 0. No fuzzy matching.
func (e *Engine) locationComponent(candidate, role string) float64 {
	candidate = normalize(candidate)
	role = normalize(role)
	if candidate == "" || role == "" {
		return 0
	}
	if candidate == role {
		return 100
	}

	cr, cok := e.regions[candidate]
	rr, rok := e.regions[role]
	if cok && rok && cr == rr {
		return 50
	}
	return 0
}

// workPolicyComponent applies the fixed compatibility matrix: candidates
// preferring remote match only remote roles; office and hybrid candidates
// match office, hybrid, or remote roles. A role with no declared policy is
// treated as on-site.
func workPolicyComponent(candidate, role string) float64 {
	candidate = normalize(candidate)
	role = normalize(role)

	if candidate == store.PolicyRemote {
		if role == store.PolicyRemote {
			return 100
		}
		return 0
	}

	// Office and hybrid candidates (and candidates without a stated
	// preference) accept any arrangement.
	return 100
}

// skillComponent is the fraction of role-required skills the candidate has,
// scaled to 0-100. Absent skill data scores zero rather than disqualifying:
// extraction may simply not have run yet. The weight is intentionally not
// renormalized in that case.
func skillComponent(candidateSkills, required []string) float64 {
	required = nonEmpty(required)
	if len(candidateSkills) == 0 || len(required) == 0 {
		return 0
	}

	have := make(map[string]bool, len(candidateSkills))
	for _, skill := range candidateSkills {
		have[normalize(skill)] = true
	}

	matched := 0
	for _, skill := range required {
		if have[normalize(skill)] {
			matched++
		}
	}
	return 100 * float64(matched) / float64(len(required))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func nonEmpty(items []string) []string {
	out := items[:0:0]
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			out = append(out, item)
		}
	}
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
