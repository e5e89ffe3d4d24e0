// Package selection ranks roles per candidate (and candidates per role) from
// scoring engine output, filtered by permanent contact history and live
// cycles.
package selection

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/Erprabhat8423/beyond-academy/internal/matching"
	"github.com/Erprabhat8423/beyond-academy/internal/store"
)

// DefaultTopN is how many opposite-side entities a selection returns.
const DefaultTopN = 3

// History is the read side of the contact history used for the permanent
// exclusion of previously contacted pairs.
type History interface {
	ContactedRoleIDs(ctx context.Context, candidateID string) (map[string]bool, error)
}

// Cycles is the read side of the cycle store used for the transient exclusion
// of pairs with a live cycle.
type Cycles interface {
	OpenRoleIDs(ctx context.Context, candidateID string) (map[string]bool, error)
}

// Pair is one scored candidate-role combination.
type Pair struct {
	Candidate store.Candidate
	Role      store.Role
	Score     matching.Breakdown
}

// Selector produces ranked, filtered candidate-role pairs.
type Selector struct {
	engine  *matching.Engine
	history History
	cycles  Cycles
	logger  *zap.Logger
	topN    int
}

// New returns a Selector. A topN of zero falls back to DefaultTopN.
func New(engine *matching.Engine, history History, cycles Cycles, logger *zap.Logger, topN int) *Selector {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{engine: engine, history: history, cycles: cycles, logger: logger, topN: topN}
}

// TopRoles returns the candidate's best roles, ranked by score descending with
// ties broken by ascending role id, after removing previously contacted pairs
// and pairs with a live cycle. Fewer than topN results (possibly zero) are
// returned when not enough eligible roles remain.
func (s *Selector) TopRoles(ctx context.Context, candidate store.Candidate, roles []store.Role) ([]Pair, error) {
	return s.rank(ctx, candidate, roles, nil)
}

// NextRoles is the escalation mode invoked after a cycle exhausts: it
// additionally excludes the exhausted role and returns the next best roles
// the candidate has never been contacted about.
func (s *Selector) NextRoles(ctx context.Context, candidate store.Candidate, roles []store.Role, exhaustedRoleID string) ([]Pair, error) {
	return s.rank(ctx, candidate, roles, &excludeRoleFilter{roleID: exhaustedRoleID})
}

func (s *Selector) rank(ctx context.Context, candidate store.Candidate, roles []store.Role, extra Filter) ([]Pair, error) {
	pairs := s.scoreAll(candidate, roles)

	steps := []Filter{
		&contactHistoryFilter{history: s.history},
		&openCycleFilter{cycles: s.cycles},
	}
	if extra != nil {
		steps = append(steps, extra)
	}

	pairs, err := runFilters(ctx, s.logger, steps, pairs)
	if err != nil {
		return nil, err
	}

	sortPairsByRole(pairs)
	if len(pairs) > s.topN {
		pairs = pairs[:s.topN]
	}
	return pairs, nil
}

// ScoreAll returns every scorable pairing of the candidate against the given
// roles, unfiltered and unranked. The matching run persists this as the most
// recent match view.
func (s *Selector) ScoreAll(candidate store.Candidate, roles []store.Role) []Pair {
	pairs := s.scoreAll(candidate, roles)
	sortPairsByRole(pairs)
	return pairs
}

// TopCandidates is the role-side view: the best candidates for one role,
// filtered by the same exclusions, ties broken by ascending candidate id.
func (s *Selector) TopCandidates(ctx context.Context, role store.Role, candidates []store.Candidate) ([]Pair, error) {
	var pairs []Pair
	for _, candidate := range candidates {
		score, err := s.engine.Score(candidate, role)
		if err != nil {
			if errors.Is(err, matching.ErrIncomplete) {
				s.logger.Warn("skipping unscorable pair",
					zap.String("candidate_id", candidate.ID),
					zap.String("role_id", role.ID),
					zap.Error(err),
				)
				continue
			}
			return nil, err
		}
		pairs = append(pairs, Pair{Candidate: candidate, Role: role, Score: score})
	}

	steps := []Filter{
		&contactHistoryFilter{history: s.history},
		&openCycleFilter{cycles: s.cycles},
	}
	pairs, err := runFilters(ctx, s.logger, steps, pairs)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Score.Total != pairs[j].Score.Total {
			return pairs[i].Score.Total > pairs[j].Score.Total
		}
		return pairs[i].Candidate.ID < pairs[j].Candidate.ID
	})
	if len(pairs) > s.topN {
		pairs = pairs[:s.topN]
	}
	return pairs, nil
}

func (s *Selector) scoreAll(candidate store.Candidate, roles []store.Role) []Pair {
	var pairs []Pair
	for _, role := range roles {
		if role.Status != "" && role.Status != store.RoleStatusOpen {
			continue
		}
		score, err := s.engine.Score(candidate, role)
		if err != nil {
			// One bad record never aborts the batch.
			if errors.Is(err, matching.ErrIncomplete) {
				s.logger.Warn("skipping unscorable pair",
					zap.String("candidate_id", candidate.ID),
					zap.String("role_id", role.ID),
					zap.Error(err),
				)
				continue
			}
			s.logger.Error("scoring failed",
				zap.String("candidate_id", candidate.ID),
				zap.String("role_id", role.ID),
				zap.Error(err),
			)
			continue
		}
		pairs = append(pairs, Pair{Candidate: candidate, Role: role, Score: score})
	}
	return pairs
}

// sortPairsByRole orders by score descending, then ascending role id so that
// repeated runs over identical inputs produce identical output.
func sortPairsByRole(pairs []Pair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Score.Total != pairs[j].Score.Total {
			return pairs[i].Score.Total > pairs[j].Score.Total
		}
		return pairs[i].Role.ID < pairs[j].Role.ID
	})
}
