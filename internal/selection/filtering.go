package selection

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Filter represents a single exclusion step applied to scored pairs.
type Filter interface {
	Name() string
	Apply(ctx context.Context, pairs []Pair) ([]Pair, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// runFilters executes the supplied filters sequentially, returning the
// surviving pairs.
func runFilters(ctx context.Context, logger *zap.Logger, steps []Filter, pairs []Pair) ([]Pair, error) {
	for _, step := range steps {
		next, info, err := step.Apply(ctx, pairs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if logger != nil && info.Dropped > 0 {
			logger.Debug("selection filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		pairs = next
	}

	return pairs, nil
}

// contactHistoryFilter drops pairs that ever appear in contact history. The
// exclusion is permanent and independent of the prior cycle's outcome.
type contactHistoryFilter struct {
	history History
}

func (f *contactHistoryFilter) Name() string { return "contact_history" }

func (f *contactHistoryFilter) Apply(ctx context.Context, pairs []Pair) ([]Pair, Step, error) {
	initial := len(pairs)
	contacted := make(map[string]map[string]bool)

	kept := pairs[:0:0]
	for _, pair := range pairs {
		set, ok := contacted[pair.Candidate.ID]
		if !ok {
			var err error
			set, err = f.history.ContactedRoleIDs(ctx, pair.Candidate.ID)
			if err != nil {
				return nil, Step{}, fmt.Errorf("contacted roles for candidate %s: %w", pair.Candidate.ID, err)
			}
			contacted[pair.Candidate.ID] = set
		}
		if set[pair.Role.ID] {
			continue
		}
		kept = append(kept, pair)
	}

	return kept, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}, nil
}

// openCycleFilter drops pairs with a live non-terminal cycle. Unlike the
// history exclusion this is transient: once the cycle terminates the pair is
// blocked by history instead.
type openCycleFilter struct {
	cycles Cycles
}

func (f *openCycleFilter) Name() string { return "open_cycle" }

func (f *openCycleFilter) Apply(ctx context.Context, pairs []Pair) ([]Pair, Step, error) {
	initial := len(pairs)
	open := make(map[string]map[string]bool)

	kept := pairs[:0:0]
	for _, pair := range pairs {
		set, ok := open[pair.Candidate.ID]
		if !ok {
			var err error
			set, err = f.cycles.OpenRoleIDs(ctx, pair.Candidate.ID)
			if err != nil {
				return nil, Step{}, fmt.Errorf("open cycles for candidate %s: %w", pair.Candidate.ID, err)
			}
			open[pair.Candidate.ID] = set
		}
		if set[pair.Role.ID] {
			continue
		}
		kept = append(kept, pair)
	}

	return kept, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}, nil
}

// excludeRoleFilter drops a single role. Escalation uses it to keep the
// exhausted role out of the replacement set even before its history record
// lands.
type excludeRoleFilter struct {
	roleID string
}

func (f *excludeRoleFilter) Name() string { return "exclude_role" }

func (f *excludeRoleFilter) Apply(_ context.Context, pairs []Pair) ([]Pair, Step, error) {
	initial := len(pairs)
	kept := pairs[:0:0]
	for _, pair := range pairs {
		if pair.Role.ID == f.roleID {
			continue
		}
		kept = append(kept, pair)
	}
	return kept, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}, nil
}
