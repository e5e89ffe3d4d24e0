package campaign

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Erprabhat8423/beyond-academy/internal/logger"
	"github.com/Erprabhat8423/beyond-academy/internal/outreach"
	"github.com/Erprabhat8423/beyond-academy/internal/selection"
	"github.com/Erprabhat8423/beyond-academy/internal/store"
)

// Urgency thresholds in days to the candidate's start date. Visa processing
// adds roughly two months of lead time, hence the wider window.
const (
	urgentDaysVisa   = 120
	urgentDaysNoVisa = 60
)

// Urgent reports whether a candidate's outreach should be prioritised. A
// candidate without a start date is never urgent.
func (m *Machine) Urgent(c store.Candidate) bool {
	if c.StartDate.IsZero() {
		return false
	}
	days := int(c.StartDate.Sub(m.now()).Hours() / 24)
	if c.RequiresVisa {
		return days < urgentDaysVisa
	}
	return days < urgentDaysNoVisa
}

// RefreshMatches scores the candidate against every open role and replaces the
// persisted match view. Returns the scored pairs sorted by score descending.
func (m *Machine) RefreshMatches(ctx context.Context, candidateID string) ([]selection.Pair, error) {
	candidate, err := m.store.Candidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("load candidate %s: %w", candidateID, err)
	}
	roles, err := m.store.OpenRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open roles: %w", err)
	}

	pairs := m.selector.ScoreAll(candidate, roles)
	scores := make([]store.MatchScore, 0, len(pairs))
	now := m.now()
	for _, p := range pairs {
		scores = append(scores, store.MatchScore{
			CandidateID: candidate.ID,
			RoleID:      p.Role.ID,
			Total:       p.Score.Total,
			Industry:    p.Score.Industry,
			Location:    p.Score.Location,
			WorkPolicy:  p.Score.WorkPolicy,
			Skill:       p.Score.Skill,
			ComputedAt:  now,
		})
	}
	if err := m.store.ReplaceMatches(ctx, candidate.ID, scores); err != nil {
		return nil, err
	}
	return pairs, nil
}

// CreateCycles selects the candidate's top roles and opens a PENDING_SEND
// cycle for each. Already-contacted pairs and pairs with a live cycle never
// reach this point through selection; a history hit here means the filters
// and the store disagree, which is logged and skipped rather than trusted.
func (m *Machine) CreateCycles(ctx context.Context, candidateID string) ([]store.Cycle, error) {
	candidate, err := m.store.Candidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("load candidate %s: %w", candidateID, err)
	}
	roles, err := m.store.OpenRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open roles: %w", err)
	}

	pairs, err := m.selector.TopRoles(ctx, candidate, roles)
	if err != nil {
		return nil, err
	}
	return m.openCycles(ctx, candidate, pairs)
}

func (m *Machine) openCycles(ctx context.Context, candidate store.Candidate, pairs []selection.Pair) ([]store.Cycle, error) {
	urgent := m.Urgent(candidate)
	now := m.now()

	var created []store.Cycle
	for _, p := range pairs {
		contacted, err := m.store.HasContact(ctx, candidate.ID, p.Role.ID)
		if err != nil {
			return created, err
		}
		if contacted {
			m.logger.Error("selection produced an already-contacted pair, refusing to open cycle",
				zap.String(logger.FieldCandidate, candidate.ID),
				zap.String(logger.FieldRole, p.Role.ID),
			)
			continue
		}

		cycle := store.Cycle{
			ID:          uuid.NewString(),
			CandidateID: candidate.ID,
			RoleID:      p.Role.ID,
			CompanyID:   p.Role.CompanyID,
			State:       store.StatePendingSend,
			Urgent:      urgent,
			ThreadID:    outreach.NewThreadID(),
			CreatedAt:   now,
		}
		if err := m.store.CreateCycle(ctx, cycle); err != nil {
			if errors.Is(err, store.ErrOpenCycleExists) {
				m.logger.Warn("pair gained a live cycle since selection, skipping",
					zap.String(logger.FieldCandidate, candidate.ID),
					zap.String(logger.FieldRole, p.Role.ID),
				)
				continue
			}
			return created, err
		}

		fields := append(logger.CycleFields(cycle.ID, candidate.ID, p.Role.ID),
			zap.Bool("urgent", urgent),
			zap.Float64("score", p.Score.Total),
		)
		m.logger.Info("cycle opened", fields...)
		created = append(created, cycle)
	}
	return created, nil
}

// escalate opens cycles for the candidate's next best roles after a cycle
// exhausted. The exhausted role is excluded explicitly on top of the history
// exclusion that its terminal record already provides.
func (m *Machine) escalate(ctx context.Context, candidateID, exhaustedRoleID string) ([]store.Cycle, error) {
	candidate, err := m.store.Candidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("load candidate %s: %w", candidateID, err)
	}
	roles, err := m.store.OpenRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open roles: %w", err)
	}

	pairs, err := m.selector.NextRoles(ctx, candidate, roles, exhaustedRoleID)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		m.logger.Info("no eligible roles left for escalation",
			zap.String(logger.FieldCandidate, candidateID),
		)
		return nil, nil
	}
	return m.openCycles(ctx, candidate, pairs)
}
