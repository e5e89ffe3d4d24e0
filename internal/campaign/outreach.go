package campaign

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Erprabhat8423/beyond-academy/internal/ai"
	"github.com/Erprabhat8423/beyond-academy/internal/logger"
	"github.com/Erprabhat8423/beyond-academy/internal/outreach"
	"github.com/Erprabhat8423/beyond-academy/internal/store"
)

// RunOutreach processes every PENDING_SEND cycle, urgent ones first. Each
// cycle either sends its initial email, gets deferred by the weekly company
// quota, or fails permanently after the delivery budget is spent.
func (m *Machine) RunOutreach(ctx context.Context) (*Report, error) {
	pending, err := m.store.PendingCycles(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for _, cycle := range pending {
		g.Go(func() error {
			return m.sendInitial(gctx, cycle, report)
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	m.logger.Info("outreach pass finished",
		zap.Int("pending", len(pending)),
		zap.Int("sent", report.Sent),
		zap.Int("deferred", report.Deferred),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

func (m *Machine) sendInitial(ctx context.Context, cycle store.Cycle, report *Report) error {
	log := logger.WithCycleFields(m.logger, cycle.ID, cycle.CandidateID, cycle.RoleID)

	// Re-read right before doing anything: a concurrent pass or a recorded
	// response may have moved the cycle since this pass listed it.
	current, err := m.store.Cycle(ctx, cycle.ID)
	if err != nil {
		return err
	}
	if current.State != store.StatePendingSend {
		report.add(&report.Skipped, 1)
		return nil
	}

	ok, err := m.store.TryReserve(ctx, cycle.CompanyID, m.now(), m.cfg.WeeklyCompanyLimit)
	if err != nil {
		return err
	}
	if !ok {
		log.Info("weekly company quota reached, deferring initial send",
			zap.String("company_id", cycle.CompanyID))
		report.add(&report.Deferred, 1)
		return nil
	}

	email, err := m.composeStage(ctx, cycle, 0, "")
	if err != nil {
		return err
	}

	// Claim the transition before touching the transport: of any concurrent
	// passes, only the compare-and-set winner ever sends, so the email goes
	// out at most once. Losers no-op here without delivering.
	sentAt := m.now()
	if err := m.store.AdvanceStage(ctx, cycle.ID, store.StatePendingSend, store.StateInitialSent, 0, sentAt); err != nil {
		if errors.Is(err, store.ErrStaleState) {
			log.Warn("cycle left PENDING_SEND concurrently, skipping send")
			report.add(&report.Skipped, 1)
			return nil
		}
		return err
	}

	if err := m.deliver(ctx, cycle, email, log); err != nil {
		// Release the claim first so the cycle never reads as sent.
		if revertErr := m.store.RevertStage(ctx, cycle.ID, store.StateInitialSent, store.StatePendingSend, 0, m.now()); revertErr != nil {
			return revertErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// Budget spent. The cycle fails terminally and the pair is burned
		// in history so the role is never re-selected for this candidate.
		log.Error("initial delivery failed, marking cycle failed", zap.Error(err))
		if err := m.store.SetState(ctx, cycle.ID, store.StatePendingSend, store.StateFailed, m.now()); err != nil {
			if errors.Is(err, store.ErrStaleState) {
				report.add(&report.Skipped, 1)
				return nil
			}
			return err
		}
		report.add(&report.Failed, 1)
		return m.store.RecordContact(ctx, store.HistoryRecord{
			CandidateID: cycle.CandidateID,
			RoleID:      cycle.RoleID,
			Stage:       store.StageInitial,
			Outcome:     store.OutcomeSendFailed,
			SentAt:      m.now(),
		})
	}

	log.Info("initial email sent", zap.String("message_id", email.MessageID))
	report.add(&report.Sent, 1)
	return m.store.RecordContact(ctx, store.HistoryRecord{
		CandidateID: cycle.CandidateID,
		RoleID:      cycle.RoleID,
		Stage:       store.StageInitial,
		Outcome:     store.OutcomeSent,
		MessageID:   email.MessageID,
		SentAt:      sentAt,
	})
}

// composeStage loads the entities behind a cycle and builds the stage email.
// Bio refinement degrades to the raw bio; a copy problem never blocks a send.
func (m *Machine) composeStage(ctx context.Context, cycle store.Cycle, stageIdx int, initialMessageID string) (outreach.Email, error) {
	candidate, err := m.store.Candidate(ctx, cycle.CandidateID)
	if err != nil {
		return outreach.Email{}, fmt.Errorf("load candidate %s: %w", cycle.CandidateID, err)
	}
	role, err := m.store.Role(ctx, cycle.RoleID)
	if err != nil {
		return outreach.Email{}, fmt.Errorf("load role %s: %w", cycle.RoleID, err)
	}
	company, err := m.store.Company(ctx, cycle.CompanyID)
	if err != nil {
		return outreach.Email{}, fmt.Errorf("load company %s: %w", cycle.CompanyID, err)
	}

	bio := candidate.Bio
	if m.refiner != nil && stageIdx == 0 {
		refined, err := m.refiner.Refine(ctx, &ai.BioRequest{
			CandidateName: candidate.FullName,
			Bio:           candidate.Bio,
			RoleTitle:     role.Title,
			CompanyName:   company.Name,
			Industries:    role.Industries,
		})
		switch {
		case err != nil:
			m.logger.Warn("bio refinement failed, using raw bio",
				zap.String(logger.FieldCandidate, candidate.ID), zap.Error(err))
		case refined != "":
			bio = refined
		}
	}

	return outreach.Compose(outreach.StageContent{
		Candidate:        candidate,
		Role:             role,
		Company:          company,
		Bio:              bio,
		Urgent:           cycle.Urgent,
		StageIdx:         stageIdx,
		InitialMessageID: initialMessageID,
	})
}

func (m *Machine) deliver(ctx context.Context, cycle store.Cycle, email outreach.Email, log *zap.Logger) error {
	if err := m.store.RecordSendAttempt(ctx, cycle.ID, m.now()); err != nil {
		log.Warn("could not record send attempt", zap.Error(err))
	}
	return m.sender.Send(ctx, email)
}
