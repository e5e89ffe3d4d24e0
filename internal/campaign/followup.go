package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Erprabhat8423/beyond-academy/internal/logger"
	"github.com/Erprabhat8423/beyond-academy/internal/store"
)

// RunFollowUps walks every cycle in a *_SENT state. A cycle whose next stage
// is due sends it; a FOLLOWUP3_SENT cycle past the response window exhausts
// and escalates to the candidate's next roles. Due times derive purely from
// the persisted T0, so missed passes catch up on the next run.
func (m *Machine) RunFollowUps(ctx context.Context) (*Report, error) {
	cycles, err := m.store.SentCycles(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for _, cycle := range cycles {
		g.Go(func() error {
			return m.advanceCycle(gctx, cycle, report)
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	m.logger.Info("follow-up pass finished",
		zap.Int("live", len(cycles)),
		zap.Int("sent", report.Sent),
		zap.Int("deferred", report.Deferred),
		zap.Int("failed", report.Failed),
		zap.Int("exhausted", report.Exhausted),
		zap.Int("escalated", report.Escalated),
	)
	return report, nil
}

func (m *Machine) advanceCycle(ctx context.Context, cycle store.Cycle, report *Report) error {
	t0 := cycle.InitialSentAt()
	if t0 == nil {
		return fmt.Errorf("cycle %s is in state %s without an initial send time", cycle.ID, cycle.State)
	}

	if cycle.State == store.StateFollowUp3Sent {
		return m.maybeExhaust(ctx, cycle, *t0, report)
	}

	stageIdx := cycle.State.SentStages()
	due := t0.Add(time.Duration(stageIdx) * m.cfg.StageInterval)
	if m.now().Before(due) {
		return nil
	}
	return m.sendFollowUp(ctx, cycle, stageIdx, report)
}

func (m *Machine) sendFollowUp(ctx context.Context, cycle store.Cycle, stageIdx int, report *Report) error {
	log := logger.WithCycleFields(m.logger, cycle.ID, cycle.CandidateID, cycle.RoleID)

	// A response recorded since this pass listed the cycle must win; check
	// state right before committing any quota or transport work.
	current, err := m.store.Cycle(ctx, cycle.ID)
	if err != nil {
		return err
	}
	if current.State != cycle.State {
		report.add(&report.Skipped, 1)
		return nil
	}

	ok, err := m.store.TryReserve(ctx, cycle.CompanyID, m.now(), m.cfg.WeeklyCompanyLimit)
	if err != nil {
		return err
	}
	if !ok {
		log.Info("weekly company quota reached, deferring follow-up",
			zap.String("company_id", cycle.CompanyID),
			zap.String("stage", stageNames[stageIdx]))
		report.add(&report.Deferred, 1)
		return nil
	}

	initialMessageID, err := m.initialMessageID(ctx, cycle)
	if err != nil {
		return err
	}
	email, err := m.composeStage(ctx, cycle, stageIdx, initialMessageID)
	if err != nil {
		return err
	}

	// Claim the transition before touching the transport so concurrent
	// passes cannot both deliver: the compare-and-set loser skips without
	// ever reaching the sender.
	sentAt := m.now()
	if err := m.store.AdvanceStage(ctx, cycle.ID, cycle.State, stageStates[stageIdx], stageIdx, sentAt); err != nil {
		if errors.Is(err, store.ErrStaleState) {
			log.Warn("cycle advanced concurrently, skipping send",
				zap.String(logger.FieldState, string(cycle.State)))
			report.add(&report.Skipped, 1)
			return nil
		}
		return err
	}

	if err := m.deliver(ctx, cycle, email, log); err != nil {
		// Release the claim: the stage timestamp must not stand for an
		// email that never went out.
		if revertErr := m.store.RevertStage(ctx, cycle.ID, stageStates[stageIdx], cycle.State, stageIdx, m.now()); revertErr != nil {
			return revertErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// Unlike the initial send, a failed follow-up does not kill the
		// cycle. The stage stays due and the next pass retries it.
		log.Error("follow-up delivery failed, will retry next pass",
			zap.String("stage", stageNames[stageIdx]), zap.Error(err))
		report.add(&report.Failed, 1)
		return nil
	}

	log.Info("follow-up sent",
		zap.String("stage", stageNames[stageIdx]),
		zap.String("message_id", email.MessageID))
	report.add(&report.Sent, 1)
	return m.store.RecordContact(ctx, store.HistoryRecord{
		CandidateID: cycle.CandidateID,
		RoleID:      cycle.RoleID,
		Stage:       stageNames[stageIdx],
		Outcome:     store.OutcomeSent,
		MessageID:   email.MessageID,
		SentAt:      sentAt,
	})
}

// maybeExhaust closes a fully-sent cycle once the final response window has
// elapsed, then opens cycles for the candidate's next best roles.
func (m *Machine) maybeExhaust(ctx context.Context, cycle store.Cycle, t0 time.Time, report *Report) error {
	deadline := t0.Add(4 * m.cfg.StageInterval)
	if m.now().Before(deadline) {
		return nil
	}

	log := logger.WithCycleFields(m.logger, cycle.ID, cycle.CandidateID, cycle.RoleID)
	if err := m.store.SetState(ctx, cycle.ID, store.StateFollowUp3Sent, store.StateExhausted, m.now()); err != nil {
		if errors.Is(err, store.ErrStaleState) {
			log.Warn("cycle left FOLLOWUP3_SENT concurrently, skipping exhaustion")
			report.add(&report.Skipped, 1)
			return nil
		}
		return err
	}

	log.Info("cycle exhausted without a response")
	report.add(&report.Exhausted, 1)
	if err := m.store.RecordContact(ctx, store.HistoryRecord{
		CandidateID: cycle.CandidateID,
		RoleID:      cycle.RoleID,
		Stage:       store.StageFollowUp3,
		Outcome:     store.OutcomeExhausted,
		SentAt:      m.now(),
	}); err != nil {
		return err
	}

	created, err := m.escalate(ctx, cycle.CandidateID, cycle.RoleID)
	if err != nil {
		return err
	}
	report.add(&report.Escalated, len(created))
	return nil
}

// RecordResponse marks a cycle RESPONDED after a company reply. Any pending
// stages are abandoned; the terminal state blocks every further send. The
// outcome qualifies the reply in history; empty means a plain response.
func (m *Machine) RecordResponse(ctx context.Context, cycleID, outcome string) error {
	switch outcome {
	case "", store.OutcomeResponded, store.OutcomeInterested, store.OutcomeDeclined:
	default:
		return fmt.Errorf("unknown response outcome %q", outcome)
	}
	if outcome == "" {
		outcome = store.OutcomeResponded
	}

	cycle, err := m.store.Cycle(ctx, cycleID)
	if err != nil {
		return err
	}
	if cycle.State.Terminal() {
		return fmt.Errorf("cycle %s is already %s", cycleID, cycle.State)
	}

	respondedAt := m.now()
	if err := m.store.SetState(ctx, cycleID, cycle.State, store.StateResponded, respondedAt); err != nil {
		return err
	}

	// The stage names the last email actually sent; a cycle that never sent
	// anything must not read as contacted at the initial stage.
	stage := store.StageNone
	if sent := cycle.State.SentStages(); sent > 0 {
		stage = stageNames[sent-1]
	}
	logger.WithCycleFields(m.logger, cycle.ID, cycle.CandidateID, cycle.RoleID).
		Info("company responded, cycle closed", zap.String("outcome", outcome))
	return m.store.RecordContact(ctx, store.HistoryRecord{
		CandidateID: cycle.CandidateID,
		RoleID:      cycle.RoleID,
		Stage:       stage,
		Outcome:     outcome,
		SentAt:      respondedAt,
	})
}

// initialMessageID recovers the initial email's message id from contact
// history so follow-ups thread under it.
func (m *Machine) initialMessageID(ctx context.Context, cycle store.Cycle) (string, error) {
	contacts, err := m.store.ContactsForPair(ctx, cycle.CandidateID, cycle.RoleID)
	if err != nil {
		return "", err
	}
	for _, c := range contacts {
		if c.Stage == store.StageInitial && c.Outcome == store.OutcomeSent {
			return c.MessageID, nil
		}
	}
	return "", nil
}
