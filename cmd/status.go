package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Erprabhat8423/beyond-academy/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a candidate's match view, live cycles and contact history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return status(cmd)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringP("candidate", "c", "", "candidate id to report on")
	statusCmd.Flags().StringP("role", "r", "", "report the best eligible candidates for a role instead")
	statusCmd.MarkFlagsOneRequired("candidate", "role")
}

type cycleStatus struct {
	ID           string     `json:"id"`
	RoleID       string     `json:"role_id"`
	CompanyID    string     `json:"company_id"`
	State        string     `json:"state"`
	Urgent       bool       `json:"urgent"`
	SendAttempts int        `json:"send_attempts"`
	InitialSent  *time.Time `json:"initial_sent,omitempty"`
	LastStage    *time.Time `json:"last_stage,omitempty"`
}

type matchStatus struct {
	RoleID string  `json:"role_id"`
	Total  float64 `json:"total"`
}

type contactStatus struct {
	RoleID  string    `json:"role_id"`
	Stage   string    `json:"stage"`
	Outcome string    `json:"outcome"`
	SentAt  time.Time `json:"sent_at"`
}

type candidateStatus struct {
	Candidate string          `json:"candidate"`
	Name      string          `json:"name"`
	Matches   []matchStatus   `json:"matches"`
	Cycles    []cycleStatus   `json:"cycles"`
	Contacts  []contactStatus `json:"contacts"`
}

func status(cmd *cobra.Command) error {
	ctx := cmd.Context()

	candidateID, _ := cmd.Flags().GetString("candidate")
	roleID, _ := cmd.Flags().GetString("role")
	if candidateID == "" && roleID == "" {
		return errors.New("a candidate or role id is required")
	}

	rt, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer rt.close()

	if roleID != "" {
		return roleStatus(cmd, rt, roleID)
	}

	report, err := buildStatus(ctx, rt.store, candidateID)
	if err != nil {
		return err
	}

	pretty, _ := json.MarshalIndent(report, "", "  ")
	rt.logger.Info(string(pretty), zap.Int("cycles", len(report.Cycles)))
	return nil
}

// roleStatus is the role-side view: the best eligible candidates for one role.
func roleStatus(cmd *cobra.Command, rt *runtime, roleID string) error {
	ctx := cmd.Context()

	role, err := rt.store.Role(ctx, roleID)
	if err != nil {
		return err
	}
	candidates, err := rt.store.Candidates(ctx)
	if err != nil {
		return err
	}

	pairs, err := rt.selector.TopCandidates(ctx, role, candidates)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		rt.logger.Info("exiting", zap.String("reason", "no eligible candidates for this role"))
		return nil
	}

	type rankedCandidate struct {
		CandidateID string  `json:"candidate_id"`
		Name        string  `json:"name"`
		Total       float64 `json:"total"`
	}
	ranked := make([]rankedCandidate, 0, len(pairs))
	for _, p := range pairs {
		ranked = append(ranked, rankedCandidate{
			CandidateID: p.Candidate.ID,
			Name:        p.Candidate.FullName,
			Total:       p.Score.Total,
		})
	}

	pretty, _ := json.MarshalIndent(ranked, "", "  ")
	rt.logger.Info(string(pretty), zap.String("role_id", roleID))
	return nil
}

func buildStatus(ctx context.Context, st *store.Store, candidateID string) (*candidateStatus, error) {
	candidate, err := st.Candidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	report := &candidateStatus{Candidate: candidate.ID, Name: candidate.FullName}

	matches, err := st.MatchesForCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		report.Matches = append(report.Matches, matchStatus{RoleID: m.RoleID, Total: m.Total})
	}

	cycles, err := st.CyclesForCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	for _, c := range cycles {
		cs := cycleStatus{
			ID:           c.ID,
			RoleID:       c.RoleID,
			CompanyID:    c.CompanyID,
			State:        string(c.State),
			Urgent:       c.Urgent,
			SendAttempts: c.SendAttempts,
			InitialSent:  c.InitialSentAt(),
		}
		for i := len(c.StageSentAt) - 1; i >= 0; i-- {
			if c.StageSentAt[i] != nil {
				cs.LastStage = c.StageSentAt[i]
				break
			}
		}
		report.Cycles = append(report.Cycles, cs)

		contacts, err := st.ContactsForPair(ctx, candidateID, c.RoleID)
		if err != nil {
			return nil, err
		}
		for _, rec := range contacts {
			report.Contacts = append(report.Contacts, contactStatus{
				RoleID:  rec.RoleID,
				Stage:   rec.Stage,
				Outcome: rec.Outcome,
				SentAt:  rec.SentAt,
			})
		}
	}
	return report, nil
}
