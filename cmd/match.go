package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Score candidates against open roles, persist the match view and open outreach cycles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("candidate", "c", "", "match a single candidate instead of all of them")
	matchCmd.Flags().Bool("dry-run", false, "score and persist the match view without opening outreach cycles")
}

func match(cmd *cobra.Command) error {
	ctx := cmd.Context()

	rt, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer rt.close()

	candidateIDs, err := matchTargets(cmd, rt)
	if err != nil {
		return err
	}
	if len(candidateIDs) == 0 {
		rt.logger.Info("exiting", zap.String("reason", "no candidates in the store"))
		return nil
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")

	opened := 0
	for _, id := range candidateIDs {
		pairs, err := rt.machine.RefreshMatches(ctx, id)
		if err != nil {
			return fmt.Errorf("matching candidate %s: %w", id, err)
		}
		rt.logger.Info("match view refreshed",
			zap.String("candidate_id", id),
			zap.Int("scored_roles", len(pairs)),
		)
		if dryRun {
			continue
		}

		created, err := rt.machine.CreateCycles(ctx, id)
		if err != nil {
			return fmt.Errorf("opening cycles for candidate %s: %w", id, err)
		}
		opened += len(created)
	}

	if !dryRun && opened == 0 {
		rt.logger.Info("no new cycles", zap.String("reason", "no eligible candidate-role pairs left"))
	}
	rt.logger.Info("matching finished",
		zap.Int("candidates", len(candidateIDs)),
		zap.Int("cycles_opened", opened),
	)
	return nil
}

func matchTargets(cmd *cobra.Command, rt *runtime) ([]string, error) {
	if id, _ := cmd.Flags().GetString("candidate"); id != "" {
		return []string{id}, nil
	}

	candidates, err := rt.store.Candidates(cmd.Context())
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	return ids, nil
}
