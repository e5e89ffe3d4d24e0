package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var followupCmd = &cobra.Command{
	Use:   "followup",
	Short: "Send due follow-ups and close out cycles past their response window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runFollowUps(cmd)
	},
}

func init() {
	rootCmd.AddCommand(followupCmd)
}

func runFollowUps(cmd *cobra.Command) error {
	ctx := cmd.Context()

	unlock, err := acquirePassLock()
	if err != nil {
		return err
	}
	defer unlock()

	rt, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer rt.close()

	report, err := rt.machine.RunFollowUps(ctx)
	if err != nil {
		return err
	}
	if !report.Activity() {
		rt.logger.Info("exiting", zap.String("reason", "no follow-ups due"))
	}
	return nil
}
