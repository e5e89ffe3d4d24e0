package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var respondCmd = &cobra.Command{
	Use:   "respond",
	Short: "Mark an outreach cycle as responded after a company reply",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return respond(cmd)
	},
}

func init() {
	rootCmd.AddCommand(respondCmd)

	respondCmd.Flags().StringP("cycle", "c", "", "id of the cycle the company responded to")
	respondCmd.Flags().StringP("outcome", "o", "", "qualify the reply: responded, interested or declined")
	respondCmd.MarkFlagRequired("cycle")
}

func respond(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cycleID, _ := cmd.Flags().GetString("cycle")
	if cycleID == "" {
		return errors.New("a cycle id is required")
	}

	rt, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer rt.close()

	outcome, _ := cmd.Flags().GetString("outcome")
	if err := rt.machine.RecordResponse(ctx, cycleID, outcome); err != nil {
		return err
	}
	rt.logger.Info("response recorded", zap.String("cycle_id", cycleID))
	return nil
}
