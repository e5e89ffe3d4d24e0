package cmd

import (
	"fmt"

	"github.com/gofrs/flock"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var outreachCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Send the initial email for every pending outreach cycle",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOutreach(cmd)
	},
}

func init() {
	rootCmd.AddCommand(outreachCmd)

	outreachCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before sending")
}

func runOutreach(cmd *cobra.Command) error {
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

	pending, err := rt.store.PendingCycles(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		rt.logger.Info("exiting", zap.String("reason", "no pending cycles"))
		return nil
	}

	if auto, _ := cmd.Flags().GetBool("auto-approve"); !auto {
		prompt := promptui.Select{
			Label: fmt.Sprintf("Send initial emails for %d pending cycles?", len(pending)),
			Items: []string{PromptYes, PromptNo},
		}
		_, action, err := prompt.Run()
		if err != nil {
			return err
		}
		if action != PromptYes {
			rt.logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return nil
		}
	}

	report, err := rt.machine.RunOutreach(ctx)
	if err != nil {
		return err
	}
	if !report.Activity() {
		rt.logger.Info("no emails went out", zap.Int("deferred", report.Deferred))
	}
	return nil
}

// acquirePassLock keeps concurrent outreach and follow-up passes from racing
// each other on one host. The store's compare-and-set transitions are the real
// guard; the lock just avoids wasted sends.
func acquirePassLock() (func(), error) {
	fl := flock.New(viper.GetString("lock-file"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring pass lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another pass holds the lock %s", fl.Path())
	}
	return func() { fl.Unlock() }, nil
}
