package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Erprabhat8423/beyond-academy/internal/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import candidate, role and company snapshots from a JSON export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return syncSnapshots(cmd)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringP("file", "f", "", "path to the JSON export file")
	syncCmd.MarkFlagRequired("file")
}

// The export format mirrors the upstream CRM fields. Dates arrive as plain
// YYYY-MM-DD strings.
type candidateRecord struct {
	store.Candidate `mapstructure:",squash"`
	StartDate       string `mapstructure:"start_date"`
}

type snapshot struct {
	Candidates []candidateRecord `mapstructure:"candidates"`
	Roles      []store.Role      `mapstructure:"roles"`
	Companies  []store.Company   `mapstructure:"companies"`
}

func syncSnapshots(cmd *cobra.Command) error {
	ctx := cmd.Context()

	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return errors.New("an export file is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading export file: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing export file: %w", err)
	}
	var snap snapshot
	if err := mapstructure.Decode(raw, &snap); err != nil {
		return fmt.Errorf("decoding export file: %w", err)
	}

	rt, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer rt.close()

	now := time.Now()
	for _, company := range snap.Companies {
		if err := rt.store.UpsertCompany(ctx, company); err != nil {
			return err
		}
	}
	for _, role := range snap.Roles {
		role.UpdatedAt = now
		if err := rt.store.UpsertRole(ctx, role); err != nil {
			return err
		}
	}
	for _, rec := range snap.Candidates {
		candidate := rec.Candidate
		if rec.StartDate != "" {
			start, err := time.Parse("2006-01-02", rec.StartDate)
			if err != nil {
				return fmt.Errorf("candidate %s has a bad start_date %q: %w", candidate.ID, rec.StartDate, err)
			}
			candidate.StartDate = start
		}
		candidate.UpdatedAt = now
		if err := rt.store.UpsertCandidate(ctx, candidate); err != nil {
			return err
		}
	}

	rt.logger.Info("sync finished",
		zap.Int("companies", len(snap.Companies)),
		zap.Int("roles", len(snap.Roles)),
		zap.Int("candidates", len(snap.Candidates)),
	)
	return nil
}
