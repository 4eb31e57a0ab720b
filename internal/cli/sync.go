package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSyncCmd drains the offline queue once and prints the report.
func NewSyncCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push queued offline progress to the remote store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			d, err := buildDeps(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer d.close()

			if !d.monitor.Check(cmd.Context()) {
				return fmt.Errorf("remote store unreachable, nothing synced")
			}
			report, err := d.reconciler.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if len(report.Dropped) > 0 {
				log.Warn("offline entries rejected by the remote store were dropped", zap.Int("dropped", len(report.Dropped)))
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d offline entries could not be synced", len(report.Failed))
			}
			return nil
		},
	}
}
