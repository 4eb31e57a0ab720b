package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"histosaga-service/internal/infra/mongo"
)

// NewSeedCmd writes the sample activities into the remote document store.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load sample activities into MongoDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			if cfg.Mongo.URI == "" {
				return fmt.Errorf("mongo uri not configured")
			}

			client, err := mongo.Connect(cmd.Context(), mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
			if err != nil {
				return err
			}
			defer client.Disconnect(cmd.Context())

			store := mongo.NewStore(client, cfg.Mongo.Database)
			for _, activity := range sampleActivities() {
				if err := store.SaveActivity(cmd.Context(), activity); err != nil {
					return err
				}
				log.Info("activity seeded", zap.String("activity_id", activity.ID))
			}
			return nil
		},
	}
}
