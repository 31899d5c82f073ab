package main

import (
	"context"
	"time"

	"github.com/deppfellow/campaign-gateway/internal/config"
	"github.com/deppfellow/campaign-gateway/internal/database"
	"github.com/deppfellow/campaign-gateway/internal/logger"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			log := logger.NewLogger(cfg.Observability)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return database.Migrate(ctx, &log, cfg)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "give up after this long")

	return cmd
}
