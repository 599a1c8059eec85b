package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/research-library-api/internal/repository"
	"github.com/noah-isme/research-library-api/internal/service"
)

var purgeRetention time.Duration

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Activity log maintenance",
}

var logsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete activity log entries older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		retention := e.cfg.ActivityLog.Retention
		if purgeRetention > 0 {
			retention = purgeRetention
		}
		svc := service.NewActivityLogService(repository.NewActivityLogRepository(e.db), nil, retention, e.logger)
		removed, err := svc.Purge(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d activity log entries\n", removed)
		return nil
	},
}

func init() {
	logsPurgeCmd.Flags().DurationVar(&purgeRetention, "older-than", 0, "override the configured retention (e.g. 720h)")
	logsCmd.AddCommand(logsPurgeCmd)
}
