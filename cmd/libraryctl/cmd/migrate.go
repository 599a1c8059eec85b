package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/research-library-api/internal/repository"
	"github.com/noah-isme/research-library-api/migrations"
	"github.com/noah-isme/research-library-api/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := database.Migrate(cmd.Context(), e.db.DB, migrations.FS); err != nil {
			return err
		}
		version, err := database.MigrationVersion(cmd.Context(), e.db.DB, migrations.FS)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show schema version and catalogue counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		version, err := database.MigrationVersion(ctx, e.db.DB, migrations.FS)
		if err != nil {
			return err
		}
		users, err := repository.NewUserRepository(e.db).Count(ctx)
		if err != nil {
			return err
		}
		strands, err := repository.NewStrandRepository(e.db).Count(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Schema version: %d\n", version)
		fmt.Fprintf(out, "Users:          %d\n", users)
		fmt.Fprintf(out, "Strands:        %d\n", strands)
		return nil
	},
}
