package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-audit/pkg/database"
	"github.com/ekaya-inc/ekaya-audit/pkg/logging"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnv(rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if path == "" {
				path = cfg.Database.MigrationsPath
			}

			db, err := database.NewConnection(cmd.Context(), &database.Config{
				URL:            cfg.Database.ConnectionString(),
				MaxConnections: 2,
			}, logger)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to connect to database", err)
			}
			defer db.Close()

			if err := database.RunMigrations(db, path, logger); err != nil {
				return WrapExitError(ExitFailure, "migration failed", fmt.Errorf("%s", logging.SanitizeError(err)))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "migrations directory (default from config)")
	return cmd
}
