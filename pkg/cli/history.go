package cli

import (
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-audit/pkg/database"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
	"github.com/ekaya-inc/ekaya-audit/pkg/repositories"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		entityType string
		entityID   string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List audit records stored in PostgreSQL, newest first",
		Long: `List audit records from the audit_records table, newest first.

With --entity-type and --entity-id, only that entity's records are listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnv(rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			db, err := database.NewConnection(ctx, &database.Config{
				URL:            cfg.Database.ConnectionString(),
				MaxConnections: 2,
			}, logger)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to connect to database", err)
			}
			defer db.Close()

			repo := repositories.NewAuditRepository(db)
			var records []*models.AuditRecord
			if entityType != "" && entityID != "" {
				records, err = repo.GetByEntity(ctx, entityType, entityID, limit)
			} else {
				records, err = repo.GetRecent(ctx, limit)
			}
			if err != nil {
				return WrapExitError(ExitFailure, "failed to query audit records", err)
			}
			if records == nil {
				records = []*models.AuditRecord{}
			}
			return write(cmd.OutOrStdout(), rootOpts.Format, records)
		},
	}

	cmd.Flags().StringVar(&entityType, "entity-type", "", "entity type")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity identifier")
	cmd.Flags().IntVar(&limit, "limit", repositories.DefaultLimit, "maximum records to list")
	cmd.MarkFlagsRequiredTogether("entity-type", "entity-id")
	return cmd
}
