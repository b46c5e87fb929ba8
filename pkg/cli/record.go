package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
	"github.com/ekaya-inc/ekaya-audit/pkg/services"
	"github.com/ekaya-inc/ekaya-audit/pkg/sinks"
)

type recordOptions struct {
	action     string
	entityType string
	entityID   string
	beforePath string
	afterPath  string
	by         string
	count      int
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &recordOptions{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Build an audit record and append it to the configured sinks",
		Long: `Build an audit record from before/after JSON snapshots and append it to
every sink enabled in the configuration. Snapshots are diffed and redacted
with the entity type's policy first.

CREATE needs --after, DELETE needs --before, UPDATE needs both. VIEW takes
neither; with --count and no --entity-id it records a list read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.action, "action", "", "CREATE, UPDATE, DELETE or VIEW")
	cmd.Flags().StringVar(&opts.entityType, "entity-type", "", "entity type, e.g. Employee")
	cmd.Flags().StringVar(&opts.entityID, "entity-id", "", "entity identifier")
	cmd.Flags().StringVar(&opts.beforePath, "before", "", "JSON snapshot before the operation")
	cmd.Flags().StringVar(&opts.afterPath, "after", "", "JSON snapshot after the operation")
	cmd.Flags().StringVar(&opts.by, "by", "", "actor performing the operation")
	cmd.Flags().IntVar(&opts.count, "count", 0, "rows read, for list VIEW records")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("entity-type")

	return cmd
}

func runRecord(cmd *cobra.Command, rootOpts *RootOptions, opts *recordOptions) error {
	action := models.AuditAction(strings.ToUpper(opts.action))
	if !action.IsValid() {
		return WrapExitError(ExitCommandError, "invalid --action", fmt.Errorf("%q", opts.action))
	}

	var before, after canonical.Node
	var err error
	if opts.beforePath != "" {
		if before, err = readDocument(opts.beforePath, cmd.InOrStdin()); err != nil {
			return err
		}
	}
	if opts.afterPath != "" {
		if after, err = readDocument(opts.afterPath, cmd.InOrStdin()); err != nil {
			return err
		}
	}

	cfg, logger, err := loadEnv(rootOpts)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	sink, err := sinks.Build(ctx, cfg, logger, nil)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open sinks", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("Failed to close audit sinks", zap.Error(err))
		}
	}()

	svc := services.NewAuditService(sink, logger, services.WithPolicies(policiesFromConfig(cfg.Audit)))
	ctx = models.WithProvenance(ctx, models.ProvenanceContext{Source: models.SourceCLI, Actor: opts.by})

	var record *models.AuditRecord
	switch {
	case action == models.AuditActionView && opts.entityID == "" && opts.count > 0:
		record = svc.RecordList(ctx, opts.entityType, opts.count)
	default:
		record, err = svc.Record(ctx, action, opts.entityID, before, after, opts.entityType, opts.by)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to record", err)
		}
	}

	return write(cmd.OutOrStdout(), rootOpts.Format, record)
}

