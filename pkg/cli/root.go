// Package cli implements the ekaya-audit command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "yaml"
	Version    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"json", "yaml"}

// NewRootCommand creates the root command for the ekaya-audit CLI.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{Version: version}

	cmd := &cobra.Command{
		Use:     "ekaya-audit",
		Short:   "Structural merge, diff, redaction and audit records",
		Long:    "Merge partial updates into stored documents, diff snapshots field by field, redact sensitive fields, and append audit records to the configured sinks.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "json", "output format (json|yaml)")

	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewRedactCommand(opts))
	cmd.AddCommand(NewRecordCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
