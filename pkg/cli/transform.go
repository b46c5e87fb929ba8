package cli

import (
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-audit/pkg/models"
	"github.com/ekaya-inc/ekaya-audit/pkg/reconcile"
)

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	var skip, redact []string

	cmd := &cobra.Command{
		Use:   "diff <before.json> <after.json>",
		Short: "Print the field-level changes between two documents",
		Long: `Compare two JSON documents and print one entry per differing path.

Paths are dot separated; list elements are addressed by index
(positions.1.title). Use "-" to read one of the documents from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := readDocument(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			after, err := readDocument(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}

			changes := reconcile.RedactChanges(reconcile.Diff(before, after, skip...), reconcile.NewFieldSet(redact...))
			if changes == nil {
				changes = []models.FieldChange{}
			}
			return write(cmd.OutOrStdout(), rootOpts.Format, changes)
		},
	}

	cmd.Flags().StringSliceVar(&skip, "skip", nil, "field names or dotted paths to ignore")
	cmd.Flags().StringSliceVar(&redact, "redact", nil, "field names to remove from the output")
	return cmd
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <original.json> <update.json>",
		Short: "Merge a partial update into a document",
		Long: `Merge a partial update into an original document and print the result.

Fields missing from the update, or set to null, an empty list or an empty
object, keep their original value. Objects merge key by key; lists are
replaced whole.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			original, err := readDocument(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			update, err := readDocument(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}

			merged, err := reconcile.Merge(original, update)
			if err != nil {
				return WrapExitError(ExitFailure, "merge failed", err)
			}
			return write(cmd.OutOrStdout(), rootOpts.Format, merged)
		},
	}
}

// NewRedactCommand creates the redact command.
func NewRedactCommand(rootOpts *RootOptions) *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:   "redact <document.json>",
		Short: "Remove named fields from a document at any depth",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), rootOpts.Format, reconcile.Redact(doc, reconcile.NewFieldSet(fields...)))
		},
	}

	cmd.Flags().StringSliceVar(&fields, "fields", nil, "field names to remove")
	_ = cmd.MarkFlagRequired("fields")
	return cmd
}
