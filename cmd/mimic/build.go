package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/mimic/internal/dataset"
)

func newBuildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the dataset once from every export in the data dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, _, cleanup, err := a.newBuilder(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			m, err := b.Build(ctx, dataset.Overrides{})
			if m != nil {
				printSummary(cmd, m)
			}
			return err
		},
	}
}

func printSummary(cmd *cobra.Command, m *dataset.Manifest) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n=== Build Summary ===\n")
	fmt.Fprintf(out, "Run: %s (%s)\n", m.RunID, m.Status)
	fmt.Fprintf(out, "Files: %d (%d failed, %d duplicates)\n", m.Totals.Files, m.Totals.Failed, m.Totals.Duplicates)
	fmt.Fprintf(out, "Messages: %d (%d dropped, %d with unparsed dates)\n", m.Totals.Messages, m.Totals.Dropped, m.Totals.UnparsedDates)
	fmt.Fprintf(out, "Chunks: %d (%d oversize, %d skipped)\n", m.Totals.Chunks, m.Totals.Oversize, m.Totals.Skipped)
	fmt.Fprintf(out, "Budget: %d tokens (%s)\n", m.MaxContextLength, m.Encoding)
	for _, r := range m.Files {
		if r.Error != "" {
			fmt.Fprintf(out, "  ! %s: %s\n", r.File, r.Error)
		}
	}
	fmt.Fprintf(out, "Manifest: %s\n", m.Path())
}
