package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteGridCmd = &cobra.Command{
	Use:   "delete-grid <grid-id>",
	Short: "Delete a grid and all of its cells synchronously",
	Long: `Runs the cascading deletion in the foreground: cells are removed in batches
until none remain, then the grid record itself is deleted. Safe to re-run after a failure.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeleteGrid,
}

func runDeleteGrid(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.deletion.CascadeDelete(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted grid %s: %d cells in %d batches\n", report.GridID, report.CellsDeleted, report.Batches)
	return nil
}
