package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "leadgrid",
	Short: "Adaptive geographic discovery grid service",
	Long: `leadgrid partitions regions into searchable cells, tracks per-cell saturation,
subdivides and merges cells on demand and computes virtual tiles for unexplored areas.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, deleteGridCmd, tilesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
