// canny-import migrates a tabular export of feature and bug requests into a
// Canny feedback board, optionally gating records through an LLM pipeline
// and casting deterministic simulated votes on every imported post.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is set via -ldflags at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "canny-import",
	Short: "canny-import - resumable feedback-board importer",
	Long: `Migrates feature/bug request records from a CSV export into a Canny
feedback board. Safe to re-run against a partial migration: already imported
rows are skipped by fingerprint, remote duplicates by title, and no AI budget
is re-spent on processed rows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("canny-import %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}
