package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lifenautjoe/userfeed-canny-importer/internal/history"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/identity"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the import checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := state.NewStore(cfg.StateDir).Load()
		if err != nil {
			return err
		}
		fmt.Printf("State directory: %s\n", cfg.StateDir)
		fmt.Printf("Cursor:          %d\n", st.Cursor)
		fmt.Printf("Imported rows:   %d\n", len(st.ImportedIDs))
		return nil
	},
}

var votersCmd = &cobra.Command{
	Use:   "voters",
	Short: "Show the synthetic voter pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		pool, err := identity.Load(cfg.StateDir, cfg.VoterEmailDomain, nil)
		if err != nil {
			return err
		}
		fmt.Printf("%d voters\n", pool.Size())
		for _, v := range pool.Voters() {
			fmt.Printf("  %s  %s <%s>\n", v.ID, v.DisplayName, v.Email)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent import runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := history.Open(cfg.StateDir)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		runs, err := store.RecentRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded")
			return nil
		}

		red := color.New(color.FgRed).SprintFunc()
		for _, r := range runs {
			line := fmt.Sprintf("run %d  %s  %d/%d imported, %d skipped, %d failed",
				r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Imported, r.RowsTotal, r.Skipped, r.Failed)
			if r.Error.Valid {
				line += "  " + red(r.Error.String)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().String("state-dir", "", "Directory for checkpoint, voter pool, logs")
	votersCmd.Flags().String("state-dir", "", "Directory for checkpoint, voter pool, logs")
	historyCmd.Flags().String("state-dir", "", "Directory for checkpoint, voter pool, logs")
	historyCmd.Flags().Int("limit", 10, "Number of runs to show")
	rootCmd.AddCommand(statusCmd, votersCmd, historyCmd)
}
