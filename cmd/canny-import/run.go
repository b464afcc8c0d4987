package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lifenautjoe/userfeed-canny-importer/internal/canny"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/config"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/gate"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/history"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/identity"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/importer"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/joblog"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/lockfile"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/source"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/state"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/votes"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the import",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runImport(cmd.Context(), cfg)
	},
}

func init() {
	runCmd.Flags().String("source", "", "Path to the CSV export")
	runCmd.Flags().String("state-dir", "", "Directory for checkpoint, voter pool, logs")
	runCmd.Flags().String("feature-board-id", "", "Board for feature requests")
	runCmd.Flags().String("bug-board-id", "", "Board for bug reports")
	runCmd.Flags().String("voter-email-domain", "", "Domain for synthetic voter emails")
	runCmd.Flags().Bool("ai-filter", false, "Skip records the AI deems invalid")
	runCmd.Flags().Bool("ai-enhance", false, "Rewrite titles/descriptions with the AI")
	runCmd.Flags().Bool("ai-categorize", true, "Classify records as feature or bug with the AI")
	runCmd.Flags().String("platform-details", "", "Free-text platform description given to the validity filter")
	runCmd.Flags().Int("max-posts", 0, "Stop after importing this many posts (0 = unbounded)")
	rootCmd.AddCommand(runCmd)
}

// loadConfig builds the run configuration, letting explicitly set flags
// override file and environment values, and snapshots the result once.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	_, v, err := config.Load()
	if err != nil {
		return nil, err
	}
	for _, key := range []string{
		"source", "state-dir", "feature-board-id", "bug-board-id",
		"voter-email-domain", "ai-filter", "ai-enhance", "ai-categorize",
		"platform-details", "max-posts",
	} {
		if flag := cmd.Flags().Lookup(key); flag != nil && flag.Changed {
			v.Set(key, flag.Value.String())
		}
	}
	return config.FromViper(v), nil
}

func runImport(ctx context.Context, cfg *config.Config) error {
	// Everything up to the row loop is fatal: configuration, source read,
	// lock, state and pool bootstrap.
	if err := cfg.Validate(); err != nil {
		return err
	}

	records, err := source.ReadFile(cfg.SourcePath)
	if err != nil {
		return err
	}

	lock, err := lockfile.Acquire(cfg.StateDir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	log := joblog.New(cfg.StateDir, true)
	defer func() { _ = log.Close() }()

	board := canny.NewClient(cfg.CannyAPIKey)

	var classifier gate.Classifier
	if cfg.UsesAI() {
		classifier, err = gate.NewAnthropicClassifier(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		if err != nil {
			return err
		}
	}
	recordGate := gate.New(classifier, gate.Options{
		FilterInvalid:   cfg.FilterInvalid,
		Enhance:         cfg.Enhance,
		Categorize:      cfg.Categorize,
		PlatformDetails: cfg.PlatformDetails,
	})

	pool, err := identity.Load(cfg.StateDir, cfg.VoterEmailDomain, boardRegistrar{board})
	if err != nil {
		return err
	}

	states := state.NewStore(cfg.StateDir)
	sim := votes.NewSimulator(board)

	hist, err := history.Open(cfg.StateDir)
	if err != nil {
		return err
	}
	defer func() { _ = hist.Close() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID, err := hist.BeginRun(ctx, cfg.SourcePath, len(records))
	if err != nil {
		return err
	}
	audit := &runAuditor{store: hist, runID: runID}

	imp := importer.New(importer.Options{
		FeatureBoardID: cfg.FeatureBoardID,
		BugBoardID:     cfg.BugBoardID,
		MaxPosts:       cfg.MaxPosts,
	}, board, recordGate, pool, sim, states, log, audit)

	result, runErr := imp.Run(ctx, records)
	if result != nil {
		skipped := result.LocalSkips + result.RemoteDuplicates + result.Filtered
		_ = hist.FinishRun(ctx, runID, result.Imported, skipped, result.Failed, runErr)
		printSummary(result)
	} else {
		_ = hist.FinishRun(ctx, runID, 0, 0, 0, runErr)
	}
	return runErr
}

func printSummary(r *importer.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Printf("%s %d posts imported, %d votes cast\n", green("✓"), r.Imported, r.VotesCast)
	if r.LocalSkips > 0 {
		fmt.Printf("  %d rows already imported (fingerprint)\n", r.LocalSkips)
	}
	if r.RemoteDuplicates > 0 {
		fmt.Printf("  %s %d rows skipped as remote duplicates (re-evaluated every run)\n", yellow("!"), r.RemoteDuplicates)
	}
	if r.Filtered > 0 {
		fmt.Printf("  %d rows filtered as invalid\n", r.Filtered)
	}
	if r.Failed > 0 {
		fmt.Printf("  %s %d rows failed and will be retried next run\n", red("✗"), r.Failed)
	}
	if r.CapReached {
		fmt.Printf("  %s post cap reached, remaining rows left for the next run\n", yellow("!"))
	}
}

// boardRegistrar adapts the board client to the identity pool's Registrar.
type boardRegistrar struct {
	client *canny.Client
}

func (r boardRegistrar) Register(ctx context.Context, email, displayName string) (string, error) {
	user, err := r.client.CreateOrUpdateUser(ctx, email, displayName)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// runAuditor binds item outcomes to the current history run. Best effort:
// audit failures never affect the import.
type runAuditor struct {
	store *history.Store
	runID int64
}

func (a *runAuditor) Item(ctx context.Context, o history.Outcome) {
	_ = a.store.RecordItem(ctx, a.runID, o)
}
