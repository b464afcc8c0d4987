// Package importer drives the migration: it walks the export rows from the
// checkpoint cursor, composes the duplicate guards, the AI gate, and the
// vote simulator, and commits progress after every fully imported row.
// Failures are isolated per row; only pre-loop failures abort the run.
package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/lifenautjoe/userfeed-canny-importer/internal/canny"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/dedup"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/gate"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/history"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/identity"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/joblog"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/source"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/state"
	"github.com/lifenautjoe/userfeed-canny-importer/internal/votes"
)

// Board is the slice of the board client the orchestrator uses directly.
type Board interface {
	dedup.Lister
	CreateOrUpdateUser(ctx context.Context, email, displayName string) (canny.User, error)
	CreatePost(ctx context.Context, boardID, authorID, title, details, createdAt string) (canny.Post, error)
}

// RecordGate is the AI pipeline consulted per row.
type RecordGate interface {
	Filter(ctx context.Context, rec source.Record) (bool, error)
	Enhance(ctx context.Context, rec source.Record) (source.Record, error)
	Categorize(ctx context.Context, rec source.Record) (gate.Category, error)
}

// Auditor records item outcomes for the run history. Implementations must
// be best-effort; the orchestrator ignores their errors.
type Auditor interface {
	Item(ctx context.Context, o history.Outcome)
}

// Options configures a run.
type Options struct {
	FeatureBoardID string
	BugBoardID     string
	// MaxPosts caps posts imported this run; 0 means unbounded.
	MaxPosts int
}

// Result summarizes one run.
type Result struct {
	RowsSeen         int // rows the loop examined (cursor to stop point)
	Imported         int // posts created and committed this run
	LocalSkips       int // rows already in the fingerprint set
	RemoteDuplicates int // rows whose title already existed on the board
	Filtered         int // rows rejected by the validity filter
	Failed           int // rows that errored and remain retryable
	VotesCast        int
	CapReached       bool
}

// Importer is the orchestrator.
type Importer struct {
	opts   Options
	board  Board
	gate   RecordGate
	pool   *identity.Pool
	sim    *votes.Simulator
	states *state.Store
	log    *joblog.Logger
	audit  Auditor
}

// New assembles an orchestrator. audit may be nil.
func New(opts Options, board Board, g RecordGate, pool *identity.Pool, sim *votes.Simulator, states *state.Store, log *joblog.Logger, audit Auditor) *Importer {
	return &Importer{
		opts:   opts,
		board:  board,
		gate:   g,
		pool:   pool,
		sim:    sim,
		states: states,
		log:    log,
		audit:  audit,
	}
}

// Run migrates records. Errors returned here are fatal pre-loop failures;
// anything that goes wrong inside the loop is contained in the Result.
func (i *Importer) Run(ctx context.Context, records []source.Record) (*Result, error) {
	st, err := i.states.Load()
	if err != nil {
		return nil, fmt.Errorf("loading import state: %w", err)
	}

	// Remote state can change between runs, so the duplicate index is
	// rebuilt fresh every time.
	idx, err := dedup.BuildIndex(ctx, i.board, i.opts.FeatureBoardID, i.opts.BugBoardID)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	i.log.Printf("run starting: %d rows, cursor %d, %d already imported", len(records), st.Cursor, len(st.ImportedIDs))

	for row := st.Cursor; row < len(records); row++ {
		if i.opts.MaxPosts > 0 && result.Imported >= i.opts.MaxPosts {
			result.CapReached = true
			i.log.Printf("post cap %d reached, stopping before row %d", i.opts.MaxPosts, row)
			break
		}
		result.RowsSeen++

		rec := records[row]
		// The cursor may only advance while every earlier row is terminally
		// handled; a failed, filtered, or remotely duplicated row pins it so
		// the row stays reachable on the next run.
		advance := row == st.Cursor
		if err := i.processRow(ctx, st, idx, rec, row, advance, result); err != nil {
			// Row stays retryable: cursor untouched, fingerprint unrecorded.
			result.Failed++
			i.log.Printf("row %d (%q) failed: %v", row, rec.Title, err)
			i.auditItem(ctx, history.Outcome{
				Fingerprint: state.Fingerprint(rec.Title, rec.CreatedAt),
				Title:       rec.Title,
				Action:      history.ActionFailed,
				Err:         err,
			})
		}
	}

	i.log.Printf("run finished: %d imported, %d local skips, %d remote duplicates, %d filtered, %d failed",
		result.Imported, result.LocalSkips, result.RemoteDuplicates, result.Filtered, result.Failed)
	return result, nil
}

// processRow takes one record through the full pipeline. A nil return means
// the row reached a terminal non-error state (committed or skipped).
func (i *Importer) processRow(ctx context.Context, st *state.ImportState, idx *dedup.Index, rec source.Record, row int, advance bool, result *Result) error {
	// Local idempotency guard runs before anything that costs money or
	// touches the network. Fingerprints come from the original record so
	// enhancement cannot change a row's identity.
	fp := state.Fingerprint(rec.Title, rec.CreatedAt)
	if st.ImportedIDs[fp] {
		result.LocalSkips++
		// In-memory bump only; the next commit persists it. An already
		// imported row never needs revisiting, so it cannot pin the cursor.
		if advance {
			st.Cursor = row + 1
		}
		i.auditItem(ctx, history.Outcome{Fingerprint: fp, Title: rec.Title, Action: history.ActionLocalSkip})
		return nil
	}

	valid, err := i.gate.Filter(ctx, rec)
	if err != nil {
		return err
	}
	if !valid {
		// Filtered rows advance nothing; they are re-evaluated on every
		// run until the source changes.
		result.Filtered++
		i.log.Printf("row %d (%q) filtered as invalid", row, rec.Title)
		i.auditItem(ctx, history.Outcome{Fingerprint: fp, Title: rec.Title, Action: history.ActionFiltered})
		return nil
	}

	enhanced, err := i.gate.Enhance(ctx, rec)
	if err != nil {
		return err
	}

	category, err := i.gate.Categorize(ctx, enhanced)
	if err != nil {
		return err
	}
	boardID := i.opts.FeatureBoardID
	if category == gate.CategoryBug {
		boardID = i.opts.BugBoardID
	}

	// Remote guard: only the categorized board's titles matter, and the
	// check must precede any creation side effect. A remote duplicate is
	// skipped without recording progress, since this run never imported
	// it; the row will be re-evaluated next run.
	if idx.Has(boardID, enhanced.Title) {
		result.RemoteDuplicates++
		i.log.Printf("row %d (%q) already on board %s, skipping", row, enhanced.Title, boardID)
		i.auditItem(ctx, history.Outcome{Fingerprint: fp, Title: enhanced.Title, Action: history.ActionRemoteSkip, BoardID: boardID})
		return nil
	}

	author, err := i.board.CreateOrUpdateUser(ctx, rec.RequestedBy, displayNameFor(rec.RequestedBy))
	if err != nil {
		return err
	}

	post, err := i.board.CreatePost(ctx, boardID, author.ID, enhanced.Title, enhanced.Description, rec.CreatedAt)
	if err != nil {
		return err
	}
	// Later rows in this run must see this title.
	idx.Add(boardID, enhanced.Title)

	if err := i.pool.EnsureSize(ctx, rec.TotalLikes); err != nil {
		return err
	}
	cast, err := i.sim.Simulate(ctx, post.ID, i.pool.Voters(), rec.TotalLikes)
	result.VotesCast += cast
	if err != nil {
		return err
	}

	// Commit: record the fingerprint, advance the cursor past this row,
	// and persist before the next row's side effects begin. If the save
	// fails the in-memory mutation is rolled back so the row is reported
	// failed rather than silently half-committed.
	st.ImportedIDs[fp] = true
	prevCursor := st.Cursor
	if advance {
		st.Cursor = row + 1
	}
	if err := i.states.Save(st); err != nil {
		delete(st.ImportedIDs, fp)
		st.Cursor = prevCursor
		return fmt.Errorf("persisting state: %w", err)
	}

	result.Imported++
	i.log.Printf("row %d imported as %s on board %s (%d votes)", row, post.ID, boardID, cast)
	i.auditItem(ctx, history.Outcome{
		Fingerprint: fp,
		Title:       enhanced.Title,
		Action:      history.ActionCommitted,
		BoardID:     boardID,
		PostID:      post.ID,
		Votes:       cast,
	})
	return nil
}

func (i *Importer) auditItem(ctx context.Context, o history.Outcome) {
	if i.audit != nil {
		i.audit.Item(ctx, o)
	}
}

// displayNameFor derives a readable name from the requester email, e.g.
// "jane.doe@acme.test" -> "Jane Doe".
func displayNameFor(email string) string {
	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return email
	}
	for n, p := range parts {
		parts[n] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
