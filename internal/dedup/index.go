// Package dedup guards against creating posts that already exist on the
// target boards. The index is rebuilt from the remote service at the start
// of every run, because remote state can change between runs, and is
// updated in-memory as the run creates posts so later rows see earlier
// rows' titles.
package dedup

import (
	"context"
	"fmt"
)

// Lister pages through a board's posts. Implementations must follow
// pagination until the service reports no more pages.
type Lister interface {
	ListBoardPostTitles(ctx context.Context, boardID string) ([]string, error)
}

// Index holds, per board, the exact titles already present remotely.
type Index struct {
	titles map[string]map[string]bool
}

// BuildIndex fetches every title on each of the given boards.
func BuildIndex(ctx context.Context, lister Lister, boardIDs ...string) (*Index, error) {
	idx := &Index{titles: make(map[string]map[string]bool, len(boardIDs))}
	for _, boardID := range boardIDs {
		if boardID == "" {
			continue
		}
		if _, ok := idx.titles[boardID]; ok {
			continue
		}
		titles, err := lister.ListBoardPostTitles(ctx, boardID)
		if err != nil {
			return nil, fmt.Errorf("building duplicate index for board %s: %w", boardID, err)
		}
		set := make(map[string]bool, len(titles))
		for _, t := range titles {
			set[t] = true
		}
		idx.titles[boardID] = set
	}
	return idx, nil
}

// Has reports whether the board already holds a post with exactly this
// title.
func (idx *Index) Has(boardID, title string) bool {
	return idx.titles[boardID][title]
}

// Add records a title created during this run so subsequent rows are
// checked against it.
func (idx *Index) Add(boardID, title string) {
	set, ok := idx.titles[boardID]
	if !ok {
		set = make(map[string]bool)
		idx.titles[boardID] = set
	}
	set[title] = true
}
