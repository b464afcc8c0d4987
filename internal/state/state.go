// Package state persists the import checkpoint: a resume cursor plus the
// authoritative set of fingerprints for fully imported rows.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const stateFileName = "import-state.json"

// ImportState is the durable progress record. Cursor is a skip-ahead
// optimization only: it advances past an index on success, so it may lag
// behind ImportedIDs after a mid-run failure. ImportedIDs is authoritative
// for idempotency and must only ever contain fingerprints of rows whose
// remote post was actually created.
type ImportState struct {
	Cursor      int
	ImportedIDs map[string]bool
}

// document is the on-disk JSON shape: {cursor, importedIds: [string]}.
type document struct {
	Cursor      int      `json:"cursor"`
	ImportedIDs []string `json:"importedIds"`
}

// Fingerprint derives the stable item identifier from the original record's
// title and creation timestamp. It is computed before any AI enhancement so
// the same source row always maps to the same identifier across runs.
func Fingerprint(title, createdAt string) string {
	sum := sha256.Sum256([]byte(title + "|" + createdAt))
	return hex.EncodeToString(sum[:])
}

// Store reads and writes the checkpoint document under a fixed directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on the
// first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the location of the checkpoint document.
func (s *Store) Path() string {
	return filepath.Join(s.dir, stateFileName)
}

// Load returns the persisted state, or a zero state if no checkpoint exists
// yet. Absence is not an error; a corrupt or unreadable file is.
func (s *Store) Load() (*ImportState, error) {
	data, err := os.ReadFile(s.Path()) // #nosec G304 - controlled path from config
	if os.IsNotExist(err) {
		return &ImportState{ImportedIDs: make(map[string]bool)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading import state: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing import state: %w", err)
	}

	st := &ImportState{
		Cursor:      doc.Cursor,
		ImportedIDs: make(map[string]bool, len(doc.ImportedIDs)),
	}
	for _, id := range doc.ImportedIDs {
		st.ImportedIDs[id] = true
	}
	return st, nil
}

// Save atomically replaces the checkpoint document with a snapshot of st.
// Callers invoke it synchronously after each committed item, before side
// effects for the next item begin, so the file always reflects a consistent
// set of fully completed items.
func (s *Store) Save(st *ImportState) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	doc := document{
		Cursor:      st.Cursor,
		ImportedIDs: make([]string, 0, len(st.ImportedIDs)),
	}
	for id := range st.ImportedIDs {
		doc.ImportedIDs = append(doc.ImportedIDs, id)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling import state: %w", err)
	}

	return WriteFileAtomic(s.Path(), data)
}

// WriteFileAtomic writes data to a temp file in the destination directory
// and renames it over path, so readers never observe a partial document.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temporary file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", base, err)
	}

	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", base, err)
	}
	return nil
}
