package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("Dark mode", "2023-01-15T10:00:00Z")
	b := Fingerprint("Dark mode", "2023-01-15T10:00:00Z")
	assert.Equal(t, a, b)
}

func TestFingerprintDistinguishesInputs(t *testing.T) {
	base := Fingerprint("Dark mode", "2023-01-15T10:00:00Z")
	assert.NotEqual(t, base, Fingerprint("Dark mode!", "2023-01-15T10:00:00Z"))
	assert.NotEqual(t, base, Fingerprint("Dark mode", "2023-01-15T10:00:01Z"))
}

func TestLoadMissingFileFailsOpen(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist"))

	st, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, st.Cursor)
	assert.Empty(t, st.ImportedIDs)
	assert.NotNil(t, st.ImportedIDs, "zero state must be mutable")
}

func TestLoadCorruptFileErrors(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o600))

	_, err := store.Load()
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	st := &ImportState{
		Cursor: 7,
		ImportedIDs: map[string]bool{
			Fingerprint("a", "t1"): true,
			Fingerprint("b", "t2"): true,
		},
	}
	require.NoError(t, store.Save(st))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Cursor)
	assert.Equal(t, st.ImportedIDs, loaded.ImportedIDs)
}

func TestSaveDocumentShape(t *testing.T) {
	store := NewStore(t.TempDir())

	st := &ImportState{Cursor: 3, ImportedIDs: map[string]bool{"abc123": true}}
	require.NoError(t, store.Save(st))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	var doc struct {
		Cursor      int      `json:"cursor"`
		ImportedIDs []string `json:"importedIds"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 3, doc.Cursor)
	assert.Equal(t, []string{"abc123"}, doc.ImportedIDs)
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	require.NoError(t, store.Save(&ImportState{Cursor: 1, ImportedIDs: map[string]bool{"x": true}}))
	require.NoError(t, store.Save(&ImportState{Cursor: 2, ImportedIDs: map[string]bool{"x": true, "y": true}}))

	// No temp files may linger after a successful save.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Cursor)
	assert.Len(t, loaded.ImportedIDs, 2)
}

func TestSaveCreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	store := NewStore(dir)

	require.NoError(t, store.Save(&ImportState{ImportedIDs: map[string]bool{}}))
	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestWriteFileAtomicPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, WriteFileAtomic(path, []byte("{}")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
