// Package lockfile guards the state directory against concurrent importer
// runs. The import checkpoint assumes a single writer; a second instance
// against the same state directory must be refused, not serialized.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const lockFileName = "import.lock"

// ErrLocked is returned when another importer run holds the state directory.
var ErrLocked = errors.New("state directory locked by another importer run")

// Lock is a held exclusive lock on the state directory.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive non-blocking lock under stateDir. On conflict
// the error wraps ErrLocked and names the holding PID when readable.
func Acquire(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	lockPath := filepath.Join(stateDir, lockFileName)

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600) // #nosec G304 - controlled path from config
	if err != nil {
		return nil, fmt.Errorf("cannot open lock file: %w", err)
	}

	if err := flockExclusive(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLocked) {
			if pid, ok := holderPID(lockPath); ok && isProcessRunning(pid) {
				return nil, fmt.Errorf("%w (pid %d)", ErrLocked, pid)
			}
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("cannot lock %s: %w", lockPath, err)
	}

	// Record our PID for diagnostics; the flock is the actual guard.
	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Sync()

	return &Lock{file: f, path: lockPath}, nil
}

// Release drops the lock. Closing the descriptor releases the flock.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func holderPID(lockPath string) (int, bool) {
	data, err := os.ReadFile(lockPath) // #nosec G304 - controlled path
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
