// Package joblog writes the per-run import log: a rotated file under the
// state directory, optionally echoed to stderr.
package joblog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "import.log"

// Logger appends timestamped lines to the rotated run log.
type Logger struct {
	file *lumberjack.Logger
	echo bool
}

// New creates a logger writing under stateDir. With echo set, every line is
// also printed to stderr for interactive runs.
func New(stateDir string, echo bool) *Logger {
	return &Logger{
		file: &lumberjack.Logger{
			Filename:   filepath.Join(stateDir, logFileName),
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     30, // days
			Compress:   true,
		},
		echo: echo,
	}
}

// Printf logs one formatted line.
func (l *Logger) Printf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%s] %s\n", timestamp, msg)
	_, _ = l.file.Write([]byte(line))
	if l.echo {
		_, _ = fmt.Fprint(os.Stderr, line)
	}
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	return l.file.Close()
}
