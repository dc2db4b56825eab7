package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tidyfs/internal/config"
)

const (
	logFile             = "tidyfs.log"
	defaultRotationDays = 30
)

// New returns a logger writing to stdout only.
func New() *log.Logger {
	return log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)
}

// NewWithConfig returns a logger teed to stdout and <logging.dir>/tidyfs.log.
// The file is rotated first when it is older than logging.rotation_days.
// Without a configured directory it falls back to New.
func NewWithConfig(cfg *config.Config) *log.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter is NewWithConfig with console in place of stdout.
func NewWithWriter(cfg *config.Config, console io.Writer) *log.Logger {
	if cfg == nil || cfg.Logging.Dir == "" {
		return log.New(console, "", log.LstdFlags|log.Lmicroseconds)
	}
	return newFileLogger(console, cfg.Logging.Dir, cfg.Logging.RotationDays)
}

func newFileLogger(console io.Writer, dir string, rotationDays int) *log.Logger {
	if rotationDays <= 0 {
		rotationDays = defaultRotationDays
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("failed to ensure log directory %s: %v", dir, err)
	}

	filePath := filepath.Join(dir, logFile)
	rotateLogsIfNeeded(filePath, rotationDays, time.Now())

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("failed to open log file %s: %v", filePath, err)
		return log.New(console, "", log.LstdFlags|log.Lmicroseconds)
	}

	mw := io.MultiWriter(console, f)
	return log.New(mw, "", log.LstdFlags|log.Lmicroseconds)
}

// rotateLogsIfNeeded renames logPath aside when it was last written before
// the cutoff, then prunes earlier rotations past the same cutoff.
func rotateLogsIfNeeded(logPath string, rotationDays int, now time.Time) {
	info, err := os.Stat(logPath)
	if err != nil {
		return
	}

	cutoff := now.AddDate(0, 0, -rotationDays)
	if !info.ModTime().Before(cutoff) {
		return
	}

	rotatedPath := logPath + "." + info.ModTime().Format("20060102-150405")
	if err := os.Rename(logPath, rotatedPath); err != nil {
		log.Printf("failed to rotate log file: %v", err)
		return
	}

	cleanupOldLogs(logPath, rotatedPath, cutoff)
}

func cleanupOldLogs(logPath, keep string, cutoff time.Time) {
	dir := filepath.Dir(logPath)
	prefix := filepath.Base(logPath) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) || entry.Name() == filepath.Base(keep) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			fullPath := filepath.Join(dir, entry.Name())
			if err := os.Remove(fullPath); err != nil {
				log.Printf("failed to remove old log file %s: %v", fullPath, err)
			}
		}
	}
}

// Leveled prefixes each line with its level and appends key/value pairs:
//
//	[INFO] Reap complete files 3 dirs 1
type Leveled struct {
	*log.Logger
}

// Wrap returns a Leveled logger over l, or over log.Default when l is nil.
func Wrap(l *log.Logger) *Leveled {
	if l == nil {
		l = log.Default()
	}
	return &Leveled{Logger: l}
}

// Discard returns a Leveled logger that drops everything.
func Discard() *Leveled {
	return &Leveled{Logger: log.New(io.Discard, "", 0)}
}

func (l *Leveled) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *Leveled) Warn(msg string, args ...interface{}) {
	l.logWithLevel("WARN", msg, args...)
}

func (l *Leveled) Error(msg string, args ...interface{}) {
	l.logWithLevel("ERROR", msg, args...)
}

func (l *Leveled) logWithLevel(level, msg string, args ...interface{}) {
	parts := make([]interface{}, 0, len(args)+2)
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}
