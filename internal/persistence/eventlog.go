package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventLogger appends human-readable lines to per-tournament and
// per-player text logs (spec SUPPLEMENTED FEATURES: event/round logging),
// grounded on tournament_manager.rs's log_event/log_player_action helpers.
type EventLogger struct {
	mu      sync.Mutex
	baseDir string
}

// NewEventLogger creates the log directory tree if needed.
func NewEventLogger(baseDir string) (*EventLogger, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "players"), 0o755); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}
	return &EventLogger{baseDir: baseDir}, nil
}

func (l *EventLogger) appendLine(path, line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	defer f.Close()
	stamp := time.Now().UTC().Format(time.RFC3339)
	_, err = fmt.Fprintf(f, "[%s] %s\n", stamp, line)
	return err
}

// LogEvent appends a tournament-scoped line (round started, optimal
// revealed, round completed, tournament finished, ...).
func (l *EventLogger) LogEvent(tournamentID uuid.UUID, format string, args ...any) error {
	path := filepath.Join(l.baseDir, tournamentID.String()+".log")
	return l.appendLine(path, fmt.Sprintf(format, args...))
}

// LogPlayerAction appends a player-scoped line (submission, resubmission,
// late penalty) to that player's own log file.
func (l *EventLogger) LogPlayerAction(tournamentID, playerID uuid.UUID, format string, args ...any) error {
	path := filepath.Join(l.baseDir, "players", fmt.Sprintf("%s-%s.log", tournamentID, playerID))
	return l.appendLine(path, fmt.Sprintf(format, args...))
}
