package runstate

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // driver registration

	"behavior-corpus/internal/corpuserr"
)

// Ledger is an optional SQLite-backed audit trail of run growth: every
// Record call appends one row recording the run id, a generated run
// identifier, and the state's prototype/reject counts. State.Save does
// not write to a Ledger; callers call Record themselves. The original state carries only the latest
// snapshot; this ledger exists purely to give long-lived deployments a
// history to query, grounded on the teacher's db/sqlite.go
// (DSN busy-timeout handling, directory creation) and
// detections/storage.go (single-mutex guarded append).
type Ledger struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenLedger opens (creating if necessary) a SQLite database at path and
// ensures its run_history table exists.
func OpenLedger(path string) (*Ledger, error) {
	dsn := path
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, corpuserr.New(corpuserr.IO, fmt.Errorf("creating ledger directory: %w", err))
		}
	}
	if !strings.Contains(dsn, "_busy_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, corpuserr.New(corpuserr.IO, fmt.Errorf("opening run ledger: %w", err))
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS run_history (
			run        INTEGER NOT NULL,
			run_uuid   TEXT NOT NULL,
			recorded_at DATETIME NOT NULL,
			num_proto  INTEGER NOT NULL,
			num_reject INTEGER NOT NULL,
			PRIMARY KEY (run, run_uuid)
		);`); err != nil {
		db.Close()
		return nil, corpuserr.New(corpuserr.IO, fmt.Errorf("creating run_history table: %w", err))
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record appends one row for s's current counts, timestamped now, and
// returns the generated run identifier.
func (l *Ledger) Record(s *State, now time.Time) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	runID := uuid.NewString()
	_, err := l.db.Exec(
		`INSERT INTO run_history (run, run_uuid, recorded_at, num_proto, num_reject) VALUES (?, ?, ?, ?, ?)`,
		s.Run, runID, now, s.Prototypes.Len(), s.Rejected.Len(),
	)
	if err != nil {
		return "", corpuserr.New(corpuserr.IO, fmt.Errorf("recording run history: %w", err))
	}
	return runID, nil
}

// HistoryEntry is one recorded row of run growth.
type HistoryEntry struct {
	Run        int
	RunID      string
	RecordedAt time.Time
	NumProto   int
	NumReject  int
}

// History returns every recorded row, oldest first.
func (l *Ledger) History() ([]HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`SELECT run, run_uuid, recorded_at, num_proto, num_reject FROM run_history ORDER BY recorded_at ASC`)
	if err != nil {
		return nil, corpuserr.New(corpuserr.IO, fmt.Errorf("querying run history: %w", err))
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.Run, &e.RunID, &e.RecordedAt, &e.NumProto, &e.NumReject); err != nil {
			return nil, corpuserr.New(corpuserr.IO, fmt.Errorf("scanning run history row: %w", err))
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, corpuserr.New(corpuserr.IO, err)
	}
	return out, nil
}
