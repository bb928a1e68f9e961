package runstate

import (
	"path/filepath"
	"testing"
	"time"

	"behavior-corpus/internal/fvec"
)

func TestOpenLedgerCreatesTableAndDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "history.db")
	l, err := OpenLedger(path)
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	defer l.Close()

	entries, err := l.History()
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected a fresh ledger to have no history, got %d entries", len(entries))
	}
}

func TestRecordAppendsRetrievableHistoryEntry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	l, err := OpenLedger(path)
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	defer l.Close()

	s := Init("corpus")
	s.Run = 2
	if err := s.Prototypes.Append(&fvec.Vector{Keys: []fvec.Key{1}, Weights: []float64{1}}, "a"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	stamp := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	runID, err := l.Record(s, stamp)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if runID == "" {
		t.Fatalf("expected a non-empty generated run id")
	}

	entries, err := l.History()
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}
	got := entries[0]
	if got.Run != 2 || got.RunID != runID || got.NumProto != 1 || got.NumReject != 0 {
		t.Errorf("unexpected entry: %+v", got)
	}
}

func TestHistoryOrdersByRecordedAtAscending(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	l, err := OpenLedger(path)
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	defer l.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, delta := range []int{2, 0, 1} {
		s := Init("corpus")
		s.Run = i
		if _, err := l.Record(s, base.Add(time.Duration(delta)*time.Hour)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := l.History()
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].RecordedAt.Before(entries[i-1].RecordedAt) {
			t.Fatalf("entries not ordered ascending by recorded_at: %+v", entries)
		}
	}
}

func TestRecordAssignsDistinctRunIDsAcrossCalls(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	l, err := OpenLedger(path)
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	defer l.Close()

	s := Init("corpus")
	id1, err := l.Record(s, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	id2, err := l.Record(s, time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected distinct generated run ids, got %q twice", id1)
	}
}
