package persistence

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsZeroState(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "does-not-exist.gob"))

	st, err := s.Load()
	if err != nil {
		t.Fatalf("expected a missing state file to be non-fatal, got %v", err)
	}
	if len(st.LearnedPatterns) != 0 || st.ModelWeights != nil {
		t.Fatalf("expected zero-value state, got %+v", st)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.gob")
	s := NewStore(path)

	original := State{
		ModelWeights: map[string]float64{"amount": 0.25, "velocity": 0.20},
		PerformanceStats: PerformanceStats{
			TotalProcessed: 42,
			TotalFailed:    3,
		},
	}

	if err := s.Save(original); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if restored.ModelWeights["amount"] != 0.25 {
		t.Fatalf("expected model weight to round-trip, got %+v", restored.ModelWeights)
	}
	if restored.PerformanceStats.TotalProcessed != 42 {
		t.Fatalf("expected performance stats to round-trip, got %+v", restored.PerformanceStats)
	}
	if restored.LastUpdated.IsZero() {
		t.Fatalf("expected LastUpdated to be stamped on save")
	}
}
