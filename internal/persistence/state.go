// Package persistence saves and restores the engine's learned state
// across restarts: discovered patterns, ensemble weights, and
// performance stats (§6, §9). The state file is an opaque local binary
// blob, not a cross-service interface, so encoding/gob is used instead
// of JSON.
package persistence

import (
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-investigator/internal/models"
)

// State is the full snapshot persisted at graceful shutdown and
// restored at startup.
type State struct {
	LearnedPatterns  []models.DiscoveredPattern
	ModelWeights     map[string]float64
	PerformanceStats PerformanceStats
	LastUpdated      time.Time
}

// PerformanceStats is the subset of worker-pool metrics worth carrying
// across a restart for the periodic report's running totals.
type PerformanceStats struct {
	TotalProcessed int64
	TotalFailed    int64
}

// Store reads and writes State to a single file path.
type Store struct {
	path string
}

// NewStore constructs a Store bound to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the state file. A missing file is not an error: it returns
// a zero-value State so a fresh deployment starts clean (§9).
func (s *Store) Load() (State, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", s.path).Msg("no prior state file found, starting clean")
			return State{}, nil
		}
		return State{}, fmt.Errorf("open state file: %w", err)
	}
	defer f.Close()

	var st State
	if err := gob.NewDecoder(f).Decode(&st); err != nil {
		return State{}, fmt.Errorf("decode state file: %w", err)
	}

	log.Info().
		Str("path", s.path).
		Int("learned_patterns", len(st.LearnedPatterns)).
		Time("last_updated", st.LastUpdated).
		Msg("restored engine state")
	return st, nil
}

// Save writes State to disk atomically (write to a temp file, then
// rename) so a crash mid-write never leaves a corrupt state file.
func (s *Store) Save(st State) error {
	st.LastUpdated = time.Now()

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(st); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode state file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}

	log.Info().Str("path", s.path).Msg("saved engine state")
	return nil
}
