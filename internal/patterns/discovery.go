// Package patterns implements PatternDiscovery: a bounded ring of
// processed cases, periodically mined for recurring feature signatures
// among auto_blocked cases (§4.8).
package patterns

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-investigator/internal/models"
)

// RingCapacity bounds the in-memory processed-case ring (§3, §8
// invariant 6).
const RingCapacity = 10000

// MinOccurrencesForPattern is the minimum predicate match count required
// to emit a new discovered pattern (§4.8).
const MinOccurrencesForPattern = 5

// signature is one fixed feature-signature predicate Discovery clusters
// auto_blocked cases by.
type signature struct {
	Label     string
	Predicate func(models.FeatureMap) bool
}

var signatures = []signature{
	{"high_income_ratio", func(f models.FeatureMap) bool { return f.Get("amount_income_ratio") > 10 }},
	{"structuring", func(f models.FeatureMap) bool { return f.GetBool("is_structuring") }},
	{"sanctioned_ip", func(f models.FeatureMap) bool { return f.GetBool("ip_is_sanctioned") }},
	{"shared_resources", func(f models.FeatureMap) bool { return f.Get("network_risk_score") > 0.6 }},
	{"doc_verification_failed", func(f models.FeatureMap) bool { return f.GetBool("doc_verification_failed") }},
	{"escalating_amounts", func(f models.FeatureMap) bool { return f.GetBool("is_escalating") }},
}

// Discovery is PatternDiscovery.
type Discovery struct {
	mu       sync.Mutex
	ring     []models.ProcessedCase
	start    int
	patterns []models.DiscoveredPattern
	known    map[string]bool
	interval time.Duration
}

// NewDiscovery constructs PatternDiscovery. interval is the periodic
// mining cadence (default 300s per §4.8).
func NewDiscovery(interval time.Duration) *Discovery {
	if interval <= 0 {
		interval = 300 * time.Second
	}
	return &Discovery{
		ring:     make([]models.ProcessedCase, 0, RingCapacity),
		known:    make(map[string]bool),
		interval: interval,
	}
}

// Record appends a processed case to the bounded ring, evicting the
// oldest entry once at capacity.
func (d *Discovery) Record(pc models.ProcessedCase) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.ring) < RingCapacity {
		d.ring = append(d.ring, pc)
		return
	}
	d.ring[d.start] = pc
	d.start = (d.start + 1) % RingCapacity
}

// Recent returns up to n of the most recently recorded cases.
func (d *Discovery) Recent(n int) []models.ProcessedCase {
	d.mu.Lock()
	defer d.mu.Unlock()

	total := len(d.ring)
	if n > total {
		n = total
	}
	out := make([]models.ProcessedCase, n)
	for i := 0; i < n; i++ {
		idx := (d.start + total - 1 - i + RingCapacity) % RingCapacity
		if total < RingCapacity {
			idx = total - 1 - i
		}
		out[i] = d.ring[idx]
	}
	return out
}

// Patterns returns a snapshot of currently discovered patterns, exposed
// to AnomalyDetector at warmup (§4.8, §9 open question).
func (d *Discovery) Patterns() []models.DiscoveredPattern {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.DiscoveredPattern, len(d.patterns))
	copy(out, d.patterns)
	return out
}

// Run starts the periodic mining task; it blocks until ctx is canceled.
func (d *Discovery) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mine()
		}
	}
}

// mine clusters the auto_blocked subset of the ring by the fixed
// predicate table and emits a pattern for any partition with at least
// MinOccurrencesForPattern matches not already represented (§4.8).
func (d *Discovery) mine() {
	d.mu.Lock()
	blocked := make([]models.ProcessedCase, 0, len(d.ring))
	for _, pc := range d.ring {
		if pc.Decision == models.DecisionAutoBlocked {
			blocked = append(blocked, pc)
		}
	}
	d.mu.Unlock()

	for _, sig := range signatures {
		if d.isKnown(sig.Label) {
			continue
		}
		count := 0
		var first, last time.Time
		for _, pc := range blocked {
			if sig.Predicate(pc.Features) {
				count++
				if first.IsZero() || pc.Timestamp.Before(first) {
					first = pc.Timestamp
				}
				if pc.Timestamp.After(last) {
					last = pc.Timestamp
				}
			}
		}
		if count >= MinOccurrencesForPattern {
			d.addPattern(sig, count, first, last)
		}
	}
}

func (d *Discovery) isKnown(label string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.known[label]
}

func (d *Discovery) addPattern(sig signature, count int, first, last time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.known[sig.Label] {
		return
	}
	d.known[sig.Label] = true

	pattern := models.DiscoveredPattern{
		PatternID:       uuid.NewString(),
		PatternType:     sig.Label,
		Predicate:       sig.Predicate,
		PredicateLabel:  sig.Label,
		OccurrenceCount: count,
		FirstSeen:       first,
		LastSeen:        last,
	}
	d.patterns = append(d.patterns, pattern)

	log.Info().
		Str("pattern_type", sig.Label).
		Int("occurrences", count).
		Msg(fmt.Sprintf("discovered new fraud pattern: %s", sig.Label))
}
