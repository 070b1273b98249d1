package cascade

import (
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/enterprise/fraud-investigator/internal/models"
)

// sequenceCapacity is the per-user FIFO bound (§3, §8 invariant 6).
const sequenceCapacity = 10

// globalSequenceCacheSize bounds the number of distinct users tracked at
// once; the LRU cache evicts the least-recently-used user's buffer once
// this many users are tracked (§3 Sequence buffer lifecycle).
const globalSequenceCacheSize = 50000

// userSequence is one user's FIFO of recent feature-vector projections,
// guarded by its own lock so concurrent investigations for different
// users never contend (§5).
type userSequence struct {
	mu     sync.Mutex
	points []models.SequenceProjection
}

// deviationThreshold/deviationScore implement §4.5's sudden-behavior-
// change rule.
const (
	deviationThreshold = 0.7
	deviationScore     = 0.4
)

// patternMatchDistance/patternMatchScore implement §4.5's fixed-pattern
// matching rule.
const (
	patternMatchDistance = 2.0
	patternMatchScore    = 0.3
)

// fixedPattern is one entry in AnomalyDetector's small pattern library
// (§4.5).
type fixedPattern struct {
	Label  string
	Vector models.SequenceProjection
}

// fixedPatterns is the fixed 6-vector library AnomalyDetector matches
// every projection against.
var fixedPatterns = []fixedPattern{
	{"rapid_escalation", models.SequenceProjection{9.2, 12.0, 2.0, 0.1, 0.1, 0.1}},
	{"structuring", models.SequenceProjection{9.15, 4.0, 5.0, 0.1, 0.2, 0.1}},
	{"account_takeover", models.SequenceProjection{7.5, 3.0, 0.5, 0.8, 0.7, 0.3}},
}

// AnomalyDetector is L4: per-user sequence deviation plus known-pattern
// matching (§4.5).
type AnomalyDetector struct {
	cache    *lru.Cache[string, *userSequence]
	patterns []fixedPattern
}

// NewAnomalyDetector constructs L4. warmup is the discovered-pattern list
// available at startup; it is accepted but neither stored nor used in
// scoring: Detect matches only the fixed pattern library.
func NewAnomalyDetector(warmup []models.DiscoveredPattern) *AnomalyDetector {
	cache, err := lru.New[string, *userSequence](globalSequenceCacheSize)
	if err != nil {
		// Only fails for a non-positive size, which never happens here.
		panic(err)
	}
	return &AnomalyDetector{cache: cache, patterns: fixedPatterns}
}

func buildProjection(f models.FeatureMap) models.SequenceProjection {
	return models.SequenceProjection{
		f.Get("amount_log"),
		f.Get("amount_income_ratio"),
		f.Get("account_age_log"),
		f.Get("ip_anonymity_score"),
		f.Get("network_risk_score"),
		f.Get("doc_risk"),
	}
}

// Detect appends the current projection to userID's FIFO (evicting the
// oldest beyond sequenceCapacity), then scores deviation from prior
// history and distance to the fixed pattern library (§4.5).
func (a *AnomalyDetector) Detect(userID string, f models.FeatureMap) (float64, []string) {
	projection := buildProjection(f)

	seq, ok := a.cache.Get(userID)
	if !ok {
		seq = &userSequence{}
		a.cache.Add(userID, seq)
	}

	seq.mu.Lock()
	prior := make([]models.SequenceProjection, len(seq.points))
	copy(prior, seq.points)

	seq.points = append(seq.points, projection)
	if len(seq.points) > sequenceCapacity {
		seq.points = seq.points[len(seq.points)-sequenceCapacity:]
	}
	seq.mu.Unlock()

	var score float64
	var tags []string

	if len(prior) >= 2 {
		mean := meanProjection(prior)
		deviation := euclideanDistance(projection, mean) / 10
		if deviation > 1.0 {
			deviation = 1.0
		}
		if deviation > deviationThreshold {
			tags = append(tags, "sudden_behavior_change")
			score += deviationScore
		}
	}

	for _, p := range a.patterns {
		if euclideanDistance(projection, p.Vector) < patternMatchDistance {
			tags = append(tags, p.Label)
			score += patternMatchScore
		}
	}

	if score > 1.0 {
		score = 1.0
	}

	return score, tags
}

func meanProjection(points []models.SequenceProjection) models.SequenceProjection {
	var mean models.SequenceProjection
	if len(points) == 0 {
		return mean
	}
	for _, p := range points {
		for i := range mean {
			mean[i] += p[i]
		}
	}
	n := float64(len(points))
	for i := range mean {
		mean[i] /= n
	}
	return mean
}

func euclideanDistance(a, b models.SequenceProjection) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
