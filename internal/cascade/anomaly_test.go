package cascade

import (
	"testing"

	"github.com/enterprise/fraud-investigator/internal/models"
)

func TestDetectSequenceCapacityBounded(t *testing.T) {
	a := NewAnomalyDetector(nil)
	for i := 0; i < 50; i++ {
		a.Detect("user-1", models.FeatureMap{"amount_log": float64(i)})
	}
	seq, ok := a.cache.Get("user-1")
	if !ok {
		t.Fatalf("expected user-1's sequence to still be tracked")
	}
	if len(seq.points) > sequenceCapacity {
		t.Fatalf("expected sequence length <= %d, got %d", sequenceCapacity, len(seq.points))
	}
}

func TestDetectMatchesFixedPattern(t *testing.T) {
	a := NewAnomalyDetector(nil)
	f := models.FeatureMap{}
	f.Set("amount_log", fixedPatterns[0].Vector[0])
	f.Set("amount_income_ratio", fixedPatterns[0].Vector[1])
	f.Set("account_age_log", fixedPatterns[0].Vector[2])
	f.Set("ip_anonymity_score", fixedPatterns[0].Vector[3])
	f.Set("network_risk_score", fixedPatterns[0].Vector[4])
	f.Set("doc_risk", fixedPatterns[0].Vector[5])

	score, tags := a.Detect("user-2", f)
	if score <= 0 {
		t.Fatalf("expected nonzero score for an exact pattern match")
	}
	found := false
	for _, tag := range tags {
		if tag == fixedPatterns[0].Label {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected tag %q, got %v", fixedPatterns[0].Label, tags)
	}
}

func TestDetectScoreClippedToOne(t *testing.T) {
	a := NewAnomalyDetector(nil)
	f := models.FeatureMap{}
	for _, k := range models.FeatureKeys {
		f.Set(k, 0)
	}
	score, _ := a.Detect("user-3", f)
	if score < 0 || score > 1 {
		t.Fatalf("expected score within [0,1], got %f", score)
	}
}
