package patterns

import (
	"testing"
	"time"

	"github.com/enterprise/fraud-investigator/internal/models"
)

func blockedCase(id string, f models.FeatureMap) models.ProcessedCase {
	return models.ProcessedCase{
		CaseID:    id,
		Decision:  models.DecisionAutoBlocked,
		Features:  f,
		Timestamp: time.Now(),
	}
}

func TestRecordEvictsOldestAtCapacity(t *testing.T) {
	d := NewDiscovery(time.Minute)
	for i := 0; i < RingCapacity+5; i++ {
		d.Record(blockedCase("c", models.FeatureMap{}))
	}
	if len(d.ring) != RingCapacity {
		t.Fatalf("expected ring to stay bounded at %d, got %d", RingCapacity, len(d.ring))
	}
}

func TestMineEmitsPatternAtThreshold(t *testing.T) {
	d := NewDiscovery(time.Minute)
	for i := 0; i < MinOccurrencesForPattern; i++ {
		f := models.FeatureMap{}
		f.Set("amount_income_ratio", 12)
		d.Record(blockedCase("c", f))
	}

	d.mine()

	found := false
	for _, p := range d.Patterns() {
		if p.PatternType == "high_income_ratio" {
			found = true
			if p.OccurrenceCount != MinOccurrencesForPattern {
				t.Fatalf("expected occurrence count %d, got %d", MinOccurrencesForPattern, p.OccurrenceCount)
			}
		}
	}
	if !found {
		t.Fatalf("expected high_income_ratio pattern to be discovered")
	}
}

func TestMineDoesNotEmitBelowThreshold(t *testing.T) {
	d := NewDiscovery(time.Minute)
	for i := 0; i < MinOccurrencesForPattern-1; i++ {
		f := models.FeatureMap{}
		f.Set("amount_income_ratio", 12)
		d.Record(blockedCase("c", f))
	}

	d.mine()

	if len(d.Patterns()) != 0 {
		t.Fatalf("expected no pattern below threshold, got %d", len(d.Patterns()))
	}
}

func TestMineIgnoresNonBlockedCases(t *testing.T) {
	d := NewDiscovery(time.Minute)
	for i := 0; i < MinOccurrencesForPattern+5; i++ {
		f := models.FeatureMap{}
		f.Set("amount_income_ratio", 12)
		d.Record(models.ProcessedCase{
			CaseID:    "c",
			Decision:  models.DecisionAutoApproved,
			Features:  f,
			Timestamp: time.Now(),
		})
	}

	d.mine()

	if len(d.Patterns()) != 0 {
		t.Fatalf("expected auto_approved cases to be excluded from mining, got %d patterns", len(d.Patterns()))
	}
}

func TestMineDoesNotDuplicateKnownPattern(t *testing.T) {
	d := NewDiscovery(time.Minute)
	for i := 0; i < MinOccurrencesForPattern; i++ {
		f := models.FeatureMap{}
		f.Set("amount_income_ratio", 12)
		d.Record(blockedCase("c", f))
	}

	d.mine()
	d.mine()

	count := 0
	for _, p := range d.Patterns() {
		if p.PatternType == "high_income_ratio" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one high_income_ratio pattern across repeated mining, got %d", count)
	}
}

func TestRecentReturnsMostRecentFirst(t *testing.T) {
	d := NewDiscovery(time.Minute)
	d.Record(blockedCase("first", models.FeatureMap{}))
	d.Record(blockedCase("second", models.FeatureMap{}))
	d.Record(blockedCase("third", models.FeatureMap{}))

	recent := d.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent cases, got %d", len(recent))
	}
	if recent[0].CaseID != "third" || recent[1].CaseID != "second" {
		t.Fatalf("expected most-recent-first ordering, got %v", []string{recent[0].CaseID, recent[1].CaseID})
	}
}
