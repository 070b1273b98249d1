package cascade

import (
	"testing"

	"github.com/enterprise/fraud-investigator/internal/models"
)

func TestScoreCleanCaseIsLow(t *testing.T) {
	e := NewGradientEnsemble()
	f := models.FeatureMap{
		"amount_income_ratio": 0.1,
		"is_new_account":      0,
		"network_risk_score":  0.05,
	}
	score, factors := e.Score(f)
	if score >= 0.20 {
		t.Fatalf("expected a clean case to score below GRAY_MIN, got %f", score)
	}
	if len(factors) != 0 {
		t.Fatalf("expected no risk factors for a clean case, got %v", factors)
	}
}

func TestScoreSanctionedIPIsHigh(t *testing.T) {
	e := NewGradientEnsemble()
	f := models.FeatureMap{
		"ip_is_sanctioned":        1,
		"ip_anonymity_score":      1,
		"is_new_account":          1,
		"amount_raw":              200000,
		"amount_income_ratio":     200,
		"is_structuring":          1,
		"network_risk_score":      0.7,
		"doc_verification_failed": 1,
	}
	score, factors := e.Score(f)
	if score <= 0.80 {
		t.Fatalf("expected sanctioned+new-account+huge-amount case to score above GRAY_MAX, got %f", score)
	}
	found := false
	for _, fac := range factors {
		if fac == "sanctioned_country" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected sanctioned_country risk factor, got %v", factors)
	}
}

func TestScoreIsClippedToUnitRange(t *testing.T) {
	e := NewGradientEnsemble()
	f := models.FeatureMap{}
	for _, k := range models.FeatureKeys {
		f.Set(k, 1e12)
	}
	score, _ := e.Score(f)
	if score < 0 || score > 1 {
		t.Fatalf("expected score clipped to [0,1], got %f", score)
	}
}

func TestAcceptVerifiedCaseClearsBufferAtCapacity(t *testing.T) {
	e := NewGradientEnsemble()
	for i := 0; i < updateBufferCapacity; i++ {
		e.AcceptVerifiedCase(models.FeatureMap{}, true)
	}
	if len(e.updateBuffer) != 0 {
		t.Fatalf("expected buffer to clear once it reached capacity, len=%d", len(e.updateBuffer))
	}
}
