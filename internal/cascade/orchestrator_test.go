package cascade

import (
	"testing"

	"github.com/enterprise/fraud-investigator/configs"
	"github.com/enterprise/fraud-investigator/internal/models"
)

func testGray() configs.GrayConfig {
	return configs.GrayConfig{GrayMin: 0.20, GrayMax: 0.80, HumanMin: 0.40, HumanMax: 0.60}
}

func TestGateDecisionBlocksAboveGrayMax(t *testing.T) {
	if got := gateDecision(0.81, testGray()); got != models.DecisionAutoBlocked {
		t.Fatalf("expected auto_blocked, got %v", got)
	}
}

func TestGateDecisionApprovesBelowGrayMin(t *testing.T) {
	if got := gateDecision(0.19, testGray()); got != models.DecisionAutoApproved {
		t.Fatalf("expected auto_approved, got %v", got)
	}
}

func TestGateDecisionNoShortCircuitInGrayArea(t *testing.T) {
	if got := gateDecision(0.5, testGray()); got != "" {
		t.Fatalf("expected no short-circuit in the gray area, got %v", got)
	}
}

func TestDecideFromCombinedRoutesToHumanReview(t *testing.T) {
	if got := decideFromCombined(0.65, testGray()); got != models.DecisionHumanReview {
		t.Fatalf("expected human_review for combined=0.65, got %v", got)
	}
}

func TestDecideFromCombinedRoutesToBlocked(t *testing.T) {
	if got := decideFromCombined(0.85, testGray()); got != models.DecisionAutoBlocked {
		t.Fatalf("expected auto_blocked for combined >= GRAY_MAX, got %v", got)
	}
}

func TestMapRecommendation(t *testing.T) {
	cases := map[string]models.Decision{
		"approve":      models.DecisionAutoApproved,
		"block":        models.DecisionAutoBlocked,
		"human_review": models.DecisionHumanReview,
		"garbage":      models.DecisionHumanReview,
	}
	for rec, want := range cases {
		if got := mapRecommendation(rec); got != want {
			t.Errorf("mapRecommendation(%q) = %v, want %v", rec, got, want)
		}
	}
}
