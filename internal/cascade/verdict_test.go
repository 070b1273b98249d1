package cascade

import (
	"testing"

	"github.com/enterprise/fraud-investigator/internal/models"
)

func TestBuildVerdictPayloadNullsSkippedLayers(t *testing.T) {
	tx := &models.Transaction{User: models.UserProfile{KYCStatus: "verified"}}
	feats := models.FeatureMap{}
	proc := models.ProcessedCase{
		CaseID:         "c1",
		EnsembleScore:  0.9,
		Decision:       models.DecisionAutoBlocked,
		Confidence:     0.9,
		LayersExecuted: []string{models.LayerRuleBased, models.LayerMLModels},
		LayersSkipped:  []string{models.LayerGraphAnalysis, models.LayerPatternDetection, models.LayerLLMReasoning},
	}

	payload := buildVerdictPayload(tx, feats, proc, nil, nil, false, false, false)

	if payload.AISignals.Graph != nil {
		t.Fatalf("expected nil Graph signals for a skipped layer")
	}
	if payload.AISignals.Anomaly != nil {
		t.Fatalf("expected nil Anomaly signals for a skipped layer")
	}
	if payload.AISignals.Reasoner != nil {
		t.Fatalf("expected nil Reasoner signals for a skipped layer")
	}
	if payload.Status != models.SinkStatusAutoBlocked {
		t.Fatalf("expected status auto_blocked, got %v", payload.Status)
	}
}

func TestBuildVerdictPayloadPopulatesExecutedLayers(t *testing.T) {
	tx := &models.Transaction{}
	feats := models.FeatureMap{}
	proc := models.ProcessedCase{
		CaseID:         "c2",
		Decision:       models.DecisionHumanReview,
		LayersExecuted: []string{models.LayerRuleBased, models.LayerMLModels, models.LayerGraphAnalysis, models.LayerPatternDetection},
		RingScore:      0.4,
		AnomalyScore:   0.2,
	}

	payload := buildVerdictPayload(tx, feats, proc, []string{"u2"}, nil, false, false, false)

	if payload.AISignals.Graph == nil || payload.AISignals.Graph.RingScore != 0.4 {
		t.Fatalf("expected populated graph signals, got %+v", payload.AISignals.Graph)
	}
	if payload.AISignals.Anomaly == nil || payload.AISignals.Anomaly.Score != 0.2 {
		t.Fatalf("expected populated anomaly signals, got %+v", payload.AISignals.Anomaly)
	}
	if payload.Status != models.SinkStatusUnderInvestigation {
		t.Fatalf("expected status under_investigation for human_review, got %v", payload.Status)
	}
}
