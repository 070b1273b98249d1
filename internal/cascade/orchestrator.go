package cascade

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-investigator/configs"
	"github.com/enterprise/fraud-investigator/internal/features"
	"github.com/enterprise/fraud-investigator/internal/models"
)

const modelVersion = "cascade-v1"

// CaseRecorder receives every processed case, typically
// internal/patterns.Discovery.
type CaseRecorder interface {
	Record(models.ProcessedCase)
}

// Orchestrator runs the cascade with short-circuit gates, fuses scores,
// and records the case (§4.7).
type Orchestrator struct {
	extractor *features.Extractor
	ensemble  *GradientEnsemble
	graph     *GraphAnalyzer
	anomaly   *AnomalyDetector
	reasoner  *Reasoner
	recorder  CaseRecorder
	gray      configs.GrayConfig
	soft      time.Duration
}

// NewOrchestrator wires the full cascade.
func NewOrchestrator(
	extractor *features.Extractor,
	ensemble *GradientEnsemble,
	graph *GraphAnalyzer,
	anomaly *AnomalyDetector,
	reasoner *Reasoner,
	recorder CaseRecorder,
	gray configs.GrayConfig,
	softBudget time.Duration,
) *Orchestrator {
	return &Orchestrator{
		extractor: extractor,
		ensemble:  ensemble,
		graph:     graph,
		anomaly:   anomaly,
		reasoner:  reasoner,
		recorder:  recorder,
		gray:      gray,
		soft:      softBudget,
	}
}

// Investigate runs the full algorithm from §4.7 for a single transaction
// and returns its verdict payload plus the record appended to
// PatternDiscovery.
func (o *Orchestrator) Investigate(ctx context.Context, tx *models.Transaction) (models.VerdictPayload, models.ProcessedCase) {
	start := time.Now()
	caseID := models.NewCaseID()

	layersExecuted := []string{models.LayerRuleBased}
	var layersSkipped []string

	feats, hist := o.extractor.Extract(ctx, tx)
	mlScore, topFactors := o.ensemble.Score(feats)
	layersExecuted = append(layersExecuted, models.LayerMLModels)

	var (
		decision       models.Decision
		confidence     float64
		ringScore      float64
		anomalyScore   float64
		connectedUsers []string
		anomalyTags    []string
		layerUnavail   bool
		degradedInputs bool
		reasonerResult *ReasonerResult
		cacheHit       bool
	)

	gate := gateDecision(mlScore, o.gray)

	switch {
	case hist.Degraded:
		// §4.1/§7: HistoryStore failures in L1 force human_review, never
		// auto-approved/auto-blocked under uncertainty.
		decision = models.DecisionHumanReview
		confidence = 0.5
		degradedInputs = true
		layersSkipped = append(layersSkipped, models.LayerGraphAnalysis, models.LayerPatternDetection, models.LayerLLMReasoning)

	case gate != "":
		decision = gate
		confidence = mlScore
		layersSkipped = append(layersSkipped, models.LayerGraphAnalysis, models.LayerPatternDetection, models.LayerLLMReasoning)

	default:
		ringScore, anomalyScore, connectedUsers, anomalyTags, layerUnavail = o.RunParallel(ctx, tx, feats)
		layersExecuted = append(layersExecuted, models.LayerGraphAnalysis, models.LayerPatternDetection)

		combined := 0.4*mlScore + 0.3*ringScore + 0.3*anomalyScore

		if combined >= o.gray.HumanMin && combined <= o.gray.HumanMax {
			reasonCtx := o.buildReasonerContext(tx, feats, mlScore, ringScore, anomalyScore)
			result, hit := o.reasoner.Evaluate(ctx, reasonCtx)
			reasonerResult = &result
			cacheHit = hit
			layersExecuted = append(layersExecuted, models.LayerLLMReasoning)
			decision = mapRecommendation(result.Recommendation)
			confidence = result.Confidence
		} else {
			layersSkipped = append(layersSkipped, models.LayerLLMReasoning)
			decision = decideFromCombined(combined, o.gray)
			confidence = combined
		}
	}

	combinedScore := 0.4*mlScore + 0.3*ringScore + 0.3*anomalyScore
	elapsed := time.Since(start)
	if elapsed > o.soft {
		log.Warn().Str("case_id", caseID).Dur("elapsed", elapsed).Msg("investigation exceeded soft budget")
	}

	processed := models.ProcessedCase{
		CaseID:           caseID,
		UserID:           tx.UserID,
		Features:         feats,
		EnsembleScore:    mlScore,
		RingScore:        ringScore,
		AnomalyScore:     anomalyScore,
		CombinedScore:    combinedScore,
		Decision:         decision,
		Confidence:       confidence,
		TopRiskFactors:   topFactors,
		AnomalyTags:      anomalyTags,
		LayersExecuted:   layersExecuted,
		LayersSkipped:    layersSkipped,
		DegradedInputs:   degradedInputs,
		LayerUnavailable: layerUnavail,
		ProcessingTimeMs: elapsed.Milliseconds(),
		Timestamp:        start,
	}

	if o.recorder != nil {
		o.recorder.Record(processed)
	}

	payload := buildVerdictPayload(tx, feats, processed, connectedUsers, reasonerResult, cacheHit, layerUnavail, degradedInputs)
	return payload, processed
}

// runGraph runs L3, degrading to a zero score with layer_unavailable on
// failure (§4.4, §7).
func (o *Orchestrator) runGraph(ctx context.Context, tx *models.Transaction) (float64, []string, bool) {
	score, ids, err := o.graph.Analyze(ctx, tx)
	if err != nil {
		return 0, nil, true
	}
	return score, ids, false
}

// RunParallel runs L3 and L4 concurrently via errgroup, per §4.7 step 4.
// Investigate uses this for every gray-area case.
func (o *Orchestrator) RunParallel(ctx context.Context, tx *models.Transaction, feats models.FeatureMap) (ringScore, anomalyScore float64, connectedUsers, anomalyTags []string, layerUnavailable bool) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ringScore, connectedUsers, layerUnavailable = o.runGraph(gctx, tx)
		return nil
	})
	g.Go(func() error {
		anomalyScore, anomalyTags = o.anomaly.Detect(tx.UserID, feats)
		return nil
	})
	_ = g.Wait()
	return
}

// gateDecision implements the §4.7 step-3 short-circuit gate. It returns
// "" when ml falls inside the gray area (no short circuit).
func gateDecision(ml float64, gray configs.GrayConfig) models.Decision {
	switch {
	case ml > gray.GrayMax:
		return models.DecisionAutoBlocked
	case ml < gray.GrayMin:
		return models.DecisionAutoApproved
	default:
		return ""
	}
}

// decideFromCombined implements §4.7 step 6's else-branch routing once
// L5 was not invoked.
func decideFromCombined(combined float64, gray configs.GrayConfig) models.Decision {
	switch {
	case combined >= gray.GrayMax:
		return models.DecisionAutoBlocked
	case combined <= gray.GrayMin:
		return models.DecisionAutoApproved
	default:
		return models.DecisionHumanReview
	}
}

func mapRecommendation(rec string) models.Decision {
	switch rec {
	case "approve":
		return models.DecisionAutoApproved
	case "block":
		return models.DecisionAutoBlocked
	default:
		return models.DecisionHumanReview
	}
}

func (o *Orchestrator) buildReasonerContext(tx *models.Transaction, feats models.FeatureMap, ml, ring, anomaly float64) map[string]any {
	return map[string]any{
		"transaction": map[string]any{
			"amount":   tx.AmountFloat(),
			"type":     tx.Type,
			"currency": tx.Currency,
			"country":  tx.CountryCode,
		},
		"user": map[string]any{
			"risk_level":  tx.User.RiskLevel,
			"kyc_status":  tx.User.KYCStatus,
			"account_age": feats.Get("account_age_days"),
		},
		"scores": map[string]any{
			"ensemble": ml,
			"graph":    ring,
			"anomaly":  anomaly,
		},
		"flags": map[string]any{
			"is_structuring":   feats.GetBool("is_structuring"),
			"is_escalating":    feats.GetBool("is_escalating"),
			"ip_is_sanctioned": feats.GetBool("ip_is_sanctioned"),
			"doc_risk":         feats.Get("doc_risk"),
		},
	}
}
