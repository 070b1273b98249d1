package cascade

import (
	"github.com/enterprise/fraud-investigator/internal/models"
)

// buildVerdictPayload assembles the JSON body POSTed to the verdict sink
// (§6), folding layer-skip bookkeeping into null substructures per §9.
func buildVerdictPayload(
	tx *models.Transaction,
	feats models.FeatureMap,
	proc models.ProcessedCase,
	connectedUsers []string,
	reasonerResult *ReasonerResult,
	cacheHit bool,
	layerUnavailable bool,
	degradedInputs bool,
) models.VerdictPayload {
	ran := func(layer string) bool {
		for _, l := range proc.LayersExecuted {
			if l == layer {
				return true
			}
		}
		return false
	}

	var ai models.AISignals
	ai.Ensemble = &models.EnsembleSignals{Score: proc.EnsembleScore, TopRiskFactors: proc.TopRiskFactors}

	if ran(models.LayerGraphAnalysis) {
		ai.Graph = &models.GraphSignals{
			RingScore:        proc.RingScore,
			ConnectedUserIDs: connectedUsers,
			LayerUnavailable: layerUnavailable,
		}
	}
	if ran(models.LayerPatternDetection) {
		ai.Anomaly = &models.AnomalySignals{
			Score:            proc.AnomalyScore,
			Tags:             proc.AnomalyTags,
			LayerUnavailable: layerUnavailable,
		}
	}
	if reasonerResult != nil {
		ai.Reasoner = &models.ReasonerSignals{
			Recommendation: reasonerResult.Recommendation,
			Reasoning:      reasonerResult.Reasoning,
			Confidence:     reasonerResult.Confidence,
			CacheHit:       cacheHit,
		}
	}
	ai.DegradedInputs = degradedInputs

	reasoning := ""
	recommendations := ""
	if reasonerResult != nil {
		reasoning = reasonerResult.Reasoning
		recommendations = string(proc.Decision)
	}

	return models.VerdictPayload{
		CaseID:           proc.CaseID,
		Status:           proc.Decision.ToSinkStatus(),
		ConfidenceScore:  proc.Confidence,
		FraudProbability: proc.CombinedScore,
		TriggeredBy:      "AI_INVESTIGATION",
		DetectionSignals: models.DetectionSignals{
			EnsembleScore:     proc.EnsembleScore,
			RingScore:         proc.RingScore,
			AnomalyScore:      proc.AnomalyScore,
			CombinedScore:     proc.CombinedScore,
			ProcessingTimeMs:  proc.ProcessingTimeMs,
			ModelVersion:      modelVersion,
			TopRiskFactors:    proc.TopRiskFactors,
			AnomaliesDetected: proc.AnomalyTags,
			LayersExecuted:    proc.LayersExecuted,
			LayersSkipped:     proc.LayersSkipped,
		},
		AISignals: ai,
		IdentityFlags: models.IdentityFlags{
			DocVerificationFailed: feats.GetBool("doc_verification_failed"),
			DocRisk:                feats.Get("doc_risk"),
			KYCStatus:              tx.User.KYCStatus,
		},
		BehavioralFlags: models.BehavioralFlags{
			EmploymentRisk:    feats.Get("employment_risk"),
			SourceOfFundsRisk: feats.Get("source_of_funds_risk"),
			IsNewAccount:      feats.GetBool("is_new_account"),
			IsEscalating:      feats.GetBool("is_escalating"),
			IsStructuring:     feats.GetBool("is_structuring"),
		},
		NetworkFlags: models.NetworkFlags{
			NetworkRiskScore: feats.Get("network_risk_score"),
			IsMultiDeviceIP:  feats.GetBool("is_multi_device_ip"),
			IPAnonymityScore: feats.Get("ip_anonymity_score"),
			IsSanctioned:     feats.GetBool("ip_is_sanctioned"),
		},
		AIReasoning:         reasoning,
		AIRecommendations:   recommendations,
		InvestigationLayers: proc.LayersExecuted,
		ProcessingTimeMs:    proc.ProcessingTimeMs,
	}
}
