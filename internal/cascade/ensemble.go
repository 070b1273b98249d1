package cascade

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-investigator/internal/models"
)

// predicate is one step function over the feature map within a rule
// group. Match is evaluated against the feature map; Score is the value
// contributed when it fires.
type predicate struct {
	Label string
	Match func(models.FeatureMap) bool
	Score float64
}

// ruleGroup is one of GradientEnsemble's five weighted groups (§4.3).
type ruleGroup struct {
	Name       string
	Weight     float64
	Predicates []predicate
}

// groups is the full, byte-exact predicate table (§4.3): five weighted
// rule groups (amount 0.25, velocity 0.20, network 0.20, geo 0.20,
// identity 0.15), each a fixed set of step functions over the feature
// map.
var groups = []ruleGroup{
	{
		Name:   "amount",
		Weight: 0.25,
		Predicates: []predicate{
			{"amount_income_ratio_gt_15", func(f models.FeatureMap) bool { return f.Get("amount_income_ratio") > 15 }, 0.9},
			{"amount_income_ratio_gt_10", func(f models.FeatureMap) bool { return f.Get("amount_income_ratio") > 10 }, 0.7},
			{"amount_income_ratio_gt_5", func(f models.FeatureMap) bool { return f.Get("amount_income_ratio") > 5 }, 0.5},
			{"new_account_large_amount", func(f models.FeatureMap) bool {
				return f.GetBool("is_new_account") && f.Get("amount_raw") > 5000
			}, 0.95},
			{"amount_zscore_gt_3", func(f models.FeatureMap) bool { return f.Get("amount_zscore") > 3 }, 0.8},
		},
	},
	{
		Name:   "velocity",
		Weight: 0.20,
		Predicates: []predicate{
			{"structuring", func(f models.FeatureMap) bool { return f.GetBool("is_structuring") }, 0.9},
			{"escalating", func(f models.FeatureMap) bool { return f.GetBool("is_escalating") }, 0.75},
			{"txn_24h_gt_10", func(f models.FeatureMap) bool { return f.Get("txn_24h") > 10 }, 0.7},
			{"structuring_similar_48h_gte_3", func(f models.FeatureMap) bool { return f.Get("structuring_similar_48h") >= 3 }, 0.6},
			{"deposit_withdrawal_ratio_gt_5", func(f models.FeatureMap) bool { return f.Get("deposit_withdrawal_ratio") > 5 }, 0.4},
		},
	},
	{
		Name:   "network",
		Weight: 0.20,
		Predicates: []predicate{
			{"network_risk_gt_0_6", func(f models.FeatureMap) bool { return f.Get("network_risk_score") > 0.6 }, 0.8},
			{"multi_device_ip", func(f models.FeatureMap) bool { return f.GetBool("is_multi_device_ip") }, 0.7},
			{"device_flag_rate_gt_0_3", func(f models.FeatureMap) bool { return f.Get("device_flag_rate") > 0.3 }, 0.6},
			{"ip_flag_rate_gt_0_3", func(f models.FeatureMap) bool { return f.Get("ip_flag_rate") > 0.3 }, 0.6},
			{"device_unique_users_gt_5", func(f models.FeatureMap) bool { return f.Get("device_unique_users") > 5 }, 0.5},
		},
	},
	{
		Name:   "geo",
		Weight: 0.20,
		Predicates: []predicate{
			{"sanctioned_ip", func(f models.FeatureMap) bool { return f.GetBool("ip_is_sanctioned") }, 1.0},
			{"anonymous_high_risk_country", func(f models.FeatureMap) bool {
				return f.Get("ip_anonymity_score") > 0.5 && f.GetBool("ip_is_high_risk_country")
			}, 0.8},
			{"anonymity_gt_0_5", func(f models.FeatureMap) bool { return f.Get("ip_anonymity_score") > 0.5 }, 0.6},
			{"high_risk_country", func(f models.FeatureMap) bool { return f.GetBool("ip_is_high_risk_country") }, 0.5},
			{"night_and_anonymous", func(f models.FeatureMap) bool {
				return f.GetBool("is_night") && f.Get("ip_anonymity_score") > 0.25
			}, 0.3},
		},
	},
	{
		Name:   "identity",
		Weight: 0.15,
		Predicates: []predicate{
			{"doc_verification_failed", func(f models.FeatureMap) bool { return f.GetBool("doc_verification_failed") }, 0.9},
			{"fraud_history_confirmed", func(f models.FeatureMap) bool {
				return f.GetBool("has_fraud_history") && f.Get("fraud_history_confirmed_cases") > 0
			}, 0.85},
			{"doc_risk_gt_0_7", func(f models.FeatureMap) bool { return f.Get("doc_risk") > 0.7 }, 0.7},
			{"employment_risk_gt_0_5", func(f models.FeatureMap) bool { return f.Get("employment_risk") > 0.5 }, 0.3},
			{"source_of_funds_risk_gt_0_5", func(f models.FeatureMap) bool { return f.Get("source_of_funds_risk") > 0.5 }, 0.3},
		},
	},
}

// riskFactorRules is the small fixed mapping from feature predicates to
// human-readable top-risk-factor tags (§4.3).
var riskFactorRules = []struct {
	Label string
	Match func(models.FeatureMap) bool
}{
	{"high_income_ratio", func(f models.FeatureMap) bool { return f.Get("amount_income_ratio") > 5 }},
	{"sanctioned_country", func(f models.FeatureMap) bool { return f.GetBool("ip_is_sanctioned") }},
	{"anonymous_connection", func(f models.FeatureMap) bool { return f.Get("ip_anonymity_score") > 0.5 }},
	{"new_account", func(f models.FeatureMap) bool { return f.GetBool("is_new_account") }},
	{"shared_resources", func(f models.FeatureMap) bool { return f.Get("network_risk_score") > 0.6 }},
	{"structuring_pattern", func(f models.FeatureMap) bool { return f.GetBool("is_structuring") }},
	{"escalating_amounts", func(f models.FeatureMap) bool { return f.GetBool("is_escalating") }},
	{"prior_fraud_history", func(f models.FeatureMap) bool { return f.GetBool("has_fraud_history") }},
}

// verifiedCase is one accepted labeled case offered to the online-
// learning hook (§4.3).
type verifiedCase struct {
	Features models.FeatureMap
	Label    bool
}

// updateBufferCapacity is the bounded online-learning buffer size (§4.3).
const updateBufferCapacity = 100

// GradientEnsemble is L2: a fast weighted rule-ensemble.
type GradientEnsemble struct {
	mu           sync.Mutex
	updateBuffer []verifiedCase
}

// NewGradientEnsemble constructs L2.
func NewGradientEnsemble() *GradientEnsemble {
	return &GradientEnsemble{updateBuffer: make([]verifiedCase, 0, updateBufferCapacity)}
}

// Score evaluates the predicate table against f and returns the fused
// probability plus the top risk factor tags (§4.3).
func (g *GradientEnsemble) Score(f models.FeatureMap) (float64, []string) {
	var sum float64
	for _, grp := range groups {
		var max float64
		for _, p := range grp.Predicates {
			if p.Match(f) && p.Score > max {
				max = p.Score
			}
		}
		sum += max * grp.Weight
	}
	score := sum
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	var factors []string
	for _, rule := range riskFactorRules {
		if rule.Match(f) {
			factors = append(factors, rule.Label)
		}
	}

	return score, factors
}

// AcceptVerifiedCase feeds a verified case into the bounded online-
// learning buffer (§4.3). When the buffer fills, the batch-learning hook
// runs and the buffer clears; the default hook only logs (stub, per §9
// "online-learning hooks ... deliberately a stub").
func (g *GradientEnsemble) AcceptVerifiedCase(features models.FeatureMap, label bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.updateBuffer = append(g.updateBuffer, verifiedCase{Features: features, Label: label})
	if len(g.updateBuffer) >= updateBufferCapacity {
		g.runBatchLearning()
	}
}

func (g *GradientEnsemble) runBatchLearning() {
	log.Info().Int("buffered_cases", len(g.updateBuffer)).Msg("ensemble batch-learning hook fired (stub)")
	g.updateBuffer = g.updateBuffer[:0]
}
