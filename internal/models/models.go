// Package models holds the data types shared across the investigation
// pipeline: the transaction event and its embedded profiles, the feature
// map schema, processed-case and discovered-pattern records, and the
// verdict payload shipped to the case-management sink.
package models

import (
	"math"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
)

// TransactionType enumerates the kinds of transaction the engine scores.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionTrade      TransactionType = "trade"
)

// Decision is the final verdict the Orchestrator emits for a case.
type Decision string

const (
	DecisionAutoApproved Decision = "auto_approved"
	DecisionAutoBlocked  Decision = "auto_blocked"
	DecisionHumanReview  Decision = "human_review"
)

// SinkStatus is the decision re-mapped onto the case-management API's
// status vocabulary (§6).
type SinkStatus string

const (
	SinkStatusAutoApproved       SinkStatus = "auto_approved"
	SinkStatusAutoBlocked        SinkStatus = "auto_blocked"
	SinkStatusUnderInvestigation SinkStatus = "under_investigation"
)

// ToSinkStatus maps a Decision onto the verdict-sink's status vocabulary.
func (d Decision) ToSinkStatus() SinkStatus {
	switch d {
	case DecisionAutoApproved:
		return SinkStatusAutoApproved
	case DecisionAutoBlocked:
		return SinkStatusAutoBlocked
	default:
		return SinkStatusUnderInvestigation
	}
}

// UserProfile is the read-only user context embedded in a transaction.
type UserProfile struct {
	DeclaredMonthlyIncome float64   `json:"declared_monthly_income"`
	AccountCreatedAt      time.Time `json:"account_created_at"`
	RiskLevel             string    `json:"risk_level"` // low, medium, high
	KYCStatus             string    `json:"kyc_status"`
	EmploymentStatus      string    `json:"employment_status"`
	SourceOfFunds         string    `json:"source_of_funds"`
	TotalDeposits         float64   `json:"total_deposits"`
	TotalWithdrawals      float64   `json:"total_withdrawals"`
}

// IPProfile is the read-only network context embedded in a transaction.
type IPProfile struct {
	IsVPN           bool    `json:"is_vpn"`
	IsTor           bool    `json:"is_tor"`
	IsProxy         bool    `json:"is_proxy"`
	IsDatacenter    bool    `json:"is_datacenter"`
	IsAnonymous     bool    `json:"is_anonymous"`
	IsSanctioned    bool    `json:"is_sanctioned"`
	IsHighRiskCtry  bool    `json:"is_high_risk_country"`
	RiskScore       float64 `json:"risk_score"`
	UniqueUsers90d  int     `json:"unique_users_90d"`
	UniqueDevices90 int     `json:"unique_devices_90d"`
}

// DeviceProfile is the read-only device context embedded in a transaction.
type DeviceProfile struct {
	IsEmulator     bool `json:"is_emulator"`
	UniqueUsers90d int  `json:"unique_users_90d"`
	UniqueIPs90d   int  `json:"unique_ips_90d"`
}

// DocumentProfile is the read-only KYC document context embedded in a
// transaction.
type DocumentProfile struct {
	VerificationStatus string  `json:"verification_status"`
	Confidence         float64 `json:"confidence"`
	FaceMatchScore     float64 `json:"face_match_score"`
	IsForged           bool    `json:"is_forged"`
	IsAIGenerated      bool    `json:"is_ai_generated"`
}

// Score returns a single document trust score in [0,1], higher meaning
// more trustworthy; 0 for a forged or AI-generated document (§4.2:
// doc_risk = 1 - score).
func (d DocumentProfile) Score() float64 {
	if d.IsForged || d.IsAIGenerated {
		return 0
	}
	return d.Confidence
}

// Transaction is the immutable input event. Amount is currency-tagged via
// go-money, matching §3's "amount (decimal, currency-tagged)".
type Transaction struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Amount        *money.Money    `json:"-"`
	AmountMinor   int64           `json:"amount_minor"`
	Currency      string          `json:"currency"`
	Type          TransactionType `json:"type"`
	PaymentMethod string          `json:"payment_method"`
	IPAddress     string          `json:"ip_address"`
	DeviceID      string          `json:"device_id"`
	CountryCode   string          `json:"country_code"`

	User     UserProfile     `json:"user_profile"`
	IP       IPProfile       `json:"ip_profile"`
	Device   DeviceProfile   `json:"device_profile"`
	Document DocumentProfile `json:"document_profile"`
}

// AmountFloat returns the transaction amount in major currency units
// (e.g. dollars, not cents), the unit every feature/threshold in §4
// operates on.
func (t *Transaction) AmountFloat() float64 {
	if t.Amount != nil {
		return float64(t.Amount.Amount()) / 100.0
	}
	return float64(t.AmountMinor) / 100.0
}

// FeatureMap is the fixed named feature schema produced by L1 and
// consumed by every later layer. Keys are listed in FeatureKeys.
type FeatureMap map[string]float64

// Get returns a feature value, defaulting to 0 for an absent or
// non-finite key (§3: "missing inputs normalize to 0").
func (f FeatureMap) Get(key string) float64 {
	v, ok := f[key]
	if !ok || !isFinite(v) {
		return 0
	}
	return v
}

// GetBool treats a feature as a boolean flag (nonzero == true).
func (f FeatureMap) GetBool(key string) bool {
	return f.Get(key) != 0
}

// Set stores a value, normalizing NaN/Inf to 0 per §4.2.
func (f FeatureMap) Set(key string, value float64) {
	if isFinite(value) {
		f[key] = value
	} else {
		f[key] = 0
	}
}

// SetBool stores a boolean flag as 0/1.
func (f FeatureMap) SetBool(key string, value bool) {
	if value {
		f[key] = 1
	} else {
		f[key] = 0
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) // excludes NaN and +-Inf
}

// FeatureKeys enumerates the schema-locked set of feature map keys
// (§8 invariant 9: implementers must expose the key list for round-trip
// tests).
var FeatureKeys = []string{
	"amount_raw", "amount_log", "amount_income_ratio", "amount_zscore",
	"account_age_hours", "account_age_days", "account_age_log",
	"hour_of_day", "is_weekend", "is_night", "is_business_hours",
	"txn_24h", "deposits_24h", "withdrawals_24h",
	"txn_7d", "deposits_7d", "txn_30d",
	"avg_amount_30d", "stddev_amount_30d",
	"total_txns", "total_deposits", "total_withdrawals",
	"deposit_withdrawal_ratio", "avg_transaction_size",
	"device_unique_users", "device_unique_ips", "device_flag_rate",
	"ip_unique_users", "ip_unique_devices", "ip_flag_rate",
	"network_risk_score", "is_multi_device_ip",
	"is_new_account", "is_very_new_account",
	"is_escalating", "escalation_ratio",
	"is_structuring", "structuring_similar_48h",
	"employment_risk", "source_of_funds_risk",
	"ip_anonymity_score", "ip_is_sanctioned", "ip_is_high_risk_country",
	"doc_risk", "doc_verification_failed",
	"has_fraud_history", "fraud_history_confirmed_cases",
}

// ProcessedCase is the record written once per investigation, retained
// in PatternDiscovery's bounded ring.
type ProcessedCase struct {
	CaseID           string
	UserID           string
	Features         FeatureMap
	EnsembleScore    float64
	RingScore        float64
	AnomalyScore     float64
	CombinedScore    float64
	Decision         Decision
	Confidence       float64
	TopRiskFactors   []string
	AnomalyTags      []string
	LayersExecuted   []string
	LayersSkipped    []string
	DegradedInputs   bool
	LayerUnavailable bool
	ProcessingTimeMs int64
	Timestamp        time.Time
}

// DiscoveredPattern is a recurring feature signature PatternDiscovery has
// mined from recent auto_blocked cases.
type DiscoveredPattern struct {
	PatternID       string
	PatternType     string
	Predicate       func(FeatureMap) bool `json:"-"`
	PredicateLabel  string
	OccurrenceCount int
	FirstSeen       time.Time
	LastSeen        time.Time
	Precision       float64
	Recall          float64
}

// SequenceProjection is the fixed-length numeric projection of a feature
// map AnomalyDetector keeps per user (§4.5).
type SequenceProjection [6]float64

// DetectionSignals mirrors the verdict-sink's `detectionSignals` object.
type DetectionSignals struct {
	EnsembleScore     float64  `json:"ensembleScore"`
	RingScore         float64  `json:"ringScore,omitempty"`
	AnomalyScore      float64  `json:"anomalyScore,omitempty"`
	CombinedScore     float64  `json:"combinedScore"`
	ProcessingTimeMs  int64    `json:"processingTimeMs"`
	ModelVersion      string   `json:"modelVersion"`
	TopRiskFactors    []string `json:"topRiskFactors,omitempty"`
	AnomaliesDetected []string `json:"anomaliesDetected,omitempty"`
	LayersExecuted    []string `json:"layersExecuted"`
	LayersSkipped     []string `json:"layersSkipped"`
}

// EnsembleSignals is L2's diagnostic sub-object within `aiSignals`.
type EnsembleSignals struct {
	Score          float64  `json:"score"`
	TopRiskFactors []string `json:"topRiskFactors"`
}

// GraphSignals is L3's diagnostic sub-object within `aiSignals`.
type GraphSignals struct {
	RingScore        float64  `json:"ringScore"`
	ConnectedUserIDs []string `json:"connectedUserIds"`
	LayerUnavailable bool     `json:"layerUnavailable,omitempty"`
}

// AnomalySignals is L4's diagnostic sub-object within `aiSignals`.
type AnomalySignals struct {
	Score            float64  `json:"score"`
	Tags             []string `json:"tags"`
	LayerUnavailable bool     `json:"layerUnavailable,omitempty"`
}

// ReasonerSignals is L5's diagnostic sub-object within `aiSignals`.
type ReasonerSignals struct {
	Recommendation string  `json:"recommendation"`
	Reasoning      string  `json:"reasoning"`
	Confidence     float64 `json:"confidence"`
	CacheHit       bool    `json:"cacheHit"`
}

// AISignals mirrors the verdict-sink's `aiSignals` object: null
// substructures encode a skipped layer (§9).
type AISignals struct {
	Ensemble       *EnsembleSignals `json:"ensemble"`
	Graph          *GraphSignals    `json:"graph"`
	Anomaly        *AnomalySignals  `json:"anomaly"`
	Reasoner       *ReasonerSignals `json:"reasoner"`
	DegradedInputs bool             `json:"degradedInputs,omitempty"`
}

// IdentityFlags mirrors the verdict-sink's `identityFlags` object.
type IdentityFlags struct {
	DocVerificationFailed bool    `json:"docVerificationFailed"`
	DocRisk               float64 `json:"docRisk"`
	KYCStatus             string  `json:"kycStatus"`
}

// BehavioralFlags mirrors the verdict-sink's `behavioralFlags` object.
type BehavioralFlags struct {
	EmploymentRisk    float64 `json:"employmentRisk"`
	SourceOfFundsRisk float64 `json:"sourceOfFundsRisk"`
	IsNewAccount      bool    `json:"isNewAccount"`
	IsEscalating      bool    `json:"isEscalating"`
	IsStructuring     bool    `json:"isStructuring"`
}

// NetworkFlags mirrors the verdict-sink's `networkFlags` object.
type NetworkFlags struct {
	NetworkRiskScore float64 `json:"networkRiskScore"`
	IsMultiDeviceIP  bool    `json:"isMultiDeviceIp"`
	IPAnonymityScore float64 `json:"ipAnonymityScore"`
	IsSanctioned     bool    `json:"isSanctioned"`
}

// VerdictPayload is the JSON body POSTed to the case-management sink
// (§6).
type VerdictPayload struct {
	CaseID              string           `json:"caseId"`
	Status              SinkStatus       `json:"status"`
	ConfidenceScore     float64          `json:"confidenceScore"`
	FraudProbability    float64          `json:"fraudProbability"`
	TriggeredBy         string           `json:"triggeredBy"`
	DetectionSignals    DetectionSignals `json:"detectionSignals"`
	AISignals           AISignals        `json:"aiSignals"`
	IdentityFlags       IdentityFlags    `json:"identityFlags"`
	BehavioralFlags     BehavioralFlags  `json:"behavioralFlags"`
	NetworkFlags        NetworkFlags     `json:"networkFlags"`
	AIReasoning         string           `json:"aiReasoning"`
	AIRecommendations   string           `json:"aiRecommendations"`
	InvestigationLayers []string         `json:"investigationLayers"`
	ProcessingTimeMs    int64            `json:"processingTimeMs"`
	FraudRingID         string           `json:"fraudRingId,omitempty"`
	RelatedAccounts     []string         `json:"relatedAccounts,omitempty"`
}

// Investigation layer tags used in VerdictPayload.InvestigationLayers.
const (
	LayerRuleBased        = "rule_based"
	LayerMLModels         = "ml_models"
	LayerGraphAnalysis    = "graph_analysis"
	LayerPatternDetection = "pattern_detection"
	LayerLLMReasoning     = "llm_reasoning"
)

// NewCaseID allocates a fresh opaque case identifier.
func NewCaseID() string {
	return uuid.NewString()
}

// HistoryQueryResults bundles every HistoryStore read L1 performs for a
// single transaction (§4.1/§4.2).
type HistoryQueryResults struct {
	Velocity    VelocityMetrics
	Device      DeviceHistory
	IP          IPHistory
	Escalation  EscalationResult
	Structuring StructuringResult
	FraudHist   FraudHistory

	// Degraded reports whether any of the above queries failed and was
	// zero-filled, so the Orchestrator can force human_review per §4.1/§7.
	Degraded bool
}

// VelocityMetrics is HistoryStore.Velocity's result shape (§4.1).
type VelocityMetrics struct {
	TxnLast24h         int
	DepositsLast24h    int
	WithdrawalsLast24h int
	TxnLast7d          int
	DepositsLast7d     int
	TxnLast30d         int
	AvgAmount30d       float64
	StddevAmount30d    float64
	TotalTxns          int
	TotalDeposits      int
	TotalWithdrawals   int
	LastTxnAt          *time.Time
}

// DeviceHistory is HistoryStore.DeviceHistory's result shape (§4.1).
type DeviceHistory struct {
	UniqueUsers int
	UniqueIPs   int
	TotalTxns   int
	FlaggedTxns int
	FlagRate    float64
}

// IPHistory is HistoryStore.IPHistory's result shape (§4.1).
type IPHistory struct {
	UniqueUsers   int
	UniqueDevices int
	TotalTxns     int
	FlaggedTxns   int
	FlagRate      float64
	LastSeen      *time.Time
}

// EscalationResult is HistoryStore.DetectEscalation's result shape
// (§4.1).
type EscalationResult struct {
	IsEscalating    bool
	EscalationRatio float64
	Count           int
}

// StructuringResult is HistoryStore.DetectStructuring's result shape
// (§4.1).
type StructuringResult struct {
	IsStructuring  bool
	Similar48h     int
	TotalAmount48h float64
}

// ConnectedUser is one row of HistoryStore.ConnectedUsers's result
// (§4.1).
type ConnectedUser struct {
	UserID    string
	Strength  int
	RiskLevel string // high, medium, low
}

// CoordinatedTimingResult is HistoryStore.CoordinatedTiming's result
// shape (§4.1).
type CoordinatedTimingResult struct {
	IsCoordinated      bool
	CoordinatedWindows int
	RingSize           int
}

// FraudHistory is HistoryStore.UserFraudHistory's result shape (§4.1).
type FraudHistory struct {
	TotalCases     int
	ConfirmedCases int
	HasHistory     bool
	LastCaseAt     *time.Time
	FraudTypes     []string
}

// SimilarPatternsResult is HistoryStore.SimilarPatterns's result shape
// (§4.1): how many confirmed fraud patterns reference the user (at most
// 5) and their average risk score. No feature-signature similarity is
// computed.
type SimilarPatternsResult struct {
	SimilarCount     int
	AvgConfirmedRisk float64
}
