// Package features turns a transaction event plus HistoryStore reads
// into the fixed named feature map every later cascade layer consumes
// (§3, §4.2).
package features

import (
	"context"
	"math"
	"time"

	"github.com/enterprise/fraud-investigator/internal/historystore"
	"github.com/enterprise/fraud-investigator/internal/models"
)

// Extractor is FeatureExtractor (L1).
type Extractor struct {
	history *historystore.Store
}

// New constructs an Extractor bound to a HistoryStore handle.
func New(history *historystore.Store) *Extractor {
	return &Extractor{history: history}
}

var employmentRisk = map[string]float64{
	"unemployed":     0.7,
	"student":        0.5,
	"self_employed":  0.3,
	"employed":       0.1,
	"retired":        0.2,
}

var sourceOfFundsRisk = map[string]float64{
	"salary":      0.1,
	"business":    0.2,
	"investment":  0.3,
	"inheritance": 0.4,
	"other":       0.6,
}

// Extract runs the six parallel history reads and derives the full
// feature map for tx (§4.2). The returned HistoryQueryResults lets the
// Orchestrator check degradation for routing (§4.1/§7).
func (e *Extractor) Extract(ctx context.Context, tx *models.Transaction) (models.FeatureMap, models.HistoryQueryResults) {
	hist := e.history.FetchAll(ctx, tx)
	return e.derive(tx, hist), hist
}

func (e *Extractor) derive(tx *models.Transaction, hist models.HistoryQueryResults) models.FeatureMap {
	f := make(models.FeatureMap, len(models.FeatureKeys))
	amount := tx.AmountFloat()
	now := time.Now()

	f.Set("amount_raw", amount)
	f.Set("amount_log", math.Log(1+amount))

	income := tx.User.DeclaredMonthlyIncome
	if income < 1 {
		income = 1
	}
	f.Set("amount_income_ratio", amount/income)

	if hist.Velocity.StddevAmount30d > 0 {
		f.Set("amount_zscore", math.Abs(amount-hist.Velocity.AvgAmount30d)/hist.Velocity.StddevAmount30d)
	} else {
		f.Set("amount_zscore", 0)
	}

	accountAge := now.Sub(tx.User.AccountCreatedAt)
	ageHours := accountAge.Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	f.Set("account_age_hours", ageHours)
	f.Set("account_age_days", ageHours/24)
	f.Set("account_age_log", math.Log(1+ageHours))
	f.SetBool("is_new_account", ageHours < 24)
	f.SetBool("is_very_new_account", ageHours < 1)

	hour := tx.Timestamp.Hour()
	weekday := int(tx.Timestamp.Weekday())
	if tx.Timestamp.Weekday() == time.Sunday {
		weekday = 7 // Monday=1..Sunday=7 so "weekday >= 6" reads Sat/Sun
	}
	f.Set("hour_of_day", float64(hour))
	f.SetBool("is_weekend", weekday >= 6)
	f.SetBool("is_night", hour >= 22 || hour <= 6)
	f.SetBool("is_business_hours", hour >= 9 && hour <= 17)

	f.Set("txn_24h", float64(hist.Velocity.TxnLast24h))
	f.Set("deposits_24h", float64(hist.Velocity.DepositsLast24h))
	f.Set("withdrawals_24h", float64(hist.Velocity.WithdrawalsLast24h))
	f.Set("txn_7d", float64(hist.Velocity.TxnLast7d))
	f.Set("deposits_7d", float64(hist.Velocity.DepositsLast7d))
	f.Set("txn_30d", float64(hist.Velocity.TxnLast30d))
	f.Set("avg_amount_30d", hist.Velocity.AvgAmount30d)
	f.Set("stddev_amount_30d", hist.Velocity.StddevAmount30d)
	f.Set("total_txns", float64(hist.Velocity.TotalTxns))
	f.Set("total_deposits", float64(hist.Velocity.TotalDeposits))
	f.Set("total_withdrawals", float64(hist.Velocity.TotalWithdrawals))

	withdrawals := float64(hist.Velocity.TotalWithdrawals)
	if withdrawals < 1 {
		withdrawals = 1
	}
	f.Set("deposit_withdrawal_ratio", float64(hist.Velocity.TotalDeposits)/withdrawals)

	totalTxns := float64(hist.Velocity.TotalTxns)
	if totalTxns < 1 {
		totalTxns = 1
	}
	f.Set("avg_transaction_size", float64(hist.Velocity.TotalDeposits)/totalTxns)

	f.Set("device_unique_users", float64(hist.Device.UniqueUsers))
	f.Set("device_unique_ips", float64(hist.Device.UniqueIPs))
	f.Set("device_flag_rate", hist.Device.FlagRate)
	f.Set("ip_unique_users", float64(hist.IP.UniqueUsers))
	f.Set("ip_unique_devices", float64(hist.IP.UniqueDevices))
	f.Set("ip_flag_rate", hist.IP.FlagRate)

	networkRisk := (float64(hist.Device.UniqueUsers) + float64(hist.IP.UniqueUsers)) / 20
	if networkRisk > 1 {
		networkRisk = 1
	}
	f.Set("network_risk_score", networkRisk)
	f.SetBool("is_multi_device_ip", hist.Device.UniqueUsers > 3 && hist.IP.UniqueUsers > 3)

	f.SetBool("is_escalating", hist.Escalation.IsEscalating)
	f.Set("escalation_ratio", hist.Escalation.EscalationRatio)
	f.SetBool("is_structuring", hist.Structuring.IsStructuring)
	f.Set("structuring_similar_48h", float64(hist.Structuring.Similar48h))

	f.Set("employment_risk", lookupRisk(employmentRisk, tx.User.EmploymentStatus, 0.5))
	f.Set("source_of_funds_risk", lookupRisk(sourceOfFundsRisk, tx.User.SourceOfFunds, 0.5))

	anonCount := 0.0
	anonTotal := 0.0
	for _, flag := range []bool{tx.IP.IsVPN, tx.IP.IsTor, tx.IP.IsProxy, tx.IP.IsDatacenter} {
		anonTotal++
		if flag {
			anonCount++
		}
	}
	f.Set("ip_anonymity_score", anonCount/anonTotal)
	f.SetBool("ip_is_sanctioned", tx.IP.IsSanctioned)
	f.SetBool("ip_is_high_risk_country", tx.IP.IsHighRiskCtry)

	f.Set("doc_risk", 1-tx.Document.Score())
	f.SetBool("doc_verification_failed", tx.Document.VerificationStatus != "passed")

	f.SetBool("has_fraud_history", hist.FraudHist.HasHistory)
	f.Set("fraud_history_confirmed_cases", float64(hist.FraudHist.ConfirmedCases))

	return f
}

func lookupRisk(table map[string]float64, key string, fallback float64) float64 {
	if v, ok := table[key]; ok {
		return v
	}
	return fallback
}
