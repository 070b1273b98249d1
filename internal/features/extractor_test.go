package features

import (
	"testing"
	"time"

	"github.com/enterprise/fraud-investigator/internal/models"
)

func baseTransaction() *models.Transaction {
	return &models.Transaction{
		TransactionID: "t1",
		UserID:        "u1",
		Timestamp:     time.Date(2026, 7, 31, 14, 0, 0, 0, time.UTC),
		AmountMinor:   500000, // $5000
		Currency:      "USD",
		Type:          models.TransactionDeposit,
		User: models.UserProfile{
			DeclaredMonthlyIncome: 5000,
			AccountCreatedAt:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			EmploymentStatus:      "employed",
			SourceOfFunds:         "salary",
		},
		Document: models.DocumentProfile{VerificationStatus: "passed", Confidence: 0.95},
	}
}

func TestDeriveNormalizesMissingIncome(t *testing.T) {
	e := &Extractor{}
	tx := baseTransaction()
	tx.User.DeclaredMonthlyIncome = 0

	f := e.derive(tx, models.HistoryQueryResults{})
	if f.Get("amount_income_ratio") != 5000 {
		t.Fatalf("expected ratio against floor of 1, got %f", f.Get("amount_income_ratio"))
	}
}

func TestDeriveAmountZscoreZeroWhenNoStddev(t *testing.T) {
	e := &Extractor{}
	tx := baseTransaction()
	f := e.derive(tx, models.HistoryQueryResults{})
	if f.Get("amount_zscore") != 0 {
		t.Fatalf("expected zero zscore with zero stddev, got %f", f.Get("amount_zscore"))
	}
}

func TestDeriveNewAccountFlags(t *testing.T) {
	e := &Extractor{}
	tx := baseTransaction()
	tx.User.AccountCreatedAt = time.Now().Add(-30 * time.Minute)
	f := e.derive(tx, models.HistoryQueryResults{})
	if !f.GetBool("is_new_account") || !f.GetBool("is_very_new_account") {
		t.Fatalf("expected both new-account flags for a 30-minute-old account")
	}
}

func TestDeriveEmploymentAndSourceRiskFallback(t *testing.T) {
	e := &Extractor{}
	tx := baseTransaction()
	tx.User.EmploymentStatus = "freelancer" // not in table
	tx.User.SourceOfFunds = "gift"          // not in table
	f := e.derive(tx, models.HistoryQueryResults{})
	if f.Get("employment_risk") != 0.5 {
		t.Fatalf("expected fallback employment risk 0.5, got %f", f.Get("employment_risk"))
	}
	if f.Get("source_of_funds_risk") != 0.5 {
		t.Fatalf("expected fallback source-of-funds risk 0.5, got %f", f.Get("source_of_funds_risk"))
	}
}

func TestDeriveDocRiskFromScore(t *testing.T) {
	e := &Extractor{}
	tx := baseTransaction()
	tx.Document = models.DocumentProfile{IsForged: true, Confidence: 0.9}
	f := e.derive(tx, models.HistoryQueryResults{})
	if f.Get("doc_risk") != 1 {
		t.Fatalf("forged document must score doc_risk=1, got %f", f.Get("doc_risk"))
	}
}

func TestFeatureKeysCoverAllDerivedKeys(t *testing.T) {
	e := &Extractor{}
	tx := baseTransaction()
	f := e.derive(tx, models.HistoryQueryResults{})

	known := make(map[string]bool, len(models.FeatureKeys))
	for _, k := range models.FeatureKeys {
		known[k] = true
	}
	for k := range f {
		if !known[k] {
			t.Errorf("derived feature %q is not present in the schema-locked FeatureKeys list", k)
		}
	}
}
