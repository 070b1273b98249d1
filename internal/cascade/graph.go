package cascade

import (
	"context"

	"github.com/enterprise/fraud-investigator/internal/historystore"
	"github.com/enterprise/fraud-investigator/internal/models"
)

// GraphAnalyzer is L3: fraud-ring probability from shared-device/IP
// connectivity and coordinated timing (§4.4).
type GraphAnalyzer struct {
	history *historystore.Store
}

// NewGraphAnalyzer constructs L3.
func NewGraphAnalyzer(history *historystore.Store) *GraphAnalyzer {
	return &GraphAnalyzer{history: history}
}

// Analyze computes the additive ring score for tx, clipped to 1.0
// (§4.4).
func (g *GraphAnalyzer) Analyze(ctx context.Context, tx *models.Transaction) (float64, []string, error) {
	connected, err := g.history.ConnectedUsers(ctx, tx.UserID, tx.DeviceID, tx.IPAddress)
	if err != nil {
		return 0, nil, err
	}

	var score float64
	switch {
	case len(connected) >= 5:
		score += 0.5
	case len(connected) >= 3:
		score += 0.3
	case len(connected) >= 1:
		score += 0.1
	}

	highRisk := 0
	ids := make([]string, 0, len(connected))
	for _, c := range connected {
		ids = append(ids, c.UserID)
		if c.RiskLevel == "high" {
			highRisk++
		}
	}
	switch {
	case highRisk >= 2:
		score += 0.4
	case highRisk >= 1:
		score += 0.2
	}

	if len(connected) >= 2 {
		ringUserIDs := append([]string{tx.UserID}, limitIDs(ids, 10)...)
		timing, err := g.history.CoordinatedTiming(ctx, ringUserIDs)
		if err == nil && timing.IsCoordinated {
			score += 0.3
		}
	}

	if score > 1.0 {
		score = 1.0
	}

	return score, ids, nil
}

func limitIDs(ids []string, n int) []string {
	if len(ids) <= n {
		return ids
	}
	return ids[:n]
}
