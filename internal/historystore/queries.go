package historystore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/enterprise/fraud-investigator/internal/faulterr"
	"github.com/enterprise/fraud-investigator/internal/models"
)

// Velocity returns transaction-frequency and amount-distribution metrics
// for user over the standard windows (§4.1). A user with no rows gets
// the "empty velocity" shape: every numeric field 0, LastTxnAt nil.
func (s *Store) Velocity(ctx context.Context, userID string) (models.VelocityMetrics, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	const query = `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= now() - interval '24 hours') AS txn_24h,
			COUNT(*) FILTER (WHERE created_at >= now() - interval '24 hours' AND type = 'deposit') AS dep_24h,
			COUNT(*) FILTER (WHERE created_at >= now() - interval '24 hours' AND type = 'withdrawal') AS wd_24h,
			COUNT(*) FILTER (WHERE created_at >= now() - interval '7 days') AS txn_7d,
			COUNT(*) FILTER (WHERE created_at >= now() - interval '7 days' AND type = 'deposit') AS dep_7d,
			COUNT(*) FILTER (WHERE created_at >= now() - interval '30 days') AS txn_30d,
			COALESCE(AVG(amount) FILTER (WHERE created_at >= now() - interval '30 days'), 0) AS avg_amount_30d,
			COALESCE(STDDEV(amount) FILTER (WHERE created_at >= now() - interval '30 days'), 0) AS stddev_amount_30d,
			COUNT(*) AS total_txns,
			COUNT(*) FILTER (WHERE type = 'deposit') AS total_deposits,
			COUNT(*) FILTER (WHERE type = 'withdrawal') AS total_withdrawals,
			MAX(created_at) AS last_txn_at
		FROM transactions
		WHERE user_id = $1
	`

	var v models.VelocityMetrics
	row := s.pool.QueryRow(ctx, query, userID)
	err := row.Scan(
		&v.TxnLast24h, &v.DepositsLast24h, &v.WithdrawalsLast24h,
		&v.TxnLast7d, &v.DepositsLast7d, &v.TxnLast30d,
		&v.AvgAmount30d, &v.StddevAmount30d,
		&v.TotalTxns, &v.TotalDeposits, &v.TotalWithdrawals,
		&v.LastTxnAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VelocityMetrics{}, nil
		}
		return models.VelocityMetrics{}, faulterr.StorageUnavailable("historystore.velocity", err)
	}
	return v, nil
}

// DeviceHistory returns 90-day fanout and flag-rate metrics for a device
// (§4.1).
func (s *Store) DeviceHistory(ctx context.Context, deviceID string) (models.DeviceHistory, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	const query = `
		SELECT
			COUNT(DISTINCT user_id) AS unique_users,
			COUNT(DISTINCT ip_address) AS unique_ips,
			COUNT(*) AS total_txns,
			COUNT(*) FILTER (WHERE velocity_flag OR amount_anomaly_flag) AS flagged_txns
		FROM transactions
		WHERE device_id = $1 AND created_at >= now() - interval '90 days'
	`

	var d models.DeviceHistory
	row := s.pool.QueryRow(ctx, query, deviceID)
	if err := row.Scan(&d.UniqueUsers, &d.UniqueIPs, &d.TotalTxns, &d.FlaggedTxns); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DeviceHistory{}, nil
		}
		return models.DeviceHistory{}, faulterr.StorageUnavailable("historystore.device_history", err)
	}
	d.FlagRate = flagRate(d.FlaggedTxns, d.TotalTxns)
	return d, nil
}

// IPHistory returns 90-day fanout and flag-rate metrics for an IP address
// (§4.1).
func (s *Store) IPHistory(ctx context.Context, ip string) (models.IPHistory, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	const query = `
		SELECT
			COUNT(DISTINCT user_id) AS unique_users,
			COUNT(DISTINCT device_id) AS unique_devices,
			COUNT(*) AS total_txns,
			COUNT(*) FILTER (WHERE velocity_flag OR amount_anomaly_flag) AS flagged_txns,
			MAX(created_at) AS last_seen
		FROM transactions
		WHERE ip_address = $1 AND created_at >= now() - interval '90 days'
	`

	var h models.IPHistory
	row := s.pool.QueryRow(ctx, query, ip)
	if err := row.Scan(&h.UniqueUsers, &h.UniqueDevices, &h.TotalTxns, &h.FlaggedTxns, &h.LastSeen); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.IPHistory{}, nil
		}
		return models.IPHistory{}, faulterr.StorageUnavailable("historystore.ip_history", err)
	}
	h.FlagRate = flagRate(h.FlaggedTxns, h.TotalTxns)
	return h, nil
}

func flagRate(flagged, total int) float64 {
	if total < 1 {
		total = 1
	}
	return float64(flagged) / float64(total)
}

// DetectEscalation fetches the last 7 days of amounts in chronological
// order, appends currentAmount, and reports whether every step grew by at
// least ~25% (§4.1).
func (s *Store) DetectEscalation(ctx context.Context, userID string, currentAmount float64) (models.EscalationResult, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	const query = `
		SELECT amount FROM transactions
		WHERE user_id = $1 AND created_at >= now() - interval '7 days'
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return models.EscalationResult{}, faulterr.StorageUnavailable("historystore.detect_escalation", err)
	}
	defer rows.Close()

	var amounts []float64
	for rows.Next() {
		var a float64
		if err := rows.Scan(&a); err != nil {
			return models.EscalationResult{}, faulterr.StorageUnavailable("historystore.detect_escalation", err)
		}
		amounts = append(amounts, a)
	}
	if err := rows.Err(); err != nil {
		return models.EscalationResult{}, faulterr.StorageUnavailable("historystore.detect_escalation", err)
	}

	amounts = append(amounts, currentAmount)
	if len(amounts) < 3 {
		// fewer than 2 prior rows
		return models.EscalationResult{IsEscalating: false, EscalationRatio: 0, Count: len(amounts)}, nil
	}

	escalating := true
	for i := 0; i < len(amounts)-1; i++ {
		if !(amounts[i] < amounts[i+1]*0.8) {
			escalating = false
			break
		}
	}

	ratio := 0.0
	if amounts[0] > 0 {
		ratio = currentAmount / amounts[0]
	}

	return models.EscalationResult{IsEscalating: escalating, EscalationRatio: ratio, Count: len(amounts)}, nil
}

// DetectStructuring counts deposits in the last 48h with amount in
// [9500, 9999] (§4.1).
func (s *Store) DetectStructuring(ctx context.Context, userID string, currentAmount float64) (models.StructuringResult, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	const query = `
		SELECT COUNT(*), COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1 AND type = 'deposit'
		  AND created_at >= now() - interval '48 hours'
		  AND amount BETWEEN 9500 AND 9999
	`

	var r models.StructuringResult
	row := s.pool.QueryRow(ctx, query, userID)
	if err := row.Scan(&r.Similar48h, &r.TotalAmount48h); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.StructuringResult{}, nil
		}
		return models.StructuringResult{}, faulterr.StorageUnavailable("historystore.detect_structuring", err)
	}

	r.IsStructuring = r.Similar48h >= 3 && currentAmount >= 9500 && currentAmount <= 9999
	return r, nil
}

// ConnectedUsers returns up to 20 other users sharing a device or IP with
// the caller in the last 90 days, each carrying their current risk level
// (§4.1).
func (s *Store) ConnectedUsers(ctx context.Context, userID, deviceID, ip string) ([]models.ConnectedUser, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	const sharedQuery = `
		SELECT user_id, COUNT(*) AS strength
		FROM (
			SELECT user_id FROM transactions
			WHERE device_id = $2 AND user_id != $1 AND created_at >= now() - interval '90 days'
			UNION ALL
			SELECT user_id FROM transactions
			WHERE ip_address = $3 AND user_id != $1 AND created_at >= now() - interval '90 days'
		) shared
		GROUP BY user_id
		ORDER BY strength DESC
		LIMIT 20
	`

	rows, err := s.pool.Query(ctx, sharedQuery, userID, deviceID, ip)
	if err != nil {
		return nil, faulterr.StorageUnavailable("historystore.connected_users", err)
	}

	type candidate struct {
		userID   string
		strength int
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.userID, &c.strength); err != nil {
			rows.Close()
			return nil, faulterr.StorageUnavailable("historystore.connected_users", err)
		}
		candidates = append(candidates, c)
	}
	closeErr := rows.Err()
	rows.Close()
	if closeErr != nil {
		return nil, faulterr.StorageUnavailable("historystore.connected_users", closeErr)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.userID
	}

	const riskQuery = `SELECT id, risk_level FROM users WHERE id = ANY($1)`
	riskRows, err := s.pool.Query(ctx, riskQuery, ids)
	if err != nil {
		return nil, faulterr.StorageUnavailable("historystore.connected_users.risk", err)
	}
	defer riskRows.Close()

	riskByUser := make(map[string]string, len(ids))
	for riskRows.Next() {
		var id, level string
		if err := riskRows.Scan(&id, &level); err != nil {
			return nil, faulterr.StorageUnavailable("historystore.connected_users.risk", err)
		}
		riskByUser[id] = level
	}

	out := make([]models.ConnectedUser, len(candidates))
	for i, c := range candidates {
		level := riskByUser[c.userID]
		if level == "" {
			level = "low"
		}
		out[i] = models.ConnectedUser{UserID: c.userID, Strength: c.strength, RiskLevel: level}
	}
	return out, nil
}

// CoordinatedTiming buckets the given users' transactions by hour over
// the last 7 days and reports whether any bucket contains at least
// min(3, len(userIDs)) distinct users (§4.1).
func (s *Store) CoordinatedTiming(ctx context.Context, userIDs []string) (models.CoordinatedTimingResult, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	if len(userIDs) == 0 {
		return models.CoordinatedTimingResult{}, nil
	}

	threshold := 3
	if len(userIDs) < threshold {
		threshold = len(userIDs)
	}

	const query = `
		SELECT date_trunc('hour', created_at) AS bucket, COUNT(DISTINCT user_id)
		FROM transactions
		WHERE user_id = ANY($1) AND created_at >= now() - interval '7 days'
		GROUP BY bucket
		HAVING COUNT(DISTINCT user_id) >= $2
	`

	rows, err := s.pool.Query(ctx, query, userIDs, threshold)
	if err != nil {
		return models.CoordinatedTimingResult{}, faulterr.StorageUnavailable("historystore.coordinated_timing", err)
	}
	defer rows.Close()

	windows := 0
	for rows.Next() {
		var bucket time.Time
		var distinctUsers int
		if err := rows.Scan(&bucket, &distinctUsers); err != nil {
			return models.CoordinatedTimingResult{}, faulterr.StorageUnavailable("historystore.coordinated_timing", err)
		}
		windows++
	}
	if err := rows.Err(); err != nil {
		return models.CoordinatedTimingResult{}, faulterr.StorageUnavailable("historystore.coordinated_timing", err)
	}

	return models.CoordinatedTimingResult{
		IsCoordinated:      windows > 0,
		CoordinatedWindows: windows,
		RingSize:           len(userIDs),
	}, nil
}

// UserFraudHistory returns the caller's history of confirmed/total fraud
// cases (§4.1).
func (s *Store) UserFraudHistory(ctx context.Context, userID string) (models.FraudHistory, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	const query = `
		SELECT
			COUNT(*) AS total_cases,
			COUNT(*) FILTER (WHERE confirmed) AS confirmed_cases,
			MAX(created_at) AS last_case_at,
			ARRAY_AGG(DISTINCT fraud_type) FILTER (WHERE fraud_type IS NOT NULL) AS fraud_types
		FROM historical_fraud_cases
		WHERE user_id = $1
	`

	var h models.FraudHistory
	row := s.pool.QueryRow(ctx, query, userID)
	if err := row.Scan(&h.TotalCases, &h.ConfirmedCases, &h.LastCaseAt, &h.FraudTypes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.FraudHistory{}, nil
		}
		return models.FraudHistory{}, faulterr.StorageUnavailable("historystore.user_fraud_history", err)
	}
	h.HasHistory = h.TotalCases > 0
	return h, nil
}

// SimilarPatterns summarizes up to 5 confirmed historical fraud patterns
// referencing userID: their count and average risk_score (§4.1). Which 5
// are taken when more exist is not defined, and features is not used.
func (s *Store) SimilarPatterns(ctx context.Context, userID string, features models.FeatureMap) (models.SimilarPatternsResult, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	const query = `
		SELECT COUNT(*), COALESCE(AVG(risk_score), 0)
		FROM (
			SELECT risk_score FROM fraud_patterns
			WHERE user_id = $1 AND confirmed = true
			LIMIT 5
		) p
	`

	var r models.SimilarPatternsResult
	row := s.pool.QueryRow(ctx, query, userID)
	if err := row.Scan(&r.SimilarCount, &r.AvgConfirmedRisk); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SimilarPatternsResult{}, nil
		}
		return models.SimilarPatternsResult{}, faulterr.StorageUnavailable("historystore.similar_patterns", err)
	}
	return r, nil
}
