package historystore

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/enterprise/fraud-investigator/internal/models"
)

// FetchAll runs the six history reads FeatureExtractor needs in
// parallel (§4.2: "velocity, device_history, ip_history,
// detect_escalation, detect_structuring, user_fraud_history"), joining
// with the caller's deadline. A failed read zero-fills its slot and sets
// Degraded, matching §4.1's soft-failure policy.
func (s *Store) FetchAll(ctx context.Context, tx *models.Transaction) models.HistoryQueryResults {
	var out models.HistoryQueryResults
	var degraded atomic.Bool

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v, err := s.Velocity(gctx, tx.UserID)
		if err != nil {
			degraded.Store(true)
			return nil
		}
		out.Velocity = v
		return nil
	})
	g.Go(func() error {
		d, err := s.DeviceHistory(gctx, tx.DeviceID)
		if err != nil {
			degraded.Store(true)
			return nil
		}
		out.Device = d
		return nil
	})
	g.Go(func() error {
		ip, err := s.IPHistory(gctx, tx.IPAddress)
		if err != nil {
			degraded.Store(true)
			return nil
		}
		out.IP = ip
		return nil
	})
	g.Go(func() error {
		e, err := s.DetectEscalation(gctx, tx.UserID, tx.AmountFloat())
		if err != nil {
			degraded.Store(true)
			return nil
		}
		out.Escalation = e
		return nil
	})
	g.Go(func() error {
		st, err := s.DetectStructuring(gctx, tx.UserID, tx.AmountFloat())
		if err != nil {
			degraded.Store(true)
			return nil
		}
		out.Structuring = st
		return nil
	})
	g.Go(func() error {
		fh, err := s.UserFraudHistory(gctx, tx.UserID)
		if err != nil {
			degraded.Store(true)
			return nil
		}
		out.FraudHist = fh
		return nil
	})

	// Each goroutine reports failure through degraded rather than a
	// returned error, so this never fails; the join only bounds latency.
	_ = g.Wait()
	out.Degraded = degraded.Load()
	return out
}
