// Package worker implements the StreamWorker pool that drives
// investigations concurrently (§4.9), consuming the input stream,
// invoking the Orchestrator, and publishing verdicts to the sink.
package worker

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-investigator/configs"
	"github.com/enterprise/fraud-investigator/internal/cascade"
	"github.com/enterprise/fraud-investigator/internal/sink"
	"github.com/enterprise/fraud-investigator/internal/stream"
)

// sampleRingSize bounds the processing-time ring used for the periodic
// performance report (§4.9: "bounded ring of the last 1 000 samples").
const sampleRingSize = 1000

// Metrics tracks one worker's processing-time distribution and
// processed/failed counters.
type Metrics struct {
	mu              sync.Mutex
	samples         []time.Duration
	next            int
	filled          bool
	processedCount  int64
	failedCount     int64
	lastProcessedAt time.Time
}

func newMetrics() *Metrics {
	return &Metrics{samples: make([]time.Duration, sampleRingSize)}
}

func (m *Metrics) record(d time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples[m.next] = d
	m.next = (m.next + 1) % sampleRingSize
	if m.next == 0 {
		m.filled = true
	}
	if failed {
		m.failedCount++
	} else {
		m.processedCount++
	}
	m.lastProcessedAt = time.Now()
}

// Snapshot is a point-in-time read of a worker's performance report.
type Snapshot struct {
	Processed       int64
	Failed          int64
	Avg             time.Duration
	P50             time.Duration
	P95             time.Duration
	P99             time.Duration
	Max             time.Duration
	LastProcessedAt time.Time
}

func (m *Metrics) snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.next
	if m.filled {
		n = sampleRingSize
	}
	if n == 0 {
		return Snapshot{Processed: m.processedCount, Failed: m.failedCount}
	}

	sorted := make([]time.Duration, n)
	copy(sorted, m.samples[:n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, s := range sorted {
		total += s
	}

	percentile := func(p float64) time.Duration {
		idx := int(p * float64(len(sorted)-1))
		return sorted[idx]
	}

	return Snapshot{
		Processed:       m.processedCount,
		Failed:          m.failedCount,
		Avg:             total / time.Duration(n),
		P50:             percentile(0.50),
		P95:             percentile(0.95),
		P99:             percentile(0.99),
		Max:             sorted[len(sorted)-1],
		LastProcessedAt: m.lastProcessedAt,
	}
}

// Pool is the StreamWorker pool (§4.9): N cooperative workers reading
// from the stream, each running investigations and publishing verdicts.
type Pool struct {
	consumer     *stream.Consumer
	orchestrator *cascade.Orchestrator
	publisher    *sink.Publisher
	cfg          configs.WorkerConfig

	metrics []*Metrics
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New constructs the worker pool.
func New(consumer *stream.Consumer, orchestrator *cascade.Orchestrator, publisher *sink.Publisher, cfg configs.WorkerConfig) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 20
	}
	metrics := make([]*Metrics, cfg.Concurrency)
	for i := range metrics {
		metrics[i] = newMetrics()
	}
	return &Pool{
		consumer:     consumer,
		orchestrator: orchestrator,
		publisher:    publisher,
		cfg:          cfg,
		metrics:      metrics,
		stopCh:       make(chan struct{}),
	}
}

// Run starts all worker goroutines and blocks until a termination
// signal or context cancellation, then drains in-flight work (§4.9
// shutdown sequence; the caller handles state-snapshot persistence).
func (p *Pool) Run(ctx context.Context) error {
	log.Info().Int("concurrency", p.cfg.Concurrency).Msg("starting stream worker pool")

	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		log.Info().Msg("received shutdown signal, draining in-flight investigations")
	case <-ctx.Done():
		log.Info().Msg("context canceled, draining in-flight investigations")
	}

	close(p.stopCh)
	p.wg.Wait()
	log.Info().Msg("stream worker pool drained")
	return nil
}

func (p *Pool) loop(ctx context.Context, slot int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
			p.pollOnce(ctx, slot)
		}
	}
}

func (p *Pool) pollOnce(ctx context.Context, slot int) {
	batchSize := int64(p.cfg.BatchSize)
	if batchSize <= 0 {
		batchSize = 10
	}

	messages, err := p.consumer.Read(ctx, batchSize, p.cfg.PollInterval)
	if err != nil {
		log.Error().Err(err).Msg("failed to read from input stream")
		time.Sleep(time.Second)
		return
	}

	for _, msg := range messages {
		p.process(ctx, slot, msg)
	}
}

func (p *Pool) process(ctx context.Context, slot int, msg stream.Message) {
	start := time.Now()

	payload, _ := p.orchestrator.Investigate(ctx, msg.Transaction)
	elapsed := time.Since(start)

	if p.cfg.HardBudget > 0 && elapsed > p.cfg.HardBudget {
		log.Warn().
			Str("case_id", payload.CaseID).
			Dur("elapsed", elapsed).
			Msg("investigation exceeded hard latency budget")
	}

	if err := p.publisher.Publish(ctx, payload); err != nil {
		log.Error().Err(err).Str("case_id", payload.CaseID).Msg("verdict publish failed, stream id still advances")
		p.metrics[slot].record(elapsed, true)
	} else {
		p.metrics[slot].record(elapsed, false)
	}

	if err := p.consumer.Ack(ctx, msg.ID); err != nil {
		log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to acknowledge stream message")
	}
}

// AggregatedSnapshot combines every worker's performance report for the
// admin server's /metrics/pool endpoint: Processed and Failed are summed,
// Avg is the mean of the per-worker averages, Max and LastProcessedAt are
// the largest across workers. P50, P95 and P99 are not aggregated and are
// left zero.
func (p *Pool) AggregatedSnapshot() Snapshot {
	var (
		processed, failed int64
		maxMax            time.Duration
		last              time.Time
		totalAvg          time.Duration
		n                 int
	)
	for _, m := range p.metrics {
		s := m.snapshot()
		processed += s.Processed
		failed += s.Failed
		if s.Max > maxMax {
			maxMax = s.Max
		}
		if s.LastProcessedAt.After(last) {
			last = s.LastProcessedAt
		}
		if s.Processed > 0 {
			totalAvg += s.Avg
			n++
		}
	}
	avg := time.Duration(0)
	if n > 0 {
		avg = totalAvg / time.Duration(n)
	}
	return Snapshot{Processed: processed, Failed: failed, Avg: avg, Max: maxMax, LastProcessedAt: last}
}
