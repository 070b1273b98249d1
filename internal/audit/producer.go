// Package audit publishes ProcessedCase audit events to Kafka on a
// best-effort basis, for compliance logging and offline analytics (§6,
// §9 supplemented feature — the teacher's CDC analytics pipeline
// repurposed as a producer of case-investigation events).
package audit

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-investigator/configs"
	"github.com/enterprise/fraud-investigator/internal/models"
)

// Event is the audit record published for every processed case.
type Event struct {
	CaseID        string            `json:"case_id"`
	UserID        string            `json:"user_id"`
	Decision      models.Decision   `json:"decision"`
	EnsembleScore float64           `json:"ensemble_score"`
	RingScore     float64           `json:"ring_score"`
	AnomalyScore  float64           `json:"anomaly_score"`
	CombinedScore float64           `json:"combined_score"`
	LayersRun     []string          `json:"layers_executed"`
	Timestamp     int64             `json:"timestamp_ms"`
}

// Producer publishes audit events asynchronously; publish failures are
// logged and otherwise swallowed (audit is best-effort, never on the
// investigation's critical path).
type Producer struct {
	async sarama.AsyncProducer
	topic string
}

// New constructs a Producer, or a no-op Producer if Kafka auditing is
// disabled in config.
func New(cfg configs.KafkaConfig) (*Producer, error) {
	if !cfg.Enabled {
		log.Info().Msg("audit producer disabled by configuration")
		return &Producer{}, nil
	}

	config := sarama.NewConfig()
	config.Version = sarama.V3_0_0_0
	config.Producer.Return.Successes = false
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForLocal

	async, err := sarama.NewAsyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka async producer: %w", err)
	}

	p := &Producer{async: async, topic: cfg.AuditTopic}
	go p.drainErrors()

	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.AuditTopic).Msg("audit producer initialized")
	return p, nil
}

func (p *Producer) drainErrors() {
	for err := range p.async.Errors() {
		log.Error().Err(err.Err).Msg("audit event publish failed")
	}
}

// Publish enqueues an audit event for a processed case. It never
// blocks the investigation path: an event that finds the producer's input
// buffer full is dropped and logged, and delivery failures are logged
// asynchronously.
func (p *Producer) Publish(proc models.ProcessedCase) {
	if p.async == nil {
		return
	}

	event := Event{
		CaseID:        proc.CaseID,
		UserID:        proc.UserID,
		Decision:      proc.Decision,
		EnsembleScore: proc.EnsembleScore,
		RingScore:     proc.RingScore,
		AnomalyScore:  proc.AnomalyScore,
		CombinedScore: proc.CombinedScore,
		LayersRun:     proc.LayersExecuted,
		Timestamp:     proc.Timestamp.UnixMilli(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("case_id", proc.CaseID).Msg("failed to marshal audit event")
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(proc.CaseID),
		Value: sarama.ByteEncoder(body),
	}
	select {
	case p.async.Input() <- msg:
	default:
		log.Warn().Str("case_id", proc.CaseID).Msg("audit producer input buffer full, dropping audit event")
	}
}

// Close flushes and closes the underlying producer.
func (p *Producer) Close() error {
	if p.async == nil {
		return nil
	}
	return p.async.Close()
}
