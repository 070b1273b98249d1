// Package sink publishes verdict payloads to the downstream
// case-management API (§4.9, §6, §7 sink_unavailable policy).
package sink

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-investigator/configs"
	"github.com/enterprise/fraud-investigator/internal/faulterr"
	"github.com/enterprise/fraud-investigator/internal/models"
)

// Publisher POSTs verdict payloads to the sink, retrying transient
// failures with bounded exponential backoff before giving up (the sink
// is idempotent on caseId, so at-least-once delivery is safe).
type Publisher struct {
	client     *resty.Client
	url        string
	maxRetries int
}

// New constructs a Publisher from SinkConfig.
func New(cfg configs.SinkConfig) *Publisher {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Publisher{
		client:     client,
		url:        cfg.URL,
		maxRetries: cfg.MaxRetries,
	}
}

// Publish POSTs the verdict payload, retrying on transient failure per
// §7's sink_unavailable policy. It returns a faulterr-wrapped error only
// once retries are exhausted; callers should log and continue (the
// stream id still advances — §6).
func (p *Publisher) Publish(ctx context.Context, payload models.VerdictPayload) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(p.maxRetries)), ctx)

	op := func() error {
		resp, err := p.client.R().
			SetContext(ctx).
			SetBody(payload).
			Post(p.url)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("sink returned status %d", resp.StatusCode())
		}
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil {
		log.Error().
			Err(err).
			Str("case_id", payload.CaseID).
			Msg("verdict sink unavailable after retries")
		return faulterr.SinkUnavailable("publish", err)
	}

	log.Debug().Str("case_id", payload.CaseID).Msg("verdict published to sink")
	return nil
}
