// Package stream implements the input-transaction consumer over Redis
// Streams (§4.9, §6): consumer-group semantics, pending-message
// reclaim, and malformed-entry skip-and-advance.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-investigator/configs"
	"github.com/enterprise/fraud-investigator/internal/models"
)

// minIdleForClaim is how long a message must sit pending before another
// consumer may reclaim it.
const minIdleForClaim = 30 * time.Second

// Message is one decoded entry read off the stream.
type Message struct {
	ID          string
	Transaction *models.Transaction
}

// Consumer reads transaction entries of shape {event_data: <json>} from
// the input stream (§6).
type Consumer struct {
	client       *redis.Client
	streamName   string
	group        string
	consumerName string
}

// New constructs a Consumer and ensures the consumer group exists.
func New(ctx context.Context, cfg configs.RedisConfig) (*Consumer, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	c := &Consumer{
		client:       client,
		streamName:   cfg.StreamName,
		group:        cfg.ConsumerGroup,
		consumerName: cfg.ConsumerName,
	}

	if err := client.XGroupCreateMkStream(ctx, c.streamName, c.group, "0").Err(); err != nil {
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			log.Warn().Err(err).Msg("consumer group create returned an unexpected error")
		}
	}

	log.Info().Str("stream", c.streamName).Str("group", c.group).Msg("stream consumer initialized")
	return c, nil
}

// Read pulls up to count entries, first reclaiming any long-pending
// messages, otherwise reading new ones. Malformed entries are logged,
// dropped from the returned slice, and acknowledged by Read itself so the
// last-seen id advances (§6); a malformed entry reclaimed together with
// well-formed ones is acknowledged on a later reclaim. Callers Ack the
// ids of the messages returned to them.
func (c *Consumer) Read(ctx context.Context, count int64, block time.Duration) ([]Message, error) {
	reclaimed, ids, err := c.reclaimPending(ctx, count)
	if err != nil {
		log.Warn().Err(err).Msg("failed to reclaim pending stream messages")
	}
	if len(reclaimed) > 0 || len(ids) > 0 {
		if len(reclaimed) == 0 {
			// All reclaimed ids were malformed; still ack them so they
			// don't wedge the pending list forever.
			return nil, c.ackIDs(ctx, ids)
		}
		return reclaimed, nil
	}

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumerName,
		Streams:  []string{c.streamName, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read from stream: %w", err)
	}

	var (
		messages []Message
		skipIDs  []string
	)
	for _, s := range streams {
		for _, raw := range s.Messages {
			msg, ok := decode(raw)
			if !ok {
				skipIDs = append(skipIDs, raw.ID)
				continue
			}
			messages = append(messages, msg)
		}
	}
	if len(skipIDs) > 0 {
		if err := c.ackIDs(ctx, skipIDs); err != nil {
			log.Error().Err(err).Msg("failed to advance past malformed stream entries")
		}
	}
	return messages, nil
}

func (c *Consumer) reclaimPending(ctx context.Context, count int64) ([]Message, []string, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.streamName,
		Group:  c.group,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		return nil, nil, err
	}
	if len(pending) == 0 {
		return nil, nil, nil
	}

	var ids []string
	for _, p := range pending {
		if p.Idle >= minIdleForClaim {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}

	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.streamName,
		Group:    c.group,
		Consumer: c.consumerName,
		MinIdle:  minIdleForClaim,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, nil, err
	}

	var messages []Message
	for _, raw := range claimed {
		if msg, ok := decode(raw); ok {
			messages = append(messages, msg)
		}
	}
	return messages, ids, nil
}

// decode parses {event_data: <json>} into a Transaction (§6). Malformed
// payloads are logged and reported as not-ok so the caller can skip and
// still advance the stream id.
func decode(raw redis.XMessage) (Message, bool) {
	data, ok := raw.Values["event_data"].(string)
	if !ok {
		log.Error().Str("message_id", raw.ID).Msg("stream entry missing event_data field")
		return Message{}, false
	}

	var tx models.Transaction
	if err := json.Unmarshal([]byte(data), &tx); err != nil {
		log.Error().Err(err).Str("message_id", raw.ID).Msg("failed to decode transaction event")
		return Message{}, false
	}

	return Message{ID: raw.ID, Transaction: &tx}, true
}

// Ack acknowledges a single processed message.
func (c *Consumer) Ack(ctx context.Context, id string) error {
	return c.ackIDs(ctx, []string{id})
}

func (c *Consumer) ackIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, c.streamName, c.group, ids...).Err(); err != nil {
		return fmt.Errorf("ack stream messages: %w", err)
	}
	return nil
}

// PendingCount reports the number of unacknowledged messages for the
// consumer group, used by the admin server's health/metrics endpoints.
func (c *Consumer) PendingCount(ctx context.Context) (int64, error) {
	summary, err := c.client.XPending(ctx, c.streamName, c.group).Result()
	if err != nil {
		return 0, err
	}
	return summary.Count, nil
}

// Close releases the underlying Redis connection.
func (c *Consumer) Close() error {
	return c.client.Close()
}
