// Package queue carries verdict messages over a Redis Stream consumer group.
// Delivery is at least once: a message stays pending until acked, and pending
// messages idle past ClaimIdle are reclaimed by the next Fetch.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-tracker/internal/resilience"
	"github.com/sells-group/sales-tracker/internal/review"
)

const bodyField = "body"

// Config configures the stream.
type Config struct {
	URL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	Stream    string        `yaml:"stream" mapstructure:"stream"`
	Group     string        `yaml:"group" mapstructure:"group"`
	Consumer  string        `yaml:"consumer" mapstructure:"consumer"`
	Block     time.Duration `yaml:"block" mapstructure:"block"`
	Count     int64         `yaml:"count" mapstructure:"count"`
	ClaimIdle time.Duration `yaml:"claim_idle" mapstructure:"claim_idle"`
}

func (c Config) withDefaults() Config {
	if c.Stream == "" {
		c.Stream = "verdicts"
	}
	if c.Group == "" {
		c.Group = "ledger"
	}
	if c.Consumer == "" {
		host, _ := os.Hostname()
		c.Consumer = strings.Trim(host+"-"+uuid.NewString()[:8], "-")
	}
	if c.Block <= 0 {
		c.Block = 5 * time.Second
	}
	if c.Count <= 0 {
		c.Count = 10
	}
	if c.ClaimIdle <= 0 {
		c.ClaimIdle = time.Minute
	}
	return c
}

// Stream is a Redis Streams verdict queue. It implements review.Source.
type Stream struct {
	client *redis.Client
	cfg    Config
	log    *zap.Logger
}

// Connect dials Redis from cfg.URL and ensures the consumer group exists.
func Connect(ctx context.Context, cfg Config) (*Stream, error) {
	if cfg.URL == "" {
		return nil, eris.New("queue: redis url not configured")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, eris.Wrap(err, "queue: parse redis url")
	}
	client := redis.NewClient(opts)
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("redis", "ping")
	err = resilience.Do(ctx, retry, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "queue: redis ping")
	}

	s := New(client, cfg)
	if err := s.EnsureGroup(ctx); err != nil {
		client.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

// New wraps an existing client.
func New(client *redis.Client, cfg Config) *Stream {
	cfg = cfg.withDefaults()
	return &Stream{
		client: client,
		cfg:    cfg,
		log: zap.L().With(zap.String("component", "queue"),
			zap.String("stream", cfg.Stream), zap.String("consumer", cfg.Consumer)),
	}
}

// EnsureGroup creates the stream and consumer group if missing.
func (s *Stream) EnsureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return eris.Wrapf(err, "queue: create group %s", s.cfg.Group)
	}
	return nil
}

// Publish appends a verdict message and returns its stream id.
func (s *Stream) Publish(ctx context.Context, msg review.VerdictMessage) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return "", eris.Wrap(err, "queue: marshal message")
	}
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.cfg.Stream,
		Values: map[string]any{bodyField: string(b)},
	}).Result()
	if err != nil {
		return "", eris.Wrap(err, "queue: xadd")
	}
	return id, nil
}

// Fetch returns reclaimed stale messages if any, otherwise blocks up to
// cfg.Block for new ones.
func (s *Stream) Fetch(ctx context.Context) ([]review.Delivery, error) {
	stale, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.cfg.Stream,
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		MinIdle:  s.cfg.ClaimIdle,
		Start:    "0-0",
		Count:    s.cfg.Count,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, eris.Wrap(err, "queue: xautoclaim")
	}
	if len(stale) > 0 {
		s.log.Info("reclaimed idle messages", zap.Int("count", len(stale)))
		return toDeliveries(stale), nil
	}

	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, ">"},
		Count:    s.cfg.Count,
		Block:    s.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "queue: xreadgroup")
	}

	var out []review.Delivery
	for _, st := range streams {
		out = append(out, toDeliveries(st.Messages)...)
	}
	return out, nil
}

// Ack acknowledges handled deliveries.
func (s *Stream) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return eris.Wrap(s.client.XAck(ctx, s.cfg.Stream, s.cfg.Group, ids...).Err(), "queue: xack")
}

// Pending returns the number of delivered but unacked messages.
func (s *Stream) Pending(ctx context.Context) (int64, error) {
	p, err := s.client.XPending(ctx, s.cfg.Stream, s.cfg.Group).Result()
	if err != nil {
		return 0, eris.Wrap(err, "queue: xpending")
	}
	return p.Count, nil
}

func (s *Stream) Close() error {
	return s.client.Close()
}

// toDeliveries maps stream entries to deliveries. An entry without a body
// becomes an empty delivery, which the consumer drops and acks.
func toDeliveries(msgs []redis.XMessage) []review.Delivery {
	out := make([]review.Delivery, 0, len(msgs))
	for _, m := range msgs {
		var b []byte
		switch v := m.Values[bodyField].(type) {
		case string:
			b = []byte(v)
		case []byte:
			b = v
		}
		out = append(out, review.Delivery{ID: m.ID, Body: b})
	}
	return out
}
