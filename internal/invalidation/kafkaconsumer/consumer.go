// Package kafkaconsumer purges the response cache when dataset update events
// arrive on Kafka.
package kafkaconsumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/IBM/sarama"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/viirs-active-fires/internal/cache"
	obs "github.com/mohammed-shakir/viirs-active-fires/internal/core/observability"
	"github.com/mohammed-shakir/viirs-active-fires/internal/invalidation"
	mylog "github.com/mohammed-shakir/viirs-active-fires/internal/logger"
)

const purgeTimeout = 5 * time.Second

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	cache  cache.Interface
	watch  invalidation.Watchlist
	dedupe *versionDedupe
	zlog   *zerolog.Logger

	mu         sync.Mutex
	ready      bool
	partitions []int32
}

type Option func(*Consumer)

// WithEventLog sets the structured logger used for per-event records.
func WithEventLog(zl *zerolog.Logger) Option {
	return func(c *Consumer) {
		if zl != nil {
			c.zlog = zl
		}
	}
}

func New(cfg Config, logger *slog.Logger, c cache.Interface, watch invalidation.Watchlist, opts ...Option) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	nop := zerolog.Nop()
	cons := &Consumer{
		cfg:    cfg,
		logger: logger,
		cache:  c,
		watch:  watch,
		dedupe: newVersionDedupe(cfg.DedupeSize),
		zlog:   &nop,
	}
	for _, o := range opts {
		o(cons)
	}
	return cons
}

// Start consumes dataset events until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cache == nil {
		return errors.New("kafkaconsumer: missing cache")
	}
	if len(c.cfg.Brokers) == 0 || c.cfg.Topic == "" {
		return errors.New("kafkaconsumer: brokers and topic are required")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := c.handler()

	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("consumer error", "err", err)
				c.zlog.Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(2 * time.Second):
				}
			}
		}
	}
}

func (c *Consumer) handler() *groupHandler {
	return &groupHandler{
		process: c.ProcessOne,
		onSetup: func(claims map[string][]int32) {
			parts := slices.Clone(claims[c.cfg.Topic])
			slices.Sort(parts)
			c.mu.Lock()
			c.ready, c.partitions = true, parts
			c.mu.Unlock()
		},
		onClean: func() {
			c.mu.Lock()
			c.ready, c.partitions = false, nil
			c.mu.Unlock()
		},
	}
}

// Readiness reports whether the consumer currently holds a group session.
func (c *Consumer) Readiness() (bool, []int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready, slices.Clone(c.partitions)
}

// ProcessOne applies a single event. Malformed, unwatched and stale events are
// acknowledged without touching the cache; a failed purge returns an error so
// the message is redelivered.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	log := mylog.FromContext(mylog.WithComponent(ctx, "kafka_consumer"), c.zlog)

	var ev invalidation.DatasetEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncInvalidation("invalid")
		log.Warn().Err(err).
			Str("kind", "decode").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("dropping undecodable event")
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.IncInvalidation("invalid")
		log.Warn().Err(err).Str("dataset", ev.Dataset).Int64("offset", msg.Offset).Msg("dropping invalid event")
		return nil
	}
	if !c.watch.Matches(ev.Dataset) {
		obs.IncInvalidation("ignored")
		c.logger.Debug("event for unwatched dataset", "dataset", ev.Dataset)
		return nil
	}
	if !c.dedupe.shouldApply(ev.Dataset, ev.TS.UnixNano()) {
		obs.IncInvalidation("duplicate")
		c.logger.Debug("stale or duplicate event", "dataset", ev.Dataset, "ts", ev.TS)
		return nil
	}

	pctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()
	if err := c.cache.Purge(pctx); err != nil {
		c.dedupe.forget(ev.Dataset)
		obs.IncInvalidation("error")
		log.Error().Err(err).
			Str("kind", "purge").
			Str("driver", c.cache.Driver()).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka error")
		return fmt.Errorf("purge %s cache: %w", c.cache.Driver(), err)
	}

	obs.IncInvalidation("applied")
	obs.IncCachePurge("kafka")
	log.Info().
		Str("event", "invalidation").
		Str("dataset", ev.Dataset).
		Time("ts", ev.TS).
		Str("driver", c.cache.Driver()).
		Msg("response cache purged")
	return nil
}
