package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"kwik.app/dispatch/common/logger"
	"kwik.app/dispatch/internal/queue"
)

// StreamClaimer is the part of *redis.Client the reclaimer needs.
type StreamClaimer interface {
	XPendingExt(ctx context.Context, a *redis.XPendingExtArgs) *redis.XPendingExtCmd
	XClaim(ctx context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd
}

type RedisReclaimerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
	// MaxDeliveries moves a message that was delivered this many times
	// straight to the DLQ instead of processing it again. 0 disables it.
	MaxDeliveries int64
}

// RedisReclaimer picks up conversation tasks that a crashed worker read but
// never acked, so their call records still get built.
type RedisReclaimer struct {
	client    StreamClaimer
	cfg       RedisReclaimerConfig
	consumer  Consumer
	processor queue.MessageProcessor

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRedisReclaimer(client StreamClaimer, cfg RedisReclaimerConfig, consumer Consumer, processor queue.MessageProcessor) *RedisReclaimer {
	return &RedisReclaimer{
		client:    client,
		cfg:       cfg,
		consumer:  consumer,
		processor: processor,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run reclaims on every tick until Stop is called or ctx ends.
func (r *RedisReclaimer) Run(ctx context.Context) {
	defer close(r.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "dispatch.worker.reclaimer",
	})
	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"stream", r.cfg.Stream)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			if n, err := r.ReclaimOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim cycle error", "error", err)
			} else if n > 0 {
				slog.InfoContext(ctx, "reclaimed conversations", "count", n)
			}
		}
	}
}

func (r *RedisReclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// ReclaimOnce claims up to BatchSize idle messages and processes them.
// It returns how many were processed successfully.
func (r *RedisReclaimer) ReclaimOnce(ctx context.Context) (int, error) {
	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.cfg.Stream,
		Group:  r.cfg.Group,
		Idle:   r.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending: %w", err)
	}

	processed := 0
	for _, p := range pending {
		ok, err := r.reclaim(ctx, p)
		if err != nil {
			slog.ErrorContext(ctx, "failed to reclaim message",
				"error", err,
				"message_id", p.ID,
				"original_consumer", p.Consumer,
				"idle_time", p.Idle)
			continue
		}
		if ok {
			processed++
		}
	}
	return processed, nil
}

func (r *RedisReclaimer) reclaim(ctx context.Context, pending redis.XPendingExt) (bool, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: logger.Ptr(pending.ID),
	})

	claimed, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   r.cfg.Stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Messages: []string{pending.ID},
	}).Result()
	if err != nil {
		return false, fmt.Errorf("xclaim: %w", err)
	}
	if len(claimed) == 0 {
		// another worker got there first
		return false, nil
	}

	raw := claimed[0]
	msg, err := queue.ParseMessage(raw)
	if err != nil {
		slog.ErrorContext(ctx, "unparseable reclaimed message, acking", "error", err)
		_ = r.consumer.Ack(ctx, queue.Message{ID: raw.ID, Raw: raw})
		return false, nil
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationID: logger.Ptr(msg.ConversationID),
	})

	if r.cfg.MaxDeliveries > 0 && pending.RetryCount >= r.cfg.MaxDeliveries {
		slog.ErrorContext(ctx, "reclaimed message exceeded deliveries, sending to DLQ",
			"deliveries", pending.RetryCount)
		if err := r.consumer.SendDLQ(ctx, msg, "exceeded reclaim deliveries"); err != nil {
			return false, fmt.Errorf("sending to DLQ: %w", err)
		}
		return false, nil
	}

	slog.InfoContext(ctx, "reclaiming stale conversation",
		"original_consumer", pending.Consumer,
		"idle_time", pending.Idle,
		"deliveries", pending.RetryCount)

	start := time.Now()
	if err := r.processor(ctx, msg); err != nil {
		return false, fmt.Errorf("processing reclaimed message: %w", err)
	}

	slog.InfoContext(ctx, "reclaimed conversation processed",
		"duration_ms", time.Since(start).Milliseconds())
	return true, nil
}
