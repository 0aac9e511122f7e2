package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadmarket_backend/internal/notification/outbox"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationOutboxDispatcher polls the outbox table and enqueues due
// records. ClaimPending uses FOR UPDATE SKIP LOCKED, so multiple dispatcher
// instances never enqueue the same record twice.
type NotificationOutboxDispatcher struct {
	client   *asynq.Client
	queue    string
	repo     *outbox.Repository
	interval time.Duration
	log      *logger.Logger
}

func NewNotificationOutboxDispatcher(cfg config.WorkerConfig, market config.MarketConfig, pool *pgxpool.Pool, log *logger.Logger) (*NotificationOutboxDispatcher, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	interval := market.GetOutboxPollInterval()
	if interval <= 0 {
		interval = 2 * time.Second
	}

	return &NotificationOutboxDispatcher{
		client:   asynq.NewClient(opt),
		queue:    queue,
		repo:     outbox.New(pool),
		interval: interval,
		log:      log,
	}, nil
}

func (d *NotificationOutboxDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *NotificationOutboxDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		records, err := d.repo.ClaimPending(ctx, 50)
		if err != nil {
			d.log.Warn("outbox claim failed", "error", err)
			continue
		}

		for _, rec := range records {
			task, err := NewNotificationOutboxDueTask(NotificationOutboxDuePayload{
				OutboxID: rec.ID.String(),
			})
			if err != nil {
				msg := err.Error()
				_ = d.repo.MarkPending(ctx, rec.ID, &msg)
				continue
			}

			if _, err := d.client.EnqueueContext(ctx, task, asynq.ProcessAt(rec.RunAt), asynq.Queue(d.queue)); err != nil {
				msg := err.Error()
				_ = d.repo.MarkPending(ctx, rec.ID, &msg)
			}
		}
	}
}
