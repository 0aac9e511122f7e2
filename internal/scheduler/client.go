package scheduler

import (
	"context"
	"fmt"

	leadsdomain "leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues background tasks. It implements the purchases service's
// ChatProvisioner interface so verification can hand off channel creation
// without blocking on the chat service.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.WorkerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueProvision schedules chat channel creation for a verified purchase.
// Retried by asynq until the provisioner reports success.
func (c *Client) EnqueueProvision(ctx context.Context, leadID, sellerID, buyerID uuid.UUID, disclosure leadsdomain.Disclosure) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewChatProvisionTask(ChatProvisionPayload{
		LeadID:       leadID.String(),
		SellerID:     sellerID.String(),
		BuyerID:      buyerID.String(),
		ContactPhone: disclosure.Phone,
		ContactEmail: disclosure.Email,
	})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.MaxRetry(10))
	return err
}

func (c *Client) EnqueueNotificationOutboxDue(ctx context.Context, payload NotificationOutboxDuePayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewNotificationOutboxDueTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
