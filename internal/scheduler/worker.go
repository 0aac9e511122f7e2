package scheduler

import (
	"context"
	"fmt"

	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ChatProvisioner creates a chat channel for a verified purchase.
// Implementations must be idempotent per (lead, seller).
type ChatProvisioner interface {
	Provision(ctx context.Context, leadID, sellerID, buyerID uuid.UUID, contactPhone, contactEmail string) error
}

// OutboxProcessor delivers one claimed notification outbox record.
type OutboxProcessor interface {
	ProcessOutbox(ctx context.Context, outboxID uuid.UUID) error
}

// Worker consumes background tasks from the asynq queue.
type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	provisioner ChatProvisioner
	notifier    OutboxProcessor
	log         *logger.Logger
}

func NewWorker(cfg config.WorkerConfig, provisioner ChatProvisioner, notifier OutboxProcessor, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:      server,
		mux:         mux,
		provisioner: provisioner,
		notifier:    notifier,
		log:         log,
	}

	mux.HandleFunc(TaskChatProvision, w.handleChatProvision)
	mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)

	return w, nil
}

func (w *Worker) handleChatProvision(ctx context.Context, task *asynq.Task) error {
	if w.provisioner == nil {
		return nil
	}

	payload, err := ParseChatProvisionPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}
	sellerID, err := uuid.Parse(payload.SellerID)
	if err != nil {
		return err
	}
	buyerID, err := uuid.Parse(payload.BuyerID)
	if err != nil {
		return err
	}

	return w.provisioner.Provision(ctx, leadID, sellerID, buyerID, payload.ContactPhone, payload.ContactEmail)
}

func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	if w.notifier == nil {
		return nil
	}

	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return err
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return err
	}

	return w.notifier.ProcessOutbox(ctx, outboxID)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
