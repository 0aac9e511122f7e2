// Package notification turns domain events into outbox records and delivers
// them as emails. Domain modules publish events and never touch email
// providers or templates; delivery runs in the worker via ProcessOutbox.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leadmarket_backend/internal/email"
	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/notification/outbox"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	kindEmail = "email"

	templateLeadApproved    = "lead_approved"
	templateLeadRejected    = "lead_rejected"
	templateLeadSold        = "lead_sold"
	templatePaymentVerified = "payment_verified"
	templatePaymentRejected = "payment_rejected"

	invalidOutboxPayloadPrefix = "invalid payload: "
	maxOutboxRetryAttempts     = 5
	outboxRetryBaseDelay       = time.Minute
	outboxRetryMaxDelay        = 60 * time.Minute
)

// OutboxStore is the slice of the outbox repository the module needs.
type OutboxStore interface {
	Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (outbox.Record, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error
}

type emailOutboxPayload struct {
	Product string `json:"product"`
	Price   int    `json:"price,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type Module struct {
	outbox OutboxStore
	sender email.Sender
	log    *logger.Logger
}

func New(outboxStore OutboxStore, sender email.Sender, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	return &Module{outbox: outboxStore, sender: sender, log: log}
}

// RegisterHandlers subscribes the module to every event it records.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.LeadApproved{}.EventName(), m)
	bus.Subscribe(events.LeadRejected{}.EventName(), m)
	bus.Subscribe(events.LeadSold{}.EventName(), m)
	bus.Subscribe(events.PaymentVerified{}.EventName(), m)
	bus.Subscribe(events.PaymentRejected{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadApproved:
		return m.record(ctx, templateLeadApproved, e.BuyerEmail, emailOutboxPayload{Product: e.Product, Price: e.Price})
	case events.LeadRejected:
		return m.record(ctx, templateLeadRejected, e.BuyerEmail, emailOutboxPayload{Product: e.Product})
	case events.LeadSold:
		return m.record(ctx, templateLeadSold, e.BuyerEmail, emailOutboxPayload{Product: e.Product})
	case events.PaymentVerified:
		return m.record(ctx, templatePaymentVerified, e.SellerEmail, emailOutboxPayload{Product: e.Product})
	case events.PaymentRejected:
		return m.record(ctx, templatePaymentRejected, e.SellerEmail, emailOutboxPayload{Product: e.Product, Reason: e.Reason})
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) record(ctx context.Context, template, recipient string, payload emailOutboxPayload) error {
	if recipient == "" {
		// Accounts live in the external identity provider; a token without an
		// email claim simply gets no notification.
		m.log.Debug("no recipient for notification; skipping", "template", template)
		return nil
	}
	if m.outbox == nil {
		m.log.Debug("notification outbox not configured; skipping", "template", template)
		return nil
	}

	id, err := m.outbox.Insert(ctx, outbox.InsertParams{
		Kind:      kindEmail,
		Template:  template,
		Recipient: recipient,
		Payload:   payload,
	})
	if err != nil {
		m.log.Error("failed to record notification", "template", template, "error", err)
		return err
	}
	m.log.Debug("notification recorded", "outboxId", id.String(), "template", template)
	return nil
}

// ProcessOutbox delivers a single due outbox record. The worker invokes it
// for every notification.outbox.due task; replays are safe because records
// that already succeeded are skipped.
func (m *Module) ProcessOutbox(ctx context.Context, outboxID uuid.UUID) error {
	rec, process, err := m.prepareOutboxRecord(ctx, outboxID)
	if err != nil || !process {
		if err != nil {
			m.log.Error("failed to prepare outbox record", "outboxId", outboxID, "error", err)
		}
		return err
	}

	if rec.Kind != kindEmail {
		m.markOutboxUnsupported(ctx, rec)
		return nil
	}

	var payload emailOutboxPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		_ = m.outbox.MarkFailed(ctx, rec.ID, invalidOutboxPayloadPrefix+err.Error())
		return nil
	}

	var sendErr error
	switch rec.Template {
	case templateLeadApproved:
		sendErr = m.sender.SendLeadApprovedEmail(ctx, rec.Recipient, payload.Product, payload.Price)
	case templateLeadRejected:
		sendErr = m.sender.SendLeadRejectedEmail(ctx, rec.Recipient, payload.Product, payload.Reason)
	case templateLeadSold:
		sendErr = m.sender.SendLeadSoldEmail(ctx, rec.Recipient, payload.Product)
	case templatePaymentVerified:
		sendErr = m.sender.SendPaymentVerifiedEmail(ctx, rec.Recipient, payload.Product)
	case templatePaymentRejected:
		sendErr = m.sender.SendPaymentRejectedEmail(ctx, rec.Recipient, payload.Product, payload.Reason)
	default:
		m.markOutboxUnsupported(ctx, rec)
		return nil
	}

	if sendErr != nil {
		m.handleOutboxDeliveryError(ctx, rec, sendErr)
		return sendErr
	}

	if err := m.outbox.MarkSucceeded(ctx, rec.ID); err != nil {
		m.log.Error("failed to mark outbox record succeeded", "outboxId", rec.ID.String(), "error", err)
		return err
	}
	m.log.Info("outbox record processed successfully", "outboxId", rec.ID.String(), "template", rec.Template)
	return nil
}

func (m *Module) prepareOutboxRecord(ctx context.Context, outboxID uuid.UUID) (outbox.Record, bool, error) {
	rec, err := m.outbox.GetByID(ctx, outboxID)
	if err != nil {
		return outbox.Record{}, false, err
	}
	if rec.Status == outbox.StatusSucceeded {
		m.log.Debug("outbox record already succeeded; skipping", "outboxId", rec.ID.String())
		return rec, false, nil
	}
	if err := m.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return outbox.Record{}, false, err
	}
	return rec, true, nil
}

func (m *Module) handleOutboxDeliveryError(ctx context.Context, rec outbox.Record, deliveryErr error) {
	attempt := rec.Attempts + 1
	if attempt >= maxOutboxRetryAttempts {
		_ = m.outbox.MarkFailed(ctx, rec.ID, deliveryErr.Error())
		m.log.Warn("notification outbox exhausted retries",
			"outboxId", rec.ID.String(),
			"template", rec.Template,
			"attempt", attempt,
			"maxAttempts", maxOutboxRetryAttempts,
			"error", deliveryErr,
		)
		return
	}

	retryAt := time.Now().UTC().Add(computeOutboxRetryDelay(attempt))
	if err := m.outbox.ScheduleRetry(ctx, rec.ID, retryAt, deliveryErr.Error()); err != nil {
		_ = m.outbox.MarkFailed(ctx, rec.ID, deliveryErr.Error())
		m.log.Error("notification outbox retry scheduling failed; marked failed",
			"outboxId", rec.ID.String(),
			"attempt", attempt,
			"error", err,
		)
		return
	}

	m.log.Warn("notification outbox scheduled retry",
		"outboxId", rec.ID.String(),
		"template", rec.Template,
		"attempt", attempt,
		"retryAt", retryAt,
	)
}

func (m *Module) markOutboxUnsupported(ctx context.Context, rec outbox.Record) {
	msg := fmt.Sprintf("unsupported outbox kind/template: %s/%s", rec.Kind, rec.Template)
	_ = m.outbox.MarkFailed(ctx, rec.ID, msg)
	m.log.Warn("unsupported outbox record", "outboxId", rec.ID.String(), "kind", rec.Kind, "template", rec.Template)
}

func computeOutboxRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := outboxRetryBaseDelay << (attempt - 1)
	if delay > outboxRetryMaxDelay {
		return outboxRetryMaxDelay
	}
	return delay
}
