package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/notification/outbox"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeOutbox struct {
	records map[uuid.UUID]outbox.Record

	inserted  []outbox.InsertParams
	succeeded []uuid.UUID
	failed    map[uuid.UUID]string
	retries   map[uuid.UUID]time.Time
}

func newFakeOutbox() *fakeOutbox {
	return &fakeOutbox{
		records: make(map[uuid.UUID]outbox.Record),
		failed:  make(map[uuid.UUID]string),
		retries: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeOutbox) add(template, recipient string, payload emailOutboxPayload, attempts int) uuid.UUID {
	id := uuid.New()
	raw, _ := json.Marshal(payload)
	f.records[id] = outbox.Record{
		ID:        id,
		Kind:      "email",
		Template:  template,
		Recipient: recipient,
		Payload:   raw,
		RunAt:     time.Now().UTC(),
		Status:    outbox.StatusEnqueued,
		Attempts:  attempts,
	}
	return id
}

func (f *fakeOutbox) Insert(_ context.Context, p outbox.InsertParams) (uuid.UUID, error) {
	f.inserted = append(f.inserted, p)
	return uuid.New(), nil
}

func (f *fakeOutbox) GetByID(_ context.Context, id uuid.UUID) (outbox.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return outbox.Record{}, errors.New("no rows in result set")
	}
	return rec, nil
}

func (f *fakeOutbox) MarkProcessing(_ context.Context, id uuid.UUID) error {
	rec := f.records[id]
	rec.Status = outbox.StatusProcessing
	f.records[id] = rec
	return nil
}

func (f *fakeOutbox) MarkSucceeded(_ context.Context, id uuid.UUID) error {
	rec := f.records[id]
	rec.Status = outbox.StatusSucceeded
	f.records[id] = rec
	f.succeeded = append(f.succeeded, id)
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id uuid.UUID, lastError string) error {
	rec := f.records[id]
	rec.Status = outbox.StatusFailed
	f.records[id] = rec
	f.failed[id] = lastError
	return nil
}

func (f *fakeOutbox) ScheduleRetry(_ context.Context, id uuid.UUID, runAt time.Time, _ string) error {
	rec := f.records[id]
	rec.Status = outbox.StatusPending
	rec.RunAt = runAt
	f.records[id] = rec
	f.retries[id] = runAt
	return nil
}

type testSender struct {
	leadApprovedTo   []string
	paymentRejected  int
	paymentVerified  int
	failWith         error
	lastProduct      string
	lastReason       string
	customEmailCalls int
}

func (s *testSender) SendLeadApprovedEmail(_ context.Context, toEmail, product string, _ int) error {
	s.leadApprovedTo = append(s.leadApprovedTo, toEmail)
	s.lastProduct = product
	return s.failWith
}

func (s *testSender) SendLeadRejectedEmail(_ context.Context, _, _, _ string) error {
	return s.failWith
}

func (s *testSender) SendLeadSoldEmail(_ context.Context, _, _ string) error {
	return s.failWith
}

func (s *testSender) SendPaymentVerifiedEmail(_ context.Context, _, _ string) error {
	s.paymentVerified++
	return s.failWith
}

func (s *testSender) SendPaymentRejectedEmail(_ context.Context, _, _, reason string) error {
	s.paymentRejected++
	s.lastReason = reason
	return s.failWith
}

func (s *testSender) SendCustomEmail(_ context.Context, _, _, _ string) error {
	s.customEmailCalls++
	return s.failWith
}

func newTestModule(store *fakeOutbox, sender *testSender) *Module {
	return New(store, sender, logger.New("development"))
}

func TestHandleLeadApprovedRecordsOutboxRow(t *testing.T) {
	store := newFakeOutbox()
	m := newTestModule(store, &testSender{})

	err := m.Handle(context.Background(), events.LeadApproved{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     uuid.New(),
		BuyerID:    uuid.New(),
		BuyerEmail: "buyer@example.com",
		Product:    "industrial pumps",
		Price:      120,
		MaxSellers: 3,
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(store.inserted) != 1 {
		t.Fatalf("expected 1 outbox insert, got %d", len(store.inserted))
	}
	p := store.inserted[0]
	if p.Template != templateLeadApproved || p.Recipient != "buyer@example.com" {
		t.Fatalf("unexpected insert params: %+v", p)
	}
}

func TestHandleSkipsWhenRecipientUnknown(t *testing.T) {
	store := newFakeOutbox()
	m := newTestModule(store, &testSender{})

	err := m.Handle(context.Background(), events.PaymentRejected{
		BaseEvent:  events.NewBaseEvent(),
		PurchaseID: uuid.New(),
		LeadID:     uuid.New(),
		SellerID:   uuid.New(),
		Reason:     "proof unreadable",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(store.inserted) != 0 {
		t.Fatalf("expected no outbox insert without a recipient, got %d", len(store.inserted))
	}
}

func TestProcessOutboxDeliversEmail(t *testing.T) {
	store := newFakeOutbox()
	sender := &testSender{}
	m := newTestModule(store, sender)

	id := store.add(templateLeadApproved, "buyer@example.com", emailOutboxPayload{Product: "solar panels", Price: 200}, 0)
	if err := m.ProcessOutbox(context.Background(), id); err != nil {
		t.Fatalf("ProcessOutbox: %v", err)
	}

	if len(sender.leadApprovedTo) != 1 || sender.leadApprovedTo[0] != "buyer@example.com" {
		t.Fatalf("expected one approval email to buyer, got %v", sender.leadApprovedTo)
	}
	if sender.lastProduct != "solar panels" {
		t.Fatalf("unexpected product: %q", sender.lastProduct)
	}
	if len(store.succeeded) != 1 {
		t.Fatalf("expected record marked succeeded, got %d", len(store.succeeded))
	}
}

func TestProcessOutboxSkipsSucceededRecord(t *testing.T) {
	store := newFakeOutbox()
	sender := &testSender{}
	m := newTestModule(store, sender)

	id := store.add(templatePaymentVerified, "seller@example.com", emailOutboxPayload{Product: "solar panels"}, 1)
	rec := store.records[id]
	rec.Status = outbox.StatusSucceeded
	store.records[id] = rec

	if err := m.ProcessOutbox(context.Background(), id); err != nil {
		t.Fatalf("ProcessOutbox: %v", err)
	}
	if sender.paymentVerified != 0 {
		t.Fatalf("expected no resend for a succeeded record, got %d sends", sender.paymentVerified)
	}
}

func TestProcessOutboxSchedulesRetryOnFailure(t *testing.T) {
	store := newFakeOutbox()
	sender := &testSender{failWith: errors.New("smtp send: connection refused")}
	m := newTestModule(store, sender)

	id := store.add(templatePaymentRejected, "seller@example.com", emailOutboxPayload{Product: "solar panels", Reason: "wrong amount"}, 0)
	if err := m.ProcessOutbox(context.Background(), id); err == nil {
		t.Fatal("expected delivery error")
	}

	if _, ok := store.retries[id]; !ok {
		t.Fatal("expected a retry to be scheduled")
	}
	if _, ok := store.failed[id]; ok {
		t.Fatal("record must not be marked failed before retries are exhausted")
	}
}

func TestProcessOutboxMarksFailedAfterMaxAttempts(t *testing.T) {
	store := newFakeOutbox()
	sender := &testSender{failWith: errors.New("smtp send: connection refused")}
	m := newTestModule(store, sender)

	id := store.add(templatePaymentRejected, "seller@example.com", emailOutboxPayload{Product: "solar panels"}, maxOutboxRetryAttempts-1)
	if err := m.ProcessOutbox(context.Background(), id); err == nil {
		t.Fatal("expected delivery error")
	}

	if _, ok := store.failed[id]; !ok {
		t.Fatal("expected record marked failed after exhausting retries")
	}
	if _, ok := store.retries[id]; ok {
		t.Fatal("no further retry may be scheduled after the final attempt")
	}
}

func TestProcessOutboxUnsupportedTemplate(t *testing.T) {
	store := newFakeOutbox()
	sender := &testSender{}
	m := newTestModule(store, sender)

	id := store.add("carrier_pigeon", "someone@example.com", emailOutboxPayload{}, 0)
	if err := m.ProcessOutbox(context.Background(), id); err != nil {
		t.Fatalf("ProcessOutbox: %v", err)
	}
	if _, ok := store.failed[id]; !ok {
		t.Fatal("expected unsupported template to be marked failed")
	}
}
