package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"leadmarket_backend/internal/events"
	leadsdomain "leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/purchases/domain"
	"leadmarket_backend/internal/purchases/repository"
	"leadmarket_backend/internal/purchases/transport"
	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
)

// fakeStore serializes WithTx with a mutex, matching the serialization the
// lead row lock provides in Postgres.
type fakeStore struct {
	mu       sync.Mutex
	leads    map[uuid.UUID]repository.LeadView
	attempts map[uuid.UUID]repository.Attempt
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads:    make(map[uuid.UUID]repository.LeadView),
		attempts: make(map[uuid.UUID]repository.Attempt),
	}
}

func (f *fakeStore) addLead(status leadsdomain.Status, price, maxSellers int, allowContact bool, phone, email *string) uuid.UUID {
	id := uuid.New()
	f.leads[id] = repository.LeadView{
		ID:                  id,
		BuyerID:             uuid.New(),
		Status:              status,
		Price:               &price,
		MaxSellers:          &maxSellers,
		AllowSellersContact: allowContact,
		ContactPhone:        phone,
		ContactEmail:        email,
	}
	return id
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx)
}

func (f *fakeStore) GetLeadForUpdate(_ context.Context, leadID uuid.UUID) (repository.LeadView, error) {
	lead, ok := f.leads[leadID]
	if !ok {
		return repository.LeadView{}, repository.ErrLeadNotFound
	}
	return lead, nil
}

func (f *fakeStore) CountPending(_ context.Context, leadID uuid.UUID) (int, error) {
	count := 0
	for _, a := range f.attempts {
		if a.LeadID == leadID && a.Status == domain.StatusPendingVerification {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) InsertAttempt(_ context.Context, leadID, sellerID uuid.UUID, sellerEmail *string, proofKey string) (repository.Attempt, error) {
	for _, a := range f.attempts {
		if a.LeadID == leadID && a.SellerID == sellerID && a.Status != domain.StatusRejected {
			return repository.Attempt{}, repository.ErrDuplicateAttempt
		}
	}
	attempt := repository.Attempt{
		ID:              uuid.New(),
		LeadID:          leadID,
		SellerID:        sellerID,
		SellerEmail:     sellerEmail,
		Status:          domain.StatusPendingVerification,
		PaymentProofKey: proofKey,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	f.attempts[attempt.ID] = attempt
	return attempt, nil
}

func (f *fakeStore) GetAttempt(_ context.Context, id uuid.UUID) (repository.Attempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return repository.Attempt{}, repository.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) UpdateAttemptStatus(_ context.Context, id uuid.UUID, status domain.Status, rejectReason *string) (repository.Attempt, error) {
	a, ok := f.attempts[id]
	if !ok {
		return repository.Attempt{}, repository.ErrNotFound
	}
	a.Status = status
	a.RejectReason = rejectReason
	a.UpdatedAt = time.Now()
	f.attempts[id] = a
	return a, nil
}

func (f *fakeStore) IncrementSoldCount(_ context.Context, leadID uuid.UUID) (int, error) {
	lead, ok := f.leads[leadID]
	if !ok {
		return 0, repository.ErrLeadNotFound
	}
	lead.SoldCount++
	f.leads[leadID] = lead
	return lead.SoldCount, nil
}

func (f *fakeStore) MarkLeadSold(_ context.Context, leadID uuid.UUID) error {
	lead, ok := f.leads[leadID]
	if !ok {
		return repository.ErrLeadNotFound
	}
	lead.Status = leadsdomain.StatusSold
	f.leads[leadID] = lead
	return nil
}

func (f *fakeStore) ListBySeller(_ context.Context, sellerID uuid.UUID, _, _ int) ([]repository.AttemptWithLead, int, error) {
	var out []repository.AttemptWithLead
	for _, a := range f.attempts {
		if a.SellerID == sellerID {
			out = append(out, repository.AttemptWithLead{Attempt: a})
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) ListPending(_ context.Context, _, _ int) ([]repository.AttemptWithLead, int, error) {
	var out []repository.AttemptWithLead
	for _, a := range f.attempts {
		if a.Status == domain.StatusPendingVerification {
			out = append(out, repository.AttemptWithLead{Attempt: a})
		}
	}
	return out, len(out), nil
}

type fakeBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *fakeBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *fakeBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *fakeBus) Subscribe(string, events.Handler) {}

func (b *fakeBus) byName(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

type fakeChat struct {
	mu    sync.Mutex
	calls []struct{ leadID, sellerID uuid.UUID }
}

func (c *fakeChat) EnqueueProvision(_ context.Context, leadID, sellerID, _ uuid.UUID, _ leadsdomain.Disclosure) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, struct{ leadID, sellerID uuid.UUID }{leadID, sellerID})
	return nil
}

func newTestService(store *fakeStore, bus *fakeBus) (*Service, *fakeChat) {
	svc := New(store, bus, nil)
	chat := &fakeChat{}
	svc.SetChatProvisioner(chat)
	return svc, chat
}

func submitReq() transport.SubmitPurchaseRequest {
	return transport.SubmitPurchaseRequest{PaymentProofKey: "payment-proofs/x/proof.pdf"}
}

func TestSubmitPurchaseAdmitsIntoOpenSlot(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	svc, _ := newTestService(store, bus)
	leadID := store.addLead(leadsdomain.StatusApproved, 100, 3, false, nil, nil)

	resp, err := svc.SubmitPurchase(context.Background(), leadID, uuid.New(), "seller@example.com", submitReq())
	if err != nil {
		t.Fatalf("SubmitPurchase: %v", err)
	}
	if resp.Status != domain.StatusPendingVerification {
		t.Fatalf("status = %s, want pending_verification", resp.Status)
	}
	if got := bus.byName(events.EventPaymentSubmitted); len(got) != 1 {
		t.Fatalf("payment.submitted events = %d, want 1", len(got))
	}
}

func TestSubmitPurchaseRequiresApprovedLead(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeBus{})

	for _, status := range []leadsdomain.Status{leadsdomain.StatusPending, leadsdomain.StatusRejected, leadsdomain.StatusSold} {
		leadID := store.addLead(status, 100, 3, false, nil, nil)
		_, err := svc.SubmitPurchase(context.Background(), leadID, uuid.New(), "seller@example.com", submitReq())
		if apperr.GetKind(err) != apperr.KindInvalidState {
			t.Fatalf("status=%s: err = %v, want invalid state", status, err)
		}
	}
}

func TestSubmitPurchaseUnknownLead(t *testing.T) {
	svc, _ := newTestService(newFakeStore(), &fakeBus{})

	_, err := svc.SubmitPurchase(context.Background(), uuid.New(), uuid.New(), "seller@example.com", submitReq())
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestSubmitPurchaseDuplicateSeller(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeBus{})
	leadID := store.addLead(leadsdomain.StatusApproved, 100, 3, false, nil, nil)
	sellerID := uuid.New()

	if _, err := svc.SubmitPurchase(context.Background(), leadID, sellerID, "seller@example.com", submitReq()); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := svc.SubmitPurchase(context.Background(), leadID, sellerID, "seller@example.com", submitReq())
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestSubmitPurchaseCapacityExceeded(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeBus{})
	leadID := store.addLead(leadsdomain.StatusApproved, 100, 1, false, nil, nil)

	if _, err := svc.SubmitPurchase(context.Background(), leadID, uuid.New(), "seller@example.com", submitReq()); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := svc.SubmitPurchase(context.Background(), leadID, uuid.New(), "seller@example.com", submitReq())
	if apperr.GetKind(err) != apperr.KindCapacityExceeded {
		t.Fatalf("err = %v, want capacity exceeded", err)
	}
}

// Two sellers race for the last slot on a max_sellers=1 lead. Exactly one
// must be admitted, whichever order the transactions serialize in.
func TestSubmitPurchaseConcurrentLastSlot(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeBus{})
	leadID := store.addLead(leadsdomain.StatusApproved, 100, 1, false, nil, nil)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitPurchase(context.Background(), leadID, uuid.New(), "seller@example.com", submitReq())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var admitted, refused int
	for err := range results {
		switch {
		case err == nil:
			admitted++
		case apperr.GetKind(err) == apperr.KindCapacityExceeded:
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if admitted != 1 || refused != 1 {
		t.Fatalf("admitted=%d refused=%d, want exactly one of each", admitted, refused)
	}
}

func TestVerifyPaymentSellsSlotAndDiscloses(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	svc, chat := newTestService(store, bus)

	phone := "+31612345678"
	leadID := store.addLead(leadsdomain.StatusApproved, 100, 3, true, &phone, nil)
	sellerID := uuid.New()

	submitted, err := svc.SubmitPurchase(context.Background(), leadID, sellerID, "seller@example.com", submitReq())
	if err != nil {
		t.Fatalf("SubmitPurchase: %v", err)
	}

	resp, err := svc.VerifyPayment(context.Background(), submitted.ID)
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if resp.Purchase.Status != domain.StatusVerified {
		t.Fatalf("status = %s, want verified", resp.Purchase.Status)
	}
	if resp.SoldCount != 1 {
		t.Fatalf("soldCount = %d, want 1", resp.SoldCount)
	}
	if resp.LeadStatus != string(leadsdomain.StatusApproved) {
		t.Fatalf("leadStatus = %s, want approved (2 slots remain)", resp.LeadStatus)
	}
	if resp.Disclosure.Phone != phone {
		t.Fatalf("disclosure phone = %q, want %q", resp.Disclosure.Phone, phone)
	}

	if len(chat.calls) != 1 || chat.calls[0].sellerID != sellerID {
		t.Fatalf("chat calls = %v, want one for seller %s", chat.calls, sellerID)
	}
	if got := bus.byName(events.EventPaymentVerified); len(got) != 1 {
		t.Fatalf("payment.verified events = %d, want 1", len(got))
	}
	if got := bus.byName(events.EventLeadSold); len(got) != 0 {
		t.Fatalf("lead.sold events = %d, want 0", len(got))
	}
}

func TestVerifyPaymentWithoutConsentDisclosesNothing(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeBus{})

	phone := "+31612345678"
	leadID := store.addLead(leadsdomain.StatusApproved, 100, 1, false, &phone, nil)

	submitted, _ := svc.SubmitPurchase(context.Background(), leadID, uuid.New(), "seller@example.com", submitReq())
	resp, err := svc.VerifyPayment(context.Background(), submitted.ID)
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if !resp.Disclosure.IsEmpty() {
		t.Fatalf("disclosure = %+v, want empty without consent", resp.Disclosure)
	}
}

func TestVerifyPaymentLastSlotSellsLead(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	svc, _ := newTestService(store, bus)
	leadID := store.addLead(leadsdomain.StatusApproved, 100, 1, false, nil, nil)

	submitted, _ := svc.SubmitPurchase(context.Background(), leadID, uuid.New(), "seller@example.com", submitReq())
	resp, err := svc.VerifyPayment(context.Background(), submitted.ID)
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if resp.LeadStatus != string(leadsdomain.StatusSold) {
		t.Fatalf("leadStatus = %s, want sold", resp.LeadStatus)
	}
	if store.leads[leadID].Status != leadsdomain.StatusSold {
		t.Fatalf("lead status = %s, want sold", store.leads[leadID].Status)
	}
	if got := bus.byName(events.EventLeadSold); len(got) != 1 {
		t.Fatalf("lead.sold events = %d, want 1", len(got))
	}
}

func TestVerifyPaymentTwiceFails(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeBus{})
	leadID := store.addLead(leadsdomain.StatusApproved, 100, 3, false, nil, nil)

	submitted, _ := svc.SubmitPurchase(context.Background(), leadID, uuid.New(), "seller@example.com", submitReq())
	if _, err := svc.VerifyPayment(context.Background(), submitted.ID); err != nil {
		t.Fatalf("first verify: %v", err)
	}

	_, err := svc.VerifyPayment(context.Background(), submitted.ID)
	if apperr.GetKind(err) != apperr.KindInvalidState {
		t.Fatalf("err = %v, want invalid state", err)
	}
	// The double verify must not double-sell.
	if got := store.leads[leadID].SoldCount; got != 1 {
		t.Fatalf("soldCount = %d, want 1", got)
	}
}

func TestVerifyPaymentUnknownPurchase(t *testing.T) {
	svc, _ := newTestService(newFakeStore(), &fakeBus{})

	_, err := svc.VerifyPayment(context.Background(), uuid.New())
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestRejectPaymentReleasesSlot(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	svc, _ := newTestService(store, bus)
	leadID := store.addLead(leadsdomain.StatusApproved, 100, 1, false, nil, nil)
	sellerID := uuid.New()

	submitted, _ := svc.SubmitPurchase(context.Background(), leadID, sellerID, "seller@example.com", submitReq())

	resp, err := svc.RejectPayment(context.Background(), submitted.ID, "unreadable proof")
	if err != nil {
		t.Fatalf("RejectPayment: %v", err)
	}
	if resp.Status != domain.StatusRejected {
		t.Fatalf("status = %s, want rejected", resp.Status)
	}
	if resp.RejectReason == nil || *resp.RejectReason != "unreadable proof" {
		t.Fatalf("rejectReason = %v, want unreadable proof", resp.RejectReason)
	}
	if store.leads[leadID].SoldCount != 0 {
		t.Fatalf("soldCount = %d, reject must not touch it", store.leads[leadID].SoldCount)
	}

	// The slot is free again, even for the same seller.
	if _, err := svc.SubmitPurchase(context.Background(), leadID, sellerID, "seller@example.com", submitReq()); err != nil {
		t.Fatalf("resubmit after reject: %v", err)
	}
	if got := bus.byName(events.EventPaymentRejected); len(got) != 1 {
		t.Fatalf("payment.rejected events = %d, want 1", len(got))
	}
}

func TestRejectVerifiedPaymentFails(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, &fakeBus{})
	leadID := store.addLead(leadsdomain.StatusApproved, 100, 1, false, nil, nil)

	submitted, _ := svc.SubmitPurchase(context.Background(), leadID, uuid.New(), "seller@example.com", submitReq())
	if _, err := svc.VerifyPayment(context.Background(), submitted.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}

	_, err := svc.RejectPayment(context.Background(), submitted.ID, "too late")
	if apperr.GetKind(err) != apperr.KindInvalidState {
		t.Fatalf("err = %v, want invalid state", err)
	}
}

// Full lifecycle on a max_sellers=3 lead: three sellers are admitted and
// verified, the fourth is refused, and the lead ends sold.
func TestThreeSellerSellOut(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	svc, chat := newTestService(store, bus)
	leadID := store.addLead(leadsdomain.StatusApproved, 100, 3, false, nil, nil)

	var purchases []uuid.UUID
	for i := 0; i < 3; i++ {
		resp, err := svc.SubmitPurchase(context.Background(), leadID, uuid.New(), "seller@example.com", submitReq())
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		purchases = append(purchases, resp.ID)
	}

	if _, err := svc.SubmitPurchase(context.Background(), leadID, uuid.New(), "seller@example.com", submitReq()); apperr.GetKind(err) != apperr.KindCapacityExceeded {
		t.Fatalf("fourth submit err = %v, want capacity exceeded", err)
	}

	for i, id := range purchases {
		resp, err := svc.VerifyPayment(context.Background(), id)
		if err != nil {
			t.Fatalf("verify %d: %v", i, err)
		}
		if resp.SoldCount != i+1 {
			t.Fatalf("verify %d: soldCount = %d, want %d", i, resp.SoldCount, i+1)
		}
	}

	lead := store.leads[leadID]
	if lead.Status != leadsdomain.StatusSold || lead.SoldCount != 3 {
		t.Fatalf("lead = %s soldCount=%d, want sold/3", lead.Status, lead.SoldCount)
	}
	if len(chat.calls) != 3 {
		t.Fatalf("chat calls = %d, want 3", len(chat.calls))
	}
	if got := bus.byName(events.EventLeadSold); len(got) != 1 {
		t.Fatalf("lead.sold events = %d, want 1", len(got))
	}
}
