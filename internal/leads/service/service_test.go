package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/leads/repository"
	"leadmarket_backend/internal/leads/transport"
	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu      sync.Mutex
	leads   map[uuid.UUID]repository.Lead
	pending map[uuid.UUID]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads:   make(map[uuid.UUID]repository.Lead),
		pending: make(map[uuid.UUID]int),
	}
}

// WithTx serializes callers the same way the per-lead row lock does in
// Postgres: one mutating transaction at a time.
func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx)
}

func (f *fakeStore) Insert(_ context.Context, p repository.InsertParams) (repository.Lead, error) {
	lead := repository.Lead{
		ID:                  uuid.New(),
		BuyerID:             p.BuyerID,
		BuyerEmail:          p.BuyerEmail,
		Product:             p.Product,
		Category:            p.Category,
		Quantity:            p.Quantity,
		DeliveryLocation:    p.DeliveryLocation,
		AllowSellersContact: p.AllowSellersContact,
		ContactPhone:        p.ContactPhone,
		ContactEmail:        p.ContactEmail,
		Status:              domain.StatusPending,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeStore) GetForUpdate(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeStore) CountPendingAttempts(_ context.Context, leadID uuid.UUID) (int, error) {
	return f.pending[leadID], nil
}

func (f *fakeStore) UpdateApproval(_ context.Context, id uuid.UUID, price, maxSellers int) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	lead.Status = domain.StatusApproved
	lead.Price = &price
	lead.MaxSellers = &maxSellers
	lead.UpdatedAt = time.Now()
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.Status) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	lead.Status = status
	lead.UpdatedAt = time.Now()
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeStore) ListByStatus(_ context.Context, status *domain.Status, _, _ int) ([]repository.Lead, int, error) {
	var out []repository.Lead
	for _, lead := range f.leads {
		if status == nil || lead.Status == *status {
			out = append(out, lead)
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) ListByBuyer(_ context.Context, buyerID uuid.UUID, _, _ int) ([]repository.Lead, int, error) {
	var out []repository.Lead
	for _, lead := range f.leads {
		if lead.BuyerID == buyerID {
			out = append(out, lead)
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) ListMarket(_ context.Context, _, _ int) ([]repository.MarketLead, int, error) {
	var out []repository.MarketLead
	for _, lead := range f.leads {
		if lead.Status != domain.StatusApproved || lead.MaxSellers == nil || lead.Price == nil {
			continue
		}
		slots := *lead.MaxSellers - lead.SoldCount - f.pending[lead.ID]
		if slots <= 0 {
			continue
		}
		out = append(out, repository.MarketLead{
			ID:               lead.ID,
			Product:          lead.Product,
			Category:         lead.Category,
			Quantity:         lead.Quantity,
			DeliveryLocation: lead.DeliveryLocation,
			Price:            *lead.Price,
			SlotsLeft:        slots,
			CreatedAt:        lead.CreatedAt,
		})
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

func (b *fakeBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.events {
		out = append(out, e.EventName())
	}
	return out
}

type fakeMarketConfig struct{ minPrice int }

func (c fakeMarketConfig) GetMinLeadPrice() int                 { return c.minPrice }
func (c fakeMarketConfig) GetOutboxPollInterval() time.Duration { return time.Minute }

func newTestService(store *fakeStore, bus *fakeBus) *Service {
	return New(store, bus, fakeMarketConfig{minPrice: 50}, nil)
}

func submitRequest() transport.SubmitLeadRequest {
	return transport.SubmitLeadRequest{
		Product:             "industrial pumps",
		Category:            "machinery",
		Quantity:            12,
		DeliveryLocation:    "Rotterdam",
		AllowSellersContact: true,
		ContactPhone:        "+31612345678",
	}
}

func TestSubmitStoresContactOnlyWithConsent(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	svc := newTestService(store, bus)

	resp, err := svc.Submit(context.Background(), uuid.New(), "buyer@example.com", submitRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Status != domain.StatusPending {
		t.Fatalf("status = %s, want pending", resp.Status)
	}

	lead := store.leads[resp.ID]
	if lead.ContactPhone == nil || *lead.ContactPhone != "+31612345678" {
		t.Fatalf("contact phone = %v, want +31612345678", lead.ContactPhone)
	}

	got := bus.names()
	if len(got) != 1 || got[0] != events.EventLeadSubmitted {
		t.Fatalf("events = %v, want [lead.submitted]", got)
	}
}

func TestSubmitRejectsContactWithoutConsent(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeBus{})

	req := submitRequest()
	req.AllowSellersContact = false

	_, err := svc.Submit(context.Background(), uuid.New(), "buyer@example.com", req)
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestSubmitRequiresContactWithConsent(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeBus{})

	req := submitRequest()
	req.ContactPhone = ""
	req.ContactEmail = ""

	_, err := svc.Submit(context.Background(), uuid.New(), "buyer@example.com", req)
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestApprovePricesAndOpensLead(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	svc := newTestService(store, bus)

	submitted, err := svc.Submit(context.Background(), uuid.New(), "buyer@example.com", submitRequest())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	resp, err := svc.Approve(context.Background(), submitted.ID, transport.ApproveLeadRequest{Price: 120, MaxSellers: 3})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if resp.Status != domain.StatusApproved {
		t.Fatalf("status = %s, want approved", resp.Status)
	}
	if resp.Price == nil || *resp.Price != 120 {
		t.Fatalf("price = %v, want 120", resp.Price)
	}
	if resp.MaxSellers == nil || *resp.MaxSellers != 3 {
		t.Fatalf("maxSellers = %v, want 3", resp.MaxSellers)
	}

	got := bus.names()
	if len(got) != 2 || got[1] != events.EventLeadApproved {
		t.Fatalf("events = %v, want lead.approved last", got)
	}
}

func TestApproveEnforcesPriceFloor(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeBus{})

	submitted, _ := svc.Submit(context.Background(), uuid.New(), "buyer@example.com", submitRequest())

	_, err := svc.Approve(context.Background(), submitted.ID, transport.ApproveLeadRequest{Price: 49, MaxSellers: 3})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestApproveEnforcesMaxSellersEnum(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeBus{})

	submitted, _ := svc.Submit(context.Background(), uuid.New(), "buyer@example.com", submitRequest())

	for _, bad := range []int{0, 2, 4, 7, 11} {
		_, err := svc.Approve(context.Background(), submitted.ID, transport.ApproveLeadRequest{Price: 100, MaxSellers: bad})
		if apperr.GetKind(err) != apperr.KindValidation {
			t.Fatalf("maxSellers=%d: err = %v, want validation error", bad, err)
		}
	}
}

func TestReApproveAllowsRepricing(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeBus{})

	submitted, _ := svc.Submit(context.Background(), uuid.New(), "buyer@example.com", submitRequest())
	if _, err := svc.Approve(context.Background(), submitted.ID, transport.ApproveLeadRequest{Price: 100, MaxSellers: 3}); err != nil {
		t.Fatalf("first Approve: %v", err)
	}

	resp, err := svc.Approve(context.Background(), submitted.ID, transport.ApproveLeadRequest{Price: 150, MaxSellers: 5})
	if err != nil {
		t.Fatalf("second Approve: %v", err)
	}
	if *resp.Price != 150 || *resp.MaxSellers != 5 {
		t.Fatalf("got price=%d maxSellers=%d, want 150/5", *resp.Price, *resp.MaxSellers)
	}
}

func TestReApproveRejectsCapacityBelowReserved(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeBus{})

	submitted, _ := svc.Submit(context.Background(), uuid.New(), "buyer@example.com", submitRequest())
	if _, err := svc.Approve(context.Background(), submitted.ID, transport.ApproveLeadRequest{Price: 100, MaxSellers: 5}); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	// Two sold, one reservation in flight: shrinking to 3 is fine, 1 is not.
	lead := store.leads[submitted.ID]
	lead.SoldCount = 2
	store.leads[submitted.ID] = lead
	store.pending[submitted.ID] = 1

	if _, err := svc.Approve(context.Background(), submitted.ID, transport.ApproveLeadRequest{Price: 100, MaxSellers: 3}); err != nil {
		t.Fatalf("shrink to 3: %v", err)
	}

	_, err := svc.Approve(context.Background(), submitted.ID, transport.ApproveLeadRequest{Price: 100, MaxSellers: 1})
	if apperr.GetKind(err) != apperr.KindCapacityConflict {
		t.Fatalf("err = %v, want capacity conflict", err)
	}
}

func TestApproveInvalidStates(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeBus{})

	for _, status := range []domain.Status{domain.StatusRejected, domain.StatusSold} {
		submitted, _ := svc.Submit(context.Background(), uuid.New(), "buyer@example.com", submitRequest())
		lead := store.leads[submitted.ID]
		lead.Status = status
		store.leads[submitted.ID] = lead

		_, err := svc.Approve(context.Background(), submitted.ID, transport.ApproveLeadRequest{Price: 100, MaxSellers: 3})
		if apperr.GetKind(err) != apperr.KindInvalidState {
			t.Fatalf("status=%s: err = %v, want invalid state", status, err)
		}
	}
}

func TestRejectPendingLead(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	svc := newTestService(store, bus)

	submitted, _ := svc.Submit(context.Background(), uuid.New(), "buyer@example.com", submitRequest())

	resp, err := svc.Reject(context.Background(), submitted.ID)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if resp.Status != domain.StatusRejected {
		t.Fatalf("status = %s, want rejected", resp.Status)
	}

	got := bus.names()
	if len(got) != 2 || got[1] != events.EventLeadRejected {
		t.Fatalf("events = %v, want lead.rejected last", got)
	}
}

func TestRejectApprovedLeadFails(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeBus{})

	submitted, _ := svc.Submit(context.Background(), uuid.New(), "buyer@example.com", submitRequest())
	if _, err := svc.Approve(context.Background(), submitted.ID, transport.ApproveLeadRequest{Price: 100, MaxSellers: 1}); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	_, err := svc.Reject(context.Background(), submitted.ID)
	if apperr.GetKind(err) != apperr.KindInvalidState {
		t.Fatalf("err = %v, want invalid state", err)
	}
}

func TestApproveUnknownLead(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeBus{})

	_, err := svc.Approve(context.Background(), uuid.New(), transport.ApproveLeadRequest{Price: 100, MaxSellers: 1})
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestListMarketHidesBuyerIdentity(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeBus{})

	submitted, _ := svc.Submit(context.Background(), uuid.New(), "buyer@example.com", submitRequest())
	if _, err := svc.Approve(context.Background(), submitted.ID, transport.ApproveLeadRequest{Price: 100, MaxSellers: 3}); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	resp, err := svc.ListMarket(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("ListMarket: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(resp.Items))
	}
	if resp.Items[0].SlotsLeft != 3 {
		t.Fatalf("slotsLeft = %d, want 3", resp.Items[0].SlotsLeft)
	}
}

func TestListMarketExcludesReservedOut(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeBus{})

	submitted, _ := svc.Submit(context.Background(), uuid.New(), "buyer@example.com", submitRequest())
	if _, err := svc.Approve(context.Background(), submitted.ID, transport.ApproveLeadRequest{Price: 100, MaxSellers: 1}); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	store.pending[submitted.ID] = 1

	resp, err := svc.ListMarket(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("ListMarket: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Fatalf("items = %d, want 0 once the only slot is reserved", len(resp.Items))
	}
}

func TestListMineReturnsOwnLeadsOnly(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeBus{})

	buyer := uuid.New()
	other := uuid.New()
	if _, err := svc.Submit(context.Background(), buyer, "buyer@example.com", submitRequest()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.Submit(context.Background(), other, "other@example.com", submitRequest()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	resp, err := svc.ListMine(context.Background(), buyer, 1, 20)
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if resp.Total != 1 || len(resp.Items) != 1 {
		t.Fatalf("got %d items (total %d), want 1", len(resp.Items), resp.Total)
	}
	if resp.Items[0].BuyerID != buyer {
		t.Fatalf("buyerId = %s, want %s", resp.Items[0].BuyerID, buyer)
	}
}
