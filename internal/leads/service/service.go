package service

import (
	"context"
	"errors"
	"fmt"

	"leadmarket_backend/internal/events"
	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/leads/repository"
	"leadmarket_backend/internal/leads/transport"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"
	"leadmarket_backend/platform/phone"

	"github.com/google/uuid"
)

// LeadStore is the persistence interface the lifecycle service needs.
// Implemented by the leads repository; tests supply an in-memory fake whose
// WithTx serializes exactly like the per-lead row lock.
type LeadStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Insert(ctx context.Context, p repository.InsertParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	CountPendingAttempts(ctx context.Context, leadID uuid.UUID) (int, error)
	UpdateApproval(ctx context.Context, id uuid.UUID, price, maxSellers int) (repository.Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (repository.Lead, error)
	ListByStatus(ctx context.Context, status *domain.Status, page, limit int) ([]repository.Lead, int, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, page, limit int) ([]repository.Lead, int, error)
	ListMarket(ctx context.Context, page, limit int) ([]repository.MarketLead, int, error)
}

// Service implements the lead lifecycle: submission, administrator review,
// and the listings around them. Capacity-coupled transitions (sold_count,
// auto-sold) belong to the purchases module; this service never writes them.
type Service struct {
	store LeadStore
	bus   events.Bus
	cfg   config.MarketConfig
	log   *logger.Logger
}

// New creates a new leads service.
func New(store LeadStore, bus events.Bus, cfg config.MarketConfig, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, cfg: cfg, log: log}
}

// Submit records a buyer's sourcing request in pending state.
// Contact fields are only stored when the buyer consented to seller contact;
// submitting them without consent is a validation error, not a silent drop.
func (s *Service) Submit(ctx context.Context, buyerID uuid.UUID, buyerEmail string, req transport.SubmitLeadRequest) (*transport.LeadResponse, error) {
	params := repository.InsertParams{
		BuyerID:             buyerID,
		Product:             req.Product,
		Category:            req.Category,
		Quantity:            req.Quantity,
		DeliveryLocation:    req.DeliveryLocation,
		AllowSellersContact: req.AllowSellersContact,
	}
	if buyerEmail != "" {
		params.BuyerEmail = &buyerEmail
	}

	if !req.AllowSellersContact {
		if req.ContactPhone != "" || req.ContactEmail != "" {
			return nil, apperr.Validation("contact fields require seller contact consent")
		}
	} else {
		if req.ContactPhone == "" && req.ContactEmail == "" {
			return nil, apperr.Validation("at least one contact field is required when seller contact is allowed")
		}
		if req.ContactPhone != "" {
			if !phone.IsValid(req.ContactPhone) {
				return nil, apperr.Validation("invalid contact phone number")
			}
			normalized := phone.NormalizeE164(req.ContactPhone)
			params.ContactPhone = &normalized
		}
		if req.ContactEmail != "" {
			email := req.ContactEmail
			params.ContactEmail = &email
		}
	}

	lead, err := s.store.Insert(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("submit lead: %w", err)
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadSubmitted{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			BuyerID:   lead.BuyerID,
			Product:   lead.Product,
		})
	}

	return leadToResponse(lead), nil
}

// Approve prices and capacity-limits a lead. Allowed from pending (first
// approval) and from approved (re-pricing before sell-out). The new capacity
// may never drop below slots already granted or reserved.
func (s *Service) Approve(ctx context.Context, leadID uuid.UUID, req transport.ApproveLeadRequest) (*transport.LeadResponse, error) {
	if req.Price < s.cfg.GetMinLeadPrice() {
		return nil, apperr.Validation(fmt.Sprintf("lead price must be at least %d", s.cfg.GetMinLeadPrice()))
	}
	if !domain.ValidMaxSellers(req.MaxSellers) {
		return nil, apperr.Validation("maxSellers must be one of 1, 3, 5, 10")
	}

	var approved repository.Lead
	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		lead, err := s.store.GetForUpdate(txCtx, leadID)
		if err != nil {
			return mapStoreErr(err)
		}

		if !lead.Status.CanTransition(domain.StatusApproved) {
			return apperr.InvalidState("lead cannot be approved", string(lead.Status))
		}

		pending, err := s.store.CountPendingAttempts(txCtx, leadID)
		if err != nil {
			return err
		}
		if reserved := lead.SoldCount + pending; req.MaxSellers < reserved {
			return apperr.CapacityConflict(
				fmt.Sprintf("capacity %d is below the %d sellers already granted or reserved", req.MaxSellers, reserved))
		}

		approved, err = s.store.UpdateApproval(txCtx, leadID, req.Price, req.MaxSellers)
		if err != nil {
			return mapStoreErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.log != nil {
		s.log.LeadTransition(approved.ID.String(), string(domain.StatusPending), string(domain.StatusApproved))
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadApproved{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     approved.ID,
			BuyerID:    approved.BuyerID,
			BuyerEmail: optionalString(approved.BuyerEmail),
			Product:    approved.Product,
			Price:      req.Price,
			MaxSellers: req.MaxSellers,
		})
	}

	return leadToResponse(approved), nil
}

// Reject declines a pending lead. Price and capacity fields stay untouched.
func (s *Service) Reject(ctx context.Context, leadID uuid.UUID) (*transport.LeadResponse, error) {
	var rejected repository.Lead
	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		lead, err := s.store.GetForUpdate(txCtx, leadID)
		if err != nil {
			return mapStoreErr(err)
		}

		if lead.Status != domain.StatusPending {
			return apperr.InvalidState("only pending leads can be rejected", string(lead.Status))
		}

		rejected, err = s.store.UpdateStatus(txCtx, leadID, domain.StatusRejected)
		if err != nil {
			return mapStoreErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.log != nil {
		s.log.LeadTransition(rejected.ID.String(), string(domain.StatusPending), string(domain.StatusRejected))
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadRejected{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     rejected.ID,
			BuyerID:    rejected.BuyerID,
			BuyerEmail: optionalString(rejected.BuyerEmail),
			Product:    rejected.Product,
		})
	}

	return leadToResponse(rejected), nil
}

// GetByID returns a single lead for administrators.
func (s *Service) GetByID(ctx context.Context, leadID uuid.UUID) (*transport.LeadResponse, error) {
	lead, err := s.store.GetByID(ctx, leadID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return leadToResponse(lead), nil
}

// ListPending returns leads awaiting administrator review.
func (s *Service) ListPending(ctx context.Context, page, limit int) (*transport.LeadListResponse, error) {
	status := domain.StatusPending
	return s.list(ctx, &status, page, limit)
}

// List returns leads filtered by the admin listing request.
func (s *Service) List(ctx context.Context, req transport.ListLeadsRequest) (*transport.LeadListResponse, error) {
	var status *domain.Status
	if req.Status != "" {
		st := domain.Status(req.Status)
		status = &st
	}
	return s.list(ctx, status, req.Page, req.Limit)
}

// ListMine returns the buyer's own leads.
func (s *Service) ListMine(ctx context.Context, buyerID uuid.UUID, page, limit int) (*transport.LeadListResponse, error) {
	page, limit = normalizePage(page, limit)
	leads, total, err := s.store.ListByBuyer(ctx, buyerID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list buyer leads: %w", err)
	}
	return leadListResponse(leads, total, page, limit), nil
}

// ListMarket returns the seller-facing view of approved leads with open slots.
func (s *Service) ListMarket(ctx context.Context, page, limit int) (*transport.MarketLeadListResponse, error) {
	page, limit = normalizePage(page, limit)
	items, total, err := s.store.ListMarket(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list market leads: %w", err)
	}

	resp := &transport.MarketLeadListResponse{
		Items: make([]transport.MarketLeadResponse, 0, len(items)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, transport.MarketLeadResponse{
			ID:               item.ID,
			Product:          item.Product,
			Category:         item.Category,
			Quantity:         item.Quantity,
			DeliveryLocation: item.DeliveryLocation,
			Price:            item.Price,
			SlotsLeft:        item.SlotsLeft,
			CreatedAt:        item.CreatedAt,
		})
	}
	return resp, nil
}

func (s *Service) list(ctx context.Context, status *domain.Status, page, limit int) (*transport.LeadListResponse, error) {
	page, limit = normalizePage(page, limit)
	leads, total, err := s.store.ListByStatus(ctx, status, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return leadListResponse(leads, total, page, limit), nil
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func optionalString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func mapStoreErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("lead not found")
	}
	return err
}

func leadToResponse(lead repository.Lead) *transport.LeadResponse {
	return &transport.LeadResponse{
		ID:                  lead.ID,
		BuyerID:             lead.BuyerID,
		Product:             lead.Product,
		Category:            lead.Category,
		Quantity:            lead.Quantity,
		DeliveryLocation:    lead.DeliveryLocation,
		AllowSellersContact: lead.AllowSellersContact,
		Status:              lead.Status,
		Price:               lead.Price,
		MaxSellers:          lead.MaxSellers,
		SoldCount:           lead.SoldCount,
		CreatedAt:           lead.CreatedAt,
		UpdatedAt:           lead.UpdatedAt,
	}
}

func leadListResponse(leads []repository.Lead, total, page, limit int) *transport.LeadListResponse {
	resp := &transport.LeadListResponse{
		Items: make([]transport.LeadResponse, 0, len(leads)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for _, lead := range leads {
		resp.Items = append(resp.Items, *leadToResponse(lead))
	}
	return resp
}
