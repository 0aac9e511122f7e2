// Package service implements the capacity allocator and the payment
// verification gate. Every capacity decision on a lead runs inside a
// transaction that holds the lead's row lock, so concurrent submissions and
// verifications on the same lead are strictly serialized.
package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"leadmarket_backend/internal/events"
	leadsdomain "leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/purchases/domain"
	"leadmarket_backend/internal/purchases/repository"
	"leadmarket_backend/internal/purchases/transport"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

// PurchaseStore is the persistence interface for the allocator and gate.
type PurchaseStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetLeadForUpdate(ctx context.Context, leadID uuid.UUID) (repository.LeadView, error)
	CountPending(ctx context.Context, leadID uuid.UUID) (int, error)
	InsertAttempt(ctx context.Context, leadID, sellerID uuid.UUID, sellerEmail *string, proofKey string) (repository.Attempt, error)
	GetAttempt(ctx context.Context, id uuid.UUID) (repository.Attempt, error)
	UpdateAttemptStatus(ctx context.Context, id uuid.UUID, status domain.Status, rejectReason *string) (repository.Attempt, error)
	IncrementSoldCount(ctx context.Context, leadID uuid.UUID) (int, error)
	MarkLeadSold(ctx context.Context, leadID uuid.UUID) error
	ListBySeller(ctx context.Context, sellerID uuid.UUID, page, limit int) ([]repository.AttemptWithLead, int, error)
	ListPending(ctx context.Context, page, limit int) ([]repository.AttemptWithLead, int, error)
}

// ChatProvisioner enqueues chat channel creation for a verified purchase.
// Delivery is at-least-once; implementations must be idempotent per
// (lead, seller).
type ChatProvisioner interface {
	EnqueueProvision(ctx context.Context, leadID, sellerID, buyerID uuid.UUID, disclosure leadsdomain.Disclosure) error
}

// ProofStorage presigns payment proof uploads.
type ProofStorage interface {
	PresignUpload(ctx context.Context, objectKey, contentType string) (string, time.Time, error)
	PresignDownload(ctx context.Context, objectKey string) (string, time.Time, error)
}

// Service implements purchase submission and payment verification.
type Service struct {
	store  PurchaseStore
	bus    events.Bus
	chat   ChatProvisioner
	proofs ProofStorage
	log    *logger.Logger
}

// New creates a new purchases service.
func New(store PurchaseStore, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, log: log}
}

// SetChatProvisioner injects the chat provisioning client.
func (s *Service) SetChatProvisioner(chat ChatProvisioner) {
	s.chat = chat
}

// SetProofStorage injects the payment proof storage adapter.
func (s *Service) SetProofStorage(proofs ProofStorage) {
	s.proofs = proofs
}

// SubmitPurchase admits a seller into a lead slot under pessimistic
// reservation: the slot is held from submission until the payment is
// verified or rejected. Admission requires
// sold_count + pending < max_sellers, checked under the lead row lock.
func (s *Service) SubmitPurchase(ctx context.Context, leadID, sellerID uuid.UUID, sellerEmail string, req transport.SubmitPurchaseRequest) (*transport.PurchaseResponse, error) {
	var attempt repository.Attempt
	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		lead, err := s.store.GetLeadForUpdate(txCtx, leadID)
		if err != nil {
			if errors.Is(err, repository.ErrLeadNotFound) {
				return apperr.NotFound("lead not found")
			}
			return err
		}

		if lead.Status != leadsdomain.StatusApproved {
			return apperr.InvalidState("lead is not open for purchase", string(lead.Status))
		}
		if lead.MaxSellers == nil {
			return apperr.Internal("approved lead has no capacity set")
		}

		pending, err := s.store.CountPending(txCtx, leadID)
		if err != nil {
			return err
		}
		if lead.SoldCount+pending >= *lead.MaxSellers {
			return apperr.CapacityExceeded("no purchase slots available on this lead")
		}

		attempt, err = s.store.InsertAttempt(txCtx, leadID, sellerID, optionalEmail(sellerEmail), req.PaymentProofKey)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateAttempt) {
				return apperr.Conflict("seller already has an active purchase for this lead")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.log != nil {
		s.log.PaymentEvent("payment_submitted", attempt.ID.String(), leadID.String())
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.PaymentSubmitted{
			BaseEvent:  events.NewBaseEvent(),
			PurchaseID: attempt.ID,
			LeadID:     attempt.LeadID,
			SellerID:   attempt.SellerID,
		})
	}

	resp := attemptToResponse(attempt)
	return &resp, nil
}

// VerifyPayment flips a pending attempt to verified, increments the lead's
// sold count and auto-transitions the lead to sold when the last slot goes.
// All state changes commit in one transaction; disclosure, chat provisioning
// and events happen after commit and are idempotent per purchase.
func (s *Service) VerifyPayment(ctx context.Context, purchaseID uuid.UUID) (*transport.VerifyPaymentResponse, error) {
	var (
		attempt    repository.Attempt
		lead       repository.LeadView
		soldCount  int
		leadStatus leadsdomain.Status
		leadSold   bool
	)

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		att, err := s.store.GetAttempt(txCtx, purchaseID)
		if err != nil {
			return mapAttemptErr(err)
		}

		// Lock the lead first; attempt rows only change under this lock,
		// so the re-read below observes the settled state.
		lead, err = s.store.GetLeadForUpdate(txCtx, att.LeadID)
		if err != nil {
			return err
		}
		att, err = s.store.GetAttempt(txCtx, purchaseID)
		if err != nil {
			return mapAttemptErr(err)
		}

		if !att.Status.CanTransition(domain.StatusVerified) {
			return apperr.InvalidState("payment is not pending verification", string(att.Status))
		}
		if lead.MaxSellers == nil {
			return apperr.Internal("lead has no capacity set")
		}

		attempt, err = s.store.UpdateAttemptStatus(txCtx, purchaseID, domain.StatusVerified, nil)
		if err != nil {
			return mapAttemptErr(err)
		}

		soldCount, err = s.store.IncrementSoldCount(txCtx, att.LeadID)
		if err != nil {
			return err
		}

		leadStatus = lead.Status
		if soldCount >= *lead.MaxSellers {
			if err := s.store.MarkLeadSold(txCtx, att.LeadID); err != nil {
				return err
			}
			leadStatus = leadsdomain.StatusSold
			leadSold = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	disclosure := leadsdomain.Disclose(lead.AllowSellersContact, lead.ContactPhone, lead.ContactEmail)

	if s.log != nil {
		s.log.PaymentEvent("payment_verified", attempt.ID.String(), attempt.LeadID.String())
		if leadSold {
			s.log.LeadTransition(attempt.LeadID.String(), string(leadsdomain.StatusApproved), string(leadsdomain.StatusSold))
		}
	}

	if s.chat != nil {
		if err := s.chat.EnqueueProvision(ctx, attempt.LeadID, attempt.SellerID, lead.BuyerID, disclosure); err != nil && s.log != nil {
			// The worker retries; a messaging outage never rolls back verification.
			s.log.Error("enqueue chat provisioning failed",
				"purchaseId", attempt.ID.String(), "error", err)
		}
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.PaymentVerified{
			BaseEvent:   events.NewBaseEvent(),
			PurchaseID:  attempt.ID,
			LeadID:      attempt.LeadID,
			SellerID:    attempt.SellerID,
			SellerEmail: derefString(attempt.SellerEmail),
			BuyerID:     lead.BuyerID,
			Product:     lead.Product,
			LeadSold:    leadSold,
		})
		if leadSold {
			s.bus.Publish(ctx, events.LeadSold{
				BaseEvent:  events.NewBaseEvent(),
				LeadID:     attempt.LeadID,
				BuyerID:    lead.BuyerID,
				BuyerEmail: derefString(lead.BuyerEmail),
				Product:    lead.Product,
			})
		}
	}

	return &transport.VerifyPaymentResponse{
		Purchase:   attemptToResponse(attempt),
		LeadStatus: string(leadStatus),
		SoldCount:  soldCount,
		Disclosure: disclosure,
	}, nil
}

// RejectPayment moves a pending attempt to rejected, releasing its capacity
// reservation. The lead's sold count is never touched.
func (s *Service) RejectPayment(ctx context.Context, purchaseID uuid.UUID, reason string) (*transport.PurchaseResponse, error) {
	var (
		attempt repository.Attempt
		lead    repository.LeadView
	)
	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		att, err := s.store.GetAttempt(txCtx, purchaseID)
		if err != nil {
			return mapAttemptErr(err)
		}

		if lead, err = s.store.GetLeadForUpdate(txCtx, att.LeadID); err != nil {
			return err
		}
		att, err = s.store.GetAttempt(txCtx, purchaseID)
		if err != nil {
			return mapAttemptErr(err)
		}

		if !att.Status.CanTransition(domain.StatusRejected) {
			return apperr.InvalidState("payment is not pending verification", string(att.Status))
		}

		attempt, err = s.store.UpdateAttemptStatus(txCtx, purchaseID, domain.StatusRejected, &reason)
		if err != nil {
			return mapAttemptErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.log != nil {
		s.log.PaymentEvent("payment_rejected", attempt.ID.String(), attempt.LeadID.String())
	}
	if s.bus != nil {
		s.bus.Publish(ctx, events.PaymentRejected{
			BaseEvent:   events.NewBaseEvent(),
			PurchaseID:  attempt.ID,
			LeadID:      attempt.LeadID,
			SellerID:    attempt.SellerID,
			SellerEmail: derefString(attempt.SellerEmail),
			Product:     lead.Product,
			Reason:      reason,
		})
	}

	resp := attemptToResponse(attempt)
	return &resp, nil
}

// ListMyPurchases returns the seller's purchase attempts.
func (s *Service) ListMyPurchases(ctx context.Context, sellerID uuid.UUID, page, limit int) (*transport.PurchaseListResponse, error) {
	page, limit = normalizePage(page, limit)
	items, total, err := s.store.ListBySeller(ctx, sellerID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list seller purchases: %w", err)
	}
	return listResponse(items, total, page, limit), nil
}

// ListPendingPayments returns attempts awaiting verification, oldest first.
func (s *Service) ListPendingPayments(ctx context.Context, page, limit int) (*transport.PurchaseListResponse, error) {
	page, limit = normalizePage(page, limit)
	items, total, err := s.store.ListPending(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	return listResponse(items, total, page, limit), nil
}

// PresignProofUpload returns a presigned PUT URL for a payment proof. The
// object key embeds the seller id so proofs are namespaced per seller.
func (s *Service) PresignProofUpload(ctx context.Context, sellerID uuid.UUID, req transport.PresignProofRequest) (*transport.PresignProofResponse, error) {
	if s.proofs == nil {
		return nil, apperr.Internal("proof storage is not configured")
	}

	objectKey := path.Join("payment-proofs", sellerID.String(),
		uuid.New().String()+"-"+path.Base(req.FileName))

	url, expiresAt, err := s.proofs.PresignUpload(ctx, objectKey, req.ContentType)
	if err != nil {
		return nil, fmt.Errorf("presign proof upload: %w", err)
	}

	return &transport.PresignProofResponse{
		UploadURL: url,
		ObjectKey: objectKey,
		ExpiresAt: expiresAt,
	}, nil
}

// GetProofDownload returns a presigned GET URL for the proof attached to a
// purchase attempt.
func (s *Service) GetProofDownload(ctx context.Context, purchaseID uuid.UUID) (*transport.ProofDownloadResponse, error) {
	if s.proofs == nil {
		return nil, apperr.Internal("proof storage is not configured")
	}

	attempt, err := s.store.GetAttempt(ctx, purchaseID)
	if err != nil {
		return nil, mapAttemptErr(err)
	}

	url, expiresAt, err := s.proofs.PresignDownload(ctx, attempt.PaymentProofKey)
	if err != nil {
		return nil, fmt.Errorf("presign proof download: %w", err)
	}

	return &transport.ProofDownloadResponse{
		DownloadURL: url,
		ExpiresAt:   expiresAt,
	}, nil
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

func optionalEmail(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func mapAttemptErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("purchase not found")
	}
	return err
}

func attemptToResponse(a repository.Attempt) transport.PurchaseResponse {
	return transport.PurchaseResponse{
		ID:              a.ID,
		LeadID:          a.LeadID,
		SellerID:        a.SellerID,
		Status:          a.Status,
		PaymentProofKey: a.PaymentProofKey,
		RejectReason:    a.RejectReason,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func listResponse(items []repository.AttemptWithLead, total, page, limit int) *transport.PurchaseListResponse {
	resp := &transport.PurchaseListResponse{
		Items: make([]transport.PurchaseResponse, 0, len(items)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for _, item := range items {
		r := attemptToResponse(item.Attempt)
		r.Product = item.Product
		r.Price = item.Price
		resp.Items = append(resp.Items, r)
	}
	return resp
}
