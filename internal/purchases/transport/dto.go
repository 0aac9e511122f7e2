package transport

import (
	"time"

	leadsdomain "leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/purchases/domain"

	"github.com/google/uuid"
)

// Request DTOs

// SubmitPurchaseRequest is the seller's claim on a lead slot. The proof key
// references an object previously uploaded through the presign endpoint.
type SubmitPurchaseRequest struct {
	PaymentProofKey string `json:"paymentProofKey" validate:"required,min=1,max=512"`
}

// RejectPaymentRequest carries the administrator's rejection reason.
type RejectPaymentRequest struct {
	Reason string `json:"reason" validate:"required,min=2,max=500"`
}

// PresignProofRequest asks for a presigned upload slot for a payment proof.
type PresignProofRequest struct {
	FileName    string `json:"fileName" validate:"required,min=1,max=255"`
	ContentType string `json:"contentType" validate:"required,min=3,max=100"`
}

// Response DTOs

// PurchaseResponse is the seller and admin view of a purchase attempt.
type PurchaseResponse struct {
	ID              uuid.UUID     `json:"id"`
	LeadID          uuid.UUID     `json:"leadId"`
	SellerID        uuid.UUID     `json:"sellerId"`
	Status          domain.Status `json:"status"`
	PaymentProofKey string        `json:"paymentProofKey"`
	RejectReason    *string       `json:"rejectReason,omitempty"`
	Product         string        `json:"product,omitempty"`
	Price           *int          `json:"price,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// PurchaseListResponse is a paginated purchase listing.
type PurchaseListResponse struct {
	Items []PurchaseResponse `json:"items"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

// VerifyPaymentResponse is returned to the administrator after a successful
// verification: the verified purchase, the lead's new capacity state and the
// contact disclosure computed for the seller.
type VerifyPaymentResponse struct {
	Purchase   PurchaseResponse       `json:"purchase"`
	LeadStatus string                 `json:"leadStatus"`
	SoldCount  int                    `json:"soldCount"`
	Disclosure leadsdomain.Disclosure `json:"disclosure"`
}

// PresignProofResponse carries the presigned PUT URL and the object key the
// seller must echo back in SubmitPurchaseRequest.
type PresignProofResponse struct {
	UploadURL string    `json:"uploadUrl"`
	ObjectKey string    `json:"objectKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ProofDownloadResponse carries a presigned GET URL for reviewing an
// uploaded payment proof.
type ProofDownloadResponse struct {
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
