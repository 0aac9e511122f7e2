package transport

import (
	"time"

	"leadmarket_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Request DTOs

// SubmitLeadRequest is the buyer-facing lead submission payload.
// Contact fields are only accepted when allowSellersContact is true.
type SubmitLeadRequest struct {
	Product             string `json:"product" validate:"required,min=2,max=200"`
	Category            string `json:"category" validate:"required,min=2,max=100"`
	Quantity            int    `json:"quantity" validate:"required,gt=0"`
	DeliveryLocation    string `json:"deliveryLocation" validate:"required,min=2,max=200"`
	AllowSellersContact bool   `json:"allowSellersContact"`
	ContactPhone        string `json:"contactPhone,omitempty" validate:"omitempty,min=5,max=20"`
	ContactEmail        string `json:"contactEmail,omitempty" validate:"omitempty,email"`
}

// ApproveLeadRequest carries the administrator's pricing decision.
// The price floor and the maxSellers enumeration are enforced by the
// service so violations surface as typed domain errors, not bare 400s.
type ApproveLeadRequest struct {
	Price      int `json:"price" validate:"required,gt=0"`
	MaxSellers int `json:"maxSellers" validate:"required,gt=0"`
}

// ListLeadsRequest is the admin listing filter.
type ListLeadsRequest struct {
	Status string `form:"status" validate:"omitempty,oneof=pending approved rejected sold"`
	Page   int    `form:"page" validate:"omitempty,gte=1"`
	Limit  int    `form:"limit" validate:"omitempty,gte=1,lte=100"`
}

// Response DTOs

// LeadResponse is the administrator and buyer view of a lead.
type LeadResponse struct {
	ID                  uuid.UUID     `json:"id"`
	BuyerID             uuid.UUID     `json:"buyerId"`
	Product             string        `json:"product"`
	Category            string        `json:"category"`
	Quantity            int           `json:"quantity"`
	DeliveryLocation    string        `json:"deliveryLocation"`
	AllowSellersContact bool          `json:"allowSellersContact"`
	Status              domain.Status `json:"status"`
	Price               *int          `json:"price,omitempty"`
	MaxSellers          *int          `json:"maxSellers,omitempty"`
	SoldCount           int           `json:"soldCount"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

// MarketLeadResponse is the seller-facing view of an approved lead.
// Buyer identity and contact fields are never serialized here; sellers only
// learn them through a verified purchase.
type MarketLeadResponse struct {
	ID               uuid.UUID `json:"id"`
	Product          string    `json:"product"`
	Category         string    `json:"category"`
	Quantity         int       `json:"quantity"`
	DeliveryLocation string    `json:"deliveryLocation"`
	Price            int       `json:"price"`
	SlotsLeft        int       `json:"slotsLeft"`
	CreatedAt        time.Time `json:"createdAt"`
}

// LeadListResponse is a paginated lead listing.
type LeadListResponse struct {
	Items []LeadResponse `json:"items"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// MarketLeadListResponse is a paginated seller-facing listing.
type MarketLeadListResponse struct {
	Items []MarketLeadResponse `json:"items"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}
