// Package events defines the domain events exchanged between modules.
package events

import "github.com/google/uuid"

// Event names. Subscribers register against these constants.
const (
	EventLeadSubmitted    = "lead.submitted"
	EventLeadApproved     = "lead.approved"
	EventLeadRejected     = "lead.rejected"
	EventLeadSold         = "lead.sold"
	EventPaymentSubmitted = "payment.submitted"
	EventPaymentVerified  = "payment.verified"
	EventPaymentRejected  = "payment.rejected"
)

// LeadSubmitted is published when a buyer submits a new lead for review.
type LeadSubmitted struct {
	BaseEvent
	LeadID  uuid.UUID
	BuyerID uuid.UUID
	Product string
}

func (LeadSubmitted) EventName() string { return EventLeadSubmitted }

// LeadApproved is published when an administrator approves a lead.
type LeadApproved struct {
	BaseEvent
	LeadID     uuid.UUID
	BuyerID    uuid.UUID
	BuyerEmail string
	Product    string
	Price      int
	MaxSellers int
}

func (LeadApproved) EventName() string { return EventLeadApproved }

// LeadRejected is published when an administrator rejects a lead.
type LeadRejected struct {
	BaseEvent
	LeadID     uuid.UUID
	BuyerID    uuid.UUID
	BuyerEmail string
	Product    string
}

func (LeadRejected) EventName() string { return EventLeadRejected }

// LeadSold is published when a lead's last slot is verified and the lead
// transitions to sold.
type LeadSold struct {
	BaseEvent
	LeadID     uuid.UUID
	BuyerID    uuid.UUID
	BuyerEmail string
	Product    string
}

func (LeadSold) EventName() string { return EventLeadSold }

// PaymentSubmitted is published when a seller's purchase attempt is admitted
// into pending verification.
type PaymentSubmitted struct {
	BaseEvent
	PurchaseID uuid.UUID
	LeadID     uuid.UUID
	SellerID   uuid.UUID
}

func (PaymentSubmitted) EventName() string { return EventPaymentSubmitted }

// PaymentVerified is published after a payment verification transaction has
// committed. Subscribers must tolerate replays: the purchase id is the
// idempotency key.
type PaymentVerified struct {
	BaseEvent
	PurchaseID  uuid.UUID
	LeadID      uuid.UUID
	SellerID    uuid.UUID
	SellerEmail string
	BuyerID     uuid.UUID
	Product     string
	LeadSold    bool
}

func (PaymentVerified) EventName() string { return EventPaymentVerified }

// PaymentRejected is published when an administrator rejects a payment,
// releasing its capacity reservation.
type PaymentRejected struct {
	BaseEvent
	PurchaseID  uuid.UUID
	LeadID      uuid.UUID
	SellerID    uuid.UUID
	SellerEmail string
	Product     string
	Reason      string
}

func (PaymentRejected) EventName() string { return EventPaymentRejected }
