// Package repository persists purchase attempts and owns every write that
// touches lead capacity. All mutations run under the lead's row lock so
// capacity decisions on one lead are strictly serialized.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	leadsdomain "leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/purchases/domain"
	"leadmarket_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a purchase attempt does not exist.
	ErrNotFound = errors.New("purchase not found")
	// ErrLeadNotFound is returned when the referenced lead does not exist.
	ErrLeadNotFound = errors.New("lead not found")
	// ErrDuplicateAttempt is returned when the seller already holds a live
	// attempt on the lead.
	ErrDuplicateAttempt = errors.New("duplicate purchase attempt")
)

// Attempt is a persisted purchase attempt.
type Attempt struct {
	ID              uuid.UUID
	LeadID          uuid.UUID
	SellerID        uuid.UUID
	SellerEmail     *string
	Status          domain.Status
	PaymentProofKey string
	RejectReason    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AttemptWithLead joins an attempt with the lead fields listings need.
type AttemptWithLead struct {
	Attempt
	Product string
	Price   *int
}

// LeadView is the slice of the lead row the allocator and verification gate
// operate on.
type LeadView struct {
	ID                  uuid.UUID
	BuyerID             uuid.UUID
	BuyerEmail          *string
	Product             string
	Status              leadsdomain.Status
	Price               *int
	MaxSellers          *int
	SoldCount           int
	AllowSellersContact bool
	ContactPhone        *string
	ContactEmail        *string
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a transaction. Nested calls reuse the ambient
// transaction from the context.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

const attemptColumns = `id, lead_id, seller_id, seller_email, status, payment_proof, reject_reason, created_at, updated_at`

func scanAttempt(row pgx.Row) (Attempt, error) {
	var a Attempt
	var status string
	err := row.Scan(&a.ID, &a.LeadID, &a.SellerID, &a.SellerEmail, &status,
		&a.PaymentProofKey, &a.RejectReason, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Attempt{}, err
	}
	a.Status = domain.Status(status)
	return a, nil
}

// GetLeadForUpdate fetches the lead's capacity view and locks its row for
// the rest of the ambient transaction.
func (r *Repository) GetLeadForUpdate(ctx context.Context, leadID uuid.UUID) (LeadView, error) {
	var lead LeadView
	var status string
	err := db.QueryRow(ctx, r.pool, `
		SELECT id, buyer_id, buyer_email, product, status, lead_price, max_sellers, sold_count,
			allow_sellers_contact, contact_phone, contact_email
		FROM leads WHERE id = $1 FOR UPDATE`, leadID,
	).Scan(&lead.ID, &lead.BuyerID, &lead.BuyerEmail, &lead.Product, &status, &lead.Price,
		&lead.MaxSellers, &lead.SoldCount, &lead.AllowSellersContact, &lead.ContactPhone, &lead.ContactEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LeadView{}, ErrLeadNotFound
		}
		return LeadView{}, fmt.Errorf("lock lead: %w", err)
	}
	lead.Status = leadsdomain.Status(status)
	return lead, nil
}

// CountPending returns the number of attempts in pending verification for
// the lead. Called with the lead row locked.
func (r *Repository) CountPending(ctx context.Context, leadID uuid.UUID) (int, error) {
	var count int
	err := db.QueryRow(ctx, r.pool, `
		SELECT COUNT(*) FROM purchase_attempts
		WHERE lead_id = $1 AND status = $2`,
		leadID, string(domain.StatusPendingVerification),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending attempts: %w", err)
	}
	return count, nil
}

// InsertAttempt stores a new attempt in pending verification. The partial
// unique index on (lead_id, seller_id) where status <> 'rejected' turns a
// concurrent duplicate into ErrDuplicateAttempt.
func (r *Repository) InsertAttempt(ctx context.Context, leadID, sellerID uuid.UUID, sellerEmail *string, proofKey string) (Attempt, error) {
	row := db.QueryRow(ctx, r.pool, `
		INSERT INTO purchase_attempts (lead_id, seller_id, seller_email, status, payment_proof)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+attemptColumns,
		leadID, sellerID, sellerEmail, string(domain.StatusPendingVerification), proofKey,
	)

	attempt, err := scanAttempt(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Attempt{}, ErrDuplicateAttempt
		}
		return Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return attempt, nil
}

// GetAttempt fetches an attempt. Inside a transaction that holds the lead
// row lock this read is stable: attempt rows only change under that lock.
func (r *Repository) GetAttempt(ctx context.Context, id uuid.UUID) (Attempt, error) {
	row := db.QueryRow(ctx, r.pool, `SELECT `+attemptColumns+` FROM purchase_attempts WHERE id = $1`, id)
	attempt, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

// UpdateAttemptStatus moves an attempt to the given status.
func (r *Repository) UpdateAttemptStatus(ctx context.Context, id uuid.UUID, status domain.Status, rejectReason *string) (Attempt, error) {
	row := db.QueryRow(ctx, r.pool, `
		UPDATE purchase_attempts
		SET status = $2, reject_reason = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+attemptColumns,
		id, string(status), rejectReason,
	)

	attempt, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, fmt.Errorf("update attempt status: %w", err)
	}
	return attempt, nil
}

// IncrementSoldCount bumps the lead's sold count and returns the new value.
// Called with the lead row locked.
func (r *Repository) IncrementSoldCount(ctx context.Context, leadID uuid.UUID) (int, error) {
	var soldCount int
	err := db.QueryRow(ctx, r.pool, `
		UPDATE leads SET sold_count = sold_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING sold_count`, leadID,
	).Scan(&soldCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrLeadNotFound
		}
		return 0, fmt.Errorf("increment sold count: %w", err)
	}
	return soldCount, nil
}

// MarkLeadSold transitions the lead to sold. Called with the lead row locked
// when the last slot is verified.
func (r *Repository) MarkLeadSold(ctx context.Context, leadID uuid.UUID) error {
	tag, err := db.Exec(ctx, r.pool, `
		UPDATE leads SET status = $2, updated_at = now() WHERE id = $1`,
		leadID, string(leadsdomain.StatusSold),
	)
	if err != nil {
		return fmt.Errorf("mark lead sold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// ListBySeller returns the seller's attempts joined with lead details,
// newest first.
func (r *Repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, page, limit int) ([]AttemptWithLead, int, error) {
	offset := (page - 1) * limit

	var total int
	if err := db.QueryRow(ctx, r.pool,
		`SELECT COUNT(*) FROM purchase_attempts WHERE seller_id = $1`, sellerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count seller attempts: %w", err)
	}

	rows, err := db.Query(ctx, r.pool, `
		SELECT pa.id, pa.lead_id, pa.seller_id, pa.seller_email, pa.status,
			pa.payment_proof, pa.reject_reason, pa.created_at, pa.updated_at,
			l.product, l.lead_price
		FROM purchase_attempts pa
		JOIN leads l ON l.id = pa.lead_id
		WHERE pa.seller_id = $1
		ORDER BY pa.created_at DESC
		LIMIT $2 OFFSET $3`, sellerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list seller attempts: %w", err)
	}
	defer rows.Close()

	items, err := collectAttemptsWithLead(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListPending returns attempts awaiting payment verification, oldest first
// so administrators work the queue in submission order.
func (r *Repository) ListPending(ctx context.Context, page, limit int) ([]AttemptWithLead, int, error) {
	offset := (page - 1) * limit

	var total int
	if err := db.QueryRow(ctx, r.pool,
		`SELECT COUNT(*) FROM purchase_attempts WHERE status = $1`,
		string(domain.StatusPendingVerification),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pending attempts: %w", err)
	}

	rows, err := db.Query(ctx, r.pool, `
		SELECT pa.id, pa.lead_id, pa.seller_id, pa.seller_email, pa.status,
			pa.payment_proof, pa.reject_reason, pa.created_at, pa.updated_at,
			l.product, l.lead_price
		FROM purchase_attempts pa
		JOIN leads l ON l.id = pa.lead_id
		WHERE pa.status = $1
		ORDER BY pa.created_at ASC
		LIMIT $2 OFFSET $3`,
		string(domain.StatusPendingVerification), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list pending attempts: %w", err)
	}
	defer rows.Close()

	items, err := collectAttemptsWithLead(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func collectAttemptsWithLead(rows pgx.Rows) ([]AttemptWithLead, error) {
	var items []AttemptWithLead
	for rows.Next() {
		var item AttemptWithLead
		var status string
		err := rows.Scan(&item.ID, &item.LeadID, &item.SellerID, &item.SellerEmail,
			&status, &item.PaymentProofKey, &item.RejectReason, &item.CreatedAt,
			&item.UpdatedAt, &item.Product, &item.Price)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		item.Status = domain.Status(status)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return items, nil
}
