package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lead does not exist.
var ErrNotFound = errors.New("lead not found")

// Lead is the persisted marketplace lead.
type Lead struct {
	ID                  uuid.UUID
	BuyerID             uuid.UUID
	BuyerEmail          *string
	Product             string
	Category            string
	Quantity            int
	DeliveryLocation    string
	AllowSellersContact bool
	ContactPhone        *string
	ContactEmail        *string
	Status              domain.Status
	Price               *int
	MaxSellers          *int
	SoldCount           int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// MarketLead is the seller-facing projection of an approved lead, with the
// number of slots still open for new purchase attempts.
type MarketLead struct {
	ID               uuid.UUID
	Product          string
	Category         string
	Quantity         int
	DeliveryLocation string
	Price            int
	SlotsLeft        int
	CreatedAt        time.Time
}

// InsertParams captures a buyer's lead submission.
type InsertParams struct {
	BuyerID             uuid.UUID
	BuyerEmail          *string
	Product             string
	Category            string
	Quantity            int
	DeliveryLocation    string
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

func (r *Repository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.QueryRow(ctx, r.pool, sql, args...)
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.Query(ctx, r.pool, sql, args...)
}

const leadColumns = `id, buyer_id, buyer_email, product, category, quantity, delivery_location,
	allow_sellers_contact, contact_phone, contact_email,
	status, lead_price, max_sellers, sold_count, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	var status string
	err := row.Scan(
		&lead.ID, &lead.BuyerID, &lead.BuyerEmail, &lead.Product, &lead.Category, &lead.Quantity,
		&lead.DeliveryLocation, &lead.AllowSellersContact, &lead.ContactPhone,
		&lead.ContactEmail, &status, &lead.Price, &lead.MaxSellers,
		&lead.SoldCount, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	lead.Status = domain.Status(status)
	return lead, nil
}

// Insert stores a newly submitted lead in pending state.
func (r *Repository) Insert(ctx context.Context, p InsertParams) (Lead, error) {
	row := r.queryRow(ctx, `
		INSERT INTO leads (buyer_id, buyer_email, product, category, quantity, delivery_location,
			allow_sellers_contact, contact_phone, contact_email, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+leadColumns,
		p.BuyerID, p.BuyerEmail, p.Product, p.Category, p.Quantity, p.DeliveryLocation,
		p.AllowSellersContact, p.ContactPhone, p.ContactEmail, string(domain.StatusPending),
	)

	lead, err := scanLead(row)
	if err != nil {
		return Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	return lead, nil
}

// GetByID fetches a lead.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.queryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

// GetForUpdate fetches a lead and locks its row for the rest of the ambient
// transaction. This lock is the per-lead critical section every capacity
// decision runs under.
func (r *Repository) GetForUpdate(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.queryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, fmt.Errorf("get lead for update: %w", err)
	}
	return lead, nil
}

// CountPendingAttempts returns the number of purchase attempts currently in
// pending verification for the lead. Called with the lead row locked.
func (r *Repository) CountPendingAttempts(ctx context.Context, leadID uuid.UUID) (int, error) {
	var count int
	err := r.queryRow(ctx, `
		SELECT COUNT(*) FROM purchase_attempts
		WHERE lead_id = $1 AND status = 'pending_verification'`,
		leadID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending attempts: %w", err)
	}
	return count, nil
}

// UpdateApproval sets the approved status, price and capacity.
func (r *Repository) UpdateApproval(ctx context.Context, id uuid.UUID, price, maxSellers int) (Lead, error) {
	row := r.queryRow(ctx, `
		UPDATE leads
		SET status = $2, lead_price = $3, max_sellers = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		id, string(domain.StatusApproved), price, maxSellers,
	)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, fmt.Errorf("update approval: %w", err)
	}
	return lead, nil
}

// UpdateStatus moves a lead to the given status without touching price or
// capacity fields.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (Lead, error) {
	row := r.queryRow(ctx, `
		UPDATE leads
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		id, string(status),
	)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, fmt.Errorf("update status: %w", err)
	}
	return lead, nil
}

// ListByStatus returns leads in the given status, newest first. A nil status
// lists all leads.
func (r *Repository) ListByStatus(ctx context.Context, status *domain.Status, page, limit int) ([]Lead, int, error) {
	offset := (page - 1) * limit

	where := ""
	args := []any{limit, offset}
	if status != nil {
		where = "WHERE status = $3"
		args = append(args, string(*status))
	}

	var total int
	countArgs := args[2:]
	countWhere := ""
	if status != nil {
		countWhere = "WHERE status = $1"
	}
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM leads `+countWhere, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	rows, err := r.query(ctx, `
		SELECT `+leadColumns+` FROM leads `+where+`
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	leads, err := collectLeads(rows)
	if err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

// ListByBuyer returns the buyer's own leads, newest first.
func (r *Repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, page, limit int) ([]Lead, int, error) {
	offset := (page - 1) * limit

	var total int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM leads WHERE buyer_id = $1`, buyerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count buyer leads: %w", err)
	}

	rows, err := r.query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE buyer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, buyerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list buyer leads: %w", err)
	}
	defer rows.Close()

	leads, err := collectLeads(rows)
	if err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

// ListMarket returns approved leads with at least one open slot, newest
// first. Open slots exclude both verified sales and live reservations, so the
// marketplace never advertises capacity a purchase attempt already holds.
func (r *Repository) ListMarket(ctx context.Context, page, limit int) ([]MarketLead, int, error) {
	offset := (page - 1) * limit

	const openSlots = `(l.max_sellers - l.sold_count - (
		SELECT COUNT(*) FROM purchase_attempts pa
		WHERE pa.lead_id = l.id AND pa.status = 'pending_verification'
	))`

	var total int
	if err := r.queryRow(ctx, `
		SELECT COUNT(*) FROM leads l
		WHERE l.status = 'approved' AND `+openSlots+` > 0`,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count market leads: %w", err)
	}

	rows, err := r.query(ctx, `
		SELECT l.id, l.product, l.category, l.quantity, l.delivery_location,
			l.lead_price, `+openSlots+` AS slots_left, l.created_at
		FROM leads l
		WHERE l.status = 'approved' AND `+openSlots+` > 0
		ORDER BY l.created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list market leads: %w", err)
	}
	defer rows.Close()

	items := make([]MarketLead, 0)
	for rows.Next() {
		var item MarketLead
		if err := rows.Scan(&item.ID, &item.Product, &item.Category, &item.Quantity,
			&item.DeliveryLocation, &item.Price, &item.SlotsLeft, &item.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan market lead: %w", err)
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return items, total, nil
}

func collectLeads(rows pgx.Rows) ([]Lead, error) {
	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leads, nil
}
