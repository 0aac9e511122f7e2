// Package repository persists chat channels. The unique constraint on
// (lead_id, seller_id) is the durable half of provisioning idempotency.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a chat channel does not exist.
var ErrNotFound = errors.New("chat channel not found")

// Channel is a provisioned chat channel between a buyer and a seller.
type Channel struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	SellerID   uuid.UUID
	BuyerID    uuid.UUID
	ExternalID *string
	CreatedAt  time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a channel. A replay for the same (lead, seller) hits the
// unique constraint and reports created=false instead of erroring.
func (r *Repository) Insert(ctx context.Context, leadID, sellerID, buyerID uuid.UUID, externalID *string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO chat_channels (lead_id, seller_id, buyer_id, external_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (lead_id, seller_id) DO NOTHING`,
		leadID, sellerID, buyerID, externalID,
	)
	if err != nil {
		return false, fmt.Errorf("insert chat channel: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Exists reports whether a channel already exists for the pair.
func (r *Repository) Exists(ctx context.Context, leadID, sellerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM chat_channels WHERE lead_id = $1 AND seller_id = $2
		)`, leadID, sellerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check chat channel: %w", err)
	}
	return exists, nil
}

// GetByLeadAndSeller fetches the channel for a pair.
func (r *Repository) GetByLeadAndSeller(ctx context.Context, leadID, sellerID uuid.UUID) (Channel, error) {
	var ch Channel
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, seller_id, buyer_id, external_id, created_at
		FROM chat_channels
		WHERE lead_id = $1 AND seller_id = $2`, leadID, sellerID,
	).Scan(&ch.ID, &ch.LeadID, &ch.SellerID, &ch.BuyerID, &ch.ExternalID, &ch.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Channel{}, ErrNotFound
		}
		return Channel{}, fmt.Errorf("get chat channel: %w", err)
	}
	return ch, nil
}
