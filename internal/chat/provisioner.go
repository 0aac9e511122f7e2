// Package chat provisions buyer/seller chat channels after payment
// verification. Provisioning is at-least-once: the worker retries on
// failure, and a Redis guard plus the channel table's unique constraint
// make replays no-ops.
package chat

import (
	"context"
	"fmt"
	"time"

	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const guardTTL = 24 * time.Hour

// ChannelStore is the persistence interface the provisioner needs.
type ChannelStore interface {
	Insert(ctx context.Context, leadID, sellerID, buyerID uuid.UUID, externalID *string) (bool, error)
	Exists(ctx context.Context, leadID, sellerID uuid.UUID) (bool, error)
}

// ChannelCreator creates the conversation on the external chat service.
type ChannelCreator interface {
	CreateChannel(ctx context.Context, leadID, sellerID, buyerID uuid.UUID, contactPhone, contactEmail string) (string, error)
}

// Provisioner creates chat channels idempotently per (lead, seller).
type Provisioner struct {
	store   ChannelStore
	creator ChannelCreator
	redis   *redis.Client
	log     *logger.Logger
}

// NewProvisioner creates a new chat provisioner. The creator may be nil when
// the external chat service is disabled; channels are then only recorded
// locally.
func NewProvisioner(store ChannelStore, creator ChannelCreator, rdb *redis.Client, log *logger.Logger) *Provisioner {
	return &Provisioner{store: store, creator: creator, redis: rdb, log: log}
}

func guardKey(leadID, sellerID uuid.UUID) string {
	return fmt.Sprintf("chat:provision:%s:%s", leadID, sellerID)
}

// Provision creates the chat channel for a verified purchase. Safe to call
// any number of times for the same pair: the first call wins, the rest are
// no-ops. A failure releases the Redis guard so the worker's retry can run.
func (p *Provisioner) Provision(ctx context.Context, leadID, sellerID, buyerID uuid.UUID, contactPhone, contactEmail string) error {
	key := guardKey(leadID, sellerID)

	if p.redis != nil {
		acquired, err := p.redis.SetNX(ctx, key, "1", guardTTL).Result()
		if err != nil {
			// Redis being down must not stop provisioning; the DB
			// constraint still guarantees idempotency.
			p.log.Warn("chat provision guard unavailable", "error", err)
		} else if !acquired {
			return nil
		}
	}

	exists, err := p.store.Exists(ctx, leadID, sellerID)
	if err != nil {
		p.releaseGuard(ctx, key)
		return err
	}
	if exists {
		return nil
	}

	var externalID *string
	if p.creator != nil {
		id, err := p.creator.CreateChannel(ctx, leadID, sellerID, buyerID, contactPhone, contactEmail)
		if err != nil {
			p.releaseGuard(ctx, key)
			return fmt.Errorf("create chat channel: %w", err)
		}
		if id != "" {
			externalID = &id
		}
	}

	created, err := p.store.Insert(ctx, leadID, sellerID, buyerID, externalID)
	if err != nil {
		p.releaseGuard(ctx, key)
		return err
	}
	if created {
		p.log.Info("chat channel provisioned",
			"leadId", leadID.String(), "sellerId", sellerID.String())
	}
	return nil
}

func (p *Provisioner) releaseGuard(ctx context.Context, key string) {
	if p.redis == nil {
		return
	}
	if err := p.redis.Del(ctx, key).Err(); err != nil {
		p.log.Warn("chat provision guard release failed", "key", key, "error", err)
	}
}
