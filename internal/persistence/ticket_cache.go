package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/tracker-service/internal/domain"
)

// RedisTicketCache caches ticket reads in Redis. Every operation is
// best-effort: cache failures are logged and the caller falls through to
// Postgres.
type RedisTicketCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisTicketCache wraps the shared client. A zero ttl disables
// expiration, which is only sensible in tests.
func NewRedisTicketCache(r *Redis, ttl time.Duration, logger *zap.Logger) *RedisTicketCache {
	if r == nil || r.Client == nil {
		return nil
	}
	return &RedisTicketCache{client: r.Client, ttl: ttl, logger: logger}
}

func ticketCacheKey(tenantID, ticketID string) string {
	return fmt.Sprintf("ticket:view:%s:%s", tenantID, ticketID)
}

// Get returns the cached ticket if present.
func (c *RedisTicketCache) Get(ctx context.Context, tenantID, ticketID string) (*domain.Ticket, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, ticketCacheKey(tenantID, ticketID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("ticket cache get failed", zap.String("ticket_id", ticketID), zap.Error(err))
		}
		return nil, false
	}
	var ticket domain.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		c.logger.Warn("ticket cache decode failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return nil, false
	}
	return &ticket, true
}

// Set stores the ticket under its tenant-qualified key.
func (c *RedisTicketCache) Set(ctx context.Context, ticket *domain.Ticket) {
	if c == nil || ticket == nil {
		return
	}
	raw, err := json.Marshal(ticket)
	if err != nil {
		c.logger.Warn("ticket cache encode failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, ticketCacheKey(ticket.TenantID, ticket.ID), raw, c.ttl).Err(); err != nil {
		c.logger.Debug("ticket cache set failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

// Invalidate drops the cached entry after a write.
func (c *RedisTicketCache) Invalidate(ctx context.Context, tenantID, ticketID string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, ticketCacheKey(tenantID, ticketID)).Err(); err != nil {
		c.logger.Debug("ticket cache invalidate failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}
