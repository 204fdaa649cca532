package workinghours

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinagenda/booking-platform/pkg/logging"
)

// CachedStore layers a redis read-through cache over the window queries.
// Windows change rarely (admin edits) and are read on every availability
// request, so the hot path avoids Postgres entirely. Writes go straight to
// the inner store and drop the affected key.
type CachedStore struct {
	inner  *Store
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedStore wraps store with a redis cache. A nil client disables
// caching and all calls pass through.
func NewCachedStore(inner *Store, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedStore {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{inner: inner, client: client, ttl: ttl, logger: logger}
}

func windowCacheKey(clinicID uuid.UUID, professionalID *uuid.UUID, weekday time.Weekday) string {
	prof := "-"
	if professionalID != nil {
		prof = professionalID.String()
	}
	return fmt.Sprintf("workinghours:%s:%s:%d", clinicID, prof, weekday)
}

// ListWindows serves from cache when possible. Redis failures degrade to the
// database rather than failing the request.
func (c *CachedStore) ListWindows(ctx context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, weekday time.Weekday) ([]Window, error) {
	if c.client == nil {
		return c.inner.ListWindows(ctx, clinicID, professionalID, weekday)
	}

	key := windowCacheKey(clinicID, professionalID, weekday)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var cached []Window
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		// Corrupt entry: fall through and rewrite it.
	} else if err != redis.Nil {
		c.logger.Warn("working-hours cache read failed", "key", key, "error", err)
	}

	windows, err := c.inner.ListWindows(ctx, clinicID, professionalID, weekday)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(windows); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("working-hours cache write failed", "key", key, "error", err)
		}
	}
	return windows, nil
}

// ListAllWindows is an admin path; it always reads through.
func (c *CachedStore) ListAllWindows(ctx context.Context, clinicID uuid.UUID) ([]Window, error) {
	return c.inner.ListAllWindows(ctx, clinicID)
}

// CreateWindow writes through and invalidates the weekday key.
func (c *CachedStore) CreateWindow(ctx context.Context, w Window) (*Window, error) {
	created, err := c.inner.CreateWindow(ctx, w)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, windowCacheKey(created.ClinicID, created.ProfessionalID, created.Weekday))
	return created, nil
}

// DeactivateWindow writes through and invalidates every weekday key for the
// clinic; the deactivated row's weekday is not known here without a read.
func (c *CachedStore) DeactivateWindow(ctx context.Context, clinicID, windowID uuid.UUID) error {
	if err := c.inner.DeactivateWindow(ctx, clinicID, windowID); err != nil {
		return err
	}
	c.invalidateClinic(ctx, clinicID)
	return nil
}

// ListBlocks always reads through: blocks are date-ranged and short-lived.
func (c *CachedStore) ListBlocks(ctx context.Context, clinicID uuid.UUID, professionalID *uuid.UUID, from, to time.Time) ([]Block, error) {
	return c.inner.ListBlocks(ctx, clinicID, professionalID, from, to)
}

// CreateBlock passes through to the inner store.
func (c *CachedStore) CreateBlock(ctx context.Context, b Block) (*Block, error) {
	return c.inner.CreateBlock(ctx, b)
}

// DeleteBlock passes through to the inner store.
func (c *CachedStore) DeleteBlock(ctx context.Context, clinicID, blockID uuid.UUID) error {
	return c.inner.DeleteBlock(ctx, clinicID, blockID)
}

func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if c.client == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("working-hours cache invalidation failed", "keys", keys, "error", err)
	}
}

func (c *CachedStore) invalidateClinic(ctx context.Context, clinicID uuid.UUID) {
	if c.client == nil {
		return
	}
	pattern := fmt.Sprintf("workinghours:%s:*", clinicID)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("working-hours cache scan failed", "pattern", pattern, "error", err)
		return
	}
	c.invalidate(ctx, keys...)
}
