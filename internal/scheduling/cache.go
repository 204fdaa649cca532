package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinagenda/booking-platform/pkg/logging"
)

// AvailabilityCache memoizes computed slot lists in redis. Entries are
// versioned per clinic: invalidation bumps a version counter instead of
// scanning keys, so a commit makes every cached day for that clinic stale in
// a single INCR. Redis being down degrades to recomputing, never to errors.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewAvailabilityCache builds a cache around client. A nil client disables
// caching entirely; every Get misses and every Put is a no-op.
func NewAvailabilityCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityCache{client: client, ttl: ttl, logger: logger}
}

func versionKey(clinicID uuid.UUID) string {
	return fmt.Sprintf("availability:ver:%s", clinicID)
}

func (c *AvailabilityCache) slotKey(ctx context.Context, q AvailabilityQuery) (string, error) {
	ver, err := c.client.Get(ctx, versionKey(q.ClinicID)).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	prof := "-"
	if q.ProfessionalID != nil {
		prof = q.ProfessionalID.String()
	}
	return fmt.Sprintf("availability:%s:%s:%s:%d:v%d",
		q.ClinicID, prof, q.Date.Format("2006-01-02"), q.GranularityMinutes, ver), nil
}

// Get returns the cached slot list for q, if present.
func (c *AvailabilityCache) Get(ctx context.Context, q AvailabilityQuery) ([]Slot, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	key, err := c.slotKey(ctx, q)
	if err != nil {
		c.logger.Warn("availability cache read failed", "error", err)
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("availability cache read failed", "error", err)
		return nil, false
	}
	var slots []Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		c.logger.Warn("availability cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return slots, true
}

// Put stores a computed slot list. Failures are logged and swallowed.
func (c *AvailabilityCache) Put(ctx context.Context, q AvailabilityQuery, slots []Slot) {
	if c == nil || c.client == nil {
		return
	}
	key, err := c.slotKey(ctx, q)
	if err != nil {
		c.logger.Warn("availability cache write failed", "error", err)
		return
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("availability cache write failed", "key", key, "error", err)
	}
}

// Invalidate makes every cached slot list for the clinic stale by bumping
// the clinic's version counter. Old entries age out via TTL.
func (c *AvailabilityCache) Invalidate(ctx context.Context, clinicID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Incr(ctx, versionKey(clinicID)).Err(); err != nil {
		c.logger.Warn("availability cache invalidation failed", "clinic_id", clinicID, "error", err)
	}
}
