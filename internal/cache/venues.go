// Package cache provides Redis read-through caching for catalog reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"venuepark/internal/models"
	"venuepark/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	venuePrefix = "venuepark:venues:"
	// generationKey versions every cached venue key. Writes bump it before
	// and after touching the store, and fills only land while it is unchanged.
	generationKey = venuePrefix + "gen"
)

// fillScript sets KEYS[2] only while KEYS[1] still holds the generation the
// value was read under.
var fillScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[1]) or "0"
if gen ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// Venues wraps a VenueRepository, caching reads in Redis. Cached keys carry
// a generation that every write bumps. A nil client disables caching.
type Venues struct {
	repository.VenueRepository

	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

var _ repository.VenueRepository = (*Venues)(nil)

func NewVenues(next repository.VenueRepository, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Venues {
	return &Venues{
		VenueRepository: next,
		redis:           client,
		ttl:             ttl,
		logger:          logger.With().Str("component", "venue_cache").Logger(),
	}
}

func (c *Venues) GetVenue(ctx context.Context, id string) (*models.Venue, error) {
	gen, ok := c.generation(ctx)
	key := venueKey(gen, "id:"+id)
	var v models.Venue
	if ok && c.readCache(ctx, key, &v) {
		return &v, nil
	}

	got, err := c.VenueRepository.GetVenue(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok {
		c.fill(ctx, gen, key, got)
	}
	return got, nil
}

func (c *Venues) ListVenues(ctx context.Context, f repository.VenueFilter) ([]models.Venue, error) {
	gen, ok := c.generation(ctx)
	key := venueKey(gen, fmt.Sprintf("list:%s:%t", f.Type, f.EnabledOnly))
	var list []models.Venue
	if ok && c.readCache(ctx, key, &list) {
		return list, nil
	}

	list, err := c.VenueRepository.ListVenues(ctx, f)
	if err != nil {
		return nil, err
	}
	if ok {
		c.fill(ctx, gen, key, list)
	}
	return list, nil
}

func (c *Venues) CreateVenue(ctx context.Context, v *models.Venue) error {
	c.Invalidate(ctx)
	defer c.Invalidate(ctx)
	return c.VenueRepository.CreateVenue(ctx, v)
}

func (c *Venues) UpdateVenue(ctx context.Context, id string, fn func(v *models.Venue) error) (*models.Venue, error) {
	c.Invalidate(ctx)
	defer c.Invalidate(ctx)
	return c.VenueRepository.UpdateVenue(ctx, id, fn)
}

func (c *Venues) SyncSeedVenue(ctx context.Context, v *models.Venue) (repository.SeedOutcome, error) {
	c.Invalidate(ctx)
	defer c.Invalidate(ctx)
	return c.VenueRepository.SyncSeedVenue(ctx, v)
}

// Invalidate bumps the generation, orphaning every cached venue entry.
// Orphans expire with the TTL.
func (c *Venues) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	if err := c.redis.Incr(ctx, generationKey).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("invalidate venue cache")
	}
}

func (c *Venues) enabled() bool {
	return c.redis != nil && c.ttl > 0
}

// generation returns the current generation. ok is false when caching is
// off or Redis is unreachable, in which case reads go to the store.
func (c *Venues) generation(ctx context.Context) (string, bool) {
	if !c.enabled() {
		return "", false
	}
	gen, err := c.redis.Get(ctx, generationKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", true
	case err != nil:
		c.logger.Warn().Err(err).Msg("read venue cache generation")
		return "", false
	}
	return gen, true
}

func venueKey(gen, suffix string) string {
	return venuePrefix + gen + ":" + suffix
}

func (c *Venues) readCache(ctx context.Context, key string, out any) bool {
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Venues) fill(ctx context.Context, gen, key string, val any) {
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	err = fillScript.Run(ctx, c.redis, []string{generationKey, key}, gen, data, c.ttl.Milliseconds()).Err()
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("fill venue cache")
	}
}
