package fraud

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// BlocklistSource supplies the blocked-location set for a check and lets
// operators maintain it.
type BlocklistSource interface {
	Locations(ctx context.Context) (Locations, error)
	Contains(ctx context.Context, location string) (bool, error)
	Add(ctx context.Context, location string) error
	Remove(ctx context.Context, location string) error
}

// StaticBlocklist is an in-memory blocklist, seeded from config.
type StaticBlocklist struct {
	mu   sync.RWMutex
	locs Locations
}

// NewStaticBlocklist creates an in-memory blocklist holding locs.
func NewStaticBlocklist(locs ...string) *StaticBlocklist {
	return &StaticBlocklist{locs: NewLocations(locs...)}
}

// Locations returns a snapshot of the set.
func (b *StaticBlocklist) Locations(_ context.Context) (Locations, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(Locations, len(b.locs))
	for l := range b.locs {
		out[l] = struct{}{}
	}
	return out, nil
}

func (b *StaticBlocklist) Contains(_ context.Context, location string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.locs.Contains(location), nil
}

func (b *StaticBlocklist) Add(_ context.Context, location string) error {
	b.mu.Lock()
	b.locs[location] = struct{}{}
	b.mu.Unlock()
	return nil
}

func (b *StaticBlocklist) Remove(_ context.Context, location string) error {
	b.mu.Lock()
	delete(b.locs, location)
	b.mu.Unlock()
	return nil
}

// DefaultBlocklistKey is the Redis set holding blocked locations.
const DefaultBlocklistKey = "verdict:fraud:blocked_locations"

// RedisBlocklist keeps the blocked set in a Redis set so every instance sees
// the same list.
type RedisBlocklist struct {
	client *redis.Client
	key    string
}

// NewRedisBlocklist creates a Redis-backed blocklist under DefaultBlocklistKey.
func NewRedisBlocklist(client *redis.Client) *RedisBlocklist {
	return &RedisBlocklist{client: client, key: DefaultBlocklistKey}
}

// WithKey overrides the Redis key.
func (b *RedisBlocklist) WithKey(key string) *RedisBlocklist {
	b.key = key
	return b
}

func (b *RedisBlocklist) Locations(ctx context.Context) (Locations, error) {
	members, err := b.client.SMembers(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load blocked locations: %w", err)
	}
	return NewLocations(members...), nil
}

// Contains checks a single location without loading the whole set.
func (b *RedisBlocklist) Contains(ctx context.Context, location string) (bool, error) {
	ok, err := b.client.SIsMember(ctx, b.key, location).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blocked location: %w", err)
	}
	return ok, nil
}

func (b *RedisBlocklist) Add(ctx context.Context, location string) error {
	if err := b.client.SAdd(ctx, b.key, location).Err(); err != nil {
		return fmt.Errorf("failed to block location: %w", err)
	}
	return nil
}

func (b *RedisBlocklist) Remove(ctx context.Context, location string) error {
	if err := b.client.SRem(ctx, b.key, location).Err(); err != nil {
		return fmt.Errorf("failed to unblock location: %w", err)
	}
	return nil
}

// Sorted returns the set's members in lexical order.
func (l Locations) Sorted() []string {
	out := make([]string, 0, len(l))
	for loc := range l {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}
