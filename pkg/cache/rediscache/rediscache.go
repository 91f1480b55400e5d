// Package rediscache implements sbeams.Cache on Redis so that several
// processes share resolved privilege levels.
//
// Levels are stored as their numeric value under
// <prefix>:<user>:<work group>:<table group>, with '%' and ':' inside a
// part escaped as %25 and %3A. Redis failures are logged and
// treated as cache misses; the resolver then falls back to the grant source.
package rediscache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	sbeams "github.com/systemsbiology/sbeams-core"
)

// DefaultPrefix namespaces cache keys.
const DefaultPrefix = "sbeams:privilege"

// Cache is a Redis-backed sbeams.Cache.
type Cache struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

// Option configures a Cache.
type Option func(*Cache)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = strings.TrimSuffix(prefix, ":")
	}
}

// WithTTL sets the expiry of cached levels. Zero keeps them until Clear.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithTimeout bounds each Redis round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.timeout = d
	}
}

// New wraps a Redis client.
func New(client redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{
		client:  client,
		prefix:  DefaultPrefix,
		timeout: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to the Redis server at addr ("host:port") and verifies the
// connection.
func Dial(ctx context.Context, addr, password string, db int, opts ...Option) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return New(client, opts...), nil
}

// keyEscaper keeps the separator unambiguous inside key parts.
var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// Key returns the Redis key of k.
func (c *Cache) Key(k sbeams.CacheKey) string {
	return c.prefix + ":" + keyEscaper.Replace(k.User) + ":" + keyEscaper.Replace(k.WorkGroup) + ":" + keyEscaper.Replace(k.TableGroup)
}

func (c *Cache) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// Get implements sbeams.Cache.
func (c *Cache) Get(k sbeams.CacheKey) (sbeams.PrivilegeLevel, bool) {
	ctx, cancel := c.ctx()
	defer cancel()

	val, err := c.client.Get(ctx, c.Key(k)).Result()
	if errors.Is(err, redis.Nil) {
		return sbeams.PrivilegeNone, false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", c.Key(k)).Msg("redis cache get failed")
		return sbeams.PrivilegeNone, false
	}
	n, err := strconv.Atoi(val)
	level := sbeams.PrivilegeLevel(n)
	if err != nil || !level.Valid() {
		log.Warn().Str("key", c.Key(k)).Str("value", val).Msg("ignoring invalid cached privilege")
		return sbeams.PrivilegeNone, false
	}
	return level, true
}

// Set implements sbeams.Cache.
func (c *Cache) Set(k sbeams.CacheKey, level sbeams.PrivilegeLevel) {
	ctx, cancel := c.ctx()
	defer cancel()

	if err := c.client.Set(ctx, c.Key(k), int(level), c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", c.Key(k)).Msg("redis cache set failed")
	}
}

// Clear deletes every key under the cache prefix, e.g. after grants were
// edited.
func (c *Cache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

var _ sbeams.Cache = (*Cache)(nil)
