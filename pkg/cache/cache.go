// Package cache keeps recently evaluated reports in Redis, keyed by the
// digest of the evaluation inputs (project, catalogue and date).
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
)

const keyPrefix = "report:"

// Key returns the Redis key for an input digest.
func Key(inputDigest string) string { return keyPrefix + inputDigest }

// Reports is a Redis-backed report cache.
type Reports struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New wraps an existing client. A non-positive ttl stores without expiry.
func New(client redis.UniversalClient, ttl time.Duration) *Reports {
	return &Reports{client: client, ttl: ttl}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Reports, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", addr, err)
	}
	return New(rdb, ttl), nil
}

// Get returns the cached report for inputDigest. A miss is (nil, false, nil).
func (c *Reports) Get(ctx context.Context, inputDigest string) (*findings.Report, bool, error) {
	raw, err := c.client.Get(ctx, Key(inputDigest)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}
	var r findings.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false, fmt.Errorf("cache: decode: %w", err)
	}
	return &r, true, nil
}

// Set stores r under inputDigest.
func (c *Reports) Set(ctx context.Context, inputDigest string, r *findings.Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, Key(inputDigest), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set: %w", err)
	}
	return nil
}

// Invalidate drops the entry for inputDigest.
func (c *Reports) Invalidate(ctx context.Context, inputDigest string) error {
	if err := c.client.Del(ctx, Key(inputDigest)).Err(); err != nil {
		return fmt.Errorf("cache: delete: %w", err)
	}
	return nil
}

// Close releases the client.
func (c *Reports) Close() error { return c.client.Close() }
