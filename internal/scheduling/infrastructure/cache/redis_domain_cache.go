// Package cache provides a cross-process counterpart to the
// application package's in-memory DomainCache, so multiple solver
// instances behind a load balancer can share reduced per-student
// domains for the same studio. Constraint evaluation outcomes are not
// stored here.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
)

const keyMaxLength = 256

// RedisDomainCache stores reduced per-student domains keyed by
// studio+student+context-hash, namespaced the way the rest of the
// corpus namespaces Redis keys: "lessonscheduler:{studio}:domain:{student}:{hash}".
type RedisDomainCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDomainCache builds a cache bound to an existing client. ttl
// of 0 stores without expiration.
func NewRedisDomainCache(client *redis.Client, ttl time.Duration) *RedisDomainCache {
	return &RedisDomainCache{client: client, ttl: ttl}
}

func (c *RedisDomainCache) key(studioID, studentID string, contextHash uint64) string {
	return fmt.Sprintf("lessonscheduler:%s:domain:%s:%x", studioID, studentID, contextHash)
}

// Get retrieves a cached reduced domain, or (nil, false) on a miss.
func (c *RedisDomainCache) Get(ctx context.Context, studioID, studentID string, contextHash uint64) ([]domain.CSPValue, bool, error) {
	key := c.key(studioID, studentID, contextHash)
	if len(key) > keyMaxLength {
		return nil, false, fmt.Errorf("cache key exceeds %d bytes", keyMaxLength)
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var values []domain.CSPValue
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, false, err
	}
	return values, true, nil
}

// Put stores a reduced domain.
func (c *RedisDomainCache) Put(ctx context.Context, studioID, studentID string, contextHash uint64, values []domain.CSPValue) error {
	key := c.key(studioID, studentID, contextHash)
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

// InvalidateStudio removes every cached domain for a studio, used when
// the teacher's own availability or constraints change (spec §4.8:
// any teacher-level edit invalidates prior placements, and the same
// holds for cached domains).
func (c *RedisDomainCache) InvalidateStudio(ctx context.Context, studioID string) error {
	pattern := fmt.Sprintf("lessonscheduler:%s:domain:*", studioID)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
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
