package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "checkout:idem:"
	idempotencyPending   = "pending"
)

// IdempotencyStore remembers checkout keys so a retried request returns the
// original order instead of re-executing. Records carry a short TTL; the
// unique index on orders.idempotency_key is the durable backstop.
type IdempotencyStore interface {
	// Lookup returns the order a completed key resolved to.
	Lookup(ctx context.Context, key string) (uuid.UUID, bool, error)
	// Begin claims a key for an in-flight checkout. False means another
	// request holds or completed it.
	Begin(ctx context.Context, key string) (bool, error)
	// Complete binds the key to the created order.
	Complete(ctx context.Context, key string, orderID uuid.UUID) error
	// Fail frees a claimed key after an aborted checkout so the client can
	// retry.
	Fail(ctx context.Context, key string) error
}

// RedisIdempotencyStore is the production store: SetNX claims the key, the
// value flips from a pending marker to the order id on completion.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (s *RedisIdempotencyStore) Lookup(ctx context.Context, key string) (uuid.UUID, bool, error) {
	value, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	if value == idempotencyPending {
		return uuid.Nil, false, nil
	}
	orderID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return orderID, true, nil
}

func (s *RedisIdempotencyStore) Begin(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, idempotencyKeyPrefix+key, idempotencyPending, s.ttl).Result()
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, orderID uuid.UUID) error {
	return s.client.Set(ctx, idempotencyKeyPrefix+key, orderID.String(), s.ttl).Err()
}

func (s *RedisIdempotencyStore) Fail(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

// MemoryIdempotencyStore backs tests and single-instance deployments without
// Redis.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]string
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{records: make(map[string]string)}
}

func (s *MemoryIdempotencyStore) Lookup(ctx context.Context, key string) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.records[key]
	if !ok || value == idempotencyPending {
		return uuid.Nil, false, nil
	}
	orderID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return orderID, true, nil
}

func (s *MemoryIdempotencyStore) Begin(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[key]; exists {
		return false, nil
	}
	s.records[key] = idempotencyPending
	return true, nil
}

func (s *MemoryIdempotencyStore) Complete(ctx context.Context, key string, orderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = orderID.String()
	return nil
}

func (s *MemoryIdempotencyStore) Fail(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
