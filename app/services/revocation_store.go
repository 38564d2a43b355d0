package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amirphl/shortlink/utils"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
)

// RevocationStore records token IDs (jti) that must no longer be accepted
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevocationStore keeps revoked token IDs as expiring redis keys
type RedisRevocationStore struct {
	client  redis.UniversalClient
	prefix  string
	breaker *gobreaker.CircuitBreaker[bool]
}

// NewRedisRevocationStore creates a revocation store backed by redis
func NewRedisRevocationStore(client redis.UniversalClient, prefix string, settings BreakerSettings) *RedisRevocationStore {
	return &RedisRevocationStore{
		client:  client,
		prefix:  prefix,
		breaker: newRedisBreaker[bool]("redis-revocation", settings),
	}
}

func (s *RedisRevocationStore) key(tokenID string) string {
	return s.prefix + "revoked:" + tokenID
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	_, err := s.breaker.Execute(func() (bool, error) {
		return true, s.client.Set(ctx, s.key(tokenID), 1, ttl).Err()
	})
	return err
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return s.breaker.Execute(func() (bool, error) {
		err := s.client.Get(ctx, s.key(tokenID)).Err()
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	})
}

// MemoryRevocationStore is the single-process fallback used when redis is not configured
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time)}
}

func (s *MemoryRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := utils.UTCNow()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	if until.After(now) {
		s.revoked[tokenID] = until
	}
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	until, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}
	return utils.UTCNow().Before(until), nil
}
