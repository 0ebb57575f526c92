package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers revoked token ids until the token would have
// expired anyway. A nil redis client disables revocation.
type RevocationStore struct {
	rdb *redis.Client
}

// NewRevocationStore creates a RevocationStore backed by rdb.
func NewRevocationStore(rdb *redis.Client) *RevocationStore {
	return &RevocationStore{rdb: rdb}
}

func revocationKey(jti string) string {
	return "blacklist:" + jti
}

// Revoke marks jti as revoked for ttl.
func (s *RevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if s == nil || s.rdb == nil || jti == "" || ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, revocationKey(jti), "1", ttl).Err()
}

// IsRevoked reports whether jti was revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s == nil || s.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := s.rdb.Exists(ctx, revocationKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
