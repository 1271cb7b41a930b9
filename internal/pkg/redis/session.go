package redis

import (
	"Storefront/internal/pkg/consts"
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore 已登出令牌的签名列表，过期时间与令牌剩余有效期一致
type RevocationStore struct {
	rdb redis.Cmdable
}

func NewRevocationStore(rdb redis.Cmdable) *RevocationStore {
	return &RevocationStore{rdb: rdb}
}

func (s *RevocationStore) Revoke(ctx context.Context, signature string, ttl time.Duration) error {
	return SetWithExpiration(ctx, s.rdb, consts.SessionRevokedKey+signature, "1", ttl)
}

func (s *RevocationStore) IsRevoked(ctx context.Context, signature string) (bool, error) {
	return Exists(ctx, s.rdb, consts.SessionRevokedKey+signature)
}
