package redis

import (
	"Storefront/internal/pkg/consts"
	"Storefront/internal/readmodel"
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// SnapshotStore 读模型快照，按用户存储
type SnapshotStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewSnapshotStore(rdb redis.Cmdable, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{rdb: rdb, ttl: ttl}
}

func (s *SnapshotStore) Save(ctx context.Context, snap *readmodel.Snapshot) error {
	if snap == nil || snap.UserID == "" {
		return nil
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return SetWithExpiration(ctx, s.rdb, consts.SnapshotKey+snap.UserID, b, s.ttl)
}

func (s *SnapshotStore) Load(ctx context.Context, userID string) (*readmodel.Snapshot, error) {
	b, err := GetBytes(ctx, s.rdb, consts.SnapshotKey+userID)
	if err != nil || b == nil {
		return nil, err
	}
	snap := &readmodel.Snapshot{}
	if err := json.Unmarshal(b, snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, userID string) error {
	return DeleteKey(ctx, s.rdb, consts.SnapshotKey+userID)
}
