package job

import (
	"Storefront/internal/pkg/consts"
	"Storefront/internal/pkg/logger"
	"context"
	log "log/slog"
	"time"
)

const jobTimeout = time.Minute

// Syncer 后台任务依赖的同步能力
type Syncer interface {
	Active() bool
	RefreshAll(ctx context.Context) error
	SaveSnapshot(ctx context.Context) error
}

// SyncRefreshJob 周期性刷新已加载会话与未读数，弥补长连接丢失的事件
type SyncRefreshJob struct {
	syncer Syncer
}

func NewSyncRefreshJob(syncer Syncer) *SyncRefreshJob {
	return &SyncRefreshJob{syncer: syncer}
}

func (s *SyncRefreshJob) Run() {
	if !s.syncer.Active() {
		return
	}
	ctx, cancel := context.WithTimeout(logger.WithTrace(context.Background(), consts.TracePrefixJob), jobTimeout)
	defer cancel()

	start := time.Now()
	if err := s.syncer.RefreshAll(ctx); err != nil {
		log.ErrorContext(ctx, "SyncRefreshJob failed", "err", err)
		return
	}
	log.InfoContext(ctx, "SyncRefreshJob finished", "latency", time.Since(start))
}

// SnapshotJob 周期性保存读模型快照
type SnapshotJob struct {
	syncer Syncer
}

func NewSnapshotJob(syncer Syncer) *SnapshotJob {
	return &SnapshotJob{syncer: syncer}
}

func (s *SnapshotJob) Run() {
	if !s.syncer.Active() {
		return
	}
	ctx, cancel := context.WithTimeout(logger.WithTrace(context.Background(), consts.TracePrefixJob), jobTimeout)
	defer cancel()

	if err := s.syncer.SaveSnapshot(ctx); err != nil {
		log.ErrorContext(ctx, "SnapshotJob failed", "err", err)
	}
}
