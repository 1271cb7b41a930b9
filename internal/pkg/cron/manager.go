package cron

import (
	"Storefront/internal/job"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

type Manager struct {
	engine       *cron.Cron
	refreshSpec  string
	snapshotSpec string
	refreshJob   *job.SyncRefreshJob
	snapshotJob  *job.SnapshotJob
}

func NewCronManager(refreshSpec, snapshotSpec string, refreshJob *job.SyncRefreshJob, snapshotJob *job.SnapshotJob) *Manager {
	return &Manager{
		engine:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		refreshSpec:  refreshSpec,
		snapshotSpec: snapshotSpec,
		refreshJob:   refreshJob,
		snapshotJob:  snapshotJob,
	}
}

// RegisterJobs 注册定时任务，spec 为空的任务不注册
func (s *Manager) RegisterJobs() error {
	if s.refreshSpec != "" {
		if _, err := s.engine.AddJob(s.refreshSpec, s.refreshJob); err != nil {
			return err
		}
	}
	if s.snapshotSpec != "" {
		if _, err := s.engine.AddJob(s.snapshotSpec, s.snapshotJob); err != nil {
			return err
		}
	}
	return nil
}

// Entries 已注册任务数
func (s *Manager) Entries() int {
	return len(s.engine.Entries())
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动")
	s.engine.Start()
}

func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	<-s.engine.Stop().Done()
}
