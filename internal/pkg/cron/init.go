package cron

import log "log/slog"

// InitCron 先注册全部任务再启动引擎；任一任务表达式非法时返回错误，引擎不会启动
func InitCron(mgr *Manager) error {
	if err := mgr.RegisterJobs(); err != nil {
		return err
	}
	log.Info("Cron Jobs starting...", "entries", mgr.Entries())
	mgr.Start()
	return nil
}
