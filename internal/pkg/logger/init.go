package logger

import (
	"Storefront/internal/api/config"
	"io"
	log "log/slog"
	"net"
	"os"
	"time"
)

var LogWriter io.Writer = os.Stdout

// InitLogger stdout JSON 日志；配置了 logstash 时额外把带 trace_id 的记录发往远端
func InitLogger(cfg config.LogstashConfig, level log.Level) {
	hStdout := log.NewJSONHandler(os.Stdout, &log.HandlerOptions{Level: level})

	var finalHandler log.Handler = hStdout
	LogWriter = os.Stdout

	if cfg.Address != "" {
		conn, err := net.DialTimeout("tcp", cfg.Address, 3*time.Second)
		if err == nil {
			attrs := []log.Attr{log.String("target_index", cfg.Index)}
			if cfg.Token != "" {
				attrs = append(attrs, log.String("log_token", cfg.Token))
			}
			hRemote := log.NewJSONHandler(conn, &log.HandlerOptions{Level: level}).WithAttrs(attrs)
			finalHandler = NewTeeHandler(hStdout, &RemoteFilterHandler{next: hRemote})
			LogWriter = io.MultiWriter(os.Stdout, conn)
		} else {
			log.Warn("Failed to connect to Logstash, logging to stdout only", "err", err)
		}
	}

	log.SetDefault(log.New(&ContextHandler{finalHandler}))
}
