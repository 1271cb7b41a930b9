package logger

import (
	log "log/slog"
	"net/http"
	"time"
)

const slowBackendCall = 500 * time.Millisecond

// BackendTransport 记录后端 REST 调用，不读取请求与响应体
type BackendTransport struct {
	Transport http.RoundTripper
}

func NewBackendTransport(next http.RoundTripper) *BackendTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &BackendTransport{Transport: next}
}

func (t *BackendTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.Transport.RoundTrip(req)
	elapsed := time.Since(start)

	fields := []any{
		log.String("method", req.Method),
		log.String("path", req.URL.Path),
		log.Duration("latency", elapsed),
	}
	ctx := req.Context()

	if err != nil {
		log.ErrorContext(ctx, "BACKEND_CALL_ERROR", append(fields, log.Any("err", err))...)
		return nil, err
	}

	fields = append(fields, log.Int("status", resp.StatusCode))
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		log.ErrorContext(ctx, "BACKEND_CALL_FAILED", fields...)
	case elapsed > slowBackendCall:
		log.WarnContext(ctx, "BACKEND_CALL_SLOW", fields...)
	default:
		log.DebugContext(ctx, "BACKEND_CALL", fields...)
	}
	return resp, nil
}
