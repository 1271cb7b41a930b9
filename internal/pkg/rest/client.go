package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/go-resty/resty/v2"
)

var ErrUnauthorized = errors.New("backend rejected session token")

// StatusError 服务端返回的非 2xx 响应
type StatusError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Unwrap 401 可以用 errors.Is(err, ErrUnauthorized) 判断
func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Envelope 服务端统一响应 {data, pagination}
type Envelope[T any] struct {
	Data       T              `json:"data"`
	Pagination *PaginationDTO `json:"pagination,omitempty"`
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
	// Transport 为空时使用 resty 默认传输层
	Transport http.RoundTripper
}

// Client 后端 REST 接口
// 只负责请求与解码，结果交给调用方合并进读模型
type Client struct {
	http *resty.Client

	mu    sync.RWMutex
	token string
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	c := &Client{}
	c.http = resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		AddRetryCondition(retryIdempotent).
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			if token := c.Token(); token != "" {
				r.SetAuthToken(token)
			}
			return nil
		})
	if opts.Transport != nil {
		c.http.SetTransport(opts.Transport)
	}
	return c
}

// retryIdempotent 只对 GET 的网络错误与 5xx 重试
func retryIdempotent(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	return err != nil || resp.StatusCode() >= http.StatusInternalServerError
}

// SetToken 登录、刷新、登出时整体替换
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do 发起请求并解码统一响应
func do[T any](ctx context.Context, c *Client, method, path string, prepare func(r *resty.Request)) (*Envelope[T], error) {
	out := &Envelope[T]{}
	apiErr := &StatusError{}

	req := c.http.R().
		SetContext(ctx).
		SetResult(out).
		SetError(apiErr)
	if prepare != nil {
		prepare(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		return nil, apiErr
	}
	return out, nil
}
