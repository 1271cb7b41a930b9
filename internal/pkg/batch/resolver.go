package batch

import (
	"Storefront/internal/pkg/clock"
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"
)

// State 合并器状态: Idle -> Pending(timer) -> Flushing -> Idle
type State int8

const (
	StateIdle State = iota
	StatePending
	StateFlushing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

const DefaultWindow = 50 * time.Millisecond

var ErrClosed = errors.New("batch resolver closed")

// LookupFunc 一次批量查询；返回结果中缺失的 key 视为未知
type LookupFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// Config 合并器配置
type Config[K comparable, V any] struct {
	Window time.Duration
	Lookup LookupFunc[K, V]
	// Resolved 判断 key 是否已有确定结果，已确定的 key 不再请求
	Resolved func(key K) bool
	// Deliver 把批量结果写回读模型
	Deliver func(results map[K]V)
	Clock   clock.Clock
	Name    string
}

// Resolver 防抖批量查询
// 窗口期内对同一 key 的多次请求最多产生一次查询，计时器只会被重置而不会叠加
type Resolver[K comparable, V any] struct {
	mu       sync.Mutex
	cfg      Config[K, V]
	ctx      context.Context
	queue    []K
	pending  map[K]struct{}
	timer    *clock.Timer
	inflight int
	gen      uint64
	closed   bool
}

// New 创建合并器，ctx 作为批量查询的基础上下文
func New[K comparable, V any](ctx context.Context, cfg Config[K, V]) *Resolver[K, V] {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Name == "" {
		cfg.Name = "batch"
	}
	return &Resolver[K, V]{
		cfg:     cfg,
		ctx:     ctx,
		pending: make(map[K]struct{}),
	}
}

// Request 登记一个 key；已确定或已在途的 key 直接忽略
// 返回 true 表示本次调用新入队
func (r *Resolver[K, V]) Request(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if _, ok := r.pending[key]; ok {
		return false
	}
	if r.cfg.Resolved != nil && r.cfg.Resolved(key) {
		return false
	}

	r.pending[key] = struct{}{}
	r.queue = append(r.queue, key)

	// 合并计时器：清除旧计时器后重新开始
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = r.cfg.Clock.AfterFunc(r.cfg.Window, r.fire)
	return true
}

// Flush 对当前队列发起一次批量查询
// 无论成功失败，本批 key 都会从 pending 中移除；失败时 key 保持未知
func (r *Resolver[K, V]) Flush() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}

	keys := make([]K, 0, len(r.queue))
	for _, k := range r.queue {
		// 入队后可能已被 mutation 确定
		if r.cfg.Resolved != nil && r.cfg.Resolved(k) {
			delete(r.pending, k)
			continue
		}
		keys = append(keys, k)
	}
	r.queue = nil
	if len(keys) == 0 {
		r.mu.Unlock()
		return nil
	}
	r.inflight++
	gen := r.gen
	r.mu.Unlock()

	results, err := r.cfg.Lookup(r.ctx, keys)

	r.mu.Lock()
	stale := gen != r.gen
	r.mu.Unlock()

	// 先写回结果再释放 pending，避免释放后到写回前的重复请求
	// Reset 之后返回的结果属于上一个会话，丢弃
	if err == nil && !stale && r.cfg.Deliver != nil && len(results) > 0 {
		r.cfg.Deliver(results)
	}

	r.mu.Lock()
	if gen == r.gen {
		for _, k := range keys {
			delete(r.pending, k)
		}
	}
	r.inflight--
	r.mu.Unlock()
	return err
}

// State 当前状态
func (r *Resolver[K, V]) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.inflight > 0:
		return StateFlushing
	case len(r.queue) > 0:
		return StatePending
	default:
		return StateIdle
	}
}

// Pending 是否已在队列或在途
func (r *Resolver[K, V]) Pending(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[key]
	return ok
}

// Reset 丢弃队列与在途标记，用于会话切换
func (r *Resolver[K, V]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.queue = nil
	r.pending = make(map[K]struct{})
	r.gen++
}

// Close 停止计时器，之后的请求全部忽略
func (r *Resolver[K, V]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.queue = nil
	r.closed = true
}

func (r *Resolver[K, V]) fire() {
	if err := r.Flush(); err != nil && !errors.Is(err, ErrClosed) {
		log.WarnContext(r.ctx, "batch lookup failed", "resolver", r.cfg.Name, "err", err)
	}
}
