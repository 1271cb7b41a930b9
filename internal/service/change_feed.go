package service

import (
	"Storefront/internal/readmodel"
	log "log/slog"
	"sync"
)

const defaultFeedBuffer = 64

// ChangeFeed 把读模型变更分发给已连接的视图
// 消费过慢的订阅者会被断开，视图重连后重新读取全量状态
// 读模型重置意味着会话边界（登出、切换用户、快照恢复），此时全部订阅在收到 reset 后关闭，视图需重新鉴权
type ChangeFeed struct {
	mu     sync.Mutex
	subs   map[int]chan readmodel.Change
	next   int
	buffer int
	cancel func()
}

func NewChangeFeed(store *readmodel.Store, buffer int) *ChangeFeed {
	if buffer <= 0 {
		buffer = defaultFeedBuffer
	}
	f := &ChangeFeed{
		subs:   make(map[int]chan readmodel.Change),
		buffer: buffer,
	}
	f.cancel = store.Subscribe(f.publish)
	return f
}

// Subscribe 返回变更通道与取消函数；通道关闭表示订阅已失效
func (f *ChangeFeed) Subscribe() (<-chan readmodel.Change, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	ch := make(chan readmodel.Change, f.buffer)
	f.subs[id] = ch
	return ch, func() { f.remove(id) }
}

func (f *ChangeFeed) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
}

func (f *ChangeFeed) publish(c readmodel.Change) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs {
		select {
		case ch <- c:
		default:
			log.Warn("视图消费过慢，断开订阅", "subscriber", id, "kind", c.Kind)
			delete(f.subs, id)
			close(ch)
		}
	}
	if c.Kind == readmodel.ChangeReset {
		f.dropAllLocked()
	}
}

// DropAll 关闭全部订阅，已缓冲的变更仍可读出
func (f *ChangeFeed) DropAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropAllLocked()
}

func (f *ChangeFeed) dropAllLocked() {
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

// Subscribers 当前订阅数
func (f *ChangeFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close 取消读模型订阅并关闭全部通道
func (f *ChangeFeed) Close() {
	f.cancel()
	f.DropAll()
}
