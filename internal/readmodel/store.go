package readmodel

import (
	"sync"
)

const (
	maxRecentNotifications = 50
	maxSeenPushIDs         = 4096
)

type messageCache struct {
	state      LoadState
	messages   []Message
	pagination *Pagination
}

// Store 读模型，所有可变缓存的唯一写入者
// REST 结果、推送事件、乐观写入都必须经过这里的合并方法，不允许外部直接赋值
type Store struct {
	mu sync.RWMutex

	selfID string
	open   string

	conversations map[string]*Conversation
	caches        map[string]*messageCache
	pushSeen      *seenSet

	notificationUnread int64
	notificationKnown  bool
	notifications      []Notification

	wishlist map[string]bool

	listenerMu   sync.RWMutex
	listeners    map[int]func(Change)
	nextListener int
}

func NewStore() *Store {
	s := &Store{listeners: make(map[int]func(Change))}
	s.resetLocked()
	return s
}

// Subscribe 注册变更监听，返回取消函数
// 监听函数在写锁释放后同步调用，可以安全地回读 Store
func (s *Store) Subscribe(fn func(Change)) func() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) emit(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	s.listenerMu.RLock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.RUnlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// SetSelf 设置当前用户，自己发出的消息不计入未读
func (s *Store) SetSelf(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfID = userID
}

// Self 当前用户
func (s *Store) Self() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selfID
}

// Reset 清空全部缓存，登出或切换用户时调用
func (s *Store) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	s.emit(Change{Kind: ChangeReset})
}

func (s *Store) resetLocked() {
	s.selfID = ""
	s.open = ""
	s.conversations = make(map[string]*Conversation)
	s.caches = make(map[string]*messageCache)
	s.pushSeen = newSeenSet(maxSeenPushIDs)
	s.notificationUnread = 0
	s.notificationKnown = false
	s.notifications = nil
	s.wishlist = make(map[string]bool)
}

// seenSet 有界的已处理推送 ID 集合，用于识别重复推送
type seenSet struct {
	limit int
	ids   map[string]struct{}
	order []string
}

func newSeenSet(limit int) *seenSet {
	return &seenSet{limit: limit, ids: make(map[string]struct{}, limit)}
}

func (s *seenSet) has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *seenSet) add(id string) {
	if s.has(id) {
		return
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.ids, oldest)
	}
}
