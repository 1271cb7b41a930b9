package readmodel

import (
	"context"
	"time"
)

// Snapshot 可持久化的读模型快照
// 只包含会话摘要与通知未读数，消息正文不落盘，打开会话时重新拉取
// 收藏状态只能由批量查询或 mutation 确定，不进入快照
type Snapshot struct {
	UserID             string         `json:"userId"`
	Conversations      []Conversation `json:"conversations"`
	NotificationUnread *int64         `json:"notificationUnread,omitempty"`
	SavedAt            time.Time      `json:"savedAt"`
}

// SnapshotStore 快照的持久化实现
type SnapshotStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	// Load 不存在时返回 nil, nil
	Load(ctx context.Context, userID string) (*Snapshot, error)
	Delete(ctx context.Context, userID string) error
}

// Snapshot 导出当前状态
func (s *Store) Snapshot(now time.Time) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		UserID:        s.selfID,
		Conversations: make([]Conversation, 0, len(s.conversations)),
		SavedAt:       now,
	}
	for _, conv := range s.conversations {
		snap.Conversations = append(snap.Conversations, cloneConversation(conv))
	}
	if s.notificationKnown {
		n := s.notificationUnread
		snap.NotificationUnread = &n
	}
	return snap
}

// Restore 用快照补齐尚未获取的数据，已有的数据不会被覆盖
// 快照属于其他用户时忽略并返回 false
func (s *Store) Restore(snap *Snapshot) bool {
	if snap == nil {
		return false
	}
	s.mu.Lock()
	if s.selfID != "" && snap.UserID != s.selfID {
		s.mu.Unlock()
		return false
	}
	if s.selfID == "" {
		s.selfID = snap.UserID
	}

	for _, in := range snap.Conversations {
		if in.ID == "" {
			continue
		}
		if _, ok := s.conversations[in.ID]; ok {
			continue
		}
		cloned := cloneConversation(&in)
		s.conversations[in.ID] = &cloned
	}
	if snap.NotificationUnread != nil && !s.notificationKnown {
		s.notificationUnread = *snap.NotificationUnread
		s.notificationKnown = true
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeReset, Origin: OriginREST})
	return true
}
