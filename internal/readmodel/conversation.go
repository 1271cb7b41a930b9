package readmodel

import (
	"sort"
	"time"
)

// SetOpenConversation 记录视图当前打开的会话，空字符串表示没有打开的会话
// 返回之前打开的会话
func (s *Store) SetOpenConversation(conversationID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.open
	s.open = conversationID
	return prev
}

func (s *Store) OpenConversation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// LoadState 会话消息缓存状态
func (s *Store) LoadState(conversationID string) LoadState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.caches[conversationID]; ok {
		return c.state
	}
	return StateUnloaded
}

// BeginLoad 首次加载，Unloaded -> Loading
// 返回 false 表示已在加载或已加载，调用方无需再拉取
func (s *Store) BeginLoad(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[conversationID]
	if !ok {
		s.caches[conversationID] = &messageCache{state: StateLoading}
		return true
	}
	if c.state == StateUnloaded {
		c.state = StateLoading
		return true
	}
	return false
}

// BeginRefetch 后台重新拉取，Loaded -> Stale；未加载的会话按首次加载处理
func (s *Store) BeginRefetch(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[conversationID]
	if !ok {
		s.caches[conversationID] = &messageCache{state: StateLoading}
		return true
	}
	switch c.state {
	case StateUnloaded:
		c.state = StateLoading
		return true
	case StateLoaded:
		c.state = StateStale
		return true
	default:
		return false
	}
}

// FailLoad 拉取失败：Loading 回到 Unloaded，Stale 回到 Loaded，已缓存的消息保留
func (s *Store) FailLoad(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[conversationID]
	if !ok {
		return
	}
	switch c.state {
	case StateLoading:
		if len(c.messages) == 0 {
			delete(s.caches, conversationID)
			return
		}
		c.state = StateUnloaded
	case StateStale:
		c.state = StateLoaded
	}
}

// LoadedConversations 已加载完成、可以后台刷新的会话
func (s *Store) LoadedConversations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.caches))
	for id, c := range s.caches {
		if c.state == StateLoaded {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ApplyMessages 合并 REST 拉取或发送成功返回的消息
// REST 结果会建立缓存并进入 Loaded；发送结果落在尚未加载的会话上时只更新会话预览，历史消息仍在打开时懒加载
// 返回实际新增的条数
func (s *Store) ApplyMessages(conversationID string, msgs []Message, pagination *Pagination, origin Origin) int {
	s.mu.Lock()
	c, ok := s.caches[conversationID]
	if !ok && origin != OriginREST {
		for _, m := range msgs {
			s.pushSeen.add(m.ID)
		}
		changed := s.touchSummaryLocked(conversationID, msgs)
		s.mu.Unlock()
		if changed {
			s.emit(Change{Kind: ChangeConversation, Origin: origin, ConversationID: conversationID})
		}
		return 0
	}
	if !ok {
		c = &messageCache{}
		s.caches[conversationID] = c
	}

	merged, added := MergeMessages(c.messages, msgs)
	c.messages = merged
	for _, m := range msgs {
		s.pushSeen.add(m.ID)
	}
	if pagination != nil {
		p := *pagination
		c.pagination = &p
	}
	if origin == OriginREST {
		c.state = StateLoaded
	}
	summaryChanged := s.touchSummaryLocked(conversationID, msgs)
	s.mu.Unlock()

	var changes []Change
	if added > 0 || origin == OriginREST {
		changes = append(changes, Change{Kind: ChangeMessages, Origin: origin, ConversationID: conversationID, Count: int64(added)})
	}
	if summaryChanged {
		changes = append(changes, Change{Kind: ChangeConversation, Origin: origin, ConversationID: conversationID})
	}
	s.emit(changes...)
	return added
}

// ApplyIncomingMessage 处理推送的新消息
// 会话缓存存在时合并消息；不存在时只更新预览与未读数，不会触发拉取
// 未读数仅在会话未打开、消息不是自己发的、且该消息首次出现时加一
func (s *Store) ApplyIncomingMessage(msg Message) {
	if msg.ID == "" || msg.ConversationID == "" {
		return
	}

	s.mu.Lock()
	dup := s.pushSeen.has(msg.ID)
	s.pushSeen.add(msg.ID)

	added := 0
	if c, ok := s.caches[msg.ConversationID]; ok {
		if containsMessage(c.messages, msg.ID) {
			dup = true
		}
		c.messages, added = MergeMessages(c.messages, []Message{msg})
	}

	conv := s.ensureConversationLocked(msg.ConversationID)
	summaryChanged := false
	if sum, ok := newerSummary(conv.LastMessage, msg); ok {
		conv.LastMessage = sum
		summaryChanged = true
	}
	unreadChanged := false
	if !dup && msg.ConversationID != s.open && (s.selfID == "" || msg.SenderID != s.selfID) {
		conv.UnreadCount++
		unreadChanged = true
	}
	s.mu.Unlock()

	var changes []Change
	if added > 0 {
		changes = append(changes, Change{Kind: ChangeMessages, Origin: OriginPush, ConversationID: msg.ConversationID, Count: int64(added)})
	}
	if summaryChanged || unreadChanged {
		changes = append(changes, Change{Kind: ChangeConversation, Origin: OriginPush, ConversationID: msg.ConversationID})
	}
	s.emit(changes...)
}

// ApplyConversations 合并会话列表快照
// 按 ID upsert，未读数与预览以服务端为准（后到者覆盖），列表中未出现的会话保留
func (s *Store) ApplyConversations(list []Conversation) {
	s.mu.Lock()
	changes := make([]Change, 0, len(list))
	for _, in := range list {
		if in.ID == "" {
			continue
		}
		conv := s.ensureConversationLocked(in.ID)
		conv.ParticipantIDs = append([]string(nil), in.ParticipantIDs...)
		conv.UnreadCount = in.UnreadCount
		if in.LastMessage != nil {
			sum := *in.LastMessage
			conv.LastMessage = &sum
		}
		if in.PeerReadAt != nil && (conv.PeerReadAt == nil || in.PeerReadAt.After(*conv.PeerReadAt)) {
			t := *in.PeerReadAt
			conv.PeerReadAt = &t
		}
		changes = append(changes, Change{Kind: ChangeConversation, Origin: OriginREST, ConversationID: in.ID})
	}
	s.mu.Unlock()
	s.emit(changes...)
}

// MarkRead 本地立即清零未读数，返回清零前的值
// 服务端调用失败时不会回滚
func (s *Store) MarkRead(conversationID string) int {
	s.mu.Lock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		s.mu.Unlock()
		return 0
	}
	prior := conv.UnreadCount
	conv.UnreadCount = 0
	s.mu.Unlock()

	if prior != 0 {
		s.emit(Change{Kind: ChangeConversation, Origin: OriginOptimistic, ConversationID: conversationID})
	}
	return prior
}

// SetUnreadCount 用服务端返回的未读数覆盖本地值
func (s *Store) SetUnreadCount(conversationID string, n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	conv := s.ensureConversationLocked(conversationID)
	changed := conv.UnreadCount != n
	conv.UnreadCount = n
	s.mu.Unlock()
	if changed {
		s.emit(Change{Kind: ChangeConversation, Origin: OriginREST, ConversationID: conversationID})
	}
}

// ApplyReadReceipt 已读回执
// 对方的回执只更新 PeerReadAt；自己在其他设备上的回执等同于已读，清零未读数
func (s *Store) ApplyReadReceipt(r ReadReceipt) {
	if r.ConversationID == "" {
		return
	}
	s.mu.Lock()
	conv, ok := s.conversations[r.ConversationID]
	if !ok {
		s.mu.Unlock()
		return
	}
	changed := false
	if s.selfID != "" && r.UserID == s.selfID {
		if conv.UnreadCount != 0 {
			conv.UnreadCount = 0
			changed = true
		}
	} else if conv.PeerReadAt == nil || r.ReadAt.After(*conv.PeerReadAt) {
		t := r.ReadAt
		conv.PeerReadAt = &t
		changed = true
	}
	s.mu.Unlock()
	if changed {
		s.emit(Change{Kind: ChangeConversation, Origin: OriginPush, ConversationID: r.ConversationID})
	}
}

// Conversation 单个会话的副本
func (s *Store) Conversation(conversationID string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return Conversation{}, false
	}
	return cloneConversation(conv), true
}

// Conversations 会话列表，按最后一条消息时间倒序
func (s *Store) Conversations() []Conversation {
	s.mu.RLock()
	res := make([]Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		res = append(res, cloneConversation(conv))
	}
	s.mu.RUnlock()

	sort.SliceStable(res, func(i, j int) bool {
		ti, tj := lastActivity(res[i]), lastActivity(res[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return res[i].ID < res[j].ID
	})
	return res
}

// TotalUnread 所有会话未读数之和
func (s *Store) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, conv := range s.conversations {
		total += conv.UnreadCount
	}
	return total
}

// Messages 当前缓存的消息，按 CreatedAt、ID 排序
func (s *Store) Messages(conversationID string) MessagePage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page := MessagePage{ConversationID: conversationID, State: StateUnloaded, Messages: []Message{}}
	c, ok := s.caches[conversationID]
	if !ok {
		return page
	}
	page.State = c.state
	page.Messages = OrderedMessages(c.messages)
	if c.pagination != nil {
		p := *c.pagination
		page.Pagination = &p
	}
	return page
}

// OldestMessage 用于向前翻页的游标
func (s *Store) OldestMessage(conversationID string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.caches[conversationID]
	if !ok || len(c.messages) == 0 {
		return Message{}, false
	}
	ordered := OrderedMessages(c.messages)
	return ordered[0], true
}

func (s *Store) ensureConversationLocked(id string) *Conversation {
	conv, ok := s.conversations[id]
	if !ok {
		conv = &Conversation{ID: id}
		s.conversations[id] = conv
	}
	return conv
}

func (s *Store) touchSummaryLocked(conversationID string, msgs []Message) bool {
	m, ok := latest(msgs)
	if !ok {
		return false
	}
	conv := s.ensureConversationLocked(conversationID)
	sum, changed := newerSummary(conv.LastMessage, m)
	if changed {
		conv.LastMessage = sum
	}
	return changed
}

func containsMessage(msgs []Message, id string) bool {
	for _, m := range msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}

func cloneConversation(c *Conversation) Conversation {
	out := *c
	out.ParticipantIDs = append([]string(nil), c.ParticipantIDs...)
	if c.LastMessage != nil {
		sum := *c.LastMessage
		out.LastMessage = &sum
	}
	if c.PeerReadAt != nil {
		t := *c.PeerReadAt
		out.PeerReadAt = &t
	}
	return out
}

func lastActivity(c Conversation) time.Time {
	if c.LastMessage == nil {
		return time.Time{}
	}
	return c.LastMessage.CreatedAt
}
