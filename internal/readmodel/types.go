package readmodel

import "time"

// LoadState 会话消息缓存状态: Unloaded -> Loading -> Loaded -> Stale(已加载，后台重新拉取中)
type LoadState int8

const (
	StateUnloaded LoadState = iota
	StateLoading
	StateLoaded
	StateStale
)

func (s LoadState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateStale:
		return "stale-refetching"
	default:
		return "unknown"
	}
}

// Origin 事实来源，仅用于日志与变更通知
type Origin string

const (
	OriginREST       Origin = "rest"
	OriginPush       Origin = "push"
	OriginOptimistic Origin = "optimistic"
	OriginMutation   Origin = "mutation"
)

// Message 会话消息，只追加，按 ID 唯一
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MessageSummary 会话列表中的最后一条消息预览
type MessageSummary struct {
	MessageID string    `json:"messageId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation 会话
type Conversation struct {
	ID             string          `json:"id"`
	ParticipantIDs []string        `json:"participantIds"`
	UnreadCount    int             `json:"unreadCount"`
	LastMessage    *MessageSummary `json:"lastMessage,omitempty"`
	// PeerReadAt 对方最近一次已读回执时间
	PeerReadAt *time.Time `json:"peerReadAt,omitempty"`
}

// Pagination 服务端分页信息，原样保存
type Pagination struct {
	Page       int    `json:"page,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Total      int    `json:"total,omitempty"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// MessagePage 某会话当前缓存的消息视图
type MessagePage struct {
	ConversationID string      `json:"conversationId"`
	State          LoadState   `json:"state"`
	Messages       []Message   `json:"messages"`
	Pagination     *Pagination `json:"pagination,omitempty"`
}

// Notification 系统通知
type Notification struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Payload   map[string]any `json:"payload,omitempty"`
	IsRead    bool           `json:"isRead"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ReadReceipt 对方已读回执
type ReadReceipt struct {
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	ReadAt         time.Time `json:"readAt"`
}

// Membership 收藏状态三态：未知 / 已收藏 / 未收藏
type Membership int8

const (
	MembershipUnknown Membership = iota
	MembershipIn
	MembershipOut
)

// MembershipOf 把布尔结果转换为确定状态
func MembershipOf(in bool) Membership {
	if in {
		return MembershipIn
	}
	return MembershipOut
}

// Known 是否已确定
func (m Membership) Known() bool { return m != MembershipUnknown }

func (m Membership) String() string {
	switch m {
	case MembershipIn:
		return "in"
	case MembershipOut:
		return "out"
	default:
		return "unknown"
	}
}

// MarshalJSON 未知输出为 null
func (m Membership) MarshalJSON() ([]byte, error) {
	switch m {
	case MembershipIn:
		return []byte("true"), nil
	case MembershipOut:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// ChangeKind 变更类型
type ChangeKind string

const (
	ChangeConversation      ChangeKind = "conversation_updated"
	ChangeMessages          ChangeKind = "messages_updated"
	ChangeNotificationCount ChangeKind = "unread_count"
	ChangeNotification      ChangeKind = "notification_added"
	ChangeWishlist          ChangeKind = "wishlist_updated"
	ChangeReset             ChangeKind = "reset"
)

// Change 读模型变更通知，推送给视图层
type Change struct {
	Kind           ChangeKind `json:"kind"`
	Origin         Origin     `json:"origin,omitempty"`
	ConversationID string     `json:"conversationId,omitempty"`
	ProductIDs     []string   `json:"productIds,omitempty"`
	Count          int64      `json:"count,omitempty"`
}
