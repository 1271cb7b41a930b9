package socket

import (
	"github.com/goccy/go-json"
)

// 服务端下发事件
const (
	EventNewMessage      = "new_message"
	EventNewNotification = "new_notification"
	EventUnreadCount     = "unread_count"
	EventReadReceipt     = "read_receipt"
)

// 客户端上行事件
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventPing              = "ping"
	EventPong              = "pong"
)

// Envelope 帧格式 {"event": "...", "data": {...}, "ref": "..."}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ref   string          `json:"ref,omitempty"`
}

// RoomPayload 加入/离开会话房间
type RoomPayload struct {
	ConversationID string `json:"conversationId"`
}

// UnreadCountPayload 通知未读数
type UnreadCountPayload struct {
	Count int64 `json:"count"`
}

// State 连接状态
type State int8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}
