package rest

import (
	"Storefront/internal/readmodel"
	"time"

	"github.com/jinzhu/copier"
)

// PaginationDTO 服务端分页
type PaginationDTO struct {
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Total      int    `json:"total"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor"`
}

type ParticipantDTO struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

type MessageDTO struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

type ConversationDTO struct {
	ID           string           `json:"id"`
	Participants []ParticipantDTO `json:"participants"`
	UnreadCount  int              `json:"unreadCount"`
	LastMessage  *MessageDTO      `json:"lastMessage"`
	PeerReadAt   *time.Time       `json:"peerReadAt"`
}

type NotificationDTO struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Payload   map[string]any `json:"payload"`
	IsRead    bool           `json:"isRead"`
	CreatedAt time.Time      `json:"createdAt"`
}

type UnreadCountDTO struct {
	Count int64 `json:"count"`
}

type SendMessageReq struct {
	Content string `json:"content"`
}

type WishlistCheckReq struct {
	ProductIDs []string `json:"productIds"`
}

type WishlistItemReq struct {
	ProductID string `json:"productId"`
}

func (p *PaginationDTO) toModel() *readmodel.Pagination {
	if p == nil {
		return nil
	}
	res := &readmodel.Pagination{}
	_ = copier.Copy(res, p)
	return res
}

func toMessages(list []MessageDTO) []readmodel.Message {
	res := make([]readmodel.Message, 0, len(list))
	if err := copier.Copy(&res, &list); err != nil {
		res = res[:0]
		for _, m := range list {
			res = append(res, m.toModel())
		}
	}
	return res
}

func (m MessageDTO) toModel() readmodel.Message {
	return readmodel.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

func (c ConversationDTO) toModel() readmodel.Conversation {
	conv := readmodel.Conversation{
		ID:             c.ID,
		ParticipantIDs: make([]string, 0, len(c.Participants)),
		UnreadCount:    c.UnreadCount,
		PeerReadAt:     c.PeerReadAt,
	}
	for _, p := range c.Participants {
		conv.ParticipantIDs = append(conv.ParticipantIDs, p.ID)
	}
	if c.LastMessage != nil {
		conv.LastMessage = &readmodel.MessageSummary{
			MessageID: c.LastMessage.ID,
			SenderID:  c.LastMessage.SenderID,
			Content:   c.LastMessage.Content,
			CreatedAt: c.LastMessage.CreatedAt,
		}
	}
	return conv
}

func toNotifications(list []NotificationDTO) []readmodel.Notification {
	res := make([]readmodel.Notification, 0, len(list))
	_ = copier.Copy(&res, &list)
	return res
}
