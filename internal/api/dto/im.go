package dto

import "Storefront/internal/readmodel"

// SendMessageReq 发送消息请求体
type SendMessageReq struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// ConversationListDTO 会话列表响应
type ConversationListDTO struct {
	Conversations []readmodel.Conversation `json:"conversations"`
	TotalUnread   int                      `json:"totalUnread"`
}

// MessagePageDTO 消息视图与当前打开的会话
type MessagePageDTO struct {
	readmodel.MessagePage
	Open bool `json:"open"`
}
