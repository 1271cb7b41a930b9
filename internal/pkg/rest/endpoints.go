package rest

import (
	"Storefront/internal/readmodel"
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-resty/resty/v2"
)

// MessagePage 一页历史消息
type MessagePage struct {
	Messages   []readmodel.Message
	Pagination *readmodel.Pagination
}

// ListConversations 会话列表
func (c *Client) ListConversations(ctx context.Context) ([]readmodel.Conversation, error) {
	env, err := do[[]ConversationDTO](ctx, c, http.MethodGet, "/conversations", nil)
	if err != nil {
		return nil, err
	}
	res := make([]readmodel.Conversation, 0, len(env.Data))
	for _, dto := range env.Data {
		res = append(res, dto.toModel())
	}
	return res, nil
}

// ListMessages 拉取会话消息，before 为空时取最新一页
func (c *Client) ListMessages(ctx context.Context, conversationID, before string, limit int) (*MessagePage, error) {
	env, err := do[[]MessageDTO](ctx, c, http.MethodGet, "/conversations/{id}/messages", func(r *resty.Request) {
		r.SetPathParam("id", conversationID)
		if before != "" {
			r.SetQueryParam("before", before)
		}
		if limit > 0 {
			r.SetQueryParam("limit", strconv.Itoa(limit))
		}
	})
	if err != nil {
		return nil, err
	}
	msgs := toMessages(env.Data)
	for i := range msgs {
		if msgs[i].ConversationID == "" {
			msgs[i].ConversationID = conversationID
		}
	}
	return &MessagePage{Messages: msgs, Pagination: env.Pagination.toModel()}, nil
}

// SendMessage 发送消息，返回服务端确认后的消息
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (*readmodel.Message, error) {
	env, err := do[MessageDTO](ctx, c, http.MethodPost, "/conversations/{id}/messages", func(r *resty.Request) {
		r.SetPathParam("id", conversationID).SetBody(SendMessageReq{Content: content})
	})
	if err != nil {
		return nil, err
	}
	msg := env.Data.toModel()
	if msg.ConversationID == "" {
		msg.ConversationID = conversationID
	}
	return &msg, nil
}

// MarkConversationRead 标记会话已读，返回服务端确认的未读数
func (c *Client) MarkConversationRead(ctx context.Context, conversationID string) (int64, error) {
	env, err := do[UnreadCountDTO](ctx, c, http.MethodPost, "/conversations/{id}/read", func(r *resty.Request) {
		r.SetPathParam("id", conversationID)
	})
	if err != nil {
		return 0, err
	}
	return env.Data.Count, nil
}

// NotificationUnreadCount 通知未读数
func (c *Client) NotificationUnreadCount(ctx context.Context) (int64, error) {
	env, err := do[UnreadCountDTO](ctx, c, http.MethodGet, "/notifications/unread-count", nil)
	if err != nil {
		return 0, err
	}
	return env.Data.Count, nil
}

// ListNotifications 通知列表
func (c *Client) ListNotifications(ctx context.Context, page, limit int) ([]readmodel.Notification, *readmodel.Pagination, error) {
	env, err := do[[]NotificationDTO](ctx, c, http.MethodGet, "/notifications", func(r *resty.Request) {
		r.SetQueryParamsFromValues(url.Values{
			"page":  []string{strconv.Itoa(page)},
			"limit": []string{strconv.Itoa(limit)},
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return toNotifications(env.Data), env.Pagination.toModel(), nil
}

// MarkAllNotificationsRead 全部通知已读
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := do[UnreadCountDTO](ctx, c, http.MethodPost, "/notifications/read-all", nil)
	return err
}

// CheckWishlist 批量查询收藏状态，响应中缺失的商品视为未知
func (c *Client) CheckWishlist(ctx context.Context, productIDs []string) (map[string]bool, error) {
	env, err := do[map[string]bool](ctx, c, http.MethodPost, "/wishlist/check", func(r *resty.Request) {
		r.SetBody(WishlistCheckReq{ProductIDs: productIDs})
	})
	if err != nil {
		return nil, err
	}
	if env.Data == nil {
		return map[string]bool{}, nil
	}
	return env.Data, nil
}

// AddToWishlist 收藏商品
func (c *Client) AddToWishlist(ctx context.Context, productID string) error {
	_, err := do[map[string]any](ctx, c, http.MethodPost, "/wishlist", func(r *resty.Request) {
		r.SetBody(WishlistItemReq{ProductID: productID})
	})
	return err
}

// RemoveFromWishlist 取消收藏
func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) error {
	_, err := do[map[string]any](ctx, c, http.MethodDelete, "/wishlist/{productId}", func(r *resty.Request) {
		r.SetPathParam("productId", productID)
	})
	return err
}
