package service

import (
	"Storefront/internal/pkg/rest"
	"Storefront/internal/pkg/socket"
	"Storefront/internal/readmodel"
	"context"
	"errors"
	log "log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize   = 30
	refetchConcurrent = 4
)

// IMBackend 会话与消息 REST 接口
type IMBackend interface {
	ListConversations(ctx context.Context) ([]readmodel.Conversation, error)
	ListMessages(ctx context.Context, conversationID, before string, limit int) (*rest.MessagePage, error)
	SendMessage(ctx context.Context, conversationID, content string) (*readmodel.Message, error)
	MarkConversationRead(ctx context.Context, conversationID string) (int64, error)
}

// RoomChannel 会话房间订阅
type RoomChannel interface {
	Join(conversationID string) error
	Leave(conversationID string) error
}

// IMService 即时通讯服务接口定义
type IMService interface {
	SyncConversations(ctx context.Context) error
	GetConversationList() []readmodel.Conversation
	GetConversation(conversationID string) (readmodel.Conversation, error)
	OpenConversation(ctx context.Context, conversationID string) (readmodel.MessagePage, error)
	CloseConversation(conversationID string)
	GetMessages(conversationID string) readmodel.MessagePage
	LoadOlder(ctx context.Context, conversationID string) (readmodel.MessagePage, error)
	SendMessage(ctx context.Context, conversationID, content string) (*readmodel.Message, error)
	MarkAsRead(ctx context.Context, conversationID string) error
	TotalUnread() int
	RefreshLoaded(ctx context.Context) error
	HandleIncomingMessage(ctx context.Context, msg readmodel.Message)
	HandleReadReceipt(ctx context.Context, receipt readmodel.ReadReceipt)
}

type imServiceImpl struct {
	store    *readmodel.Store
	backend  IMBackend
	rooms    RoomChannel
	pageSize int
}

func NewIMService(store *readmodel.Store, backend IMBackend, rooms RoomChannel, pageSize int) IMService {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &imServiceImpl{
		store:    store,
		backend:  backend,
		rooms:    rooms,
		pageSize: pageSize,
	}
}

// SyncConversations 拉取会话列表并合并
func (s *imServiceImpl) SyncConversations(ctx context.Context) error {
	list, err := s.backend.ListConversations(ctx)
	if err != nil {
		return err
	}
	s.store.ApplyConversations(list)
	return nil
}

func (s *imServiceImpl) GetConversationList() []readmodel.Conversation {
	return s.store.Conversations()
}

func (s *imServiceImpl) GetConversation(conversationID string) (readmodel.Conversation, error) {
	conv, ok := s.store.Conversation(conversationID)
	if !ok {
		return readmodel.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// OpenConversation 打开会话：加入房间、标记已读，首次打开时拉取最新一页
func (s *imServiceImpl) OpenConversation(ctx context.Context, conversationID string) (readmodel.MessagePage, error) {
	if conversationID == "" {
		return readmodel.MessagePage{}, ErrParamInvalid
	}

	if prev := s.store.SetOpenConversation(conversationID); prev != "" && prev != conversationID {
		s.leave(ctx, prev)
	}
	if err := s.rooms.Join(conversationID); err != nil {
		// 断线期间不排队，重连后由网关重新加入当前会话
		if errors.Is(err, socket.ErrNotConnected) {
			log.InfoContext(ctx, "socket 未连接，暂不加入会话", "conversationID", conversationID)
		} else {
			log.WarnContext(ctx, "加入会话失败", "conversationID", conversationID, "err", err)
		}
	}

	if err := s.MarkAsRead(ctx, conversationID); err != nil {
		return readmodel.MessagePage{}, err
	}

	if s.store.BeginLoad(conversationID) {
		if err := s.fetchLatest(ctx, conversationID, true); err != nil {
			return s.store.Messages(conversationID), err
		}
	}
	return s.store.Messages(conversationID), nil
}

// CloseConversation 关闭会话，只有当前打开的会话才会被关闭
func (s *imServiceImpl) CloseConversation(conversationID string) {
	if s.store.OpenConversation() != conversationID {
		return
	}
	s.store.SetOpenConversation("")
	s.leave(context.Background(), conversationID)
}

func (s *imServiceImpl) leave(ctx context.Context, conversationID string) {
	if err := s.rooms.Leave(conversationID); err != nil {
		log.WarnContext(ctx, "离开会话失败", "conversationID", conversationID, "err", err)
	}
}

func (s *imServiceImpl) GetMessages(conversationID string) readmodel.MessagePage {
	return s.store.Messages(conversationID)
}

// LoadOlder 以最早一条消息为游标拉取更早的历史
func (s *imServiceImpl) LoadOlder(ctx context.Context, conversationID string) (readmodel.MessagePage, error) {
	current := s.store.Messages(conversationID)
	if current.Pagination != nil && !current.Pagination.HasMore {
		return current, nil
	}

	before := ""
	if current.Pagination != nil && current.Pagination.NextCursor != "" {
		before = current.Pagination.NextCursor
	} else if oldest, ok := s.store.OldestMessage(conversationID); ok {
		before = oldest.ID
	}

	page, err := s.backend.ListMessages(ctx, conversationID, before, s.pageSize)
	if err != nil {
		return current, err
	}
	s.store.ApplyMessages(conversationID, page.Messages, page.Pagination, readmodel.OriginREST)
	return s.store.Messages(conversationID), nil
}

// SendMessage 发送消息，服务端确认后的消息与推送走同一合并
func (s *imServiceImpl) SendMessage(ctx context.Context, conversationID, content string) (*readmodel.Message, error) {
	if conversationID == "" || strings.TrimSpace(content) == "" {
		return nil, ErrParamInvalid
	}
	msg, err := s.backend.SendMessage(ctx, conversationID, content)
	if err != nil {
		return nil, err
	}
	s.store.ApplyMessages(conversationID, []readmodel.Message{*msg}, nil, readmodel.OriginMutation)
	return msg, nil
}

// MarkAsRead 本地立即清零；服务端失败只记录日志，不回滚
func (s *imServiceImpl) MarkAsRead(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrParamInvalid
	}
	// 未读数以服务端为准，本地为 0 或会话尚未同步时同样需要通知服务端
	prior := s.store.MarkRead(conversationID)

	count, err := s.backend.MarkConversationRead(ctx, conversationID)
	if err != nil {
		log.WarnContext(ctx, "标记已读失败，保留本地已读状态",
			"conversationID", conversationID, "prior", prior, "err", err)
		return nil
	}
	s.store.SetUnreadCount(conversationID, int(count))
	return nil
}

func (s *imServiceImpl) TotalUnread() int {
	return s.store.TotalUnread()
}

// RefreshLoaded 同步会话列表，并重新拉取所有已加载会话的最新一页
func (s *imServiceImpl) RefreshLoaded(ctx context.Context) error {
	syncErr := s.SyncConversations(ctx)
	if syncErr != nil {
		log.WarnContext(ctx, "同步会话列表失败", "err", syncErr)
	}

	var g errgroup.Group
	g.SetLimit(refetchConcurrent)
	for _, id := range s.store.LoadedConversations() {
		if !s.store.BeginRefetch(id) {
			continue
		}
		g.Go(func() error {
			if err := s.fetchLatest(ctx, id, false); err != nil {
				log.WarnContext(ctx, "重新拉取会话消息失败", "conversationID", id, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return syncErr
}

// fetchLatest 拉取最新一页；重新拉取时不覆盖已有的分页游标
func (s *imServiceImpl) fetchLatest(ctx context.Context, conversationID string, withPagination bool) error {
	page, err := s.backend.ListMessages(ctx, conversationID, "", s.pageSize)
	if err != nil {
		s.store.FailLoad(conversationID)
		return err
	}
	var pagination *readmodel.Pagination
	if withPagination {
		pagination = page.Pagination
	}
	s.store.ApplyMessages(conversationID, page.Messages, pagination, readmodel.OriginREST)
	return nil
}

func (s *imServiceImpl) HandleIncomingMessage(ctx context.Context, msg readmodel.Message) {
	if msg.ID == "" || msg.ConversationID == "" {
		log.WarnContext(ctx, "忽略不完整的消息推送", "messageID", msg.ID, "conversationID", msg.ConversationID)
		return
	}
	s.store.ApplyIncomingMessage(msg)
}

func (s *imServiceImpl) HandleReadReceipt(ctx context.Context, receipt readmodel.ReadReceipt) {
	if receipt.ConversationID == "" {
		log.WarnContext(ctx, "忽略不完整的已读回执")
		return
	}
	s.store.ApplyReadReceipt(receipt)
}
