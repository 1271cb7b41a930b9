package service

import (
	"Storefront/internal/readmodel"
	"context"
	log "log/slog"
)

// NotificationBackend 系统通知 REST 接口
type NotificationBackend interface {
	NotificationUnreadCount(ctx context.Context) (int64, error)
	ListNotifications(ctx context.Context, page, limit int) ([]readmodel.Notification, *readmodel.Pagination, error)
	MarkAllNotificationsRead(ctx context.Context) error
}

// NotificationService 通知未读数与最近通知
type NotificationService interface {
	SyncUnreadCount(ctx context.Context) error
	GetUnreadCount() (int64, bool)
	GetNotificationList(ctx context.Context, page, limit int) ([]readmodel.Notification, *readmodel.Pagination, error)
	RecentNotifications() []readmodel.Notification
	MarkAllRead(ctx context.Context) error
	HandleNew(ctx context.Context, n readmodel.Notification)
	HandleUnreadCount(ctx context.Context, count int64)
}

type notificationServiceImpl struct {
	store   *readmodel.Store
	backend NotificationBackend
}

func NewNotificationService(store *readmodel.Store, backend NotificationBackend) NotificationService {
	return &notificationServiceImpl{store: store, backend: backend}
}

// SyncUnreadCount 以服务端未读数替换本地值
func (s *notificationServiceImpl) SyncUnreadCount(ctx context.Context) error {
	count, err := s.backend.NotificationUnreadCount(ctx)
	if err != nil {
		return err
	}
	s.store.SetNotificationUnread(count, readmodel.OriginREST)
	return nil
}

func (s *notificationServiceImpl) GetUnreadCount() (int64, bool) {
	return s.store.NotificationUnread()
}

func (s *notificationServiceImpl) GetNotificationList(ctx context.Context, page, limit int) ([]readmodel.Notification, *readmodel.Pagination, error) {
	if page <= 0 || limit <= 0 {
		return nil, nil, ErrParamInvalid
	}
	list, pagination, err := s.backend.ListNotifications(ctx, page, limit)
	if err != nil {
		return nil, nil, err
	}
	s.store.ApplyNotifications(list)
	return list, pagination, nil
}

func (s *notificationServiceImpl) RecentNotifications() []readmodel.Notification {
	return s.store.Notifications()
}

// MarkAllRead 本地立即清零，失败时返回错误但不回滚，等待下一次推送或同步校准
func (s *notificationServiceImpl) MarkAllRead(ctx context.Context) error {
	prior := s.store.MarkAllNotificationsRead()
	if err := s.backend.MarkAllNotificationsRead(ctx); err != nil {
		log.WarnContext(ctx, "通知全部已读失败", "prior", prior, "err", err)
		return err
	}
	return nil
}

// HandleNew 新通知只进入最近列表，未读数以服务端推送为准
func (s *notificationServiceImpl) HandleNew(ctx context.Context, n readmodel.Notification) {
	if n.ID == "" {
		log.WarnContext(ctx, "忽略缺少 ID 的通知推送")
		return
	}
	s.store.AddNotification(n, readmodel.OriginPush)
}

func (s *notificationServiceImpl) HandleUnreadCount(ctx context.Context, count int64) {
	s.store.SetNotificationUnread(count, readmodel.OriginPush)
}
