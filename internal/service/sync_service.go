package service

import (
	"Storefront/internal/pkg/consts"
	"Storefront/internal/pkg/logger"
	"Storefront/internal/pkg/socket"
	"Storefront/internal/readmodel"
	"context"
	log "log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// TokenHolder 需要携带会话令牌的客户端
type TokenHolder interface {
	SetToken(token string)
}

// EventChannel 推送连接
type EventChannel interface {
	RoomChannel
	TokenHolder
	Run(ctx context.Context) error
	OnState(fn func(socket.State))
	LeaveAll()
}

// SyncService 同步网关：随会话启动推送连接，把 REST、推送、快照汇入同一个读模型
type SyncService interface {
	SessionListener
	BindEvents(c *socket.Client)
	Active() bool
	RefreshAll(ctx context.Context) error
	SaveSnapshot(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type syncServiceImpl struct {
	baseCtx      context.Context
	store        *readmodel.Store
	api          TokenHolder
	channel      EventChannel
	im           IMService
	notification NotificationService
	wishlist     WishlistService
	snapshots    readmodel.SnapshotStore

	// mu 串行化会话生命周期，stateMu 保护推送回调会读取的会话信息
	mu        sync.Mutex
	stop      context.CancelFunc
	done      chan struct{}
	stateMu   sync.RWMutex
	userID    string
	sessCtx   context.Context
	connected atomic.Bool
}

func NewSyncService(
	ctx context.Context,
	store *readmodel.Store,
	api TokenHolder,
	channel EventChannel,
	im IMService,
	notification NotificationService,
	wishlist WishlistService,
	snapshots readmodel.SnapshotStore,
) SyncService {
	s := &syncServiceImpl{
		baseCtx:      ctx,
		store:        store,
		api:          api,
		channel:      channel,
		im:           im,
		notification: notification,
		wishlist:     wishlist,
		snapshots:    snapshots,
	}
	channel.OnState(s.onState)
	return s
}

// BindEvents 注册服务端推送事件
func (s *syncServiceImpl) BindEvents(c *socket.Client) {
	socket.Subscribe(c, socket.EventNewMessage, s.onNewMessage)
	socket.Subscribe(c, socket.EventReadReceipt, s.onReadReceipt)
	socket.Subscribe(c, socket.EventNewNotification, s.onNewNotification)
	socket.Subscribe(c, socket.EventUnreadCount, s.onUnreadCount)
}

func (s *syncServiceImpl) onNewMessage(ctx context.Context, msg readmodel.Message) {
	s.im.HandleIncomingMessage(logger.WithTrace(ctx, consts.TracePrefixSocket), msg)
}

func (s *syncServiceImpl) onReadReceipt(ctx context.Context, receipt readmodel.ReadReceipt) {
	s.im.HandleReadReceipt(logger.WithTrace(ctx, consts.TracePrefixSocket), receipt)
}

func (s *syncServiceImpl) onNewNotification(ctx context.Context, n readmodel.Notification) {
	s.notification.HandleNew(logger.WithTrace(ctx, consts.TracePrefixSocket), n)
}

func (s *syncServiceImpl) onUnreadCount(ctx context.Context, payload socket.UnreadCountPayload) {
	s.notification.HandleUnreadCount(logger.WithTrace(ctx, consts.TracePrefixSocket), payload.Count)
}

// onState 首次连接由登录时的初始同步覆盖，之后每次重连都重新校准
func (s *syncServiceImpl) onState(st socket.State) {
	if st != socket.StateConnected {
		return
	}
	ctx, ok := s.sessionContext()
	if !ok {
		return
	}
	reconnected := s.connected.Swap(true)
	go func() {
		if open := s.store.OpenConversation(); open != "" {
			if err := s.channel.Join(open); err != nil {
				log.WarnContext(ctx, "重新加入当前会话失败", "conversationID", open, "err", err)
			}
		}
		if reconnected {
			log.InfoContext(ctx, "socket 已重连，重新校准读模型")
			_ = s.RefreshAll(logger.WithTrace(ctx, consts.TracePrefixSync))
		}
	}()
}

func (s *syncServiceImpl) sessionContext() (context.Context, bool) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.sessCtx == nil {
		return nil, false
	}
	return s.sessCtx, true
}

// OnLogin 绑定会话：设置令牌、恢复快照、启动推送连接与初始同步
func (s *syncServiceImpl) OnLogin(ctx context.Context, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if self := s.store.Self(); self != "" && self != sess.UserID {
		s.store.Reset()
	}
	s.store.SetSelf(sess.UserID)
	s.api.SetToken(sess.Token)
	s.channel.SetToken(sess.Token)
	s.restoreSnapshot(ctx, sess.UserID)

	sessCtx, stop := context.WithCancel(context.WithValue(s.baseCtx, logger.UserIDKey, sess.UserID))
	done := make(chan struct{})
	s.stop = stop
	s.done = done
	s.connected.Store(false)
	s.stateMu.Lock()
	s.userID = sess.UserID
	s.sessCtx = sessCtx
	s.stateMu.Unlock()

	go func() {
		defer close(done)
		if err := s.channel.Run(sessCtx); err != nil {
			log.ErrorContext(sessCtx, "socket 运行退出", "err", err)
		}
	}()
	go s.initialSync(logger.WithTrace(sessCtx, consts.TracePrefixSync))
}

func (s *syncServiceImpl) restoreSnapshot(ctx context.Context, userID string) {
	if s.snapshots == nil {
		return
	}
	snap, err := s.snapshots.Load(ctx, userID)
	if err != nil {
		log.WarnContext(ctx, "读取读模型快照失败", "userID", userID, "err", err)
		return
	}
	if s.store.Restore(snap) {
		log.InfoContext(ctx, "已恢复读模型快照", "userID", userID, "savedAt", snap.SavedAt)
	}
}

func (s *syncServiceImpl) initialSync(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error {
		if err := s.im.SyncConversations(ctx); err != nil {
			log.WarnContext(ctx, "初始同步会话列表失败", "err", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.notification.SyncUnreadCount(ctx); err != nil {
			log.WarnContext(ctx, "初始同步通知未读数失败", "err", err)
		}
		return nil
	})
	_ = g.Wait()
}

func (s *syncServiceImpl) OnRefresh(ctx context.Context, sess *Session) {
	s.api.SetToken(sess.Token)
	s.channel.SetToken(sess.Token)
	log.InfoContext(ctx, "会话令牌已刷新", "userID", sess.UserID)
}

// OnLogout 停止推送连接并清空读模型与快照
func (s *syncServiceImpl) OnLogout(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked(ctx)
	s.channel.LeaveAll()
	if s.snapshots != nil {
		if err := s.snapshots.Delete(ctx, userID); err != nil {
			log.WarnContext(ctx, "删除读模型快照失败", "userID", userID, "err", err)
		}
	}
	s.wishlist.Reset()
	s.store.Reset()
	s.api.SetToken("")
	s.channel.SetToken("")
}

func (s *syncServiceImpl) stopLocked(ctx context.Context) {
	if s.stop == nil {
		return
	}
	s.stateMu.Lock()
	s.userID = ""
	s.sessCtx = nil
	s.stateMu.Unlock()

	s.stop()
	select {
	case <-s.done:
	case <-ctx.Done():
		log.WarnContext(ctx, "等待 socket 退出超时")
	}
	s.stop = nil
	s.done = nil
}

func (s *syncServiceImpl) Active() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.userID != ""
}

// RefreshAll 重新拉取会话列表、已加载会话与通知未读数
func (s *syncServiceImpl) RefreshAll(ctx context.Context) error {
	if !s.Active() {
		return nil
	}
	var g errgroup.Group
	g.Go(func() error { return s.im.RefreshLoaded(ctx) })
	g.Go(func() error { return s.notification.SyncUnreadCount(ctx) })
	return g.Wait()
}

// SaveSnapshot 持久化当前读模型，未登录时跳过
func (s *syncServiceImpl) SaveSnapshot(ctx context.Context) error {
	if s.snapshots == nil || !s.Active() {
		return nil
	}
	snap := s.store.Snapshot(time.Now())
	if snap.UserID == "" {
		return nil
	}
	return s.snapshots.Save(ctx, snap)
}

// Shutdown 进程退出：保存快照后停止推送连接
func (s *syncServiceImpl) Shutdown(ctx context.Context) error {
	err := s.SaveSnapshot(ctx)
	if err != nil {
		log.ErrorContext(ctx, "保存读模型快照失败", "err", err)
	}
	s.mu.Lock()
	s.stopLocked(ctx)
	s.mu.Unlock()
	s.wishlist.Close()
	return err
}
