package wire

import (
	"Storefront/internal/api"
	"Storefront/internal/api/config"
	"Storefront/internal/api/handler"
	"Storefront/internal/job"
	"Storefront/internal/pkg/clock"
	"Storefront/internal/pkg/cron"
	"Storefront/internal/pkg/logger"
	"Storefront/internal/pkg/redis"
	"Storefront/internal/pkg/rest"
	"Storefront/internal/pkg/security"
	"Storefront/internal/pkg/socket"
	"Storefront/internal/readmodel"
	"Storefront/internal/service"
	"context"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

const changeFeedBuffer = 64

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router   *gin.Engine
	Store    *readmodel.Store
	Sessions service.SessionService
	Sync     service.SyncService
	Feed     *service.ChangeFeed
	Socket   *socket.Client
	CronMgr  *cron.Manager
}

func BuildApplication(ctx context.Context, rdb goredis.Cmdable, cfg *config.Config) (*ApplicationContainer, error) {
	security.Init(cfg.Security.JWTSecret, cfg.Security.Issuer)

	revocations := redis.NewRevocationStore(rdb)
	snapshots := redis.NewSnapshotStore(rdb, time.Duration(cfg.Sync.SnapshotTTL)*time.Second)

	store := readmodel.NewStore()

	restClient := rest.NewClient(rest.Options{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    time.Duration(cfg.Backend.Timeout) * time.Second,
		RetryCount: cfg.Backend.RetryCount,
		RetryWait:  time.Duration(cfg.Backend.RetryWait) * time.Millisecond,
		Transport:  logger.NewBackendTransport(nil),
	})
	socketClient := socket.NewClient(socket.Options{
		URL:               cfg.Socket.URL,
		HandshakeTimeout:  time.Duration(cfg.Socket.HandshakeTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Socket.WriteTimeout) * time.Second,
		HeartbeatInterval: time.Duration(cfg.Socket.Heartbeat) * time.Second,
		ReconnectMin:      time.Duration(cfg.Socket.ReconnectMin) * time.Second,
		ReconnectMax:      time.Duration(cfg.Socket.ReconnectMax) * time.Second,
	})

	imService := service.NewIMService(store, restClient, socketClient, cfg.Backend.PageSize)
	notificationService := service.NewNotificationService(store, restClient)
	wishlistService := service.NewWishlistService(ctx, store, restClient,
		time.Duration(cfg.Wishlist.DebounceMs)*time.Millisecond, clock.Real())
	sessionService := service.NewSessionService(revocations)

	syncService := service.NewSyncService(ctx, store, restClient, socketClient,
		imService, notificationService, wishlistService, snapshots)
	syncService.BindEvents(socketClient)
	sessionService.AddListener(syncService)

	feed := service.NewChangeFeed(store, changeFeedBuffer)

	handlers := &api.HandlersGroup{
		SessionHandler:      handler.NewSessionHandler(sessionService),
		AuthzHandler:        handler.NewAuthzHandler(),
		IMHandler:           handler.NewIMHandler(imService),
		NotificationHandler: handler.NewNotificationHandler(notificationService),
		WishlistHandler:     handler.NewWishlistHandler(wishlistService),
		WsHandler:           handler.NewWsHandler(sessionService, feed),
		DebugHandler:        handler.NewDebugHandler(store, socketClient, wishlistService, feed),
	}

	router := api.SetupRouter(handlers, api.RouterOptions{
		Sessions:     sessionService,
		AllowOrigins: cfg.Server.AllowOrigins,
		LogIndex:     cfg.Logstash.Index,
	})

	cronMgr := cron.NewCronManager(cfg.Sync.RefetchSpec, cfg.Sync.SnapshotSpec,
		job.NewSyncRefreshJob(syncService), job.NewSnapshotJob(syncService))

	return &ApplicationContainer{
		Router:   router,
		Store:    store,
		Sessions: sessionService,
		Sync:     syncService,
		Feed:     feed,
		Socket:   socketClient,
		CronMgr:  cronMgr,
	}, nil
}
