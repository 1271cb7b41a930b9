package api

import (
	"Storefront/internal/api/middleware"
	"Storefront/internal/pkg/capability"
	"Storefront/internal/pkg/consts"
	"Storefront/internal/pkg/logger"
	"Storefront/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouterOptions 路由依赖的非 Handler 组件
type RouterOptions struct {
	Sessions     service.SessionService
	AllowOrigins []string
	LogIndex     string
}

func SetupRouter(group *HandlersGroup, opts RouterOptions) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware(opts.AllowOrigins))
	logger.SetupGin(r, opts.LogIndex)

	auth := middleware.AuthMiddleware(opts.Sessions)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"code":    200,
				"message": "pong",
				"data":    nil,
			})
		})

		// 视图变更推送，令牌通过查询参数携带
		apiGroup.GET("/ws", group.WsHandler.Connect)

		sessionGroup := apiGroup.Group("/session")
		{
			sessionGroup.POST("", group.SessionHandler.Login)
			sessionGroup.PUT("", group.SessionHandler.Refresh)

			authGroup := sessionGroup.Group("")
			authGroup.Use(auth)
			{
				authGroup.GET("", group.SessionHandler.Current)
				authGroup.DELETE("", group.SessionHandler.Logout)
			}
		}

		authzGroup := apiGroup.Group("/authz")
		authzGroup.Use(auth)
		{
			authzGroup.POST("/check", group.AuthzHandler.Check)
			authzGroup.GET("/access", group.AuthzHandler.CanAccess)
			authzGroup.POST("/roles", group.AuthzHandler.RoleAllowed)
		}

		imGroup := apiGroup.Group("/conversations")
		imGroup.Use(auth, middleware.CheckPermissions(capability.ModeAny, consts.PermMessagesRead))
		{
			imGroup.GET("", group.IMHandler.GetConversationList)
			imGroup.POST("/sync", group.IMHandler.SyncConversations)
			imGroup.GET("/:id", group.IMHandler.GetConversation)
			imGroup.POST("/:id/open", group.IMHandler.OpenConversation)
			imGroup.POST("/:id/close", group.IMHandler.CloseConversation)
			imGroup.GET("/:id/messages", group.IMHandler.GetMessages)
			imGroup.POST("/:id/messages/older", group.IMHandler.LoadOlder)
			imGroup.POST("/:id/read", group.IMHandler.MarkAsRead)

			writeGroup := imGroup.Group("")
			writeGroup.Use(middleware.CheckPermissions(capability.ModeAny, consts.PermMessagesWrite))
			{
				writeGroup.POST("/:id/messages", group.IMHandler.SendMessage)
			}
		}

		notificationGroup := apiGroup.Group("/notifications")
		notificationGroup.Use(auth, middleware.CheckPermissions(capability.ModeAny, consts.PermNotificationsRead))
		{
			notificationGroup.GET("", group.NotificationHandler.GetNotificationList)
			notificationGroup.GET("/recent", group.NotificationHandler.GetRecent)
			notificationGroup.GET("/unread", group.NotificationHandler.GetUnreadCount)
			notificationGroup.POST("/read/all",
				middleware.CheckPermissions(capability.ModeAny, consts.PermNotificationsWrite),
				group.NotificationHandler.MarkAllRead)
		}

		wishlistGroup := apiGroup.Group("/wishlist")
		wishlistGroup.Use(auth)
		{
			wishlistGroup.GET("/:productId", group.WishlistHandler.GetStatus)
			wishlistGroup.POST("/batch", group.WishlistHandler.GetBatch)
			wishlistGroup.POST("/:productId/toggle",
				middleware.CheckPermissions(capability.ModeAny, consts.PermWishlistWrite),
				group.WishlistHandler.Toggle)
		}

		debugGroup := apiGroup.Group("/debug")
		debugGroup.Use(auth,
			middleware.CheckRoles(consts.RoleAdmin),
			middleware.CheckPermissions(capability.ModeAny, consts.PermGatewayRead))
		{
			debugGroup.GET("/gateway", group.DebugHandler.GatewayState)
		}
	}

	return r
}
