package api

import "Storefront/internal/api/handler"

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	SessionHandler      *handler.SessionHandler
	AuthzHandler        *handler.AuthzHandler
	IMHandler           *handler.IMHandler
	NotificationHandler *handler.NotificationHandler
	WishlistHandler     *handler.WishlistHandler
	WsHandler           *handler.WsHandler
	DebugHandler        *handler.DebugHandler
}
