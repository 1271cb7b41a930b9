package handler

import (
	"Storefront/internal/api/dto"
	"Storefront/internal/pkg/response"
	"Storefront/internal/pkg/socket"
	"Storefront/internal/readmodel"
	"Storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// SocketInspector 长连接的只读视图
type SocketInspector interface {
	State() socket.State
	Rooms() []string
}

type DebugHandler struct {
	store           *readmodel.Store
	socket          SocketInspector
	wishlistService service.WishlistService
	feed            *service.ChangeFeed
}

func NewDebugHandler(store *readmodel.Store, inspector SocketInspector, wishlist service.WishlistService, feed *service.ChangeFeed) *DebugHandler {
	return &DebugHandler{store: store, socket: inspector, wishlistService: wishlist, feed: feed}
}

// GatewayState 同步网关当前运行状态
func (s *DebugHandler) GatewayState(c *gin.Context) {
	rooms := s.socket.Rooms()
	if rooms == nil {
		rooms = []string{}
	}
	loaded := s.store.LoadedConversations()
	if loaded == nil {
		loaded = []string{}
	}
	response.Success(c, dto.GatewayStateDTO{
		UserID:              s.store.Self(),
		Socket:              s.socket.State().String(),
		Rooms:               rooms,
		OpenConversation:    s.store.OpenConversation(),
		LoadedConversations: loaded,
		WishlistResolver:    s.wishlistService.ResolverState().String(),
		ViewSubscribers:     s.feed.Subscribers(),
	})
}
