package consts

// 本地接口使用的权限点
const (
	PermMessagesRead       = "messages:read"
	PermMessagesWrite      = "messages:write"
	PermNotificationsRead  = "notifications:read"
	PermNotificationsWrite = "notifications:write"
	PermWishlistWrite      = "wishlist:write"
	PermGatewayRead        = "gateway:read"
)

const RoleAdmin = "admin"
