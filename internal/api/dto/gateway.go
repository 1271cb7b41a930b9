package dto

// GatewayStateDTO 同步网关运行状态
type GatewayStateDTO struct {
	UserID              string   `json:"userId"`
	Socket              string   `json:"socket"`
	Rooms               []string `json:"rooms"`
	OpenConversation    string   `json:"openConversation"`
	LoadedConversations []string `json:"loadedConversations"`
	WishlistResolver    string   `json:"wishlistResolver"`
	ViewSubscribers     int      `json:"viewSubscribers"`
}
