package handler

import (
	"Storefront/internal/pkg/response"
	"Storefront/internal/readmodel"
	"Storefront/internal/service"
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WsHandler 把读模型变更推送给视图
type WsHandler struct {
	sessionService service.SessionService
	feed           *service.ChangeFeed
}

func NewWsHandler(sessions service.SessionService, feed *service.ChangeFeed) *WsHandler {
	return &WsHandler{sessionService: sessions, feed: feed}
}

func (s *WsHandler) Connect(c *gin.Context) {
	// 鉴权
	token := c.Query("token")
	if token == "" {
		response.Error(c, service.ErrNotLoggedIn)
		return
	}
	sess, err := s.sessionService.Authenticate(c.Request.Context(), token)
	if err != nil {
		log.WarnContext(c.Request.Context(), "WS 鉴权失败", "err", err)
		response.Error(c, err)
		return
	}
	userID := sess.UserID

	// 升级 Websocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.ErrorContext(c.Request.Context(), "WS 协议升级失败", "err", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	changes, cancel := s.feed.Subscribe()
	defer cancel()

	log.InfoContext(c.Request.Context(), "视图 WS 连接已建立", "userID", userID)

	stopChan := make(chan struct{})

	// 读循环：监听视图主动断开
	go func() {
		defer close(stopChan)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// 连接建立时先发送 reset，视图据此重新读取全量状态
	if err := writeChange(conn, readmodel.Change{Kind: readmodel.ChangeReset}); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case change, ok := <-changes:
			if !ok {
				log.WarnContext(c.Request.Context(), "视图订阅已失效，断开连接", "userID", userID)
				return
			}
			// 订阅只属于建立连接时的会话用户
			if cur, ok := s.sessionService.Current(); !ok || cur.UserID != userID {
				log.InfoContext(c.Request.Context(), "会话已结束，断开视图连接", "userID", userID)
				return
			}
			if err := writeChange(conn, change); err != nil {
				log.WarnContext(c.Request.Context(), "WS 推送失败", "userID", userID, "err", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-stopChan:
			log.InfoContext(c.Request.Context(), "视图 WS 连接已断开", "userID", userID)
			return
		}
	}
}

func writeChange(conn *websocket.Conn, change readmodel.Change) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(change)
}
