package handler

import (
	"Storefront/internal/api/dto"
	"Storefront/internal/pkg/batch"
	"Storefront/internal/pkg/capability"
	"Storefront/internal/pkg/consts"
	"Storefront/internal/pkg/response"
	"Storefront/internal/pkg/security"
	"Storefront/internal/pkg/socket"
	"Storefront/internal/readmodel"
	"Storefront/internal/service"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type result struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, r *gin.Engine, method, path, body string) result {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var res result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return res
}

// withCapabilities 模拟 AuthMiddleware 注入的权限快照
func withCapabilities(role *string, perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(consts.CtxCapabilities, capability.NewSet(perms, role))
		c.Next()
	}
}

func decision(t *testing.T, res result) bool {
	t.Helper()
	require.Equal(t, response.Ok, res.Code, res.Message)
	var d dto.DecisionDTO
	require.NoError(t, json.Unmarshal(res.Data, &d))
	return d.Allowed
}

func TestAuthzHandler(t *testing.T) {
	seller := "seller"
	h := NewAuthzHandler()
	r := gin.New()
	r.Use(withCapabilities(&seller, "orders:manage", "products:read"))
	r.POST("/check", h.Check)
	r.GET("/access", h.CanAccess)
	r.POST("/roles", h.RoleAllowed)

	assert.True(t, decision(t, do(t, r, http.MethodPost, "/check", `{"permissions":["orders:refund","x:y"]}`)))
	assert.False(t, decision(t, do(t, r, http.MethodPost, "/check", `{"permissions":["orders:refund","x:y"],"mode":"all"}`)))
	assert.False(t, decision(t, do(t, r, http.MethodPost, "/check", `{"permissions":[]}`)), "empty list is denied")
	assert.Equal(t, response.BadRequest, do(t, r, http.MethodPost, "/check", `{"permissions":["a"],"mode":"some"}`).Code)

	assert.True(t, decision(t, do(t, r, http.MethodGet, "/access?resource=products&action=read", "")))
	assert.False(t, decision(t, do(t, r, http.MethodGet, "/access?resource=products&action=write", "")))
	assert.Equal(t, response.BadRequest, do(t, r, http.MethodGet, "/access?resource=products", "").Code)

	assert.True(t, decision(t, do(t, r, http.MethodPost, "/roles", `{"roles":["admin","seller"]}`)))
	assert.False(t, decision(t, do(t, r, http.MethodPost, "/roles", `{"roles":["admin"]}`)))
}

type stubWishlist struct {
	mu        sync.Mutex
	state     map[string]readmodel.Membership
	toggleErr error
}

func (s *stubWishlist) IsInWishlist(productID string) readmodel.Membership {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[productID]
}

func (s *stubWishlist) Prefetch(productIDs []string) map[string]readmodel.Membership {
	out := make(map[string]readmodel.Membership, len(productIDs))
	for _, id := range productIDs {
		out[id] = s.IsInWishlist(id)
	}
	return out
}

func (s *stubWishlist) ToggleWishlist(_ context.Context, productID string) (readmodel.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior := s.state[productID]
	if s.toggleErr != nil {
		return prior, s.toggleErr
	}
	next := readmodel.MembershipOf(prior != readmodel.MembershipIn)
	s.state[productID] = next
	return next, nil
}

func (s *stubWishlist) Flush() error                { return nil }
func (s *stubWishlist) ResolverState() batch.State { return batch.StatePending }
func (s *stubWishlist) Reset()                      {}
func (s *stubWishlist) Close()                      {}

func TestWishlistHandler(t *testing.T) {
	stub := &stubWishlist{state: map[string]readmodel.Membership{"p1": readmodel.MembershipIn}}
	h := NewWishlistHandler(stub)
	r := gin.New()
	r.GET("/wishlist/:productId", h.GetStatus)
	r.POST("/wishlist/batch", h.GetBatch)
	r.POST("/wishlist/:productId/toggle", h.Toggle)

	res := do(t, r, http.MethodGet, "/wishlist/p2", "")
	assert.JSONEq(t, `{"productId":"p2","inWishlist":null}`, string(res.Data), "unknown is null")

	res = do(t, r, http.MethodPost, "/wishlist/batch", `{"productIds":["p1","p2"]}`)
	assert.JSONEq(t, `{"items":{"p1":true,"p2":null}}`, string(res.Data))
	assert.Equal(t, response.BadRequest, do(t, r, http.MethodPost, "/wishlist/batch", `{"productIds":[]}`).Code)

	res = do(t, r, http.MethodPost, "/wishlist/p1/toggle", "")
	assert.JSONEq(t, `{"productId":"p1","inWishlist":false}`, string(res.Data))

	stub.toggleErr = errors.New("boom")
	assert.Equal(t, response.InternalServerError, do(t, r, http.MethodPost, "/wishlist/p1/toggle", "").Code)
}

type stubSocket struct{}

func (stubSocket) State() socket.State { return socket.StateConnected }
func (stubSocket) Rooms() []string     { return []string{"c1"} }

func TestDebugHandler_GatewayState(t *testing.T) {
	store := readmodel.NewStore()
	store.SetSelf("u1")
	store.SetOpenConversation("c1")
	feed := service.NewChangeFeed(store, 4)
	defer feed.Close()

	h := NewDebugHandler(store, stubSocket{}, &stubWishlist{state: map[string]readmodel.Membership{}}, feed)
	r := gin.New()
	r.GET("/debug", h.GatewayState)

	res := do(t, r, http.MethodGet, "/debug", "")
	require.Equal(t, response.Ok, res.Code)
	var state dto.GatewayStateDTO
	require.NoError(t, json.Unmarshal(res.Data, &state))
	assert.Equal(t, "u1", state.UserID)
	assert.Equal(t, "c1", state.OpenConversation)
	assert.Equal(t, []string{"c1"}, state.Rooms)
	assert.Equal(t, socket.StateConnected.String(), state.Socket)
	assert.Equal(t, batch.StatePending.String(), state.WishlistResolver)
	assert.Empty(t, state.LoadedConversations)
}

type memRevocations struct {
	mu  sync.Mutex
	set map[string]bool
}

func (m *memRevocations) Revoke(_ context.Context, signature string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set[signature] = true
	return nil
}

func (m *memRevocations) IsRevoked(_ context.Context, signature string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set[signature], nil
}

func TestWsHandler_StreamsChanges(t *testing.T) {
	security.Init("ws-test-secret", "storefront")
	sessions := service.NewSessionService(&memRevocations{set: map[string]bool{}})
	token, err := security.GenerateToken("u1", nil, nil, time.Hour)
	require.NoError(t, err)
	_, err = sessions.Login(context.Background(), token)
	require.NoError(t, err)

	store := readmodel.NewStore()
	feed := service.NewChangeFeed(store, 8)
	defer feed.Close()

	r := gin.New()
	r.GET("/ws", NewWsHandler(sessions, feed).Connect)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() {
		_ = conn.Close()
	}()

	var change readmodel.Change
	require.NoError(t, conn.ReadJSON(&change))
	assert.Equal(t, readmodel.ChangeReset, change.Kind)

	require.Eventually(t, func() bool { return feed.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	store.SetNotificationUnread(4, readmodel.OriginPush)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&change))
	assert.Equal(t, readmodel.ChangeNotificationCount, change.Kind)
	assert.Equal(t, int64(4), change.Count)
}

// resetOnLogout 登出时清空读模型，对应同步网关的行为
type resetOnLogout struct{ store *readmodel.Store }

func (l resetOnLogout) OnLogin(context.Context, *service.Session)   {}
func (l resetOnLogout) OnRefresh(context.Context, *service.Session) {}
func (l resetOnLogout) OnLogout(context.Context, string)            { l.store.Reset() }

func TestWsHandler_ClosedWhenSessionSwitches(t *testing.T) {
	security.Init("ws-test-secret", "storefront")
	sessions := service.NewSessionService(&memRevocations{set: map[string]bool{}})
	store := readmodel.NewStore()
	feed := service.NewChangeFeed(store, 8)
	defer feed.Close()
	sessions.AddListener(resetOnLogout{store: store})

	token, err := security.GenerateToken("u1", nil, nil, time.Hour)
	require.NoError(t, err)
	_, err = sessions.Login(context.Background(), token)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/ws", NewWsHandler(sessions, feed).Connect)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() {
		_ = conn.Close()
	}()

	var change readmodel.Change
	require.NoError(t, conn.ReadJSON(&change))
	require.Eventually(t, func() bool { return feed.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	other, err := security.GenerateToken("u2", nil, nil, time.Hour)
	require.NoError(t, err)
	_, err = sessions.Login(context.Background(), other)
	require.NoError(t, err)

	// 旧用户的视图连接被关闭，不会收到新用户的变更
	store.SetNotificationUnread(9, readmodel.OriginPush)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	for {
		if err := conn.ReadJSON(&change); err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) {
				assert.False(t, netErr.Timeout(), "connection should be closed, not idle")
			}
			break
		}
		assert.NotEqual(t, readmodel.ChangeNotificationCount, change.Kind, "old view must not see the new session")
	}
	assert.Zero(t, feed.Subscribers())

	// 旧令牌已吊销，无法重新连接
	_, _, err = websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Error(t, err)
}

func TestWsHandler_RejectsForeignToken(t *testing.T) {
	security.Init("ws-test-secret", "storefront")
	sessions := service.NewSessionService(&memRevocations{set: map[string]bool{}})
	store := readmodel.NewStore()
	feed := service.NewChangeFeed(store, 8)
	defer feed.Close()

	r := gin.New()
	r.GET("/ws", NewWsHandler(sessions, feed).Connect)

	token, err := security.GenerateToken("u1", nil, nil, time.Hour)
	require.NoError(t, err)
	res := do(t, r, http.MethodGet, "/ws?token="+token, "")
	assert.Equal(t, response.Unauthorized, res.Code)
	assert.Zero(t, feed.Subscribers())
}

func TestSessionHandler_LoginCurrentLogout(t *testing.T) {
	security.Init("session-handler-secret", "storefront")
	sessions := service.NewSessionService(&memRevocations{set: map[string]bool{}})
	h := NewSessionHandler(sessions)
	r := gin.New()
	r.POST("/session", h.Login)
	r.PUT("/session", h.Refresh)
	r.GET("/session", h.Current)
	r.DELETE("/session", h.Logout)

	assert.Equal(t, response.Unauthorized, do(t, r, http.MethodGet, "/session", "").Code)
	assert.Equal(t, response.BadRequest, do(t, r, http.MethodPost, "/session", `{}`).Code)
	assert.Equal(t, response.Unauthorized, do(t, r, http.MethodPost, "/session", `{"token":"garbage"}`).Code)

	admin := consts.RoleAdmin
	token, err := security.GenerateToken("u1", &admin, []string{"messages:read"}, time.Hour)
	require.NoError(t, err)
	res := do(t, r, http.MethodPost, "/session", `{"token":"`+token+`"}`)
	require.Equal(t, response.Ok, res.Code, res.Message)

	var sess dto.SessionDTO
	require.NoError(t, json.Unmarshal(do(t, r, http.MethodGet, "/session", "").Data, &sess))
	assert.Equal(t, "u1", sess.UserID)
	require.NotNil(t, sess.Role)
	assert.Equal(t, consts.RoleAdmin, *sess.Role)
	assert.Equal(t, []string{"messages:read"}, sess.Permissions)
	assert.NotNil(t, sess.ExpiresAt)

	other, err := security.GenerateToken("u2", nil, nil, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, response.Unauthorized, do(t, r, http.MethodPut, "/session", `{"token":"`+other+`"}`).Code)

	assert.Equal(t, response.Ok, do(t, r, http.MethodDelete, "/session", "").Code)
	assert.Equal(t, response.Unauthorized, do(t, r, http.MethodGet, "/session", "").Code)
}
