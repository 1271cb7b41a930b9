package middleware

import (
	"Storefront/internal/api/dto"
	"Storefront/internal/pkg/capability"
	"Storefront/internal/pkg/consts"
	"Storefront/internal/pkg/logger"
	"Storefront/internal/pkg/response"
	"Storefront/internal/pkg/security"
	"Storefront/internal/service"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
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

func newSessions(t *testing.T) service.SessionService {
	t.Helper()
	security.Init("middleware-test-secret", "storefront")
	return service.NewSessionService(&memRevocations{set: map[string]bool{}})
}

func login(t *testing.T, sessions service.SessionService, userID string, role *string, perms ...string) string {
	t.Helper()
	token, err := security.GenerateToken(userID, role, perms, time.Hour)
	require.NoError(t, err)
	_, err = sessions.Login(context.Background(), token)
	require.NoError(t, err)
	return token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var res dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func protectedRouter(sessions service.SessionService, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(sessions)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		userID, _ := c.Request.Context().Value(logger.UserIDKey).(string)
		response.Success(c, gin.H{"userId": c.GetString(consts.CtxUserID), "ctxUser": userID})
	})
	r.GET("/protected", handlers...)
	return r
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	r := protectedRouter(newSessions(t))

	res := decode(t, serve(r, http.MethodGet, "/protected", ""))
	assert.Equal(t, response.Unauthorized, res.Code)
}

func TestAuthMiddleware_TokenMustBelongToSession(t *testing.T) {
	sessions := newSessions(t)
	r := protectedRouter(sessions)

	other, err := security.GenerateToken("u2", nil, nil, time.Hour)
	require.NoError(t, err)
	res := decode(t, serve(r, http.MethodGet, "/protected", other))
	assert.Equal(t, response.Unauthorized, res.Code, "no active session")

	token := login(t, sessions, "u1", nil)
	res = decode(t, serve(r, http.MethodGet, "/protected", token))
	require.Equal(t, response.Ok, res.Code)
	data := res.Data.(map[string]any)
	assert.Equal(t, "u1", data["userId"])
	assert.Equal(t, "u1", data["ctxUser"])

	res = decode(t, serve(r, http.MethodGet, "/protected", other))
	assert.NotEqual(t, response.Ok, res.Code, "token of another user is rejected")
}

func TestCheckPermissions(t *testing.T) {
	sessions := newSessions(t)
	token := login(t, sessions, "u1", nil, "messages:manage")

	anyRouter := protectedRouter(sessions, CheckPermissions(capability.ModeAny, consts.PermMessagesWrite, consts.PermGatewayRead))
	assert.Equal(t, response.Ok, decode(t, serve(anyRouter, http.MethodGet, "/protected", token)).Code)

	allRouter := protectedRouter(sessions, CheckPermissions(capability.ModeAll, consts.PermMessagesWrite, consts.PermGatewayRead))
	assert.Equal(t, response.Forbidden, decode(t, serve(allRouter, http.MethodGet, "/protected", token)).Code)
}

func TestCheckRoles(t *testing.T) {
	sessions := newSessions(t)
	admin := consts.RoleAdmin
	r := protectedRouter(sessions, CheckRoles(consts.RoleAdmin))

	token := login(t, sessions, "u1", nil, "*")
	assert.Equal(t, response.Forbidden, decode(t, serve(r, http.MethodGet, "/protected", token)).Code, "no role")

	token = login(t, sessions, "u1", &admin)
	assert.Equal(t, response.Ok, decode(t, serve(r, http.MethodGet, "/protected", token)).Code)
}

func TestCapabilities_EmptyWithoutAuth(t *testing.T) {
	r := gin.New()
	r.GET("/open", CheckPermissions(capability.ModeAny, consts.PermMessagesRead), func(c *gin.Context) {
		response.Success(c, nil)
	})
	assert.Equal(t, response.Forbidden, decode(t, serve(r, http.MethodGet, "/open", "")).Code)
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"http://view.local"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://view.local")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://view.local", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.local")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestTraceMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(TraceMiddleware())
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, logger.TraceID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Trace-ID", "given-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "given-id", w.Body.String())
	assert.Equal(t, "given-id", w.Header().Get("X-Trace-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get("X-Trace-ID"))
}

func TestAudit_RedactsTokens(t *testing.T) {
	assert.Equal(t, "page=2&token=[REDACTED]", redactQuery("token=abc&page=2"))
	assert.Equal(t, "page=2", redactQuery("page=2"))

	body := redactBody([]byte(`{"token":"secret-jwt","name":"x"}`))
	assert.NotContains(t, body, "secret-jwt")
	assert.Contains(t, body, redacted)

	assert.Equal(t, `{"name":"x"}`, redactBody([]byte(`{"name":"x"}`)))
	assert.Equal(t, "not json", redactBody([]byte("not json")))
}

func TestAuditMiddleware_PassesBodyThrough(t *testing.T) {
	r := gin.New()
	r.Use(AuditMiddleware())
	r.POST("/echo", func(c *gin.Context) {
		var req dto.LoginReq
		require.NoError(t, c.ShouldBindJSON(&req))
		c.String(http.StatusOK, req.Token)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"token":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Body.String())
}
