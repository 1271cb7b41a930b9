package service

import (
	"Storefront/internal/pkg/capability"
	"Storefront/internal/pkg/security"
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"
)

// 令牌没有过期时间时吊销记录的保留时长
const defaultRevokeTTL = 24 * time.Hour

// Session 当前登录会话，权限快照随会话整体替换
type Session struct {
	UserID       string
	Token        string
	Claims       *security.SessionClaims
	Capabilities *capability.Set
}

// SessionListener 会话生命周期监听，由同步网关实现
type SessionListener interface {
	OnLogin(ctx context.Context, sess *Session)
	OnRefresh(ctx context.Context, sess *Session)
	OnLogout(ctx context.Context, userID string)
}

// RevocationStore 已吊销令牌签名
type RevocationStore interface {
	Revoke(ctx context.Context, signature string, ttl time.Duration) error
	IsRevoked(ctx context.Context, signature string) (bool, error)
}

// SessionService 会话与权限快照
type SessionService interface {
	Login(ctx context.Context, token string) (*Session, error)
	Refresh(ctx context.Context, token string) (*Session, error)
	Logout(ctx context.Context) error
	Current() (*Session, bool)
	Capabilities() *capability.Set
	Authenticate(ctx context.Context, token string) (*Session, error)
	AddListener(l SessionListener)
}

type sessionServiceImpl struct {
	revoked RevocationStore

	// opMu 串行化登录、刷新、登出，监听器在 opMu 内、mu 外调用
	opMu      sync.Mutex
	mu        sync.RWMutex
	current   *Session
	listeners []SessionListener
}

func NewSessionService(revoked RevocationStore) SessionService {
	return &sessionServiceImpl{revoked: revoked}
}

func (s *sessionServiceImpl) AddListener(l SessionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Login 以新令牌建立会话；不同用户先登出旧会话，同一用户按刷新处理
func (s *sessionServiceImpl) Login(ctx context.Context, token string) (*Session, error) {
	claims, err := s.verify(ctx, token)
	if err != nil {
		return nil, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if cur, ok := s.Current(); ok {
		if cur.UserID == claims.UserID {
			return s.replaceLocked(ctx, token, claims), nil
		}
		log.InfoContext(ctx, "切换用户，结束旧会话", "from", cur.UserID, "to", claims.UserID)
		s.logoutLocked(ctx, cur)
	}

	sess := newSession(token, claims)
	s.mu.Lock()
	s.current = sess
	listeners := append([]SessionListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l.OnLogin(ctx, sess)
	}
	log.InfoContext(ctx, "会话已建立", "userID", sess.UserID, "permissions", len(claims.Permissions))
	return sess, nil
}

// Refresh 替换当前会话的令牌与权限快照
func (s *sessionServiceImpl) Refresh(ctx context.Context, token string) (*Session, error) {
	claims, err := s.verify(ctx, token)
	if err != nil {
		return nil, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	cur, ok := s.Current()
	if !ok {
		return nil, ErrNotLoggedIn
	}
	if cur.UserID != claims.UserID {
		return nil, ErrSessionMismatch
	}
	return s.replaceLocked(ctx, token, claims), nil
}

func (s *sessionServiceImpl) replaceLocked(ctx context.Context, token string, claims *security.SessionClaims) *Session {
	sess := newSession(token, claims)
	s.mu.Lock()
	prev := s.current
	s.current = sess
	listeners := append([]SessionListener(nil), s.listeners...)
	s.mu.Unlock()

	if prev != nil && prev.Token != token {
		s.revoke(ctx, prev)
	}
	for _, l := range listeners {
		l.OnRefresh(ctx, sess)
	}
	return sess
}

// Logout 清空会话与权限快照，未登录时直接返回
func (s *sessionServiceImpl) Logout(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	cur, ok := s.Current()
	if !ok {
		return nil
	}
	s.logoutLocked(ctx, cur)
	log.InfoContext(ctx, "会话已结束", "userID", cur.UserID)
	return nil
}

func (s *sessionServiceImpl) logoutLocked(ctx context.Context, cur *Session) {
	s.mu.Lock()
	s.current = nil
	listeners := append([]SessionListener(nil), s.listeners...)
	s.mu.Unlock()

	s.revoke(ctx, cur)
	for _, l := range listeners {
		l.OnLogout(ctx, cur.UserID)
	}
}

func (s *sessionServiceImpl) Current() (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != nil
}

// Capabilities 当前权限快照，未登录时为空集合
func (s *sessionServiceImpl) Capabilities() *capability.Set {
	if cur, ok := s.Current(); ok {
		return cur.Capabilities
	}
	return capability.Empty()
}

// Authenticate 校验视图携带的令牌属于当前会话用户，返回校验时的会话
// 调用方应使用返回会话上的权限快照，而不是再次读取 Capabilities
func (s *sessionServiceImpl) Authenticate(ctx context.Context, token string) (*Session, error) {
	claims, err := s.verify(ctx, token)
	if err != nil {
		return nil, err
	}
	cur, ok := s.Current()
	if !ok {
		return nil, ErrNotLoggedIn
	}
	if cur.UserID != claims.UserID {
		return nil, ErrSessionMismatch
	}
	return cur, nil
}

func (s *sessionServiceImpl) verify(ctx context.Context, token string) (*security.SessionClaims, error) {
	if token == "" {
		return nil, ErrParamInvalid
	}
	signature, err := security.ExtractSignature(token)
	if err != nil {
		return nil, err
	}
	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, signature)
		if err != nil {
			log.ErrorContext(ctx, "查询令牌吊销状态失败", "err", err)
			return nil, UnExpectedError
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return security.ValidateToken(token)
}

func (s *sessionServiceImpl) revoke(ctx context.Context, sess *Session) {
	if s.revoked == nil {
		return
	}
	signature, err := security.ExtractSignature(sess.Token)
	if err != nil {
		return
	}
	ttl := security.RemainingTTL(sess.Claims, defaultRevokeTTL)
	if err := s.revoked.Revoke(ctx, signature, ttl); err != nil && !errors.Is(err, context.Canceled) {
		log.WarnContext(ctx, "吊销令牌失败", "userID", sess.UserID, "err", err)
	}
}

func newSession(token string, claims *security.SessionClaims) *Session {
	return &Session{
		UserID:       claims.UserID,
		Token:        token,
		Claims:       claims,
		Capabilities: claims.Capabilities(),
	}
}
