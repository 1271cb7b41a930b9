package security

import (
	"Storefront/internal/pkg/capability"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims 会话令牌中携带的身份与权限
// role 可以缺省，permissions 为扁平的 resource:action 列表
type SessionClaims struct {
	UserID      string   `json:"user_id"`
	Role        *string  `json:"role,omitempty"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Capabilities 从令牌构造只读的权限快照
func (c *SessionClaims) Capabilities() *capability.Set {
	if c == nil {
		return capability.Empty()
	}
	return capability.NewSet(c.Permissions, c.Role)
}
