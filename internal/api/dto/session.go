package dto

import "time"

// LoginReq 登录或刷新时视图提交的会话令牌
type LoginReq struct {
	Token string `json:"token" validate:"required"`
}

// SessionDTO 当前会话
type SessionDTO struct {
	UserID      string     `json:"userId"`
	Role        *string    `json:"role"`
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}
