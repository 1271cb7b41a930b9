package service

import (
	"Storefront/internal/pkg/security"
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	NotFound            = 404
	InternalServerError = 500
)

var (
	ErrParamInvalid         = errors.New("参数错误")
	ErrNotLoggedIn          = errors.New("未登录")
	ErrSessionMismatch      = errors.New("令牌与当前会话用户不一致")
	ErrTokenRevoked         = errors.New("Token 已失效")
	ErrConversationNotFound = errors.New("会话不存在")
	UnExpectedError         = errors.New("系统异常，请稍后重试")
)

// ErrorCode 哨兵错误与业务码
type ErrorCode struct {
	Err  error
	Code int
}

// ErrorCodes 按顺序匹配，同时包装多个哨兵错误时取第一个命中的
var ErrorCodes = []ErrorCode{
	{ErrTokenRevoked, Unauthorized},
	{ErrSessionMismatch, Unauthorized},
	{ErrNotLoggedIn, Unauthorized},
	{security.ErrTokenMalformed, Unauthorized},
	{security.ErrTokenInvalid, Unauthorized},
	{ErrConversationNotFound, NotFound},
	{ErrParamInvalid, BadRequest},
	{UnExpectedError, InternalServerError},
}
