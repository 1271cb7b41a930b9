package security

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMalformed = errors.New("token 格式不正确")
	ErrTokenInvalid   = errors.New("token 无效或已过期")
)

var (
	mu     sync.RWMutex
	secret []byte
	issuer string
)

// Init 设置令牌校验密钥与签发方，issuer 为空时不校验签发方
func Init(jwtSecret, jwtIssuer string) {
	mu.Lock()
	defer mu.Unlock()
	secret = []byte(jwtSecret)
	issuer = jwtIssuer
}

func keys() ([]byte, string) {
	mu.RLock()
	defer mu.RUnlock()
	return secret, issuer
}

// GenerateToken 签发会话令牌，主要供本地调试与测试使用
func GenerateToken(userID string, role *string, permissions []string, ttl time.Duration) (string, error) {
	key, iss := keys()
	now := time.Now()
	claims := &SessionClaims{
		UserID:      userID,
		Role:        role,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    iss,
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("签名 Token 失败: %w", err)
	}
	return tokenString, nil
}

// ValidateToken 验证 Token 字符串并解析出 Claims
func ValidateToken(tokenString string) (*SessionClaims, error) {
	key, iss := keys()
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if iss != "" {
		opts = append(opts, jwt.WithIssuer(iss))
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ExtractSignature 从 Token 字符串中提取签名，作为吊销列表的 key
func ExtractSignature(tokenString string) (string, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 || parts[2] == "" {
		return "", ErrTokenMalformed
	}
	return parts[2], nil
}

// RemainingTTL 令牌剩余有效期，无过期时间时返回 fallback
func RemainingTTL(claims *SessionClaims, fallback time.Duration) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return fallback
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}
