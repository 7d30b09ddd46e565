// Package auth 校验外部身份提供方签发的访问令牌。
// 本系统不管理账号与密码，只信任令牌中的 sub 作为 owner id。
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pixelCV/internal/config"
)

var (
	ErrEmptyToken   = errors.New("auth: token string is empty")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims 是访问令牌中本系统关心的字段。
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier 使用共享密钥（HS256）校验令牌。
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

// NewVerifier 根据配置构造校验器。
func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Verifier{
		secret:   []byte(cfg.JWTSecret),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		leeway:   30 * time.Second,
	}, nil
}

// Verify 解析并验证令牌，返回 owner id（sub）与声明。
func (v *Verifier) Verify(tokenString string) (string, *Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return "", nil, ErrEmptyToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", nil, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", nil, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return sub, claims, nil
}

// Issue 签发一个 HS256 令牌，供本地开发与测试使用。
func (v *Verifier) Issue(ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
