package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	adminAudience = "artvision-admin"
	// DefaultAdminTokenTTL 管理令牌默认有效期
	DefaultAdminTokenTTL = 24 * time.Hour
)

// AdminClaims identifies a moderator by Telegram user id (subject)
type AdminClaims struct {
	jwt.RegisteredClaims
}

// JWTService JWT服务
type JWTService struct {
	secretKey []byte
	now       func() time.Time
}

// NewJWTService 创建JWT服务
func NewJWTService(secretKey string) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
		now:       time.Now,
	}
}

// GenerateAdminToken 生成管理员访问令牌
func (j *JWTService) GenerateAdminToken(userID int64, ttl time.Duration) (string, time.Time, error) {
	if len(j.secretKey) == 0 {
		return "", time.Time{}, errors.New("jwt secret is not configured")
	}
	if ttl <= 0 {
		ttl = DefaultAdminTokenTTL
	}
	now := j.now()
	expiry := now.Add(ttl)

	claims := &AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings{adminAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate admin token: %w", err)
	}
	return signed, expiry, nil
}

// ValidateAdminToken 验证令牌并返回管理员的Telegram用户ID
func (j *JWTService) ValidateAdminToken(tokenString string) (int64, error) {
	if len(j.secretKey) == 0 {
		return 0, errors.New("jwt secret is not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	},
		jwt.WithAudience(adminAudience),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return 0, errors.New("invalid token claims")
	}
	if claims.ExpiresAt == nil {
		return 0, errors.New("token has no expiry")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return 0, fmt.Errorf("invalid token subject %q", claims.Subject)
	}
	return userID, nil
}
