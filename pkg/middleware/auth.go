package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/utils"
)

// ContextKey 用于在context中存储管理员信息的键
type ContextKey string

const (
	AdminContextKey ContextKey = "admin_id"
)

// TokenValidator 解析管理员令牌
type TokenValidator interface {
	ValidateAdminToken(token string) (int64, error)
}

// AllowList 管理员白名单
type AllowList interface {
	Contains(id int64) bool
}

// AdminAuth JWT认证中间件
// A valid token is not enough: the subject must still be on the allow-list,
// so removing an admin from the config revokes their tokens.
func AdminAuth(tokens TokenValidator, admins AllowList, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 从Authorization头获取token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteUnauthorizedResponse(w, "Missing authorization header")
				return
			}

			// 检查Bearer前缀
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || tokenString == "" {
				utils.WriteUnauthorizedResponse(w, "Invalid authorization header format")
				return
			}

			adminID, err := tokens.ValidateAdminToken(tokenString)
			if err != nil {
				log.Debug("admin token rejected", zap.String("path", r.URL.Path), zap.Error(err))
				utils.WriteUnauthorizedResponse(w, "Invalid token")
				return
			}

			if !admins.Contains(adminID) {
				log.Warn("token subject is not an admin", zap.Int64("user_id", adminID))
				utils.WriteForbiddenResponse(w, "Not an admin")
				return
			}

			ctx := context.WithValue(r.Context(), AdminContextKey, adminID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminFromContext 从context中获取管理员ID
func GetAdminFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(AdminContextKey).(int64)
	return id, ok && id != 0
}
