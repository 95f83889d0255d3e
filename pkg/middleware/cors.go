package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/justtrance-web/artvision-tg-bot/pkg/config"
)

// CORS 管理接口的CORS中间件（供门户前端调用）
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Requested-With",
		},
		AllowCredentials: true,
		MaxAge:           300, // 5分钟
	}

	// 未配置来源时默认只允许门户
	if len(corsOptions.AllowedOrigins) == 0 && cfg.PortalURL != "" {
		corsOptions.AllowedOrigins = []string{cfg.PortalURL}
	}

	// 开发环境允许所有来源
	if cfg.IsDevelopment() || contains(corsOptions.AllowedOrigins, "*") {
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false // 当AllowedOrigins为*时，不能设置AllowCredentials为true
	}

	return cors.Handler(corsOptions)
}

// contains 检查切片是否包含指定的字符串
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
