package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/config"
	"github.com/justtrance-web/artvision-tg-bot/pkg/middleware"
	"github.com/justtrance-web/artvision-tg-bot/pkg/utils"
)

// maxUpdateSize caps webhook bodies; Telegram updates are a few KB
const maxUpdateSize = 1 << 20

// RouterDeps 路由依赖
type RouterDeps struct {
	Config   *config.Config
	Log      *zap.Logger
	Health   *HealthHandler
	Telegram *TelegramHandler
	Admin    *AdminHandler
	Tokens   middleware.TokenValidator
	Admins   middleware.AllowList
	// DBStats is exposed on /debug/db-pool in development
	DBStats func() map[string]interface{}
}

// NewRouter 单体路由：所有端点集中在一个 Chi 路由器中
func NewRouter(d RouterDeps) *chi.Mux {
	router := chi.NewRouter()
	setupMiddleware(router, d)
	setupRoutes(router, d)
	return router
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, d RouterDeps) {
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(middleware.Normalize())
	router.Use(middleware.Logger(d.Log))
	router.Use(middleware.Recovery(d.Log, d.Config.IsDevelopment()))

	// 超时中间件（Vercel函数有时间限制）
	router.Use(chimw.Timeout(25 * time.Second)) // 留5秒缓冲

	if d.Config.IsDevelopment() {
		router.Use(chimw.Heartbeat("/ping"))
	}
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, d RouterDeps) {
	router.Get("/", d.Health.HealthCheck)

	if d.Config.IsDevelopment() && d.DBStats != nil {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			utils.WriteSuccessResponse(w, d.DBStats())
		})
	}

	router.Route("/api", func(r chi.Router) {
		// Telegram webhook（不需要JWT，但需要验证 secret token）
		r.Route("/telegram", func(r chi.Router) {
			r.Use(middleware.MaxBodySize(maxUpdateSize))
			r.Use(middleware.TelegramSecret(d.Config.TelegramWebhookSecret))
			r.Get("/", d.Telegram.Status)
			r.Post("/", d.Telegram.HandleUpdate)
		})

		// 管理接口
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.CORS(d.Config))
			r.Use(chimw.Compress(5))
			r.Use(middleware.ContentTypeJSON)
			r.Use(middleware.MaxBodySize(64 << 10))
			r.Use(middleware.AdminAuth(d.Tokens, d.Admins, d.Log))
			d.Admin.Routes(r)
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
