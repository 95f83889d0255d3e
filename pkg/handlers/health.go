package handlers

import (
	"net/http"
	"time"

	"github.com/justtrance-web/artvision-tg-bot/pkg/config"
	"github.com/justtrance-web/artvision-tg-bot/pkg/utils"
)

// Pinger 数据库健康检查
type Pinger interface {
	HealthCheck() error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	config *config.Config
	db     Pinger
}

func NewHealthHandler(cfg *config.Config, db Pinger) *HealthHandler {
	return &HealthHandler{config: cfg, db: db}
}

// HealthCheck 健康检查
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "healthy"
	code := http.StatusOK
	if err := h.db.HealthCheck(); err != nil {
		status = "degraded"
		dbStatus = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	utils.WriteJSONResponse(w, code, map[string]interface{}{
		"service":     "artvision-tg-bot",
		"version":     "1.0.0",
		"environment": h.config.Environment,
		"database":    h.databaseType(),
		"db_status":   dbStatus,
		"timestamp":   time.Now().Unix(),
		"status":      status,
	})
}

// databaseType 获取数据库类型
func (h *HealthHandler) databaseType() string {
	switch {
	case h.config.SupabaseURL != "" && h.config.SupabaseKey != "":
		return "supabase"
	case h.config.PostgresDSN != "":
		return "postgresql"
	}
	return "sqlite"
}
