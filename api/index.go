package handler

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/app"
	"github.com/justtrance-web/artvision-tg-bot/pkg/config"
	"github.com/justtrance-web/artvision-tg-bot/pkg/database"
	"github.com/justtrance-web/artvision-tg-bot/pkg/logger"
	"github.com/justtrance-web/artvision-tg-bot/pkg/utils"
)

var (
	warmMu  sync.Mutex
	warm    *app.Warm
	warmLog *zap.Logger
)

// Handler 是Vercel函数的入口点
// 所有端点（Telegram webhook、健康检查、管理API）集中在一个Chi路由器中
func Handler(w http.ResponseWriter, r *http.Request) {
	h, err := handler(r.Context())
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	h.ServeHTTP(w, r)
}

// handler 每个请求都经优化器获取数据库连接，连接被替换时重建应用
func handler(ctx context.Context) (http.Handler, error) {
	warmMu.Lock()
	if warm == nil {
		// 加载配置
		cfg := config.GetCached()
		if err := cfg.Validate(); err != nil {
			warmMu.Unlock()
			return nil, err
		}
		warmLog = logger.GetCached(cfg.IsProduction(), cfg.Debug)
		warm = app.NewWarm(cfg, warmLog, database.GetOptimizedDatabase)
	}
	wa, log := warm, warmLog
	warmMu.Unlock()

	h, err := wa.Handler(ctx)
	if err != nil {
		log.Error("failed to initialize application", zap.Error(err))
		return nil, err
	}
	return h, nil
}
