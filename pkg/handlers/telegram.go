package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
	"github.com/justtrance-web/artvision-tg-bot/pkg/utils"
)

// UpdateHandler processes one Telegram update
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd *models.Update) error
}

// TelegramHandler 处理 Telegram webhook
type TelegramHandler struct {
	bot UpdateHandler
	log *zap.Logger
}

// NewTelegramHandler 创建新的 webhook 处理器
func NewTelegramHandler(bot UpdateHandler, log *zap.Logger) *TelegramHandler {
	return &TelegramHandler{bot: bot, log: log}
}

// HandleUpdate 处理 Telegram 推送的更新
// The update is processed before answering: serverless runtimes stop the
// function once the response is written.
func (h *TelegramHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var upd models.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.log.Warn("invalid telegram update", zap.Error(err))
		utils.WriteJSON(w, http.StatusInternalServerError, map[string]bool{"ok": false})
		return
	}

	if err := h.bot.HandleUpdate(r.Context(), &upd); err != nil {
		h.log.Error("webhook error", zap.Int64("update_id", upd.UpdateID), zap.Error(err))
		utils.WriteJSON(w, http.StatusInternalServerError, map[string]bool{"ok": false})
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Status 检查 webhook 状态
func (h *TelegramHandler) Status(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "Artvision Bot is running!",
		"webhook": "/api/telegram",
	})
}
