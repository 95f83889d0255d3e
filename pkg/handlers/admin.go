package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/ideas"
	"github.com/justtrance-web/artvision-tg-bot/pkg/interest"
	"github.com/justtrance-web/artvision-tg-bot/pkg/middleware"
	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
	"github.com/justtrance-web/artvision-tg-bot/pkg/moderation"
	"github.com/justtrance-web/artvision-tg-bot/pkg/notify"
	"github.com/justtrance-web/artvision-tg-bot/pkg/utils"
)

// BroadcastLister 广播审计记录
type BroadcastLister interface {
	ListBroadcasts(ctx context.Context, ideaID string) ([]models.BroadcastLog, error)
}

// AdminHandler 管理接口：审核想法
type AdminHandler struct {
	gateway    *moderation.Gateway
	ideas      *ideas.Store
	interest   *interest.Tracker
	broadcasts BroadcastLister
	log        *zap.Logger
}

func NewAdminHandler(gw *moderation.Gateway, store *ideas.Store, tracker *interest.Tracker, broadcasts BroadcastLister, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		gateway:    gw,
		ideas:      store,
		interest:   tracker,
		broadcasts: broadcasts,
		log:        log,
	}
}

// Routes mounts the admin endpoints; authentication is applied by the caller
func (h *AdminHandler) Routes(r chi.Router) {
	r.Get("/me", h.Me)
	r.Route("/ideas", func(r chi.Router) {
		r.Get("/", h.ListIdeas)
		r.Get("/{id}", h.GetIdea)
		r.Post("/{id}/approve", h.Approve)
		r.Post("/{id}/reject", h.Reject)
		r.Post("/{id}/done", h.MarkDone)
	})
}

// OutcomeResponse is a moderation result
type OutcomeResponse struct {
	Idea          *models.Idea  `json:"idea"`
	Broadcast     notify.Result `json:"broadcast"`
	AnnounceError string        `json:"announce_error,omitempty"`
}

// IdeaDetails is an idea with its interest and broadcast history
type IdeaDetails struct {
	Idea       *models.Idea          `json:"idea"`
	Interested []int64               `json:"interested"`
	Broadcasts []models.BroadcastLog `json:"broadcasts"`
}

type doneRequest struct {
	TargetClientID int64 `json:"target_client_id"`
}

// Me 返回当前管理员
func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.GetAdminFromContext(r.Context())
	utils.WriteSuccessResponse(w, map[string]int64{"admin_id": adminID})
}

// ListIdeas 按状态列出想法 (?status=pending&limit=10)
func (h *AdminHandler) ListIdeas(w http.ResponseWriter, r *http.Request) {
	status := models.IdeaStatus(utils.GetQueryParam(r, "status", string(models.IdeaPending)))
	limit, err := strconv.Atoi(utils.GetQueryParam(r, "limit", "10"))
	if err != nil {
		utils.WriteBadRequestResponse(w, "limit must be a number")
		return
	}

	list, err := h.ideas.ListByStatus(r.Context(), status, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, list)
}

// GetIdea 获取想法详情
func (h *AdminHandler) GetIdea(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	idea, err := h.ideas.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	interested, err := h.interest.ListInterested(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logs, err := h.broadcasts.ListBroadcasts(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, IdeaDetails{Idea: idea, Interested: interested, Broadcasts: logs})
}

// Approve 审核通过并广播
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.GetAdminFromContext(r.Context())
	out, err := h.gateway.Approve(r.Context(), chi.URLParam(r, "id"), adminID)
	h.writeOutcome(w, r, out, err)
}

// Reject 拒绝想法
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.GetAdminFromContext(r.Context())
	out, err := h.gateway.Reject(r.Context(), chi.URLParam(r, "id"), adminID)
	h.writeOutcome(w, r, out, err)
}

// MarkDone 标记为已实现，body 可选 {"target_client_id": 123}
func (h *AdminHandler) MarkDone(w http.ResponseWriter, r *http.Request) {
	var req doneRequest
	if err := utils.ParseJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteBadRequestResponse(w, "Invalid JSON body")
		return
	}
	adminID, _ := middleware.GetAdminFromContext(r.Context())
	out, err := h.gateway.MarkDone(r.Context(), chi.URLParam(r, "id"), req.TargetClientID, adminID)
	h.writeOutcome(w, r, out, err)
}

func (h *AdminHandler) writeOutcome(w http.ResponseWriter, r *http.Request, out *moderation.Outcome, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := OutcomeResponse{Idea: out.Idea, Broadcast: out.Broadcast}
	if out.AnnounceErr != nil {
		resp.AnnounceError = "announcement failed"
	}
	utils.WriteSuccessResponse(w, resp)
}

func (h *AdminHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := utils.ErrorStatus(err); status >= http.StatusInternalServerError {
		h.log.Error("admin request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	utils.WriteDomainError(w, err)
}
