package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/config"
	"github.com/justtrance-web/artvision-tg-bot/pkg/database"
	"github.com/justtrance-web/artvision-tg-bot/pkg/ideas"
	"github.com/justtrance-web/artvision-tg-bot/pkg/interest"
	"github.com/justtrance-web/artvision-tg-bot/pkg/middleware"
	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
	"github.com/justtrance-web/artvision-tg-bot/pkg/moderation"
	"github.com/justtrance-web/artvision-tg-bot/pkg/notify"
	"github.com/justtrance-web/artvision-tg-bot/pkg/utils"
)

const adminID int64 = 900

type fakeBot struct {
	mu      sync.Mutex
	updates []int64
	err     error
}

func (f *fakeBot) HandleUpdate(_ context.Context, upd *models.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, upd.UpdateID)
	return f.err
}

func (f *fakeBot) seen() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.updates...)
}

func (f *fakeBot) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type nopSender struct{}

func (nopSender) SendMessage(context.Context, int64, string, *models.InlineKeyboardMarkup) error {
	return nil
}

type server struct {
	*httptest.Server
	bot   *fakeBot
	store *ideas.Store
	token string
}

func newServer(t *testing.T) *server {
	t.Helper()
	db, err := database.NewSQLiteDatabase(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, id := range []int64{1, 2} {
		require.NoError(t, db.UpsertClient(context.Background(), &models.Client{ID: id, ChatID: id, UpdatedAt: time.Now()}))
	}

	cfg := &config.Config{Environment: "production", TelegramWebhookSecret: "hook-secret"}
	log := zap.NewNop()
	admins := config.NewAdminSet([]int64{adminID})
	store := ideas.NewStore(db, nil, log)
	tracker := interest.NewTracker(db)
	gw := moderation.NewGateway(store, tracker, notify.New(nopSender{}, db, 0, log), admins, db, log)

	jwtSvc := utils.NewJWTService("jwt-secret")
	token, _, err := jwtSvc.GenerateAdminToken(adminID, time.Hour)
	require.NoError(t, err)

	bot := &fakeBot{}
	router := NewRouter(RouterDeps{
		Config:   cfg,
		Log:      log,
		Health:   NewHealthHandler(cfg, db),
		Telegram: NewTelegramHandler(bot, log),
		Admin:    NewAdminHandler(gw, store, tracker, db, log),
		Tokens:   jwtSvc,
		Admins:   admins,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &server{Server: srv, bot: bot, store: store, token: token}
}

func (s *server) do(t *testing.T, method, path, body string, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (s *server) admin(t *testing.T, method, path, body string) (*http.Response, map[string]interface{}) {
	return s.do(t, method, path, body, map[string]string{"Authorization": "Bearer " + s.token})
}

func TestTelegramWebhook(t *testing.T) {
	s := newServer(t)
	secret := map[string]string{middleware.TelegramSecretHeader: "hook-secret"}

	resp, body := s.do(t, http.MethodPost, "/api/telegram", `{"update_id": 7, "message": {"message_id": 1, "chat": {"id": 1}, "text": "/start"}}`, secret)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, []int64{7}, s.bot.seen())

	resp, _ = s.do(t, http.MethodPost, "/api/telegram", `{"update_id": 8}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	s.bot.fail(errors.New("telegram is down"))
	resp, body = s.do(t, http.MethodPost, "/api/telegram/", `{"update_id": 9}`, secret)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["ok"])

	resp, body = s.do(t, http.MethodPost, "/api/telegram", `not json`, secret)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["ok"])
}

func TestTelegramStatus(t *testing.T) {
	s := newServer(t)
	resp, body := s.do(t, http.MethodGet, "/api/telegram", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/api/telegram", body["webhook"])
	assert.Equal(t, "Artvision Bot is running!", body["status"])
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	resp, body := s.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "healthy", data["db_status"])
	assert.Equal(t, "sqlite", data["database"])
}

func TestAdminRequiresToken(t *testing.T) {
	s := newServer(t)
	resp, _ := s.do(t, http.MethodGet, "/api/admin/ideas", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	other, _, err := utils.NewJWTService("jwt-secret").GenerateAdminToken(2, time.Hour)
	require.NoError(t, err)
	resp, _ = s.do(t, http.MethodGet, "/api/admin/ideas", "", map[string]string{"Authorization": "Bearer " + other})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := s.admin(t, http.MethodGet, "/api/admin/me", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(adminID), body["data"].(map[string]interface{})["admin_id"])
}

func TestAdminModerationFlow(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	id, err := s.store.Submit(ctx, ideas.SubmitParams{AuthorID: 1, Description: "Dark theme"})
	require.NoError(t, err)

	resp, body := s.admin(t, http.MethodGet, "/api/admin/ideas?status=pending", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["data"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].(map[string]interface{})["id"])

	resp, _ = s.admin(t, http.MethodGet, "/api/admin/ideas?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = s.admin(t, http.MethodPost, "/api/admin/ideas/"+id+"/approve", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "approved", data["idea"].(map[string]interface{})["status"])
	assert.Equal(t, float64(1), data["broadcast"].(map[string]interface{})["delivered"])

	resp, body = s.admin(t, http.MethodPost, "/api/admin/ideas/"+id+"/approve", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", body["error"].(map[string]interface{})["code"])

	resp, _ = s.admin(t, http.MethodPost, "/api/admin/ideas/"+id+"/done", `{"target_client_id": 404}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = s.admin(t, http.MethodPost, "/api/admin/ideas/"+id+"/done", `{"target_client_id": 2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "done", body["data"].(map[string]interface{})["idea"].(map[string]interface{})["status"])

	resp, body = s.admin(t, http.MethodGet, "/api/admin/ideas/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	details := body["data"].(map[string]interface{})
	assert.Len(t, details["broadcasts"], 2)

	resp, _ = s.admin(t, http.MethodGet, "/api/admin/ideas/unknown", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNotFoundRoute(t *testing.T) {
	s := newServer(t)
	resp, body := s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}
