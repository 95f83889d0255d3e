package app

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
	"github.com/justtrance-web/artvision-tg-bot/pkg/middleware"
	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

type sentMessage struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// botAPI records sendMessage calls and acknowledges everything else
type botAPI struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (b *botAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/sendMessage") {
		var m sentMessage
		_ = json.NewDecoder(r.Body).Decode(&m)
		b.mu.Lock()
		b.sent = append(b.sent, m)
		b.mu.Unlock()
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
}

func (b *botAPI) messages() []sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]sentMessage(nil), b.sent...)
}

func newTestConfig(t *testing.T) (*config.Config, *botAPI) {
	t.Helper()
	api := &botAPI{}
	tg := httptest.NewServer(api)
	t.Cleanup(tg.Close)

	return &config.Config{
		Environment:           "production",
		TelegramBotToken:      "123:abc",
		TelegramWebhookSecret: "hook-secret",
		TelegramAPIBase:       tg.URL,
		Admins:                config.NewAdminSet([]int64{900}),
		JWTSecret:             "jwt-secret",
		SessionStore:          "database",
		SessionTTL:            time.Minute,
	}, api
}

func openTestDB(t *testing.T, name string) *database.SQLiteDatabase {
	t.Helper()
	db, err := database.NewSQLiteDatabase(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestApp(t *testing.T) (*App, *botAPI) {
	t.Helper()
	cfg, api := newTestConfig(t)
	a, err := NewWithDatabase(context.Background(), cfg, zap.NewNop(), openTestDB(t, "app.db"))
	require.NoError(t, err)
	return a, api
}

func postUpdate(t *testing.T, h http.Handler, upd models.Update) int {
	t.Helper()
	body, err := json.Marshal(upd)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/telegram", strings.NewReader(string(body)))
	req.Header.Set(middleware.TelegramSecretHeader, "hook-secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func message(id, from int64, text string) models.Update {
	return models.Update{
		UpdateID: id,
		Message: &models.Message{
			MessageID: id,
			From:      &models.User{ID: from, FirstName: "Anna"},
			Chat:      models.Chat{ID: from, Type: "private"},
			Text:      text,
		},
	}
}

func TestWebhookToModerationQueue(t *testing.T) {
	a, api := newTestApp(t)
	h := a.Handler()

	require.Equal(t, http.StatusOK, postUpdate(t, h, message(1, 5, "/start")))
	require.Equal(t, http.StatusOK, postUpdate(t, h, message(2, 5, "/idea Dark mode for the portal")))

	msgs := api.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, int64(5), msgs[0].ChatID)
	assert.Contains(t, msgs[0].Text, "Anna")
	assert.Equal(t, int64(5), msgs[1].ChatID)
	assert.Equal(t, int64(900), msgs[2].ChatID)
	assert.Contains(t, msgs[2].Text, "Dark mode for the portal")

	pending, err := a.Ideas.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(5), pending[0].AuthorID)
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	a, api := newTestApp(t)

	body := `{"update_id":1,"message":{"message_id":1,"from":{"id":5,"first_name":"A"},"chat":{"id":5,"type":"private"},"text":"/start"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/telegram", strings.NewReader(body))
	req.Header.Set(middleware.TelegramSecretHeader, "wrong")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, api.messages())
}

func TestSweeperFollowsSessionStore(t *testing.T) {
	a, _ := newTestApp(t)
	_, ok := a.Sweeper()
	assert.True(t, ok)
}

func TestWarmFetchesDatabasePerRequest(t *testing.T) {
	cfg, _ := newTestConfig(t)
	first, second := openTestDB(t, "first.db"), openTestDB(t, "second.db")

	// the pool hands out the same connection twice, then a replacement
	handedOut := []database.DatabaseInterface{first, first, second}
	calls := 0
	w := NewWarm(cfg, zap.NewNop(), func(database.DatabaseConfig) (database.DatabaseInterface, error) {
		db := handedOut[calls]
		calls++
		return db, nil
	})

	h1, err := w.Handler(context.Background())
	require.NoError(t, err)
	h2, err := w.Handler(context.Background())
	require.NoError(t, err)
	assert.Same(t, h1, h2)

	// the old connection is gone; requests must land on the new one
	require.NoError(t, first.Close())
	h3, err := w.Handler(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, h1, h3)
	assert.Equal(t, 3, calls)

	require.Equal(t, http.StatusOK, postUpdate(t, h3, message(1, 5, "/start")))
	client, err := second.GetClient(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Anna", client.DisplayName)
}

func TestWarmReportsOpenError(t *testing.T) {
	cfg, _ := newTestConfig(t)
	w := NewWarm(cfg, zap.NewNop(), func(database.DatabaseConfig) (database.DatabaseInterface, error) {
		return nil, errors.New("connection refused")
	})

	_, err := w.Handler(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open database")
}
