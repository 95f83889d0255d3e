package database

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

func newTestSupabase(t *testing.T, handler http.HandlerFunc) *SupabaseDatabase {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSupabaseDatabase(srv.URL, "service-key")
}

func TestSupabaseTransitionIdeaConflict(t *testing.T) {
	db := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodPatch:
			assert.Equal(t, "eq.a1", r.URL.Query().Get("id"))
			assert.Equal(t, "eq.pending", r.URL.Query().Get("status"))
			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "approved", body["status"])
			assert.EqualValues(t, 7, body["moderator_id"])
			io.WriteString(w, `[]`)
		case http.MethodGet:
			io.WriteString(w, `[{"id":"a1","status":"rejected","title":"t","modality":"text","author_id":1,"created_at":"2026-01-01T00:00:00+00:00"}]`)
		}
	})

	_, err := db.TransitionIdea(context.Background(), models.IdeaTransition{
		IdeaID: "a1", From: models.IdeaPending, To: models.IdeaApproved, ActorID: 7,
	})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestSupabaseTransitionIdeaNotFound(t *testing.T) {
	db := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	})

	_, err := db.TransitionIdea(context.Background(), models.IdeaTransition{
		IdeaID: "nope", From: models.IdeaApproved, To: models.IdeaDone,
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSupabaseCreateInterestRequestIgnoresDuplicates(t *testing.T) {
	calls := 0
	db := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/rest/v1/interest_requests", r.URL.Path)
		assert.Equal(t, "idea_id,client_id", r.URL.Query().Get("on_conflict"))
		assert.Contains(t, r.Header.Get("Prefer"), "resolution=ignore-duplicates")
		if calls == 1 {
			io.WriteString(w, `[{"idea_id":"a","client_id":5,"status":"pending"}]`)
			return
		}
		io.WriteString(w, `[]`)
	})

	ctx := context.Background()
	created, err := db.CreateInterestRequest(ctx, &models.InterestRequest{IdeaID: "a", ClientID: 5})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = db.CreateInterestRequest(ctx, &models.InterestRequest{IdeaID: "a", ClientID: 5})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSupabaseStorageErrors(t *testing.T) {
	db := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	})

	err := db.CreateIdea(context.Background(), &models.Idea{ID: "x", Title: "t", Modality: models.ModalityText})
	assert.ErrorIs(t, err, models.ErrStorage)
}

func TestSupabaseGetSessionModeFiltersExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	db := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gt."+now.Format(time.RFC3339Nano), r.URL.Query().Get("expires_at"))
		io.WriteString(w, `[{"mode":"awaiting_idea"}]`)
	})

	mode, err := db.GetSessionMode(context.Background(), 1, now)
	require.NoError(t, err)
	assert.Equal(t, models.ModeAwaitingIdea, mode)
}

func TestSupabaseUpsertClientKeepsProject(t *testing.T) {
	var paths []string
	db := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.RawQuery)
		switch {
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPatch && !strings.Contains(r.URL.RawQuery, "project"):
			io.WriteString(w, `[{"id":1,"chat_id":1,"display_name":"Anna","project":"seo","active":true,"notify_opt_in":true}]`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
	})

	c := &models.Client{ID: 1, ChatID: 1, DisplayName: "Anna", Project: "ads"}
	require.NoError(t, db.UpsertClient(context.Background(), c))
	assert.Equal(t, "seo", c.Project)
	assert.Len(t, paths, 2)
}
