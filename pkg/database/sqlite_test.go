package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()
	db, err := NewSQLiteDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedIdea(t *testing.T, db *SQLiteDatabase, id string, createdAt time.Time) *models.Idea {
	t.Helper()
	idea := &models.Idea{
		ID:        id,
		AuthorID:  100,
		Title:     "Idea " + id,
		Modality:  models.ModalityText,
		CreatedAt: createdAt,
	}
	require.NoError(t, db.CreateIdea(context.Background(), idea))
	return idea
}

func TestSQLiteUpsertClient(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c := &models.Client{ID: 1, ChatID: 1, DisplayName: "Anna", Username: "anna", Project: "seo"}
	require.NoError(t, db.UpsertClient(ctx, c))
	assert.True(t, c.Active)
	assert.True(t, c.NotifyOptIn)
	created := c.CreatedAt

	// display name is last write wins, project is first write wins
	again := &models.Client{ID: 1, ChatID: 1, DisplayName: "Anna K", Username: "annak", Project: "ads"}
	require.NoError(t, db.UpsertClient(ctx, again))
	assert.Equal(t, "seo", again.Project)
	assert.Equal(t, created, again.CreatedAt)

	got, err := db.GetClient(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Anna K", got.DisplayName)
	assert.Equal(t, "annak", got.Username)
	assert.Equal(t, "seo", got.Project)

	_, err = db.GetClient(ctx, 2)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSQLiteUpsertClientFillsEmptyProject(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertClient(ctx, &models.Client{ID: 1, ChatID: 1}))
	c := &models.Client{ID: 1, ChatID: 1, Project: "smm"}
	require.NoError(t, db.UpsertClient(ctx, c))
	assert.Equal(t, "smm", c.Project)
}

func TestSQLiteListBroadcastClients(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, id := range []int64{30, 10, 20, 40} {
		require.NoError(t, db.UpsertClient(ctx, &models.Client{ID: id, ChatID: id}))
	}
	require.NoError(t, db.SetClientNotify(ctx, 40, false))

	ids, err := db.ListBroadcastClients(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 30}, ids)

	assert.ErrorIs(t, db.SetClientNotify(ctx, 99, true), models.ErrNotFound)
}

func TestSQLiteInactiveClientsSkipBroadcastUntilTheyWrite(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		require.NoError(t, db.UpsertClient(ctx, &models.Client{ID: id, ChatID: id}))
	}
	require.NoError(t, db.SetClientActive(ctx, 2, false))

	ids, err := db.ListBroadcastClients(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	c := &models.Client{ID: 2, ChatID: 2}
	require.NoError(t, db.UpsertClient(ctx, c))
	assert.True(t, c.Active)

	ids, err = db.ListBroadcastClients(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	assert.ErrorIs(t, db.SetClientActive(ctx, 99, false), models.ErrNotFound)
}

func TestSQLiteTransitionIdea(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedIdea(t, db, "a", time.Now())

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	idea, err := db.TransitionIdea(ctx, models.IdeaTransition{IdeaID: "a", From: models.IdeaPending, To: models.IdeaApproved, ActorID: 7, At: at})
	require.NoError(t, err)
	assert.Equal(t, models.IdeaApproved, idea.Status)
	require.NotNil(t, idea.ModeratorID)
	assert.Equal(t, int64(7), *idea.ModeratorID)
	assert.True(t, at.Equal(*idea.ModeratedAt))
	assert.Nil(t, idea.TargetClientID)

	// second approval loses
	_, err = db.TransitionIdea(ctx, models.IdeaTransition{IdeaID: "a", From: models.IdeaPending, To: models.IdeaApproved, ActorID: 8})
	assert.ErrorIs(t, err, models.ErrConflict)

	idea, err = db.TransitionIdea(ctx, models.IdeaTransition{IdeaID: "a", From: models.IdeaApproved, To: models.IdeaDone, ActorID: 55})
	require.NoError(t, err)
	assert.Equal(t, models.IdeaDone, idea.Status)
	assert.Equal(t, int64(55), *idea.TargetClientID)
	assert.NotNil(t, idea.CompletedAt)
	// moderation fields untouched by done
	assert.Equal(t, int64(7), *idea.ModeratorID)

	_, err = db.TransitionIdea(ctx, models.IdeaTransition{IdeaID: "missing", From: models.IdeaPending, To: models.IdeaRejected})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = db.TransitionIdea(ctx, models.IdeaTransition{IdeaID: "a", From: models.IdeaDone, To: models.IdeaPending})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestSQLiteMarkDoneWithoutTarget(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedIdea(t, db, "a", time.Now())

	_, err := db.TransitionIdea(ctx, models.IdeaTransition{IdeaID: "a", From: models.IdeaPending, To: models.IdeaApproved, ActorID: 1})
	require.NoError(t, err)
	idea, err := db.TransitionIdea(ctx, models.IdeaTransition{IdeaID: "a", From: models.IdeaApproved, To: models.IdeaDone})
	require.NoError(t, err)
	assert.Nil(t, idea.TargetClientID)
}

func TestSQLiteConcurrentTransitionsOneWinner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedIdea(t, db, "a", time.Now())

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = db.TransitionIdea(ctx, models.IdeaTransition{
				IdeaID: "a", From: models.IdeaPending, To: models.IdeaApproved, ActorID: int64(i + 1),
			})
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, models.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)
}

func TestSQLiteListIdeasByStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seedIdea(t, db, "old", base)
	seedIdea(t, db, "new", base.Add(2*time.Hour))
	seedIdea(t, db, "mid-a", base.Add(time.Hour))
	seedIdea(t, db, "mid-b", base.Add(time.Hour))
	seedIdea(t, db, "approved", base.Add(3*time.Hour))
	_, err := db.TransitionIdea(ctx, models.IdeaTransition{IdeaID: "approved", From: models.IdeaPending, To: models.IdeaApproved, ActorID: 1})
	require.NoError(t, err)

	ideas, err := db.ListIdeasByStatus(ctx, models.IdeaPending, 0)
	require.NoError(t, err)
	var ids []string
	for _, i := range ideas {
		ids = append(ids, i.ID)
	}
	if diff := cmp.Diff([]string{"new", "mid-b", "mid-a", "old"}, ids); diff != "" {
		t.Errorf("pending order mismatch (-want +got):\n%s", diff)
	}

	ideas, err = db.ListIdeasByStatus(ctx, models.IdeaPending, 2)
	require.NoError(t, err)
	assert.Len(t, ideas, 2)
}

func TestSQLiteInterestRequestsDedup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedIdea(t, db, "a", time.Now())

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := db.CreateInterestRequest(ctx, &models.InterestRequest{IdeaID: "a", ClientID: 5})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)

	_, err := db.CreateInterestRequest(ctx, &models.InterestRequest{IdeaID: "a", ClientID: 3})
	require.NoError(t, err)

	ids, err := db.ListInterestedClients(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5}, ids)
}

func TestSQLiteBroadcastLogs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveBroadcast(ctx, &models.BroadcastLog{
		ID: "01A", IdeaID: "a", Policy: models.PolicyAnnounceApproved, Attempted: 3, Delivered: 2, Failed: []int64{9},
	}))
	require.NoError(t, db.SaveBroadcast(ctx, &models.BroadcastLog{
		ID: "01B", IdeaID: "a", Policy: models.PolicyAnnounceDone,
	}))

	logs, err := db.ListBroadcasts(ctx, "a")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, []int64{9}, logs[0].Failed)
	assert.Equal(t, []int64{}, logs[1].Failed)
}

func TestSQLiteSessionModes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	mode, err := db.GetSessionMode(ctx, 1, now)
	require.NoError(t, err)
	assert.Equal(t, models.ModeNone, mode)

	require.NoError(t, db.SetSessionMode(ctx, 1, models.ModeAwaitingIdea, now.Add(5*time.Minute)))
	mode, err = db.GetSessionMode(ctx, 1, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.ModeAwaitingIdea, mode)

	// expired rows are invisible before the cleanup runs
	mode, err = db.GetSessionMode(ctx, 1, now.Add(6*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.ModeNone, mode)

	n, err := db.DeleteExpiredSessions(ctx, now.Add(6*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, db.SetSessionMode(ctx, 2, models.ModeAwaitingIdea, now.Add(time.Minute)))
	require.NoError(t, db.ClearSessionMode(ctx, 2))
	mode, err = db.GetSessionMode(ctx, 2, now)
	require.NoError(t, err)
	assert.Equal(t, models.ModeNone, mode)
}
