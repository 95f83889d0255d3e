package interest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justtrance-web/artvision-tg-bot/pkg/database"
	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

func setup(t *testing.T, status models.IdeaStatus) (*Tracker, *database.SQLiteDatabase) {
	t.Helper()
	db, err := database.NewSQLiteDatabase(filepath.Join(t.TempDir(), "interest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.CreateIdea(ctx, &models.Idea{ID: "i1", AuthorID: 1, Title: "PDF export", Modality: models.ModalityText}))
	if status == models.IdeaApproved || status == models.IdeaDone {
		_, err := db.TransitionIdea(ctx, models.IdeaTransition{IdeaID: "i1", From: models.IdeaPending, To: models.IdeaApproved, ActorID: 9})
		require.NoError(t, err)
	}
	if status == models.IdeaDone {
		_, err := db.TransitionIdea(ctx, models.IdeaTransition{IdeaID: "i1", From: models.IdeaApproved, To: models.IdeaDone})
		require.NoError(t, err)
	}
	if status == models.IdeaRejected {
		_, err := db.TransitionIdea(ctx, models.IdeaTransition{IdeaID: "i1", From: models.IdeaPending, To: models.IdeaRejected, ActorID: 9})
		require.NoError(t, err)
	}
	return NewTracker(db), db
}

func TestRequestInterest(t *testing.T) {
	tr, _ := setup(t, models.IdeaApproved)
	ctx := context.Background()

	out, err := tr.RequestInterest(ctx, "i1", 5)
	require.NoError(t, err)
	assert.Equal(t, Created, out)

	out, err = tr.RequestInterest(ctx, "i1", 5)
	require.NoError(t, err)
	assert.Equal(t, AlreadyExists, out)

	ids, err := tr.ListInterested(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, ids)
}

func TestRequestInterestOnDoneIdea(t *testing.T) {
	tr, _ := setup(t, models.IdeaDone)
	out, err := tr.RequestInterest(context.Background(), "i1", 5)
	require.NoError(t, err)
	assert.Equal(t, Created, out)
}

func TestRequestInterestPreconditions(t *testing.T) {
	for _, status := range []models.IdeaStatus{models.IdeaPending, models.IdeaRejected} {
		t.Run(string(status), func(t *testing.T) {
			tr, _ := setup(t, status)
			_, err := tr.RequestInterest(context.Background(), "i1", 5)
			assert.ErrorIs(t, err, models.ErrConflict)
		})
	}

	tr, _ := setup(t, models.IdeaApproved)
	_, err := tr.RequestInterest(context.Background(), "missing", 5)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRequestInterestConcurrentDuplicates(t *testing.T) {
	tr, _ := setup(t, models.IdeaApproved)
	ctx := context.Background()

	const n = 16
	outcomes := make([]Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := tr.RequestInterest(ctx, "i1", 7)
			assert.NoError(t, err)
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	created := 0
	for _, o := range outcomes {
		if o == Created {
			created++
		}
	}
	assert.Equal(t, 1, created)

	ids, err := tr.ListInterested(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids)
}
