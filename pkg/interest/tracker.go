// Package interest records which clients want an announced idea.
package interest

import (
	"context"
	"fmt"
	"time"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

// Outcome of a RequestInterest call
type Outcome int

const (
	Created Outcome = iota + 1
	AlreadyExists
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	}
	return "unknown"
}

// Repository is the persistence the tracker needs
type Repository interface {
	GetIdea(ctx context.Context, id string) (*models.Idea, error)
	CreateInterestRequest(ctx context.Context, r *models.InterestRequest) (bool, error)
	ListInterestedClients(ctx context.Context, ideaID string) ([]int64, error)
}

// Tracker deduplicates interest on the (idea, client) storage key, so
// concurrent taps from the same client produce one row.
type Tracker struct {
	repo Repository
	now  func() time.Time
}

func NewTracker(repo Repository) *Tracker {
	return &Tracker{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// RequestInterest records interest of clientID in an approved or done idea
func (t *Tracker) RequestInterest(ctx context.Context, ideaID string, clientID int64) (Outcome, error) {
	idea, err := t.repo.GetIdea(ctx, ideaID)
	if err != nil {
		return 0, err
	}
	if idea.Status != models.IdeaApproved && idea.Status != models.IdeaDone {
		return 0, fmt.Errorf("idea %s is %s: %w", ideaID, idea.Status, models.ErrConflict)
	}

	created, err := t.repo.CreateInterestRequest(ctx, &models.InterestRequest{
		IdeaID:    ideaID,
		ClientID:  clientID,
		Status:    models.InterestPending,
		CreatedAt: t.now(),
	})
	if err != nil {
		return 0, err
	}
	if !created {
		return AlreadyExists, nil
	}
	return Created, nil
}

// ListInterested returns the interested client ids in ascending order
func (t *Tracker) ListInterested(ctx context.Context, ideaID string) ([]int64, error) {
	return t.repo.ListInterestedClients(ctx, ideaID)
}
