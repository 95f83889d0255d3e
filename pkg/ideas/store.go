// Package ideas owns idea records and their status transitions.
package ideas

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

// Repository is the persistence the store needs
type Repository interface {
	CreateIdea(ctx context.Context, idea *models.Idea) error
	GetIdea(ctx context.Context, id string) (*models.Idea, error)
	TransitionIdea(ctx context.Context, t models.IdeaTransition) (*models.Idea, error)
	ListIdeasByStatus(ctx context.Context, status models.IdeaStatus, limit int) ([]models.Idea, error)
}

// Summarizer shortens a voice transcript into a title
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// SubmitParams describes a new idea. An empty Title is derived: voice ideas
// summarize the transcript, text ideas take the first line of Description.
type SubmitParams struct {
	AuthorID      int64
	AuthorProject string
	Title         string
	Description   string
	Modality      models.Modality
	Transcript    string
}

// Store creates ideas and moves them through pending -> approved|rejected -> done
type Store struct {
	repo       Repository
	summarizer Summarizer
	log        *zap.Logger
	now        func() time.Time
	newID      func() string
}

// NewStore creates a store. summarizer may be nil.
func NewStore(repo Repository, summarizer Summarizer, log *zap.Logger) *Store {
	return &Store{
		repo:       repo,
		summarizer: summarizer,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// Submit persists a pending idea and returns its id.
// A storage failure is returned as models.ErrStorage and the idea must not
// be acknowledged to the user.
func (s *Store) Submit(ctx context.Context, p SubmitParams) (string, error) {
	if p.Modality == "" {
		p.Modality = models.ModalityText
	}

	title := strings.TrimSpace(p.Title)
	description := strings.TrimSpace(p.Description)
	if title == "" {
		switch p.Modality {
		case models.ModalityVoice:
			title = s.voiceTitle(ctx, p.Transcript)
		default:
			title, description = SplitText(description)
		}
	}
	if title == "" {
		return "", fmt.Errorf("idea title is empty: %w", models.ErrInvalidInput)
	}

	idea := &models.Idea{
		ID:            s.newID(),
		AuthorID:      p.AuthorID,
		AuthorProject: p.AuthorProject,
		Title:         models.TruncateTitle(title),
		Description:   description,
		Modality:      p.Modality,
		Transcript:    p.Transcript,
		Status:        models.IdeaPending,
		CreatedAt:     s.now(),
	}
	if err := s.repo.CreateIdea(ctx, idea); err != nil {
		return "", err
	}

	s.log.Info("idea submitted",
		zap.String("idea_id", idea.ID),
		zap.Int64("author_id", idea.AuthorID),
		zap.String("modality", string(idea.Modality)))
	return idea.ID, nil
}

// voiceTitle summarizes a transcript, falling back to the raw transcript
func (s *Store) voiceTitle(ctx context.Context, transcript string) string {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" || s.summarizer == nil {
		return transcript
	}
	title, err := s.summarizer.Summarize(ctx, transcript)
	if err != nil {
		s.log.Warn("title summarization failed, using transcript", zap.Error(err))
		return transcript
	}
	if title = strings.TrimSpace(title); title == "" {
		return transcript
	}
	return title
}

// SplitText uses the first non-empty line as the title. The full text is kept
// as description only when it says more than the title.
func SplitText(text string) (title, description string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	first := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		first = strings.TrimSpace(text[:i])
	}
	title = models.TruncateTitle(first)
	if text != title {
		description = text
	}
	return title, description
}

// Get returns one idea
func (s *Store) Get(ctx context.Context, ideaID string) (*models.Idea, error) {
	return s.repo.GetIdea(ctx, ideaID)
}

// Approve moves a pending idea to approved
func (s *Store) Approve(ctx context.Context, ideaID string, moderatorID int64) (*models.Idea, error) {
	return s.transition(ctx, ideaID, models.IdeaPending, models.IdeaApproved, moderatorID)
}

// Reject moves a pending idea to rejected
func (s *Store) Reject(ctx context.Context, ideaID string, moderatorID int64) (*models.Idea, error) {
	return s.transition(ctx, ideaID, models.IdeaPending, models.IdeaRejected, moderatorID)
}

// MarkDone moves an approved idea to done. targetClientID may be 0.
func (s *Store) MarkDone(ctx context.Context, ideaID string, targetClientID int64) (*models.Idea, error) {
	return s.transition(ctx, ideaID, models.IdeaApproved, models.IdeaDone, targetClientID)
}

func (s *Store) transition(ctx context.Context, ideaID string, from, to models.IdeaStatus, actorID int64) (*models.Idea, error) {
	idea, err := s.repo.TransitionIdea(ctx, models.IdeaTransition{
		IdeaID:  ideaID,
		From:    from,
		To:      to,
		ActorID: actorID,
		At:      s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("idea transitioned",
		zap.String("idea_id", ideaID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int64("actor_id", actorID))
	return idea, nil
}

// ListPending returns pending ideas newest first. limit <= 0 means 10; at most 50.
func (s *Store) ListPending(ctx context.Context, limit int) ([]models.Idea, error) {
	return s.repo.ListIdeasByStatus(ctx, models.IdeaPending, limit)
}

// ListByStatus is ListPending for any status
func (s *Store) ListByStatus(ctx context.Context, status models.IdeaStatus, limit int) ([]models.Idea, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, models.ErrInvalidInput)
	}
	return s.repo.ListIdeasByStatus(ctx, status, limit)
}
