// Package moderation is the only path through which idea status changes.
// Every privileged call re-checks the admin allow-list.
package moderation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/ideas"
	"github.com/justtrance-web/artvision-tg-bot/pkg/interest"
	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
	"github.com/justtrance-web/artvision-tg-bot/pkg/notify"
)

// Admins is the moderator allow-list
type Admins interface {
	Contains(id int64) bool
	IDs() []int64
}

// ClientLookup resolves client records for notices
type ClientLookup interface {
	GetClient(ctx context.Context, id int64) (*models.Client, error)
}

// Outcome is the committed transition plus what the announcement achieved.
// AnnounceErr is set when the recipients could not be listed; the
// transition itself stays committed.
type Outcome struct {
	Idea        *models.Idea
	Broadcast   notify.Result
	AnnounceErr error
}

type Gateway struct {
	ideas    *ideas.Store
	interest *interest.Tracker
	notifier *notify.Notifier
	admins   Admins
	clients  ClientLookup
	log      *zap.Logger
}

func NewGateway(store *ideas.Store, tracker *interest.Tracker, notifier *notify.Notifier, admins Admins, clients ClientLookup, log *zap.Logger) *Gateway {
	return &Gateway{
		ideas:    store,
		interest: tracker,
		notifier: notifier,
		admins:   admins,
		clients:  clients,
		log:      log,
	}
}

// IsAdmin reports whether userID may moderate
func (g *Gateway) IsAdmin(userID int64) bool {
	return g.admins.Contains(userID)
}

func (g *Gateway) requireAdmin(userID int64) error {
	if !g.admins.Contains(userID) {
		return fmt.Errorf("user %d is not a moderator: %w", userID, models.ErrForbidden)
	}
	return nil
}

// Approve publishes a pending idea to all other clients.
// A lost race returns models.ErrConflict and broadcasts nothing.
func (g *Gateway) Approve(ctx context.Context, ideaID string, moderatorID int64) (*Outcome, error) {
	if err := g.requireAdmin(moderatorID); err != nil {
		return nil, err
	}
	idea, err := g.ideas.Approve(ctx, ideaID, moderatorID)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Idea: idea}
	out.Broadcast, out.AnnounceErr = g.notifier.AnnounceApproved(ctx, idea)
	if out.AnnounceErr != nil {
		g.log.Error("approval announcement failed", zap.String("idea_id", idea.ID), zap.Error(out.AnnounceErr))
	}
	g.noticeAuthor(ctx, idea, authorApprovedText(idea))
	return out, nil
}

// Reject closes a pending idea without any broadcast
func (g *Gateway) Reject(ctx context.Context, ideaID string, moderatorID int64) (*Outcome, error) {
	if err := g.requireAdmin(moderatorID); err != nil {
		return nil, err
	}
	idea, err := g.ideas.Reject(ctx, ideaID, moderatorID)
	if err != nil {
		return nil, err
	}
	g.noticeAuthor(ctx, idea, authorRejectedText(idea))
	return &Outcome{Idea: idea, Broadcast: notify.Result{Failed: []int64{}}}, nil
}

// MarkDone completes an approved idea and tells everyone who asked for it.
// targetClientID is optional (0) and must exist when given.
func (g *Gateway) MarkDone(ctx context.Context, ideaID string, targetClientID, moderatorID int64) (*Outcome, error) {
	if err := g.requireAdmin(moderatorID); err != nil {
		return nil, err
	}
	if targetClientID != 0 {
		if _, err := g.clients.GetClient(ctx, targetClientID); err != nil {
			return nil, err
		}
	}
	idea, err := g.ideas.MarkDone(ctx, ideaID, targetClientID)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Idea: idea}
	out.Broadcast, out.AnnounceErr = g.notifier.AnnounceDone(ctx, idea)
	if out.AnnounceErr != nil {
		g.log.Error("completion announcement failed", zap.String("idea_id", idea.ID), zap.Error(out.AnnounceErr))
	}
	g.noticeAuthor(ctx, idea, authorDoneText(idea))
	return out, nil
}

// RecordInterest is open to every client. A new request notifies the admins;
// that notice is best effort.
func (g *Gateway) RecordInterest(ctx context.Context, ideaID string, clientID int64) (interest.Outcome, error) {
	outcome, err := g.interest.RequestInterest(ctx, ideaID, clientID)
	if err != nil {
		return 0, err
	}
	if outcome != interest.Created {
		return outcome, nil
	}

	idea, err := g.ideas.Get(ctx, ideaID)
	if err != nil {
		g.log.Warn("interest recorded but idea reload failed", zap.String("idea_id", ideaID), zap.Error(err))
		return outcome, nil
	}
	requester := g.mention(ctx, clientID)
	g.notifier.NotifyAdmins(ctx, ideaID, g.admins.IDs(), interestMessage(idea, requester))
	return outcome, nil
}

// NotifyAdminsOfSubmission sends a new idea to the moderators with approve and reject buttons
func (g *Gateway) NotifyAdminsOfSubmission(ctx context.Context, idea *models.Idea) notify.Result {
	return g.notifier.NotifyAdmins(ctx, idea.ID, g.admins.IDs(), submissionMessage(idea, g.mention(ctx, idea.AuthorID)))
}

// ListPending is the moderator queue
func (g *Gateway) ListPending(ctx context.Context, moderatorID int64, limit int) ([]models.Idea, error) {
	if err := g.requireAdmin(moderatorID); err != nil {
		return nil, err
	}
	return g.ideas.ListPending(ctx, limit)
}

// noticeAuthor sends a direct message to the idea author, best effort
func (g *Gateway) noticeAuthor(ctx context.Context, idea *models.Idea, text string) {
	if err := g.notifier.Send(ctx, idea.AuthorID, notify.Message{Text: text}); err != nil {
		g.log.Warn("author notice failed", zap.String("idea_id", idea.ID), zap.Int64("author_id", idea.AuthorID), zap.Error(err))
	}
}

func (g *Gateway) mention(ctx context.Context, clientID int64) string {
	c, err := g.clients.GetClient(ctx, clientID)
	if err != nil {
		return (&models.Client{ID: clientID}).Mention()
	}
	return c.Mention()
}
