// Package notify delivers one message to many recipients, one independent
// send per recipient, spaced by a minimum delay to respect transport limits.
package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

// DefaultDelay separates two consecutive sends (Telegram allows ~30 msg/s)
const DefaultDelay = 40 * time.Millisecond

// Sender delivers a single message. For private chats the chat id equals the user id.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) error
}

// Directory resolves recipients and stores the audit trail
type Directory interface {
	ListBroadcastClients(ctx context.Context, excludeID int64) ([]int64, error)
	ListInterestedClients(ctx context.Context, ideaID string) ([]int64, error)
	SaveBroadcast(ctx context.Context, l *models.BroadcastLog) error
	SetClientActive(ctx context.Context, id int64, active bool) error
}

// unreachable is implemented by send errors meaning the recipient closed the chat
type unreachable interface {
	Unreachable() bool
}

// Message is the content of a broadcast
type Message struct {
	Text    string
	Actions *models.InlineKeyboardMarkup
}

// Result of a broadcast. Failed lists the recipients that did not get the
// message, in send order.
type Result struct {
	Attempted int     `json:"attempted"`
	Delivered int     `json:"delivered"`
	Failed    []int64 `json:"failed"`
}

// Notifier fans messages out. Its only shared state is the send clock.
type Notifier struct {
	sender Sender
	dir    Directory
	delay  time.Duration
	log    *zap.Logger

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// New creates a notifier. A negative delay is treated as zero.
func New(sender Sender, dir Directory, delay time.Duration, log *zap.Logger) *Notifier {
	if delay < 0 {
		delay = 0
	}
	return &Notifier{sender: sender, dir: dir, delay: delay, log: log, now: time.Now}
}

// Broadcast sends msg to every distinct recipient in ascending id order.
// Per-recipient failures are recorded in the result, never returned.
// When ctx ends the remaining recipients are marked failed.
func (n *Notifier) Broadcast(ctx context.Context, recipients []int64, msg Message) Result {
	ids := dedupe(recipients)
	res := Result{Attempted: len(ids), Failed: []int64{}}

	for i, id := range ids {
		if err := n.wait(ctx); err != nil {
			res.Failed = append(res.Failed, ids[i:]...)
			n.log.Warn("broadcast interrupted", zap.Int("remaining", len(ids)-i), zap.Error(err))
			break
		}
		if err := n.sender.SendMessage(ctx, id, msg.Text, msg.Actions); err != nil {
			res.Failed = append(res.Failed, id)
			n.log.Warn("broadcast delivery failed", zap.Int64("recipient", id), zap.Error(err))
			n.dropUnreachable(ctx, id, err)
			continue
		}
		res.Delivered++
	}
	return res
}

// wait reserves the next send slot and sleeps until it arrives
func (n *Notifier) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	now := n.now()
	slot := now
	if !n.last.IsZero() {
		if next := n.last.Add(n.delay); next.After(now) {
			slot = next
		}
	}
	n.last = slot
	n.mu.Unlock()

	d := slot.Sub(now)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// dropUnreachable takes a client out of future broadcasts once the transport
// says the chat is closed
func (n *Notifier) dropUnreachable(ctx context.Context, id int64, err error) {
	var u unreachable
	if !errors.As(err, &u) || !u.Unreachable() {
		return
	}
	if err := n.dir.SetClientActive(context.WithoutCancel(ctx), id, false); err != nil {
		n.log.Debug("could not deactivate recipient", zap.Int64("recipient", id), zap.Error(err))
		return
	}
	n.log.Info("recipient deactivated", zap.Int64("recipient", id))
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AnnounceApproved tells every active opted-in client except the author
// about an approved idea, with a button to request it.
func (n *Notifier) AnnounceApproved(ctx context.Context, idea *models.Idea) (Result, error) {
	recipients, err := n.dir.ListBroadcastClients(ctx, idea.AuthorID)
	if err != nil {
		return Result{Failed: []int64{}}, err
	}
	res := n.Broadcast(ctx, recipients, ApprovedMessage(idea))
	n.audit(ctx, idea.ID, models.PolicyAnnounceApproved, res)
	return res, nil
}

// AnnounceDone tells every client who requested the idea that it shipped
func (n *Notifier) AnnounceDone(ctx context.Context, idea *models.Idea) (Result, error) {
	recipients, err := n.dir.ListInterestedClients(ctx, idea.ID)
	if err != nil {
		return Result{Failed: []int64{}}, err
	}
	res := n.Broadcast(ctx, recipients, DoneMessage(idea))
	n.audit(ctx, idea.ID, models.PolicyAnnounceDone, res)
	return res, nil
}

// NotifyAdmins sends an admin-facing message about an idea
func (n *Notifier) NotifyAdmins(ctx context.Context, ideaID string, admins []int64, msg Message) Result {
	res := n.Broadcast(ctx, admins, msg)
	n.audit(ctx, ideaID, models.PolicyAdminSummary, res)
	return res
}

// Send delivers one direct message through the same rate limit
func (n *Notifier) Send(ctx context.Context, chatID int64, msg Message) error {
	if err := n.wait(ctx); err != nil {
		return err
	}
	return n.sender.SendMessage(ctx, chatID, msg.Text, msg.Actions)
}

// audit stores the broadcast log; failures are logged only
func (n *Notifier) audit(ctx context.Context, ideaID string, policy models.BroadcastPolicy, res Result) {
	now := n.now().UTC()
	entry := &models.BroadcastLog{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		IdeaID:    ideaID,
		Policy:    policy,
		Attempted: res.Attempted,
		Delivered: res.Delivered,
		Failed:    res.Failed,
		CreatedAt: now,
	}
	// the log is written even when the broadcast was cancelled
	if err := n.dir.SaveBroadcast(context.WithoutCancel(ctx), entry); err != nil {
		n.log.Warn("failed to save broadcast log", zap.String("idea_id", ideaID), zap.Error(err))
		return
	}
	n.log.Info("broadcast finished",
		zap.String("idea_id", ideaID),
		zap.String("policy", string(policy)),
		zap.Int("attempted", res.Attempted),
		zap.Int("delivered", res.Delivered),
		zap.Int64s("failed", res.Failed))
}
