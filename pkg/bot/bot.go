// Package bot turns inbound Telegram updates into calls on the idea
// lifecycle components and answers every user action.
package bot

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/justtrance-web/artvision-tg-bot/pkg/ideas"
	"github.com/justtrance-web/artvision-tg-bot/pkg/intent"
	"github.com/justtrance-web/artvision-tg-bot/pkg/llm"
	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
	"github.com/justtrance-web/artvision-tg-bot/pkg/moderation"
	"github.com/justtrance-web/artvision-tg-bot/pkg/transcript"
)

// Sender is the part of the Telegram client the bot talks through
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	EditMessageReplyMarkup(ctx context.Context, chatID int64, messageID int64, markup *models.InlineKeyboardMarkup) error
}

// Clients is the client registry
type Clients interface {
	UpsertClient(ctx context.Context, c *models.Client) error
	SetClientNotify(ctx context.Context, id int64, optIn bool) error
}

// Reports serves the task tracker reports
type Reports interface {
	Attention(ctx context.Context) (string, error)
	Overdue(ctx context.Context) (string, error)
	Week(ctx context.Context) (string, error)
	Workload(ctx context.Context) (string, error)
}

// Deps wires the bot. Classifier and Reports may be nil.
type Deps struct {
	Sender     Sender
	Clients    Clients
	Router     *intent.Router
	Ideas      *ideas.Store
	Gateway    *moderation.Gateway
	Classifier llm.Classifier
	Reports    Reports
	PortalURL  string
	Log        *zap.Logger
}

type Bot struct {
	Deps
	clientGroup singleflight.Group
	now         func() time.Time
}

func New(d Deps) *Bot {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Bot{Deps: d, now: time.Now}
}

// HandleUpdate processes one webhook update. User facing failures are
// answered in chat and logged; the returned error means the bot could not
// answer at all.
func (b *Bot) HandleUpdate(ctx context.Context, upd *models.Update) error {
	switch {
	case upd.CallbackQuery != nil:
		return b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		return b.handleMessage(ctx, upd.Message)
	}
	return nil
}

// request is the per-message context handed to command handlers
type request struct {
	userID int64
	chatID int64
	name   string
	client *models.Client
	action intent.Action
}

func (b *Bot) handleMessage(ctx context.Context, msg *models.Message) error {
	if msg.From == nil || msg.From.IsBot {
		return nil
	}

	in := intent.Input{Text: msg.Text}
	if in.Text == "" {
		in.Text = msg.Caption
	}
	if v := voiceOf(msg); v != nil {
		in.Voice = &transcript.VoiceRef{FileID: v.FileID, MimeType: v.MimeType}
	}
	if in.Text == "" && in.Voice == nil {
		return nil
	}

	req := &request{
		userID: msg.From.ID,
		chatID: msg.Chat.ID,
		name:   msg.From.DisplayName(),
		client: b.ensureClient(ctx, msg.From, msg.Chat.ID),
	}

	action, err := b.Router.Route(ctx, req.userID, in)
	if err != nil {
		return b.fail(ctx, req.chatID, "route", err)
	}
	req.action = action

	b.Log.Debug("routed message",
		zap.Int64("user_id", req.userID),
		zap.Stringer("kind", action.Kind),
		zap.String("modality", string(action.Modality)))

	switch action.Kind {
	case intent.RunCommand:
		return b.runCommand(ctx, req, action.Name, action.Args)
	case intent.SubmitIdea:
		return b.submit(ctx, req, ideas.SubmitParams{Description: action.Text})
	default:
		return b.dialog(ctx, req)
	}
}

func voiceOf(msg *models.Message) *models.Voice {
	if msg.Voice != nil {
		return msg.Voice
	}
	return msg.Audio
}

// ensureClient registers the sender. Concurrent updates from one user share
// a single upsert. A failed upsert is logged and the bot carries on with
// what the update itself tells.
func (b *Bot) ensureClient(ctx context.Context, u *models.User, chatID int64) *models.Client {
	fallback := &models.Client{ID: u.ID, ChatID: chatID, DisplayName: u.DisplayName(), Username: u.Username}

	v, err, _ := b.clientGroup.Do(strconv.FormatInt(u.ID, 10), func() (interface{}, error) {
		c := *fallback
		c.UpdatedAt = b.now().UTC()
		if err := b.Clients.UpsertClient(ctx, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
	if err != nil {
		b.Log.Warn("client upsert failed", zap.Int64("user_id", u.ID), zap.Error(err))
		return fallback
	}
	return v.(*models.Client)
}

// submit persists an idea and acknowledges it only once it is stored
func (b *Bot) submit(ctx context.Context, req *request, p ideas.SubmitParams) error {
	p.AuthorID = req.userID
	p.AuthorProject = req.client.Project
	p.Modality = req.action.Modality
	if p.Modality == "" {
		p.Modality = models.ModalityText
	}
	p.Transcript = req.action.Transcript

	id, err := b.Ideas.Submit(ctx, p)
	if err != nil {
		return b.fail(ctx, req.chatID, "submit idea", err)
	}

	// From here on the idea is stored. Errors are only logged: a failed
	// update would be redelivered and the idea stored a second time.
	idea, err := b.Ideas.Get(ctx, id)
	if err != nil {
		b.Log.Warn("stored idea reload failed", zap.String("idea_id", id), zap.Error(err))
		_ = b.reply(ctx, req.chatID, ideaAcceptedText(p.Title))
		return nil
	}
	_ = b.reply(ctx, req.chatID, ideaAcceptedText(idea.Title))
	b.Gateway.NotifyAdminsOfSubmission(ctx, idea)
	return nil
}

// dialog asks the classifier what the user meant
func (b *Bot) dialog(ctx context.Context, req *request) error {
	if b.Classifier == nil {
		return b.reply(ctx, req.chatID, fallbackReplyText)
	}
	raw, err := b.Classifier.Classify(ctx, req.action.Text, llm.ClassifyPrompt)
	if err != nil {
		return b.fail(ctx, req.chatID, "classify", err)
	}

	in := llm.ParseIntent(raw)
	switch in.Kind {
	case models.IntentCommand:
		return b.runCommand(ctx, req, in.Command, in.Args)
	case models.IntentCreateIdea:
		p := ideas.SubmitParams{Title: in.Title, Description: in.Description}
		if p.Description == "" {
			p.Description = req.action.Text
		}
		return b.submit(ctx, req, p)
	}
	if in.Text == "" {
		return b.reply(ctx, req.chatID, fallbackReplyText)
	}
	return b.reply(ctx, req.chatID, escape(in.Text))
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) error {
	return b.replyWith(ctx, chatID, text, nil)
}

func (b *Bot) replyWith(ctx context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) error {
	if err := b.Sender.SendMessage(ctx, chatID, text, markup); err != nil {
		b.Log.Error("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return err
	}
	return nil
}

// fail tells the user what went wrong and logs the cause
func (b *Bot) fail(ctx context.Context, chatID int64, op string, err error) error {
	level := zap.WarnLevel
	if errors.Is(err, models.ErrStorage) {
		level = zap.ErrorLevel
	}
	b.Log.Check(level, "request failed").Write(zap.String("op", op), zap.Int64("chat_id", chatID), zap.Error(err))
	return b.reply(ctx, chatID, errorText(err))
}
