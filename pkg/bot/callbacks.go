package bot

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/interest"
	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

// handleCallback serves inline button presses. Every press is answered once.
func (b *Bot) handleCallback(ctx context.Context, q *models.CallbackQuery) error {
	action, ideaID, ok := models.ParseCallbackData(q.Data)
	if !ok {
		return b.answer(ctx, q, cbUnknown)
	}

	chatID := q.From.ID
	if q.Message != nil {
		chatID = q.Message.Chat.ID
	}
	b.ensureClient(ctx, &q.From, q.From.ID)

	var (
		text string
		err  error
	)
	switch action {
	case models.CallbackApprove:
		_, err = b.Gateway.Approve(ctx, ideaID, q.From.ID)
		text = cbApproved
	case models.CallbackReject:
		_, err = b.Gateway.Reject(ctx, ideaID, q.From.ID)
		text = cbRejected
	case models.CallbackDone:
		_, err = b.Gateway.MarkDone(ctx, ideaID, 0, q.From.ID)
		text = cbDone
	case models.CallbackWant:
		var outcome interest.Outcome
		outcome, err = b.Gateway.RecordInterest(ctx, ideaID, q.From.ID)
		text = cbWantCreated
		if outcome == interest.AlreadyExists {
			text = cbWantExists
		}
		if errors.Is(err, models.ErrConflict) {
			return b.answer(ctx, q, cbWantConflict)
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, models.ErrForbidden):
		return b.answer(ctx, q, cbForbidden)
	case errors.Is(err, models.ErrConflict):
		// someone else already moderated it; the buttons are stale
		b.clearButtons(ctx, chatID, q.Message)
		return b.answer(ctx, q, cbConflict)
	case errors.Is(err, models.ErrNotFound):
		return b.answer(ctx, q, cbNotFound)
	default:
		b.Log.Error("callback action failed",
			zap.String("action", action),
			zap.String("idea_id", ideaID),
			zap.Int64("user_id", q.From.ID),
			zap.Error(err))
		return b.answer(ctx, q, cbFailed)
	}

	b.clearButtons(ctx, chatID, q.Message)
	return b.answer(ctx, q, text)
}

func (b *Bot) answer(ctx context.Context, q *models.CallbackQuery, text string) error {
	if err := b.Sender.AnswerCallbackQuery(ctx, q.ID, text); err != nil {
		b.Log.Error("callback answer failed", zap.String("callback_id", q.ID), zap.Error(err))
		return err
	}
	return nil
}

// clearButtons removes the inline keyboard so a press cannot be repeated
func (b *Bot) clearButtons(ctx context.Context, chatID int64, msg *models.Message) {
	if msg == nil {
		return
	}
	if err := b.Sender.EditMessageReplyMarkup(ctx, chatID, msg.MessageID, nil); err != nil {
		b.Log.Warn("failed to clear buttons", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
