package moderation

import (
	"fmt"
	"strings"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
	"github.com/justtrance-web/artvision-tg-bot/pkg/notify"
	"github.com/justtrance-web/artvision-tg-bot/pkg/telegram"
)

func authorApprovedText(idea *models.Idea) string {
	return fmt.Sprintf("🎉 Ваша идея «%s» одобрена и показана другим клиентам.", telegram.Escape(idea.Title))
}

func authorRejectedText(idea *models.Idea) string {
	return fmt.Sprintf("Спасибо за идею «%s»! Пока мы не будем её реализовывать.", telegram.Escape(idea.Title))
}

func authorDoneText(idea *models.Idea) string {
	return fmt.Sprintf("✅ Ваша идея «%s» реализована!", telegram.Escape(idea.Title))
}

func submissionMessage(idea *models.Idea, author string) notify.Message {
	var b strings.Builder
	b.WriteString("📝 <b>Новая идея на модерации</b>\n\n")
	fmt.Fprintf(&b, "<b>%s</b>\n", telegram.Escape(idea.Title))
	if idea.Description != "" && idea.Description != idea.Title {
		fmt.Fprintf(&b, "%s\n", telegram.Escape(idea.Description))
	}
	if idea.Modality == models.ModalityVoice && idea.Transcript != "" {
		fmt.Fprintf(&b, "🎙 <i>%s</i>\n", telegram.Escape(idea.Transcript))
	}
	fmt.Fprintf(&b, "\n👤 %s", telegram.Escape(author))
	if idea.AuthorProject != "" {
		fmt.Fprintf(&b, " (%s)", telegram.Escape(idea.AuthorProject))
	}
	fmt.Fprintf(&b, "\nID: <code>%s</code>", idea.ID)

	return notify.Message{
		Text: b.String(),
		Actions: notify.Keyboard(
			notify.Button("✅ Одобрить", models.CallbackApprove, idea.ID),
			notify.Button("❌ Отклонить", models.CallbackReject, idea.ID),
		),
	}
}

func interestMessage(idea *models.Idea, requester string) notify.Message {
	return notify.Message{
		Text: fmt.Sprintf("🙋 %s хочет идею «%s»\nID: <code>%s</code>",
			telegram.Escape(requester), telegram.Escape(idea.Title), idea.ID),
		Actions: notify.Keyboard(notify.Button("🏁 Реализовано", models.CallbackDone, idea.ID)),
	}
}
