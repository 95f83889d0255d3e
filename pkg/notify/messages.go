package notify

import (
	"fmt"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
	"github.com/justtrance-web/artvision-tg-bot/pkg/telegram"
)

// ApprovedMessage announces an approved idea with the "I want this too" button
func ApprovedMessage(idea *models.Idea) Message {
	return Message{
		Text: fmt.Sprintf("💡 <b>Новая идея</b>\n\n%s\n\nНужно и вам? Нажмите кнопку, и мы учтём ваш запрос.",
			telegram.Escape(idea.Title)),
		Actions: Keyboard(Button("🙋 Хочу так же", models.CallbackWant, idea.ID)),
	}
}

// DoneMessage tells interested clients the idea shipped
func DoneMessage(idea *models.Idea) Message {
	return Message{
		Text: fmt.Sprintf("✅ <b>Идея реализована</b>\n\n%s\n\nСпасибо, что ждали!", telegram.Escape(idea.Title)),
	}
}

// Button builds an inline callback button
func Button(text, action, ideaID string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: models.CallbackData(action, ideaID)}
}

// Keyboard puts buttons on a single row
func Keyboard(buttons ...models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{buttons}}
}
