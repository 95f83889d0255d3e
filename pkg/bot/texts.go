package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
	"github.com/justtrance-web/artvision-tg-bot/pkg/moderation"
	"github.com/justtrance-web/artvision-tg-bot/pkg/telegram"
)

const (
	adminOnlyText       = "⛔ Эта команда только для админов"
	unknownCommandText  = "Не знаю такой команды. Список команд: /help"
	fallbackReplyText   = "Я пока не понял вас. Чтобы предложить идею, отправьте /idea, список команд: /help"
	reportsDisabledText = "Отчёты по задачам не подключены."
	awaitingIdeaText    = "💡 Опишите идею одним сообщением, текстом или голосом.\n/cancel — отмена"
	cancelledText       = "Хорошо, отменили."
	nothingToCancelText = "Сейчас нечего отменять."
	notifyUsageText     = "Использование: /notify on | off"
	notifyOnText        = "🔔 Уведомления о новых идеях включены."
	notifyOffText       = "🔕 Уведомления о новых идеях выключены."
	noPendingText       = "✅ Нет идей на модерации."
	doneUsageText       = "Использование: /done &lt;id&gt; [client_id]"

	recognitionFailedText = "🎙 Не удалось распознать голосовое сообщение. Попробуйте ещё раз или напишите текстом."
	emptyIdeaText         = "✏️ Идея пустая. Опишите её текстом или голосом."
	notFoundText          = "🔍 Идея не найдена."
	conflictText          = "⚠️ Эта идея уже обработана."
	upstreamText          = "⏳ Сервис временно недоступен, попробуйте чуть позже."
	storageText           = "⚠️ Не получилось сохранить, попробуйте ещё раз позже."

	// callback answers are plain text
	cbUnknown      = "Неизвестное действие"
	cbForbidden    = "Только для админов"
	cbApproved     = "Одобрено"
	cbRejected     = "Отклонено"
	cbDone         = "Отмечено как реализованное"
	cbConflict     = "Уже обработано"
	cbNotFound     = "Идея не найдена"
	cbWantCreated  = "👍 Запрос принят, мы с вами свяжемся"
	cbWantExists   = "Вы уже отправили запрос"
	cbWantConflict = "Эта идея пока недоступна"
	cbFailed       = "Не получилось, попробуйте позже"
)

func escape(s string) string { return telegram.Escape(s) }

// errorText maps a failure to what the user sees
func errorText(err error) string {
	switch {
	case errors.Is(err, models.ErrRecognition):
		return recognitionFailedText
	case errors.Is(err, models.ErrForbidden):
		return adminOnlyText
	case errors.Is(err, models.ErrNotFound):
		return notFoundText
	case errors.Is(err, models.ErrConflict):
		return conflictText
	case errors.Is(err, models.ErrInvalidInput):
		return emptyIdeaText
	case errors.Is(err, models.ErrUpstream):
		return upstreamText
	}
	return storageText
}

func startText(name, portalURL string, admin bool) string {
	if name == "" {
		name = "User"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👋 Привет, %s!\n\nЯ бот <b>Artvision Portal</b>.\n\n", escape(name))
	b.WriteString(commandList(admin))
	if portalURL != "" {
		fmt.Fprintf(&b, "\n🔗 <a href=\"%s\">Открыть портал</a>", escape(portalURL))
	}
	return b.String()
}

func helpText(admin bool) string {
	return commandList(admin)
}

func commandList(admin bool) string {
	var b strings.Builder
	b.WriteString("<b>Команды:</b>\n")
	b.WriteString("/idea — Предложить идею\n")
	b.WriteString("/cancel — Отменить ввод идеи\n")
	b.WriteString("/notify on|off — Уведомления о новых идеях\n")
	b.WriteString("/tasks — Задачи без сроков/исполнителей\n")
	b.WriteString("/overdue — Просроченные задачи\n")
	b.WriteString("/week — Задачи на неделю\n")
	if admin {
		b.WriteString("\n<b>Для админов:</b>\n")
		b.WriteString("/workload — Загрузка команды\n")
		b.WriteString("/ideas — Идеи на модерации\n")
		b.WriteString("/approve &lt;id&gt; · /reject &lt;id&gt;\n")
		b.WriteString("/done &lt;id&gt; [client_id]\n")
	}
	return b.String()
}

func ideaAcceptedText(title string) string {
	if title == "" {
		return "🙏 Спасибо! Идея отправлена на модерацию."
	}
	return fmt.Sprintf("🙏 Спасибо! Идея «%s» отправлена на модерацию.", escape(title))
}

func approvedText(out *moderation.Outcome) string {
	if out.AnnounceErr != nil {
		return fmt.Sprintf("✅ Идея «%s» одобрена, но рассылку запустить не удалось.", escape(out.Idea.Title))
	}
	return fmt.Sprintf("✅ Идея «%s» одобрена. Разослано: %d из %d.",
		escape(out.Idea.Title), out.Broadcast.Delivered, out.Broadcast.Attempted)
}

func rejectedText(out *moderation.Outcome) string {
	return fmt.Sprintf("❌ Идея «%s» отклонена.", escape(out.Idea.Title))
}

func doneText(out *moderation.Outcome) string {
	if out.AnnounceErr != nil {
		return fmt.Sprintf("🏁 Идея «%s» реализована, но уведомить клиентов не удалось.", escape(out.Idea.Title))
	}
	return fmt.Sprintf("🏁 Идея «%s» реализована. Уведомлено: %d из %d.",
		escape(out.Idea.Title), out.Broadcast.Delivered, out.Broadcast.Attempted)
}

// ageMagnitudes are humanize's default steps with Russian abbreviations
var ageMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "только что", DivBy: time.Second},
	{D: time.Hour, Format: "%d мин. %s", DivBy: time.Minute},
	{D: humanize.Day, Format: "%d ч. %s", DivBy: time.Hour},
	{D: humanize.Week, Format: "%d дн. %s", DivBy: humanize.Day},
	{D: humanize.Month, Format: "%d нед. %s", DivBy: humanize.Week},
	{D: humanize.Year, Format: "%d мес. %s", DivBy: humanize.Month},
	{D: humanize.LongTime, Format: "%d г. %s", DivBy: humanize.Year},
	{D: 1<<63 - 1, Format: "очень давно", DivBy: 1},
}

// relAge renders how long ago t was, e.g. "5 мин. назад"
func relAge(t, now time.Time) string {
	return humanize.CustomRelTime(t, now, "назад", "спустя", ageMagnitudes)
}
