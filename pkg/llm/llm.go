// Package llm wraps the Gemini API behind the three narrow capabilities the
// bot needs: intent classification, idea title summarization and speech
// recognition.
package llm

import "context"

// Classifier turns free text into a raw structured answer and summarizes ideas
type Classifier interface {
	Classify(ctx context.Context, text, systemContext string) (string, error)
	Summarize(ctx context.Context, text string) (string, error)
}

// Transcriber converts audio bytes into text. It may fail or return "".
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// ClassifyPrompt is the system context sent with every dialog message
const ClassifyPrompt = `Ты ассистент Telegram-бота Artvision для клиентов агентства.
Определи намерение пользователя и ответь ТОЛЬКО JSON-объектом одного из видов:
{"kind":"command","command":"tasks|overdue|week|workload|ideas|idea|help","args":[]}
{"kind":"create_idea","title":"краткий заголовок","description":"подробности"}
{"kind":"reply","text":"ответ пользователю"}
Выбирай create_idea, только если пользователь явно предлагает улучшение или новую функцию.`

const summarizePrompt = `Сформулируй краткий заголовок (до 100 символов) для идеи клиента.
Ответь только заголовком, без кавычек и пояснений.`

const transcribePrompt = `Transcribe this voice message verbatim in its original language.
Return only the transcript text. Return an empty string if there is no speech.`
