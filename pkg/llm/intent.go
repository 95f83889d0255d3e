package llm

import (
	"encoding/json"
	"strings"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
)

type rawIntent struct {
	Kind        string          `json:"kind"`
	Command     string          `json:"command"`
	Args        json.RawMessage `json:"args"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Text        string          `json:"text"`
}

// ParseIntent converts a classifier answer into the closed intent variant.
// Anything that does not parse into Command, CreateIdea or Reply becomes a
// Reply carrying the raw answer, never an error.
func ParseIntent(raw string) models.Intent {
	body := stripFences(raw)
	fallback := models.Intent{Kind: models.IntentReply, Text: strings.TrimSpace(raw)}

	var r rawIntent
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return fallback
	}
	// a JSON answer that is not an intent is not worth showing to the user
	fallback.Text = ""

	switch models.IntentKind(strings.ToLower(strings.TrimSpace(r.Kind))) {
	case models.IntentCommand:
		cmd := strings.TrimPrefix(strings.TrimSpace(r.Command), "/")
		if cmd == "" || strings.ContainsAny(cmd, " \n\t") {
			return fallback
		}
		return models.Intent{Kind: models.IntentCommand, Command: strings.ToLower(cmd), Args: parseArgs(r.Args)}
	case models.IntentCreateIdea:
		title := strings.TrimSpace(r.Title)
		if title == "" {
			return fallback
		}
		return models.Intent{Kind: models.IntentCreateIdea, Title: title, Description: strings.TrimSpace(r.Description)}
	case models.IntentReply:
		return models.Intent{Kind: models.IntentReply, Text: strings.TrimSpace(r.Text)}
	}
	return fallback
}

// parseArgs accepts ["a","b"] or "a b"
func parseArgs(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.Fields(s)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
