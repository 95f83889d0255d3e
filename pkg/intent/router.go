// Package intent decides, for each incoming utterance, whether it is a
// command, a pending idea submission or ordinary dialog.
package intent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/models"
	"github.com/justtrance-web/artvision-tg-bot/pkg/session"
	"github.com/justtrance-web/artvision-tg-bot/pkg/transcript"
)

// ActionKind is the routing outcome
type ActionKind int

const (
	RunCommand ActionKind = iota + 1
	SubmitIdea
	Dialog
)

func (k ActionKind) String() string {
	switch k {
	case RunCommand:
		return "command"
	case SubmitIdea:
		return "submit_idea"
	case Dialog:
		return "dialog"
	}
	return "unknown"
}

// Input is either text or a voice reference
type Input struct {
	Text  string
	Voice *transcript.VoiceRef
}

// Action is what the bot should do with an input
type Action struct {
	Kind ActionKind
	Name string   // RunCommand
	Args []string // RunCommand
	Text string   // SubmitIdea, Dialog

	Modality   models.Modality
	Transcript string // voice inputs only
}

// TranscriptResolver resolves voice references; "" means recognition failed
type TranscriptResolver interface {
	Resolve(ctx context.Context, ref transcript.VoiceRef) string
}

// Router owns the session mode of every user
type Router struct {
	sessions    session.Store
	transcripts TranscriptResolver
	log         *zap.Logger
}

func NewRouter(sessions session.Store, transcripts TranscriptResolver, log *zap.Logger) *Router {
	return &Router{sessions: sessions, transcripts: transcripts, log: log}
}

// Route classifies one input.
//
// Commands win over the session mode. When the user is awaiting an idea the
// mode is cleared here, before the submission is persisted: a crash after
// routing can lose that idea but never leaves the user stuck in idea mode.
func (r *Router) Route(ctx context.Context, userID int64, in Input) (Action, error) {
	text := in.Text
	modality := models.ModalityText
	var raw string

	if in.Voice != nil {
		raw = r.transcripts.Resolve(ctx, *in.Voice)
		if raw == "" {
			return Action{}, models.ErrRecognition
		}
		text = raw
		modality = models.ModalityVoice
	}

	text = strings.TrimSpace(text)
	if name, args, ok := ParseCommand(text); ok {
		return Action{Kind: RunCommand, Name: name, Args: args, Modality: modality, Transcript: raw}, nil
	}

	mode, err := r.sessions.Get(ctx, userID)
	if err != nil {
		return Action{}, fmt.Errorf("failed to read session mode: %w", err)
	}

	if mode == models.ModeAwaitingIdea {
		if err := r.sessions.Clear(ctx, userID); err != nil {
			// the TTL sweep still ends the mode
			r.log.Warn("failed to clear session mode", zap.Int64("user_id", userID), zap.Error(err))
		}
		return Action{Kind: SubmitIdea, Text: text, Modality: modality, Transcript: raw}, nil
	}

	return Action{Kind: Dialog, Text: text, Modality: modality, Transcript: raw}, nil
}

// BeginIdea puts the user into awaiting-idea mode
func (r *Router) BeginIdea(ctx context.Context, userID int64) error {
	return r.sessions.Set(ctx, userID, models.ModeAwaitingIdea)
}

// CancelIdea leaves awaiting-idea mode and reports whether it was active
func (r *Router) CancelIdea(ctx context.Context, userID int64) (bool, error) {
	mode, err := r.sessions.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if err := r.sessions.Clear(ctx, userID); err != nil {
		return false, err
	}
	return mode == models.ModeAwaitingIdea, nil
}

// ParseCommand splits "/name@bot arg1 arg2" into a lower-case name and args
func ParseCommand(text string) (name string, args []string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	name = fields[0]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}
