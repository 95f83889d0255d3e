// Package transcript turns a voice message reference into text.
package transcript

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/justtrance-web/artvision-tg-bot/pkg/llm"
)

// VoiceRef points at an audio file held by the chat transport
type VoiceRef struct {
	FileID   string
	MimeType string
}

// FileSource downloads transport-held files
type FileSource interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Resolver downloads a voice note and runs speech recognition.
// Every failure collapses to an empty transcript; callers treat "" as
// a recognition failure.
type Resolver struct {
	files FileSource
	stt   llm.Transcriber
	log   *zap.Logger
}

func NewResolver(files FileSource, stt llm.Transcriber, log *zap.Logger) *Resolver {
	return &Resolver{files: files, stt: stt, log: log}
}

// Resolve returns the trimmed transcript, or "" when anything fails
func (r *Resolver) Resolve(ctx context.Context, ref VoiceRef) string {
	if ref.FileID == "" || r.stt == nil {
		return ""
	}

	audio, err := r.files.DownloadFile(ctx, ref.FileID)
	if err != nil {
		r.log.Warn("voice download failed", zap.String("file_id", ref.FileID), zap.Error(err))
		return ""
	}

	text, err := r.stt.Transcribe(ctx, audio, ref.MimeType)
	if err != nil {
		r.log.Warn("speech recognition failed", zap.String("file_id", ref.FileID), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}
