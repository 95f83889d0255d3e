package models

import (
	"time"
	"unicode/utf8"
)

// IdeaStatus represents the moderation state of an idea
type IdeaStatus string

const (
	IdeaPending  IdeaStatus = "pending"
	IdeaApproved IdeaStatus = "approved"
	IdeaRejected IdeaStatus = "rejected"
	IdeaDone     IdeaStatus = "done"
)

// Modality is the input channel an idea was submitted through
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityVoice Modality = "voice"
)

// MaxTitleLength is the maximum idea title length in runes
const MaxTitleLength = 100

// Idea represents a client-submitted improvement proposal
type Idea struct {
	ID             string     `json:"id" db:"id"`
	AuthorID       int64      `json:"author_id" db:"author_id"`
	AuthorProject  string     `json:"author_project,omitempty" db:"author_project"`
	Title          string     `json:"title" db:"title"`
	Description    string     `json:"description,omitempty" db:"description"`
	Modality       Modality   `json:"modality" db:"modality"`
	Transcript     string     `json:"transcript,omitempty" db:"transcript"`
	Status         IdeaStatus `json:"status" db:"status"`
	ModeratorID    *int64     `json:"moderator_id,omitempty" db:"moderator_id"`
	ModeratedAt    *time.Time `json:"moderated_at,omitempty" db:"moderated_at"`
	TargetClientID *int64     `json:"target_client_id,omitempty" db:"target_client_id"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// IsTerminal reports whether no transition leaves the status
func (s IdeaStatus) IsTerminal() bool {
	return s == IdeaRejected || s == IdeaDone
}

// Valid reports whether s is a known status
func (s IdeaStatus) Valid() bool {
	switch s {
	case IdeaPending, IdeaApproved, IdeaRejected, IdeaDone:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal edge of the idea state machine.
// pending -> approved, pending -> rejected and approved -> done are the only legal edges.
func CanTransition(from, to IdeaStatus) bool {
	switch from {
	case IdeaPending:
		return to == IdeaApproved || to == IdeaRejected
	case IdeaApproved:
		return to == IdeaDone
	}
	return false
}

// IdeaTransition describes a conditional status update.
// The update only applies when the stored status equals From.
type IdeaTransition struct {
	IdeaID  string
	From    IdeaStatus
	To      IdeaStatus
	ActorID int64 // moderator for approve/reject, target client for done
	At      time.Time
}

// TruncateTitle cuts a title to MaxTitleLength runes on a rune boundary
func TruncateTitle(s string) string {
	if utf8.RuneCountInString(s) <= MaxTitleLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxTitleLength-1]) + "…"
}
