package models

// SessionMode biases how the next freeform input of a user is interpreted
type SessionMode string

const (
	ModeNone         SessionMode = "none"
	ModeAwaitingIdea SessionMode = "awaiting_idea"
)
