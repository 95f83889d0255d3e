package models

import "time"

// InterestStatus is reserved for future follow-up handling of a request
type InterestStatus string

const (
	InterestPending InterestStatus = "pending"
)

// InterestRequest records that a client wants an already announced idea.
// (IdeaID, ClientID) is unique.
type InterestRequest struct {
	IdeaID    string         `json:"idea_id" db:"idea_id"`
	ClientID  int64          `json:"client_id" db:"client_id"`
	Status    InterestStatus `json:"status" db:"status"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
