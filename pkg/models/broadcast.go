package models

import "time"

// BroadcastPolicy names the recipient selection used for a fan-out
type BroadcastPolicy string

const (
	PolicyAnnounceApproved BroadcastPolicy = "announce_approved"
	PolicyAnnounceDone     BroadcastPolicy = "announce_done"
	PolicyAdminSummary     BroadcastPolicy = "admin_summary"
)

// BroadcastLog is the audit record of one fan-out
type BroadcastLog struct {
	ID        string          `json:"id" db:"id"`
	IdeaID    string          `json:"idea_id" db:"idea_id"`
	Policy    BroadcastPolicy `json:"policy" db:"policy"`
	Attempted int             `json:"attempted" db:"attempted"`
	Delivered int             `json:"delivered" db:"delivered"`
	Failed    []int64         `json:"failed" db:"failed"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
