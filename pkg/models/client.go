package models

import (
	"strconv"
	"time"
)

// Client represents a bot user who can submit ideas and receive announcements
type Client struct {
	ID          int64     `json:"id" db:"id"` // Telegram user id
	ChatID      int64     `json:"chat_id" db:"chat_id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Username    string    `json:"username,omitempty" db:"username"`
	Project     string    `json:"project,omitempty" db:"project"` // cohort/project tag, first write wins
	Active      bool      `json:"active" db:"active"`
	NotifyOptIn bool      `json:"notify_opt_in" db:"notify_opt_in"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Mention returns a short human readable reference to the client
func (c *Client) Mention() string {
	if c == nil {
		return ""
	}
	if c.Username != "" {
		return "@" + c.Username
	}
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return "id" + strconv.FormatInt(c.ID, 10)
}
