package models

import "strings"

// Inline button actions carried in callback_data as "<action>:<idea id>"
const (
	CallbackApprove = "approve"
	CallbackReject  = "reject"
	CallbackDone    = "done"
	CallbackWant    = "want"
)

// CallbackData builds a callback payload
func CallbackData(action, ideaID string) string {
	return action + ":" + ideaID
}

// ParseCallbackData splits a callback payload; ok is false for unknown shapes
func ParseCallbackData(data string) (action, ideaID string, ok bool) {
	action, ideaID, found := strings.Cut(data, ":")
	if !found || ideaID == "" {
		return "", "", false
	}
	switch action {
	case CallbackApprove, CallbackReject, CallbackDone, CallbackWant:
		return action, ideaID, true
	}
	return "", "", false
}
