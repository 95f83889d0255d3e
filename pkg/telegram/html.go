package telegram

import "html"

// Escape makes user supplied text safe for HTML parse mode
func Escape(s string) string {
	return html.EscapeString(s)
}
