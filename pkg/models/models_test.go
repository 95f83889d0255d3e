package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := map[[2]IdeaStatus]bool{
		{IdeaPending, IdeaApproved}: true,
		{IdeaPending, IdeaRejected}: true,
		{IdeaApproved, IdeaDone}:    true,
	}
	all := []IdeaStatus{IdeaPending, IdeaApproved, IdeaRejected, IdeaDone}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]IdeaStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.True(t, IdeaRejected.IsTerminal())
	assert.True(t, IdeaDone.IsTerminal())
	assert.False(t, IdeaApproved.IsTerminal())
	assert.False(t, IdeaStatus("archived").Valid())
}

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "short", TruncateTitle("short"))

	exact := strings.Repeat("ж", MaxTitleLength)
	assert.Equal(t, exact, TruncateTitle(exact))

	got := TruncateTitle(strings.Repeat("ж", MaxTitleLength+5))
	assert.Equal(t, MaxTitleLength, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestRecognitionErrorIsUpstream(t *testing.T) {
	err := fmt.Errorf("route: %w", ErrRecognition)
	assert.True(t, errors.Is(err, ErrRecognition))
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.False(t, errors.Is(ErrUpstream, ErrRecognition))
}

func TestCallbackData(t *testing.T) {
	action, id, ok := ParseCallbackData(CallbackData(CallbackWant, "abc-123"))
	assert.True(t, ok)
	assert.Equal(t, CallbackWant, action)
	assert.Equal(t, "abc-123", id)

	for _, bad := range []string{"", "want", "want:", "delete:abc"} {
		_, _, ok := ParseCallbackData(bad)
		assert.False(t, ok, bad)
	}
}

func TestClientMention(t *testing.T) {
	assert.Equal(t, "@anna", (&Client{ID: 1, Username: "anna", DisplayName: "Anna"}).Mention())
	assert.Equal(t, "Anna", (&Client{ID: 1, DisplayName: "Anna"}).Mention())
	assert.Equal(t, "id42", (&Client{ID: 42}).Mention())
	var nilClient *Client
	assert.Empty(t, nilClient.Mention())
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "Anna K", (&User{FirstName: "Anna", LastName: "K"}).DisplayName())
}
