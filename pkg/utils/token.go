package utils

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

// GenerateWebhookSecret 生成 Telegram webhook secret_token
// Telegram 只接受 A-Z a-z 0-9 _ -，长度 1-256
func GenerateWebhookSecret(n int) (string, error) {
	if n <= 0 {
		n = 32
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// RawURLEncoding 只产生 A-Z a-z 0-9 - _
	secret := base64.RawURLEncoding.EncodeToString(b)
	if len(secret) > 256 {
		secret = secret[:256]
	}
	return strings.TrimSpace(secret), nil
}
