package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/justtrance-web/artvision-tg-bot/pkg/utils"
)

// TelegramSecretHeader carries the secret_token registered with setWebhook
const TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// ContentTypeJSON 验证请求Content-Type为application/json
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 只对带请求体的方法验证Content-Type
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}
			contentType := r.Header.Get("Content-Type")
			if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
				utils.WriteBadRequestResponse(w, "Content-Type must be application/json")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// MaxBodySize 限制请求体大小
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// TelegramSecret 验证 webhook 请求头中的 secret token。
// An empty secret disables the check (local polling-free testing).
func TelegramSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get(TelegramSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				utils.WriteJSON(w, http.StatusUnauthorized, map[string]bool{"ok": false})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
