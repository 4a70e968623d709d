// Package signature подписывает тела запросов запуска workflow через HMAC-SHA256.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Header заголовок, в котором передаётся подпись.
const Header = "X-Workflow-Signature"

// Sign возвращает base64(HMAC-SHA256(secret, body)).
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify сравнивает подпись за постоянное время. Пустой секрет или подпись не проходят.
func Verify(secret string, body []byte, sig string) bool {
	if secret == "" || sig == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(sig))
}
