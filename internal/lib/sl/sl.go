// Package sl содержит атрибуты slog с общими для всех процессов ключами.
package sl

import "log/slog"

// Err атрибут "error" с текстом ошибки.
//
//	log.Error("failed to resume workflow", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// RunID атрибут идентификатора экземпляра workflow.
func RunID(id string) slog.Attr { return slog.String("run_id", id) }

// SubscriptionID атрибут идентификатора подписки.
func SubscriptionID(id string) slog.Attr { return slog.String("subscription_id", id) }
