package middlewarectx

import (
	"context"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// CallerKey ключ, под которым в контексте лежит models.Caller.
const CallerKey Key = "caller"

// WithCaller возвращает контекст с аутентифицированным пользователем.
func WithCaller(ctx context.Context, caller models.Caller) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

// CallerFrom достаёт пользователя, положенного JWTMiddleware.
func CallerFrom(ctx context.Context) (models.Caller, bool) {
	caller, ok := ctx.Value(CallerKey).(models.Caller)
	if !ok || caller.ID == "" {
		return models.Caller{}, false
	}
	return caller, true
}
