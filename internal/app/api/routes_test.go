package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/signature"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/auth"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/reminder"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/user"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/workflow"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/workflow/workflowtest"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/wakeup"
)

// fakeUsers хранит пользователей в памяти.
type fakeUsers struct {
	users map[string]*models.User
}

func (f *fakeUsers) CreateUser(_ context.Context, u models.User) (*models.User, error) {
	return nil, apperr.Conflict("fake", "not supported")
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperr.NotFound("fake", "user not found")
}

func (f *fakeUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("fake", "user not found")
}

func (f *fakeUsers) ListUsers(_ context.Context) ([]*models.User, error) {
	out := make([]*models.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

const (
	adminID = "0b7f6f0e-4a43-4d4c-9d0e-6a2f3b1c0001"
	userID  = "0b7f6f0e-4a43-4d4c-9d0e-6a2f3b1c0002"
	signKey = "signing-secret"
)

func newStarter(t *testing.T, log *slog.Logger) reminder.Starter {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return workflow.NewEngine(workflowtest.NewStore(), wakeup.New(rdb), log, metrics.NewNoop(), workflow.Options{})
}

func setupRouter(t *testing.T) (http.Handler, *jwt.MakerImpl) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := &fakeUsers{users: map[string]*models.User{
		adminID: {ID: adminID, Email: "admin@example.com", Role: models.RoleAdmin},
		userID:  {ID: userID, Email: "user@example.com", Role: models.RoleUser},
	}}
	tokens := jwt.NewJWTMaker("jwt-secret", time.Hour)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	r := chi.NewRouter()
	RegisterRoutes(r, log, Deps{
		Auth:       auth.New(users, tokens, log),
		Users:      user.New(users),
		Workflows:  newStarter(t, log),
		SigningKey: signKey,
		Limiter:    middlewarectx.NewRateLimiter(100, 100),
		Metrics:    m,
		Gatherer:   reg,
	})
	return r, tokens
}

func TestRoutes(t *testing.T) {
	router, tokens := setupRouter(t)

	token := func(id, role string) string {
		s, err := tokens.GenerateToken(id, role)
		require.NoError(t, err)
		return "Bearer " + s
	}
	triggerBody := []byte(`{"subscriptionId":"3c1e9f7a-0000-4000-8000-000000000001"}`)

	tests := []struct {
		name     string
		method   string
		path     string
		auth     string
		header   map[string]string
		body     []byte
		wantCode int
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantCode: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantCode: http.StatusOK},
		{name: "без токена", method: http.MethodGet, path: "/api/v1/subscriptions/upcoming-renewals", wantCode: http.StatusUnauthorized},
		{name: "список пользователей для user", method: http.MethodGet, path: "/api/v1/users", auth: token(userID, models.RoleUser), wantCode: http.StatusForbidden},
		{name: "список пользователей для admin", method: http.MethodGet, path: "/api/v1/users", auth: token(adminID, models.RoleAdmin), wantCode: http.StatusOK},
		// роль берётся из базы, а не из токена
		{name: "поддельная роль в токене", method: http.MethodGet, path: "/api/v1/subscriptions", auth: token(userID, models.RoleAdmin), wantCode: http.StatusForbidden},
		{name: "свой профиль", method: http.MethodGet, path: "/api/v1/users/" + userID, auth: token(userID, models.RoleUser), wantCode: http.StatusOK},
		{name: "вход с неверным паролем", method: http.MethodPost, path: "/api/v1/auth/sign-in", body: []byte(`{"email":"user@example.com","password":"wrong"}`), wantCode: http.StatusUnauthorized},
		{
			name:     "запуск процесса",
			method:   http.MethodPost,
			path:     "/api/v1/workflows/subscription/reminder",
			header:   map[string]string{signature.Header: signature.Sign(signKey, triggerBody)},
			body:     triggerBody,
			wantCode: http.StatusAccepted,
		},
		{
			name:     "запуск процесса без подписи",
			method:   http.MethodPost,
			path:     "/api/v1/workflows/subscription/reminder",
			body:     triggerBody,
			wantCode: http.StatusUnauthorized,
		},
		{name: "неизвестный маршрут", method: http.MethodGet, path: "/api/v1/unknown", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewReader(tt.body))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}
}
