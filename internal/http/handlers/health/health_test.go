package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name     string
		checks   map[string]Checker
		wantCode int
		wantBody []string
	}{
		{
			name:     "без зависимостей",
			wantCode: http.StatusOK,
			wantBody: []string{`"status":"ok"`},
		},
		{
			name:     "все зависимости доступны",
			checks:   map[string]Checker{"postgres": ok, "redis": ok},
			wantCode: http.StatusOK,
			wantBody: []string{`"postgres":"ok"`, `"redis":"ok"`},
		},
		{
			name:     "redis недоступен",
			checks:   map[string]Checker{"postgres": ok, "redis": down},
			wantCode: http.StatusServiceUnavailable,
			wantBody: []string{`"redis":"unavailable"`, `"status":"degraded"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			New(logger, tt.checks).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			for _, s := range tt.wantBody {
				assert.Contains(t, w.Body.String(), s)
			}
			assert.NotContains(t, w.Body.String(), "connection refused")
		})
	}
}
