package listbyowner

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ListByOwner(ctx context.Context, caller models.Caller, ownerID string) ([]*models.Subscription, error) {
	args := m.Called(ctx, caller, ownerID)
	if res := args.Get(0); res != nil {
		return res.([]*models.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestListByOwnerHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	caller := models.Caller{ID: "u1", Role: models.RoleUser}

	tests := []struct {
		name           string
		ownerID        string
		setupMock      func(m *MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "свои подписки по порядку",
			ownerID: "u1",
			setupMock: func(m *MockService) {
				m.On("ListByOwner", mock.Anything, caller, "u1").
					Return([]*models.Subscription{{ID: "first"}, {ID: "second"}}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"data":[{"id":"first"`,
		},
		{
			name:    "чужие подписки",
			ownerID: "u2",
			setupMock: func(m *MockService) {
				m.On("ListByOwner", mock.Anything, caller, "u2").
					Return(nil, apperr.Forbidden("subscription.ListByOwner", "you are not the owner of this account")).Once()
			},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `you are not the owner of this account`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/user/"+tt.ownerID, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.ownerID)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			req = req.WithContext(middlewarectx.WithCaller(ctx, caller))
			w := httptest.NewRecorder()

			New(logger, svc).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
