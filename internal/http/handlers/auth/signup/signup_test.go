package signup

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/auth"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) SignUp(ctx context.Context, name, email, password string) (*auth.Session, error) {
	args := m.Called(ctx, name, email, password)
	if res := args.Get(0); res != nil {
		return res.(*auth.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestSignUpHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(m *MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешная регистрация",
			body: `{"name":"Anna","email":"anna@example.com","password":"secret1"}`,
			setupMock: func(m *MockService) {
				m.On("SignUp", mock.Anything, "Anna", "anna@example.com", "secret1").Return(&auth.Session{
					Token: "jwt-token",
					User:  &models.User{ID: "u1", Name: "Anna", Email: "anna@example.com", Role: models.RoleUser},
				}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"token":"jwt-token"`,
		},
		{
			name:           "некорректный JSON",
			body:           `{"name":`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"invalid request body"`,
		},
		{
			name:           "ошибка валидации",
			body:           `{"name":"A","email":"not-an-email","password":"123"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `field Email must be a valid email address`,
		},
		{
			name: "пользователь уже существует",
			body: `{"name":"Anna","email":"anna@example.com","password":"secret1"}`,
			setupMock: func(m *MockService) {
				m.On("SignUp", mock.Anything, "Anna", "anna@example.com", "secret1").
					Return(nil, apperr.Conflict("auth.SignUp", "user already exists")).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"status":"Error","error":"user already exists"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/sign-up", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			New(logger, svc).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			assert.NotContains(t, w.Body.String(), "password")
			svc.AssertExpectations(t)
		})
	}
}
