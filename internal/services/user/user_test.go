package user

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

const (
	userID  = "6a1d2f4e-0c9b-4d3a-8e7f-112233445566"
	otherID = "7b2e3a5f-1d0c-4e4b-9f80-223344556677"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) ListUsers(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func TestService_List(t *testing.T) {
	repo := new(RepoMock)
	repo.On("ListUsers", mock.Anything).Return([]*models.User{{ID: userID}}, nil).Once()
	s := New(repo)

	users, err := s.List(context.Background(), models.Caller{ID: userID, Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	_, err = s.List(context.Background(), models.Caller{ID: userID, Role: models.RoleUser})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	repo.AssertExpectations(t)
}

func TestService_Get(t *testing.T) {
	tests := []struct {
		name       string
		caller     models.Caller
		id         string
		setupMocks func(r *RepoMock)
		wantKind   apperr.Kind
		wantErr    bool
	}{
		{
			name:   "свой аккаунт",
			caller: models.Caller{ID: userID, Role: models.RoleUser},
			id:     userID,
			setupMocks: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, userID).Return(&models.User{ID: userID}, nil).Once()
			},
		},
		{
			name:   "администратор смотрит чужой",
			caller: models.Caller{ID: otherID, Role: models.RoleAdmin},
			id:     userID,
			setupMocks: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, userID).Return(&models.User{ID: userID}, nil).Once()
			},
		},
		{
			name:       "чужой аккаунт",
			caller:     models.Caller{ID: otherID, Role: models.RoleUser},
			id:         userID,
			setupMocks: func(_ *RepoMock) {},
			wantErr:    true,
			wantKind:   apperr.KindForbidden,
		},
		{
			name:       "некорректный id",
			caller:     models.Caller{ID: otherID, Role: models.RoleAdmin},
			id:         "42",
			setupMocks: func(_ *RepoMock) {},
			wantErr:    true,
			wantKind:   apperr.KindNotFound,
		},
		{
			name:   "ошибка базы",
			caller: models.Caller{ID: userID, Role: models.RoleUser},
			id:     userID,
			setupMocks: func(r *RepoMock) {
				r.On("GetUser", mock.Anything, userID).Return(nil, errors.New("db down")).Once()
			},
			wantErr:  true,
			wantKind: apperr.KindInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setupMocks(repo)

			u, err := New(repo).Get(context.Background(), tt.caller, tt.id)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, userID, u.ID)
			}
			repo.AssertExpectations(t)
		})
	}
}
