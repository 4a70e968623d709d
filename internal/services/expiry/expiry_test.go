package expiry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/cache"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ExpireSubscriptions(ctx context.Context, before time.Time) ([]string, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Invalidate(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestService_Sweep(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		ids       []string
		repoErr   error
		cacheErr  error
		wantCount int
		wantErr   bool
	}{
		{name: "две просроченные подписки", ids: []string{"a", "b"}, wantCount: 2},
		{name: "нечего помечать", ids: []string{}},
		{name: "ошибка кеша не прерывает проход", ids: []string{"a"}, cacheErr: errors.New("redis down"), wantCount: 1},
		{name: "ошибка хранилища", repoErr: errors.New("db down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			c := new(MockCache)
			m := metrics.NewNoop()

			if tt.repoErr != nil {
				repo.On("ExpireSubscriptions", mock.Anything, now).Return(nil, tt.repoErr)
			} else {
				repo.On("ExpireSubscriptions", mock.Anything, now).Return(tt.ids, nil)
			}
			for _, id := range tt.ids {
				c.On("Invalidate", mock.Anything, cache.SubscriptionKey(id)).Return(tt.cacheErr)
			}

			s := New(repo, c, m, newNoopLogger(), time.Hour)
			s.now = func() time.Time { return now }

			n, err := s.Sweep(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, n)
			assert.InDelta(t, float64(tt.wantCount), testutil.ToFloat64(m.Expired), 0)
			repo.AssertExpectations(t)
			c.AssertExpectations(t)
		})
	}
}

func TestService_StartStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	repo := new(MockRepository)
	repo.On("ExpireSubscriptions", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { calls.Add(1) }).
		Return([]string{}, nil)

	s := New(repo, new(MockCache), metrics.NewNoop(), newNoopLogger(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
