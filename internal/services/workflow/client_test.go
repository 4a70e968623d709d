package workflow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/signature"
)

func TestClient_TriggerSignsBody(t *testing.T) {
	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(signature.Header)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient("secret", time.Second)
	err := c.Trigger(context.Background(), srv.URL, map[string]string{"subscriptionId": "sub-1"})
	require.NoError(t, err)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "sub-1", payload["subscriptionId"])
	assert.True(t, signature.Verify("secret", gotBody, gotSig))
}

func TestClient_TriggerErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{name: "server error", status: http.StatusServiceUnavailable, wantTransient: true},
		{name: "rejected", status: http.StatusUnauthorized, wantTransient: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			err := NewClient("secret", time.Second).Trigger(context.Background(), srv.URL, struct{}{})
			require.Error(t, err)
			assert.Equal(t, tt.wantTransient, apperr.Is(err, apperr.KindTransient))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestClient_TriggerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewClient("secret", time.Second).Trigger(context.Background(), url, struct{}{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTransient))
}
