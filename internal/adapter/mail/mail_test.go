package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newMockedMailer(t *testing.T) *ResendMailer {
	t.Helper()
	m := NewResendMailer("re_test", "noreply@example.com", nil)
	httpmock.ActivateNonDefault(m.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return m
}

func TestResendMailer_SendPasswordReset(t *testing.T) {
	m := newMockedMailer(t)

	var got sendRequest
	httpmock.RegisterResponder(http.MethodPost, ResendEndpoint,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer re_test", req.Header.Get("Authorization"))
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
			return httpmock.NewStringResponse(http.StatusOK, `{"id":"abc"}`), nil
		})

	link := "https://weights.example.com/reset-password?token=a.b.c&x=1"
	require.NoError(t, m.SendPasswordReset(context.Background(), "user@example.com", link))

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
	assert.Equal(t, "noreply@example.com", got.From)
	assert.Equal(t, []string{"user@example.com"}, got.To)
	assert.Equal(t, resetSubject, got.Subject)
	assert.Contains(t, got.HTML, `href="https://weights.example.com/reset-password?token=a.b.c&amp;x=1"`)
}

func TestResendMailer_HTTPError(t *testing.T) {
	m := newMockedMailer(t)

	tests := []struct {
		name       string
		statusCode int
	}{
		{"unauthorized", http.StatusUnauthorized},
		{"validation", http.StatusUnprocessableEntity},
		{"rate_limited", http.StatusTooManyRequests},
		{"internal_server_error", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpmock.RegisterResponder(http.MethodPost, ResendEndpoint,
				httpmock.NewStringResponder(tt.statusCode, `{"message":"nope"}`))

			err := m.SendPasswordReset(context.Background(), "user@example.com", "http://x")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestResendMailer_TransportError(t *testing.T) {
	m := newMockedMailer(t)
	httpmock.RegisterResponder(http.MethodPost, ResendEndpoint, httpmock.NewErrorResponder(assert.AnError))

	err := m.SendPasswordReset(context.Background(), "user@example.com", "http://x")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewLogMailer(zap.New(core).Sugar())

	require.NoError(t, m.SendPasswordReset(context.Background(), "user@example.com", "http://x/reset"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "password reset mail", entry.Message)
	assert.Equal(t, "http://x/reset", entry.ContextMap()["link"])
}
