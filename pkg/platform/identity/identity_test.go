package identity

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "voyage/pkg/platform/audit"
	"voyage/pkg/platform/sentinel"
	"voyage/pkg/requestcontext"
)

var ada = audit.Actor{UserID: "u-1", Name: "Ada", Email: "ada@example.com", EmployeeID: "emp-1"}

func TestContextProvider(t *testing.T) {
	var p Provider = ContextProvider{}

	_, ok := p.Actor(context.Background())
	assert.False(t, ok)

	got, ok := p.Actor(requestcontext.WithActor(context.Background(), ada))
	assert.True(t, ok)
	assert.Equal(t, ada, got)
}

func TestStatic(t *testing.T) {
	got, ok := Static(ada).Actor(context.Background())
	assert.True(t, ok)
	assert.Equal(t, ada, got)

	_, ok = Static{}.Actor(context.Background())
	assert.False(t, ok)
}

func TestTokens(t *testing.T) {
	tokens := NewTokens("test-signing-key", "voyage")

	t.Run("issue and validate round trip", func(t *testing.T) {
		raw, err := tokens.Issue(ada, time.Minute)
		require.NoError(t, err)

		got, err := tokens.Validate(raw)
		require.NoError(t, err)
		assert.Equal(t, ada, got)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		raw, err := tokens.Issue(ada, -time.Minute)
		require.NoError(t, err)

		_, err = tokens.Validate(raw)
		assert.ErrorIs(t, err, sentinel.ErrUnauthorized)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		raw, err := NewTokens("other-key", "voyage").Issue(ada, time.Minute)
		require.NoError(t, err)

		_, err = tokens.Validate(raw)
		assert.ErrorIs(t, err, sentinel.ErrUnauthorized)
	})

	t.Run("wrong issuer rejected", func(t *testing.T) {
		raw, err := NewTokens("test-signing-key", "elsewhere").Issue(ada, time.Minute)
		require.NoError(t, err)

		_, err = tokens.Validate(raw)
		assert.ErrorIs(t, err, sentinel.ErrUnauthorized)
	})

	t.Run("anonymous actor cannot be issued", func(t *testing.T) {
		_, err := tokens.Issue(audit.Actor{}, time.Minute)
		assert.ErrorIs(t, err, sentinel.ErrInvalidInput)
	})
}

func TestRequireBearer(t *testing.T) {
	tokens := NewTokens("test-signing-key", "voyage")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seen audit.Actor
	handler := RequireBearer(tokens, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = requestcontext.Actor(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token injects actor", func(t *testing.T) {
		raw, err := tokens.Issue(ada, time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, ada, seen)
	})
}
