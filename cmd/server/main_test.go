package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voyage/internal/ingest/ratelimit"
	"voyage/internal/platform/config"
	"voyage/internal/platform/metrics"
	audit "voyage/pkg/platform/audit"
	"voyage/pkg/platform/audit/store/memory"
	"voyage/pkg/platform/identity"
)

func testRouter(t *testing.T, cfg config.Server, checks map[string]healthCheck) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	var limiter *ratelimit.Limiter
	if cfg.IngestRateLimit > 0 {
		limiter = ratelimit.New(cfg.IngestRateLimit, time.Minute)
	}
	return newRouter(cfg, log, memory.NewInMemoryStore(), metrics.New(reg), reg, checks, limiter)
}

func TestRouter_Health(t *testing.T) {
	r := testRouter(t, config.Server{}, map[string]healthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"OK","dependencies":{"postgres":"ok"}}`, rr.Body.String())

	r = testRouter(t, config.Server{}, map[string]healthCheck{
		"redis": func(context.Context) error { return errors.New("down") },
	})
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouter_Metrics(t *testing.T) {
	r := testRouter(t, config.Server{}, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "voyage_ingest_batches_total")
}

func TestRouter_Auth(t *testing.T) {
	cfg := config.Server{JWTSigningKey: "k", JWTIssuer: "voyage"}
	r := testRouter(t, cfg, nil)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/audit-logs?userId=u-1", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := identity.NewTokens("k", "voyage").Issue(audit.Actor{UserID: "u-1"}, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/audit-logs?userId=u-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestOpenStore_Memory(t *testing.T) {
	store, checks, cleanup, err := openStore(context.Background(), config.Server{Store: config.StoreMemory}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, &memory.InMemoryStore{}, store)
	assert.Empty(t, checks)
}

func TestRouter_IngestRateLimit(t *testing.T) {
	r := testRouter(t, config.Server{IngestRateLimit: 1}, nil)
	post := func() *httptest.ResponseRecorder {
		body := `{"logs":[{"userId":"u-1","action":"booking_create","resourceType":"booking","resourceId":"b-1"}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/audit-logs/batch", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusCreated, post().Code)
	limited := post()
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))

	// Reads are not limited.
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/audit-logs?userId=u-1", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
