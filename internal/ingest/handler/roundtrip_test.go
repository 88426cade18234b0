package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voyage/internal/ingest/handler"
	audit "voyage/pkg/platform/audit"
	"voyage/pkg/platform/audit/client"
	"voyage/pkg/platform/audit/export"
	"voyage/pkg/platform/audit/publisher"
	"voyage/pkg/platform/audit/query"
	"voyage/pkg/platform/audit/store/memory"
	"voyage/pkg/platform/identity"
	"voyage/pkg/platform/middleware/metadata"
	"voyage/pkg/platform/sentinel"
)

// End to end: publisher -> client -> handler -> memory store, then back out
// through the query and export services.
func TestRoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := identity.NewTokens("round-trip-key", "voyage-test")
	store := memory.NewInMemoryStore()

	r := chi.NewRouter()
	r.Use(metadata.RequestID, metadata.ClientMetadata)
	r.Group(func(r chi.Router) {
		r.Use(identity.RequireBearer(tokens, logger))
		handler.New(store, logger, nil).Register(r)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	agent := audit.Actor{UserID: "u-42", Name: "Rita Agent", Email: "rita@voyage.test", EmployeeID: "E-9"}
	token, err := tokens.Issue(agent, time.Hour)
	require.NoError(t, err)
	api := client.New(srv.URL, client.WithToken(token))

	pub := publisher.New(api, identity.Static(agent), publisher.WithLogger(logger), publisher.WithEagerThreshold(1000))
	ctx := context.Background()

	pub.BookingCancelled(ctx, "b-1", "weather")
	pub.BookingCancelled(ctx, "b-2", "illness")
	pub.BookingCreated(ctx, "b-3", map[string]any{"destination": "Lisbon"})
	pub.BookingCancelled(ctx, "b-4", "weather")
	require.NoError(t, pub.Flush(ctx))
	assert.Zero(t, pub.Pending())

	reads := query.New(api)

	page, err := reads.Search(ctx, audit.SearchQuery{
		Filters: audit.Filters{
			Action:    audit.ActionBookingCancel,
			StartDate: time.Now().Add(-time.Hour),
			EndDate:   time.Now().Add(time.Hour),
		},
		Page:  1,
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, "E-9", page.Logs[0].EmployeeID)
	assert.Equal(t, "127.0.0.1", page.Logs[0].IPAddress)

	logs, err := reads.ListForResource(ctx, audit.ResourceBooking, "b-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "weather", logs[0].Details[audit.DetailCancelReason])

	blob, err := export.New(api, pub).Export(ctx, export.Request{ResourceType: audit.ResourceBooking})
	require.NoError(t, err)
	assert.Contains(t, string(blob.Data), "booking_cancel")
	assert.Contains(t, blob.Name, "audit-log-booking-audit-logs-")

	require.NoError(t, pub.Stop(ctx))
	exports, err := reads.ListForResource(ctx, audit.ResourceReport, export.ReportResourceID)
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, audit.ActionExport, exports[0].Action)
	assert.Equal(t, "booking", exports[0].Details["resourceType"])

	t.Run("missing token is rejected", func(t *testing.T) {
		_, err := query.New(client.New(srv.URL)).ListForUser(ctx, "u-42")
		assert.ErrorIs(t, err, sentinel.ErrUnauthorized)
	})

	t.Run("fail-soft hides the rejection", func(t *testing.T) {
		soft := query.NewFailSoft(query.New(client.New(srv.URL)), logger)
		assert.Empty(t, soft.ListForUser(ctx, "u-42"))
	})
}

func TestRoundTrip_InvalidRecordDoesNotStallDelivery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewInMemoryStore()

	r := chi.NewRouter()
	r.Use(metadata.RequestID, metadata.ClientMetadata)
	handler.New(store, logger, nil).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	agent := audit.Actor{UserID: "u-7", Name: "Sam Agent"}
	pub := publisher.New(client.New(srv.URL), identity.Static(agent), publisher.WithLogger(logger), publisher.WithEagerThreshold(1000))
	ctx := context.Background()

	pub.BookingViewed(ctx, "")
	for _, id := range []string{"b-1", "b-2", "b-3", "b-4", "b-5"} {
		pub.BookingCancelled(ctx, id, "weather")
	}
	assert.Equal(t, 5, pub.Pending())

	require.NoError(t, pub.Flush(ctx))
	assert.Zero(t, pub.Pending())

	stored, err := store.ListByUser(ctx, "u-7")
	require.NoError(t, err)
	assert.Len(t, stored, 5)
	require.NoError(t, pub.Stop(ctx))
}
