package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "voyage/pkg/platform/audit"
	"voyage/pkg/platform/sentinel"
)

// newTestServer creates a test server that routes to the given handler map.
// Keys are "METHOD /path", values are handler funcs.
func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, New(srv.URL, WithToken("test-token"))
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var stamp = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func storedEntry(id string, action audit.Action) audit.LogEntry {
	return audit.LogEntry{
		ID:        id,
		Timestamp: stamp,
		PendingEntry: audit.PendingEntry{
			UserID:       "u-1",
			Action:       action,
			ResourceType: audit.ResourceBooking,
			ResourceID:   "b-1",
		},
		IPAddress: "10.0.0.1",
	}
}

func TestSendBatch(t *testing.T) {
	var got BatchRequest
	var auth string
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"POST " + PathBatch: func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
		},
	})

	batch := []audit.PendingEntry{
		{UserID: "u-1", Action: audit.ActionBookingCancel, ResourceType: audit.ResourceBooking, ResourceID: "b-1",
			Details: map[string]any{"reason": "weather"}},
		{UserID: "u-1", Action: audit.ActionLogin, ResourceType: audit.ResourceUser, ResourceID: "u-1"},
	}
	require.NoError(t, c.SendBatch(context.Background(), batch))

	assert.Equal(t, "Bearer test-token", auth)
	require.Len(t, got.Logs, 2)
	assert.Equal(t, audit.ActionBookingCancel, got.Logs[0].Action)
	assert.Equal(t, "weather", got.Logs[0].Details["reason"])
	assert.Equal(t, audit.ActionLogin, got.Logs[1].Action)
}

func TestSendBatch_WireFormat(t *testing.T) {
	var raw map[string][]map[string]any
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"POST " + PathBatch: func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
			w.WriteHeader(http.StatusNoContent)
		},
	})

	require.NoError(t, c.SendBatch(context.Background(), []audit.PendingEntry{{
		UserID: "u-1", UserName: "Ada", UserEmail: "ada@example.com",
		Action: audit.ActionSensitiveAction, ResourceType: audit.ResourceCustomer, ResourceID: "c-1",
	}}))

	entry := raw["logs"][0]
	assert.Equal(t, "u-1", entry["userId"])
	assert.Equal(t, "Ada", entry["userName"])
	assert.Equal(t, "sensitive_action", entry["action"])
	assert.Equal(t, "customer", entry["resourceType"])
	assert.Equal(t, "c-1", entry["resourceId"])
	assert.NotContains(t, entry, "id")
	assert.NotContains(t, entry, "timestamp")
	assert.NotContains(t, entry, "ipAddress")
}

func TestSendBatch_Failures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		_, c := newTestServer(t, map[string]http.HandlerFunc{
			"POST " + PathBatch: func(w http.ResponseWriter, _ *http.Request) {
				jsonResponse(w, http.StatusServiceUnavailable, map[string]string{
					"error": "unavailable", "error_description": "store offline",
				})
			},
		})

		err := c.SendBatch(context.Background(), []audit.PendingEntry{{UserID: "u-1"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
		assert.Equal(t, "store offline", apiErr.Description)
	})

	t.Run("rejected batch", func(t *testing.T) {
		_, c := newTestServer(t, map[string]http.HandlerFunc{
			"POST " + PathBatch: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte("bad batch"))
			},
		})

		err := c.SendBatch(context.Background(), []audit.PendingEntry{{UserID: "u-1"}})
		assert.ErrorIs(t, err, sentinel.ErrInvalidInput)
		assert.Contains(t, err.Error(), "bad batch")
	})

	t.Run("transport error", func(t *testing.T) {
		srv, c := newTestServer(t, map[string]http.HandlerFunc{})
		srv.Close()

		assert.Error(t, c.SendBatch(context.Background(), []audit.PendingEntry{{UserID: "u-1"}}))
	})

	t.Run("context deadline", func(t *testing.T) {
		_, c := newTestServer(t, map[string]http.HandlerFunc{
			"POST " + PathBatch: func(w http.ResponseWriter, r *http.Request) {
				<-r.Context().Done()
			},
		})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := c.SendBatch(ctx, []audit.PendingEntry{{UserID: "u-1"}})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestListByResource(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET " + PathLogs: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "booking", r.URL.Query().Get("resourceType"))
			assert.Equal(t, "b-1", r.URL.Query().Get("resourceId"))
			jsonResponse(w, http.StatusOK, map[string]any{
				"logs": []audit.LogEntry{storedEntry("l-2", audit.ActionBookingUpdate), storedEntry("l-1", audit.ActionBookingCreate)},
			})
		},
	})

	logs, err := c.ListByResource(context.Background(), audit.ResourceBooking, "b-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "l-2", logs[0].ID)
	assert.Equal(t, stamp, logs[0].Timestamp)
	assert.Equal(t, "10.0.0.1", logs[0].IPAddress)
}

func TestListByUser(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET " + PathLogs: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "u-1", r.URL.Query().Get("userId"))
			jsonResponse(w, http.StatusOK, map[string]any{"logs": []audit.LogEntry{storedEntry("l-1", audit.ActionLogin)}})
		},
	})

	logs, err := c.ListByUser(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, audit.ActionLogin, logs[0].Action)
}

func TestSearch(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET " + PathSearch: func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "booking_cancel", q.Get("action"))
			assert.Equal(t, "2024-01-01T00:00:00Z", q.Get("startDate"))
			assert.Equal(t, "2", q.Get("page"))
			assert.Equal(t, "10", q.Get("limit"))
			assert.False(t, q.Has("userId"), "unset filters are not sent")
			jsonResponse(w, http.StatusOK, audit.Page{
				Logs:       []audit.LogEntry{storedEntry("l-1", audit.ActionBookingCancel)},
				Total:      11,
				Page:       2,
				TotalPages: 2,
			})
		},
	})

	page, err := c.Search(context.Background(), audit.SearchQuery{
		Filters: audit.Filters{
			Action:    audit.ActionBookingCancel,
			StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Page:  2,
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Logs, 1)
}

func TestCount(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET " + PathStats: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "u-1", r.URL.Query().Get("userId"))
			jsonResponse(w, http.StatusOK, map[string]any{
				"total":          3,
				"byAction":       map[string]int{"login": 2, "logout": 1},
				"byResourceType": map[string]int{"user": 3},
			})
		},
	})

	counts, err := c.Count(context.Background(), audit.Filters{UserID: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Total)
	assert.Equal(t, 2, counts.ByAction[audit.ActionLogin])
	assert.Equal(t, 3, counts.ByResourceType[audit.ResourceUser])
}

func TestExport(t *testing.T) {
	t.Run("returns body and attachment name", func(t *testing.T) {
		_, c := newTestServer(t, map[string]http.HandlerFunc{
			"GET " + PathExport: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "trip", r.URL.Query().Get("resourceType"))
				w.Header().Set("Content-Type", "text/csv")
				w.Header().Set("Content-Disposition", `attachment; filename="audit-log-trip-audit-logs-2024-06-01.csv"`)
				_, _ = w.Write([]byte("id,timestamp\n"))
			},
		})

		blob, err := c.Export(context.Background(), audit.Filters{ResourceType: audit.ResourceTrip})
		require.NoError(t, err)
		assert.Equal(t, "audit-log-trip-audit-logs-2024-06-01.csv", blob.Name)
		assert.Equal(t, "text/csv", blob.ContentType)
		assert.Equal(t, "id,timestamp\n", string(blob.Data))
	})

	t.Run("server error", func(t *testing.T) {
		_, c := newTestServer(t, map[string]http.HandlerFunc{
			"GET " + PathExport: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		})

		_, err := c.Export(context.Background(), audit.Filters{})
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})
}

func TestNew_TimeoutIgnoresOptionOrder(t *testing.T) {
	custom := &http.Client{Timeout: time.Minute}

	before := New("http://audit", WithTimeout(5*time.Second), WithHTTPClient(custom))
	after := New("http://audit", WithHTTPClient(custom), WithTimeout(5*time.Second))

	assert.Equal(t, 5*time.Second, before.httpClient.Timeout)
	assert.Equal(t, 5*time.Second, after.httpClient.Timeout)
	assert.Equal(t, time.Minute, custom.Timeout, "caller's client is not modified")

	assert.NotPanics(t, func() {
		c := New("http://audit", WithHTTPClient(nil), WithTimeout(time.Second))
		assert.Equal(t, time.Second, c.httpClient.Timeout)
	})
	assert.Equal(t, defaultTimeout, New("http://audit").httpClient.Timeout)
}
