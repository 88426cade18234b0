// Package handler serves the audit-log ingestion store over HTTP.
package handler

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"voyage/internal/platform/metrics"
	audit "voyage/pkg/platform/audit"
	"voyage/pkg/platform/audit/client"
	"voyage/pkg/platform/audit/export"
	"voyage/pkg/platform/httputil"
	"voyage/pkg/platform/sentinel"
	"voyage/pkg/requestcontext"
)

// Handler wires the audit-log endpoints to a store.
type Handler struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New constructs an ingestion handler.
func New(store audit.Store, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Register mounts the audit-log endpoints on the router. batchMW wraps only
// the ingestion endpoint.
func (h *Handler) Register(r chi.Router, batchMW ...func(http.Handler) http.Handler) {
	r.Get(client.PathLogs, h.HandleList)
	r.With(batchMW...).Post(client.PathBatch, h.HandleBatch)
	r.Get(client.PathSearch, h.HandleSearch)
	r.Get(client.PathStats, h.HandleStats)
	r.Get(client.PathExport, h.HandleExport)
}

type batchResponse struct {
	Accepted int `json:"accepted"`
}

type logsResponse struct {
	Logs []audit.LogEntry `json:"logs"`
}

// HandleBatch handles POST /api/audit-logs/batch. The batch is stored whole
// or not at all.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger, requestID)
	if !ok {
		h.metrics.IncRejected("validation")
		return
	}

	meta := audit.NetworkMetadata{
		IPAddress: requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	}
	stored, err := h.store.AppendBatch(ctx, req.Logs, meta)
	if err != nil {
		h.metrics.IncRejected("store")
		h.logger.ErrorContext(ctx, "failed to store audit batch",
			"request_id", requestID,
			"batch_size", len(req.Logs),
			"error", err,
		)
		httputil.WriteError(w, fmt.Errorf("store audit batch: %w", sentinel.ErrUnavailable))
		return
	}

	h.metrics.ObserveBatch(len(stored))
	h.logger.InfoContext(ctx, "audit batch stored",
		"request_id", requestID,
		"batch_size", len(stored),
		"client_ip", meta.IPAddress,
	)
	httputil.WriteJSON(w, http.StatusCreated, batchResponse{Accepted: len(stored)})
}

// HandleList handles GET /api/audit-logs for one resource or one user.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		logs []audit.LogEntry
		err  error
	)
	resourceType := audit.ResourceType(q.Get("resourceType"))
	resourceID := q.Get("resourceId")
	userID := q.Get("userId")
	switch {
	case resourceType != "" || resourceID != "":
		if !resourceType.IsValid() || resourceID == "" {
			httputil.WriteError(w, fmt.Errorf("resourceType and resourceId must both be valid: %w", sentinel.ErrInvalidInput))
			return
		}
		logs, err = h.store.ListByResource(ctx, resourceType, resourceID)
	case userID != "":
		logs, err = h.store.ListByUser(ctx, userID)
	default:
		httputil.WriteError(w, fmt.Errorf("resourceType and resourceId, or userId, are required: %w", sentinel.ErrInvalidInput))
		return
	}
	if err != nil {
		h.readFailed(w, r, "list", err)
		return
	}
	if logs == nil {
		logs = []audit.LogEntry{}
	}
	httputil.WriteJSON(w, http.StatusOK, logsResponse{Logs: logs})
}

// HandleSearch handles GET /api/audit-logs/search.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearch(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.store.Search(r.Context(), q)
	if err != nil {
		h.readFailed(w, r, "search", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

// HandleStats handles GET /api/audit-logs/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	counts, err := h.store.Count(r.Context(), f)
	if err != nil {
		h.readFailed(w, r, "stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, counts)
}

// HandleExport handles GET /api/audit-logs/export and streams a CSV download.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := parseFilters(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.store.ListRange(ctx, f)
	if err != nil {
		h.readFailed(w, r, "export", err)
		return
	}
	data, err := encodeCSV(entries)
	if err != nil {
		h.readFailed(w, r, "export", err)
		return
	}

	name := export.FileName(f.ResourceType, requestcontext.Now(ctx))
	h.metrics.ObserveExport(len(entries))
	h.logger.InfoContext(ctx, "audit export served",
		"request_id", requestcontext.RequestID(ctx),
		"rows", len(entries),
		"file", name,
	)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) readFailed(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "audit read failed",
		"request_id", requestcontext.RequestID(r.Context()),
		"op", op,
		"error", err,
	)
	httputil.WriteError(w, fmt.Errorf("%s audit logs: %w", op, sentinel.ErrUnavailable))
}
