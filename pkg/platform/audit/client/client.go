// Package client talks to the audit-log ingestion store over HTTP. It is the
// batch transmitter for the publisher and the read/export backend for the
// query and export services.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	audit "voyage/pkg/platform/audit"
)

// Endpoint paths.
const (
	PathLogs   = "/api/audit-logs"
	PathBatch  = "/api/audit-logs/batch"
	PathSearch = "/api/audit-logs/search"
	PathStats  = "/api/audit-logs/stats"
	PathExport = "/api/audit-logs/export"
)

const tracerName = "voyage/pkg/platform/audit/client"

// Client is the audit store API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	timeout    time.Duration
}

// defaultTimeout applies when neither WithTimeout nor WithHTTPClient is given.
const defaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient sets a custom HTTP client. A nil client is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout regardless of option order. A custom
// HTTP client is copied rather than modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a client for the given base URL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{baseURL: baseURL}
	for _, o := range opts {
		o(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// BatchRequest is the ingestion payload.
type BatchRequest struct {
	Logs []audit.PendingEntry `json:"logs"`
}

type logsResponse struct {
	Logs []audit.LogEntry `json:"logs"`
}

// SendBatch posts batch to the ingestion endpoint. Any non-2xx status or
// transport error means the batch was not accepted.
func (c *Client) SendBatch(ctx context.Context, batch []audit.PendingEntry) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "audit.SendBatch")
	span.SetAttributes(attribute.Int("audit.batch_size", len(batch)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return c.post(ctx, PathBatch, BatchRequest{Logs: batch}, nil)
}

// ListByResource returns all entries for one resource, newest first.
func (c *Client) ListByResource(ctx context.Context, resourceType audit.ResourceType, resourceID string) ([]audit.LogEntry, error) {
	params := url.Values{}
	params.Set("resourceType", string(resourceType))
	params.Set("resourceId", resourceID)

	var resp logsResponse
	if err := c.get(ctx, PathLogs, params, &resp); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// ListByUser returns all entries recorded for one user, newest first.
func (c *Client) ListByUser(ctx context.Context, userID string) ([]audit.LogEntry, error) {
	params := url.Values{}
	params.Set("userId", userID)

	var resp logsResponse
	if err := c.get(ctx, PathLogs, params, &resp); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// Search runs a filtered, paginated query.
func (c *Client) Search(ctx context.Context, q audit.SearchQuery) (audit.Page, error) {
	params := FilterParams(q.Filters)
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var page audit.Page
	if err := c.get(ctx, PathSearch, params, &page); err != nil {
		return audit.Page{}, err
	}
	return page, nil
}

// Count returns aggregate counts for the entries matching f.
func (c *Client) Count(ctx context.Context, f audit.Filters) (audit.Counts, error) {
	var counts audit.Counts
	if err := c.get(ctx, PathStats, FilterParams(f), &counts); err != nil {
		return audit.Counts{}, err
	}
	return counts, nil
}

// Export downloads the CSV export for f.
func (c *Client) Export(ctx context.Context, f audit.Filters) (blob audit.Blob, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "audit.Export")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	resp, err := c.send(ctx, http.MethodGet, PathExport+encode(FilterParams(f)), nil)
	if err != nil {
		return audit.Blob{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return audit.Blob{}, fmt.Errorf("read export: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return audit.Blob{}, parseAPIError(resp.StatusCode, data)
	}

	return audit.Blob{
		Name:        attachmentName(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// FilterParams encodes the set fields of f as query parameters.
func FilterParams(f audit.Filters) url.Values {
	params := url.Values{}
	if f.UserID != "" {
		params.Set("userId", f.UserID)
	}
	if f.Action != "" {
		params.Set("action", string(f.Action))
	}
	if f.ResourceType != "" {
		params.Set("resourceType", string(f.ResourceType))
	}
	if f.ResourceID != "" {
		params.Set("resourceId", f.ResourceID)
	}
	if !f.StartDate.IsZero() {
		params.Set("startDate", f.StartDate.UTC().Format(time.RFC3339Nano))
	}
	if !f.EndDate.IsZero() {
		params.Set("endDate", f.EndDate.UTC().Format(time.RFC3339Nano))
	}
	return params
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func encode(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

// send builds and executes a request; the caller owns the response body.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// do executes a request and decodes a JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	return c.do(ctx, http.MethodGet, path+encode(params), nil, result)
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}
