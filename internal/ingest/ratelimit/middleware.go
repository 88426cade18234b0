package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"voyage/internal/platform/metrics"
	"voyage/pkg/platform/httputil"
	"voyage/pkg/requestcontext"
)

type exceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// Middleware limits requests per client IP. The IP comes from the request
// context, so it must run after metadata.ClientMetadata.
func Middleware(l *Limiter, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result := l.Allow(ip)
			addHeaders(w, result)
			if !result.Allowed {
				logger.WarnContext(ctx, "ingest rate limit exceeded",
					"client_ip", ip,
					"request_id", requestcontext.RequestID(ctx),
					"retry_after", result.RetryAfter,
				)
				m.IncRejected("rate_limited")
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "Too many audit batches from this address. Please retry later.",
					RetryAfter: result.RetryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RunPruner prunes idle keys every interval until ctx is done.
func RunPruner(ctx context.Context, l *Limiter, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Prune(); n > 0 {
				logger.Debug("pruned idle rate limit windows", "count", n)
			}
		}
	}
}

func addHeaders(w http.ResponseWriter, result Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
