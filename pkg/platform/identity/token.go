package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	audit "voyage/pkg/platform/audit"
	"voyage/pkg/platform/sentinel"
	"voyage/pkg/requestcontext"
)

// Claims carries the actor snapshot inside an access token.
type Claims struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	EmployeeID string `json:"employee_id,omitempty"`
	jwt.RegisteredClaims
}

// Tokens issues and validates HS256 actor tokens.
type Tokens struct {
	signingKey []byte
	issuer     string
}

// NewTokens creates a token service for the given signing key and issuer.
func NewTokens(signingKey, issuer string) *Tokens {
	return &Tokens{signingKey: []byte(signingKey), issuer: issuer}
}

// Issue signs a token for actor valid for ttl.
func (t *Tokens) Issue(actor audit.Actor, ttl time.Duration) (string, error) {
	if actor.IsZero() {
		return "", fmt.Errorf("issue token: %w", sentinel.ErrInvalidInput)
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Name:       actor.Name,
		Email:      actor.Email,
		EmployeeID: actor.EmployeeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses tokenString and returns the actor it names.
func (t *Tokens) Validate(tokenString string) (audit.Actor, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return t.signingKey, nil
	}, jwt.WithIssuer(t.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return audit.Actor{}, fmt.Errorf("token has expired: %w", sentinel.ErrUnauthorized)
		}
		return audit.Actor{}, fmt.Errorf("invalid token: %w", sentinel.ErrUnauthorized)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return audit.Actor{}, fmt.Errorf("invalid token claims: %w", sentinel.ErrUnauthorized)
	}

	return audit.Actor{
		UserID:     claims.Subject,
		Name:       claims.Name,
		Email:      claims.Email,
		EmployeeID: claims.EmployeeID,
	}, nil
}

// RequireBearer rejects requests without a valid bearer token and stores the
// token's actor in the request context.
func RequireBearer(tokens *Tokens, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				writeUnauthorized(w)
				return
			}
			actor, err := tokens.Validate(raw)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}
