package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	audit "voyage/pkg/platform/audit"
)

func TestActor(t *testing.T) {
	t.Run("missing actor", func(t *testing.T) {
		_, ok := Actor(context.Background())
		assert.False(t, ok)
	})

	t.Run("zero actor is treated as missing", func(t *testing.T) {
		_, ok := Actor(WithActor(context.Background(), audit.Actor{Name: "no id"}))
		assert.False(t, ok)
	})

	t.Run("round trip", func(t *testing.T) {
		want := audit.Actor{UserID: "u-1", Name: "Ada", Email: "ada@example.com", EmployeeID: "emp-7"}
		got, ok := Actor(WithActor(context.Background(), want))
		assert.True(t, ok)
		assert.Equal(t, want, got)
	})
}

func TestClientMetadataAndRequestID(t *testing.T) {
	ctx := WithClientMetadata(context.Background(), "10.0.0.1", "curl/8")
	ctx = WithRequestID(ctx, "req-1")

	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "curl/8", UserAgent(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))
}

func TestNow(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
	assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Second)
}
