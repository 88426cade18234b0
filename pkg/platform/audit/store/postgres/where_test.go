package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	audit "voyage/pkg/platform/audit"
)

func TestWhereClause(t *testing.T) {
	t.Run("no filters", func(t *testing.T) {
		where, args := whereClause(audit.Filters{})
		assert.Empty(t, where)
		assert.Empty(t, args)
	})

	t.Run("placeholders follow argument order", func(t *testing.T) {
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		where, args := whereClause(audit.Filters{
			UserID:       "u-1",
			ResourceType: audit.ResourceBooking,
			StartDate:    start,
		})
		assert.Equal(t, " WHERE user_id = $1 AND resource_type = $2 AND timestamp >= $3", where)
		assert.Equal(t, []any{"u-1", "booking", start}, args)
	})

	t.Run("every field", func(t *testing.T) {
		where, args := whereClause(audit.Filters{
			UserID:       "u-1",
			Action:       audit.ActionBookingCancel,
			ResourceType: audit.ResourceBooking,
			ResourceID:   "b-1",
			StartDate:    time.Unix(0, 0),
			EndDate:      time.Unix(10, 0),
		})
		assert.Contains(t, where, "timestamp <= $6")
		assert.Len(t, args, 6)
	})
}

func TestMarshalDetails(t *testing.T) {
	b, err := marshalDetails(nil)
	assert.NoError(t, err)
	assert.Nil(t, b)

	b, err = marshalDetails(map[string]any{"reason": "weather"})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"reason":"weather"}`, string(b))
}
