package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voyage/pkg/platform/sentinel"
)

func TestPendingEntry_Validate(t *testing.T) {
	valid := PendingEntry{UserID: "u-1", Action: ActionBookingView, ResourceType: ResourceBooking, ResourceID: "b-1"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*PendingEntry)
		want   string
	}{
		{"missing user", func(e *PendingEntry) { e.UserID = "" }, "userId"},
		{"unknown action", func(e *PendingEntry) { e.Action = "teleport" }, "teleport"},
		{"unknown resource type", func(e *PendingEntry) { e.ResourceType = "spaceship" }, "spaceship"},
		{"blank resource id", func(e *PendingEntry) { e.ResourceID = " " }, "resourceId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			err := e.Validate()
			assert.ErrorIs(t, err, sentinel.ErrInvalidInput)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
