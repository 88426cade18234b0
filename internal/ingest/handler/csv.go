package handler

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	audit "voyage/pkg/platform/audit"
)

var csvHeader = []string{
	"id", "timestamp", "userId", "userName", "userEmail", "employeeId",
	"action", "resourceType", "resourceId", "ipAddress", "userAgent", "details",
}

// encodeCSV renders entries one row each; details are embedded as JSON.
func encodeCSV(entries []audit.LogEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		details := ""
		if len(e.Details) > 0 {
			b, err := json.Marshal(e.Details)
			if err != nil {
				return nil, fmt.Errorf("encode details of %s: %w", e.ID, err)
			}
			details = string(b)
		}
		row := []string{
			e.ID,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			e.UserID,
			e.UserName,
			e.UserEmail,
			e.EmployeeID,
			string(e.Action),
			string(e.ResourceType),
			e.ResourceID,
			e.IPAddress,
			e.UserAgent,
			details,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
