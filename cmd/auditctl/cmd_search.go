package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	audit "voyage/pkg/platform/audit"
	"voyage/pkg/platform/audit/query"
)

// filterFlags are the query filters shared by search and export.
type filterFlags struct {
	userID       string
	action       string
	resourceType string
	resourceID   string
	startDate    string
	endDate      string
}

func (ff *filterFlags) register(cmd *cobra.Command, withResourceID bool) {
	f := cmd.Flags()
	f.StringVar(&ff.userID, "user-id", "", "Only entries by this user")
	f.StringVar(&ff.action, "action", "", "Only this action literal")
	f.StringVar(&ff.resourceType, "resource-type", "", "Only this resource literal")
	if withResourceID {
		f.StringVar(&ff.resourceID, "resource-id", "", "Only this resource id")
	}
	f.StringVar(&ff.startDate, "start", "", "Start date, RFC 3339 or YYYY-MM-DD")
	f.StringVar(&ff.endDate, "end", "", "End date, RFC 3339 or YYYY-MM-DD (whole day)")
}

func (ff *filterFlags) filters() (audit.Filters, error) {
	start, err := parseDate(ff.startDate, false)
	if err != nil {
		return audit.Filters{}, fmt.Errorf("--start: %w", err)
	}
	end, err := parseDate(ff.endDate, true)
	if err != nil {
		return audit.Filters{}, fmt.Errorf("--end: %w", err)
	}
	return audit.Filters{
		UserID:       ff.userID,
		Action:       audit.Action(ff.action),
		ResourceType: audit.ResourceType(ff.resourceType),
		ResourceID:   ff.resourceID,
		StartDate:    start,
		EndDate:      end,
	}, nil
}

func parseDate(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	if endOfDay {
		return day.Add(24*time.Hour - time.Nanosecond), nil
	}
	return day, nil
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		ff    filterFlags
		page  int
		limit int
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search audit entries and print the page as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := ff.filters()
			if err != nil {
				return err
			}
			result, err := query.New(a.api).Search(cmd.Context(), audit.SearchQuery{Filters: f, Page: page, Limit: limit})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	ff.register(cmd, true)
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", audit.DefaultPageLimit, "Entries per page")
	return cmd
}
