package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	audit "voyage/pkg/platform/audit"
	"voyage/pkg/platform/audit/publisher"
	"voyage/pkg/platform/identity"
)

func newRecordCmd(a *app) *cobra.Command {
	var (
		actor        audit.Actor
		action       string
		resourceType string
		resourceID   string
		details      map[string]string
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one audit entry and deliver it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			pub := a.publisher(actor)
			d := make(map[string]any, len(details))
			for k, v := range details {
				d[k] = v
			}
			pub.Record(ctx, audit.Action(action), audit.ResourceType(resourceType), resourceID, d)
			if pub.Pending() == 0 {
				_ = pub.Stop(ctx)
				return errors.New("record dropped: missing actor or invalid entry")
			}
			if err := pub.Stop(ctx); err != nil {
				return fmt.Errorf("deliver entry: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "recorded %s on %s/%s\n", action, resourceType, resourceID)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&actor.UserID, "user-id", "", "Acting user id")
	f.StringVar(&actor.Name, "user-name", "", "Acting user name")
	f.StringVar(&actor.Email, "user-email", "", "Acting user email")
	f.StringVar(&actor.EmployeeID, "employee-id", "", "Acting employee id")
	f.StringVar(&action, "action", "", "Action literal, e.g. booking_cancel")
	f.StringVar(&resourceType, "resource-type", "", "Resource literal, e.g. booking")
	f.StringVar(&resourceID, "resource-id", "", "Resource id")
	f.StringToStringVar(&details, "detail", nil, "Detail key=value pairs")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("resource-type")
	_ = cmd.MarkFlagRequired("resource-id")
	return cmd
}

// publisher builds an unstarted publisher tuned from the environment. Stop
// performs the only delivery.
func (a *app) publisher(actor audit.Actor) *publisher.Publisher {
	return publisher.New(a.api, identity.Static(actor),
		publisher.WithConfig(publisher.ConfigFromEnv()),
		publisher.WithLogger(a.logger),
	)
}
