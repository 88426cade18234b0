package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	audit "voyage/pkg/platform/audit"
	"voyage/pkg/platform/audit/export"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		ff    filterFlags
		actor audit.Actor
		dir   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download a CSV export; the export itself is audited",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f, err := ff.filters()
			if err != nil {
				return err
			}

			pub := a.publisher(actor)
			blob, err := export.New(a.api, pub).Export(ctx, export.Request{
				StartDate:    f.StartDate,
				EndDate:      f.EndDate,
				UserID:       f.UserID,
				Action:       f.Action,
				ResourceType: f.ResourceType,
			})
			if err != nil {
				_ = pub.Stop(ctx)
				return err
			}
			if err := pub.Stop(ctx); err != nil {
				a.logger.WarnContext(ctx, "export audit entry not delivered", "error", err)
			}

			name := filepath.Base(blob.Name)
			if blob.Name == "" {
				name = export.FileName(f.ResourceType, time.Now())
			}
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, blob.Data, 0o600); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(blob.Data))
			return err
		},
	}
	ff.register(cmd, false)
	cmd.Flags().StringVar(&actor.UserID, "as-user", "", "User the export is attributed to")
	cmd.Flags().StringVar(&actor.Name, "as-name", "", "Name the export is attributed to")
	cmd.Flags().StringVar(&dir, "dir", ".", "Directory for the CSV file")
	_ = cmd.MarkFlagRequired("as-user")
	return cmd
}
