// Command auditctl records, searches and exports audit entries against a
// running ingestion server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"voyage/internal/platform/logger"
	"voyage/pkg/platform/audit/client"
)

const defaultURL = "http://localhost:8080"

// app carries the flags shared by every subcommand.
type app struct {
	url      string
	token    string
	logLevel string

	api    *client.Client
	logger *slog.Logger
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "auditctl",
		Short:        "Record, search and export audit entries",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.resolve(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.url, "url", defaultURL, "Ingestion server URL (env: AUDIT_URL)")
	root.PersistentFlags().StringVar(&a.token, "token", "", "Bearer token (env: AUDIT_TOKEN)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Diagnostic log level written to stderr")

	root.AddCommand(newRecordCmd(a), newSearchCmd(a), newExportCmd(a))
	return root
}

// resolve applies env fallbacks, then builds the shared client. Flags win.
func (a *app) resolve(stderr io.Writer) {
	if a.url == defaultURL {
		if v := os.Getenv("AUDIT_URL"); v != "" {
			a.url = v
		}
	}
	if a.token == "" {
		a.token = os.Getenv("AUDIT_TOKEN")
	}
	var opts []client.Option
	if a.token != "" {
		opts = append(opts, client.WithToken(a.token))
	}
	a.api = client.New(a.url, opts...)
	a.logger = logger.NewWithWriter(stderr, a.logLevel)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
