// Package cli implements the aria admin command line. The commands open
// the database directly, so they are meant to run on the server host.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/aria/internal/logging"
	"github.com/me/aria/internal/store"
)

var (
	flagDB        string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// defaultDB returns the default database path, checking ARIA_DB env var first.
func defaultDB() string {
	if p := os.Getenv("ARIA_DB"); p != "" {
		return p
	}
	return "aria.db"
}

// openStore opens the configured database and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLiteStore(flagDB, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// NewRootCmd creates the root cobra command for the aria CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "aria",
		Short: "Aria — encrypted realtime music gateway",
		Long:  "Aria manages users and inspects the database of an Aria gateway server.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagDB, "db", defaultDB(), "Database path (or ARIA_DB env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newCreateUserCmd(),
		newListUsersCmd(),
		newSetAdminCmd(),
		newSetBannedCmd(),
	)

	return root
}
