// Command studysync keeps a local study-tracker document in sync with the
// remote table store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/studentpro/studysync/internal/config"
	"github.com/studentpro/studysync/internal/engine"
	"github.com/studentpro/studysync/internal/identity"
	"github.com/studentpro/studysync/internal/logging"
	"github.com/studentpro/studysync/internal/remote"
	"github.com/studentpro/studysync/internal/remote/postgres"
	"github.com/studentpro/studysync/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "studysync",
	Short: "Local-first sync for your study tracker",
	Long: `studysync keeps the local study document (semesters, subjects, chapters,
study sessions and your profile) in sync with the cloud backend.

Local state is always authoritative during a session; the remote store is the
durable source of truth across devices. Use 'pull' to replace local state
from the cloud, 'upload' to make the cloud mirror local state exactly, and
'daemon' to keep them in sync automatically.`,
	SilenceUsage: true,
}

func main() {
	// Optional .env for DATABASE_URL and friends.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// appContext bundles the wired collaborators for one command invocation.
type appContext struct {
	cfg    *config.Config
	engine *engine.Engine
	close  func()
}

// buildApp wires config, store, identity and remote client into an engine.
// When requireRemote is set, a missing DATABASE_URL is an error; otherwise
// the engine runs against the offline client and remote work stays pending.
func buildApp(ctx context.Context, requireRemote bool) (*appContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var client remote.Client = remote.Offline{}
	closeFn := func() {}

	dsn, err := cfg.DSN()
	switch {
	case err == nil:
		pg, err := postgres.Open(ctx, dsn, postgres.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to remote store: %w", err)
		}
		client = pg
		closeFn = pg.Close
	case requireRemote:
		return nil, err
	}

	ident := identity.NewSessionProvider(cfg.SessionPath())

	eng, err := engine.New(store.New(cfg.StorePath()), client, ident, &engine.Config{
		Timeout: cfg.SyncTimeout,
		Logger:  logging.New("[engine] "),
	})
	if err != nil {
		closeFn()
		return nil, err
	}

	return &appContext{cfg: cfg, engine: eng, close: closeFn}, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
