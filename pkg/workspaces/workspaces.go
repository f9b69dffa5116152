// Package workspaces is the public entry point to the workspace engine: the
// release version and a factory for the default storage backend.
package workspaces

import (
	"log/slog"

	"github.com/mesh-intelligence/workspaces/internal/sqlite"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// Version is the release version of the module.
const Version = "0.3.0"

// NewBackend creates an unattached backend that serves both the SQLite and
// the Postgres dialect; Config.Backend selects one on Attach. A nil logger
// discards log output.
//
// Example:
//
//	backend := workspaces.NewBackend(nil)
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: dataDir,
//	})
//	defer backend.Detach()
func NewBackend(logger *slog.Logger) types.Backend {
	return sqlite.NewBackend(sqlite.Options{Logger: logger})
}
