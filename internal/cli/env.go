package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/workspaces/internal/directory"
	"github.com/mesh-intelligence/workspaces/internal/events"
	"github.com/mesh-intelligence/workspaces/internal/metrics"
	"github.com/mesh-intelligence/workspaces/internal/paths"
	"github.com/mesh-intelligence/workspaces/internal/sqlite"
	"github.com/mesh-intelligence/workspaces/internal/tabstrip"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// env is the per-invocation state shared by commands that touch the store.
type env struct {
	cfg       *viper.Viper
	configDir string
	dataDir   string
	logger    *slog.Logger
	bus       *events.Bus
	metrics   *metrics.Metrics
	backend   *sqlite.Backend
}

// resolveConfigDir returns the config directory from flag, env, or default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flags.configDir)
}

// resolveDataDir returns the data directory from flag, config, env, or
// default.
func resolveDataDir(cfg *viper.Viper) (string, error) {
	return paths.ResolveDataDir(flags.dataDir, cfg.GetString(cfgKeyDataDir))
}

// loadEnv resolves directories, loads config and builds the logger. It
// does not attach the store.
func loadEnv(cmd *cobra.Command) (*env, error) {
	configDir, err := resolveConfigDir()
	if err != nil {
		return nil, sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, sysError(err)
	}
	dataDir, err := resolveDataDir(cfg)
	if err != nil {
		return nil, sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.GetString(cfgKeyLogLevel))
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:       cfg,
		configDir: configDir,
		dataDir:   dataDir,
		logger:    logger,
		bus:       events.NewBus(),
		metrics:   metrics.New(nil),
	}, nil
}

// storeConfig builds the backend config.
func (e *env) storeConfig() types.Config {
	return types.Config{
		Backend: e.cfg.GetString(cfgKeyBackend),
		DataDir: e.dataDir,
		DSN:     e.cfg.GetString(cfgKeyDSN),
	}
}

// attach opens the configured backend. The caller must call close.
func (e *env) attach() error {
	b := sqlite.NewBackend(sqlite.Options{
		Logger:   e.logger,
		Notifier: e.bus,
		Metrics:  e.metrics,
		Origin:   "cli",
	})
	if err := b.Attach(e.storeConfig()); err != nil {
		return classify(fmt.Errorf("attach backend: %w", err))
	}
	e.backend = b
	return nil
}

func (e *env) close() {
	if e.backend != nil {
		if err := e.backend.Detach(); err != nil {
			e.logger.Warn("detach backend", "error", err)
		}
	}
}

// openEnv is loadEnv followed by attach.
func openEnv(cmd *cobra.Command) (*env, error) {
	e, err := loadEnv(cmd)
	if err != nil {
		return nil, err
	}
	if err := e.attach(); err != nil {
		return nil, err
	}
	return e, nil
}

// openDirectory opens a directory for a window without tabs. Commands use
// it so the directory's rules on creation, deletion and ordering apply.
func (e *env) openDirectory(ctx context.Context, strip *tabstrip.Strip) (*directory.Directory, error) {
	if strip == nil {
		strip = tabstrip.New()
	}
	d, err := directory.New(directory.Options{
		Store:     e.backend.Workspaces(),
		Bookmarks: e.backend.Bookmarks(),
		Host:      strip,
		Bus:       e.bus,
		WindowID:  "cli",
		Settings:  settingsFromConfig(e.cfg),
		Logger:    e.logger,
		Metrics:   e.metrics,
	})
	if err != nil {
		return nil, sysError(err)
	}
	if err := d.Open(ctx); err != nil {
		return nil, classify(err)
	}
	return d, nil
}

// findWorkspace resolves ref as a UUID, else as a unique name.
func findWorkspace(list []types.Workspace, ref string) (types.Workspace, error) {
	for _, ws := range list {
		if ws.UUID == ref {
			return ws, nil
		}
	}
	var match []types.Workspace
	for _, ws := range list {
		if ws.Name == ref {
			match = append(match, ws)
		}
	}
	switch len(match) {
	case 0:
		return types.Workspace{}, userError(fmt.Errorf("workspace %q: %w", ref, types.ErrNotFound))
	case 1:
		return match[0], nil
	default:
		return types.Workspace{}, userError(fmt.Errorf("workspace name %q is ambiguous; use the uuid", ref))
	}
}
