package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/workspaces/internal/paths"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// configFile holds the structure written to config.yaml by init.
type configFile struct {
	Backend  string     `yaml:"backend"`
	DataDir  string     `yaml:"data_dir,omitempty"`
	DSN      string     `yaml:"dsn,omitempty"`
	LogLevel string     `yaml:"log_level,omitempty"`
	Sync     syncConfig `yaml:"sync,omitempty"`
}

type syncConfig struct {
	Dir      string `yaml:"dir,omitempty"`
	DeviceID string `yaml:"device_id,omitempty"`
}

func newInitCmd() *cobra.Command {
	var (
		backend  string
		dsn      string
		syncDir  string
		deviceID string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize workspace storage",
		Long:  "Create configuration and data directories, write config.yaml, then initialize the storage backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := resolveConfigDir()
			if err != nil {
				return sysError(fmt.Errorf("resolve config dir: %w", err))
			}
			if err := os.MkdirAll(configDir, 0o755); err != nil {
				return sysError(fmt.Errorf("create config directory: %w", err))
			}
			dataDir, err := paths.ResolveDataDir(flags.dataDir, "")
			if err != nil {
				return sysError(fmt.Errorf("resolve data dir: %w", err))
			}

			cfg := configFile{Backend: backend, DataDir: dataDir, DSN: dsn, LogLevel: "warn"}
			cfg.Sync = syncConfig{Dir: syncDir, DeviceID: deviceID}
			if err := (types.Config{Backend: cfg.Backend, DataDir: cfg.DataDir, DSN: cfg.DSN}).Validate(); err != nil {
				return userError(err)
			}

			configPath := filepath.Join(configDir, configFileExt)
			written, err := writeConfig(configPath, cfg, force)
			if err != nil {
				return sysError(fmt.Errorf("write config: %w", err))
			}

			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			e.close()

			out := cmd.OutOrStdout()
			if flags.jsonMode {
				return printJSON(out, map[string]any{
					"config_dir":     configDir,
					"data_dir":       e.dataDir,
					"backend":        e.cfg.GetString(cfgKeyBackend),
					"config_written": written,
				})
			}
			printSuccess(out, "Workspace storage initialized")
			fmt.Fprintln(out, "  config:", configPath)
			fmt.Fprintln(out, "  data:  ", e.dataDir)
			if !written {
				printWarning(out, "  existing config.yaml kept (use --force to overwrite)")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", types.BackendSQLite, "storage backend: sqlite or postgres")
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres connection string")
	cmd.Flags().StringVar(&syncDir, "sync-dir", "", "shared sync directory")
	cmd.Flags().StringVar(&deviceID, "device-id", "", "device id used for sync (default: host name)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config.yaml")
	return cmd
}

// writeConfig marshals cfg to path. An existing file is kept unless force
// is set. It reports whether the file was written.
func writeConfig(path string, cfg configFile, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	return true, os.WriteFile(path, data, 0o644)
}
