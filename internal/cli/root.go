// Package cli implements the workspacectl command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/workspaces/pkg/types"
	"github.com/mesh-intelligence/workspaces/pkg/workspaces"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string
}

var flags rootFlags

// NewRootCmd creates the top-level "workspacectl" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "workspacectl",
		Short:   "Manage browser workspaces",
		Long:    "workspacectl manages workspaces, their ordering and bookmark associations,\nand synchronizes them between devices.",
		Version: workspaces.Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (default: config log_level)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newCreateCmd())
	root.AddCommand(newRenameCmd())
	root.AddCommand(newIconCmd())
	root.AddCommand(newThemeCmd())
	root.AddCommand(newDefaultCmd())
	root.AddCommand(newDeleteCmd())
	root.AddCommand(newMoveCmd())
	root.AddCommand(newChangesCmd())
	root.AddCommand(newBookmarkCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newMigrateJSONCmd())
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newSyncCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	err := root.Execute()
	if err == nil {
		os.Exit(exitSuccess)
	}
	printError(root.ErrOrStderr(), err)
	os.Exit(exitCode(err))
}

// codeError carries the exit code for an error.
type codeError struct {
	code int
	err  error
}

func (e *codeError) Error() string { return e.err.Error() }
func (e *codeError) Unwrap() error { return e.err }

func userError(err error) error { return &codeError{code: exitUserError, err: err} }
func sysError(err error) error  { return &codeError{code: exitSysError, err: err} }

// classify wraps err with the exit code its cause implies: domain errors
// are the user's, everything else is the system's.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ce *codeError
	if errors.As(err, &ce) {
		return err
	}
	for _, target := range []error{
		types.ErrNotFound,
		types.ErrInvalidID,
		types.ErrInvalidName,
		types.ErrInvalidOrder,
		types.ErrLastWorkspace,
		types.ErrDefaultWorkspaceRequired,
		types.ErrBackendUnknown,
		types.ErrBackendEmpty,
		types.ErrDSNRequired,
	} {
		if errors.Is(err, target) {
			return userError(err)
		}
	}
	return sysError(err)
}

// exitCode maps an error returned by the root command to a process exit
// code. Errors raised by cobra itself (unknown commands, bad flags) are
// user errors.
func exitCode(err error) int {
	var ce *codeError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitUserError
}

// newLogger builds the stderr logger at the flag or configured level.
func newLogger(w io.Writer, configured string) (*slog.Logger, error) {
	level := flags.logLevel
	if level == "" {
		level = configured
	}
	var l slog.Level
	switch strings.ToLower(level) {
	case "", "warn", "warning":
		l = slog.LevelWarn
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	default:
		return nil, userError(fmt.Errorf("unknown log level %q", level))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}
