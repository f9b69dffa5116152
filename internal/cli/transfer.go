package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/workspaces/internal/sqlite"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.jsonl>",
		Short: "Write every workspace record to a JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()
			n, err := e.backend.ExportJSONL(cmd.Context(), args[0])
			if err != nil {
				return classify(err)
			}
			return printCount(cmd, "exported", n, args[0])
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Upsert workspace records from a JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()
			n, err := e.backend.ImportJSONL(cmd.Context(), args[0])
			if err != nil {
				return classify(err)
			}
			return printCount(cmd, "imported", n, args[0])
		},
	}
}

func newMigrateJSONCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-json [Workspaces.json]",
		Short: "Import a legacy Workspaces.json file and remove it",
		Long: "Import workspaces from the legacy JSON file (default: Workspaces.json in the\n" +
			"data directory). The file is removed after a successful import.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()
			path := filepath.Join(e.dataDir, sqlite.LegacyFile)
			if len(args) == 1 {
				path = args[0]
			}
			n, err := e.backend.MigrateLegacyJSON(cmd.Context(), path)
			if err != nil {
				return classify(err)
			}
			return printCount(cmd, "migrated", n, path)
		},
	}
}

func printCount(cmd *cobra.Command, verb string, n int, path string) error {
	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), map[string]any{verb: n, "path": path})
	}
	printSuccess(cmd.OutOrStdout(), "%s %d workspace(s): %s", capitalize(verb), n, path)
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return fmt.Sprintf("%c%s", s[0]-('a'-'A'), s[1:])
}
