package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/workspaces/pkg/workspaces"
)

const modulePath = "github.com/mesh-intelligence/workspaces"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the workspacectl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]string{"version": workspaces.Version, "module": modulePath})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workspacectl v%s\nmodule: %s\n", workspaces.Version, modulePath)
			return nil
		},
	}
}
