package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/workspaces/pkg/types"
)

type changesOutput struct {
	Workspaces map[string]int64                `json:"workspaces"`
	Bookmarks  map[string]types.BookmarkChange `json:"bookmarks"`
}

func newChangesCmd() *cobra.Command {
	var clearLogs bool
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Show or clear the pending sync change logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if clearLogs {
				if err := e.backend.Workspaces().ClearChangedIDs(ctx); err != nil {
					return classify(err)
				}
				if err := e.backend.Bookmarks().ClearChangedIDs(ctx); err != nil {
					return classify(err)
				}
				printSuccess(out, "Change logs cleared")
				return nil
			}

			ws, err := e.backend.Workspaces().GetChangedIDs(ctx)
			if err != nil {
				return classify(err)
			}
			bm, err := e.backend.Bookmarks().GetChangedIDs(ctx)
			if err != nil {
				return classify(err)
			}
			if flags.jsonMode {
				return printJSON(out, changesOutput{Workspaces: ws, Bookmarks: bm})
			}
			if len(ws) == 0 && len(bm) == 0 {
				fmt.Fprintln(out, "No pending changes")
				return nil
			}
			for _, id := range sortedKeys(ws) {
				fmt.Fprintf(out, "workspace %s @%d\n", id, ws[id])
			}
			for _, k := range sortedKeys(bm) {
				c := bm[k]
				fmt.Fprintf(out, "bookmark  %s %s %s @%d\n", c.BookmarkGUID, c.Type, c.WorkspaceUUID, c.Timestamp)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearLogs, "clear", false, "clear both change logs")
	return cmd
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
