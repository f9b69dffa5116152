package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/workspaces/internal/directory"
)

func newBookmarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookmark",
		Short: "Manage bookmark to workspace associations",
	}
	cmd.AddCommand(newBookmarkAddCmd(), newBookmarkRemoveCmd(), newBookmarkListCmd())
	return cmd
}

func newBookmarkAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <bookmark-guid> <workspace>...",
		Short: "Associate a bookmark with workspaces",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd, func(ctx context.Context, e *env, d *directory.Directory) error {
				for _, ref := range args[1:] {
					ws, err := resolve(ctx, d, ref)
					if err != nil {
						return err
					}
					if err := e.backend.Bookmarks().AddBookmarkWorkspace(ctx, args[0], ws.UUID); err != nil {
						return err
					}
				}
				printSuccess(cmd.OutOrStdout(), "Bookmark %s added to %s", args[0], strings.Join(args[1:], ", "))
				return nil
			})
		},
	}
}

func newBookmarkRemoveCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "remove <bookmark-guid> [workspace]...",
		Short: "Remove bookmark associations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) < 2 {
				return userError(fmt.Errorf("name at least one workspace or pass --all"))
			}
			return withDirectory(cmd, func(ctx context.Context, e *env, d *directory.Directory) error {
				if all {
					if err := e.backend.Bookmarks().RemoveBookmark(ctx, args[0]); err != nil {
						return err
					}
					printSuccess(cmd.OutOrStdout(), "Bookmark %s removed from every workspace", args[0])
					return nil
				}
				for _, ref := range args[1:] {
					ws, err := resolve(ctx, d, ref)
					if err != nil {
						return err
					}
					if err := e.backend.Bookmarks().RemoveBookmarkWorkspace(ctx, args[0], ws.UUID); err != nil {
						return err
					}
				}
				printSuccess(cmd.OutOrStdout(), "Bookmark %s removed from %s", args[0], strings.Join(args[1:], ", "))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "remove the bookmark from every workspace")
	return cmd
}

func newBookmarkListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [bookmark-guid]",
		Short: "List bookmark associations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd, func(ctx context.Context, e *env, d *directory.Directory) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					uuids, err := e.backend.Bookmarks().GetBookmarkWorkspaces(ctx, args[0])
					if err != nil {
						return err
					}
					if flags.jsonMode {
						return printJSON(out, map[string]any{"bookmark": args[0], "workspaces": uuids})
					}
					for _, u := range uuids {
						fmt.Fprintln(out, u)
					}
					return nil
				}

				byWorkspace, err := d.Bookmarks(ctx)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(out, byWorkspace)
				}
				list, err := d.Workspaces(ctx)
				if err != nil {
					return err
				}
				for _, ws := range list {
					guids := byWorkspace[ws.UUID]
					if len(guids) == 0 {
						continue
					}
					fmt.Fprintf(out, "%s %s\n", ws.DisplayIcon(), ws.Name)
					for _, g := range guids {
						fmt.Fprintf(out, "  %s\n", g)
					}
				}
				return nil
			})
		},
	}
}
