package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/workspaces/internal/directory"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// withDirectory opens the store and a tab-less directory, runs fn, and
// releases both.
func withDirectory(cmd *cobra.Command, fn func(ctx context.Context, e *env, d *directory.Directory) error) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := e.openDirectory(ctx, nil)
	if err != nil {
		return err
	}
	defer d.Close()
	return classify(fn(ctx, e, d))
}

// resolve looks up ref in the directory's list.
func resolve(ctx context.Context, d *directory.Directory, ref string) (types.Workspace, error) {
	list, err := d.Workspaces(ctx)
	if err != nil {
		return types.Workspace{}, err
	}
	return findWorkspace(list, ref)
}

// printResult prints ws as JSON or a success line.
func printResult(cmd *cobra.Command, ws types.Workspace, format string, args ...any) error {
	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), ws)
	}
	printSuccess(cmd.OutOrStdout(), format, args...)
	return nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd, func(ctx context.Context, _ *env, d *directory.Directory) error {
				list, err := d.Workspaces(ctx)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]any{"active": d.ActiveID(), "workspaces": list})
				}
				printWorkspaces(cmd.OutOrStdout(), list, d.ActiveID())
				return nil
			})
		},
	}
}

func newCreateCmd() *cobra.Command {
	var (
		icon      string
		container int64
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a workspace and make it active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd, func(ctx context.Context, _ *env, d *directory.Directory) error {
				ws, err := d.CreateWorkspace(ctx, args[0], icon)
				if err != nil {
					return err
				}
				if container != 0 {
					if err := d.SetWorkspaceContainer(ctx, ws.UUID, container); err != nil {
						return err
					}
					ws.ContainerID = container
				}
				return printResult(cmd, ws, "Created workspace %s (%s)", ws.Name, ws.UUID)
			})
		},
	}
	cmd.Flags().StringVar(&icon, "icon", "", "icon (default: first character of the name)")
	cmd.Flags().Int64Var(&container, "container", 0, "container id bound to the workspace")
	return cmd
}

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <workspace> <new-name>",
		Short: "Rename a workspace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd, func(ctx context.Context, _ *env, d *directory.Directory) error {
				ws, err := resolve(ctx, d, args[0])
				if err != nil {
					return err
				}
				if err := d.RenameWorkspace(ctx, ws.UUID, args[1]); err != nil {
					return err
				}
				ws.Name = args[1]
				return printResult(cmd, ws, "Renamed workspace %s to %s", ws.UUID, ws.Name)
			})
		},
	}
}

func newIconCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "icon <workspace> [icon]",
		Short: "Set or clear a workspace icon",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd, func(ctx context.Context, _ *env, d *directory.Directory) error {
				ws, err := resolve(ctx, d, args[0])
				if err != nil {
					return err
				}
				icon := ""
				if len(args) == 2 {
					icon = args[1]
				}
				if err := d.SetWorkspaceIcon(ctx, ws.UUID, icon); err != nil {
					return err
				}
				ws.Icon = icon
				return printResult(cmd, ws, "Icon of %s is now %s", ws.Name, ws.DisplayIcon())
			})
		},
	}
}

func newThemeCmd() *cobra.Command {
	var (
		themeType string
		colors    string
		opacity   float64
		rotation  int64
		texture   float64
	)
	cmd := &cobra.Command{
		Use:   "theme <workspace>",
		Short: "Set the theme of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			theme := types.Theme{Type: themeType, Opacity: opacity, Rotation: rotation, Texture: texture}
			if colors != "" {
				for _, c := range strings.Split(colors, ",") {
					theme.GradientColors = append(theme.GradientColors, strings.TrimSpace(c))
				}
			}
			return withDirectory(cmd, func(ctx context.Context, _ *env, d *directory.Directory) error {
				ws, err := resolve(ctx, d, args[0])
				if err != nil {
					return err
				}
				if err := d.SetWorkspaceTheme(ctx, ws.UUID, theme); err != nil {
					return err
				}
				ws.Theme = &theme
				return printResult(cmd, ws, "Theme of %s updated", ws.Name)
			})
		},
	}
	cmd.Flags().StringVar(&themeType, "type", "gradient", "theme type")
	cmd.Flags().StringVar(&colors, "colors", "", "comma-separated gradient colors")
	cmd.Flags().Float64Var(&opacity, "opacity", 0.5, "opacity between 0 and 1")
	cmd.Flags().Int64Var(&rotation, "rotation", 45, "gradient rotation in degrees")
	cmd.Flags().Float64Var(&texture, "texture", 0, "texture amount")
	return cmd
}

func newDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default <workspace>",
		Short: "Make a workspace the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd, func(ctx context.Context, _ *env, d *directory.Directory) error {
				ws, err := resolve(ctx, d, args[0])
				if err != nil {
					return err
				}
				if err := d.SetDefaultWorkspace(ctx, ws.UUID); err != nil {
					return err
				}
				ws.Default = true
				return printResult(cmd, ws, "%s is now the default workspace", ws.Name)
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <workspace>",
		Short: "Delete a workspace",
		Long:  "Delete a workspace. The last workspace and the default workspace cannot be deleted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd, func(ctx context.Context, _ *env, d *directory.Directory) error {
				ws, err := resolve(ctx, d, args[0])
				if err != nil {
					return err
				}
				if err := d.DeleteWorkspace(ctx, ws.UUID); err != nil {
					return err
				}
				return printResult(cmd, ws, "Deleted workspace %s (%s)", ws.Name, ws.UUID)
			})
		},
	}
}

func newMoveCmd() *cobra.Command {
	var (
		before string
		toEnd  bool
	)
	cmd := &cobra.Command{
		Use:   "move <workspace> (--before <workspace> | --end | <index>)",
		Short: "Reorder a workspace",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd, func(ctx context.Context, _ *env, d *directory.Directory) error {
				ws, err := resolve(ctx, d, args[0])
				if err != nil {
					return err
				}
				switch {
				case toEnd:
					err = d.MoveWorkspaceToEnd(ctx, ws.UUID)
				case before != "":
					target, rerr := resolve(ctx, d, before)
					if rerr != nil {
						return rerr
					}
					err = d.MoveWorkspace(ctx, ws.UUID, target.UUID)
				case len(args) == 2:
					err = moveToIndex(ctx, d, ws.UUID, args[1])
				default:
					return userError(fmt.Errorf("move needs --before, --end or an index"))
				}
				if err != nil {
					return err
				}
				list, err := d.Workspaces(ctx)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), list)
				}
				printWorkspaces(cmd.OutOrStdout(), list, d.ActiveID())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&before, "before", "", "place the workspace before this one")
	cmd.Flags().BoolVar(&toEnd, "end", false, "place the workspace last")
	return cmd
}

// moveToIndex places uuid at the zero-based index.
func moveToIndex(ctx context.Context, d *directory.Directory, uuid, arg string) error {
	index, err := strconv.Atoi(arg)
	if err != nil {
		return userError(fmt.Errorf("invalid index %q", arg))
	}
	list, err := d.Workspaces(ctx)
	if err != nil {
		return err
	}
	var others []types.Workspace
	for _, ws := range list {
		if ws.UUID != uuid {
			others = append(others, ws)
		}
	}
	if index < 0 || index > len(others) {
		return userError(fmt.Errorf("index %d out of range 0..%d", index, len(others)))
	}
	if index == len(others) {
		return d.MoveWorkspaceToEnd(ctx, uuid)
	}
	return d.MoveWorkspace(ctx, uuid, others[index].UUID)
}
