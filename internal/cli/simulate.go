package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/workspaces/internal/directory"
	"github.com/mesh-intelligence/workspaces/internal/tabstrip"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

const simulateHelp = `Drive a directory over an in-memory tab strip and print the strip after
each step. Switches are persisted to the store like any other window.

Steps:
  tab:URL         open a tab in the active workspace
  pin:URL         open a pinned tab in the active workspace
  essential:URL   open an essential tab
  select:ID       select tab ID
  close:ID        close tab ID
  switch:REF      switch to the workspace named or identified by REF
  create:NAME     create a workspace and switch to it
  next, prev      switch to the neighbouring workspace
  goto:N          switch to the workspace at index N
  scroll:DELTA    feed one wheel delta
  swipe:DELTA     run a swipe gesture with total DELTA`

// simTab is the JSON view of one tab after a step.
type simTab struct {
	ID        int    `json:"id"`
	URL       string `json:"url"`
	Workspace string `json:"workspace,omitempty"`
	Pinned    bool   `json:"pinned,omitempty"`
	Essential bool   `json:"essential,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
	Selected  bool   `json:"selected,omitempty"`
}

type simStep struct {
	Step   string   `json:"step"`
	Active string   `json:"active"`
	Note   string   `json:"note,omitempty"`
	Tabs   []simTab `json:"tabs"`
}

func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate <step>...",
		Short: "Simulate a browser window against the workspace store",
		Long:  simulateHelp,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()
			ctx := cmd.Context()

			strip := tabstrip.New()
			d, err := e.openDirectory(ctx, strip)
			if err != nil {
				return err
			}
			defer d.Close()

			sim := &simulator{d: d, strip: strip}
			var steps []simStep
			for _, arg := range args {
				note, err := sim.run(ctx, arg)
				if err != nil {
					return classify(fmt.Errorf("step %q: %w", arg, err))
				}
				steps = append(steps, sim.snapshot(ctx, arg, note))
			}
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), steps)
			}
			for _, s := range steps {
				printStep(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}

type simulator struct {
	d     *directory.Directory
	strip *tabstrip.Strip
}

// run applies one step and returns an optional note for the output.
func (s *simulator) run(ctx context.Context, step string) (string, error) {
	verb, arg, _ := strings.Cut(step, ":")
	switch verb {
	case "tab", "pin", "essential":
		if arg == "" {
			return "", userError(fmt.Errorf("missing URL"))
		}
		tab := s.strip.Add(tabstrip.Options{URL: arg, Pinned: verb == "pin", Essential: verb == "essential"})
		s.d.OnTabInserted(tab)
		return "", nil
	case "select":
		tab, err := s.tab(arg)
		if err != nil {
			return "", err
		}
		s.strip.SelectTab(tab)
		return "", s.d.OnTabActivated(ctx, tab)
	case "close":
		tab, err := s.tab(arg)
		if err != nil {
			return "", err
		}
		replacement := s.d.OnTabClosing(tab)
		s.strip.RemoveTab(tab)
		if r, ok := replacement.(*tabstrip.Tab); ok && r != nil {
			return fmt.Sprintf("opened replacement #%d", r.ID()), nil
		}
		return "", nil
	case "switch":
		list, err := s.d.Workspaces(ctx)
		if err != nil {
			return "", err
		}
		ws, err := findWorkspace(list, arg)
		if err != nil {
			return "", err
		}
		return "", s.d.ChangeWorkspace(ctx, ws.UUID)
	case "create":
		ws, err := s.d.CreateWorkspace(ctx, arg, "")
		if err != nil {
			return "", err
		}
		return "created " + ws.UUID, nil
	case "next":
		return "", s.d.ChangeWorkspaceShortcut(ctx, 1)
	case "prev":
		return "", s.d.ChangeWorkspaceShortcut(ctx, -1)
	case "goto":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return "", userError(fmt.Errorf("bad index %q", arg))
		}
		return "", s.d.ShortcutSwitchTo(ctx, n)
	case "scroll":
		delta, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return "", userError(fmt.Errorf("bad delta %q", arg))
		}
		switched, err := s.d.Scroll(ctx, delta)
		return switchedNote(switched), err
	case "swipe":
		delta, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return "", userError(fmt.Errorf("bad delta %q", arg))
		}
		s.d.BeginSwipe()
		s.d.UpdateSwipe(delta)
		switched, err := s.d.EndSwipe(ctx)
		return switchedNote(switched), err
	default:
		return "", userError(fmt.Errorf("unknown step %q", verb))
	}
}

func switchedNote(switched bool) string {
	if switched {
		return "switched"
	}
	return "no switch"
}

func (s *simulator) tab(arg string) (*tabstrip.Tab, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
	if err != nil {
		return nil, userError(fmt.Errorf("bad tab id %q", arg))
	}
	for _, t := range s.strip.All() {
		if t.ID() == id {
			return t, nil
		}
	}
	return nil, userError(fmt.Errorf("tab #%d: %w", id, types.ErrNotFound))
}

func (s *simulator) snapshot(ctx context.Context, step, note string) simStep {
	out := simStep{Step: step, Note: note, Active: s.d.ActiveID()}
	if ws, err := s.d.ActiveWorkspace(ctx); err == nil {
		out.Active = ws.Name
	}
	selected := s.strip.Selected()
	for _, t := range s.strip.All() {
		ws, _ := t.WorkspaceID()
		out.Tabs = append(out.Tabs, simTab{
			ID:        t.ID(),
			URL:       t.URL(),
			Workspace: ws,
			Pinned:    t.Pinned(),
			Essential: t.Essential(),
			Hidden:    t.Hidden(),
			Selected:  t == selected,
		})
	}
	return out
}

func printStep(w io.Writer, s simStep) {
	header := fmt.Sprintf("== %s -> %s", s.Step, s.Active)
	if s.Note != "" {
		header += " (" + s.Note + ")"
	}
	activeColor.Fprintln(w, header)
	for _, t := range s.Tabs {
		marker := "  "
		if t.Selected {
			marker = "> "
		}
		line := fmt.Sprintf("%s#%d %s", marker, t.ID, t.URL)
		if t.Hidden {
			line = dimColor.Sprint(line + " (hidden)")
		}
		fmt.Fprintln(w, line)
	}
}
