package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/mesh-intelligence/workspaces/pkg/types"
)

var (
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	activeColor  = color.New(color.FgCyan, color.Bold)
	dimColor     = color.New(color.Faint)
)

// printSuccess writes a green status line.
func printSuccess(w io.Writer, format string, args ...any) {
	successColor.Fprintf(w, format+"\n", args...)
}

// printWarning writes a yellow status line.
func printWarning(w io.Writer, format string, args ...any) {
	warningColor.Fprintf(w, format+"\n", args...)
}

// printError writes err in red.
func printError(w io.Writer, err error) {
	var ce *codeError
	if errors.As(err, &ce) {
		err = ce.err
	}
	errorColor.Fprintf(w, "Error: %v\n", err)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal output: %w", err))
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// printWorkspaces writes one line per workspace, marking the active and the
// default one.
func printWorkspaces(w io.Writer, list []types.Workspace, active string) {
	for _, ws := range list {
		marker := "  "
		if ws.UUID == active {
			marker = "* "
		}
		var tags []string
		if ws.Default {
			tags = append(tags, "default")
		}
		if ws.ContainerID != 0 {
			tags = append(tags, fmt.Sprintf("container=%d", ws.ContainerID))
		}
		if ws.Theme != nil {
			tags = append(tags, "theme="+ws.Theme.Type)
		}
		line := fmt.Sprintf("%s%s %-24s", marker, ws.DisplayIcon(), ws.Name)
		if ws.UUID == active {
			line = activeColor.Sprint(line)
		}
		suffix := dimColor.Sprintf(" %s pos=%d", ws.UUID, ws.Position)
		if len(tags) > 0 {
			suffix += " [" + strings.Join(tags, ",") + "]"
		}
		fmt.Fprintln(w, line+suffix)
	}
}
