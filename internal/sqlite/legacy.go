package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mesh-intelligence/workspaces/internal/events"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// LegacyFile is the name of the pre-database workspace file.
const LegacyFile = "Workspaces.json"

type legacyFile struct {
	Workspaces []legacyWorkspace `json:"workspaces"`
}

type legacyWorkspace struct {
	UUID           string       `json:"uuid"`
	Name           string       `json:"name"`
	Icon           string       `json:"icon"`
	Default        bool         `json:"default"`
	ContainerTabID int64        `json:"containerTabId"`
	Position       int64        `json:"position"`
	Theme          *legacyTheme `json:"theme"`
}

type legacyTheme struct {
	Type           string            `json:"type"`
	GradientColors []json.RawMessage `json:"gradientColors"`
	Opacity        float64           `json:"opacity"`
	Rotation       int64             `json:"rotation"`
	Texture        float64           `json:"texture"`
}

// colors flattens gradient entries. Strings are kept; anything else, such
// as the object form older files used, is kept as its JSON text.
func (t *legacyTheme) colors() []string {
	out := make([]string, 0, len(t.GradientColors))
	for _, raw := range t.GradientColors {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(raw))
	}
	return out
}

func (lw legacyWorkspace) workspace() types.Workspace {
	ws := types.Workspace{
		UUID:        lw.UUID,
		Name:        lw.Name,
		Icon:        lw.Icon,
		Default:     lw.Default,
		ContainerID: lw.ContainerTabID,
		Position:    lw.Position,
	}
	if lw.Theme != nil && lw.Theme.Type != "" {
		ws.Theme = &types.Theme{
			Type:           lw.Theme.Type,
			GradientColors: lw.Theme.colors(),
			Opacity:        lw.Theme.Opacity,
			Rotation:       lw.Theme.Rotation,
			Texture:        lw.Theme.Texture,
		}
	}
	return ws
}

// MigrateLegacyJSON imports a legacy {"workspaces": [...]} file and removes
// it once the import has committed. A missing file is not an error.
func (b *Backend) MigrateLegacyJSON(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	var lf legacyFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return 0, fmt.Errorf("decoding %s: %w", path, err)
	}
	var list []types.Workspace
	for _, lw := range lf.Workspaces {
		if lw.UUID == "" || lw.Name == "" {
			b.logger.Warn("skipping legacy workspace without uuid or name", "path", path)
			continue
		}
		list = append(list, lw.workspace())
	}

	changed, err := b.saveAll(ctx, list)
	if err != nil {
		return 0, err
	}
	if err := os.Remove(path); err != nil {
		return len(list), fmt.Errorf("removing %s: %w", path, err)
	}

	b.logger.Info("legacy workspaces migrated", "path", path, "count", len(list))
	if len(changed) > 0 {
		b.metrics.Mutation("migrate")
		b.publish(events.WorkspaceUpdated, changed)
	}
	return len(list), nil
}
