package types

import "github.com/rivo/uniseg"

// PositionStep is the spacing between adjacent workspace positions after a
// renumbering pass.
const PositionStep int64 = 1000

// Workspace is a named, ordered grouping of tabs within a window.
type Workspace struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	Default     bool   `json:"default"`
	ContainerID int64  `json:"containerTabId,omitempty"` // 0 means no container.
	Position    int64  `json:"position"`                 // 0 means unassigned.
	Theme       *Theme `json:"theme,omitempty"`
	CreatedAt   int64  `json:"createdAt"` // epoch milliseconds
	UpdatedAt   int64  `json:"updatedAt"` // epoch milliseconds
}

// Theme describes the gradient background of a workspace.
type Theme struct {
	Type           string   `json:"type"`
	GradientColors []string `json:"gradientColors"`
	Opacity        float64  `json:"opacity"`
	Rotation       int64    `json:"rotation"`
	Texture        float64  `json:"texture"`
}

// DisplayIcon returns the icon, or the first grapheme of the name when no
// icon is set.
func (w Workspace) DisplayIcon() string {
	if w.Icon != "" {
		return w.Icon
	}
	if w.Name == "" {
		return ""
	}
	cluster, _, _, _ := uniseg.FirstGraphemeClusterInString(w.Name, -1)
	return cluster
}

// Clone returns a deep copy of the workspace.
func (w Workspace) Clone() Workspace {
	if w.Theme != nil {
		t := *w.Theme
		t.GradientColors = append([]string(nil), w.Theme.GradientColors...)
		w.Theme = &t
	}
	return w
}

// ShouldReorder reports whether current sits too close to one of its
// neighbours to allow another insertion. A nil neighbour is treated as
// unbounded.
func ShouldReorder(before *int64, current int64, after *int64) bool {
	const minGap = 1
	if before != nil && current-*before < minGap {
		return true
	}
	return after != nil && *after-current < minGap
}
