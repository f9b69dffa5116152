// Package tabstrip is an in-memory tab strip implementing types.TabHost.
// It backs the directory tests and the simulate command.
package tabstrip

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// Tab is one in-memory tab. Pinned, Essential and ContainerID are fixed at
// creation.
type Tab struct {
	id          int
	url         string
	pinned      bool
	essential   bool
	containerID int64

	mu          sync.Mutex
	workspaceID string
	hidden      bool
}

// Options describes a tab to add.
type Options struct {
	URL         string
	WorkspaceID string
	Pinned      bool
	Essential   bool
	ContainerID int64
}

// ID returns the strip-unique tab number.
func (t *Tab) ID() int { return t.id }

// URL returns the loaded address.
func (t *Tab) URL() string { return t.url }

func (t *Tab) WorkspaceID() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.workspaceID, t.workspaceID != ""
}

// SetWorkspaceID assigns the owning workspace. An empty uuid clears it.
func (t *Tab) SetWorkspaceID(uuid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.workspaceID = uuid
}

func (t *Tab) Pinned() bool       { return t.pinned }
func (t *Tab) Essential() bool    { return t.essential }
func (t *Tab) ContainerID() int64 { return t.containerID }

// Hidden reports whether the tab is currently hidden.
func (t *Tab) Hidden() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hidden
}

func (t *Tab) setHidden(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hidden = v
}

// String renders the tab for logs and the simulate command.
func (t *Tab) String() string {
	var flags []string
	if t.pinned {
		flags = append(flags, "pinned")
	}
	if t.essential {
		flags = append(flags, "essential")
	}
	if t.containerID != 0 {
		flags = append(flags, fmt.Sprintf("container=%d", t.containerID))
	}
	if t.Hidden() {
		flags = append(flags, "hidden")
	}
	ws, _ := t.WorkspaceID()
	s := fmt.Sprintf("#%d %s ws=%q", t.id, t.url, ws)
	if len(flags) > 0 {
		s += " [" + strings.Join(flags, ",") + "]"
	}
	return s
}

// Strip is an ordered list of tabs with one selected tab. It is safe for
// concurrent use.
type Strip struct {
	mu       sync.Mutex
	nextID   int
	tabs     []*Tab
	selected *Tab
}

// Compile-time interface checks.
var (
	_ types.TabHost = (*Strip)(nil)
	_ types.Tab     = (*Tab)(nil)
)

// New returns an empty strip.
func New() *Strip {
	return &Strip{}
}

// Add appends a tab. The first tab added becomes selected.
func (s *Strip) Add(opts Options) *Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := &Tab{
		id:          s.nextID,
		url:         opts.URL,
		pinned:      opts.Pinned,
		essential:   opts.Essential,
		containerID: opts.ContainerID,
		workspaceID: opts.WorkspaceID,
	}
	s.tabs = append(s.tabs, t)
	if s.selected == nil {
		s.selected = t
	}
	return t
}

// All returns the tabs in strip order.
func (s *Strip) All() []*Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Tab(nil), s.tabs...)
}

// Visible returns the tabs that are not hidden, in strip order.
func (s *Strip) Visible() []*Tab {
	var out []*Tab
	for _, t := range s.All() {
		if !t.Hidden() {
			out = append(out, t)
		}
	}
	return out
}

// Selected returns the selected tab, or nil.
func (s *Strip) Selected() *Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Strip) Tabs() []types.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Tab, len(s.tabs))
	for i, t := range s.tabs {
		out[i] = t
	}
	return out
}

func (s *Strip) SelectedTab() types.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	return s.selected
}

// SelectTab selects tab and makes it visible. Tabs from another strip are
// ignored.
func (s *Strip) SelectTab(tab types.Tab) {
	t, ok := s.own(tab)
	if !ok {
		return
	}
	t.setHidden(false)
	s.mu.Lock()
	s.selected = t
	s.mu.Unlock()
}

func (s *Strip) ShowTab(tab types.Tab) {
	if t, ok := s.own(tab); ok {
		t.setHidden(false)
	}
}

// HideTab hides tab. The selected tab stays selected; callers select
// another tab first.
func (s *Strip) HideTab(tab types.Tab) {
	if t, ok := s.own(tab); ok {
		t.setHidden(true)
	}
}

// OpenTab appends a new unselected tab loading url.
func (s *Strip) OpenTab(url string) types.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := &Tab{id: s.nextID, url: url}
	s.tabs = append(s.tabs, t)
	return t
}

// RemoveTab closes tab. When the selected tab closes, the nearest visible
// tab to its right, else to its left, becomes selected.
func (s *Strip) RemoveTab(tab types.Tab) {
	t, ok := s.own(tab)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, cur := range s.tabs {
		if cur == t {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	s.tabs = append(s.tabs[:idx], s.tabs[idx+1:]...)
	if s.selected != t {
		return
	}
	s.selected = nil
	for i := idx; i < len(s.tabs); i++ {
		if !s.tabs[i].Hidden() {
			s.selected = s.tabs[i]
			return
		}
	}
	for i := idx - 1; i >= 0; i-- {
		if !s.tabs[i].Hidden() {
			s.selected = s.tabs[i]
			return
		}
	}
}

// own converts tab to a *Tab belonging to this strip.
func (s *Strip) own(tab types.Tab) (*Tab, bool) {
	t, ok := tab.(*Tab)
	if !ok || t == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.tabs {
		if cur == t {
			return t, true
		}
	}
	return nil, false
}
