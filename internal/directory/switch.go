package directory

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/workspaces/internal/metrics"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// ChangeWorkspace makes uuid the active workspace: it partitions the tabs,
// keeps a sensible tab selected, persists the pointer and notifies
// listeners. A call made while another switch is running returns
// ErrSwitchInProgress without doing anything.
func (d *Directory) ChangeWorkspace(ctx context.Context, uuid string) error {
	return d.changeWorkspace(ctx, uuid, false)
}

// Switching reports whether a switch is in flight.
func (d *Directory) Switching() bool {
	return d.state.Load() == stateSwitching
}

func (d *Directory) changeWorkspace(ctx context.Context, uuid string, isInit bool) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if !d.state.CompareAndSwap(stateIdle, stateSwitching) {
		d.metrics.Switches.WithLabelValues(metrics.ResultBusy).Inc()
		d.logger.Debug("switch dropped, another switch in flight", "workspace_id", uuid)
		return types.ErrSwitchInProgress
	}
	defer d.state.Store(stateIdle)

	start := d.clock.Now()
	err := d.performSwitch(ctx, uuid, isInit)
	if err != nil {
		d.metrics.Switches.WithLabelValues(metrics.ResultError).Inc()
		return err
	}
	d.metrics.Switches.WithLabelValues(metrics.ResultOK).Inc()
	d.metrics.SwitchDuration.Observe(d.clock.Now().Sub(start).Seconds())
	return nil
}

func (d *Directory) performSwitch(ctx context.Context, uuid string, isInit bool) error {
	list, err := d.Workspaces(ctx)
	if err != nil {
		return err
	}
	i := indexOf(list, uuid)
	if i < 0 {
		return fmt.Errorf("switching to %s: %w", uuid, types.ErrNotFound)
	}
	target := list[i]

	d.applyTabs(target, list, isInit)

	d.mu.Lock()
	previous := d.active
	d.active = target.UUID
	listeners := make([]Listener, len(d.listeners))
	for i, l := range d.listeners {
		listeners[i] = l.fn
	}
	d.mu.Unlock()

	persistErr := d.store.SetActiveWorkspace(ctx, target.UUID)
	if persistErr != nil {
		d.logger.Error("persisting active workspace", "workspace_id", target.UUID, "error", persistErr)
	}

	// Bookmark visibility depends on the active workspace.
	d.invalidateBookmarks()
	if _, err := d.Bookmarks(ctx); err != nil {
		d.logger.Warn("reloading bookmark associations", "error", err)
	}

	for _, l := range listeners {
		if err := l(ctx, target, isInit); err != nil {
			d.logger.Warn("workspace listener failed", "workspace_id", target.UUID, "error", err)
		}
	}

	d.logger.Debug("workspace switched", "workspace_id", target.UUID, "previous", previous, "init", isInit)
	if persistErr != nil {
		return fmt.Errorf("persisting active workspace: %w", persistErr)
	}
	return nil
}

// applyTabs runs the visibility partition and the selection pass. A panic
// from the tab host degrades to showing every tab.
func (d *Directory) applyTabs(target types.Workspace, list []types.Workspace, isInit bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tab visibility anomaly, showing all tabs", "workspace_id", target.UUID, "panic", fmt.Sprint(r))
			d.showAll()
		}
	}()

	d.mu.Lock()
	remembered := make(map[types.Tab]bool, len(d.lastSelected))
	for _, tab := range d.lastSelected {
		remembered[tab] = true
	}
	d.mu.Unlock()

	tabs := d.host.Tabs()
	visible := d.partition(tabs, target, list, remembered)
	d.selectTab(tabs, visible, target, isInit)
}

func (d *Directory) showAll() {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("showing all tabs failed", "panic", fmt.Sprint(r))
		}
	}()
	for _, tab := range d.host.Tabs() {
		d.host.ShowTab(tab)
	}
}

// partition decides and applies the visibility of every tab for target.
// Tabs without a workspace are claimed by target.
func (d *Directory) partition(tabs []types.Tab, target types.Workspace, list []types.Workspace, remembered map[types.Tab]bool) map[types.Tab]bool {
	visible := make(map[types.Tab]bool, len(tabs))
	for _, tab := range tabs {
		show := d.shouldShow(tab, target, list, remembered)
		if show {
			d.host.ShowTab(tab)
		} else {
			d.host.HideTab(tab)
		}
		visible[tab] = show
	}
	return visible
}

func (d *Directory) shouldShow(tab types.Tab, target types.Workspace, list []types.Workspace, remembered map[types.Tab]bool) bool {
	wsID, assigned := tab.WorkspaceID()

	if tab.Essential() {
		return d.essentialVisible(tab, target, list)
	}
	// A tab remembered as last-selected elsewhere stays hidden.
	if remembered[tab] && wsID != target.UUID {
		return false
	}
	if !assigned {
		tab.SetWorkspaceID(target.UUID)
		return true
	}
	return wsID == target.UUID
}

func (d *Directory) essentialVisible(tab types.Tab, target types.Workspace, list []types.Workspace) bool {
	if !d.settings.ContainerSpecificEssentials {
		return true
	}
	if target.ContainerID != 0 {
		return tab.ContainerID() == target.ContainerID
	}
	if tab.ContainerID() == 0 {
		return true
	}
	for _, ws := range list {
		if ws.ContainerID == tab.ContainerID() {
			return false
		}
	}
	return true
}

// selectTab keeps the current tab when it stays visible, else restores the
// remembered tab of target, else the first visible ordinary tab, else
// opens a new one (except during the initial switch).
func (d *Directory) selectTab(tabs []types.Tab, visible map[types.Tab]bool, target types.Workspace, isInit bool) {
	current := d.host.SelectedTab()

	d.mu.Lock()
	if current != nil && !current.Essential() {
		if wsID, ok := current.WorkspaceID(); ok && wsID != target.UUID {
			d.lastSelected[wsID] = current
		}
	}
	remembered := d.lastSelected[target.UUID]
	d.mu.Unlock()

	var pick types.Tab
	switch {
	case current != nil && visible[current]:
		pick = current
	case remembered != nil && visible[remembered]:
		pick = remembered
	default:
		for _, tab := range tabs {
			if visible[tab] && !tab.Pinned() && !tab.Essential() {
				pick = tab
				break
			}
		}
	}
	if pick == nil && !isInit {
		pick = d.openTabFor(target.UUID)
	}

	if pick != nil {
		d.host.SelectTab(pick)
		d.mu.Lock()
		d.lastSelected[target.UUID] = pick
		d.mu.Unlock()
	}
	if current != nil && current != pick && !visible[current] {
		d.host.HideTab(current)
	}
}

// openTabFor opens a homepage tab bound to uuid and shows it.
func (d *Directory) openTabFor(uuid string) types.Tab {
	tab := d.host.OpenTab(d.settings.Homepage)
	tab.SetWorkspaceID(uuid)
	d.host.ShowTab(tab)
	return tab
}

// LastSelected returns the tab remembered for uuid, or nil.
func (d *Directory) LastSelected(uuid string) types.Tab {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSelected[uuid]
}
