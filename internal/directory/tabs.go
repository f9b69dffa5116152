package directory

import (
	"context"
	"slices"

	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// OnTabInserted binds a newly inserted tab to the active workspace.
// Essential tabs and tabs that already carry a workspace are left alone.
func (d *Directory) OnTabInserted(tab types.Tab) {
	if tab.Essential() {
		return
	}
	if _, ok := tab.WorkspaceID(); ok {
		return
	}
	if active := d.ActiveID(); active != "" {
		tab.SetWorkspaceID(active)
	}
}

// OnTabClosing is called before tab closes. When tab is the last tab of
// its workspace, a replacement homepage tab bound to the same workspace is
// opened, selected and returned. Otherwise it returns nil.
func (d *Directory) OnTabClosing(tab types.Tab) types.Tab {
	if d.deleting.Load() {
		return nil
	}
	wsID, ok := tab.WorkspaceID()
	if !ok {
		return nil
	}
	var remaining []types.Tab
	for _, t := range d.host.Tabs() {
		id, ok := t.WorkspaceID()
		if !ok || id != wsID {
			continue
		}
		if d.settings.OpenNewTabIfLastUnpinnedTabIsClosed && t.Pinned() {
			continue
		}
		remaining = append(remaining, t)
	}
	if len(remaining) != 1 || remaining[0] != tab {
		return nil
	}
	replacement := d.openTabFor(wsID)
	d.host.SelectTab(replacement)
	return replacement
}

// OnTabActivated records tab as the last-selected tab of the active
// workspace, or switches to the tab's workspace when it belongs elsewhere.
// Activations caused by a switch in flight are ignored.
func (d *Directory) OnTabActivated(ctx context.Context, tab types.Tab) error {
	if d.Switching() || tab.Essential() {
		return nil
	}
	wsID, ok := tab.WorkspaceID()
	if !ok {
		return nil
	}
	active := d.ActiveID()
	if wsID == active {
		d.mu.Lock()
		d.lastSelected[wsID] = tab
		d.mu.Unlock()
		return nil
	}
	return d.ChangeWorkspace(ctx, wsID)
}

// MoveTabsToWorkspace rebinds tabs to uuid and switches there.
func (d *Directory) MoveTabsToWorkspace(ctx context.Context, tabs []types.Tab, uuid string) error {
	if _, err := d.Workspace(ctx, uuid); err != nil {
		return err
	}
	for _, tab := range tabs {
		tab.SetWorkspaceID(uuid)
	}
	d.mu.Lock()
	previous := d.active
	if slices.Contains(tabs, d.lastSelected[previous]) {
		delete(d.lastSelected, previous)
	}
	d.mu.Unlock()
	return d.ChangeWorkspace(ctx, uuid)
}

// ContainerChoice is the container a new tab should open in.
type ContainerChoice struct {
	ContainerID int64
	// Forced is true when the choice overrides the request.
	Forced bool
	// SwitchedTo names the workspace switched to because it owns the
	// requested container.
	SwitchedTo string
}

// ContainerForNewTab resolves the container of a tab about to open.
// requested is the container asked for and is meaningful only when
// explicit is set; fromExternal marks tabs opened by other applications.
// It reads only the cached workspace list.
func (d *Directory) ContainerForNewTab(ctx context.Context, requested int64, explicit, fromExternal bool) ContainerChoice {
	d.mu.Lock()
	var list []types.Workspace
	if d.cache != nil {
		list = d.cache.workspaces
	}
	activeID := d.active
	d.mu.Unlock()

	if d.settings.ForceContainerToWorkspace && explicit && requested != 0 && list != nil {
		var matching []types.Workspace
		for _, ws := range list {
			if ws.ContainerID == requested {
				matching = append(matching, ws)
			}
		}
		if len(matching) == 1 && matching[0].UUID != activeID {
			if err := d.ChangeWorkspace(ctx, matching[0].UUID); err != nil {
				d.logger.Warn("switching to container workspace", "workspace_id", matching[0].UUID, "error", err)
			}
			return ContainerChoice{ContainerID: requested, Forced: true, SwitchedTo: matching[0].UUID}
		}
	}

	var activeContainer int64
	if i := slices.IndexFunc(list, func(ws types.Workspace) bool { return ws.UUID == activeID }); i >= 0 {
		activeContainer = list[i].ContainerID
	}
	if fromExternal && activeContainer != 0 {
		return ContainerChoice{ContainerID: activeContainer, Forced: true}
	}
	if explicit && requested != activeContainer {
		return ContainerChoice{ContainerID: requested}
	}
	return ContainerChoice{ContainerID: activeContainer, Forced: true}
}
