package directory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// newWorkspaceID returns a UUID v7, falling back to v4.
func newWorkspaceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// CreateWorkspace stores a new workspace, binds every unassigned ordinary
// tab to it (or opens a tab when there is none) and switches to it. The
// first workspace ever created becomes the default.
func (d *Directory) CreateWorkspace(ctx context.Context, name, icon string) (types.Workspace, error) {
	if name == "" {
		return types.Workspace{}, types.ErrInvalidName
	}
	list, err := d.Workspaces(ctx)
	if err != nil {
		return types.Workspace{}, err
	}

	ws := types.Workspace{
		UUID:    d.newID(),
		Name:    name,
		Icon:    icon,
		Default: len(list) == 0,
	}
	if err := d.store.SaveWorkspace(ctx, &ws); err != nil {
		return types.Workspace{}, fmt.Errorf("saving workspace: %w", err)
	}
	d.invalidate()

	bound := 0
	for _, tab := range d.host.Tabs() {
		if _, ok := tab.WorkspaceID(); ok || tab.Pinned() || tab.Essential() {
			continue
		}
		tab.SetWorkspaceID(ws.UUID)
		bound++
	}
	if bound == 0 {
		d.openTabFor(ws.UUID)
	}

	d.logger.Info("workspace created", "workspace_id", ws.UUID, "name", ws.Name, "default", ws.Default, "tabs", bound)
	if err := d.changeWorkspace(ctx, ws.UUID, false); err != nil {
		return ws, err
	}
	return ws, nil
}

// SaveWorkspace upserts an edited workspace record.
func (d *Directory) SaveWorkspace(ctx context.Context, ws types.Workspace) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if err := d.store.SaveWorkspace(ctx, &ws); err != nil {
		return fmt.Errorf("saving workspace %s: %w", ws.UUID, err)
	}
	d.invalidate()
	return nil
}

// update applies fn to a copy of the cached record and saves it.
func (d *Directory) update(ctx context.Context, uuid string, fn func(ws *types.Workspace)) error {
	ws, err := d.Workspace(ctx, uuid)
	if err != nil {
		return err
	}
	fn(&ws)
	return d.SaveWorkspace(ctx, ws)
}

// RenameWorkspace changes the display name.
func (d *Directory) RenameWorkspace(ctx context.Context, uuid, name string) error {
	if name == "" {
		return types.ErrInvalidName
	}
	return d.update(ctx, uuid, func(ws *types.Workspace) { ws.Name = name })
}

// SetWorkspaceIcon changes the icon. An empty icon falls back to the first
// grapheme of the name.
func (d *Directory) SetWorkspaceIcon(ctx context.Context, uuid, icon string) error {
	return d.update(ctx, uuid, func(ws *types.Workspace) { ws.Icon = icon })
}

// SetWorkspaceContainer binds the workspace to a container; 0 unbinds it.
func (d *Directory) SetWorkspaceContainer(ctx context.Context, uuid string, containerID int64) error {
	return d.update(ctx, uuid, func(ws *types.Workspace) { ws.ContainerID = containerID })
}

// SetWorkspaceTheme replaces the theme.
func (d *Directory) SetWorkspaceTheme(ctx context.Context, uuid string, theme types.Theme) error {
	if _, err := d.Workspace(ctx, uuid); err != nil {
		return err
	}
	if err := d.store.SaveWorkspaceTheme(ctx, uuid, theme); err != nil {
		return fmt.Errorf("saving theme of %s: %w", uuid, err)
	}
	d.invalidate()
	return nil
}

// SetDefaultWorkspace makes uuid the default workspace.
func (d *Directory) SetDefaultWorkspace(ctx context.Context, uuid string) error {
	if _, err := d.Workspace(ctx, uuid); err != nil {
		return err
	}
	if err := d.store.SetDefaultWorkspace(ctx, uuid); err != nil {
		return fmt.Errorf("setting default workspace: %w", err)
	}
	d.invalidate()
	return nil
}

// DeleteWorkspace removes a workspace. The last workspace and the default
// workspace cannot be deleted; both checks happen before anything
// changes. When uuid is active the directory first switches to a
// neighbour, then closes every tab bound to uuid, then removes the record.
func (d *Directory) DeleteWorkspace(ctx context.Context, uuid string) error {
	list, err := d.Workspaces(ctx)
	if err != nil {
		return err
	}
	i := indexOf(list, uuid)
	if i < 0 {
		return types.ErrNotFound
	}
	if len(list) <= 1 {
		return types.ErrLastWorkspace
	}
	if list[i].Default {
		return types.ErrDefaultWorkspaceRequired
	}

	if d.ActiveID() == uuid {
		neighbour := list[1]
		if i > 0 {
			neighbour = list[i-1]
		}
		if err := d.changeWorkspace(ctx, neighbour.UUID, false); err != nil {
			return fmt.Errorf("switching away from %s: %w", uuid, err)
		}
	}

	d.deleting.Store(true)
	closed := 0
	for _, tab := range d.host.Tabs() {
		if wsID, ok := tab.WorkspaceID(); ok && wsID == uuid {
			d.host.RemoveTab(tab)
			closed++
		}
	}
	d.deleting.Store(false)

	d.mu.Lock()
	delete(d.lastSelected, uuid)
	d.mu.Unlock()

	if err := d.store.RemoveWorkspace(ctx, uuid); err != nil {
		return fmt.Errorf("removing workspace %s: %w", uuid, err)
	}
	d.invalidate()
	d.logger.Info("workspace deleted", "workspace_id", uuid, "closed_tabs", closed)
	return nil
}

// MoveWorkspace places dragged immediately before target and renumbers
// every position.
func (d *Directory) MoveWorkspace(ctx context.Context, dragged, target string) error {
	if dragged == target {
		return nil
	}
	list, err := d.Workspaces(ctx)
	if err != nil {
		return err
	}
	order := uuids(list)
	from := slices.Index(order, dragged)
	if from < 0 || slices.Index(order, target) < 0 {
		return types.ErrNotFound
	}
	order = slices.Delete(order, from, from+1)
	to := slices.Index(order, target)
	order = slices.Insert(order, to, dragged)
	return d.reorder(ctx, order)
}

// MoveWorkspaceToEnd places dragged last and renumbers every position.
func (d *Directory) MoveWorkspaceToEnd(ctx context.Context, dragged string) error {
	list, err := d.Workspaces(ctx)
	if err != nil {
		return err
	}
	order := uuids(list)
	from := slices.Index(order, dragged)
	if from < 0 {
		return types.ErrNotFound
	}
	order = append(slices.Delete(order, from, from+1), dragged)
	return d.reorder(ctx, order)
}

func (d *Directory) reorder(ctx context.Context, order []string) error {
	if err := d.store.UpdateWorkspacePositions(ctx, order); err != nil {
		return fmt.Errorf("updating positions: %w", err)
	}
	d.invalidate()
	return nil
}

func uuids(list []types.Workspace) []string {
	out := make([]string, len(list))
	for i, ws := range list {
		out[i] = ws.UUID
	}
	return out
}
