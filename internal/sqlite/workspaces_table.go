// This file implements the workspaces table accessor: records, ordering,
// the default flag, the active pointer and the workspace change log.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/workspaces/internal/events"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

const workspaceColumns = `uuid, name, icon, is_default, container_id, "position", created_at, updated_at,
theme_type, theme_colors, theme_opacity, theme_rotation, theme_texture`

// workspacesTable implements types.WorkspaceStore.
type workspacesTable struct {
	backend *Backend
}

type rowScanner interface {
	Scan(dest ...any) error
}

// hydrateWorkspace converts one row selected with workspaceColumns.
func hydrateWorkspace(row rowScanner) (types.Workspace, error) {
	var (
		ws          types.Workspace
		icon        sql.NullString
		isDefault   int64
		containerID sql.NullInt64
		themeType   sql.NullString
		themeColors sql.NullString
		opacity     sql.NullFloat64
		rotation    sql.NullInt64
		texture     sql.NullFloat64
	)
	err := row.Scan(&ws.UUID, &ws.Name, &icon, &isDefault, &containerID, &ws.Position,
		&ws.CreatedAt, &ws.UpdatedAt, &themeType, &themeColors, &opacity, &rotation, &texture)
	if err != nil {
		return types.Workspace{}, err
	}
	ws.Icon = icon.String
	ws.Default = isDefault != 0
	ws.ContainerID = containerID.Int64
	if themeType.Valid && themeType.String != "" {
		theme := &types.Theme{
			Type:     themeType.String,
			Opacity:  opacity.Float64,
			Rotation: rotation.Int64,
			Texture:  texture.Float64,
		}
		if themeColors.Valid && themeColors.String != "" {
			if err := json.Unmarshal([]byte(themeColors.String), &theme.GradientColors); err != nil {
				return types.Workspace{}, fmt.Errorf("decoding theme colors of %s: %w", ws.UUID, err)
			}
		}
		ws.Theme = theme
	}
	return ws, nil
}

// themeArgs returns the five theme column values. A nil theme stores NULLs.
func themeArgs(theme *types.Theme) ([]any, error) {
	if theme == nil {
		return []any{nil, nil, nil, nil, nil}, nil
	}
	colors := theme.GradientColors
	if colors == nil {
		colors = []string{}
	}
	raw, err := json.Marshal(colors)
	if err != nil {
		return nil, fmt.Errorf("encoding theme colors: %w", err)
	}
	return []any{theme.Type, string(raw), theme.Opacity, theme.Rotation, theme.Texture}, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}

func boolInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

// SaveWorkspace upserts ws and records it in the change log.
func (wt *workspacesTable) SaveWorkspace(ctx context.Context, ws *types.Workspace) error {
	if ws == nil || ws.UUID == "" {
		return types.ErrInvalidID
	}
	if ws.Name == "" {
		return types.ErrInvalidName
	}

	b := wt.backend
	var changed []string
	err := b.withTx(ctx, func(t *txn) error {
		now := b.nowMillis()
		ids, err := b.upsertWorkspace(t, ws, now, true)
		if err != nil {
			return err
		}
		changed = ids
		_, err = touchLastChange(t, metaWorkspacesLastChange, now)
		return err
	})
	if err != nil {
		return err
	}

	b.metrics.Mutation("save")
	b.logger.Debug("workspace saved", "uuid", ws.UUID, "position", ws.Position, "default", ws.Default)
	b.publish(events.WorkspaceUpdated, changed)
	return nil
}

// upsertWorkspace writes ws inside t and returns the UUIDs of every row it
// touched. When record is false the change log is left alone and the
// record's own UpdatedAt is kept, which is what a sync peer's write needs.
func (b *Backend) upsertWorkspace(t *txn, ws *types.Workspace, now int64, record bool) ([]string, error) {
	var (
		existingCreated  int64
		existingPosition int64
		exists           = true
	)
	err := t.queryRow(`SELECT created_at, "position" FROM workspaces WHERE uuid = ?`, ws.UUID).
		Scan(&existingCreated, &existingPosition)
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return nil, fmt.Errorf("checking workspace %s: %w", ws.UUID, err)
	}

	changed := []string{ws.UUID}

	if ws.Default {
		flipped, err := b.clearDefault(t, ws.UUID, now, record)
		if err != nil {
			return nil, err
		}
		changed = append(changed, flipped...)
	}

	collision := false
	switch {
	case ws.Position == 0 && exists:
		ws.Position = existingPosition
	case ws.Position == 0:
		var maxPos int64
		if err := t.queryRow(`SELECT COALESCE(MAX("position"), 0) FROM workspaces`).Scan(&maxPos); err != nil {
			return nil, fmt.Errorf("reading max position: %w", err)
		}
		ws.Position = maxPos + types.PositionStep
	default:
		var before, after sql.NullInt64
		err := t.queryRow(`SELECT
    (SELECT MAX("position") FROM workspaces WHERE "position" < ? AND uuid <> ?),
    (SELECT MIN("position") FROM workspaces WHERE "position" >= ? AND uuid <> ?)`,
			ws.Position, ws.UUID, ws.Position, ws.UUID).Scan(&before, &after)
		if err != nil {
			return nil, fmt.Errorf("reading neighbour positions: %w", err)
		}
		collision = types.ShouldReorder(nullablePosition(before), ws.Position, nullablePosition(after))
	}

	switch {
	case exists:
		ws.CreatedAt = existingCreated
	case ws.CreatedAt == 0:
		ws.CreatedAt = now
	}
	if record || ws.UpdatedAt == 0 {
		ws.UpdatedAt = now
	}

	theme, err := themeArgs(ws.Theme)
	if err != nil {
		return nil, err
	}
	args := append([]any{ws.UUID, ws.Name, nullIfEmpty(ws.Icon), boolInt(ws.Default), nullIfZero(ws.ContainerID),
		ws.Position, ws.CreatedAt, ws.UpdatedAt}, theme...)
	_, err = t.exec(`INSERT INTO workspaces (`+workspaceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (uuid) DO UPDATE SET
    name = excluded.name,
    icon = excluded.icon,
    is_default = excluded.is_default,
    container_id = excluded.container_id,
    "position" = excluded."position",
    updated_at = excluded.updated_at,
    theme_type = excluded.theme_type,
    theme_colors = excluded.theme_colors,
    theme_opacity = excluded.theme_opacity,
    theme_rotation = excluded.theme_rotation,
    theme_texture = excluded.theme_texture`, args...)
	if err != nil {
		return nil, fmt.Errorf("persisting workspace %s: %w", ws.UUID, err)
	}
	if record {
		if err := b.stampWorkspaceChange(t, ws.UUID, now); err != nil {
			return nil, err
		}
	}

	if collision {
		renumbered, err := b.normalizePositions(t, ws.UUID, now)
		if err != nil {
			return nil, err
		}
		changed = append(changed, renumbered...)
		if err := t.queryRow(`SELECT "position" FROM workspaces WHERE uuid = ?`, ws.UUID).Scan(&ws.Position); err != nil {
			return nil, fmt.Errorf("reading renumbered position: %w", err)
		}
	}
	return dedupe(changed), nil
}

func nullablePosition(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

// clearDefault drops the default flag from every row except keep and
// returns the rows that flipped.
func (b *Backend) clearDefault(t *txn, keep string, now int64, record bool) ([]string, error) {
	rows, err := t.query(`SELECT uuid FROM workspaces WHERE is_default = 1 AND uuid <> ?`, keep)
	if err != nil {
		return nil, fmt.Errorf("querying default workspaces: %w", err)
	}
	var flipped []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning default workspace: %w", err)
		}
		flipped = append(flipped, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating default workspaces: %w", err)
	}

	for _, id := range flipped {
		if _, err := t.exec(`UPDATE workspaces SET is_default = 0, updated_at = ? WHERE uuid = ?`, now, id); err != nil {
			return nil, fmt.Errorf("clearing default on %s: %w", id, err)
		}
		if record {
			if err := b.stampWorkspaceChange(t, id, now); err != nil {
				return nil, err
			}
		}
	}
	return flipped, nil
}

// normalizePositions renumbers all rows to (index+1)*PositionStep in
// position order. On a tie, first wins the lower slot. Only rows whose
// position actually moves are stamped and returned.
func (b *Backend) normalizePositions(t *txn, first string, now int64) ([]string, error) {
	rows, err := t.query(`SELECT uuid, "position" FROM workspaces
ORDER BY "position" ASC, CASE WHEN uuid = ? THEN 0 ELSE 1 END, created_at ASC, uuid ASC`, first)
	if err != nil {
		return nil, fmt.Errorf("querying positions: %w", err)
	}
	type slot struct {
		uuid     string
		position int64
	}
	var slots []slot
	for rows.Next() {
		var s slot
		if err := rows.Scan(&s.uuid, &s.position); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		slots = append(slots, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating positions: %w", err)
	}

	var moved []string
	for i, s := range slots {
		want := int64(i+1) * types.PositionStep
		if s.position == want {
			continue
		}
		if _, err := t.exec(`UPDATE workspaces SET "position" = ?, updated_at = ? WHERE uuid = ?`, want, now, s.uuid); err != nil {
			return nil, fmt.Errorf("renumbering %s: %w", s.uuid, err)
		}
		if err := b.stampWorkspaceChange(t, s.uuid, now); err != nil {
			return nil, err
		}
		moved = append(moved, s.uuid)
	}
	return moved, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// RemoveWorkspace deletes uuid and its bookmark associations.
func (wt *workspacesTable) RemoveWorkspace(ctx context.Context, uuid string) error {
	if uuid == "" {
		return types.ErrInvalidID
	}

	b := wt.backend
	var guids []string
	err := b.withTx(ctx, func(t *txn) error {
		now := b.nowMillis()
		var err error
		guids, err = bookmarkGUIDsOf(t, uuid)
		if err != nil {
			return err
		}
		res, err := t.exec(`DELETE FROM workspaces WHERE uuid = ?`, uuid)
		if err != nil {
			return fmt.Errorf("deleting workspace %s: %w", uuid, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return types.ErrNotFound
		}
		// The foreign key cascade removes the rows; the change log still
		// needs a removal entry per association.
		if _, err := t.exec(`DELETE FROM bookmarks_workspaces WHERE workspace_uuid = ?`, uuid); err != nil {
			return fmt.Errorf("deleting associations of %s: %w", uuid, err)
		}
		for _, guid := range guids {
			if err := b.stampBookmarkChange(t, guid, uuid, types.ChangeRemoved, now); err != nil {
				return err
			}
		}
		if err := b.stampWorkspaceChange(t, uuid, now); err != nil {
			return err
		}
		if len(guids) > 0 {
			if _, err := touchLastChange(t, metaBookmarksLastChange, now); err != nil {
				return err
			}
		}
		_, err = touchLastChange(t, metaWorkspacesLastChange, now)
		return err
	})
	if err != nil {
		return err
	}

	b.metrics.Mutation("remove")
	b.logger.Debug("workspace removed", "uuid", uuid, "associations", len(guids))
	b.publish(events.WorkspaceRemoved, []string{uuid})
	if len(guids) > 0 {
		b.publish(events.BookmarksUpdated, []string{uuid})
	}
	return nil
}

// SetDefaultWorkspace makes uuid the only default workspace.
func (wt *workspacesTable) SetDefaultWorkspace(ctx context.Context, uuid string) error {
	if uuid == "" {
		return types.ErrInvalidID
	}

	b := wt.backend
	var changed []string
	err := b.withTx(ctx, func(t *txn) error {
		now := b.nowMillis()
		res, err := t.exec(`UPDATE workspaces SET is_default = 1, updated_at = ? WHERE uuid = ?`, now, uuid)
		if err != nil {
			return fmt.Errorf("setting default on %s: %w", uuid, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return types.ErrNotFound
		}
		flipped, err := b.clearDefault(t, uuid, now, true)
		if err != nil {
			return err
		}
		if err := b.stampWorkspaceChange(t, uuid, now); err != nil {
			return err
		}
		changed = append([]string{uuid}, flipped...)
		_, err = touchLastChange(t, metaWorkspacesLastChange, now)
		return err
	})
	if err != nil {
		return err
	}

	b.metrics.Mutation("set_default")
	b.publish(events.WorkspaceUpdated, changed)
	return nil
}

// UpdateWorkspacePositions assigns (index+1)*PositionStep to each UUID. The
// list must name every stored workspace exactly once; otherwise
// ErrInvalidOrder is returned and nothing changes.
func (wt *workspacesTable) UpdateWorkspacePositions(ctx context.Context, uuids []string) error {
	seen := make(map[string]bool, len(uuids))
	for _, id := range uuids {
		if id == "" {
			return types.ErrInvalidID
		}
		if seen[id] {
			return types.ErrInvalidOrder
		}
		seen[id] = true
	}

	b := wt.backend
	err := b.withTx(ctx, func(t *txn) error {
		var total int
		if err := t.queryRow(`SELECT COUNT(*) FROM workspaces`).Scan(&total); err != nil {
			return fmt.Errorf("counting workspaces: %w", err)
		}
		if total != len(uuids) {
			return types.ErrInvalidOrder
		}

		now := b.nowMillis()
		for i, id := range uuids {
			res, err := t.exec(`UPDATE workspaces SET "position" = ?, updated_at = ? WHERE uuid = ?`,
				int64(i+1)*types.PositionStep, now, id)
			if err != nil {
				return fmt.Errorf("updating position of %s: %w", id, err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return types.ErrInvalidOrder
			}
			if err := b.stampWorkspaceChange(t, id, now); err != nil {
				return err
			}
		}
		_, err := touchLastChange(t, metaWorkspacesLastChange, now)
		return err
	})
	if err != nil {
		return err
	}

	b.metrics.Mutation("reorder")
	b.publish(events.WorkspaceUpdated, append([]string(nil), uuids...))
	return nil
}

// NormalizePositions renumbers every workspace in its current order.
func (wt *workspacesTable) NormalizePositions(ctx context.Context) error {
	b := wt.backend
	var moved []string
	err := b.withTx(ctx, func(t *txn) error {
		now := b.nowMillis()
		var err error
		moved, err = b.normalizePositions(t, "", now)
		if err != nil || len(moved) == 0 {
			return err
		}
		_, err = touchLastChange(t, metaWorkspacesLastChange, now)
		return err
	})
	if err != nil {
		return err
	}
	if len(moved) > 0 {
		b.metrics.Mutation("normalize")
		b.publish(events.WorkspaceUpdated, moved)
	}
	return nil
}

// SaveWorkspaceTheme replaces the theme of uuid.
func (wt *workspacesTable) SaveWorkspaceTheme(ctx context.Context, uuid string, theme types.Theme) error {
	if uuid == "" {
		return types.ErrInvalidID
	}
	args, err := themeArgs(&theme)
	if err != nil {
		return err
	}

	b := wt.backend
	err = b.withTx(ctx, func(t *txn) error {
		now := b.nowMillis()
		res, err := t.exec(`UPDATE workspaces SET theme_type = ?, theme_colors = ?, theme_opacity = ?,
theme_rotation = ?, theme_texture = ?, updated_at = ? WHERE uuid = ?`, append(args, now, uuid)...)
		if err != nil {
			return fmt.Errorf("updating theme of %s: %w", uuid, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return types.ErrNotFound
		}
		if err := b.stampWorkspaceChange(t, uuid, now); err != nil {
			return err
		}
		_, err = touchLastChange(t, metaWorkspacesLastChange, now)
		return err
	})
	if err != nil {
		return err
	}

	b.metrics.Mutation("theme")
	b.publish(events.WorkspaceUpdated, []string{uuid})
	return nil
}

// MarkChanged stamps the change log so the next sync pushes uuid.
func (wt *workspacesTable) MarkChanged(ctx context.Context, uuid string) error {
	if uuid == "" {
		return types.ErrInvalidID
	}
	b := wt.backend
	return b.withTx(ctx, func(t *txn) error {
		return b.stampWorkspaceChange(t, uuid, b.nowMillis())
	})
}

// WipeAllWorkspaces deletes all workspace data, including the change logs
// and the active pointer.
func (wt *workspacesTable) WipeAllWorkspaces(ctx context.Context) error {
	b := wt.backend
	var removed []string
	err := b.withTx(ctx, func(t *txn) error {
		rows, err := t.query(`SELECT uuid FROM workspaces`)
		if err != nil {
			return fmt.Errorf("listing workspaces: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scanning workspace: %w", err)
			}
			removed = append(removed, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating workspaces: %w", err)
		}

		for _, stmt := range []string{
			`DELETE FROM bookmarks_workspaces_changes`,
			`DELETE FROM bookmarks_workspaces`,
			`DELETE FROM workspaces_changes`,
			`DELETE FROM workspaces`,
		} {
			if _, err := t.exec(stmt); err != nil {
				return fmt.Errorf("wiping workspaces: %w", err)
			}
		}
		if err := deleteMeta(t, metaActiveWorkspace); err != nil {
			return err
		}
		now := b.nowMillis()
		if _, err := touchLastChange(t, metaBookmarksLastChange, now); err != nil {
			return err
		}
		_, err = touchLastChange(t, metaWorkspacesLastChange, now)
		return err
	})
	if err != nil {
		return err
	}

	b.metrics.Mutation("wipe")
	b.logger.Info("all workspaces wiped", "count", len(removed))
	b.publish(events.WorkspaceRemoved, removed)
	return nil
}

// GetWorkspaces returns every workspace in display order.
func (wt *workspacesTable) GetWorkspaces(ctx context.Context) ([]types.Workspace, error) {
	var out []types.Workspace
	err := wt.backend.withTx(ctx, func(t *txn) error {
		rows, err := t.query(`SELECT ` + workspaceColumns + ` FROM workspaces ORDER BY "position" ASC, created_at ASC`)
		if err != nil {
			return fmt.Errorf("querying workspaces: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			ws, err := hydrateWorkspace(rows)
			if err != nil {
				return fmt.Errorf("scanning workspace: %w", err)
			}
			out = append(out, ws)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetWorkspace returns one workspace by UUID.
func (wt *workspacesTable) GetWorkspace(ctx context.Context, uuid string) (types.Workspace, error) {
	if uuid == "" {
		return types.Workspace{}, types.ErrInvalidID
	}
	var ws types.Workspace
	err := wt.backend.withTx(ctx, func(t *txn) error {
		var err error
		ws, err = hydrateWorkspace(t.queryRow(`SELECT `+workspaceColumns+` FROM workspaces WHERE uuid = ?`, uuid))
		if errors.Is(err, sql.ErrNoRows) {
			return types.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("getting workspace %s: %w", uuid, err)
		}
		return nil
	})
	return ws, err
}

// GetChangedIDs returns the workspace change log.
func (wt *workspacesTable) GetChangedIDs(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	err := wt.backend.withTx(ctx, func(t *txn) error {
		rows, err := t.query(`SELECT uuid, "timestamp" FROM workspaces_changes`)
		if err != nil {
			return fmt.Errorf("querying workspace changes: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				id string
				ts int64
			)
			if err := rows.Scan(&id, &ts); err != nil {
				return fmt.Errorf("scanning workspace change: %w", err)
			}
			out[id] = ts
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClearChangedIDs empties the workspace change log.
func (wt *workspacesTable) ClearChangedIDs(ctx context.Context) error {
	return wt.backend.withTx(ctx, func(t *txn) error {
		if _, err := t.exec(`DELETE FROM workspaces_changes`); err != nil {
			return fmt.Errorf("clearing workspace changes: %w", err)
		}
		return nil
	})
}

// AcknowledgeChanges drops change rows that were pushed. A row stamped
// again after the push survives.
func (wt *workspacesTable) AcknowledgeChanges(ctx context.Context, acked map[string]int64) error {
	if len(acked) == 0 {
		return nil
	}
	return wt.backend.withTx(ctx, func(t *txn) error {
		for id, ts := range acked {
			if _, err := t.exec(`DELETE FROM workspaces_changes WHERE uuid = ? AND "timestamp" <= ?`, id, ts); err != nil {
				return fmt.Errorf("acknowledging change %s: %w", id, err)
			}
		}
		return nil
	})
}

// GetLastChangeTimestamp returns the workspace last-change marker.
func (wt *workspacesTable) GetLastChangeTimestamp(ctx context.Context) (int64, error) {
	return wt.backend.lastChange(ctx, metaWorkspacesLastChange)
}

// GetActiveWorkspace returns the persisted active pointer.
func (wt *workspacesTable) GetActiveWorkspace(ctx context.Context) (string, error) {
	var id string
	err := wt.backend.withTx(ctx, func(t *txn) error {
		var err error
		id, _, err = getMeta(t, metaActiveWorkspace)
		return err
	})
	return id, err
}

// SetActiveWorkspace persists the active pointer. An empty uuid clears it.
func (wt *workspacesTable) SetActiveWorkspace(ctx context.Context, uuid string) error {
	return wt.backend.withTx(ctx, func(t *txn) error {
		if uuid == "" {
			return deleteMeta(t, metaActiveWorkspace)
		}
		return setMeta(t, metaActiveWorkspace, uuid)
	})
}

// ApplyRemoteWorkspace writes a peer's record. The change log is not
// stamped, so the record is not pushed back.
func (wt *workspacesTable) ApplyRemoteWorkspace(ctx context.Context, ws types.Workspace) error {
	if ws.UUID == "" {
		return types.ErrInvalidID
	}
	if ws.Name == "" {
		return types.ErrInvalidName
	}

	b := wt.backend
	var changed []string
	err := b.withTx(ctx, func(t *txn) error {
		now := b.nowMillis()
		ids, err := b.upsertWorkspace(t, &ws, now, false)
		if err != nil {
			return err
		}
		changed = ids
		_, err = touchLastChange(t, metaWorkspacesLastChange, now)
		return err
	})
	if err != nil {
		return err
	}

	b.metrics.Mutation("remote_save")
	b.publish(events.WorkspaceUpdated, changed)
	return nil
}

// ApplyRemoteRemoval deletes a record removed on a peer. Removing an
// unknown UUID is a no-op.
func (wt *workspacesTable) ApplyRemoteRemoval(ctx context.Context, uuid string) error {
	if uuid == "" {
		return types.ErrInvalidID
	}

	b := wt.backend
	removed := false
	err := b.withTx(ctx, func(t *txn) error {
		if _, err := t.exec(`DELETE FROM bookmarks_workspaces WHERE workspace_uuid = ?`, uuid); err != nil {
			return fmt.Errorf("deleting associations of %s: %w", uuid, err)
		}
		res, err := t.exec(`DELETE FROM workspaces WHERE uuid = ?`, uuid)
		if err != nil {
			return fmt.Errorf("deleting workspace %s: %w", uuid, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil
		}
		removed = true
		if _, err := t.exec(`DELETE FROM workspaces_changes WHERE uuid = ?`, uuid); err != nil {
			return fmt.Errorf("dropping pending change %s: %w", uuid, err)
		}
		now := b.nowMillis()
		if _, err := touchLastChange(t, metaBookmarksLastChange, now); err != nil {
			return err
		}
		_, err = touchLastChange(t, metaWorkspacesLastChange, now)
		return err
	})
	if err != nil || !removed {
		return err
	}

	b.metrics.Mutation("remote_remove")
	b.publish(events.WorkspaceRemoved, []string{uuid})
	return nil
}
