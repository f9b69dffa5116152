// This file implements the bookmark association table accessor and its
// change log.
package sqlite

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/workspaces/internal/events"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// bookmarksTable implements types.BookmarkStore.
type bookmarksTable struct {
	backend *Backend
}

func bookmarkGUIDsOf(t *txn, uuid string) ([]string, error) {
	rows, err := t.query(`SELECT bookmark_guid FROM bookmarks_workspaces WHERE workspace_uuid = ? ORDER BY bookmark_guid`, uuid)
	if err != nil {
		return nil, fmt.Errorf("querying bookmarks of %s: %w", uuid, err)
	}
	defer rows.Close()
	var guids []string
	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			return nil, fmt.Errorf("scanning bookmark: %w", err)
		}
		guids = append(guids, guid)
	}
	return guids, rows.Err()
}

func workspacesOf(t *txn, guid string) ([]string, error) {
	rows, err := t.query(`SELECT workspace_uuid FROM bookmarks_workspaces WHERE bookmark_guid = ?
ORDER BY created_at ASC, workspace_uuid ASC`, guid)
	if err != nil {
		return nil, fmt.Errorf("querying workspaces of bookmark %s: %w", guid, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning workspace: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func workspaceExists(t *txn, uuid string) (bool, error) {
	var n int
	if err := t.queryRow(`SELECT COUNT(*) FROM workspaces WHERE uuid = ?`, uuid).Scan(&n); err != nil {
		return false, fmt.Errorf("checking workspace %s: %w", uuid, err)
	}
	return n > 0, nil
}

func insertAssociation(t *txn, guid, uuid string, now int64) error {
	_, err := t.exec(`INSERT INTO bookmarks_workspaces (bookmark_guid, workspace_uuid, created_at, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (bookmark_guid, workspace_uuid) DO UPDATE SET updated_at = excluded.updated_at`, guid, uuid, now, now)
	if err != nil {
		return fmt.Errorf("adding bookmark %s to %s: %w", guid, uuid, err)
	}
	return nil
}

func deleteAssociation(t *txn, guid, uuid string) (bool, error) {
	res, err := t.exec(`DELETE FROM bookmarks_workspaces WHERE bookmark_guid = ? AND workspace_uuid = ?`, guid, uuid)
	if err != nil {
		return false, fmt.Errorf("removing bookmark %s from %s: %w", guid, uuid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("removing bookmark %s from %s: %w", guid, uuid, err)
	}
	return n > 0, nil
}

// AddBookmarkWorkspace associates a bookmark with a workspace.
func (bt *bookmarksTable) AddBookmarkWorkspace(ctx context.Context, bookmarkGUID, workspaceUUID string) error {
	if bookmarkGUID == "" || workspaceUUID == "" {
		return types.ErrInvalidID
	}

	b := bt.backend
	err := b.withTx(ctx, func(t *txn) error {
		ok, err := workspaceExists(t, workspaceUUID)
		if err != nil {
			return err
		}
		if !ok {
			return types.ErrNotFound
		}
		now := b.nowMillis()
		if err := insertAssociation(t, bookmarkGUID, workspaceUUID, now); err != nil {
			return err
		}
		if err := b.stampBookmarkChange(t, bookmarkGUID, workspaceUUID, types.ChangeAdded, now); err != nil {
			return err
		}
		_, err = touchLastChange(t, metaBookmarksLastChange, now)
		return err
	})
	if err != nil {
		return err
	}

	b.metrics.Mutation("bookmark_add")
	b.publish(events.BookmarksUpdated, []string{workspaceUUID})
	return nil
}

// RemoveBookmarkWorkspace drops one association.
func (bt *bookmarksTable) RemoveBookmarkWorkspace(ctx context.Context, bookmarkGUID, workspaceUUID string) error {
	if bookmarkGUID == "" || workspaceUUID == "" {
		return types.ErrInvalidID
	}

	b := bt.backend
	err := b.withTx(ctx, func(t *txn) error {
		ok, err := deleteAssociation(t, bookmarkGUID, workspaceUUID)
		if err != nil {
			return err
		}
		if !ok {
			return types.ErrNotFound
		}
		now := b.nowMillis()
		if err := b.stampBookmarkChange(t, bookmarkGUID, workspaceUUID, types.ChangeRemoved, now); err != nil {
			return err
		}
		_, err = touchLastChange(t, metaBookmarksLastChange, now)
		return err
	})
	if err != nil {
		return err
	}

	b.metrics.Mutation("bookmark_remove")
	b.publish(events.BookmarksUpdated, []string{workspaceUUID})
	return nil
}

// SetBookmarkWorkspaces replaces the workspace set of a bookmark. Every
// target workspace must exist.
func (bt *bookmarksTable) SetBookmarkWorkspaces(ctx context.Context, bookmarkGUID string, workspaceUUIDs []string) error {
	if bookmarkGUID == "" {
		return types.ErrInvalidID
	}
	want := make(map[string]bool, len(workspaceUUIDs))
	for _, id := range workspaceUUIDs {
		if id == "" {
			return types.ErrInvalidID
		}
		want[id] = true
	}

	b := bt.backend
	var touched []string
	err := b.withTx(ctx, func(t *txn) error {
		current, err := workspacesOf(t, bookmarkGUID)
		if err != nil {
			return err
		}
		have := make(map[string]bool, len(current))
		for _, id := range current {
			have[id] = true
		}

		now := b.nowMillis()
		for _, id := range current {
			if want[id] {
				continue
			}
			if _, err := deleteAssociation(t, bookmarkGUID, id); err != nil {
				return err
			}
			if err := b.stampBookmarkChange(t, bookmarkGUID, id, types.ChangeRemoved, now); err != nil {
				return err
			}
			touched = append(touched, id)
		}
		for _, id := range workspaceUUIDs {
			if have[id] {
				continue
			}
			ok, err := workspaceExists(t, id)
			if err != nil {
				return err
			}
			if !ok {
				return types.ErrNotFound
			}
			if err := insertAssociation(t, bookmarkGUID, id, now); err != nil {
				return err
			}
			if err := b.stampBookmarkChange(t, bookmarkGUID, id, types.ChangeAdded, now); err != nil {
				return err
			}
			have[id] = true
			touched = append(touched, id)
		}
		if len(touched) == 0 {
			return nil
		}
		_, err = touchLastChange(t, metaBookmarksLastChange, now)
		return err
	})
	if err != nil {
		return err
	}
	if len(touched) > 0 {
		b.metrics.Mutation("bookmark_set")
		b.publish(events.BookmarksUpdated, touched)
	}
	return nil
}

// RemoveBookmark drops every association of a deleted bookmark.
func (bt *bookmarksTable) RemoveBookmark(ctx context.Context, bookmarkGUID string) error {
	if bookmarkGUID == "" {
		return types.ErrInvalidID
	}

	b := bt.backend
	var touched []string
	err := b.withTx(ctx, func(t *txn) error {
		current, err := workspacesOf(t, bookmarkGUID)
		if err != nil || len(current) == 0 {
			return err
		}
		if _, err := t.exec(`DELETE FROM bookmarks_workspaces WHERE bookmark_guid = ?`, bookmarkGUID); err != nil {
			return fmt.Errorf("removing bookmark %s: %w", bookmarkGUID, err)
		}
		now := b.nowMillis()
		for _, id := range current {
			if err := b.stampBookmarkChange(t, bookmarkGUID, id, types.ChangeRemoved, now); err != nil {
				return err
			}
		}
		touched = current
		_, err = touchLastChange(t, metaBookmarksLastChange, now)
		return err
	})
	if err != nil {
		return err
	}
	if len(touched) > 0 {
		b.metrics.Mutation("bookmark_remove")
		b.publish(events.BookmarksUpdated, touched)
	}
	return nil
}

// GetBookmarkWorkspaces returns the workspaces a bookmark belongs to.
func (bt *bookmarksTable) GetBookmarkWorkspaces(ctx context.Context, bookmarkGUID string) ([]string, error) {
	if bookmarkGUID == "" {
		return nil, types.ErrInvalidID
	}
	var ids []string
	err := bt.backend.withTx(ctx, func(t *txn) error {
		var err error
		ids, err = workspacesOf(t, bookmarkGUID)
		return err
	})
	return ids, err
}

// GetBookmarkGuidsByWorkspace returns every association grouped by
// workspace.
func (bt *bookmarksTable) GetBookmarkGuidsByWorkspace(ctx context.Context) (map[string][]string, error) {
	out := make(map[string][]string)
	err := bt.backend.withTx(ctx, func(t *txn) error {
		rows, err := t.query(`SELECT workspace_uuid, bookmark_guid FROM bookmarks_workspaces
ORDER BY workspace_uuid ASC, created_at ASC, bookmark_guid ASC`)
		if err != nil {
			return fmt.Errorf("querying bookmark associations: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var uuid, guid string
			if err := rows.Scan(&uuid, &guid); err != nil {
				return fmt.Errorf("scanning bookmark association: %w", err)
			}
			out[uuid] = append(out[uuid], guid)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetChangedIDs returns the association change log keyed by "guid:uuid".
func (bt *bookmarksTable) GetChangedIDs(ctx context.Context) (map[string]types.BookmarkChange, error) {
	out := make(map[string]types.BookmarkChange)
	err := bt.backend.withTx(ctx, func(t *txn) error {
		rows, err := t.query(`SELECT bookmark_guid, workspace_uuid, change_type, "timestamp" FROM bookmarks_workspaces_changes`)
		if err != nil {
			return fmt.Errorf("querying bookmark changes: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				c    types.BookmarkChange
				kind string
			)
			if err := rows.Scan(&c.BookmarkGUID, &c.WorkspaceUUID, &kind, &c.Timestamp); err != nil {
				return fmt.Errorf("scanning bookmark change: %w", err)
			}
			c.Type = types.ChangeType(kind)
			out[c.Key()] = c
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClearChangedIDs empties the association change log.
func (bt *bookmarksTable) ClearChangedIDs(ctx context.Context) error {
	return bt.backend.withTx(ctx, func(t *txn) error {
		if _, err := t.exec(`DELETE FROM bookmarks_workspaces_changes`); err != nil {
			return fmt.Errorf("clearing bookmark changes: %w", err)
		}
		return nil
	})
}

// AcknowledgeChanges drops pushed change rows not stamped since.
func (bt *bookmarksTable) AcknowledgeChanges(ctx context.Context, acked map[string]types.BookmarkChange) error {
	if len(acked) == 0 {
		return nil
	}
	return bt.backend.withTx(ctx, func(t *txn) error {
		for key, c := range acked {
			_, err := t.exec(`DELETE FROM bookmarks_workspaces_changes
WHERE bookmark_guid = ? AND workspace_uuid = ? AND "timestamp" <= ?`, c.BookmarkGUID, c.WorkspaceUUID, c.Timestamp)
			if err != nil {
				return fmt.Errorf("acknowledging bookmark change %s: %w", key, err)
			}
		}
		return nil
	})
}

// GetLastChangeTimestamp returns the association last-change marker.
func (bt *bookmarksTable) GetLastChangeTimestamp(ctx context.Context) (int64, error) {
	return bt.backend.lastChange(ctx, metaBookmarksLastChange)
}

// ApplyRemoteAssociation applies a peer's association change without
// stamping the local change log. An added association for a workspace
// that does not exist locally returns ErrNotFound.
func (bt *bookmarksTable) ApplyRemoteAssociation(ctx context.Context, change types.BookmarkChange) error {
	if change.BookmarkGUID == "" || change.WorkspaceUUID == "" {
		return types.ErrInvalidID
	}

	b := bt.backend
	applied := false
	err := b.withTx(ctx, func(t *txn) error {
		now := b.nowMillis()
		switch change.Type {
		case types.ChangeAdded:
			ok, err := workspaceExists(t, change.WorkspaceUUID)
			if err != nil {
				return err
			}
			if !ok {
				return types.ErrNotFound
			}
			if err := insertAssociation(t, change.BookmarkGUID, change.WorkspaceUUID, now); err != nil {
				return err
			}
			applied = true
		case types.ChangeRemoved:
			ok, err := deleteAssociation(t, change.BookmarkGUID, change.WorkspaceUUID)
			if err != nil {
				return err
			}
			applied = ok
		default:
			return fmt.Errorf("unknown bookmark change type %q", change.Type)
		}
		if !applied {
			return nil
		}
		_, err := touchLastChange(t, metaBookmarksLastChange, now)
		return err
	})
	if err != nil || !applied {
		return err
	}

	b.metrics.Mutation("remote_bookmark")
	b.publish(events.BookmarksUpdated, []string{change.WorkspaceUUID})
	return nil
}
