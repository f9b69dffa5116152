package types

import "context"

// WorkspaceStore persists workspace records, their ordering and the
// workspace change log. Every multi-row mutation runs in one transaction.
type WorkspaceStore interface {
	// SaveWorkspace upserts ws by UUID. When ws.Default is set, the flag is
	// cleared on every other row in the same transaction. A zero Position
	// is replaced with max(position)+PositionStep. Position, CreatedAt and
	// UpdatedAt are written back into ws.
	SaveWorkspace(ctx context.Context, ws *Workspace) error

	// RemoveWorkspace deletes the row, cascades its bookmark associations
	// and stamps a change-log entry under the same UUID.
	RemoveWorkspace(ctx context.Context, uuid string) error

	// SetDefaultWorkspace makes uuid the single default workspace.
	SetDefaultWorkspace(ctx context.Context, uuid string) error

	// UpdateWorkspacePositions renumbers the given UUIDs to (index+1)*1000.
	UpdateWorkspacePositions(ctx context.Context, uuids []string) error

	// NormalizePositions renumbers every workspace by its current order.
	NormalizePositions(ctx context.Context) error

	// SaveWorkspaceTheme updates only the theme of uuid.
	SaveWorkspaceTheme(ctx context.Context, uuid string, theme Theme) error

	// MarkChanged stamps the change log for uuid without touching the row.
	MarkChanged(ctx context.Context, uuid string) error

	// WipeAllWorkspaces removes every workspace, association and change row.
	WipeAllWorkspaces(ctx context.Context) error

	// GetWorkspaces returns all workspaces sorted ascending by position.
	GetWorkspaces(ctx context.Context) ([]Workspace, error)

	// GetWorkspace returns one workspace or ErrNotFound.
	GetWorkspace(ctx context.Context, uuid string) (Workspace, error)

	// GetChangedIDs returns uuid -> timestamp for a sync push.
	GetChangedIDs(ctx context.Context) (map[string]int64, error)

	// ClearChangedIDs empties the change log.
	ClearChangedIDs(ctx context.Context) error

	// AcknowledgeChanges removes change rows whose timestamp is not newer
	// than the acknowledged one.
	AcknowledgeChanges(ctx context.Context, acked map[string]int64) error

	// GetLastChangeTimestamp returns the last-change marker, 0 if unset.
	GetLastChangeTimestamp(ctx context.Context) (int64, error)

	// GetActiveWorkspace returns the persisted active pointer, "" if unset.
	GetActiveWorkspace(ctx context.Context) (string, error)

	// SetActiveWorkspace persists the active pointer.
	SetActiveWorkspace(ctx context.Context, uuid string) error

	// ApplyRemoteWorkspace upserts a record received from a sync peer
	// without recording a local change.
	ApplyRemoteWorkspace(ctx context.Context, ws Workspace) error

	// ApplyRemoteRemoval deletes a record removed on a sync peer without
	// recording a local change.
	ApplyRemoteRemoval(ctx context.Context, uuid string) error
}

// BookmarkStore persists the many-to-many association between bookmarks
// and workspaces, with its own change log.
type BookmarkStore interface {
	AddBookmarkWorkspace(ctx context.Context, bookmarkGUID, workspaceUUID string) error
	RemoveBookmarkWorkspace(ctx context.Context, bookmarkGUID, workspaceUUID string) error

	// SetBookmarkWorkspaces replaces the workspace set of a bookmark.
	SetBookmarkWorkspaces(ctx context.Context, bookmarkGUID string, workspaceUUIDs []string) error

	// RemoveBookmark drops every association of a deleted bookmark.
	RemoveBookmark(ctx context.Context, bookmarkGUID string) error

	GetBookmarkWorkspaces(ctx context.Context, bookmarkGUID string) ([]string, error)

	// GetBookmarkGuidsByWorkspace returns workspace uuid -> bookmark GUIDs.
	GetBookmarkGuidsByWorkspace(ctx context.Context) (map[string][]string, error)

	// GetChangedIDs returns the change log keyed by "guid:uuid".
	GetChangedIDs(ctx context.Context) (map[string]BookmarkChange, error)
	ClearChangedIDs(ctx context.Context) error
	AcknowledgeChanges(ctx context.Context, acked map[string]BookmarkChange) error
	GetLastChangeTimestamp(ctx context.Context) (int64, error)

	// ApplyRemoteAssociation applies an association change received from
	// a sync peer without recording a local change.
	ApplyRemoteAssociation(ctx context.Context, change BookmarkChange) error
}
