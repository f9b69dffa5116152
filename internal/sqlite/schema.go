// Package sqlite implements the transactional workspace store over
// database/sql. SQLite (modernc.org/sqlite) is the default engine; the same
// schema and queries also run on Postgres through pgx.
package sqlite

// Schema DDL. Column types are chosen so one statement works on both
// engines: BIGINT maps to INTEGER affinity and DOUBLE PRECISION to REAL
// affinity in SQLite.
const (
	createWorkspaces = `CREATE TABLE IF NOT EXISTS workspaces (
    uuid TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    icon TEXT,
    is_default INTEGER NOT NULL DEFAULT 0,
    container_id BIGINT,
    "position" BIGINT NOT NULL DEFAULT 0,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    theme_type TEXT,
    theme_colors TEXT,
    theme_opacity DOUBLE PRECISION,
    theme_rotation BIGINT,
    theme_texture DOUBLE PRECISION
);`

	createWorkspacesChanges = `CREATE TABLE IF NOT EXISTS workspaces_changes (
    uuid TEXT PRIMARY KEY,
    "timestamp" BIGINT NOT NULL
);`

	createBookmarksWorkspaces = `CREATE TABLE IF NOT EXISTS bookmarks_workspaces (
    bookmark_guid TEXT NOT NULL,
    workspace_uuid TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    UNIQUE (bookmark_guid, workspace_uuid),
    FOREIGN KEY (workspace_uuid) REFERENCES workspaces(uuid) ON DELETE CASCADE
);`

	// The change log has no foreign key: removal rows must outlive the
	// workspace they describe.
	createBookmarksWorkspacesChanges = `CREATE TABLE IF NOT EXISTS bookmarks_workspaces_changes (
    bookmark_guid TEXT NOT NULL,
    workspace_uuid TEXT NOT NULL,
    change_type TEXT NOT NULL,
    "timestamp" BIGINT NOT NULL,
    UNIQUE (bookmark_guid, workspace_uuid)
);`

	createMeta = `CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`
)

// Index DDL.
const (
	idxWorkspacesPosition  = `CREATE INDEX IF NOT EXISTS idx_workspaces_position ON workspaces("position");`
	idxBookmarksWorkspaces = `CREATE INDEX IF NOT EXISTS idx_bookmarks_workspaces_lookup ON bookmarks_workspaces(workspace_uuid, bookmark_guid);`
	idxBookmarksByGUID     = `CREATE INDEX IF NOT EXISTS idx_bookmarks_workspaces_guid ON bookmarks_workspaces(bookmark_guid);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order: the
// bookmark association tables reference workspaces and come after them.
var schemaDDL = []string{
	createWorkspaces,
	createWorkspacesChanges,
	createMeta,
	createBookmarksWorkspaces,
	createBookmarksWorkspacesChanges,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxWorkspacesPosition,
	idxBookmarksWorkspaces,
	idxBookmarksByGUID,
}

// Meta keys.
const (
	metaWorkspacesLastChange = "workspaces_last_change"
	metaBookmarksLastChange  = "bookmarks_workspaces_last_change"
	metaActiveWorkspace      = "workspaces_active"
)
