package types

// Backend is an attachable storage backend. Callers attach with a Config,
// use the two stores, and detach when done.
type Backend interface {
	// Attach opens the backend described by config. Returns
	// ErrAlreadyAttached if already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent. After Detach, store
	// operations return ErrStoreDetached.
	Detach() error

	Workspaces() WorkspaceStore
	Bookmarks() BookmarkStore
}
