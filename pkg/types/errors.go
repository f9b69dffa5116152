package types

import "errors"

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Entity errors.
var (
	ErrNotFound     = errors.New("entity not found")
	ErrInvalidID    = errors.New("invalid entity ID")
	ErrInvalidName  = errors.New("invalid name")
	ErrInvalidOrder = errors.New("position list does not match stored workspaces")
)

// Directory precondition and state errors. These are raised before any
// store mutation takes place.
var (
	ErrLastWorkspace            = errors.New("cannot delete the last remaining workspace")
	ErrDefaultWorkspaceRequired = errors.New("operation would leave no default workspace")
	ErrSwitchInProgress         = errors.New("workspace switch already in progress")
	ErrDirectoryClosed          = errors.New("workspace directory is closed")
)
