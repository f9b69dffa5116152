package types

// ChangeType labels a bookmark association change.
type ChangeType string

// Bookmark association change types.
const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
)

// BookmarkChange is one row of the bookmark association change log.
type BookmarkChange struct {
	BookmarkGUID  string     `json:"bookmarkGuid"`
	WorkspaceUUID string     `json:"workspaceUuid"`
	Type          ChangeType `json:"type"`
	Timestamp     int64      `json:"timestamp"`
}

// Key returns the "guid:uuid" key used by BookmarkStore.GetChangedIDs.
func (c BookmarkChange) Key() string {
	return BookmarkChangeKey(c.BookmarkGUID, c.WorkspaceUUID)
}

// BookmarkChangeKey builds the change-log key for an association.
func BookmarkChangeKey(bookmarkGUID, workspaceUUID string) string {
	return bookmarkGUID + ":" + workspaceUUID
}
