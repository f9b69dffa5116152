package syncbridge

import "github.com/mesh-intelligence/workspaces/pkg/types"

// Record kinds.
const (
	KindWorkspace   = "workspace"
	KindTombstone   = "tombstone"
	KindAssociation = "association"
)

// Record is one entry exchanged between devices. Exactly one of Workspace,
// UUID (tombstones) or Association is set, according to Kind.
type Record struct {
	Kind        string                `json:"kind"`
	Device      string                `json:"device,omitempty"`
	Workspace   *types.Workspace      `json:"workspace,omitempty"`
	UUID        string                `json:"uuid,omitempty"`
	Association *types.BookmarkChange `json:"association,omitempty"`
	Timestamp   int64                 `json:"timestamp"`
}

// Key identifies the entity a record describes. Workspace records and
// tombstones for the same UUID share a key.
func (r Record) Key() string {
	switch r.Kind {
	case KindWorkspace:
		if r.Workspace != nil {
			return "ws:" + r.Workspace.UUID
		}
	case KindTombstone:
		return "ws:" + r.UUID
	case KindAssociation:
		if r.Association != nil {
			return "bm:" + r.Association.Key()
		}
	}
	return ""
}

// newer reports whether a supersedes b for the same key.
func newer(a, b Record) bool {
	return a.Timestamp > b.Timestamp
}
