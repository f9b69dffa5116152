package syncbridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/workspaces/pkg/types"
)

func TestNewFileTransport(t *testing.T) {
	tests := []struct {
		name     string
		dir      string
		deviceID string
		wantErr  bool
	}{
		{"valid", "/tmp/share", "laptop", false},
		{"empty dir", "", "laptop", true},
		{"empty device", "/tmp/share", "", true},
		{"device with separator", "/tmp/share", "../laptop", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewFileTransport(tt.dir, tt.deviceID, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(tt.dir, "laptop.jsonl"), tr.OwnFile())
		})
	}
}

func TestFileTransportPushMerges(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tr, err := NewFileTransport(dir, "laptop", nil)
	require.NoError(t, err)

	rec := func(name string, ts int64) Record {
		return Record{Kind: KindWorkspace, Workspace: &types.Workspace{UUID: "w1", Name: name}, Timestamp: ts}
	}
	require.NoError(t, tr.Push(ctx, []Record{rec("first", 10)}))
	require.NoError(t, tr.Push(ctx, []Record{rec("stale", 5)}))
	require.NoError(t, tr.Push(ctx, []Record{{Kind: KindTombstone, UUID: "w2", Timestamp: 3}}))

	peer, err := NewFileTransport(dir, "desktop", nil)
	require.NoError(t, err)
	got, err := peer.Pull(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Workspace.Name, "newest record per entity is kept")
	assert.Equal(t, "w2", got[1].UUID)

	own, err := tr.Pull(ctx)
	require.NoError(t, err)
	assert.Empty(t, own, "a device does not pull its own file")

	published, err := tr.Published(ctx)
	require.NoError(t, err)
	assert.Len(t, published, 2)
	none, err := peer.Published(ctx)
	require.NoError(t, err)
	assert.Empty(t, none, "a device that never pushed has no file")
}

func TestFileTransportPull(t *testing.T) {
	ctx := context.Background()

	t.Run("missing directory", func(t *testing.T) {
		tr, err := NewFileTransport(filepath.Join(t.TempDir(), "absent"), "laptop", nil)
		require.NoError(t, err)
		got, err := tr.Pull(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("skips foreign files and bad lines", func(t *testing.T) {
		dir := t.TempDir()
		content := `{"kind":"tombstone","uuid":"w1","timestamp":4}
not json
{"kind":"tombstone","uuid":"w2","timestamp":"later"}
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "desktop.jsonl"), []byte(content), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".partial.jsonl"), []byte(content), 0o644))
		require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jsonl"), 0o755))

		tr, err := NewFileTransport(dir, "laptop", nil)
		require.NoError(t, err)
		got, err := tr.Pull(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "w1", got[0].UUID)
	})
}
