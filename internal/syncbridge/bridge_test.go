package syncbridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/workspaces/internal/clock"
	"github.com/mesh-intelligence/workspaces/internal/events"
	"github.com/mesh-intelligence/workspaces/internal/metrics"
	"github.com/mesh-intelligence/workspaces/internal/sqlite"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

var epoch = time.UnixMilli(1_700_000_000_000)

// device is one store with its bridge onto a shared directory.
type device struct {
	backend *sqlite.Backend
	bridge  *Bridge
	clock   *clock.FakeClock
	metrics *metrics.Metrics
	events  *[]events.Event
}

func newDevice(t *testing.T, id, syncDir string) *device {
	t.Helper()
	fc := clock.Fake(epoch)
	bus := events.NewBus()
	var got []events.Event
	bus.Subscribe(func(ev events.Event) { got = append(got, ev) })

	b := sqlite.NewBackend(sqlite.Options{Clock: fc, Notifier: bus, Origin: id})
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })

	transport, err := NewFileTransport(syncDir, id, nil)
	require.NoError(t, err)
	m := metrics.New(prometheus.NewRegistry())
	bridge, err := New(Options{
		Workspaces: b.Workspaces(),
		Bookmarks:  b.Bookmarks(),
		Transport:  transport,
		Notifier:   bus,
		DeviceID:   id,
		Metrics:    m,
	})
	require.NoError(t, err)
	return &device{backend: b, bridge: bridge, clock: fc, metrics: m, events: &got}
}

func (d *device) sync(t *testing.T) Result {
	t.Helper()
	res, err := d.bridge.Sync(context.Background())
	require.NoError(t, err)
	return res
}

func (d *device) save(t *testing.T, ws types.Workspace) {
	t.Helper()
	d.clock.Advance(time.Second)
	require.NoError(t, d.backend.Workspaces().SaveWorkspace(context.Background(), &ws))
}

func (d *device) get(t *testing.T, uuid string) (types.Workspace, error) {
	t.Helper()
	return d.backend.Workspaces().GetWorkspace(context.Background(), uuid)
}

func TestNew(t *testing.T) {
	_, err := New(Options{Transport: &memTransport{}})
	assert.Error(t, err)
	b := sqlite.NewBackend(sqlite.Options{})
	_, err = New(Options{Workspaces: b.Workspaces()})
	assert.Error(t, err)
}

func TestSyncPropagatesWorkspaces(t *testing.T) {
	dir := t.TempDir()
	a := newDevice(t, "laptop", dir)
	b := newDevice(t, "desktop", dir)
	ctx := context.Background()

	a.save(t, types.Workspace{UUID: "w1", Name: "Work", Icon: "💼"})
	res := a.sync(t)
	assert.Equal(t, 1, res.Pushed)

	changed, err := a.backend.Workspaces().GetChangedIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, changed, "pushed changes are acknowledged")

	res = b.sync(t)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 0, res.Pushed, "applied records are not echoed")
	got, err := b.get(t, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Work", got.Name)
	local, err := a.get(t, "w1")
	require.NoError(t, err)
	assert.Equal(t, local.UpdatedAt, got.UpdatedAt, "remote timestamp is kept")

	res = b.sync(t)
	assert.Equal(t, 0, res.Applied, "second pull is a no-op")
	assert.Equal(t, 1, res.Skipped)
}

func TestSyncLastWriterWins(t *testing.T) {
	dir := t.TempDir()
	a := newDevice(t, "laptop", dir)
	b := newDevice(t, "desktop", dir)

	a.save(t, types.Workspace{UUID: "w1", Name: "Work"})
	a.sync(t)
	b.sync(t)

	// b edits later than a.
	a.save(t, types.Workspace{UUID: "w1", Name: "From laptop"})
	b.clock.Advance(time.Minute)
	b.save(t, types.Workspace{UUID: "w1", Name: "From desktop"})

	a.sync(t)
	b.sync(t)
	a.sync(t)

	for _, d := range []*device{a, b} {
		got, err := d.get(t, "w1")
		require.NoError(t, err)
		assert.Equal(t, "From desktop", got.Name)
	}
}

func TestSyncTombstones(t *testing.T) {
	ctx := context.Background()

	t.Run("removal propagates", func(t *testing.T) {
		dir := t.TempDir()
		a := newDevice(t, "laptop", dir)
		b := newDevice(t, "desktop", dir)
		a.save(t, types.Workspace{UUID: "w1", Name: "Work"})
		a.save(t, types.Workspace{UUID: "w2", Name: "Home"})
		a.sync(t)
		b.sync(t)

		a.clock.Advance(time.Second)
		require.NoError(t, a.backend.Workspaces().RemoveWorkspace(ctx, "w1"))
		a.sync(t)
		res := b.sync(t)
		assert.Equal(t, 1, res.Applied)

		_, err := b.get(t, "w1")
		assert.ErrorIs(t, err, types.ErrNotFound)
		_, err = b.get(t, "w2")
		assert.NoError(t, err)
	})

	t.Run("removal on a receiving device propagates back", func(t *testing.T) {
		dir := t.TempDir()
		a := newDevice(t, "laptop", dir)
		b := newDevice(t, "desktop", dir)
		a.save(t, types.Workspace{UUID: "w1", Name: "Work"})
		a.save(t, types.Workspace{UUID: "w2", Name: "Home"})
		a.sync(t)
		b.sync(t)

		b.clock.Advance(time.Hour)
		require.NoError(t, b.backend.Workspaces().RemoveWorkspace(ctx, "w1"))
		res := b.sync(t)
		assert.Equal(t, 0, res.Applied, "the peer's older record does not undo the removal")
		assert.Equal(t, 1, res.Pushed)
		_, err := b.get(t, "w1")
		assert.ErrorIs(t, err, types.ErrNotFound)

		res = b.sync(t)
		assert.Equal(t, 0, res.Applied, "the published tombstone still wins once acknowledged")
		_, err = b.get(t, "w1")
		assert.ErrorIs(t, err, types.ErrNotFound)

		a.sync(t)
		_, err = a.get(t, "w1")
		assert.ErrorIs(t, err, types.ErrNotFound)
		_, err = a.get(t, "w2")
		assert.NoError(t, err)
	})

	t.Run("newer local edit survives an older removal", func(t *testing.T) {
		dir := t.TempDir()
		a := newDevice(t, "laptop", dir)
		b := newDevice(t, "desktop", dir)
		a.save(t, types.Workspace{UUID: "w1", Name: "Work"})
		a.sync(t)
		b.sync(t)

		a.clock.Advance(time.Second)
		require.NoError(t, a.backend.Workspaces().RemoveWorkspace(ctx, "w1"))
		b.clock.Advance(time.Hour)
		b.save(t, types.Workspace{UUID: "w1", Name: "Still here"})

		a.sync(t)
		b.sync(t)
		got, err := b.get(t, "w1")
		require.NoError(t, err)
		assert.Equal(t, "Still here", got.Name)

		a.sync(t)
		got, err = a.get(t, "w1")
		require.NoError(t, err, "the newer edit resurrects the workspace")
		assert.Equal(t, "Still here", got.Name)
	})
}

func TestSyncAssociations(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := newDevice(t, "laptop", dir)
	b := newDevice(t, "desktop", dir)
	a.save(t, types.Workspace{UUID: "w1", Name: "Work"})
	a.clock.Advance(time.Second)
	require.NoError(t, a.backend.Bookmarks().AddBookmarkWorkspace(ctx, "bm1", "w1"))
	require.NoError(t, a.backend.Bookmarks().AddBookmarkWorkspace(ctx, "bm2", "w1"))

	res := a.sync(t)
	assert.Equal(t, 3, res.Pushed)
	pending, err := a.backend.Bookmarks().GetChangedIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	res = b.sync(t)
	assert.Equal(t, 3, res.Applied, "workspace applied before its associations")
	got, err := b.backend.Bookmarks().GetBookmarkGuidsByWorkspace(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bm1", "bm2"}, got["w1"])

	a.clock.Advance(time.Second)
	require.NoError(t, a.backend.Bookmarks().RemoveBookmarkWorkspace(ctx, "bm1", "w1"))
	a.sync(t)
	b.sync(t)
	guids, err := b.backend.Bookmarks().GetBookmarkWorkspaces(ctx, "bm1")
	require.NoError(t, err)
	assert.Empty(t, guids)
}

func TestSyncPublishesAndCounts(t *testing.T) {
	dir := t.TempDir()
	a := newDevice(t, "laptop", dir)
	b := newDevice(t, "desktop", dir)
	a.save(t, types.Workspace{UUID: "w1", Name: "Work"})
	a.sync(t)
	b.sync(t)

	last := (*b.events)[len(*b.events)-1]
	assert.Equal(t, events.SyncFinished, last.Kind)
	assert.Equal(t, "desktop", last.Origin)
	assert.Equal(t, 1.0, testutil.ToFloat64(b.metrics.SyncRuns.WithLabelValues(metrics.ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.metrics.SyncApplied))
}

// memTransport is an in-memory Transport.
type memTransport struct {
	pull    []Record
	pushed  []Record
	pullErr error
	pushErr error
}

func (m *memTransport) Pull(context.Context) ([]Record, error) { return m.pull, m.pullErr }

func (m *memTransport) Push(_ context.Context, recs []Record) error {
	if m.pushErr != nil {
		return m.pushErr
	}
	m.pushed = append(m.pushed, recs...)
	return nil
}

func TestSyncTransportFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("share offline")

	tests := []struct {
		name      string
		transport *memTransport
	}{
		{"pull", &memTransport{pullErr: boom}},
		{"push", &memTransport{pushErr: boom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := clock.Fake(epoch)
			backend := sqlite.NewBackend(sqlite.Options{Clock: fc})
			require.NoError(t, backend.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
			defer backend.Detach()
			ws := types.Workspace{UUID: "w1", Name: "Work"}
			require.NoError(t, backend.Workspaces().SaveWorkspace(ctx, &ws))

			m := metrics.New(prometheus.NewRegistry())
			bridge, err := New(Options{Workspaces: backend.Workspaces(), Transport: tt.transport, Metrics: m})
			require.NoError(t, err)

			_, err = bridge.Sync(ctx)
			assert.ErrorIs(t, err, boom)
			changed, err := backend.Workspaces().GetChangedIDs(ctx)
			require.NoError(t, err)
			assert.Contains(t, changed, "w1", "unpushed changes stay pending")
			assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRuns.WithLabelValues(metrics.ResultError)))
		})
	}
}

func TestLatest(t *testing.T) {
	ws := func(uuid string, ts int64) Record {
		return Record{Kind: KindWorkspace, Workspace: &types.Workspace{UUID: uuid, Name: uuid, UpdatedAt: ts}, Timestamp: ts}
	}
	assoc := Record{Kind: KindAssociation, Association: &types.BookmarkChange{
		BookmarkGUID: "bm", WorkspaceUUID: "b", Type: types.ChangeAdded, Timestamp: 1,
	}, Timestamp: 1}

	got := latest([]Record{
		assoc,
		ws("b", 5),
		{Kind: KindTombstone, UUID: "b", Timestamp: 9},
		ws("a", 3),
		ws("b", 7),
		{Kind: KindWorkspace},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Workspace.UUID)
	assert.Equal(t, KindTombstone, got[1].Kind)
	assert.Equal(t, KindAssociation, got[2].Kind)
}
