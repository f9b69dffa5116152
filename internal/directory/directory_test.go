package directory

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/mesh-intelligence/workspaces/internal/tabstrip"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// fixture is one store and bus shared by any number of windows.
type fixture struct {
	t       *testing.T
	ctx     context.Context
	backend *sqlite.Backend
	bus     *events.Bus
	clock   *clock.FakeClock
	strip   *tabstrip.Strip
	nextID  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fc := clock.Fake(time.UnixMilli(1_700_000_000_000))
	bus := events.NewBus()
	b := sqlite.NewBackend(sqlite.Options{Clock: fc, Notifier: bus})
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })
	return &fixture{t: t, ctx: context.Background(), backend: b, bus: bus, clock: fc, strip: tabstrip.New()}
}

func (f *fixture) newID() string {
	f.nextID++
	return fmt.Sprintf("ws-%d", f.nextID)
}

// seed stores workspaces directly, one clock tick apart.
func (f *fixture) seed(list ...types.Workspace) {
	f.t.Helper()
	for i := range list {
		require.NoError(f.t, f.backend.Workspaces().SaveWorkspace(f.ctx, &list[i]))
		f.clock.Advance(time.Millisecond)
	}
}

func (f *fixture) options(strip types.TabHost, settings Settings) Options {
	return Options{
		Store:     f.backend.Workspaces(),
		Bookmarks: f.backend.Bookmarks(),
		Host:      strip,
		Bus:       f.bus,
		WindowID:  "test",
		Settings:  settings,
		Clock:     f.clock,
		NewID:     f.newID,
	}
}

// open creates and opens a directory over f.strip.
func (f *fixture) open(settings Settings) *Directory {
	f.t.Helper()
	return f.openWith(f.options(f.strip, settings))
}

func (f *fixture) openWith(opts Options) *Directory {
	f.t.Helper()
	d, err := New(opts)
	require.NoError(f.t, err)
	require.NoError(f.t, d.Open(f.ctx))
	f.t.Cleanup(func() { d.Close() })
	return d
}

func testSettings() Settings {
	s := DefaultSettings()
	s.NaturalScroll = false
	s.WrapAroundNavigation = false
	return s
}

func TestNew(t *testing.T) {
	_, err := New(Options{Host: tabstrip.New()})
	assert.Error(t, err)
	_, err = New(Options{Store: newFixture(t).backend.Workspaces()})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name  string
		check func(t *testing.T, f *fixture)
	}{
		{
			name: "empty store bootstraps the default workspace",
			check: func(t *testing.T, f *fixture) {
				tab := f.strip.Add(tabstrip.Options{URL: "https://example.com"})
				d := f.open(testSettings())

				list, err := d.Workspaces(f.ctx)
				require.NoError(t, err)
				require.Len(t, list, 1)
				ws := list[0]
				assert.Equal(t, DefaultWorkspaceName, ws.Name)
				assert.Equal(t, DefaultWorkspaceIcon, ws.Icon)
				assert.True(t, ws.Default)
				assert.Equal(t, int64(1000), ws.Position)
				assert.Equal(t, ws.UUID, d.ActiveID())

				id, _ := tab.WorkspaceID()
				assert.Equal(t, ws.UUID, id, "existing tabs join the bootstrap workspace")
				assert.Len(t, f.strip.All(), 1, "no extra tab when one was bound")

				persisted, err := f.backend.Workspaces().GetActiveWorkspace(f.ctx)
				require.NoError(t, err)
				assert.Equal(t, ws.UUID, persisted)
			},
		},
		{
			name: "bootstrap on an empty strip is an initial load",
			check: func(t *testing.T, f *fixture) {
				d, err := New(f.options(f.strip, testSettings()))
				require.NoError(t, err)
				var inits []bool
				d.AddListener(func(_ context.Context, _ types.Workspace, isInit bool) error {
					inits = append(inits, isInit)
					return nil
				})
				require.NoError(t, d.Open(f.ctx))
				t.Cleanup(func() { d.Close() })

				assert.Empty(t, f.strip.All(), "the initial load never opens a tab")
				assert.Equal(t, []bool{true}, inits)
				ws, err := d.ActiveWorkspace(f.ctx)
				require.NoError(t, err)
				assert.Equal(t, DefaultWorkspaceName, ws.Name)
			},
		},
		{
			name: "persisted active pointer is restored",
			check: func(t *testing.T, f *fixture) {
				f.seed(types.Workspace{UUID: "a", Name: "A", Default: true}, types.Workspace{UUID: "b", Name: "B"})
				require.NoError(t, f.backend.Workspaces().SetActiveWorkspace(f.ctx, "b"))
				f.strip.Add(tabstrip.Options{URL: "b1", WorkspaceID: "b"})

				d := f.open(testSettings())
				assert.Equal(t, "b", d.ActiveID())
			},
		},
		{
			name: "dangling pointer falls back to the default workspace",
			check: func(t *testing.T, f *fixture) {
				f.seed(types.Workspace{UUID: "a", Name: "A"}, types.Workspace{UUID: "b", Name: "B", Default: true})
				require.NoError(t, f.backend.Workspaces().SetActiveWorkspace(f.ctx, "gone"))

				d := f.open(testSettings())
				assert.Equal(t, "b", d.ActiveID())
				persisted, err := f.backend.Workspaces().GetActiveWorkspace(f.ctx)
				require.NoError(t, err)
				assert.Equal(t, "b", persisted)
			},
		},
		{
			name: "without a default the oldest workspace wins",
			check: func(t *testing.T, f *fixture) {
				f.seed(types.Workspace{UUID: "old", Name: "Old", Position: 5000}, types.Workspace{UUID: "new", Name: "New", Position: 1000})

				d := f.open(testSettings())
				assert.Equal(t, "old", d.ActiveID())
			},
		},
		{
			name: "initial switch does not open a tab",
			check: func(t *testing.T, f *fixture) {
				f.seed(types.Workspace{UUID: "a", Name: "A", Default: true})
				f.open(testSettings())
				assert.Empty(t, f.strip.All())
			},
		},
		{
			name: "closed directory rejects calls",
			check: func(t *testing.T, f *fixture) {
				d := f.open(testSettings())
				require.NoError(t, d.Close())
				require.NoError(t, d.Close())
				_, err := d.Workspaces(f.ctx)
				assert.ErrorIs(t, err, types.ErrDirectoryClosed)
				assert.ErrorIs(t, d.ChangeWorkspace(f.ctx, d.ActiveID()), types.ErrDirectoryClosed)
				assert.ErrorIs(t, d.Open(f.ctx), types.ErrDirectoryClosed)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, newFixture(t))
		})
	}
}

func TestActiveWorkspaceSynthesizesDefault(t *testing.T) {
	f := newFixture(t)
	d, err := New(f.options(f.strip, testSettings()))
	require.NoError(t, err)

	ws, err := d.ActiveWorkspace(f.ctx)
	require.NoError(t, err)
	assert.True(t, ws.Default)
	assert.Equal(t, DefaultWorkspaceName, ws.Name)
	assert.Equal(t, ws.UUID, d.ActiveID())
}

// switchScenario seeds A (default) and B with t1 in A selected and t2 in B.
func switchScenario(t *testing.T) (*fixture, *Directory, *tabstrip.Tab, *tabstrip.Tab) {
	f := newFixture(t)
	f.seed(types.Workspace{UUID: "a", Name: "A", Default: true}, types.Workspace{UUID: "b", Name: "B"})
	t1 := f.strip.Add(tabstrip.Options{URL: "t1", WorkspaceID: "a"})
	t2 := f.strip.Add(tabstrip.Options{URL: "t2", WorkspaceID: "b"})
	d := f.open(testSettings())
	require.Equal(t, "a", d.ActiveID())
	return f, d, t1, t2
}

func TestChangeWorkspace(t *testing.T) {
	t.Run("switching restores the last selected tab", func(t *testing.T) {
		f, d, t1, t2 := switchScenario(t)
		assert.False(t, t1.Hidden())
		assert.True(t, t2.Hidden())

		require.NoError(t, d.ChangeWorkspace(f.ctx, "b"))
		assert.Equal(t, "b", d.ActiveID())
		assert.False(t, t2.Hidden())
		assert.Same(t, t2, f.strip.Selected())
		assert.True(t, t1.Hidden())
		assert.Same(t, t1, d.LastSelected("a"))

		require.NoError(t, d.ChangeWorkspace(f.ctx, "a"))
		assert.Same(t, t1, f.strip.Selected())
		assert.False(t, t1.Hidden())
		assert.True(t, t2.Hidden())
	})

	t.Run("switching twice equals switching once", func(t *testing.T) {
		f, d, _, _ := switchScenario(t)
		f.strip.Add(tabstrip.Options{URL: "loose"})

		snapshot := func() string {
			s := fmt.Sprintf("active=%s selected=%v last=%v;", d.ActiveID(), f.strip.Selected(), d.LastSelected("b"))
			for _, tab := range f.strip.All() {
				s += tab.String() + ";"
			}
			return s
		}
		require.NoError(t, d.ChangeWorkspace(f.ctx, "b"))
		once := snapshot()
		require.NoError(t, d.ChangeWorkspace(f.ctx, "b"))
		assert.Equal(t, once, snapshot())
	})

	t.Run("every ordinary tab ends with a workspace", func(t *testing.T) {
		f, d, _, _ := switchScenario(t)
		f.strip.Add(tabstrip.Options{URL: "loose"})
		f.strip.Add(tabstrip.Options{URL: "pinned", Pinned: true})
		f.strip.Add(tabstrip.Options{URL: "essential", Essential: true})

		require.NoError(t, d.ChangeWorkspace(f.ctx, "b"))
		for _, tab := range f.strip.All() {
			if tab.Essential() {
				continue
			}
			_, ok := tab.WorkspaceID()
			assert.True(t, ok, "tab %s has no workspace", tab)
		}
	})

	t.Run("switching to an empty workspace opens a tab", func(t *testing.T) {
		f := newFixture(t)
		f.seed(types.Workspace{UUID: "a", Name: "A", Default: true}, types.Workspace{UUID: "b", Name: "B"})
		f.strip.Add(tabstrip.Options{URL: "a1", WorkspaceID: "a"})
		d := f.open(testSettings())

		require.NoError(t, d.ChangeWorkspace(f.ctx, "b"))
		sel := f.strip.Selected()
		require.NotNil(t, sel)
		id, _ := sel.WorkspaceID()
		assert.Equal(t, "b", id)
		assert.Equal(t, "about:home", sel.URL())
	})

	t.Run("unknown workspace is not found", func(t *testing.T) {
		f, d, _, _ := switchScenario(t)
		assert.ErrorIs(t, d.ChangeWorkspace(f.ctx, "missing"), types.ErrNotFound)
		assert.Equal(t, "a", d.ActiveID())
	})

	t.Run("persists the active pointer", func(t *testing.T) {
		f, d, _, _ := switchScenario(t)
		require.NoError(t, d.ChangeWorkspace(f.ctx, "b"))
		persisted, err := f.backend.Workspaces().GetActiveWorkspace(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, "b", persisted)
	})
}

func TestEssentialVisibility(t *testing.T) {
	tests := []struct {
		name       string
		scoped     bool
		target     string
		wantHidden map[string]bool
	}{
		{name: "unscoped essentials are always visible", scoped: false, target: "b",
			wantHidden: map[string]bool{"e0": false, "e5": false, "e7": false}},
		{name: "container-less workspace hides claimed containers", scoped: true, target: "a",
			wantHidden: map[string]bool{"e0": false, "e5": true, "e7": false}},
		{name: "container workspace shows only its container", scoped: true, target: "b",
			wantHidden: map[string]bool{"e0": true, "e5": false, "e7": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(types.Workspace{UUID: "a", Name: "A", Default: true}, types.Workspace{UUID: "b", Name: "B", ContainerID: 5})
			f.strip.Add(tabstrip.Options{URL: "ta", WorkspaceID: "a"})
			f.strip.Add(tabstrip.Options{URL: "tb", WorkspaceID: "b"})
			essentials := map[string]*tabstrip.Tab{
				"e0": f.strip.Add(tabstrip.Options{URL: "e0", Essential: true, Pinned: true}),
				"e5": f.strip.Add(tabstrip.Options{URL: "e5", Essential: true, Pinned: true, ContainerID: 5}),
				"e7": f.strip.Add(tabstrip.Options{URL: "e7", Essential: true, Pinned: true, ContainerID: 7}),
			}
			settings := testSettings()
			settings.ContainerSpecificEssentials = tt.scoped
			d := f.open(settings)

			require.NoError(t, d.ChangeWorkspace(f.ctx, tt.target))
			for name, tab := range essentials {
				assert.Equal(t, tt.wantHidden[name], tab.Hidden(), name)
				_, ok := tab.WorkspaceID()
				assert.False(t, ok, "essential tabs are never claimed")
			}
		})
	}
}

func TestListeners(t *testing.T) {
	f := newFixture(t)
	f.seed(types.Workspace{UUID: "a", Name: "A", Default: true}, types.Workspace{UUID: "b", Name: "B"})
	d, err := New(f.options(f.strip, testSettings()))
	require.NoError(t, err)

	var calls []string
	d.AddListener(func(_ context.Context, ws types.Workspace, isInit bool) error {
		calls = append(calls, fmt.Sprintf("first:%s:%v", ws.UUID, isInit))
		return errors.New("listener errors are logged only")
	})
	remove := d.AddListener(func(_ context.Context, ws types.Workspace, isInit bool) error {
		calls = append(calls, fmt.Sprintf("second:%s:%v", ws.UUID, isInit))
		return nil
	})
	require.NoError(t, d.Open(f.ctx))
	defer d.Close()
	require.NoError(t, d.ChangeWorkspace(f.ctx, "b"))
	remove()
	require.NoError(t, d.ChangeWorkspace(f.ctx, "a"))

	assert.Equal(t, []string{
		"first:a:true", "second:a:true",
		"first:b:false", "second:b:false",
		"first:a:false",
	}, calls)
}

func TestConcurrentSwitchIsDropped(t *testing.T) {
	f := newFixture(t)
	f.seed(types.Workspace{UUID: "a", Name: "A", Default: true}, types.Workspace{UUID: "b", Name: "B"})
	m := metrics.New(prometheus.NewRegistry())
	opts := f.options(f.strip, testSettings())
	opts.Metrics = m
	d := f.openWith(opts)

	var inner error
	d.AddListener(func(ctx context.Context, ws types.Workspace, _ bool) error {
		assert.True(t, d.Switching())
		inner = d.ChangeWorkspace(ctx, "a")
		return nil
	})
	require.NoError(t, d.ChangeWorkspace(f.ctx, "b"))

	assert.ErrorIs(t, inner, types.ErrSwitchInProgress)
	assert.Equal(t, "b", d.ActiveID())
	assert.False(t, d.Switching())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Switches.WithLabelValues(metrics.ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Switches.WithLabelValues(metrics.ResultBusy)))
}

// panicHost panics when asked to hide a tab.
type panicHost struct {
	*tabstrip.Strip
}

func (panicHost) HideTab(types.Tab) { panic("hide failed") }

func TestVisibilityAnomalyShowsAllTabs(t *testing.T) {
	f := newFixture(t)
	f.seed(types.Workspace{UUID: "a", Name: "A", Default: true}, types.Workspace{UUID: "b", Name: "B"})
	t1 := f.strip.Add(tabstrip.Options{URL: "t1", WorkspaceID: "a"})
	t2 := f.strip.Add(tabstrip.Options{URL: "t2", WorkspaceID: "b"})
	d := f.openWith(f.options(panicHost{f.strip}, testSettings()))

	require.NoError(t, d.ChangeWorkspace(f.ctx, "b"))
	assert.False(t, t1.Hidden())
	assert.False(t, t2.Hidden())
	assert.Equal(t, "b", d.ActiveID())
}

// failingStore fails selected writes.
type failingStore struct {
	types.WorkspaceStore
	failSave   bool
	failActive bool
}

var errBoom = errors.New("disk on fire")

func (s *failingStore) SaveWorkspace(ctx context.Context, ws *types.Workspace) error {
	if s.failSave {
		return errBoom
	}
	return s.WorkspaceStore.SaveWorkspace(ctx, ws)
}

func (s *failingStore) SetActiveWorkspace(ctx context.Context, uuid string) error {
	if s.failActive {
		return errBoom
	}
	return s.WorkspaceStore.SetActiveWorkspace(ctx, uuid)
}

func TestPersistenceFailures(t *testing.T) {
	t.Run("failed save leaves the cache untouched", func(t *testing.T) {
		f := newFixture(t)
		f.seed(types.Workspace{UUID: "a", Name: "A", Default: true})
		store := &failingStore{WorkspaceStore: f.backend.Workspaces()}
		opts := f.options(f.strip, testSettings())
		opts.Store = store
		d := f.openWith(opts)

		store.failSave = true
		assert.ErrorIs(t, d.RenameWorkspace(f.ctx, "a", "Renamed"), errBoom)
		ws, err := d.Workspace(f.ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "A", ws.Name)
	})

	t.Run("failed pointer write still completes the switch", func(t *testing.T) {
		f := newFixture(t)
		f.seed(types.Workspace{UUID: "a", Name: "A", Default: true}, types.Workspace{UUID: "b", Name: "B"})
		store := &failingStore{WorkspaceStore: f.backend.Workspaces()}
		opts := f.options(f.strip, testSettings())
		opts.Store = store
		d := f.openWith(opts)

		store.failActive = true
		assert.ErrorIs(t, d.ChangeWorkspace(f.ctx, "b"), errBoom)
		assert.Equal(t, "b", d.ActiveID())
	})
}

func TestCrossWindowUpdates(t *testing.T) {
	f := newFixture(t)
	f.seed(types.Workspace{UUID: "a", Name: "A", Default: true}, types.Workspace{UUID: "b", Name: "B"})
	w1 := f.open(testSettings())
	strip2 := tabstrip.New()
	b2 := strip2.Add(tabstrip.Options{URL: "b2", WorkspaceID: "b"})
	w2 := f.openWith(f.options(strip2, testSettings()))
	require.NoError(t, w2.ChangeWorkspace(f.ctx, "b"))

	_, err := w1.CreateWorkspace(f.ctx, "C", "")
	require.NoError(t, err)
	list, err := w2.Workspaces(f.ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3, "other windows see the new workspace")

	require.NoError(t, w1.ChangeWorkspace(f.ctx, "a"))
	require.NoError(t, w1.DeleteWorkspace(f.ctx, "b"))
	assert.Equal(t, "a", w2.ActiveID(), "window whose workspace vanished falls back")
	assert.True(t, b2.Hidden())
}

func TestRefreshIfStale(t *testing.T) {
	f := newFixture(t)
	f.seed(types.Workspace{UUID: "a", Name: "A", Default: true})
	opts := f.options(f.strip, testSettings())
	opts.Bus = nil
	d := f.openWith(opts)

	refreshed, err := d.RefreshIfStale(f.ctx)
	require.NoError(t, err)
	assert.False(t, refreshed)

	f.clock.Advance(time.Second)
	require.NoError(t, f.backend.Workspaces().ApplyRemoteWorkspace(f.ctx, types.Workspace{UUID: "r", Name: "Remote", UpdatedAt: 1}))
	list, err := d.Workspaces(f.ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1, "cache is stale without a bus")

	refreshed, err = d.RefreshIfStale(f.ctx)
	require.NoError(t, err)
	assert.True(t, refreshed)
	list, err = d.Workspaces(f.ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSyncFinishedEventRefreshes(t *testing.T) {
	f := newFixture(t)
	f.seed(types.Workspace{UUID: "a", Name: "A", Default: true})
	d := f.open(testSettings())
	_, err := d.Workspaces(f.ctx)
	require.NoError(t, err)

	// A write that bypasses the bus, as a second process would.
	other := sqlite.NewBackend(sqlite.Options{Clock: f.clock})
	require.NoError(t, other.Attach(f.backend.Config()))
	defer other.Detach()
	f.clock.Advance(time.Second)
	require.NoError(t, other.Workspaces().SaveWorkspace(f.ctx, &types.Workspace{UUID: "x", Name: "X"}))

	f.bus.Publish(events.Event{Kind: events.SyncFinished})
	list, err := d.Workspaces(f.ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
