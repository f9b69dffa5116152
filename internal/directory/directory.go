// Package directory implements the per-window workspace directory: the
// cached workspace list, the active workspace, tab visibility and
// selection, and navigation between workspaces.
//
// A Directory never holds its own lock while calling the store, the tab
// host, the event bus or a listener.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/mesh-intelligence/workspaces/internal/clock"
	"github.com/mesh-intelligence/workspaces/internal/events"
	"github.com/mesh-intelligence/workspaces/internal/metrics"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// Bootstrap workspace created when the store is empty.
const (
	DefaultWorkspaceName = "Default Workspace"
	DefaultWorkspaceIcon = "🏠"
)

// Listener is told about every completed switch, in registration order.
// isInit is true for the switch performed by Open.
type Listener func(ctx context.Context, ws types.Workspace, isInit bool) error

// Options configures a Directory. Store and Host are required.
type Options struct {
	Store     types.WorkspaceStore
	Bookmarks types.BookmarkStore
	Host      types.TabHost
	// Bus delivers mutations made by other windows and sync runs.
	Bus *events.Bus
	// WindowID names the window in logs.
	WindowID string
	Settings Settings
	Logger   *slog.Logger
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	// NewID generates workspace UUIDs. Nil uses UUID v7.
	NewID func() string
}

const (
	stateIdle int32 = iota
	stateSwitching
)

// snapshot is one read of the workspace list.
type snapshot struct {
	workspaces []types.Workspace
	lastChange int64
}

// bookmarkSnapshot is one read of the bookmark associations.
type bookmarkSnapshot struct {
	byWorkspace map[string][]string
	lastChange  int64
}

// Directory is the workspace directory of one window.
type Directory struct {
	store     types.WorkspaceStore
	bookmarks types.BookmarkStore
	host      types.TabHost
	bus       *events.Bus
	windowID  string
	settings  Settings
	logger    *slog.Logger
	clock     clock.Clock
	metrics   *metrics.Metrics
	newID     func() string

	state    atomic.Int32
	deleting atomic.Bool

	mu            sync.Mutex
	closed        bool
	active        string
	cache         *snapshot
	bookmarkCache *bookmarkSnapshot
	lastSelected  map[string]types.Tab
	listeners     []listenerEntry
	nextListener  int
	unsubscribe   func()
	nav           navState
}

type listenerEntry struct {
	id int
	fn Listener
}

// New creates a directory. Call Open before using it.
func New(opts Options) (*Directory, error) {
	if opts.Store == nil {
		return nil, errors.New("directory: store is required")
	}
	if opts.Host == nil {
		return nil, errors.New("directory: tab host is required")
	}
	d := &Directory{
		store:        opts.Store,
		bookmarks:    opts.Bookmarks,
		host:         opts.Host,
		bus:          opts.Bus,
		windowID:     opts.WindowID,
		settings:     opts.Settings.withDefaults(),
		logger:       opts.Logger,
		clock:        opts.Clock,
		metrics:      opts.Metrics,
		newID:        opts.NewID,
		lastSelected: make(map[string]types.Tab),
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	d.logger = d.logger.With("window_id", d.windowID)
	if d.clock == nil {
		d.clock = clock.Real()
	}
	if d.metrics == nil {
		d.metrics = metrics.New(nil)
	}
	if d.newID == nil {
		d.newID = newWorkspaceID
	}
	return d, nil
}

// Open loads the persisted state, subscribes to the bus and performs the
// initial switch. On an empty store it creates the default workspace.
func (d *Directory) Open(ctx context.Context) error {
	if err := d.checkOpen(); err != nil {
		return err
	}

	active, err := d.store.GetActiveWorkspace(ctx)
	if err != nil {
		return fmt.Errorf("reading active workspace: %w", err)
	}
	d.mu.Lock()
	d.active = active
	d.mu.Unlock()

	if d.bus != nil {
		unsub := d.bus.Subscribe(d.handleEvent)
		d.mu.Lock()
		d.unsubscribe = unsub
		d.mu.Unlock()
	}

	if _, err := d.Bookmarks(ctx); err != nil {
		d.logger.Warn("loading bookmark associations", "error", err)
	}

	list, err := d.Workspaces(ctx)
	if err != nil {
		return err
	}

	// On an empty store ActiveWorkspace creates the default workspace; the
	// initial switch then claims unassigned tabs without opening one.
	ws, err := d.ActiveWorkspace(ctx)
	if err != nil {
		return err
	}
	if err := d.changeWorkspace(ctx, ws.UUID, true); err != nil {
		return err
	}
	d.logger.Info("directory opened", "workspace_id", ws.UUID, "count", len(list), "bootstrap", len(list) == 0)
	return nil
}

// Close detaches the directory from the bus. Further calls return
// ErrDirectoryClosed. Close is idempotent.
func (d *Directory) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	unsub := d.unsubscribe
	d.unsubscribe = nil
	d.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	return nil
}

func (d *Directory) checkOpen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return types.ErrDirectoryClosed
	}
	return nil
}

// AddListener registers fn and returns a function that removes it.
func (d *Directory) AddListener(fn Listener) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextListener++
	id := d.nextListener
	d.listeners = append(d.listeners, listenerEntry{id: id, fn: fn})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.listeners = slices.DeleteFunc(d.listeners, func(e listenerEntry) bool { return e.id == id })
	}
}

// ActiveID returns the active workspace UUID without touching the store.
func (d *Directory) ActiveID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Workspaces returns the cached workspace list in display order, loading
// it on first use. When the active pointer is unset or dangling, a
// fallback is chosen and persisted.
func (d *Directory) Workspaces(ctx context.Context) ([]types.Workspace, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	if d.cache != nil {
		list := cloneList(d.cache.workspaces)
		d.mu.Unlock()
		return list, nil
	}
	d.mu.Unlock()

	list, err := d.store.GetWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading workspaces: %w", err)
	}
	lastChange, err := d.store.GetLastChangeTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading last change: %w", err)
	}

	d.mu.Lock()
	d.cache = &snapshot{workspaces: list, lastChange: lastChange}
	prev := d.active
	next := prev
	if len(list) > 0 && indexOf(list, prev) < 0 {
		next = fallbackActive(list)
		d.active = next
	}
	out := cloneList(list)
	d.mu.Unlock()

	if next != prev {
		d.logger.Info("active workspace missing, falling back", "missing", prev, "workspace_id", next)
		if err := d.store.SetActiveWorkspace(ctx, next); err != nil {
			d.logger.Warn("persisting fallback workspace", "workspace_id", next, "error", err)
		}
	}
	return out, nil
}

// ActiveWorkspace returns the active workspace. When the store holds no
// workspace at all, a default workspace is created first.
func (d *Directory) ActiveWorkspace(ctx context.Context) (types.Workspace, error) {
	list, err := d.Workspaces(ctx)
	if err != nil {
		return types.Workspace{}, err
	}
	if len(list) == 0 {
		ws := types.Workspace{UUID: d.newID(), Name: DefaultWorkspaceName, Icon: DefaultWorkspaceIcon, Default: true}
		if err := d.store.SaveWorkspace(ctx, &ws); err != nil {
			return types.Workspace{}, fmt.Errorf("creating default workspace: %w", err)
		}
		d.invalidate()
		d.mu.Lock()
		d.active = ws.UUID
		d.mu.Unlock()
		if err := d.store.SetActiveWorkspace(ctx, ws.UUID); err != nil {
			d.logger.Warn("persisting active workspace", "workspace_id", ws.UUID, "error", err)
		}
		return ws, nil
	}
	active := d.ActiveID()
	if i := indexOf(list, active); i >= 0 {
		return list[i], nil
	}
	return list[0], nil
}

// Workspace returns one workspace from the cached list.
func (d *Directory) Workspace(ctx context.Context, uuid string) (types.Workspace, error) {
	list, err := d.Workspaces(ctx)
	if err != nil {
		return types.Workspace{}, err
	}
	i := indexOf(list, uuid)
	if i < 0 {
		return types.Workspace{}, types.ErrNotFound
	}
	return list[i], nil
}

// Bookmarks returns workspace uuid -> bookmark GUIDs, loading the cache on
// first use. Without a bookmark store it returns an empty map.
func (d *Directory) Bookmarks(ctx context.Context) (map[string][]string, error) {
	if d.bookmarks == nil {
		return map[string][]string{}, nil
	}
	d.mu.Lock()
	if d.bookmarkCache != nil {
		m := cloneBookmarks(d.bookmarkCache.byWorkspace)
		d.mu.Unlock()
		return m, nil
	}
	d.mu.Unlock()

	m, err := d.bookmarks.GetBookmarkGuidsByWorkspace(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading bookmark associations: %w", err)
	}
	ts, err := d.bookmarks.GetLastChangeTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading bookmark last change: %w", err)
	}
	d.mu.Lock()
	d.bookmarkCache = &bookmarkSnapshot{byWorkspace: m, lastChange: ts}
	d.mu.Unlock()
	return cloneBookmarks(m), nil
}

func cloneBookmarks(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for ws, guids := range m {
		out[ws] = slices.Clone(guids)
	}
	return out
}

// IsBookmarkInAnotherWorkspace reports whether the bookmark belongs to some
// other workspace and not to the active one. It reads only the cache.
func (d *Directory) IsBookmarkInAnotherWorkspace(guid string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bookmarkCache == nil {
		return false
	}
	inActive, inOther := false, false
	for uuid, guids := range d.bookmarkCache.byWorkspace {
		if !slices.Contains(guids, guid) {
			continue
		}
		if uuid == d.active {
			inActive = true
		} else {
			inOther = true
		}
	}
	return inOther && !inActive
}

// Refresh drops both caches and reloads them. If the active workspace no
// longer exists, the directory switches to the fallback.
func (d *Directory) Refresh(ctx context.Context) error {
	before := d.ActiveID()
	d.invalidate()
	d.invalidateBookmarks()

	if _, err := d.Bookmarks(ctx); err != nil {
		return err
	}
	list, err := d.Workspaces(ctx)
	if err != nil {
		return err
	}
	after := d.ActiveID()
	if after != before && indexOf(list, after) >= 0 {
		return d.changeWorkspace(ctx, after, false)
	}
	return nil
}

// RefreshIfStale refreshes when the store has changed since the cache was
// loaded. It reports whether a refresh happened.
func (d *Directory) RefreshIfStale(ctx context.Context) (bool, error) {
	if err := d.checkOpen(); err != nil {
		return false, err
	}
	ts, err := d.store.GetLastChangeTimestamp(ctx)
	if err != nil {
		return false, fmt.Errorf("reading last change: %w", err)
	}
	var bts int64
	if d.bookmarks != nil {
		if bts, err = d.bookmarks.GetLastChangeTimestamp(ctx); err != nil {
			return false, fmt.Errorf("reading bookmark last change: %w", err)
		}
	}

	d.mu.Lock()
	stale := d.cache == nil || d.cache.lastChange == 0 || ts > d.cache.lastChange
	if d.bookmarks != nil && (d.bookmarkCache == nil || bts > d.bookmarkCache.lastChange) {
		stale = true
	}
	d.mu.Unlock()

	if !stale {
		return false, nil
	}
	return true, d.Refresh(ctx)
}

func (d *Directory) invalidate() {
	d.mu.Lock()
	d.cache = nil
	d.mu.Unlock()
}

func (d *Directory) invalidateBookmarks() {
	d.mu.Lock()
	d.bookmarkCache = nil
	d.mu.Unlock()
}

// handleEvent runs on the publisher's goroutine.
func (d *Directory) handleEvent(ev events.Event) {
	if d.checkOpen() != nil {
		return
	}
	switch ev.Kind {
	case events.WorkspaceUpdated:
		d.invalidate()
	case events.WorkspaceRemoved:
		d.invalidate()
		d.invalidateBookmarks()
		d.mu.Lock()
		for _, id := range ev.WorkspaceIDs {
			delete(d.lastSelected, id)
		}
		activeRemoved := slices.Contains(ev.WorkspaceIDs, d.active)
		d.mu.Unlock()
		if !activeRemoved {
			if _, err := d.Bookmarks(context.Background()); err != nil {
				d.logger.Warn("reloading bookmark associations", "error", err)
			}
			return
		}
		// Another window removed our workspace; move to the fallback.
		if err := d.Refresh(context.Background()); err != nil {
			d.logger.Warn("recovering from removed workspace", "error", err)
		}
	case events.BookmarksUpdated:
		d.invalidateBookmarks()
		if _, err := d.Bookmarks(context.Background()); err != nil {
			d.logger.Warn("reloading bookmark associations", "error", err)
		}
	case events.SyncFinished:
		if _, err := d.RefreshIfStale(context.Background()); err != nil {
			d.logger.Warn("refreshing after sync", "error", err)
		}
	}
}

// fallbackActive picks the default workspace, else the oldest one.
func fallbackActive(list []types.Workspace) string {
	for _, ws := range list {
		if ws.Default {
			return ws.UUID
		}
	}
	oldest := list[0]
	for _, ws := range list[1:] {
		if ws.CreatedAt < oldest.CreatedAt {
			oldest = ws
		}
	}
	return oldest.UUID
}

func indexOf(list []types.Workspace, uuid string) int {
	if uuid == "" {
		return -1
	}
	return slices.IndexFunc(list, func(ws types.Workspace) bool { return ws.UUID == uuid })
}

func cloneList(list []types.Workspace) []types.Workspace {
	out := make([]types.Workspace, len(list))
	for i, ws := range list {
		out[i] = ws.Clone()
	}
	return out
}
