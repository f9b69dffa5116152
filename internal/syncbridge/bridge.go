// Package syncbridge moves workspace records and bookmark associations
// between devices. A Bridge pulls peer records through a Transport,
// applies them last-writer-wins, and pushes the local change logs.
package syncbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mesh-intelligence/workspaces/internal/events"
	"github.com/mesh-intelligence/workspaces/internal/metrics"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// Transport exchanges records with peers.
type Transport interface {
	// Pull returns every record published by other devices.
	Pull(ctx context.Context) ([]Record, error)
	// Push publishes this device's records.
	Push(ctx context.Context, records []Record) error
}

// Publisher is implemented by transports that can read back this device's
// own published records. Its tombstones outrank older peer records for the
// same workspace after the local change log has been acknowledged.
type Publisher interface {
	Published(ctx context.Context) ([]Record, error)
}

// Notifier receives the SyncFinished event.
type Notifier interface {
	Publish(events.Event)
}

// Options configures a Bridge. Workspaces and Transport are required.
type Options struct {
	Workspaces types.WorkspaceStore
	Bookmarks  types.BookmarkStore
	Transport  Transport
	Notifier   Notifier
	DeviceID   string
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Result summarizes one sync cycle.
type Result struct {
	Pulled  int `json:"pulled"`
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Pushed  int `json:"pushed"`
}

// Bridge runs sync cycles. Cycles are serialized.
type Bridge struct {
	mu        sync.Mutex
	store     types.WorkspaceStore
	bookmarks types.BookmarkStore
	transport Transport
	notifier  Notifier
	deviceID  string
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New creates a Bridge.
func New(opts Options) (*Bridge, error) {
	if opts.Workspaces == nil {
		return nil, errors.New("syncbridge: workspace store is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("syncbridge: transport is required")
	}
	b := &Bridge{
		store:     opts.Workspaces,
		bookmarks: opts.Bookmarks,
		transport: opts.Transport,
		notifier:  opts.Notifier,
		deviceID:  opts.DeviceID,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	b.logger = b.logger.With("device_id", b.deviceID)
	if b.metrics == nil {
		b.metrics = metrics.New(nil)
	}
	return b, nil
}

// Sync runs one cycle: pull and apply peer records, push the local change
// logs, acknowledge what was pushed and publish SyncFinished.
func (b *Bridge) Sync(ctx context.Context) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	res, err := b.sync(ctx)
	if err != nil {
		b.metrics.SyncRuns.WithLabelValues(metrics.ResultError).Inc()
		b.logger.Error("sync failed", "error", err)
		return res, err
	}
	b.metrics.SyncRuns.WithLabelValues(metrics.ResultOK).Inc()
	b.metrics.SyncApplied.Add(float64(res.Applied))
	b.logger.Info("sync finished", "pulled", res.Pulled, "applied", res.Applied, "pushed", res.Pushed)
	if b.notifier != nil {
		b.notifier.Publish(events.Event{Kind: events.SyncFinished, Origin: b.deviceID})
	}
	return res, nil
}

func (b *Bridge) sync(ctx context.Context) (Result, error) {
	var res Result

	pulled, err := b.transport.Pull(ctx)
	if err != nil {
		return res, fmt.Errorf("pulling records: %w", err)
	}
	res.Pulled = len(pulled)
	candidates := pulled
	if p, ok := b.transport.(Publisher); ok {
		own, err := p.Published(ctx)
		if err != nil {
			return res, fmt.Errorf("reading published records: %w", err)
		}
		for _, rec := range own {
			if rec.Kind == KindTombstone {
				candidates = append(candidates, rec)
			}
		}
	}
	for _, rec := range latest(candidates) {
		applied, err := b.apply(ctx, rec)
		if err != nil {
			return res, fmt.Errorf("applying %s: %w", rec.Key(), err)
		}
		if applied {
			res.Applied++
		} else {
			res.Skipped++
		}
	}

	out, wsAcked, bmAcked, err := b.collect(ctx)
	if err != nil {
		return res, err
	}
	if len(out) == 0 {
		return res, nil
	}
	if err := b.transport.Push(ctx, out); err != nil {
		return res, fmt.Errorf("pushing records: %w", err)
	}
	res.Pushed = len(out)

	if err := b.store.AcknowledgeChanges(ctx, wsAcked); err != nil {
		return res, fmt.Errorf("acknowledging workspace changes: %w", err)
	}
	if b.bookmarks != nil && len(bmAcked) > 0 {
		if err := b.bookmarks.AcknowledgeChanges(ctx, bmAcked); err != nil {
			return res, fmt.Errorf("acknowledging bookmark changes: %w", err)
		}
	}
	return res, nil
}

// latest keeps the newest record per key, ordered so workspaces are
// applied before the associations that reference them.
func latest(records []Record) []Record {
	byKey := make(map[string]Record, len(records))
	var keys []string
	for _, rec := range records {
		k := rec.Key()
		if k == "" {
			continue
		}
		prev, ok := byKey[k]
		if !ok {
			keys = append(keys, k)
		}
		if !ok || newer(rec, prev) {
			byKey[k] = rec
		}
	}
	slices.Sort(keys)
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		return rank(a) - rank(b)
	})
	return out
}

func rank(r Record) int {
	if r.Kind == KindAssociation {
		return 1
	}
	return 0
}

// apply writes rec when it is newer than the local state. It reports
// whether the store changed.
func (b *Bridge) apply(ctx context.Context, rec Record) (bool, error) {
	switch rec.Kind {
	case KindWorkspace:
		return b.applyWorkspace(ctx, *rec.Workspace)
	case KindTombstone:
		return b.applyTombstone(ctx, rec.UUID, rec.Timestamp)
	case KindAssociation:
		return b.applyAssociation(ctx, *rec.Association)
	}
	return false, nil
}

func (b *Bridge) applyWorkspace(ctx context.Context, remote types.Workspace) (bool, error) {
	local, err := b.store.GetWorkspace(ctx, remote.UUID)
	switch {
	case errors.Is(err, types.ErrNotFound):
		// A pending local removal is a tombstone not yet pushed.
		pending, err := b.store.GetChangedIDs(ctx)
		if err != nil {
			return false, err
		}
		if ts, ok := pending[remote.UUID]; ok && ts >= remote.UpdatedAt {
			return false, nil
		}
	case err != nil:
		return false, err
	case remote.UpdatedAt <= local.UpdatedAt:
		return false, nil
	}
	if err := b.store.ApplyRemoteWorkspace(ctx, remote); err != nil {
		return false, err
	}
	b.logger.Debug("applied remote workspace", "workspace_id", remote.UUID, "updated_at", remote.UpdatedAt)
	return true, nil
}

func (b *Bridge) applyTombstone(ctx context.Context, uuid string, ts int64) (bool, error) {
	local, err := b.store.GetWorkspace(ctx, uuid)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if local.UpdatedAt > ts {
		return false, nil
	}
	if err := b.store.ApplyRemoteRemoval(ctx, uuid); err != nil {
		return false, err
	}
	b.logger.Debug("applied remote removal", "workspace_id", uuid)
	return true, nil
}

func (b *Bridge) applyAssociation(ctx context.Context, change types.BookmarkChange) (bool, error) {
	if b.bookmarks == nil {
		return false, nil
	}
	pending, err := b.bookmarks.GetChangedIDs(ctx)
	if err != nil {
		return false, err
	}
	if mine, ok := pending[change.Key()]; ok && mine.Timestamp > change.Timestamp {
		return false, nil
	}
	current, err := b.bookmarks.GetBookmarkWorkspaces(ctx, change.BookmarkGUID)
	if err != nil {
		return false, err
	}
	present := slices.Contains(current, change.WorkspaceUUID)
	if present == (change.Type == types.ChangeAdded) {
		return false, nil
	}
	err = b.bookmarks.ApplyRemoteAssociation(ctx, change)
	if errors.Is(err, types.ErrNotFound) {
		b.logger.Debug("association for unknown workspace", "workspace_id", change.WorkspaceUUID, "bookmark_guid", change.BookmarkGUID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// collect turns the change logs into records and the maps that
// acknowledge them.
func (b *Bridge) collect(ctx context.Context) ([]Record, map[string]int64, map[string]types.BookmarkChange, error) {
	changed, err := b.store.GetChangedIDs(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading workspace changes: %w", err)
	}
	ids := make([]string, 0, len(changed))
	for id := range changed {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var out []Record
	for _, id := range ids {
		ts := changed[id]
		ws, err := b.store.GetWorkspace(ctx, id)
		switch {
		case errors.Is(err, types.ErrNotFound):
			out = append(out, Record{Kind: KindTombstone, Device: b.deviceID, UUID: id, Timestamp: ts})
		case err != nil:
			return nil, nil, nil, fmt.Errorf("reading workspace %s: %w", id, err)
		default:
			out = append(out, Record{Kind: KindWorkspace, Device: b.deviceID, Workspace: &ws, Timestamp: ts})
		}
	}

	var bmChanged map[string]types.BookmarkChange
	if b.bookmarks != nil {
		if bmChanged, err = b.bookmarks.GetChangedIDs(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("reading bookmark changes: %w", err)
		}
		keys := make([]string, 0, len(bmChanged))
		for k := range bmChanged {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			change := bmChanged[k]
			out = append(out, Record{Kind: KindAssociation, Device: b.deviceID, Association: &change, Timestamp: change.Timestamp})
		}
	}
	return out, changed, bmChanged, nil
}
