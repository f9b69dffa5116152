package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "modernc.org/sqlite"             // registers the "sqlite" database/sql driver

	"github.com/mesh-intelligence/workspaces/internal/clock"
	"github.com/mesh-intelligence/workspaces/internal/events"
	"github.com/mesh-intelligence/workspaces/internal/metrics"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// DatabaseFile is the SQLite file created inside Config.DataDir.
const DatabaseFile = "workspaces.db"

// sqlitePragmas are applied to every SQLite connection.
const sqlitePragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Notifier receives an event after every committed mutation.
type Notifier interface {
	Publish(events.Event)
}

// Options configures a Backend. The zero value is usable.
type Options struct {
	// Logger receives operational messages. Nil discards them.
	Logger *slog.Logger
	// Clock stamps records and change-log rows. Nil uses the real clock.
	Clock clock.Clock
	// Notifier is told about every committed mutation. Optional.
	Notifier Notifier
	// Metrics counts committed mutations. Nil uses unregistered collectors.
	Metrics *metrics.Metrics
	// Origin tags published events.
	Origin string
}

// Backend is the workspace store. It owns one database handle and exposes
// the workspace and bookmark association stores over it.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	dialect  dialect
	db       *sql.DB

	logger   *slog.Logger
	clock    clock.Clock
	notifier Notifier
	metrics  *metrics.Metrics
	origin   string

	workspaces *workspacesTable
	bookmarks  *bookmarksTable
}

// Compile-time interface checks.
var (
	_ types.Backend        = (*Backend)(nil)
	_ types.WorkspaceStore = (*workspacesTable)(nil)
	_ types.BookmarkStore  = (*bookmarksTable)(nil)
)

// NewBackend creates a detached backend. Call Attach to open the database.
func NewBackend(opts Options) *Backend {
	b := &Backend{
		logger:   opts.Logger,
		clock:    opts.Clock,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		origin:   opts.Origin,
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	if b.clock == nil {
		b.clock = clock.Real()
	}
	if b.metrics == nil {
		b.metrics = metrics.New(nil)
	}
	b.workspaces = &workspacesTable{backend: b}
	b.bookmarks = &bookmarksTable{backend: b}
	return b
}

// Workspaces returns the workspace store. Its operations return
// ErrStoreDetached while the backend is detached.
func (b *Backend) Workspaces() types.WorkspaceStore {
	return b.workspaces
}

// Bookmarks returns the bookmark association store.
func (b *Backend) Bookmarks() types.BookmarkStore {
	return b.bookmarks
}

// Attach opens the database described by config and creates the schema
// if needed. Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	d, err := dialectFor(config.Backend)
	if err != nil {
		return err
	}

	ctx := context.Background()
	db, err := openDatabase(ctx, d, config)
	if err != nil {
		return err
	}
	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return err
	}

	b.db = db
	b.dialect = d
	b.config = config
	b.attached = true

	b.logger.Info("workspace store attached",
		"backend", config.Backend,
		"data_dir", config.DataDir,
	)
	return nil
}

// Detach closes the database. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	db := b.db
	b.db = nil
	if err := db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	b.logger.Info("workspace store detached", "backend", b.config.Backend)
	return nil
}

// Config returns the configuration the backend was attached with.
func (b *Backend) Config() types.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config
}

func openDatabase(ctx context.Context, d dialect, config types.Config) (*sql.DB, error) {
	switch d.name {
	case types.BackendPostgres:
		db, err := sql.Open(d.driver, config.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return db, nil
	default:
		dataDir := config.DataDir
		if dataDir == "" {
			dataDir = "."
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		db, err := sql.Open(d.driver, filepath.Join(dataDir, DatabaseFile)+sqlitePragmas)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// SQLite serializes writers anyway; one connection keeps
		// transactions from tripping over SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		return db, nil
	}
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	for _, stmt := range indexDDL {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

// txn wraps a transaction and rebinds placeholders for the dialect.
type txn struct {
	ctx context.Context
	tx  *sql.Tx
	d   dialect
}

func (t *txn) exec(query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(t.ctx, t.d.rebind(query), args...)
}

func (t *txn) query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(t.ctx, t.d.rebind(query), args...)
}

func (t *txn) queryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(t.ctx, t.d.rebind(query), args...)
}

// withTx runs fn inside one transaction. Reads go through withTx as well so
// they see a consistent snapshot.
func (b *Backend) withTx(ctx context.Context, fn func(t *txn) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrStoreDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txn{ctx: ctx, tx: tx, d: b.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// nowMillis returns the clock time in epoch milliseconds.
func (b *Backend) nowMillis() int64 {
	return b.clock.Now().UnixMilli()
}

// publish notifies the notifier, if any, after a commit.
func (b *Backend) publish(kind events.Kind, ids []string) {
	if b.notifier == nil {
		return
	}
	b.notifier.Publish(events.Event{Kind: kind, WorkspaceIDs: ids, Origin: b.origin})
}

// stampWorkspaceChange upserts a change-log row for uuid. The stored
// timestamp never decreases.
func (b *Backend) stampWorkspaceChange(t *txn, uuid string, ts int64) error {
	_, err := t.exec(fmt.Sprintf(
		`INSERT INTO workspaces_changes (uuid, "timestamp") VALUES (?, ?)
ON CONFLICT (uuid) DO UPDATE SET "timestamp" = %s(excluded."timestamp", workspaces_changes."timestamp")`,
		t.d.greatest), uuid, ts)
	if err != nil {
		return fmt.Errorf("recording change for %s: %w", uuid, err)
	}
	return nil
}

// stampBookmarkChange upserts a change-log row for one association.
func (b *Backend) stampBookmarkChange(t *txn, guid, uuid string, kind types.ChangeType, ts int64) error {
	_, err := t.exec(fmt.Sprintf(
		`INSERT INTO bookmarks_workspaces_changes (bookmark_guid, workspace_uuid, change_type, "timestamp") VALUES (?, ?, ?, ?)
ON CONFLICT (bookmark_guid, workspace_uuid) DO UPDATE SET change_type = excluded.change_type,
"timestamp" = %s(excluded."timestamp", bookmarks_workspaces_changes."timestamp")`,
		t.d.greatest), guid, uuid, string(kind), ts)
	if err != nil {
		return fmt.Errorf("recording bookmark change %s: %w", types.BookmarkChangeKey(guid, uuid), err)
	}
	return nil
}
