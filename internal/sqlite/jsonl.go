// This file provides JSONL snapshot export and import of workspace records,
// written atomically with the temp-file, fsync, rename pattern.
package sqlite

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/workspaces/internal/events"
	"github.com/mesh-intelligence/workspaces/pkg/types"
)

// ReadJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func ReadJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// WriteJSONL atomically replaces path with one record per line.
func WriteJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(format string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf(format, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// ExportJSONL writes every workspace, in display order, to path and returns
// the number of records written.
func (b *Backend) ExportJSONL(ctx context.Context, path string) (int, error) {
	list, err := b.workspaces.GetWorkspaces(ctx)
	if err != nil {
		return 0, err
	}
	records := make([]json.RawMessage, 0, len(list))
	for _, ws := range list {
		raw, err := json.Marshal(ws)
		if err != nil {
			return 0, fmt.Errorf("encoding workspace %s: %w", ws.UUID, err)
		}
		records = append(records, raw)
	}
	if err := WriteJSONL(path, records); err != nil {
		return 0, err
	}
	b.logger.Info("workspaces exported", "path", path, "count", len(records))
	return len(records), nil
}

// ImportJSONL upserts every workspace record found in path in one
// transaction. Lines that do not decode into a workspace with a UUID and a
// name are skipped. Imported records are stamped in the change log.
func (b *Backend) ImportJSONL(ctx context.Context, path string) (int, error) {
	raws, err := ReadJSONL(path)
	if err != nil {
		return 0, err
	}
	var list []types.Workspace
	for _, raw := range raws {
		var ws types.Workspace
		if err := json.Unmarshal(raw, &ws); err != nil || ws.UUID == "" || ws.Name == "" {
			b.logger.Warn("skipping malformed workspace record", "path", path)
			continue
		}
		list = append(list, ws)
	}
	changed, err := b.saveAll(ctx, list)
	if err != nil {
		return 0, err
	}
	b.logger.Info("workspaces imported", "path", path, "count", len(list))
	if len(changed) > 0 {
		b.metrics.Mutation("import")
		b.publish(events.WorkspaceUpdated, changed)
	}
	return len(list), nil
}

// saveAll upserts list in one transaction, recording every row.
func (b *Backend) saveAll(ctx context.Context, list []types.Workspace) ([]string, error) {
	if len(list) == 0 {
		return nil, nil
	}
	var changed []string
	err := b.withTx(ctx, func(t *txn) error {
		now := b.nowMillis()
		for i := range list {
			ws := list[i]
			ids, err := b.upsertWorkspace(t, &ws, now, true)
			if err != nil {
				return err
			}
			changed = append(changed, ids...)
		}
		_, err := touchLastChange(t, metaWorkspacesLastChange, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dedupe(changed), nil
}
