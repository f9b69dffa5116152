package syncbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mesh-intelligence/workspaces/internal/sqlite"
)

// FileExt is the extension of per-device record files.
const FileExt = ".jsonl"

// FileTransport shares records through a directory that every device can
// read, such as a synced folder. Each device owns one JSONL file named
// after its device ID and holds the newest record per entity in it.
type FileTransport struct {
	dir      string
	deviceID string
	logger   *slog.Logger
}

// NewFileTransport returns a transport rooted at dir.
func NewFileTransport(dir, deviceID string, logger *slog.Logger) (*FileTransport, error) {
	if dir == "" {
		return nil, errors.New("syncbridge: sync directory is required")
	}
	if deviceID == "" || strings.ContainsAny(deviceID, `/\`) {
		return nil, fmt.Errorf("syncbridge: invalid device id %q", deviceID)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileTransport{dir: dir, deviceID: deviceID, logger: logger}, nil
}

// Dir returns the shared directory.
func (t *FileTransport) Dir() string { return t.dir }

// OwnFile returns the path of this device's record file.
func (t *FileTransport) OwnFile() string {
	return filepath.Join(t.dir, t.deviceID+FileExt)
}

// Pull reads the files of every other device. A missing directory yields
// no records.
func (t *FileTransport) Pull(ctx context.Context) ([]Record, error) {
	entries, err := os.ReadDir(t.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", t.dir, err)
	}

	var out []Record
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != FileExt || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.TrimSuffix(name, FileExt) == t.deviceID {
			continue
		}
		recs, err := t.read(filepath.Join(t.dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// Published reads this device's own file. A missing file yields no
// records.
func (t *FileTransport) Published(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recs, err := t.read(t.OwnFile())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return recs, err
}

// Push merges records into this device's file, keeping the newest record
// per entity.
func (t *FileTransport) Push(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := t.OwnFile()
	existing, err := t.read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	merged := make(map[string]Record, len(existing)+len(records))
	for _, rec := range slices.Concat(existing, records) {
		k := rec.Key()
		if k == "" {
			continue
		}
		if prev, ok := merged[k]; ok && newer(prev, rec) {
			continue
		}
		merged[k] = rec
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	lines := make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		data, err := json.Marshal(merged[k])
		if err != nil {
			return fmt.Errorf("encoding %s: %w", k, err)
		}
		lines = append(lines, data)
	}
	if err := sqlite.WriteJSONL(path, lines); err != nil {
		return err
	}
	t.logger.Debug("records pushed", "path", path, "count", len(records), "total", len(lines))
	return nil
}

func (t *FileTransport) read(path string) ([]Record, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	raw, err := sqlite.ReadJSONL(path)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(raw))
	for _, line := range raw {
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			t.logger.Warn("skipping malformed record", "path", path, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
