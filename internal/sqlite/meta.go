package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// getMeta reads a meta value. ok is false when the key is absent.
func getMeta(t *txn, key string) (value string, ok bool, err error) {
	err = t.queryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading meta %s: %w", key, err)
	}
	return value, true, nil
}

func setMeta(t *txn, key, value string) error {
	_, err := t.exec(`INSERT INTO meta (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("writing meta %s: %w", key, err)
	}
	return nil
}

func deleteMeta(t *txn, key string) error {
	if _, err := t.exec(`DELETE FROM meta WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting meta %s: %w", key, err)
	}
	return nil
}

// getMetaInt reads an integer meta value, 0 when absent.
func getMetaInt(t *txn, key string) (int64, error) {
	raw, ok, err := getMeta(t, key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing meta %s: %w", key, err)
	}
	return n, nil
}

// touchLastChange advances a last-change marker. The marker strictly
// increases, so two commits within one millisecond still compare as
// different snapshots.
func touchLastChange(t *txn, key string, now int64) (int64, error) {
	prev, err := getMetaInt(t, key)
	if err != nil {
		return 0, err
	}
	next := max(now, prev+1)
	if err := setMeta(t, key, strconv.FormatInt(next, 10)); err != nil {
		return 0, err
	}
	return next, nil
}

// lastChange reads a last-change marker in its own transaction.
func (b *Backend) lastChange(ctx context.Context, key string) (int64, error) {
	var ts int64
	err := b.withTx(ctx, func(t *txn) error {
		var err error
		ts, err = getMetaInt(t, key)
		return err
	})
	return ts, err
}
