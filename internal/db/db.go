package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/fxsnapshot/fxsnapshot/internal/rates"
	"github.com/fxsnapshot/fxsnapshot/internal/utils"
)

type DB struct {
	sql *sql.DB
	now func() time.Time
}

func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer; the snapshot is replaced inside a single transaction
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := &DB{sql: sqldb, now: time.Now}
	if err := db.migrate(context.Background()); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS currencies (
			code TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			comparison_code TEXT NOT NULL DEFAULT '',
			computed_value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			records INTEGER NOT NULL DEFAULT 0,
			failed_urls INTEGER NOT NULL DEFAULT 0,
			discarded INTEGER NOT NULL DEFAULT 0,
			removed_codes TEXT NOT NULL DEFAULT '[]',
			error TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
	}
	for _, s := range stmts {
		if _, err := d.sql.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Purge deletes every stored record.
func (d *DB) Purge(ctx context.Context) error {
	return purge(ctx, d.sql)
}

func purge(ctx context.Context, ex execer) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM currencies`); err != nil {
		return fmt.Errorf("purge currencies: %w", err)
	}
	return nil
}

// Upsert inserts rec or replaces the stored record with the same code.
// Decimals are kept as text and updated_at is set to the current time.
func (d *DB) Upsert(ctx context.Context, rec rates.Record) error {
	return d.upsert(ctx, d.sql, rec)
}

func (d *DB) upsert(ctx context.Context, ex execer, rec rates.Record) error {
	if rec.Code == "" {
		return errors.New("upsert: empty code")
	}
	computed := rec.ComputedValue
	if computed.IsZero() {
		computed = rec.Value
	}
	_, err := ex.ExecContext(ctx, `INSERT INTO currencies(code,value,comparison_code,computed_value,updated_at)
		VALUES(?,?,?,?,?)
		ON CONFLICT(code) DO UPDATE SET
			value=excluded.value,
			comparison_code=excluded.comparison_code,
			computed_value=excluded.computed_value,
			updated_at=excluded.updated_at`,
		rec.Code, rec.Value.String(), rec.ComparisonCode, computed.String(),
		d.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", rec.Code, err)
	}
	return nil
}

// Replace purges the store and writes recs in one transaction. On error the previous
// snapshot is left as it was.
func (d *DB) Replace(ctx context.Context, recs []rates.Record) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := purge(ctx, tx); err != nil {
		return err
	}
	for _, rec := range recs {
		if err := d.upsert(ctx, tx, rec); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// List returns every stored record ordered by code.
func (d *DB) List(ctx context.Context) ([]rates.Record, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT code,value,comparison_code,computed_value,updated_at FROM currencies ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []rates.Record{}
	for rows.Next() {
		var code, value, comparison, computed, updated string
		if err := rows.Scan(&code, &value, &comparison, &computed, &updated); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(code, value, comparison, computed, updated)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func decodeRecord(code, value, comparison, computed, updated string) (rates.Record, error) {
	v, err := decimal.NewFromString(value)
	if err != nil {
		return rates.Record{}, fmt.Errorf("record %s: value: %w", code, err)
	}
	c, err := decimal.NewFromString(computed)
	if err != nil {
		return rates.Record{}, fmt.Errorf("record %s: computed value: %w", code, err)
	}
	at, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return rates.Record{}, fmt.Errorf("record %s: updated_at: %w", code, err)
	}
	return rates.Record{
		Code:           code,
		Value:          v,
		ComparisonCode: comparison,
		ComputedValue:  c,
		UpdatedAt:      at,
	}, nil
}

// ExportJSON writes every stored record to path as an indented JSON array.
// The file is written next to path and renamed into place, so readers see either
// the previous document or the complete new one.
func (d *DB) ExportJSON(ctx context.Context, path string) (int, error) {
	recs, err := d.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	b, err := json.MarshalIndent(recs, "", "    ")
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	b = append(b, '\n')
	if err := utils.WriteFileAtomic(path, b); err != nil {
		return 0, fmt.Errorf("export %s: %w", path, err)
	}
	return len(recs), nil
}

func (d *DB) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := d.sql.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (d *DB) SetMeta(ctx context.Context, key, value string) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO meta(key,value) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

const metaLastExport = "last_export"

// SetLastExport records when the export file was last written.
func (d *DB) SetLastExport(ctx context.Context, t time.Time) error {
	return d.SetMeta(ctx, metaLastExport, t.UTC().Format(time.RFC3339))
}

func (d *DB) LastExport(ctx context.Context) (time.Time, bool, error) {
	v, ok, err := d.GetMeta(ctx, metaLastExport)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("meta %s: %w", metaLastExport, err)
	}
	return t, true, nil
}

// BackupTo writes a consistent copy of the store to dstPath with VACUUM INTO, which
// is safe while the WAL is active. An existing file at dstPath is replaced.
func (d *DB) BackupTo(ctx context.Context, dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o750); err != nil {
		return err
	}
	if err := os.Remove(dstPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if _, err := d.sql.ExecContext(ctx, `VACUUM INTO ?`, dstPath); err != nil {
		return fmt.Errorf("backup to %s: %w", dstPath, err)
	}
	return nil
}
