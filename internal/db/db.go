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

	_ "modernc.org/sqlite"

	"github.com/quantmind-br/ipkg/internal/control"
)

// ErrNotInstalled is returned by lookups for packages without a database row.
var ErrNotInstalled = errors.New("package not installed")

// DB is the installed-package database with separate read/write pools. One
// row per package name; installing another version of the same name replaces
// the row.
type DB struct {
	write *sql.DB
	read  *sql.DB
	path  string
}

// Entry is one installed package as recorded in the database.
type Entry struct {
	control.Record
	InstalledAt time.Time
	Auto        bool
	Files       []string
}

// New opens or creates the installed-package database. The parent directory
// is created if needed, so a fresh install root works on first use.
func New(ctx context.Context, dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath)

	// Write pool: MUST be 1 connection only
	write, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open write connection: %w", err)
	}
	write.SetMaxOpenConns(1)
	write.SetMaxIdleConns(1)
	write.SetConnMaxIdleTime(time.Minute)
	write.SetConnMaxLifetime(time.Hour)

	// Read pool: Can have multiple connections
	read, err := sql.Open("sqlite", connStr)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open read connection: %w", err)
	}
	read.SetMaxOpenConns(10)
	read.SetMaxIdleConns(5)
	read.SetConnMaxIdleTime(time.Minute)
	read.SetConnMaxLifetime(time.Hour)

	db := &DB{
		write: write,
		read:  read,
		path:  dbPath,
	}

	if err := db.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Close closes both database connections
func (db *DB) Close() error {
	writeErr := db.write.Close()
	readErr := db.read.Close()
	if writeErr != nil {
		return writeErr
	}
	return readErr
}

// initSchema creates the schema if it doesn't exist
func (db *DB) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS packages (
    name TEXT PRIMARY KEY,
    version TEXT NOT NULL,
    architecture TEXT,
    depends TEXT NOT NULL DEFAULT '[]',
    provides TEXT NOT NULL DEFAULT '[]',
    installed_size INTEGER NOT NULL DEFAULT 0,
    auto INTEGER NOT NULL DEFAULT 0,
    installed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    files TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    description TEXT
);
	`

	_, err := db.write.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Put inserts or replaces the row for rec.Name. files is the payload file
// list recorded for later removal; auto marks packages pulled in as
// dependencies rather than requested by name.
func (db *DB) Put(ctx context.Context, rec *control.Record, files []string, auto bool) error {
	dependsJSON, err := json.Marshal(rec.Depends)
	if err != nil {
		return fmt.Errorf("marshal depends: %w", err)
	}
	providesJSON, err := json.Marshal(rec.Provides)
	if err != nil {
		return fmt.Errorf("marshal provides: %w", err)
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("marshal files: %w", err)
	}

	query := `
INSERT INTO packages (name, version, architecture, depends, provides, installed_size, auto, installed_at, files)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
    version = excluded.version,
    architecture = excluded.architecture,
    depends = excluded.depends,
    provides = excluded.provides,
    installed_size = excluded.installed_size,
    auto = excluded.auto,
    installed_at = excluded.installed_at,
    files = excluded.files
	`

	_, err = db.write.ExecContext(ctx, query,
		rec.Name,
		rec.Version,
		rec.Architecture,
		string(dependsJSON),
		string(providesJSON),
		rec.InstalledSize,
		auto,
		time.Now().UTC(),
		string(filesJSON),
	)
	if err != nil {
		return fmt.Errorf("upsert package %s: %w", rec.Name, err)
	}

	return nil
}

// Get retrieves the installed record for a package name.
func (db *DB) Get(ctx context.Context, name string) (*control.Record, error) {
	entry, err := db.getEntry(ctx, name)
	if err != nil {
		return nil, err
	}
	return &entry.Record, nil
}

// GetEntry retrieves the full database row for a package name, including
// install metadata and the recorded file list.
func (db *DB) GetEntry(ctx context.Context, name string) (*Entry, error) {
	return db.getEntry(ctx, name)
}

func (db *DB) getEntry(ctx context.Context, name string) (*Entry, error) {
	query := `
SELECT name, version, architecture, depends, provides, installed_size, auto, installed_at, files
FROM packages WHERE name = ?
	`
	row := db.read.QueryRowContext(ctx, query, name)
	entry, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}
	if err != nil {
		return nil, fmt.Errorf("query package %s: %w", name, err)
	}
	return entry, nil
}

// Files returns the payload file list recorded when the package was staged.
func (db *DB) Files(ctx context.Context, name string) ([]string, error) {
	entry, err := db.getEntry(ctx, name)
	if err != nil {
		return nil, err
	}
	return entry.Files, nil
}

// Snapshot returns a consistent name to record view of every installed
// package. A single statement runs in its own read transaction, so the view
// cannot interleave with a concurrent writer.
func (db *DB) Snapshot(ctx context.Context) (map[string]*control.Record, error) {
	entries, err := db.List(ctx)
	if err != nil {
		return nil, err
	}
	installed := make(map[string]*control.Record, len(entries))
	for i := range entries {
		installed[entries[i].Name] = &entries[i].Record
	}
	return installed, nil
}

// List retrieves all installed packages ordered by name.
func (db *DB) List(ctx context.Context) ([]Entry, error) {
	query := `
SELECT name, version, architecture, depends, provides, installed_size, auto, installed_at, files
FROM packages ORDER BY name
	`
	rows, err := db.read.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query packages: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}

// Remove deletes the row for a package name.
func (db *DB) Remove(ctx context.Context, name string) error {
	result, err := db.write.ExecContext(ctx, "DELETE FROM packages WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete package %s: %w", name, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}

	return nil
}

func scanEntry(scan func(dest ...any) error) (*Entry, error) {
	var (
		entry        Entry
		dependsJSON  string
		providesJSON string
		filesJSON    string
	)
	err := scan(
		&entry.Name,
		&entry.Version,
		&entry.Architecture,
		&dependsJSON,
		&providesJSON,
		&entry.InstalledSize,
		&entry.Auto,
		&entry.InstalledAt,
		&filesJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(dependsJSON), &entry.Depends); err != nil {
		return nil, fmt.Errorf("unmarshal depends: %w", err)
	}
	if err := json.Unmarshal([]byte(providesJSON), &entry.Provides); err != nil {
		return nil, fmt.Errorf("unmarshal provides: %w", err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &entry.Files); err != nil {
		return nil, fmt.Errorf("unmarshal files: %w", err)
	}

	return &entry, nil
}
