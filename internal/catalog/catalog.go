// Package catalog tracks every ingested archive and its processing status
// in a small SQLite database, so batch runs can list, resume, and report
// without re-scanning the working directories.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jbarria/archivador/constants"
)

// ErrNotFound is returned when an archive name is not registered.
var ErrNotFound = errors.New("archive not found")

// Archive is one source PDF tracked by the catalog.
type Archive struct {
	Name       string
	SourcePath string
	Pages      int
	Status     constants.ArchiveStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Catalog struct {
	db   *sql.DB
	path string
}

type migration struct {
	version int
	stmt    string
}

var migrations = []migration{
	{1, `
		CREATE TABLE IF NOT EXISTS archives (
			name        TEXT PRIMARY KEY,
			source_path TEXT NOT NULL,
			pages       INTEGER NOT NULL DEFAULT 0,
			status      TEXT NOT NULL,
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		)
	`},
}

// Open opens (creating if needed) the catalog database under dataDir.
func Open(dataDir string) (*Catalog, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "archivador.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	c := &Catalog{db: db, path: dbPath}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return c, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.path
}

func (c *Catalog) migrate() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := c.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := c.db.Exec(m.stmt); err != nil {
			return fmt.Errorf("executing migration %d: %w", m.version, err)
		}
		if _, err := c.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Upsert registers an archive or refreshes its source path and page count.
// The status of an existing archive is left untouched.
func (c *Catalog) Upsert(ctx context.Context, name, sourcePath string, pages int) error {
	now := time.Now().Unix()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO archives (name, source_path, pages, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source_path = excluded.source_path,
			pages       = excluded.pages,
			updated_at  = excluded.updated_at
	`, name, sourcePath, pages, constants.ArchiveIngested, now, now)
	if err != nil {
		return fmt.Errorf("upserting archive %s: %w", name, err)
	}
	return nil
}

// SetStatus advances an archive's processing status.
func (c *Catalog) SetStatus(ctx context.Context, name string, status constants.ArchiveStatus) error {
	res, err := c.db.ExecContext(ctx,
		"UPDATE archives SET status = ?, updated_at = ? WHERE name = ?",
		status, time.Now().Unix(), name)
	if err != nil {
		return fmt.Errorf("updating status for %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one archive by name.
func (c *Catalog) Get(ctx context.Context, name string) (*Archive, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT name, source_path, pages, status, created_at, updated_at
		FROM archives WHERE name = ?
	`, name)
	a, err := scanArchive(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// List returns all archives ordered by name.
func (c *Catalog) List(ctx context.Context) ([]*Archive, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT name, source_path, pages, status, created_at, updated_at
		FROM archives ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing archives: %w", err)
	}
	defer rows.Close()

	var out []*Archive
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArchive(row scanner) (*Archive, error) {
	var a Archive
	var created, updated int64
	if err := row.Scan(&a.Name, &a.SourcePath, &a.Pages, &a.Status, &created, &updated); err != nil {
		return nil, err
	}
	a.CreatedAt = time.Unix(created, 0)
	a.UpdatedAt = time.Unix(updated, 0)
	return &a, nil
}
