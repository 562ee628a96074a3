// Package persist stores files written to persistent directories, so they
// survive between runs, using sqlite.
package persist

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned by Store.ReadFile for a missing file. It matches
// fs.ErrNotExist.
var ErrNotFound = fmt.Errorf(`persist: %w`, fs.ErrNotExist)

// Store is a sqlite backed file store, implementing bridge.Persistence.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the store at path, applying any
// pending migrations.
func Open(path string) (*Store, error) {
	if err := migrateUp(path); err != nil {
		return nil, fmt.Errorf(`persist: migrate: %w`, err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	return db, nil
}

// migrateUp uses its own connection, as closing the migration closes the
// database it was given.
func migrateUp(path string) error {
	db, err := openDB(path)
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		_ = db.Close()
		return err
	}
	source, err := iofs.New(migrations, `migrations`)
	if err != nil {
		_ = driver.Close()
		return err
	}
	m, err := migrate.NewWithInstance(`iofs`, source, `sqlite3`, driver)
	if err != nil {
		_ = source.Close()
		_ = driver.Close()
		return err
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func (x *Store) Close() error { return x.db.Close() }

// WriteFile creates or replaces a file.
func (x *Store) WriteFile(ctx context.Context, filename string, contents []byte) error {
	if contents == nil {
		contents = []byte{}
	}
	_, err := x.db.ExecContext(ctx, `
INSERT INTO files (name, contents, updated_at) VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET contents = excluded.contents, updated_at = excluded.updated_at`,
		filename, contents, time.Now().UTC())
	if err != nil {
		return fmt.Errorf(`persist: write %s: %w`, filename, err)
	}
	return nil
}

func (x *Store) ReadFile(ctx context.Context, filename string) ([]byte, error) {
	var contents []byte
	err := x.db.QueryRowContext(ctx, `SELECT contents FROM files WHERE name = ?`, filename).Scan(&contents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf(`%w: %s`, ErrNotFound, filename)
	}
	if err != nil {
		return nil, fmt.Errorf(`persist: read %s: %w`, filename, err)
	}
	if contents == nil {
		contents = []byte{}
	}
	return contents, nil
}

// RemoveFile deletes a file, if it exists.
func (x *Store) RemoveFile(ctx context.Context, filename string) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM files WHERE name = ?`, filename); err != nil {
		return fmt.Errorf(`persist: remove %s: %w`, filename, err)
	}
	return nil
}

// List returns the names of files within dir (recursively), sorted. An
// empty dir lists everything.
func (x *Store) List(ctx context.Context, dir string) ([]string, error) {
	var names []string
	err := x.scan(ctx, dir, `SELECT name FROM files WHERE name LIKE ? ESCAPE '\' ORDER BY name`, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		names = append(names, name)
		return nil
	})
	return names, err
}

// Load returns every file within the given directories, e.g. to restore
// persistent directories on startup.
func (x *Store) Load(ctx context.Context, dirs ...string) (map[string][]byte, error) {
	files := make(map[string][]byte)
	for _, dir := range dirs {
		err := x.scan(ctx, dir, `SELECT name, contents FROM files WHERE name LIKE ? ESCAPE '\'`, func(rows *sql.Rows) error {
			var (
				name     string
				contents []byte
			)
			if err := rows.Scan(&name, &contents); err != nil {
				return err
			}
			if contents == nil {
				contents = []byte{}
			}
			files[name] = contents
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func (x *Store) scan(ctx context.Context, dir, query string, fn func(rows *sql.Rows) error) error {
	rows, err := x.db.QueryContext(ctx, query, dirPattern(dir))
	if err != nil {
		return fmt.Errorf(`persist: query %s: %w`, dir, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return fmt.Errorf(`persist: scan %s: %w`, dir, err)
		}
	}
	return rows.Err()
}

// dirPattern returns a LIKE pattern matching everything under dir.
func dirPattern(dir string) string {
	if dir == `` {
		return `%`
	}
	dir = strings.TrimSuffix(dir, `/`) + `/`
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(dir) + `%`
}
