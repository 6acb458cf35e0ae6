// Package store keeps precompiled template routines in SQLite so they can be
// rendered later without the original text or delimiter settings.
//
// The default build uses the pure Go modernc.org/sqlite driver. Build with
// -tags cgo_sqlite to use github.com/mattn/go-sqlite3 instead.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benjaminschreck/go-microtpl/pkg/microtpl"
)

// ErrNotFound is returned when no template is stored under a name.
var ErrNotFound = errors.New("template not found")

const schema = `
CREATE TABLE IF NOT EXISTS templates (
	name TEXT PRIMARY KEY,
	variable TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Entry describes a stored template without loading it.
type Entry struct {
	Name      string
	Variable  string
	UpdatedAt time.Time
}

// Store is a table of named template routines.
type Store struct {
	db       *sql.DB
	compiler *microtpl.Compiler
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithCompiler sets the compiler used to rebuild stored templates, which
// decides the functions and step limit they render with.
func WithCompiler(c *microtpl.Compiler) Option {
	return func(s *Store) {
		s.compiler = c
	}
}

// Open opens the database at dataSource and creates the templates table
// when it is missing.
func Open(ctx context.Context, dataSource string, opts ...Option) (*Store, error) {
	db, err := openDB(dataSource)
	if err != nil {
		return nil, microtpl.WithContext(err, "open store", map[string]interface{}{"driver": driverName})
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, microtpl.WithContext(err, "create schema", map[string]interface{}{"driver": driverName})
	}

	s := &Store{
		db:       db,
		compiler: microtpl.NewCompiler(microtpl.WithMaxSteps(microtpl.GetGlobalConfig().MaxRenderSteps)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	logger := microtpl.GetLogger()
	if logger.IsDebugMode() {
		logger.WithField("driver", driverName).Debug("Template store opened")
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores the routine of tmpl under name, replacing any previous entry.
func (s *Store) Put(ctx context.Context, name string, tmpl *microtpl.Template) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("template name cannot be empty")
	}

	const query = `
	INSERT INTO templates (name, variable, source, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		variable = excluded.variable,
		source = excluded.source,
		updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, name, tmpl.Variable(), tmpl.Source(), s.now().UnixMilli())
	if err != nil {
		return microtpl.WithContext(err, "put template", map[string]interface{}{"name": name})
	}

	logger := microtpl.GetLogger()
	if logger.IsDebugMode() {
		logger.WithFields(microtpl.Fields{
			"name":          name,
			"source_length": len(tmpl.Source()),
		}).Debug("Stored template")
	}
	return nil
}

// Source returns the stored routine text for name.
func (s *Store) Source(ctx context.Context, name string) (string, error) {
	var source string
	err := s.db.QueryRowContext(ctx, "SELECT source FROM templates WHERE name = ?", name).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", microtpl.WithContext(err, "get template", map[string]interface{}{"name": name})
	}
	return source, nil
}

// Get loads the template stored under name.
func (s *Store) Get(ctx context.Context, name string) (*microtpl.Template, error) {
	source, err := s.Source(ctx, name)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.compiler.Load(source)
	if err != nil {
		return nil, microtpl.WithContext(err, "load template", map[string]interface{}{"name": name})
	}
	return tmpl, nil
}

// List returns the stored entries ordered by name.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, variable, updated_at FROM templates ORDER BY name")
	if err != nil {
		return nil, microtpl.WithContext(err, "list templates", nil)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var entries []Entry
	for rows.Next() {
		var e Entry
		var updated int64
		if err := rows.Scan(&e.Name, &e.Variable, &updated); err != nil {
			return nil, err
		}
		e.UpdatedAt = time.UnixMilli(updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the template stored under name. Deleting a missing name
// returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE name = ?", name)
	if err != nil {
		return microtpl.WithContext(err, "delete template", map[string]interface{}{"name": name})
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}
