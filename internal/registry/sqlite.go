package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"servingd/pkg/types"
)

// SQLiteCatalog keeps catalog entries in a SQLite database so they can be
// managed at runtime without restarting the daemon.
type SQLiteCatalog struct {
	db *sql.DB
}

// OpenSQLiteCatalog opens (creating if needed) the database at path.
func OpenSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	p, err := expandHome(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	c := &SQLiteCatalog{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCatalog) migrate() error {
	_, err := c.db.Exec(`
CREATE TABLE IF NOT EXISTS catalog_entries (
  name TEXT NOT NULL,
  version INTEGER NOT NULL,
  command TEXT NOT NULL,
  env TEXT NOT NULL DEFAULT '[]',
  dir TEXT NOT NULL DEFAULT '',
  runtime TEXT NOT NULL DEFAULT '{}',
  updated_at DATETIME NOT NULL,
  PRIMARY KEY (name, version)
);
`)
	return err
}

func (c *SQLiteCatalog) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Upsert inserts or replaces the entry for e's key.
func (c *SQLiteCatalog) Upsert(ctx context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	cmd, err := json.Marshal(e.Command)
	if err != nil {
		return err
	}
	env, err := json.Marshal(append([]string{}, e.Env...))
	if err != nil {
		return err
	}
	rt, err := json.Marshal(e.Runtime)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `
INSERT INTO catalog_entries(name, version, command, env, dir, runtime, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name, version) DO UPDATE SET
  command=excluded.command, env=excluded.env, dir=excluded.dir,
  runtime=excluded.runtime, updated_at=excluded.updated_at;
`, e.Name, e.Version, string(cmd), string(env), e.Dir, string(rt), time.Now().UTC())
	return err
}

// Delete removes the entry for key. Removing an unknown key returns ErrNotFound.
func (c *SQLiteCatalog) Delete(ctx context.Context, key types.ModelKey) error {
	res, err := c.db.ExecContext(ctx, "DELETE FROM catalog_entries WHERE name=? AND version=?;", key.Name, key.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(key)
	}
	return nil
}

// List returns every entry ordered by name and version.
func (c *SQLiteCatalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT name, version, command, env, dir, runtime
FROM catalog_entries ORDER BY name, version;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *SQLiteCatalog) Resolve(ctx context.Context, key types.ModelKey) (types.LaunchPlan, error) {
	row := c.db.QueryRowContext(ctx, `
SELECT name, version, command, env, dir, runtime
FROM catalog_entries WHERE name=? AND version=?;
`, key.Name, key.Version)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.LaunchPlan{}, notFound(key)
	}
	if err != nil {
		return types.LaunchPlan{}, err
	}
	return e.Plan()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e                 Entry
		cmd, env, runtime string
	)
	if err := s.Scan(&e.Name, &e.Version, &cmd, &env, &e.Dir, &runtime); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(cmd), &e.Command); err != nil {
		return Entry{}, fmt.Errorf("decode command for %s: %w", e.Key(), err)
	}
	if err := json.Unmarshal([]byte(env), &e.Env); err != nil {
		return Entry{}, fmt.Errorf("decode env for %s: %w", e.Key(), err)
	}
	if err := json.Unmarshal([]byte(runtime), &e.Runtime); err != nil {
		return Entry{}, fmt.Errorf("decode runtime for %s: %w", e.Key(), err)
	}
	return e, nil
}
