// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package sqliteconn adapts a SQLite database opened through modernc.org/sqlite
// to settingsdb.Pool. Statement templates for this backend must use ?NNN
// placeholders.
package sqliteconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/cardinalhq/settingsdb/settingsdb"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Open opens the SQLite database at path. An in-memory database is limited to
// a single connection so every caller sees the same data.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqliteconn: database path is required")
	}

	dsn := MemoryPath
	if path != MemoryPath {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

// Pool serves settingsdb connections from a *sql.DB.
type Pool struct {
	db *sql.DB
}

var _ settingsdb.Pool = (*Pool)(nil)

// New wraps db. The caller keeps ownership of db and closes it.
func New(db *sql.DB) *Pool {
	return &Pool{db: db}
}

func (p *Pool) Acquire(ctx context.Context) (settingsdb.Conn, error) {
	c, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &conn{c: c}, nil
}

type conn struct {
	c     *sql.Conn
	stmts []*stmt
}

type stmt struct {
	ps  *sql.Stmt
	sql string
}

func (s *stmt) SQL() string { return s.sql }

func (c *conn) Prepare(ctx context.Context, query string) (settingsdb.Stmt, error) {
	ps, err := c.c.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	s := &stmt{ps: ps, sql: query}
	c.stmts = append(c.stmts, s)
	return s, nil
}

func (c *conn) QueryOptional(ctx context.Context, s settingsdb.Stmt, args ...any) (*settingsdb.Row, error) {
	ps, err := own(s)
	if err != nil {
		return nil, err
	}
	rows, err := ps.ps.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	row := settingsdb.NewRow(cols, values)

	if err := rows.Close(); err != nil {
		return nil, err
	}
	return row, rows.Err()
}

func (c *conn) Exec(ctx context.Context, s settingsdb.Stmt, args ...any) error {
	ps, err := own(s)
	if err != nil {
		return err
	}
	_, err = ps.ps.ExecContext(ctx, args...)
	return err
}

// Release closes the statements prepared on this connection and returns it
// to the pool.
func (c *conn) Release() {
	for _, s := range c.stmts {
		_ = s.ps.Close()
	}
	c.stmts = nil
	_ = c.c.Close()
}

var errForeignStmt = errors.New("sqliteconn: statement was not prepared by sqliteconn")

func own(s settingsdb.Stmt) (*stmt, error) {
	ps, ok := s.(*stmt)
	if !ok {
		return nil, errForeignStmt
	}
	return ps, nil
}

// IsUniqueViolation reports whether err was caused by inserting a row that
// already exists.
func IsUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
