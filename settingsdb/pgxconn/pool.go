// Copyright 2025-2026 CardinalHQ, Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pgxconn adapts a pgx v5 connection pool to settingsdb.Pool.
package pgxconn

import (
	"context"
	"errors"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgx-contrib/pgxotel"

	"github.com/cardinalhq/settingsdb/settingsdb"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// NewConnectionPool creates a new connection pool
// using the PostgreSQL connection string provided, and
// using pgx v5.
func NewConnectionPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	cfg.ConnConfig.Tracer = &pgxotel.QueryTracer{
		Name: "settingsdb",
	}

	return pgxpool.NewWithConfig(ctx, cfg)
}

// Pool serves settingsdb connections from a pgxpool.Pool.
type Pool struct {
	pool *pgxpool.Pool
}

var _ settingsdb.Pool = (*Pool)(nil)

// New wraps pool. The caller keeps ownership of pool and closes it.
func New(pool *pgxpool.Pool) *Pool {
	return &Pool{pool: pool}
}

func (p *Pool) Acquire(ctx context.Context) (settingsdb.Conn, error) {
	c, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &conn{c: c}, nil
}

type conn struct {
	c *pgxpool.Conn
}

type stmt struct {
	name string
	sql  string
}

func (s *stmt) SQL() string { return s.sql }

// statementName derives a stable name from the statement text so the same
// template maps to the same server-side prepared statement on every
// connection.
func statementName(sql string) string {
	return "settingsdb_" + strconv.FormatUint(xxhash.Sum64String(sql), 16)
}

// Prepare is idempotent per connection: pgx returns the existing
// description when a statement with the same name and text exists.
func (c *conn) Prepare(ctx context.Context, sql string) (settingsdb.Stmt, error) {
	sd, err := c.c.Conn().Prepare(ctx, statementName(sql), sql)
	if err != nil {
		return nil, err
	}
	return &stmt{name: sd.Name, sql: sql}, nil
}

func (c *conn) QueryOptional(ctx context.Context, s settingsdb.Stmt, args ...any) (*settingsdb.Row, error) {
	ps, err := own(s)
	if err != nil {
		return nil, err
	}
	rows, err := c.c.Query(ctx, ps.name, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	values, err := rows.Values()
	if err != nil {
		return nil, err
	}
	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	row := settingsdb.NewRow(cols, values)

	rows.Close()
	return row, rows.Err()
}

func (c *conn) Exec(ctx context.Context, s settingsdb.Stmt, args ...any) error {
	ps, err := own(s)
	if err != nil {
		return err
	}
	_, err = c.c.Exec(ctx, ps.name, args...)
	return err
}

func (c *conn) Release() {
	c.c.Release()
}

var errForeignStmt = errors.New("pgxconn: statement was not prepared by pgxconn")

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
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
