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

package settingsdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

var errDuplicate = errors.New("duplicate key value violates unique constraint")

// fakeDB is an in-memory settings table. It understands just enough of the
// statement text to tell selects, inserts, updates and deletes apart.
type fakeDB struct {
	mu       sync.Mutex
	idCols   int
	defaults map[string]any
	rows     map[string]map[string]any

	acquires atomic.Int32
	releases atomic.Int32
	prepares atomic.Int32
	queries  atomic.Int32
	execs    atomic.Int32

	acquireErr error
	prepareErr error
	queryErr   error
	execErr    error
}

func newFakeDB(idCols int, defaults map[string]any) *fakeDB {
	return &fakeDB{
		idCols:   idCols,
		defaults: defaults,
		rows:     make(map[string]map[string]any),
	}
}

func (db *fakeDB) rowKey(args []any) string {
	return fmt.Sprint(args[:db.idCols]...)
}

// put stores a row directly, bypassing the handler.
func (db *fakeDB) put(values map[string]any, ids ...int64) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	row := make(map[string]any, len(db.defaults))
	for k, v := range db.defaults {
		row[k] = v
	}
	for k, v := range values {
		row[k] = v
	}
	db.mu.Lock()
	db.rows[db.rowKey(args)] = row
	db.mu.Unlock()
}

func (db *fakeDB) Acquire(_ context.Context) (Conn, error) {
	db.acquires.Add(1)
	if db.acquireErr != nil {
		return nil, db.acquireErr
	}
	return &fakeConn{db: db}, nil
}

type fakeStmt struct {
	sql string
}

func (s fakeStmt) SQL() string { return s.sql }

type fakeConn struct {
	db       *fakeDB
	released bool
}

func (c *fakeConn) Prepare(_ context.Context, sql string) (Stmt, error) {
	c.db.prepares.Add(1)
	if c.db.prepareErr != nil {
		return nil, c.db.prepareErr
	}
	return fakeStmt{sql: sql}, nil
}

func (c *fakeConn) QueryOptional(_ context.Context, stmt Stmt, args ...any) (*Row, error) {
	c.db.queries.Add(1)
	if c.db.queryErr != nil {
		return nil, c.db.queryErr
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	values, ok := c.db.rows[c.db.rowKey(args)]
	if !ok {
		return nil, nil
	}
	cols := make([]string, 0, len(values))
	for k := range values {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	vals := make([]any, len(cols))
	for i, k := range cols {
		vals[i] = values[k]
	}
	return NewRow(cols, vals), nil
}

func (c *fakeConn) Exec(_ context.Context, stmt Stmt, args ...any) error {
	c.db.execs.Add(1)
	if c.db.execErr != nil {
		return c.db.execErr
	}
	sql := stmt.SQL()
	key := c.db.rowKey(args)

	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	switch {
	case strings.HasPrefix(sql, "INSERT"):
		if _, exists := c.db.rows[key]; exists {
			return errDuplicate
		}
		row := make(map[string]any, len(c.db.defaults))
		for k, v := range c.db.defaults {
			row[k] = v
		}
		c.db.rows[key] = row
	case strings.HasPrefix(sql, "UPDATE"):
		row, exists := c.db.rows[key]
		if !exists {
			return nil
		}
		row[updatedColumn(sql)] = args[len(args)-1]
	case strings.HasPrefix(sql, "DELETE"):
		delete(c.db.rows, key)
	default:
		return fmt.Errorf("fake: unsupported statement %q", sql)
	}
	return nil
}

func (c *fakeConn) Release() {
	if c.released {
		panic("fake: connection released twice")
	}
	c.released = true
	c.db.releases.Add(1)
}

// updatedColumn pulls the column out of `UPDATE t SET "col" = ...`.
func updatedColumn(sql string) string {
	_, rest, _ := strings.Cut(sql, "SET ")
	col, _, _ := strings.Cut(rest, " =")
	return strings.Trim(col, `"`)
}

var guildTemplates = Templates{
	Table:        "guilds",
	Select:       "SELECT * FROM guilds WHERE guild_id = $1",
	Delete:       "DELETE FROM guilds WHERE guild_id = $1",
	CreateRow:    "INSERT INTO guilds(guild_id) VALUES($1)",
	SingleInsert: "UPDATE guilds SET {key} = $2 WHERE guild_id = $1",
	Columns:      []Column{"volume", "prefix"},
}

var nicknameTemplates = Templates{
	Table:        "nicknames",
	Select:       "SELECT * FROM nicknames WHERE guild_id = $1 AND user_id = $2",
	Delete:       "DELETE FROM nicknames WHERE guild_id = $1 AND user_id = $2",
	CreateRow:    "INSERT INTO nicknames(guild_id, user_id) VALUES($1, $2)",
	SingleInsert: "UPDATE nicknames SET {key} = $3 WHERE guild_id = $1 AND user_id = $2",
	Columns:      []Column{"name"},
}
