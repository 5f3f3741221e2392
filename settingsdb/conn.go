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

import "context"

// Pool hands out connections to the backing store.
// Implementations must be safe for concurrent use.
type Pool interface {
	// Acquire blocks until a connection is available, ctx is done, or the
	// pool fails.
	Acquire(ctx context.Context) (Conn, error)
}

// Conn is a single pooled connection. A Conn is used by one goroutine at a
// time and must be released back to its pool exactly once.
type Conn interface {
	// Prepare returns a statement for sql. Backends may cache the plan
	// across calls with the same text.
	Prepare(ctx context.Context, sql string) (Stmt, error)

	// QueryOptional runs stmt and returns its first row, or (nil, nil) if
	// the statement returned no rows.
	QueryOptional(ctx context.Context, stmt Stmt, args ...any) (*Row, error)

	// Exec runs stmt. Affecting zero rows is not an error.
	Exec(ctx context.Context, stmt Stmt, args ...any) error

	Release()
}

// Stmt is a statement prepared on a Conn. It is only valid on the Conn that
// prepared it.
type Stmt interface {
	SQL() string
}
