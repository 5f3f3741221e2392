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
	"fmt"
	"strconv"
)

// Key is the contract a key shape implements so a Handler can address rows
// without knowing how many identifier columns the table has.
//
// Statements passed to each method were prepared from the matching
// template; the key binds its identifier fields as the leading parameters.
type Key interface {
	comparable
	fmt.Stringer

	// Fetch runs the select statement for this key. If no row exists it
	// runs it again for the default key of the same shape.
	Fetch(ctx context.Context, conn Conn, stmt Stmt) (*Row, error)

	// SetOne runs the single-column update with the key's identifiers
	// followed by value.
	SetOne(ctx context.Context, conn Conn, stmt Stmt, value any) error

	// CreateRow runs the insert with only the key's identifiers bound.
	CreateRow(ctx context.Context, conn Conn, stmt Stmt) error

	// Delete runs the delete statement for this key.
	Delete(ctx context.Context, conn Conn, stmt Stmt) error
}

// SimpleKey addresses a row by one id, such as a guild or user id.
// SimpleKey(0) is the default row.
type SimpleKey uint64

// DefaultSimpleKey addresses the default row of a SimpleKey table.
const DefaultSimpleKey SimpleKey = 0

func (k SimpleKey) String() string {
	return strconv.FormatUint(uint64(k), 10)
}

func (k SimpleKey) args() []any {
	return []any{int64(k)}
}

func (k SimpleKey) Fetch(ctx context.Context, conn Conn, stmt Stmt) (*Row, error) {
	return fetchOrDefault(ctx, conn, stmt, k.args(), k == DefaultSimpleKey, DefaultSimpleKey.args())
}

func (k SimpleKey) SetOne(ctx context.Context, conn Conn, stmt Stmt, value any) error {
	return conn.Exec(ctx, stmt, append(k.args(), value)...)
}

func (k SimpleKey) CreateRow(ctx context.Context, conn Conn, stmt Stmt) error {
	return conn.Exec(ctx, stmt, k.args()...)
}

func (k SimpleKey) Delete(ctx context.Context, conn Conn, stmt Stmt) error {
	return conn.Exec(ctx, stmt, k.args()...)
}

// CompositeKey addresses a row by an ordered pair of ids, such as
// (guild id, user id). The ids are bound in order. CompositeKey{0, 0} is the
// default row.
type CompositeKey [2]uint64

// DefaultCompositeKey returns the key of the default row of a CompositeKey
// table.
func DefaultCompositeKey() CompositeKey {
	return CompositeKey{}
}

func (k CompositeKey) String() string {
	return strconv.FormatUint(k[0], 10) + ":" + strconv.FormatUint(k[1], 10)
}

func (k CompositeKey) args() []any {
	return []any{int64(k[0]), int64(k[1])}
}

func (k CompositeKey) Fetch(ctx context.Context, conn Conn, stmt Stmt) (*Row, error) {
	return fetchOrDefault(ctx, conn, stmt, k.args(), k == CompositeKey{}, CompositeKey{}.args())
}

func (k CompositeKey) SetOne(ctx context.Context, conn Conn, stmt Stmt, value any) error {
	return conn.Exec(ctx, stmt, append(k.args(), value)...)
}

func (k CompositeKey) CreateRow(ctx context.Context, conn Conn, stmt Stmt) error {
	return conn.Exec(ctx, stmt, k.args()...)
}

func (k CompositeKey) Delete(ctx context.Context, conn Conn, stmt Stmt) error {
	return conn.Exec(ctx, stmt, k.args()...)
}

// Handler must accept both key shapes.
var (
	_ = (*Handler[SimpleKey])(nil)
	_ = (*Handler[CompositeKey])(nil)
)

// fetchOrDefault looks up args, then defaultArgs. It does not recurse: if the
// default row is absent the lookup fails with ErrDefaultRowMissing.
func fetchOrDefault(ctx context.Context, conn Conn, stmt Stmt, args []any, isDefault bool, defaultArgs []any) (*Row, error) {
	row, err := conn.QueryOptional(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}
	if isDefault {
		return nil, ErrDefaultRowMissing
	}

	noteFallback(ctx)
	row, err = conn.QueryOptional(ctx, stmt, defaultArgs...)
	if err != nil {
		return nil, fmt.Errorf("fetch default row: %w", err)
	}
	if row == nil {
		return nil, ErrDefaultRowMissing
	}
	return row, nil
}
