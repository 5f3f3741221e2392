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
	"errors"
	"fmt"
)

var (
	// ErrDefaultRowMissing is returned by Get when neither the entity row nor
	// the default row exists.
	ErrDefaultRowMissing = errors.New("settingsdb: default row missing")

	// ErrUnknownColumn is returned by SetOne for a column that is not in the
	// table's column set.
	ErrUnknownColumn = errors.New("settingsdb: unknown column")

	ErrInvalidTemplates = errors.New("settingsdb: invalid statement templates")
	ErrNilPool          = errors.New("settingsdb: pool is nil")
)

// OpError is the error type returned by every Handler operation.
type OpError struct {
	Op    string // "get", "create_row", "set_one", "delete"
	Table string
	Key   string
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("settingsdb: %s %s[%s]: %v", e.Op, e.Table, e.Key, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
