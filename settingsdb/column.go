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
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ColumnPlaceholder is replaced by the quoted column name in
// Templates.SingleInsert.
const ColumnPlaceholder = "{key}"

// Column names one writable column of a settings table. Tables declare
// their columns up front; SetOne rejects anything else.
type Column string

// Templates are the statements a Handler runs against one table.
//
// Select, Delete and CreateRow bind only the key's identifiers. SingleInsert
// binds the identifiers followed by the new value and contains
// ColumnPlaceholder where the column name goes.
type Templates struct {
	Table        string
	Select       string
	Delete       string
	CreateRow    string
	SingleInsert string
	Columns      []Column
}

func (t Templates) validate() error {
	var missing []string
	if t.Table == "" {
		missing = append(missing, "Table")
	}
	if t.Select == "" {
		missing = append(missing, "Select")
	}
	if t.Delete == "" {
		missing = append(missing, "Delete")
	}
	if t.CreateRow == "" {
		missing = append(missing, "CreateRow")
	}
	if t.SingleInsert == "" {
		missing = append(missing, "SingleInsert")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidTemplates, strings.Join(missing, ", "))
	}
	if !strings.Contains(t.SingleInsert, ColumnPlaceholder) {
		return fmt.Errorf("%w: SingleInsert has no %s placeholder", ErrInvalidTemplates, ColumnPlaceholder)
	}
	for _, c := range t.Columns {
		if c == "" {
			return fmt.Errorf("%w: empty column name", ErrInvalidTemplates)
		}
	}
	return nil
}

// columnSet resolves SingleInsert once per column at construction time so
// SetOne never builds SQL from caller input.
type columnSet map[Column]string

func newColumnSet(singleInsert string, cols []Column) columnSet {
	set := make(columnSet, len(cols))
	for _, c := range cols {
		quoted := pgx.Identifier{string(c)}.Sanitize()
		set[c] = strings.ReplaceAll(singleInsert, ColumnPlaceholder, quoted)
	}
	return set
}

func (s columnSet) statement(c Column) (string, error) {
	sql, ok := s[c]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownColumn, string(c))
	}
	return sql, nil
}
