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
	"strconv"
)

// Row is an immutable snapshot of one settings row. A *Row returned by a
// Handler may be shared between goroutines; callers must not modify it.
type Row struct {
	columns []string
	values  []any
	index   map[string]int
}

// NewRow builds a Row from parallel column and value slices. The slices are
// copied. Used by Conn implementations.
func NewRow(columns []string, values []any) *Row {
	if len(columns) != len(values) {
		panic(fmt.Sprintf("settingsdb: %d columns but %d values", len(columns), len(values)))
	}
	r := &Row{
		columns: append([]string(nil), columns...),
		values:  append([]any(nil), values...),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range r.columns {
		r.index[c] = i
	}
	return r
}

// Columns returns the column names in select order.
func (r *Row) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Value returns the raw driver value for col.
func (r *Row) Value(col string) (any, bool) {
	i, ok := r.index[col]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// IsNull reports whether col is present and SQL NULL.
func (r *Row) IsNull(col string) bool {
	v, ok := r.Value(col)
	return ok && v == nil
}

// Float64 returns col as a float64. Integer columns are widened.
func (r *Row) Float64(col string) (float64, error) {
	v, err := r.nonNull(col)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int16:
		return float64(t), nil
	case []byte:
		return strconv.ParseFloat(string(t), 64)
	case string:
		return strconv.ParseFloat(t, 64)
	}
	return 0, r.typeError(col, "float64", v)
}

// Int64 returns col as an int64.
func (r *Row) Int64(col string) (int64, error) {
	v, err := r.nonNull(col)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int:
		return int64(t), nil
	case []byte:
		return strconv.ParseInt(string(t), 10, 64)
	case string:
		return strconv.ParseInt(t, 10, 64)
	}
	return 0, r.typeError(col, "int64", v)
}

// String returns col as a string. A NULL column is an error; check IsNull
// first for nullable columns.
func (r *Row) String(col string) (string, error) {
	v, err := r.nonNull(col)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	}
	return "", r.typeError(col, "string", v)
}

// Bool returns col as a bool. SQLite stores booleans as integers, so 0 and
// 1 are accepted.
func (r *Row) Bool(col string) (bool, error) {
	v, err := r.nonNull(col)
	if err != nil {
		return false, err
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case int32:
		return t != 0, nil
	}
	return false, r.typeError(col, "bool", v)
}

func (r *Row) nonNull(col string) (any, error) {
	v, ok := r.Value(col)
	if !ok {
		return nil, fmt.Errorf("settingsdb: no column %q in row", col)
	}
	if v == nil {
		return nil, fmt.Errorf("settingsdb: column %q is NULL", col)
	}
	return v, nil
}

func (r *Row) typeError(col, want string, v any) error {
	return fmt.Errorf("settingsdb: column %q holds %T, not convertible to %s", col, v, want)
}
