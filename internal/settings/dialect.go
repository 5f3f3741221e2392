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

package settings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cardinalhq/settingsdb/internal/settings/schema"
	"github.com/cardinalhq/settingsdb/settingsdb/pgxconn"
	"github.com/cardinalhq/settingsdb/settingsdb/sqliteconn"
)

// Dialect selects the placeholder syntax and error classification of the
// backing database.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect maps a backend driver name to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case Postgres, SQLite:
		return d, nil
	case "pgx", "postgresql":
		return Postgres, nil
	case "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unknown database dialect %q", s)
}

func (d Dialect) placeholder(n int) string {
	if d == SQLite {
		return "?" + strconv.Itoa(n)
	}
	return "$" + strconv.Itoa(n)
}

// IsUniqueViolation reports whether err is this backend's duplicate-key error.
func (d Dialect) IsUniqueViolation(err error) bool {
	if d == SQLite {
		return sqliteconn.IsUniqueViolation(err)
	}
	return pgxconn.IsUniqueViolation(err)
}

// Schema returns the DDL, including default rows, for this backend.
func (d Dialect) Schema() string {
	if d == SQLite {
		return schema.SQLite
	}
	return schema.Postgres
}
