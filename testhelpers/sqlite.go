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

package testhelpers

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/cardinalhq/settingsdb/internal/settings/schema"
	"github.com/cardinalhq/settingsdb/settingsdb/sqliteconn"
)

// SetupTestSQLite opens a SQLite database in t.TempDir with the settings
// schema and default rows loaded. The database is closed with t.Cleanup.
func SetupTestSQLite(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := sqliteconn.Open(ctx, filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.ExecContext(ctx, schema.SQLite); err != nil {
		t.Fatalf("Failed to load settings schema: %v", err)
	}
	return db
}
