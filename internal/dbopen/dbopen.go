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

// Package dbopen opens the database holding the settings tables.
package dbopen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/cardinalhq/settingsdb/config"
	"github.com/cardinalhq/settingsdb/internal/settings"
	"github.com/cardinalhq/settingsdb/settingsdb"
	"github.com/cardinalhq/settingsdb/settingsdb/pgxconn"
	"github.com/cardinalhq/settingsdb/settingsdb/sqliteconn"
)

var ErrDatabaseNotConfigured = errors.New("database connection configuration is unavailable")

// GetDatabaseURLFromEnv constructs a PostgreSQL URL from environment
// variables named PREFIX_HOST, PREFIX_PORT, PREFIX_USER, PREFIX_PASSWORD,
// PREFIX_DBNAME, and optionally PREFIX_SSLMODE. If PREFIX does not end in
// "_", it will be added automatically. PREFIX_URL, when set, wins.
//
// It requires at minimum HOST and DBNAME, and will default PORT to 5432.
// Returns an error listing any missing required variables.
func GetDatabaseURLFromEnv(prefix string) (string, error) {
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	if urlStr := os.Getenv(prefix + "URL"); urlStr != "" {
		return urlStr, nil
	}

	host := os.Getenv(prefix + "HOST")
	dbname := os.Getenv(prefix + "DBNAME")

	var missing []string
	if host == "" {
		missing = append(missing, prefix+"HOST")
	}
	if dbname == "" {
		missing = append(missing, prefix+"DBNAME")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf(
			"%w: missing required environment variable(s): %s",
			ErrDatabaseNotConfigured,
			strings.Join(missing, ", "),
		)
	}

	port := os.Getenv(prefix + "PORT")
	if port == "" {
		port = "5432"
	}

	u := &url.URL{
		Scheme: "postgresql",
		Host:   host + ":" + port,
		Path:   dbname,
	}

	if user := os.Getenv(prefix + "USER"); user != "" {
		if pass := os.Getenv(prefix + "PASSWORD"); pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}

	q := u.Query()
	if sslmode := os.Getenv(prefix + "SSLMODE"); sslmode != "" {
		q.Set("sslmode", sslmode)
	}
	if appName := applicationName(os.Getenv("OTEL_SERVICE_NAME")); appName != "" {
		q.Set("application_name", appName)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// applicationName reduces a service name to the characters postgres
// accepts in application_name, truncated to 63 bytes.
func applicationName(name string) string {
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

// Database is an open settings database.
type Database struct {
	Pool    settingsdb.Pool
	Dialect settings.Dialect
	close   func()
}

// Close releases the underlying connections.
func (d *Database) Close() {
	if d.close != nil {
		d.close()
	}
}

// Open connects to the backend selected by cfg.
func Open(ctx context.Context, cfg config.BackendConfig) (*Database, error) {
	dialect, err := settings.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case settings.SQLite:
		return openSQLite(ctx, cfg)
	default:
		return openPostgres(ctx)
	}
}

func openPostgres(ctx context.Context) (*Database, error) {
	dbURL, err := GetDatabaseURLFromEnv(config.EnvPrefix)
	if err != nil {
		return nil, err
	}
	pool, err := pgxconn.NewConnectionPool(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	slog.Info("Connected to settings database", slog.String("driver", string(settings.Postgres)))
	return &Database{
		Pool:    pgxconn.New(pool),
		Dialect: settings.Postgres,
		close:   pool.Close,
	}, nil
}

func openSQLite(ctx context.Context, cfg config.BackendConfig) (*Database, error) {
	db, err := sqliteconn.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	if cfg.Bootstrap {
		if _, err := db.ExecContext(ctx, settings.SQLite.Schema()); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap sqlite schema: %w", err)
		}
		slog.Info("Bootstrapped settings schema", slog.String("path", cfg.SQLitePath))
	}
	slog.Info("Connected to settings database",
		slog.String("driver", string(settings.SQLite)),
		slog.String("path", cfg.SQLitePath))
	return &Database{
		Pool:    sqliteconn.New(db),
		Dialect: settings.SQLite,
		close:   func() { _ = db.Close() },
	}, nil
}
