//go:build integration

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
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orlangure/gnomock"
	pgpreset "github.com/orlangure/gnomock/preset/postgres"

	"github.com/cardinalhq/settingsdb/internal/settings/schema"
)

const (
	postgresUser     = "postgres"
	postgresPassword = "password"
	postgresBaseDB   = "settings"
)

// PostgresContainer is a postgres server shared by the tests of one package.
type PostgresContainer struct {
	container *gnomock.Container
	baseURL   string
}

// StartPostgres starts a postgres container. Call it from TestMain and Stop
// the container once the tests finish.
func StartPostgres() (*PostgresContainer, error) {
	container, err := gnomock.Start(
		pgpreset.Preset(pgpreset.WithDatabase(postgresBaseDB)),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}
	return &PostgresContainer{
		container: container,
		baseURL:   databaseURL(container.DefaultAddress(), postgresBaseDB),
	}, nil
}

// Stop removes the container.
func (c *PostgresContainer) Stop() error {
	return gnomock.Stop(c.container)
}

func databaseURL(addr, dbName string) string {
	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(postgresUser, postgresPassword),
		Host:     addr,
		Path:     "/" + dbName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SetupTestPostgres creates a clean database on c with the settings schema
// and default rows loaded. Returns its URL and registers cleanup with
// t.Cleanup.
func SetupTestPostgres(t *testing.T, c *PostgresContainer) string {
	t.Helper()

	ctx := context.Background()
	dbName := fmt.Sprintf("test_settings_%d_%d", time.Now().Unix(), rand.Intn(10000))

	basePool, err := pgxpool.New(ctx, c.baseURL)
	if err != nil {
		t.Fatalf("Failed to connect to base database: %v", err)
	}

	if _, err = basePool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		basePool.Close()
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}

	testURL := databaseURL(c.container.DefaultAddress(), dbName)
	testPool, err := pgxpool.New(ctx, testURL)
	if err != nil {
		basePool.Close()
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	_, err = testPool.Exec(ctx, schema.Postgres)
	testPool.Close()
	if err != nil {
		basePool.Close()
		t.Fatalf("Failed to load settings schema: %v", err)
	}

	t.Cleanup(func() {
		_, err := basePool.Exec(context.Background(), fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName))
		if err != nil {
			slog.Error("Failed to drop test database", slog.String("dbName", dbName), slog.Any("error", err))
		}
		basePool.Close()
	})

	return testURL
}
