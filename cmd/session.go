// Copyright (C) 2025 CardinalHQ, Inc
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

package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/settingsdb/config"
	"github.com/cardinalhq/settingsdb/internal/dbopen"
	"github.com/cardinalhq/settingsdb/internal/settings"
)

// withStore wraps fn so it runs with telemetry set up and a Store opened on
// the configured backend.
func withStore(fn func(ctx context.Context, cmd *cobra.Command, store *settings.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		doneCtx, doneFx, err := setupTelemetry(serviceName)
		if err != nil {
			return fmt.Errorf("failed to setup telemetry: %w", err)
		}
		defer func() {
			if err := doneFx(); err != nil {
				slog.Error("Error shutting down telemetry", slog.Any("error", err))
			}
		}()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := dbopen.Open(doneCtx, cfg.Backend)
		if err != nil {
			slog.Error("Failed to open settings database", slog.Any("error", err))
			return fmt.Errorf("failed to open settings database: %w", err)
		}
		defer db.Close()

		store, err := settings.NewStore(db.Pool, db.Dialect, cfg.Cache.Options()...)
		if err != nil {
			return fmt.Errorf("failed to create settings store: %w", err)
		}
		defer store.Close()

		return fn(doneCtx, cmd, store, args)
	}
}
