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

	"github.com/cardinalhq/settingsdb/internal/settings"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Check that every settings table has its default row",
		Args:  cobra.NoArgs,
		RunE: withStore(func(ctx context.Context, cmd *cobra.Command, store *settings.Store, _ []string) error {
			if err := store.VerifyDefaults(ctx); err != nil {
				slog.Error("Settings tables are missing default rows", slog.Any("error", err))
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "all default rows present")
			return err
		}),
	})
}
