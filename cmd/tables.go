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
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/settingsdb/internal/settings"
	"github.com/cardinalhq/settingsdb/settingsdb"
)

// tableCommands builds the get/set/create/delete commands of one table.
type tableCommands[K settingsdb.Key] struct {
	table   settings.Table
	idNames []string
	handler func(*settings.Store) *settingsdb.Handler[K]
	key     func(ids []uint64) K
}

var (
	guildCommands = tableCommands[settingsdb.SimpleKey]{
		table:   settings.Guilds,
		idNames: []string{"guild_id"},
		handler: func(s *settings.Store) *settingsdb.Handler[settingsdb.SimpleKey] { return s.Guilds },
		key:     func(ids []uint64) settingsdb.SimpleKey { return settingsdb.SimpleKey(ids[0]) },
	}
	userCommands = tableCommands[settingsdb.SimpleKey]{
		table:   settings.Users,
		idNames: []string{"user_id"},
		handler: func(s *settings.Store) *settingsdb.Handler[settingsdb.SimpleKey] { return s.Users },
		key:     func(ids []uint64) settingsdb.SimpleKey { return settingsdb.SimpleKey(ids[0]) },
	}
	nicknameCommands = tableCommands[settingsdb.CompositeKey]{
		table:   settings.Nicknames,
		idNames: []string{"guild_id", "user_id"},
		handler: func(s *settings.Store) *settingsdb.Handler[settingsdb.CompositeKey] { return s.Nicknames },
		key:     func(ids []uint64) settingsdb.CompositeKey { return settingsdb.CompositeKey{ids[0], ids[1]} },
	}
)

func init() {
	guildCmd := &cobra.Command{Use: "guild", Short: "Guild settings"}
	guildCmd.AddCommand(guildCommands.commands()...)

	userCmd := &cobra.Command{Use: "user", Short: "User settings"}
	userCmd.AddCommand(userCommands.commands()...)
	userCmd.AddCommand(blockCommands()...)

	nicknameCmd := &cobra.Command{Use: "nickname", Short: "Per-guild user nicknames"}
	nicknameCmd.AddCommand(nicknameCommands.commands()...)

	rootCmd.AddCommand(guildCmd, userCmd, nicknameCmd)
}

func (tc tableCommands[K]) parseKey(args []string) (K, error) {
	var zero K
	if len(args) < len(tc.idNames) {
		return zero, fmt.Errorf("expected %s", strings.Join(tc.idNames, " "))
	}
	ids := make([]uint64, len(tc.idNames))
	for i, name := range tc.idNames {
		id, err := strconv.ParseUint(args[i], 10, 64)
		if err != nil {
			return zero, fmt.Errorf("invalid %s %q: %w", name, args[i], err)
		}
		ids[i] = id
	}
	return tc.key(ids), nil
}

func (tc tableCommands[K]) use(verb string, extra ...string) string {
	parts := append([]string{verb}, tc.idNames...)
	return strings.Join(append(parts, extra...), " ")
}

func (tc tableCommands[K]) commands() []*cobra.Command {
	n := len(tc.idNames)

	get := &cobra.Command{
		Use:   tc.use("get"),
		Short: fmt.Sprintf("Show a %s row, falling back to the defaults", tc.table),
		Args:  cobra.ExactArgs(n),
		RunE: withStore(func(ctx context.Context, cmd *cobra.Command, store *settings.Store, args []string) error {
			key, err := tc.parseKey(args)
			if err != nil {
				return err
			}
			row, err := tc.handler(store).Get(ctx, key)
			if err != nil {
				return err
			}
			return printRow(cmd.OutOrStdout(), row)
		}),
	}

	set := &cobra.Command{
		Use:   tc.use("set", "value"),
		Short: fmt.Sprintf("Update one column of a %s row", tc.table),
		Long:  fmt.Sprintf("Update one column of a %s row. Columns: %s.", tc.table, columnList(tc.table)),
		Args:  cobra.ExactArgs(n + 1),
		RunE: withStore(func(ctx context.Context, cmd *cobra.Command, store *settings.Store, args []string) error {
			key, err := tc.parseKey(args)
			if err != nil {
				return err
			}
			name, err := cmd.Flags().GetString("column")
			if err != nil {
				return err
			}
			col := settingsdb.Column(name)
			value, err := settings.ParseValue(tc.table, col, args[n])
			if err != nil {
				return err
			}
			return tc.handler(store).SetOne(ctx, key, col, value)
		}),
	}
	set.Flags().String("column", "", "column to update")
	_ = set.MarkFlagRequired("column")

	create := &cobra.Command{
		Use:   tc.use("create"),
		Short: fmt.Sprintf("Insert a %s row holding the column defaults", tc.table),
		Args:  cobra.ExactArgs(n),
		RunE: withStore(func(ctx context.Context, _ *cobra.Command, store *settings.Store, args []string) error {
			key, err := tc.parseKey(args)
			if err != nil {
				return err
			}
			return tc.handler(store).CreateRow(ctx, key)
		}),
	}

	del := &cobra.Command{
		Use:   tc.use("delete"),
		Short: fmt.Sprintf("Delete a %s row", tc.table),
		Args:  cobra.ExactArgs(n),
		RunE: withStore(func(ctx context.Context, _ *cobra.Command, store *settings.Store, args []string) error {
			key, err := tc.parseKey(args)
			if err != nil {
				return err
			}
			return tc.handler(store).Delete(ctx, key)
		}),
	}

	return []*cobra.Command{get, set, create, del}
}

func blockCommands() []*cobra.Command {
	block := &cobra.Command{
		Use:   "block user_id",
		Short: "Ignore direct messages from a user",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, _ *cobra.Command, store *settings.Store, args []string) error {
			key, err := userCommands.parseKey(args)
			if err != nil {
				return err
			}
			return store.BlockUser(ctx, uint64(key))
		}),
	}
	unblock := &cobra.Command{
		Use:   "unblock user_id",
		Short: "Read direct messages from a user again",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, _ *cobra.Command, store *settings.Store, args []string) error {
			key, err := userCommands.parseKey(args)
			if err != nil {
				return err
			}
			return store.UnblockUser(ctx, uint64(key))
		}),
	}
	return []*cobra.Command{block, unblock}
}

func columnList(t settings.Table) string {
	cols := settings.Columns(t)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func printRow(w io.Writer, row *settingsdb.Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, col := range row.Columns() {
		v, _ := row.Value(col)
		switch tv := v.(type) {
		case nil:
			v = "NULL"
		case []byte:
			v = string(tv)
		}
		if _, err := fmt.Fprintf(tw, "%s\t%v\n", col, v); err != nil {
			return err
		}
	}
	return tw.Flush()
}
