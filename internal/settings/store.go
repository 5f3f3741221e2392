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

// Package settings wires the settings tables of the TTS bot onto
// cache-aside handlers and offers the typed operations its event handlers
// need.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/settingsdb/settingsdb"
)

// Store holds one handler per settings table.
type Store struct {
	Guilds    *settingsdb.Handler[settingsdb.SimpleKey]
	Users     *settingsdb.Handler[settingsdb.SimpleKey]
	Nicknames *settingsdb.Handler[settingsdb.CompositeKey]

	dialect Dialect
}

// NewStore creates handlers for every settings table on pool. opts apply to
// each handler.
func NewStore(pool settingsdb.Pool, dialect Dialect, opts ...settingsdb.Option) (*Store, error) {
	s := &Store{dialect: dialect}

	var err error
	if s.Guilds, err = settingsdb.New[settingsdb.SimpleKey](pool, Templates(Guilds, dialect), opts...); err != nil {
		return nil, fmt.Errorf("guilds handler: %w", err)
	}
	if s.Users, err = settingsdb.New[settingsdb.SimpleKey](pool, Templates(Users, dialect), opts...); err != nil {
		s.Guilds.Close()
		return nil, fmt.Errorf("userinfo handler: %w", err)
	}
	if s.Nicknames, err = settingsdb.New[settingsdb.CompositeKey](pool, Templates(Nicknames, dialect), opts...); err != nil {
		s.Guilds.Close()
		s.Users.Close()
		return nil, fmt.Errorf("nicknames handler: %w", err)
	}
	return s, nil
}

// Close stops every handler.
func (s *Store) Close() {
	s.Guilds.Close()
	s.Users.Close()
	s.Nicknames.Close()
}

// VerifyDefaults reads the default row of every table and reports each one
// that cannot be loaded.
func (s *Store) VerifyDefaults(ctx context.Context) error {
	var errs *multierror.Error
	if _, err := s.Guilds.Get(ctx, settingsdb.DefaultSimpleKey); err != nil {
		errs = multierror.Append(errs, err)
	}
	if _, err := s.Users.Get(ctx, settingsdb.DefaultSimpleKey); err != nil {
		errs = multierror.Append(errs, err)
	}
	if _, err := s.Nicknames.Get(ctx, settingsdb.DefaultCompositeKey()); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// Guild returns the settings of a guild, or the defaults if it has no row.
func (s *Store) Guild(ctx context.Context, guildID uint64) (GuildSettings, error) {
	row, err := s.Guilds.Get(ctx, settingsdb.SimpleKey(guildID))
	if err != nil {
		return GuildSettings{}, err
	}
	return DecodeGuild(row)
}

// User returns the settings of a user, or the defaults if it has no row.
func (s *Store) User(ctx context.Context, userID uint64) (UserSettings, error) {
	row, err := s.Users.Get(ctx, settingsdb.SimpleKey(userID))
	if err != nil {
		return UserSettings{}, err
	}
	return DecodeUser(row)
}

// Nickname returns the nickname of a user within a guild.
func (s *Store) Nickname(ctx context.Context, guildID, userID uint64) (Nickname, error) {
	row, err := s.Nicknames.Get(ctx, settingsdb.CompositeKey{guildID, userID})
	if err != nil {
		return Nickname{}, err
	}
	return DecodeNickname(row)
}

// GuildJoined makes sure a row exists for a guild the bot was added to.
func (s *Store) GuildJoined(ctx context.Context, guildID uint64) error {
	return ensureRow(ctx, s.dialect, s.Guilds, settingsdb.SimpleKey(guildID))
}

// GuildLeft removes the settings of a guild the bot was removed from.
func (s *Store) GuildLeft(ctx context.Context, guildID uint64) error {
	return s.Guilds.Delete(ctx, settingsdb.SimpleKey(guildID))
}

// BlockUser stops the bot from reading direct messages sent by a user.
func (s *Store) BlockUser(ctx context.Context, userID uint64) error {
	return s.setUserBlocked(ctx, userID, true)
}

// UnblockUser reverses BlockUser.
func (s *Store) UnblockUser(ctx context.Context, userID uint64) error {
	return s.setUserBlocked(ctx, userID, false)
}

func (s *Store) setUserBlocked(ctx context.Context, userID uint64, blocked bool) error {
	key := settingsdb.SimpleKey(userID)
	if err := ensureRow(ctx, s.dialect, s.Users, key); err != nil {
		return err
	}
	return s.Users.SetOne(ctx, key, ColDMBlocked, blocked)
}

// IsBlocked reports whether a user has blocked direct messages.
func (s *Store) IsBlocked(ctx context.Context, userID uint64) (bool, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.DMBlocked, nil
}

// SetNickname records the name spoken for a user within a guild.
func (s *Store) SetNickname(ctx context.Context, guildID, userID uint64, name string) error {
	key := settingsdb.CompositeKey{guildID, userID}
	if err := ensureRow(ctx, s.dialect, s.Nicknames, key); err != nil {
		return err
	}
	return s.Nicknames.SetOne(ctx, key, ColName, name)
}

// ensureRow creates the row for key, treating an existing row as success.
func ensureRow[K settingsdb.Key](ctx context.Context, d Dialect, h *settingsdb.Handler[K], key K) error {
	err := h.CreateRow(ctx, key)
	if err != nil && d.IsUniqueViolation(err) {
		slog.Debug("Settings row already exists", slog.String("table", h.Table()), slog.String("key", key.String()))
		return nil
	}
	return err
}

// IsNotConfigured reports whether err means a table is missing its default
// row.
func IsNotConfigured(err error) bool {
	return errors.Is(err, settingsdb.ErrDefaultRowMissing)
}
