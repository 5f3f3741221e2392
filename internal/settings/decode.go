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
	"errors"

	"github.com/cardinalhq/settingsdb/settingsdb"
)

// GuildSettings is the decoded form of a guilds row.
type GuildSettings struct {
	Channel     uint64
	XSaid       bool
	BotIgnore   bool
	AutoJoin    bool
	MsgLength   int
	Prefix      string
	DefaultLang string
	Volume      float64
}

// UserSettings is the decoded form of a userinfo row.
type UserSettings struct {
	DMBlocked    bool
	Voice        string
	SpeakingRate float64
}

// Nickname is the decoded form of a nicknames row. Valid is false when the
// row carries no name.
type Nickname struct {
	Name  string
	Valid bool
}

// rowDecoder collects the first accessor error so decoders read straight
// through a row.
type rowDecoder struct {
	row *settingsdb.Row
	err error
}

func (d *rowDecoder) int64(c settingsdb.Column) int64 {
	v, err := d.row.Int64(string(c))
	d.err = errors.Join(d.err, err)
	return v
}

func (d *rowDecoder) float64(c settingsdb.Column) float64 {
	v, err := d.row.Float64(string(c))
	d.err = errors.Join(d.err, err)
	return v
}

func (d *rowDecoder) bool(c settingsdb.Column) bool {
	v, err := d.row.Bool(string(c))
	d.err = errors.Join(d.err, err)
	return v
}

func (d *rowDecoder) string(c settingsdb.Column) string {
	v, err := d.row.String(string(c))
	d.err = errors.Join(d.err, err)
	return v
}

// DecodeGuild decodes a guilds row.
func DecodeGuild(row *settingsdb.Row) (GuildSettings, error) {
	d := rowDecoder{row: row}
	g := GuildSettings{
		Channel:     uint64(d.int64(ColChannel)),
		XSaid:       d.bool(ColXSaid),
		BotIgnore:   d.bool(ColBotIgnore),
		AutoJoin:    d.bool(ColAutoJoin),
		MsgLength:   int(d.int64(ColMsgLength)),
		Prefix:      d.string(ColPrefix),
		DefaultLang: d.string(ColDefaultLang),
		Volume:      d.float64(ColVolume),
	}
	return g, d.err
}

// DecodeUser decodes a userinfo row.
func DecodeUser(row *settingsdb.Row) (UserSettings, error) {
	d := rowDecoder{row: row}
	u := UserSettings{
		DMBlocked:    d.bool(ColDMBlocked),
		Voice:        d.string(ColVoice),
		SpeakingRate: d.float64(ColSpeakingRate),
	}
	return u, d.err
}

// DecodeNickname decodes a nicknames row.
func DecodeNickname(row *settingsdb.Row) (Nickname, error) {
	if row.IsNull(string(ColName)) {
		return Nickname{}, nil
	}
	name, err := row.String(string(ColName))
	if err != nil {
		return Nickname{}, err
	}
	return Nickname{Name: name, Valid: true}, nil
}
