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
	"strings"

	"github.com/cardinalhq/settingsdb/settingsdb"
)

// Table names a settings table.
type Table string

const (
	Guilds    Table = "guilds"
	Users     Table = "userinfo"
	Nicknames Table = "nicknames"
)

// Tables lists every settings table.
var Tables = []Table{Guilds, Users, Nicknames}

// guilds columns
const (
	ColChannel     settingsdb.Column = "channel"
	ColXSaid       settingsdb.Column = "xsaid"
	ColBotIgnore   settingsdb.Column = "bot_ignore"
	ColAutoJoin    settingsdb.Column = "auto_join"
	ColMsgLength   settingsdb.Column = "msg_length"
	ColPrefix      settingsdb.Column = "prefix"
	ColDefaultLang settingsdb.Column = "default_lang"
	ColVolume      settingsdb.Column = "volume"
)

// userinfo columns
const (
	ColDMBlocked    settingsdb.Column = "dm_blocked"
	ColVoice        settingsdb.Column = "voice"
	ColSpeakingRate settingsdb.Column = "speaking_rate"
)

// nicknames columns
const (
	ColName settingsdb.Column = "name"
)

type tableDef struct {
	ids     []string
	columns []settingsdb.Column
}

var tableDefs = map[Table]tableDef{
	Guilds: {
		ids: []string{"guild_id"},
		columns: []settingsdb.Column{
			ColChannel, ColXSaid, ColBotIgnore, ColAutoJoin,
			ColMsgLength, ColPrefix, ColDefaultLang, ColVolume,
		},
	},
	Users: {
		ids:     []string{"user_id"},
		columns: []settingsdb.Column{ColDMBlocked, ColVoice, ColSpeakingRate},
	},
	Nicknames: {
		ids:     []string{"guild_id", "user_id"},
		columns: []settingsdb.Column{ColName},
	},
}

// ParseTable maps a table name to a Table.
func ParseTable(s string) (Table, error) {
	t := Table(s)
	if _, ok := tableDefs[t]; !ok {
		return "", fmt.Errorf("unknown settings table %q", s)
	}
	return t, nil
}

// Columns returns the writable columns of t.
func Columns(t Table) []settingsdb.Column {
	return append([]settingsdb.Column(nil), tableDefs[t].columns...)
}

// Templates builds the statement templates for t in dialect d.
func Templates(t Table, d Dialect) settingsdb.Templates {
	def := tableDefs[t]

	where := make([]string, len(def.ids))
	params := make([]string, len(def.ids))
	for i, id := range def.ids {
		params[i] = d.placeholder(i + 1)
		where[i] = id + " = " + params[i]
	}
	cond := strings.Join(where, " AND ")

	selected := append([]string(nil), def.ids...)
	for _, c := range def.columns {
		selected = append(selected, string(c))
	}

	return settingsdb.Templates{
		Table:     string(t),
		Select:    fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(selected, ", "), t, cond),
		Delete:    fmt.Sprintf("DELETE FROM %s WHERE %s", t, cond),
		CreateRow: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t, strings.Join(def.ids, ", "), strings.Join(params, ", ")),
		SingleInsert: fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s",
			t, settingsdb.ColumnPlaceholder, d.placeholder(len(def.ids)+1), cond),
		Columns: def.columns,
	}
}
