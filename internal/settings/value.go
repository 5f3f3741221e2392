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

	"github.com/spf13/cast"

	"github.com/cardinalhq/settingsdb/settingsdb"
)

// ParseValue converts raw into the Go value bound for column c of table t.
func ParseValue(t Table, c settingsdb.Column, raw string) (any, error) {
	if !hasColumn(t, c) {
		return nil, fmt.Errorf("%w: %s.%s", settingsdb.ErrUnknownColumn, t, c)
	}

	var (
		v   any
		err error
	)
	switch c {
	case ColChannel:
		// Snowflake ids use the full unsigned range.
		var id uint64
		id, err = strconv.ParseUint(raw, 10, 64)
		v = int64(id)
	case ColXSaid, ColBotIgnore, ColAutoJoin, ColDMBlocked:
		v, err = cast.ToBoolE(raw)
	case ColMsgLength:
		v, err = cast.ToInt16E(raw)
	case ColVolume, ColSpeakingRate:
		v, err = cast.ToFloat64E(raw)
	default:
		v = raw
	}
	if err != nil {
		return nil, fmt.Errorf("invalid value %q for %s.%s: %w", raw, t, c, err)
	}
	return v, nil
}

func hasColumn(t Table, c settingsdb.Column) bool {
	for _, col := range tableDefs[t].columns {
		if col == c {
			return true
		}
	}
	return false
}
