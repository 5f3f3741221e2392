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

// Package schema embeds the DDL for the settings tables together with the
// default rows every table must carry. The service does not manage its own
// schema; these files bootstrap local SQLite databases and test databases.
package schema

import (
	_ "embed"
)

//go:embed postgres.sql
var Postgres string

//go:embed sqlite.sql
var SQLite string
