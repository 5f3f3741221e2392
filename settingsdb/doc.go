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

// Package settingsdb provides cache-aside access to per-entity settings rows.
//
// # Storage Model
//
// Each settings table holds one row per entity, addressed either by a single
// 64-bit id (SimpleKey) or by an ordered pair of ids (CompositeKey). The
// all-zero id of each key shape addresses the default row, which holds the
// system-wide defaults and must exist before a Handler is used.
//
// # Fallback
//
// Get on an entity without a row returns the default row. The lookup is two
// steps (entity, then default); a missing default row is reported as
// ErrDefaultRowMissing.
//
// # Caching
//
// Successful reads are cached as shared, immutable Row snapshots. Writes
// remove the entry instead of updating it, so the next Get re-reads the row.
// A default row served for a key without its own row is cached for that key
// too, but CreateRow does not take it as proof that the key's row exists.
// Concurrent misses on the same key each query the backend unless the
// Handler was built WithSingleFlight.
package settingsdb
