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

package settingsdb

import (
	"log/slog"
	"time"
)

type handlerOptions struct {
	ttl          time.Duration
	capacity     uint64
	singleFlight bool
	logger       *slog.Logger
}

// Option configures a Handler.
type Option func(*handlerOptions)

// WithTTL bounds how long a cached row is served before it is re-read.
// Zero, the default, keeps rows until a write through the Handler removes
// them.
func WithTTL(ttl time.Duration) Option {
	return func(o *handlerOptions) {
		o.ttl = ttl
	}
}

// WithCapacity bounds the number of cached rows. The least recently used
// row is evicted first. Zero means unbounded.
func WithCapacity(n uint64) Option {
	return func(o *handlerOptions) {
		o.capacity = n
	}
}

// WithSingleFlight makes concurrent Get misses for the same key share one
// database read.
func WithSingleFlight() Option {
	return func(o *handlerOptions) {
		o.singleFlight = true
	}
}

// WithLogger sets the logger for cache and fallback events.
func WithLogger(l *slog.Logger) Option {
	return func(o *handlerOptions) {
		o.logger = l
	}
}

func defaultHandlerOptions() handlerOptions {
	return handlerOptions{
		logger: slog.Default(),
	}
}
