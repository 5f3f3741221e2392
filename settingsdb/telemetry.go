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
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/cardinalhq/settingsdb"

var (
	meter  = otel.Meter(instrumentationName)
	tracer = otel.Tracer(instrumentationName)

	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
	defaultFallbacks metric.Int64Counter
	opDuration       metric.Float64Histogram
)

func init() {
	var err error

	cacheHits, err = meter.Int64Counter(
		"settingsdb.cache.hits",
		metric.WithDescription("Number of Get calls served from the row cache"),
	)
	if err != nil {
		log.Fatalf("failed to create cache.hits counter: %v", err)
	}

	cacheMisses, err = meter.Int64Counter(
		"settingsdb.cache.misses",
		metric.WithDescription("Number of Get calls that read through to the database"),
	)
	if err != nil {
		log.Fatalf("failed to create cache.misses counter: %v", err)
	}

	defaultFallbacks, err = meter.Int64Counter(
		"settingsdb.fetch.default_fallbacks",
		metric.WithDescription("Number of fetches answered with the default row"),
	)
	if err != nil {
		log.Fatalf("failed to create fetch.default_fallbacks counter: %v", err)
	}

	opDuration, err = meter.Float64Histogram(
		"settingsdb.op.duration",
		metric.WithUnit("s"),
		metric.WithDescription("The duration in seconds of a settings operation that touched the database"),
	)
	if err != nil {
		log.Fatalf("failed to create op.duration histogram: %v", err)
	}
}

// registerCacheSizeGauge reports the number of cached rows for one handler.
func registerCacheSizeGauge(table string, size func() int) (metric.Registration, error) {
	gauge, err := meter.Int64ObservableGauge(
		"settingsdb.cache.size",
		metric.WithDescription("Number of rows currently cached"),
	)
	if err != nil {
		return nil, err
	}
	attrs := metric.WithAttributeSet(attribute.NewSet(attribute.String("table", table)))
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, int64(size()), attrs)
		return nil
	}, gauge)
}

func recordOp(ctx context.Context, table, op string, start time.Time, err error) {
	opDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("op", op),
		attribute.Bool("error", err != nil),
	))
}

// fetchNote lets a Key report, through ctx, that it answered with the
// default row.
type fetchNote struct {
	fellBack bool
}

type fetchNoteKey struct{}

func withFetchNote(ctx context.Context) (context.Context, *fetchNote) {
	n := &fetchNote{}
	return context.WithValue(ctx, fetchNoteKey{}, n), n
}

func noteFallback(ctx context.Context) {
	if n, ok := ctx.Value(fetchNoteKey{}).(*fetchNote); ok {
		n.fellBack = true
	}
}
