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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// entry is a cached read. fallback marks a default row served for a key
// that has no row of its own.
type entry struct {
	row      *Row
	fallback bool
}

// Handler is a read-through, write-invalidate cache over one settings table.
// One Handler is created per table and shared by all callers.
type Handler[K Key] struct {
	pool    Pool
	tmpl    Templates
	columns columnSet
	cache   *ttlcache.Cache[K, entry]
	group   *singleflight.Group
	logger  *slog.Logger
	attrs   metric.MeasurementOption

	gauge     metric.Registration
	closeOnce sync.Once
}

// New creates a Handler for the table described by tmpl.
func New[K Key](pool Pool, tmpl Templates, opts ...Option) (*Handler[K], error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	if err := tmpl.validate(); err != nil {
		return nil, err
	}

	o := defaultHandlerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	cacheOpts := []ttlcache.Option[K, entry]{
		ttlcache.WithDisableTouchOnHit[K, entry](),
	}
	if o.ttl > 0 {
		cacheOpts = append(cacheOpts, ttlcache.WithTTL[K, entry](o.ttl))
	}
	if o.capacity > 0 {
		cacheOpts = append(cacheOpts, ttlcache.WithCapacity[K, entry](o.capacity))
	}

	h := &Handler[K]{
		pool:    pool,
		tmpl:    tmpl,
		columns: newColumnSet(tmpl.SingleInsert, tmpl.Columns),
		cache:   ttlcache.New(cacheOpts...),
		logger:  o.logger.With(slog.String("table", tmpl.Table)),
		attrs:   metric.WithAttributeSet(attribute.NewSet(attribute.String("table", tmpl.Table))),
	}
	if o.singleFlight {
		h.group = &singleflight.Group{}
	}
	go h.cache.Start()

	reg, err := registerCacheSizeGauge(tmpl.Table, h.Len)
	if err != nil {
		h.logger.Warn("Failed to register cache size gauge", slog.Any("error", err))
	} else {
		h.gauge = reg
	}

	return h, nil
}

// Table returns the table name the Handler was created for.
func (h *Handler[K]) Table() string {
	return h.tmpl.Table
}

// Close stops the cache's expiration goroutine. The Handler must not be
// used afterwards. The pool is owned by the caller and is left open.
func (h *Handler[K]) Close() {
	h.closeOnce.Do(func() {
		h.cache.Stop()
		if h.gauge != nil {
			_ = h.gauge.Unregister()
		}
	})
}

// Get returns the row for key, or the default row if key has none.
// A cached row is returned without touching the database.
func (h *Handler[K]) Get(ctx context.Context, key K) (*Row, error) {
	if item := h.cache.Get(key); item != nil {
		cacheHits.Add(ctx, 1, h.attrs)
		return item.Value().row, nil
	}
	cacheMisses.Add(ctx, 1, h.attrs)

	if h.group == nil {
		return h.load(ctx, key)
	}
	return h.loadShared(ctx, key)
}

// loadShared runs one load per key for all concurrent callers. The load is
// detached from the cancellation of the caller that started it; each caller
// stops waiting when its own ctx is done.
func (h *Handler[K]) loadShared(ctx context.Context, key K) (*Row, error) {
	loadCtx := context.WithoutCancel(ctx)
	ch := h.group.DoChan(key.String(), func() (any, error) {
		// a flight started just after another one stored the row
		if item := h.cache.Get(key); item != nil {
			return item.Value().row, nil
		}
		return h.load(loadCtx, key)
	})

	select {
	case <-ctx.Done():
		return nil, h.opError("get", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Row), nil
	}
}

func (h *Handler[K]) load(ctx context.Context, key K) (*Row, error) {
	var (
		row      *Row
		fallback bool
	)
	err := h.withStatement(ctx, "get", key, h.tmpl.Select, func(ctx context.Context, conn Conn, stmt Stmt) error {
		ctx, note := withFetchNote(ctx)
		r, err := key.Fetch(ctx, conn, stmt)
		if err != nil {
			return err
		}
		if note.fellBack {
			defaultFallbacks.Add(ctx, 1, h.attrs)
			h.logger.Debug("Row missing, using default row", slog.String("key", key.String()))
		}
		row = r
		fallback = note.fellBack
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.cache.Set(key, entry{row: row, fallback: fallback}, ttlcache.DefaultTTL)
	return row, nil
}

// CreateRow inserts a row for key holding the table's column defaults.
//
// A key whose own row is cached is known to exist and nothing is done.
// Otherwise the insert is attempted, and inserting a row that already exists
// fails with the backend's uniqueness error. A cached default-row fallback
// for key is dropped once the insert succeeds.
func (h *Handler[K]) CreateRow(ctx context.Context, key K) error {
	if item := h.cache.Get(key); item != nil && !item.Value().fallback {
		return nil
	}
	err := h.withStatement(ctx, "create_row", key, h.tmpl.CreateRow, func(ctx context.Context, conn Conn, stmt Stmt) error {
		return key.CreateRow(ctx, conn, stmt)
	})
	if err != nil {
		return err
	}
	h.cache.Delete(key)
	return nil
}

// SetOne writes value to column col of key's row and drops key from the
// cache. The row is expected to exist; updating a missing row is not an
// error and changes nothing.
func (h *Handler[K]) SetOne(ctx context.Context, key K, col Column, value any) error {
	sql, err := h.columns.statement(col)
	if err != nil {
		return h.opError("set_one", key, err)
	}
	err = h.withStatement(ctx, "set_one", key, sql, func(ctx context.Context, conn Conn, stmt Stmt) error {
		return key.SetOne(ctx, conn, stmt, value)
	})
	if err != nil {
		return err
	}
	h.Invalidate(key)
	return nil
}

// Delete removes key's row, if any, and drops key from the cache.
func (h *Handler[K]) Delete(ctx context.Context, key K) error {
	err := h.withStatement(ctx, "delete", key, h.tmpl.Delete, func(ctx context.Context, conn Conn, stmt Stmt) error {
		return key.Delete(ctx, conn, stmt)
	})
	if err != nil {
		return err
	}
	h.Invalidate(key)
	return nil
}

// Invalidate drops key from the cache without touching the database.
func (h *Handler[K]) Invalidate(key K) {
	h.cache.Delete(key)
	h.logger.Debug("Invalidated cached row", slog.String("key", key.String()))
}

// Cached returns the cached row for key, if any, without reading through.
func (h *Handler[K]) Cached(key K) (*Row, bool) {
	item := h.cache.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value().row, true
}

// Len returns the number of cached rows.
func (h *Handler[K]) Len() int {
	return h.cache.Len()
}

// withStatement acquires a connection, prepares sql on it and runs fn.
// The connection is always released.
func (h *Handler[K]) withStatement(ctx context.Context, op string, key K, sql string, fn func(context.Context, Conn, Stmt) error) (err error) {
	ctx, span := tracer.Start(ctx, "settingsdb."+op, trace.WithAttributes(
		attribute.String("table", h.tmpl.Table),
		attribute.String("key", key.String()),
	))
	start := time.Now()
	defer func() {
		recordOp(ctx, h.tmpl.Table, op, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return h.opError(op, key, fmt.Errorf("acquire connection: %w", err))
	}
	defer conn.Release()

	stmt, err := conn.Prepare(ctx, sql)
	if err != nil {
		return h.opError(op, key, fmt.Errorf("prepare: %w", err))
	}

	if err := fn(ctx, conn, stmt); err != nil {
		return h.opError(op, key, err)
	}
	return nil
}

func (h *Handler[K]) opError(op string, key K, err error) error {
	return &OpError{
		Op:    op,
		Table: h.tmpl.Table,
		Key:   key.String(),
		Err:   err,
	}
}
