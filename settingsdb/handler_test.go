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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuildHandler(t *testing.T, db *fakeDB, opts ...Option) *Handler[SimpleKey] {
	t.Helper()
	h, err := New[SimpleKey](db, guildTemplates, opts...)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

func newGuildDB() *fakeDB {
	db := newFakeDB(1, map[string]any{"volume": 1.0, "prefix": "-"})
	db.put(nil, 0)
	return db
}

func volume(t *testing.T, row *Row) float64 {
	t.Helper()
	v, err := row.Float64("volume")
	require.NoError(t, err)
	return v
}

func TestNew_Validation(t *testing.T) {
	db := newGuildDB()

	t.Run("nil pool", func(t *testing.T) {
		_, err := New[SimpleKey](nil, guildTemplates)
		assert.ErrorIs(t, err, ErrNilPool)
	})

	t.Run("missing select", func(t *testing.T) {
		tmpl := guildTemplates
		tmpl.Select = ""
		_, err := New[SimpleKey](db, tmpl)
		assert.ErrorIs(t, err, ErrInvalidTemplates)
		assert.Contains(t, err.Error(), "Select")
	})

	t.Run("single insert without placeholder", func(t *testing.T) {
		tmpl := guildTemplates
		tmpl.SingleInsert = "UPDATE guilds SET volume = $2 WHERE guild_id = $1"
		_, err := New[SimpleKey](db, tmpl)
		assert.ErrorIs(t, err, ErrInvalidTemplates)
	})

	t.Run("empty column", func(t *testing.T) {
		tmpl := guildTemplates
		tmpl.Columns = []Column{"volume", ""}
		_, err := New[SimpleKey](db, tmpl)
		assert.ErrorIs(t, err, ErrInvalidTemplates)
	})
}

func TestHandler_GetCachesRow(t *testing.T) {
	ctx := context.Background()
	db := newGuildDB()
	db.put(map[string]any{"volume": 3.0}, 7)
	h := newGuildHandler(t, db)

	t.Run("first call fetches from DB", func(t *testing.T) {
		row, err := h.Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, 3.0, volume(t, row))
		assert.Equal(t, int32(1), db.acquires.Load())
		assert.Equal(t, int32(1), db.queries.Load())
	})

	t.Run("second call uses cache", func(t *testing.T) {
		row, err := h.Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, 3.0, volume(t, row))
		// Should NOT have incremented - served from cache
		assert.Equal(t, int32(1), db.acquires.Load())
		assert.Equal(t, int32(1), db.queries.Load())
	})

	t.Run("cached snapshot is shared", func(t *testing.T) {
		a, err := h.Get(ctx, 7)
		require.NoError(t, err)
		b, err := h.Get(ctx, 7)
		require.NoError(t, err)
		assert.Same(t, a, b)
	})

	assert.Equal(t, db.acquires.Load(), db.releases.Load())
}

func TestHandler_GetFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	db := newGuildDB()
	h := newGuildHandler(t, db)

	def, err := h.Get(ctx, DefaultSimpleKey)
	require.NoError(t, err)

	row, err := h.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, def.Columns(), row.Columns())
	assert.Equal(t, volume(t, def), volume(t, row))

	// primary lookup + default lookup for 42, one lookup for 0
	assert.Equal(t, int32(3), db.queries.Load())

	cached, ok := h.Cached(42)
	require.True(t, ok)
	assert.Same(t, row, cached)
}

func TestHandler_CompositeKeyFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB(2, map[string]any{"name": nil})
	db.put(nil, 0, 0)
	db.put(map[string]any{"name": "Bob"}, 1, 2)

	h, err := New[CompositeKey](db, nicknameTemplates)
	require.NoError(t, err)
	t.Cleanup(h.Close)

	row, err := h.Get(ctx, CompositeKey{1, 2})
	require.NoError(t, err)
	name, err := row.String("name")
	require.NoError(t, err)
	assert.Equal(t, "Bob", name)

	// order matters: {2, 1} is a different entity
	row, err = h.Get(ctx, CompositeKey{2, 1})
	require.NoError(t, err)
	assert.True(t, row.IsNull("name"))

	row, err = h.Get(ctx, CompositeKey{0, 5})
	require.NoError(t, err)
	assert.True(t, row.IsNull("name"))
}

func TestHandler_DefaultRowMissing(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB(1, map[string]any{"volume": 1.0})
	h := newGuildHandler(t, db)

	t.Run("entity key", func(t *testing.T) {
		_, err := h.Get(ctx, 42)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDefaultRowMissing)
		// exactly two lookups: no recursion
		assert.Equal(t, int32(2), db.queries.Load())
	})

	t.Run("default key", func(t *testing.T) {
		before := db.queries.Load()
		_, err := h.Get(ctx, DefaultSimpleKey)
		assert.ErrorIs(t, err, ErrDefaultRowMissing)
		assert.Equal(t, before+1, db.queries.Load())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		assert.Equal(t, 0, h.Len())
	})
}

func TestHandler_SetOneInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	db := newGuildDB()
	db.put(map[string]any{"volume": 1.5}, 42)
	h := newGuildHandler(t, db)

	row, err := h.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1.5, volume(t, row))

	require.NoError(t, h.SetOne(ctx, 42, "volume", 2.5))
	_, ok := h.Cached(42)
	assert.False(t, ok, "SetOne must remove the cache entry")

	row, err = h.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 2.5, volume(t, row))
	assert.Equal(t, int32(2), db.queries.Load())
}

func TestHandler_SetOneUnknownColumn(t *testing.T) {
	ctx := context.Background()
	db := newGuildDB()
	h := newGuildHandler(t, db)

	err := h.SetOne(ctx, 42, "volume = 0; DROP TABLE guilds; --", 1.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownColumn)
	assert.Equal(t, int32(0), db.acquires.Load(), "unknown column must not touch the pool")
}

func TestHandler_SetOneMissingRowIsNoop(t *testing.T) {
	ctx := context.Background()
	db := newGuildDB()
	h := newGuildHandler(t, db)

	require.NoError(t, h.SetOne(ctx, 99, "volume", 4.0))

	row, err := h.Get(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, 1.0, volume(t, row))
}

func TestHandler_CreateRow(t *testing.T) {
	ctx := context.Background()

	t.Run("twice without get fails on uniqueness", func(t *testing.T) {
		db := newGuildDB()
		h := newGuildHandler(t, db)

		require.NoError(t, h.CreateRow(ctx, 42))
		err := h.CreateRow(ctx, 42)
		require.Error(t, err)
		assert.ErrorIs(t, err, errDuplicate)

		var opErr *OpError
		require.True(t, errors.As(err, &opErr))
		assert.Equal(t, "create_row", opErr.Op)
		assert.Equal(t, "guilds", opErr.Table)
		assert.Equal(t, "42", opErr.Key)
	})

	t.Run("get in between makes it a no-op", func(t *testing.T) {
		db := newGuildDB()
		h := newGuildHandler(t, db)

		require.NoError(t, h.CreateRow(ctx, 42))
		_, err := h.Get(ctx, 42)
		require.NoError(t, err)

		execs := db.execs.Load()
		require.NoError(t, h.CreateRow(ctx, 42))
		assert.Equal(t, execs, db.execs.Load())
	})

	t.Run("cached default fallback still inserts", func(t *testing.T) {
		db := newGuildDB()
		h := newGuildHandler(t, db)

		row, err := h.Get(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 1.0, volume(t, row))

		execs := db.execs.Load()
		require.NoError(t, h.CreateRow(ctx, 42))
		assert.Equal(t, execs+1, db.execs.Load())
		_, ok := h.Cached(42)
		assert.False(t, ok)

		require.NoError(t, h.SetOne(ctx, 42, "volume", 2.0))
		row, err = h.Get(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 2.0, volume(t, row))
	})

	t.Run("does not populate the cache", func(t *testing.T) {
		db := newGuildDB()
		h := newGuildHandler(t, db)

		require.NoError(t, h.CreateRow(ctx, 42))
		assert.Equal(t, 0, h.Len())
	})
}

func TestHandler_DeleteFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	db := newGuildDB()
	h := newGuildHandler(t, db)

	require.NoError(t, h.CreateRow(ctx, 42))
	require.NoError(t, h.SetOne(ctx, 42, "volume", 2.0))
	row, err := h.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 2.0, volume(t, row))

	require.NoError(t, h.Delete(ctx, 42))
	_, ok := h.Cached(42)
	assert.False(t, ok)

	row, err = h.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1.0, volume(t, row))

	// deleting a missing row is fine
	require.NoError(t, h.Delete(ctx, 12345))
}

func TestHandler_VolumeScenario(t *testing.T) {
	ctx := context.Background()
	db := newGuildDB()
	h := newGuildHandler(t, db)

	steps := []struct {
		name string
		run  func() error
		want float64
	}{
		{"get on empty table", nil, 1.0},
		{"create row", func() error { return h.CreateRow(ctx, 42) }, 1.0},
		{"set volume", func() error { return h.SetOne(ctx, 42, "volume", 2.0) }, 2.0},
		{"delete", func() error { return h.Delete(ctx, 42) }, 1.0},
	}
	for _, s := range steps {
		if s.run != nil {
			require.NoError(t, s.run(), s.name)
		}
		row, err := h.Get(ctx, 42)
		require.NoError(t, err, s.name)
		assert.Equal(t, s.want, volume(t, row), s.name)
	}
}

func TestHandler_ErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	tests := []struct {
		name  string
		setup func(db *fakeDB)
		run   func(h *Handler[SimpleKey]) error
	}{
		{"acquire get", func(db *fakeDB) { db.acquireErr = boom }, func(h *Handler[SimpleKey]) error { _, err := h.Get(ctx, 1); return err }},
		{"prepare get", func(db *fakeDB) { db.prepareErr = boom }, func(h *Handler[SimpleKey]) error { _, err := h.Get(ctx, 1); return err }},
		{"query get", func(db *fakeDB) { db.queryErr = boom }, func(h *Handler[SimpleKey]) error { _, err := h.Get(ctx, 1); return err }},
		{"exec create", func(db *fakeDB) { db.execErr = boom }, func(h *Handler[SimpleKey]) error { return h.CreateRow(ctx, 1) }},
		{"exec set", func(db *fakeDB) { db.execErr = boom }, func(h *Handler[SimpleKey]) error { return h.SetOne(ctx, 1, "volume", 1.0) }},
		{"exec delete", func(db *fakeDB) { db.execErr = boom }, func(h *Handler[SimpleKey]) error { return h.Delete(ctx, 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newGuildDB()
			h := newGuildHandler(t, db)
			tt.setup(db)

			err := tt.run(h)
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)
			var opErr *OpError
			assert.True(t, errors.As(err, &opErr))
			assert.Equal(t, db.acquires.Load()-boolToInt32(db.acquireErr != nil), db.releases.Load())

			// the handler stays usable once the backend recovers
			db.acquireErr, db.prepareErr, db.queryErr, db.execErr = nil, nil, nil, nil
			_, err = h.Get(ctx, 1)
			assert.NoError(t, err)
		})
	}
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func TestHandler_FailedWriteKeepsCache(t *testing.T) {
	ctx := context.Background()
	db := newGuildDB()
	h := newGuildHandler(t, db)

	_, err := h.Get(ctx, 5)
	require.NoError(t, err)

	db.execErr = errors.New("down")
	require.Error(t, h.Delete(ctx, 5))
	_, ok := h.Cached(5)
	assert.True(t, ok)
}

func TestHandler_Invalidate(t *testing.T) {
	ctx := context.Background()
	db := newGuildDB()
	h := newGuildHandler(t, db)

	_, err := h.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Len())

	h.Invalidate(5)
	assert.Equal(t, 0, h.Len())

	_, err = h.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int32(4), db.queries.Load())
}

func TestHandler_TTL(t *testing.T) {
	ctx := context.Background()
	db := newGuildDB()
	h := newGuildHandler(t, db, WithTTL(20*time.Millisecond))

	_, err := h.Get(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), db.queries.Load())

	time.Sleep(50 * time.Millisecond)

	_, err = h.Get(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), db.queries.Load())
}

func TestHandler_Capacity(t *testing.T) {
	ctx := context.Background()
	db := newGuildDB()
	h := newGuildHandler(t, db, WithCapacity(2))

	for _, k := range []SimpleKey{0, 1, 2, 3} {
		_, err := h.Get(ctx, k)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, h.Len())
}

func TestHandler_ConcurrentGet(t *testing.T) {
	ctx := context.Background()
	db := newGuildDB()
	h := newGuildHandler(t, db)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row, err := h.Get(ctx, SimpleKey(i%5))
			assert.NoError(t, err)
			assert.Equal(t, 1.0, volume(t, row))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, h.Len())
	assert.Equal(t, db.acquires.Load(), db.releases.Load())
}

// blockingPool holds every Acquire until release is closed so concurrent
// misses pile up.
type blockingPool struct {
	*fakeDB
	waiting sync.WaitGroup
	arrived sync.Once
	release chan struct{}
}

func (p *blockingPool) Acquire(ctx context.Context) (Conn, error) {
	p.arrived.Do(p.waiting.Done)
	<-p.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.fakeDB.Acquire(ctx)
}

func newBlockingPool() (*blockingPool, *fakeDB) {
	db := newGuildDB()
	pool := &blockingPool{fakeDB: db, release: make(chan struct{})}
	pool.waiting.Add(1)
	return pool, db
}

func TestHandler_SingleFlight(t *testing.T) {
	ctx := context.Background()
	pool, db := newBlockingPool()

	h, err := New[SimpleKey](pool, guildTemplates, WithSingleFlight())
	require.NoError(t, err)
	t.Cleanup(h.Close)

	const callers = 10
	var wg sync.WaitGroup
	rows := make([]*Row, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row, err := h.Get(ctx, 0)
			assert.NoError(t, err)
			rows[i] = row
		}(i)
	}

	// late callers either join the flight or find its row in the cache
	pool.waiting.Wait()
	close(pool.release)
	wg.Wait()

	assert.Equal(t, int32(1), db.acquires.Load())
	for _, r := range rows {
		assert.Same(t, rows[0], r)
	}
}

func TestHandler_SingleFlightOutlivesCanceledCaller(t *testing.T) {
	pool, db := newBlockingPool()

	h, err := New[SimpleKey](pool, guildTemplates, WithSingleFlight())
	require.NoError(t, err)
	t.Cleanup(h.Close)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := h.Get(firstCtx, 0)
		firstErr <- err
	}()
	pool.waiting.Wait()

	type result struct {
		row *Row
		err error
	}
	second := make(chan result, 1)
	go func() {
		row, err := h.Get(context.Background(), 0)
		second <- result{row, err}
	}()

	cancel()
	err = <-firstErr
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	close(pool.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, 1.0, volume(t, res.row))
	assert.Equal(t, int32(1), db.acquires.Load())

	row, ok := h.Cached(0)
	require.True(t, ok)
	assert.Same(t, res.row, row)
}
