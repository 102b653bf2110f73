package catalog

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/rose-catalog-bot/internal/apperr"
	"github.com/Vovarama1992/rose-catalog-bot/internal/logger"
)

type fakeSource struct {
	mu    sync.Mutex
	rows  []map[string]string
	err   error
	calls atomic.Int32
}

func (f *fakeSource) Rows(_ context.Context) ([]map[string]string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeSource) set(rows []map[string]string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows, f.err = rows, err
}

func TestCacheRefreshSwapsSnapshot(t *testing.T) {
	src := &fakeSource{rows: []map[string]string{{"name": "Аваланж"}, {"name": "Ред Наоми"}}}
	c := NewCache(src, logger.NewNop())

	assert.Empty(t, c.All())

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 2, c.Len())
	assert.False(t, c.LoadedAt().IsZero())

	it, ok := c.FindByName("Ред Наоми")
	require.True(t, ok)
	assert.Equal(t, DefaultCare, it.Care)

	byID, ok := c.FindByID(Digest("Аваланж"))
	require.True(t, ok)
	assert.Equal(t, "Аваланж", byID.Name)

	_, ok = c.FindByID("0000000000")
	assert.False(t, ok)
}

func TestCacheRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	src := &fakeSource{rows: []map[string]string{{"name": "Аваланж"}}}
	c := NewCache(src, logger.NewNop())
	require.NoError(t, c.Refresh(context.Background()))
	before := c.All()

	src.set(nil, errors.New("sheet unavailable"))
	err := c.Refresh(context.Background())

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDataSource))
	assert.Equal(t, before, c.All())
}

func TestCacheConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	small := []map[string]string{{"name": "a"}}
	large := []map[string]string{{"name": "a"}, {"name": "b"}, {"name": "c"}}
	src := &fakeSource{rows: small}
	c := NewCache(src, logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				src.set(small, nil)
			} else {
				src.set(large, nil)
			}
			_ = c.Refresh(context.Background())
		}(i)
		go func() {
			defer wg.Done()
			n := len(c.All())
			assert.Contains(t, []int{0, 1, 3}, n)
		}()
	}
	wg.Wait()
}

func TestRefresherRunsOnScheduleAndStops(t *testing.T) {
	src := &fakeSource{rows: []map[string]string{{"name": "Аваланж"}}}
	c := NewCache(src, logger.NewNop())
	r := NewRefresher(c, 5*time.Millisecond, logger.NewNop())

	r.Start(context.Background())
	require.Eventually(t, func() bool { return src.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	r.Stop()
	stopped := src.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, src.calls.Load())
	assert.Equal(t, 1, c.Len())

	// повторный Stop безопасен
	r.Stop()
}

func TestRefresherRetriesTaskUntilSuccess(t *testing.T) {
	src := &fakeSource{rows: []map[string]string{{"name": "Аваланж"}}}
	var attempts atomic.Int32
	task := func(context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("store unreachable")
		}
		return nil
	}
	r := NewRefresher(NewCache(src, logger.NewNop()), 5*time.Millisecond, logger.NewNop(), task)

	r.Start(context.Background())
	require.Eventually(t, func() bool { return attempts.Load() >= 3 }, time.Second, 5*time.Millisecond)
	r.Stop()
}

func TestRefresherDisabled(t *testing.T) {
	src := &fakeSource{}
	r := NewRefresher(NewCache(src, logger.NewNop()), 0, logger.NewNop())

	r.Start(context.Background())
	r.Stop()
	assert.Zero(t, src.calls.Load())
}

func TestPostgresSource(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	// временная таблица видна только своему соединению
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TEMP TABLE catalog_test (name TEXT, description TEXT, price NUMERIC, photo TEXT)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO catalog_test VALUES ('Аваланж', 'Белая', 350, NULL)`)
	require.NoError(t, err)

	rows, err := NewPostgresSource(db, "catalog_test").Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Аваланж", rows[0]["name"])
	assert.Equal(t, "350", rows[0]["price"])
	_, hasPhoto := rows[0]["photo"]
	assert.False(t, hasPhoto)
}
