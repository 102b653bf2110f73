package favorites

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/rose-catalog-bot/internal/apperr"
	"github.com/Vovarama1992/rose-catalog-bot/internal/catalog"
	"github.com/Vovarama1992/rose-catalog-bot/internal/logger"
)

type fakeRepo struct {
	mu        sync.Mutex
	rows      []Row
	appendErr error
	deleteErr error
	readErr   error
	appends   int
}

func (f *fakeRepo) Append(_ context.Context, row Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appends++
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, userID int64, itemName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.UserID == strconv.FormatInt(userID, 10) && r.Item.Name == itemName {
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return nil
}

func (f *fakeRepo) ReadAll(_ context.Context) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return append([]Row(nil), f.rows...), nil
}

var avalanche = catalog.Item{Name: "Аваланж", Description: "Белая", Media: []string{"https://img/a.jpg"}}

func TestAddTwiceKeepsOneEntry(t *testing.T) {
	repo := &fakeRepo{}
	s := NewStore(repo, logger.NewNop())
	ctx := context.Background()

	res, err := s.Add(ctx, 1, "Аня", avalanche)
	require.NoError(t, err)
	assert.Equal(t, Added, res)

	res, err = s.Add(ctx, 1, "Аня", avalanche)
	require.NoError(t, err)
	assert.Equal(t, AlreadyPresent, res)

	assert.Len(t, s.List(1), 1)
	assert.Equal(t, 1, repo.appends)
	assert.Equal(t, "1", repo.rows[0].UserID)
	assert.Equal(t, "Аня", repo.rows[0].DisplayName)
}

func TestAddKeepsCopyOfItem(t *testing.T) {
	s := NewStore(&fakeRepo{}, logger.NewNop())
	item := catalog.Item{Name: "Ред Наоми", Media: []string{"https://img/1.jpg"}}

	_, err := s.Add(context.Background(), 1, "", item)
	require.NoError(t, err)

	item.Media[0] = "changed"
	entry, ok := s.Find(1, "Ред Наоми")
	require.True(t, ok)
	assert.Equal(t, "https://img/1.jpg", entry.Item.Photo())
	assert.False(t, entry.AddedAt.IsZero())
}

func TestAddFailureDoesNotTouchCache(t *testing.T) {
	repo := &fakeRepo{appendErr: errors.New("sheet quota exceeded")}
	s := NewStore(repo, logger.NewNop())

	res, err := s.Add(context.Background(), 1, "", avalanche)

	require.Error(t, err)
	assert.Equal(t, AddFailed, res)
	assert.ErrorIs(t, err, ErrNotPersisted)
	assert.True(t, apperr.Is(err, apperr.KindDataSource))
	assert.Empty(t, s.List(1))
}

func TestRemove(t *testing.T) {
	repo := &fakeRepo{}
	s := NewStore(repo, logger.NewNop())
	ctx := context.Background()

	_, err := s.Add(ctx, 1, "", avalanche)
	require.NoError(t, err)

	res, err := s.Remove(ctx, 1, "Аваланж")
	require.NoError(t, err)
	assert.Equal(t, Removed, res)
	assert.Empty(t, s.List(1))
	assert.Empty(t, repo.rows)

	res, err = s.Remove(ctx, 1, "Аваланж")
	require.NoError(t, err)
	assert.Equal(t, NotFound, res)
}

func TestRemoveFailureKeepsEntry(t *testing.T) {
	repo := &fakeRepo{}
	s := NewStore(repo, logger.NewNop())
	ctx := context.Background()

	_, err := s.Add(ctx, 1, "", avalanche)
	require.NoError(t, err)

	repo.deleteErr = errors.New("timeout")
	res, err := s.Remove(ctx, 1, "Аваланж")

	require.Error(t, err)
	assert.Equal(t, RemoveFailed, res)
	assert.Len(t, s.List(1), 1)
}

func TestLoadSkipsMalformedRows(t *testing.T) {
	repo := &fakeRepo{rows: []Row{
		{UserID: "1", Item: catalog.Item{Name: "Аваланж"}},
		{UserID: "", Item: catalog.Item{Name: "Без пользователя"}},
		{UserID: "abc", Item: catalog.Item{Name: "Нечисловой"}},
		{UserID: " 2 ", Item: catalog.Item{Name: "Ред Наоми"}},
		{UserID: "1", Item: catalog.Item{Name: "Пинк Флойд"}},
		{UserID: "1", Item: catalog.Item{Name: "Аваланж"}},
	}}
	s := NewStore(repo, logger.NewNop())

	require.NoError(t, s.Load(context.Background()))

	first := s.List(1)
	require.Len(t, first, 2)
	assert.Equal(t, "Аваланж", first[0].Item.Name)
	assert.Equal(t, "Пинк Флойд", first[1].Item.Name)
	assert.Len(t, s.List(2), 1)
}

func TestLoadFailureKeepsCache(t *testing.T) {
	repo := &fakeRepo{}
	s := NewStore(repo, logger.NewNop())
	_, err := s.Add(context.Background(), 1, "", avalanche)
	require.NoError(t, err)

	repo.readErr = errors.New("unreachable")
	err = s.Load(context.Background())

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDataSource))
	assert.Len(t, s.List(1), 1)
}

func TestFindByDigest(t *testing.T) {
	s := NewStore(&fakeRepo{}, logger.NewNop())
	_, err := s.Add(context.Background(), 1, "", avalanche)
	require.NoError(t, err)

	e, ok := s.FindByDigest(1, catalog.Digest("Аваланж"))
	require.True(t, ok)
	assert.Equal(t, "Аваланж", e.Item.Name)

	_, ok = s.FindByDigest(2, catalog.Digest("Аваланж"))
	assert.False(t, ok)
}

func TestConcurrentAddSameItem(t *testing.T) {
	repo := &fakeRepo{}
	s := NewStore(repo, logger.NewNop())

	var wg sync.WaitGroup
	results := make(chan AddResult, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Add(context.Background(), 1, "", avalanche)
			assert.NoError(t, err)
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	added := 0
	for res := range results {
		if res == Added {
			added++
		}
	}
	assert.Equal(t, 1, added)
	assert.Len(t, s.List(1), 1)
	assert.Equal(t, 1, repo.appends)
}

func TestAddAfterFailedLoadDoesNotDuplicate(t *testing.T) {
	repo := &fakeRepo{
		rows:    []Row{{UserID: "42", DisplayName: "Аня", Item: avalanche}},
		readErr: errors.New("connection reset"),
	}
	s := NewStore(repo, logger.NewNop())
	ctx := context.Background()

	require.Error(t, s.Load(ctx))
	assert.False(t, s.Hydrated())

	// без гидрации запись отклоняется
	res, err := s.Add(ctx, 42, "Аня", avalanche)
	require.Error(t, err)
	assert.Equal(t, AddFailed, res)
	assert.ErrorIs(t, err, ErrNotPersisted)
	assert.True(t, apperr.Is(err, apperr.KindDataSource))

	rm, err := s.Remove(ctx, 42, "Аваланж")
	require.Error(t, err)
	assert.Equal(t, RemoveFailed, rm)

	repo.readErr = nil
	res, err = s.Add(ctx, 42, "Аня", avalanche)
	require.NoError(t, err)
	assert.Equal(t, AlreadyPresent, res)
	assert.True(t, s.Hydrated())
	assert.Len(t, repo.rows, 1)
	assert.Equal(t, 0, repo.appends)
}

func TestEnsureLoadedRunsOnce(t *testing.T) {
	repo := &fakeRepo{rows: []Row{{UserID: "1", Item: avalanche}}}
	s := NewStore(repo, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, s.EnsureLoaded(ctx))
	require.Len(t, s.List(1), 1)

	// повторный вызов не перечитывает хранилище
	repo.readErr = errors.New("unreachable")
	require.NoError(t, s.EnsureLoaded(ctx))
	assert.Len(t, s.List(1), 1)
}
