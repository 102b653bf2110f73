package favorites

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Vovarama1992/rose-catalog-bot/internal/apperr"
	"github.com/Vovarama1992/rose-catalog-bot/internal/catalog"
	"github.com/Vovarama1992/rose-catalog-bot/internal/keylock"
	"github.com/Vovarama1992/rose-catalog-bot/internal/logger"
)

// ErrNotPersisted — хранилище не подтвердило запись, кэш не тронут.
var ErrNotPersisted = errors.New("favorites: change was not persisted")

// Store — избранное по пользователям. Кэш в памяти меняется только после
// успешной записи в Repo. Ключ дедупликации — имя позиции.
type Store struct {
	repo  Repo
	log   logger.ILogger
	locks *keylock.Locker
	now   func() time.Time

	mu     sync.RWMutex
	byUser map[int64][]Entry

	loadMu   sync.Mutex
	hydrated atomic.Bool
}

func NewStore(repo Repo, log logger.ILogger) *Store {
	return &Store{
		repo:   repo,
		log:    log,
		locks:  keylock.New(),
		now:    time.Now,
		byUser: make(map[int64][]Entry),
	}
}

// Load гидрирует кэш полным чтением хранилища. Битые строки пропускаются,
// при ошибке чтения остаётся прежний кэш.
func (s *Store) Load(ctx context.Context) error {
	rows, err := s.repo.ReadAll(ctx)
	if err != nil {
		s.log.Warn("favorites", "hydrate failed, keeping cached favorites", map[string]interface{}{"error": err.Error()})
		return apperr.E(apperr.KindDataSource, "favorites.load", err)
	}

	byUser := make(map[int64][]Entry)
	skipped, duplicates := 0, 0
	for _, row := range rows {
		user, err := strconv.ParseInt(strings.TrimSpace(row.UserID), 10, 64)
		if err != nil {
			skipped++
			continue
		}
		if indexOf(byUser[user], row.Item.Name) >= 0 {
			duplicates++
			continue
		}
		byUser[user] = append(byUser[user], Entry{Item: copyItem(row.Item), AddedAt: row.AddedAt})
	}

	s.mu.Lock()
	s.byUser = byUser
	s.mu.Unlock()
	s.hydrated.Store(true)

	details := map[string]interface{}{"rows": len(rows), "users": len(byUser)}
	if skipped > 0 || duplicates > 0 {
		details["skipped_malformed"] = skipped
		details["skipped_duplicates"] = duplicates
		s.log.Warn("favorites", "hydrated with skipped rows", details)
	} else {
		s.log.Info("favorites", "hydrated", details)
	}
	return nil
}

// EnsureLoaded гидрирует кэш, если это ещё ни разу не удалось. Пока кэш
// не гидрирован, изменения отклоняются: без полного чтения нельзя понять,
// есть ли строка в хранилище.
func (s *Store) EnsureLoaded(ctx context.Context) error {
	if s.hydrated.Load() {
		return nil
	}
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if s.hydrated.Load() {
		return nil
	}
	return s.Load(ctx)
}

// Hydrated — было ли хоть одно успешное полное чтение.
func (s *Store) Hydrated() bool {
	return s.hydrated.Load()
}

// Add идемпотентен по имени: повторное добавление возвращает AlreadyPresent.
func (s *Store) Add(ctx context.Context, user int64, displayName string, item catalog.Item) (AddResult, error) {
	if err := s.EnsureLoaded(ctx); err != nil {
		return AddFailed, apperr.E(apperr.KindDataSource, "favorites.add", errors.Join(ErrNotPersisted, err))
	}

	unlock := s.locks.Lock(user)
	defer unlock()

	if _, ok := s.Find(user, item.Name); ok {
		return AlreadyPresent, nil
	}

	entry := Entry{Item: copyItem(item), AddedAt: s.now().UTC()}
	row := Row{
		UserID:      strconv.FormatInt(user, 10),
		DisplayName: displayName,
		AddedAt:     entry.AddedAt,
		Item:        entry.Item,
	}
	if err := s.repo.Append(ctx, row); err != nil {
		s.log.Warn("favorites", "append failed", map[string]interface{}{
			"user_id": user, "item": item.Name, "error": err.Error(),
		})
		return AddFailed, apperr.E(apperr.KindDataSource, "favorites.add", errors.Join(ErrNotPersisted, err))
	}

	s.mu.Lock()
	s.byUser[user] = append(s.byUser[user], entry)
	s.mu.Unlock()

	return Added, nil
}

func (s *Store) Remove(ctx context.Context, user int64, itemName string) (RemoveResult, error) {
	if err := s.EnsureLoaded(ctx); err != nil {
		return RemoveFailed, apperr.E(apperr.KindDataSource, "favorites.remove", errors.Join(ErrNotPersisted, err))
	}

	unlock := s.locks.Lock(user)
	defer unlock()

	if _, ok := s.Find(user, itemName); !ok {
		return NotFound, nil
	}

	if err := s.repo.Delete(ctx, user, itemName); err != nil {
		s.log.Warn("favorites", "delete failed", map[string]interface{}{
			"user_id": user, "item": itemName, "error": err.Error(),
		})
		return RemoveFailed, apperr.E(apperr.KindDataSource, "favorites.remove", errors.Join(ErrNotPersisted, err))
	}

	s.mu.Lock()
	entries := s.byUser[user]
	if i := indexOf(entries, itemName); i >= 0 {
		entries = slices.Delete(slices.Clone(entries), i, i+1)
	}
	if len(entries) == 0 {
		delete(s.byUser, user)
	} else {
		s.byUser[user] = entries
	}
	s.mu.Unlock()

	return Removed, nil
}

// List — избранное пользователя в порядке добавления.
func (s *Store) List(user int64) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.byUser[user])
}

func (s *Store) Find(user int64, itemName string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.byUser[user]
	if i := indexOf(entries, itemName); i >= 0 {
		return entries[i], true
	}
	return Entry{}, false
}

// FindByDigest ищет позицию по короткому хешу имени. Если хеш подходит
// к нескольким позициям, ничего не возвращает.
func (s *Store) FindByDigest(user int64, digest string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		found Entry
		hits  int
	)
	for _, e := range s.byUser[user] {
		if catalog.Digest(e.Item.Name) == digest {
			found = e
			hits++
		}
	}
	return found, hits == 1
}

func indexOf(entries []Entry, name string) int {
	return slices.IndexFunc(entries, func(e Entry) bool { return e.Item.Name == name })
}

func copyItem(it catalog.Item) catalog.Item {
	it.Media = slices.Clone(it.Media)
	return it
}
