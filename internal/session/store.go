package session

import (
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Vovarama1992/rose-catalog-bot/internal/apperr"
	"github.com/Vovarama1992/rose-catalog-bot/internal/catalog"
)

const (
	DefaultLimit = 10
	DefaultTTL   = time.Hour
	DefaultSweep = 10 * time.Minute
)

// Session — последний результат поиска пользователя. Не персистится.
type Session struct {
	// Gen выдаётся при каждом Replace и уникален в пределах процесса:
	// токены от предыдущего поиска с другим Gen считаются устаревшими.
	Gen             uint64
	Items           []catalog.Item
	Cursor          int
	DetailMessageID int64
	UpdatedAt       time.Time
}

// Store — сессии по user id и сообщения текущего хода по chat id.
// Неактивные записи вычищаются janitor-ом go-cache.
type Store struct {
	sessions *cache.Cache
	turns    *cache.Cache
	limit    int
	gen      atomic.Uint64

	mu sync.Mutex
}

func NewStore(limit int, ttl, sweep time.Duration) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweep <= 0 {
		sweep = DefaultSweep
	}

	s := &Store{
		sessions: cache.New(ttl, sweep),
		turns:    cache.New(ttl, sweep),
		limit:    limit,
	}
	// после рестарта поколения не пересекаются со старыми токенами
	s.gen.Store(uint64(time.Now().Unix()))
	return s
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *Store) load(user int64) (*Session, bool) {
	if x, found := s.sessions.Get(key(user)); found {
		return x.(*Session), true
	}
	return nil, false
}

func (s *Store) save(user int64, sess *Session) {
	sess.UpdatedAt = time.Now()
	s.sessions.Set(key(user), sess, cache.DefaultExpiration)
}

// Replace заменяет результат поиска целиком. Индексы прошлого результата
// становятся недействительными сразу.
func (s *Store) Replace(user int64, items []catalog.Item) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{
		Gen:   s.gen.Add(1),
		Items: slices.Clone(catalog.Limit(items, s.limit)),
	}
	s.save(user, sess)
	return *sess
}

// Get — позиция index из результата поколения gen. Вне диапазона, чужое
// поколение или отсутствие сессии дают apperr.ErrStale.
func (s *Store) Get(user int64, gen uint64, index int) (catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.load(user)
	if !ok || sess.Gen != gen || index < 0 || index >= len(sess.Items) {
		return catalog.Item{}, apperr.ErrStale
	}
	s.save(user, sess)
	return sess.Items[index], nil
}

// Page возвращает до n позиций начиная с offset и сдвигает курсор.
// next == 0, если дальше ничего нет.
func (s *Store) Page(user int64, gen uint64, offset, n int) (items []catalog.Item, next int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.load(user)
	if !ok || sess.Gen != gen || offset < 0 || offset >= len(sess.Items) {
		return nil, 0, apperr.ErrStale
	}

	end := offset + n
	if end > len(sess.Items) {
		end = len(sess.Items)
	}
	sess.Cursor = end
	s.save(user, sess)

	if end < len(sess.Items) {
		next = end
	}
	return slices.Clone(sess.Items[offset:end]), next, nil
}

// Current — копия сессии пользователя, если она есть.
func (s *Store) Current(user int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.load(user)
	if !ok {
		return Session{}, false
	}
	out := *sess
	out.Items = slices.Clone(sess.Items)
	return out, true
}

// SwapDetail запоминает новое сообщение с подробностями и возвращает
// предыдущее (0, если его не было).
func (s *Store) SwapDetail(user int64, messageID int64) (prev int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.load(user)
	if !ok {
		sess = &Session{}
	}
	prev = sess.DetailMessageID
	sess.DetailMessageID = messageID
	s.save(user, sess)
	return prev
}

// TrackMessages добавляет сообщения к текущему ходу чата.
func (s *Store) TrackMessages(chat int64, ids ...int64) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var tracked []int64
	if x, found := s.turns.Get(key(chat)); found {
		tracked = x.([]int64)
	}
	tracked = append(slices.Clip(tracked), ids...)
	s.turns.Set(key(chat), tracked, cache.DefaultExpiration)
}

// ClearMessages забывает ход чата и возвращает его сообщения.
func (s *Store) ClearMessages(chat int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, found := s.turns.Get(key(chat))
	s.turns.Delete(key(chat))
	if !found {
		return nil
	}
	return x.([]int64)
}

// UntrackMessage убирает одно сообщение из хода (оно уже удалено отдельно).
func (s *Store) UntrackMessage(chat int64, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, found := s.turns.Get(key(chat))
	if !found {
		return
	}
	tracked := slices.DeleteFunc(slices.Clone(x.([]int64)), func(v int64) bool { return v == id })
	s.turns.Set(key(chat), tracked, cache.DefaultExpiration)
}

// Len — число живых сессий (для логов и health).
func (s *Store) Len() int {
	return s.sessions.ItemCount()
}
