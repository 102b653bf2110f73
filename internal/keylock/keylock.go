// Package keylock — мьютекс на ключ. Один пользователь обрабатывается
// строго последовательно, разные пользователи не ждут друг друга.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

type Locker struct {
	mu    sync.Mutex
	locks map[int64]*entry
}

func New() *Locker {
	return &Locker{locks: make(map[int64]*entry)}
}

// Lock блокирует ключ и возвращает функцию разблокировки.
// Запись удаляется, когда ключ больше никто не держит и не ждёт.
func (l *Locker) Lock(key int64) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// Len — число ключей, которые сейчас держат или ждут.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
