package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/Vovarama1992/rose-catalog-bot/internal/logger"
)

// Task — дополнительная работа на каждом тике (например, повторная
// гидрация избранного). Ошибку задача логирует сама.
type Task func(ctx context.Context) error

// Refresher периодически обновляет Cache. Живёт столько же, сколько процесс:
// Start при запуске, Stop при остановке.
type Refresher struct {
	cache    *Cache
	interval time.Duration
	log      logger.ILogger
	tasks    []Task

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewRefresher(cache *Cache, interval time.Duration, log logger.ILogger, tasks ...Task) *Refresher {
	return &Refresher{cache: cache, interval: interval, log: log, tasks: tasks}
}

// Start запускает цикл обновления. При interval <= 0 ничего не делает.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running || r.interval <= 0 {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go r.run(runCtx, r.done)
}

// Stop останавливает цикл и ждёт завершения текущего обновления.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.running = false
	r.mu.Unlock()

	cancel()
	<-done
}

func (r *Refresher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// ошибка уже залогирована в Refresh, старый снапшот остаётся
			_ = r.cache.Refresh(ctx)
			for _, task := range r.tasks {
				if err := task(ctx); err != nil {
					r.log.Debug("catalog", "tick task failed", map[string]interface{}{"error": err.Error()})
				}
			}
		}
	}
}
