package catalog

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Vovarama1992/rose-catalog-bot/internal/apperr"
	"github.com/Vovarama1992/rose-catalog-bot/internal/logger"
)

// Source — табличный источник каталога: строки как поле→текст.
type Source interface {
	Rows(ctx context.Context) ([]map[string]string, error)
}

type snapshot struct {
	items    []Item
	loadedAt time.Time
}

// Cache — текущий снапшот каталога. Читатели никогда не видят частично
// обновлённые данные: обновление — это одна замена указателя.
type Cache struct {
	source Source
	log    logger.ILogger

	current   atomic.Pointer[snapshot]
	refreshMu sync.Mutex
}

func NewCache(source Source, log logger.ILogger) *Cache {
	c := &Cache{source: source, log: log}
	c.current.Store(&snapshot{})
	return c
}

// Refresh перечитывает источник. При ошибке старый снапшот остаётся на месте.
func (c *Cache) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	rows, err := c.source.Rows(ctx)
	if err != nil {
		c.log.Warn("catalog", "refresh failed, keeping previous snapshot", map[string]interface{}{
			"error":          err.Error(),
			"previous_items": len(c.current.Load().items),
		})
		return apperr.E(apperr.KindDataSource, "catalog.refresh", err)
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, FromRow(row))
	}

	c.current.Store(&snapshot{items: items, loadedAt: time.Now()})

	if len(items) == 0 {
		c.log.Warn("catalog", "source returned no rows", nil)
	} else {
		c.log.Info("catalog", "snapshot swapped", map[string]interface{}{"items": len(items)})
	}
	return nil
}

// All — текущий снапшот. Срез только для чтения.
func (c *Cache) All() []Item {
	return slices.Clip(c.current.Load().items)
}

func (c *Cache) Len() int {
	return len(c.current.Load().items)
}

func (c *Cache) LoadedAt() time.Time {
	return c.current.Load().loadedAt
}

// FindByName — точное совпадение имени, первое по порядку каталога.
func (c *Cache) FindByName(name string) (Item, bool) {
	for _, it := range c.current.Load().items {
		if it.Name == name {
			return it, true
		}
	}
	return Item{}, false
}

// FindByID ищет по короткому id (Digest имени).
func (c *Cache) FindByID(id string) (Item, bool) {
	for _, it := range c.current.Load().items {
		if it.ID() == id {
			return it, true
		}
	}
	return Item{}, false
}
