package bot

import (
	"context"

	"github.com/Vovarama1992/rose-catalog-bot/internal/catalog"
	"github.com/Vovarama1992/rose-catalog-bot/internal/telegram"
)

// Catalog — то, что диспетчеру и API нужно от кэша каталога.
type Catalog interface {
	All() []catalog.Item
	FindByName(name string) (catalog.Item, bool)
	FindByID(id string) (catalog.Item, bool)
	Refresh(ctx context.Context) error
	Len() int
}

// UpdateHandler — обработка одного входящего события до конца (без return).
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd telegram.Update)
}

// State — где пользователь находится в диалоге.
type State int

const (
	StateIdle State = iota
	StateResultsShown
	StateDetailShown
)

func (s State) String() string {
	switch s {
	case StateResultsShown:
		return "results_shown"
	case StateDetailShown:
		return "detail_shown"
	default:
		return "idle"
	}
}
