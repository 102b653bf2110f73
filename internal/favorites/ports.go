package favorites

import (
	"context"
	"time"

	"github.com/Vovarama1992/rose-catalog-bot/internal/catalog"
)

// Row — строка долговременного хранилища. UserID хранится текстом:
// при гидрации строки с пустым или нечисловым UserID пропускаются.
type Row struct {
	UserID      string
	DisplayName string
	AddedAt     time.Time
	Item        catalog.Item
}

// Repo — долговременное хранилище избранного: дописать, удалить, прочитать всё.
type Repo interface {
	Append(ctx context.Context, row Row) error
	Delete(ctx context.Context, userID int64, itemName string) error
	ReadAll(ctx context.Context) ([]Row, error)
}

// Entry — копия позиции на момент добавления, не живая ссылка на каталог.
type Entry struct {
	Item    catalog.Item `json:"item"`
	AddedAt time.Time    `json:"added_at"`
}

type AddResult int

// AddFailed / RemoveFailed возвращаются вместе с ошибкой: изменение не сохранено.
const (
	AddFailed AddResult = iota
	Added
	AlreadyPresent
)

type RemoveResult int

const (
	RemoveFailed RemoveResult = iota
	Removed
	NotFound
)
