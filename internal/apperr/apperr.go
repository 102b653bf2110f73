// Package apperr — типизированные ошибки сервиса. Диспетчер решает, что
// показать пользователю, по Kind, а не по месту возникновения.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	// KindConfiguration — не хватает обязательного окружения, работа без него невозможна.
	KindConfiguration
	// KindDataSource — каталог или хранилище избранного недоступно либо вернуло мусор.
	KindDataSource
	// KindStaleReference — токен кнопки или индекс сессии больше ни на что не указывает.
	KindStaleReference
	// KindDelivery — мессенджер отказался принять исходящее сообщение.
	KindDelivery
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindDataSource:
		return "data_source"
	case KindStaleReference:
		return "stale_reference"
	case KindDelivery:
		return "delivery"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E оборачивает err в ошибку заданного вида. nil остаётся nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf возвращает вид ближайшей *Error в цепочке или KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ErrStale — ссылка устарела: пользователю нужно повторить поиск.
var ErrStale = &Error{Kind: KindStaleReference, Op: "resolve"}
