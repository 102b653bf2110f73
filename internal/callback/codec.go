// Package callback кодирует действия кнопок в короткие токены callback_data.
//
// Форматы:
//
//	s<op>_<user>_<gen36>_<index>  позиция в результате поиска конкретного поколения
//	i<op>_<digest>                позиция по короткому хешу имени (избранное)
//
// Все сегменты — цифры, base36 или hex, поэтому разделитель "_" в них не встречается.
package callback

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Vovarama1992/rose-catalog-bot/internal/apperr"
	"github.com/Vovarama1992/rose-catalog-bot/internal/catalog"
)

// MaxTokenLen — лимит Telegram на callback_data в байтах.
const MaxTokenLen = 64

const DefaultRegistryTTL = 24 * time.Hour

type Op byte

const (
	OpDetail     Op = 'd'
	OpCare       Op = 'c'
	OpHistory    Op = 'h'
	OpFavorite   Op = 'f'
	OpUnfavorite Op = 'r'
	OpMore       Op = 'm'
)

func (o Op) valid() bool {
	switch o {
	case OpDetail, OpCare, OpHistory, OpFavorite, OpUnfavorite, OpMore:
		return true
	}
	return false
}

type Kind byte

const (
	KindSession Kind = 's'
	KindItem    Kind = 'i'
)

// Action — разобранный токен. Для KindSession заполнены User, Gen, Index;
// для KindItem — Hash.
type Action struct {
	Op    Op
	Kind  Kind
	User  int64
	Gen   uint64
	Index int
	Hash  string
}

var (
	ErrMalformed = errors.New("callback: malformed token")
	ErrTooLong   = errors.New("callback: token exceeds 64 bytes")
)

// ambiguous — хеш выдан двум разным именам; такой хеш больше ничего не разрешает.
type ambiguous struct{}

type Codec struct {
	registry *cache.Cache
}

func NewCodec(registryTTL time.Duration) *Codec {
	if registryTTL <= 0 {
		registryTTL = DefaultRegistryTTL
	}
	return &Codec{registry: cache.New(registryTTL, registryTTL/4)}
}

func (c *Codec) SessionToken(op Op, user int64, gen uint64, index int) (string, error) {
	return Encode(Action{Op: op, Kind: KindSession, User: user, Gen: gen, Index: index})
}

// ItemToken кодирует ссылку на позицию по имени и регистрирует хеш → имя.
func (c *Codec) ItemToken(op Op, name string) (string, error) {
	digest := catalog.Digest(name)
	c.register(digest, name)
	return Encode(Action{Op: op, Kind: KindItem, Hash: digest})
}

func (c *Codec) register(digest, name string) {
	x, found := c.registry.Get(digest)
	if !found {
		c.registry.Set(digest, name, cache.DefaultExpiration)
		return
	}
	if existing, ok := x.(string); ok && existing != name {
		c.registry.Set(digest, ambiguous{}, cache.DefaultExpiration)
		return
	}
	// продлеваем жизнь записи
	c.registry.Set(digest, x, cache.DefaultExpiration)
}

// Lookup возвращает имя по хешу. Неизвестный или неоднозначный хеш — apperr.ErrStale.
func (c *Codec) Lookup(digest string) (string, error) {
	x, found := c.registry.Get(digest)
	if !found {
		return "", apperr.ErrStale
	}
	name, ok := x.(string)
	if !ok {
		return "", apperr.ErrStale
	}
	return name, nil
}

func Encode(a Action) (string, error) {
	if !a.Op.valid() {
		return "", fmt.Errorf("callback: unknown op %q", a.Op)
	}

	var token string
	switch a.Kind {
	case KindSession:
		if a.Index < 0 {
			return "", fmt.Errorf("callback: negative index %d", a.Index)
		}
		token = fmt.Sprintf("%c%c_%d_%s_%d", a.Kind, a.Op, a.User, strconv.FormatUint(a.Gen, 36), a.Index)
	case KindItem:
		if !validDigest(a.Hash) {
			return "", fmt.Errorf("callback: bad digest %q", a.Hash)
		}
		if a.Op == OpMore {
			return "", errors.New("callback: paging needs a session")
		}
		token = fmt.Sprintf("%c%c_%s", a.Kind, a.Op, a.Hash)
	default:
		return "", fmt.Errorf("callback: unknown kind %q", a.Kind)
	}

	if len(token) > MaxTokenLen {
		return "", ErrTooLong
	}
	return token, nil
}

// Decode разбирает токен. Для любой строки возвращает либо Action, либо ErrMalformed.
func Decode(token string) (Action, error) {
	if token == "" || len(token) > MaxTokenLen {
		return Action{}, ErrMalformed
	}

	parts := strings.Split(token, "_")
	if len(parts[0]) != 2 {
		return Action{}, ErrMalformed
	}
	a := Action{Kind: Kind(parts[0][0]), Op: Op(parts[0][1])}
	if !a.Op.valid() {
		return Action{}, ErrMalformed
	}

	switch a.Kind {
	case KindSession:
		if len(parts) != 4 {
			return Action{}, ErrMalformed
		}
		user, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Action{}, ErrMalformed
		}
		gen, err := strconv.ParseUint(parts[2], 36, 64)
		if err != nil {
			return Action{}, ErrMalformed
		}
		index, err := strconv.Atoi(parts[3])
		if err != nil || index < 0 {
			return Action{}, ErrMalformed
		}
		a.User, a.Gen, a.Index = user, gen, index
	case KindItem:
		if len(parts) != 2 || !validDigest(parts[1]) || a.Op == OpMore {
			return Action{}, ErrMalformed
		}
		a.Hash = parts[1]
	default:
		return Action{}, ErrMalformed
	}

	return a, nil
}

func validDigest(s string) bool {
	if len(s) != catalog.DigestLen || strings.ToLower(s) != s {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
