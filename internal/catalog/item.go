package catalog

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Заглушки для пустых полей источника.
const (
	DefaultName        = "Без названия"
	DefaultDescription = "Нет описания"
	DefaultCare        = "Нет информации об уходе"
	DefaultHistory     = "Нет исторической информации"
)

// DigestLen — длина id позиции в hex-символах (кнопки избранного и мини-приложение).
const DigestLen = 10

// Item — позиция каталога. После загрузки не меняется, снапшот заменяется целиком.
type Item struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	Price       string   `json:"price,omitempty"`
	Media       []string `json:"media,omitempty"`
	Care        string   `json:"care"`
	History     string   `json:"history"`
}

// Photo — первая ссылка на медиа или "".
func (it Item) Photo() string {
	if len(it.Media) == 0 {
		return ""
	}
	return it.Media[0]
}

// ID — короткий стабильный идентификатор по имени.
func (it Item) ID() string {
	return Digest(it.Name)
}

func Digest(name string) string {
	sum := md5.Sum([]byte(name))
	return hex.EncodeToString(sum[:])[:DigestLen]
}

var fieldAliases = map[string][]string{
	"name":        {"name", "название"},
	"description": {"description", "описание"},
	"category":    {"category", "категория"},
	"price":       {"price", "цена"},
	"media":       {"photo", "media", "фото"},
	"care":        {"care", "уход"},
	"history":     {"history", "история"},
}

// FromRow — единственная точка разбора строки источника в Item.
// Отсутствующие поля получают заглушки, ошибок здесь не бывает.
func FromRow(row map[string]string) Item {
	normalized := make(map[string]string, len(row))
	for k, v := range row {
		normalized[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	field := func(name, fallback string) string {
		for _, alias := range fieldAliases[name] {
			if v := normalized[alias]; v != "" {
				return v
			}
		}
		return fallback
	}

	return Item{
		Name:        field("name", DefaultName),
		Description: field("description", DefaultDescription),
		Category:    field("category", ""),
		Price:       field("price", ""),
		Media:       splitMedia(field("media", "")),
		Care:        field("care", DefaultCare),
		History:     field("history", DefaultHistory),
	}
}

func splitMedia(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == ' '
	})
	if len(parts) == 0 {
		return nil
	}
	return parts
}
