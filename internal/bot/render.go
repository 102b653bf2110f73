package bot

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/Vovarama1992/rose-catalog-bot/internal/callback"
	"github.com/Vovarama1992/rose-catalog-bot/internal/catalog"
	"github.com/Vovarama1992/rose-catalog-bot/internal/telegram"
)

// Описание в карточке короче лимита подписи, чтобы влезли заголовок и поля.
const cardDescriptionLen = 700

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

func header(it catalog.Item) string {
	var sb strings.Builder
	sb.WriteString("🌹 <b>")
	sb.WriteString(html.EscapeString(it.Name))
	sb.WriteString("</b>\n")
	if it.Category != "" {
		sb.WriteString("🏷 ")
		sb.WriteString(html.EscapeString(it.Category))
		sb.WriteString("\n")
	}
	if it.Price != "" {
		sb.WriteString("💰 ")
		sb.WriteString(html.EscapeString(it.Price))
		sb.WriteString("\n")
	}
	return sb.String()
}

// cardText — подпись карточки результата.
func cardText(it catalog.Item) string {
	return header(it) + "\n" + html.EscapeString(truncate(it.Description, cardDescriptionLen))
}

// detailText — полный текст по действию: описание, уход или история.
func detailText(op callback.Op, it catalog.Item) string {
	limit := telegram.MaxTextLen - 200
	name := html.EscapeString(it.Name)

	switch op {
	case callback.OpCare:
		return "🪴 <b>Уход: " + name + "</b>\n\n" + html.EscapeString(truncate(it.Care, limit))
	case callback.OpHistory:
		return "📜 <b>История: " + name + "</b>\n\n" + html.EscapeString(truncate(it.History, limit))
	default:
		return header(it) + "\n" + html.EscapeString(truncate(it.Description, limit))
	}
}

type tokens struct {
	detail, care, history, fav string
}

func sessionTokens(codec *callback.Codec, user int64, gen uint64, index int) (tokens, error) {
	var (
		t   tokens
		err error
	)
	ops := []struct {
		op  callback.Op
		dst *string
	}{
		{callback.OpDetail, &t.detail},
		{callback.OpCare, &t.care},
		{callback.OpHistory, &t.history},
		{callback.OpFavorite, &t.fav},
	}
	for _, o := range ops {
		if *o.dst, err = codec.SessionToken(o.op, user, gen, index); err != nil {
			return tokens{}, err
		}
	}
	return t, nil
}

// resultButtons — кнопки карточки из результата поиска.
func resultButtons(t tokens) [][]telegram.Button {
	return [][]telegram.Button{
		{{Text: ButtonDetail, Data: t.detail}},
		{{Text: ButtonCare, Data: t.care}, {Text: ButtonHistory, Data: t.history}},
		{{Text: ButtonAddFav, Data: t.fav}},
	}
}

// favoriteButtons — кнопки карточки из избранного (стабильные токены).
func favoriteButtons(codec *callback.Codec, name string) ([][]telegram.Button, error) {
	detail, err := codec.ItemToken(callback.OpDetail, name)
	if err != nil {
		return nil, err
	}
	care, err := codec.ItemToken(callback.OpCare, name)
	if err != nil {
		return nil, err
	}
	history, err := codec.ItemToken(callback.OpHistory, name)
	if err != nil {
		return nil, err
	}
	remove, err := codec.ItemToken(callback.OpUnfavorite, name)
	if err != nil {
		return nil, err
	}
	return [][]telegram.Button{
		{{Text: ButtonDetail, Data: detail}},
		{{Text: ButtonCare, Data: care}, {Text: ButtonHistory, Data: history}},
		{{Text: ButtonRemoveFav, Data: remove}},
	}, nil
}

func mainKeyboard(webAppURL string) [][]telegram.KeyboardButton {
	kb := [][]telegram.KeyboardButton{
		{{Text: ButtonSearch}},
		{{Text: ButtonContact}, {Text: ButtonFavorites}},
	}
	if webAppURL != "" {
		kb = append(kb, []telegram.KeyboardButton{{Text: ButtonWebApp, WebAppURL: webAppURL}})
	}
	return kb
}
