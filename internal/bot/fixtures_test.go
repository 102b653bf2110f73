package bot

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/rose-catalog-bot/internal/apperr"
	"github.com/Vovarama1992/rose-catalog-bot/internal/callback"
	"github.com/Vovarama1992/rose-catalog-bot/internal/catalog"
	"github.com/Vovarama1992/rose-catalog-bot/internal/favorites"
	"github.com/Vovarama1992/rose-catalog-bot/internal/logger"
	"github.com/Vovarama1992/rose-catalog-bot/internal/session"
	"github.com/Vovarama1992/rose-catalog-bot/internal/telegram"
)

type sentMessage struct {
	ID int64
	telegram.Outgoing
}

type fakeOutbound struct {
	mu       sync.Mutex
	nextID   int64
	sent     []sentMessage
	deleted  []int64
	answers  []string
	photoErr bool
}

func (f *fakeOutbound) Send(_ context.Context, msg telegram.Outgoing) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.photoErr && msg.PhotoURL != "" {
		return 0, apperr.E(apperr.KindDelivery, "telegram.sendPhoto", errors.New("wrong file identifier"))
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ID: f.nextID, Outgoing: msg})
	return f.nextID, nil
}

func (f *fakeOutbound) Delete(_ context.Context, _, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeOutbound) AnswerCallback(_ context.Context, _, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeOutbound) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeOutbound) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeOutbound) lastAnswer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answers[len(f.answers)-1]
}

func (f *fakeOutbound) deletedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.deleted...)
}

type fakeCatalog struct {
	items      []catalog.Item
	refreshErr error
}

func (c *fakeCatalog) All() []catalog.Item { return c.items }
func (c *fakeCatalog) Len() int            { return len(c.items) }

func (c *fakeCatalog) FindByName(name string) (catalog.Item, bool) {
	for _, it := range c.items {
		if it.Name == name {
			return it, true
		}
	}
	return catalog.Item{}, false
}

func (c *fakeCatalog) FindByID(id string) (catalog.Item, bool) {
	for _, it := range c.items {
		if it.ID() == id {
			return it, true
		}
	}
	return catalog.Item{}, false
}

func (c *fakeCatalog) Refresh(context.Context) error { return c.refreshErr }

type memRepo struct {
	mu   sync.Mutex
	rows []favorites.Row
	err  error
}

func (r *memRepo) Append(_ context.Context, row favorites.Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, row)
	return nil
}

func (r *memRepo) Delete(_ context.Context, userID int64, itemName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	kept := r.rows[:0]
	for _, row := range r.rows {
		if row.UserID == strconv.FormatInt(userID, 10) && row.Item.Name == itemName {
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return nil
}

func (r *memRepo) ReadAll(context.Context) ([]favorites.Row, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]favorites.Row(nil), r.rows...), r.err
}

type testBot struct {
	svc  *Service
	out  *fakeOutbound
	cat  *fakeCatalog
	repo *memRepo
	favs *favorites.Store
}

func newTestBot(t *testing.T, items []catalog.Item, displayLimit int) *testBot {
	t.Helper()

	out := &fakeOutbound{}
	cat := &fakeCatalog{items: items}
	repo := &memRepo{}
	favs := favorites.NewStore(repo, logger.NewNop())
	require.NoError(t, favs.Load(context.Background()))

	svc := NewService(
		cat,
		catalog.NewMatcher(catalog.ModeSubstring, catalog.DefaultFuzzyThreshold),
		session.NewStore(10, time.Hour, time.Minute),
		favs,
		callback.NewCodec(time.Hour),
		out,
		logger.NewNop(),
		Options{DisplayLimit: displayLimit, ContactText: "contact us", WebAppURL: "https://example.org/app"},
	)
	return &testBot{svc: svc, out: out, cat: cat, repo: repo, favs: favs}
}

func (b *testBot) text(user int64, text string) {
	b.textIn(user, user, text)
}

func (b *testBot) textIn(chat, user int64, text string) {
	b.svc.HandleUpdate(context.Background(), telegram.Update{
		Message: &telegram.Message{
			From: &telegram.User{ID: user, FirstName: "Анна"},
			Chat: telegram.Chat{ID: chat},
			Text: text,
		},
	})
}

func (b *testBot) press(user, messageID int64, data string) {
	b.svc.HandleUpdate(context.Background(), telegram.Update{
		CallbackQuery: &telegram.CallbackQuery{
			ID:      "cb-" + data,
			From:    telegram.User{ID: user, FirstName: "Анна"},
			Message: &telegram.Message{MessageID: messageID, Chat: telegram.Chat{ID: user}},
			Data:    data,
		},
	})
}

// button ищет кнопку с подписью label в сообщении.
func button(t *testing.T, msg sentMessage, label string) string {
	t.Helper()
	for _, row := range msg.Buttons {
		for _, b := range row {
			if b.Text == label {
				return b.Data
			}
		}
	}
	t.Fatalf("button %q not found in message %d", label, msg.ID)
	return ""
}

func scenarioItems() []catalog.Item {
	return []catalog.Item{
		{Name: "Аваланж", Description: "Белая чайно-гибридная", Care: "Полив раз в неделю", History: "Выведена в 1997"},
		{Name: "Ред Наоми", Description: "Тёмно-красная"},
		{Name: "Пинк Флойд", Description: "Ярко-розовая"},
	}
}
