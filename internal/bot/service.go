package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/Vovarama1992/rose-catalog-bot/internal/apperr"
	"github.com/Vovarama1992/rose-catalog-bot/internal/callback"
	"github.com/Vovarama1992/rose-catalog-bot/internal/catalog"
	"github.com/Vovarama1992/rose-catalog-bot/internal/favorites"
	"github.com/Vovarama1992/rose-catalog-bot/internal/keylock"
	"github.com/Vovarama1992/rose-catalog-bot/internal/logger"
	"github.com/Vovarama1992/rose-catalog-bot/internal/session"
	"github.com/Vovarama1992/rose-catalog-bot/internal/telegram"
)

type Options struct {
	DisplayLimit int
	ContactText  string
	WebAppURL    string
}

// Service — диспетчер: превращает входящее событие в поиск, карточки и
// действия с избранным. События одного пользователя идут строго по очереди.
type Service struct {
	catalog   Catalog
	matcher   *catalog.Matcher
	sessions  *session.Store
	favorites *favorites.Store
	codec     *callback.Codec
	turns     *Lifecycle
	out       telegram.Outbound
	log       logger.ILogger
	locks     *keylock.Locker
	chatLocks *keylock.Locker
	opts      Options
}

func NewService(
	cat Catalog,
	matcher *catalog.Matcher,
	sessions *session.Store,
	favs *favorites.Store,
	codec *callback.Codec,
	out telegram.Outbound,
	log logger.ILogger,
	opts Options,
) *Service {
	if opts.DisplayLimit <= 0 {
		opts.DisplayLimit = 5
	}
	return &Service{
		catalog:   cat,
		matcher:   matcher,
		sessions:  sessions,
		favorites: favs,
		codec:     codec,
		turns:     NewLifecycle(sessions, out, log),
		out:       out,
		log:       log,
		locks:     keylock.New(),
		chatLocks: keylock.New(),
		opts:      opts,
	}
}

// HandleUpdate обрабатывает событие до конца. Любая внутренняя ошибка
// превращается в сообщение пользователю и запись в лог.
func (s *Service) HandleUpdate(ctx context.Context, upd telegram.Update) {
	var (
		user, chat int64
		handle     func() error
	)

	switch {
	case upd.CallbackQuery != nil:
		cq := upd.CallbackQuery
		user, chat = cq.From.ID, cq.From.ID
		if cq.Message != nil {
			chat = cq.Message.Chat.ID
		}
		handle = func() error { return s.handleCallback(ctx, chat, cq) }
	case upd.Message != nil:
		msg := upd.Message
		user, chat = msg.Chat.ID, msg.Chat.ID
		if msg.From != nil {
			user = msg.From.ID
		}
		handle = func() error { return s.handleText(ctx, chat, user, msg.Text) }
	default:
		s.log.Debug("bot", "update ignored", map[string]interface{}{"update_id": upd.UpdateID})
		return
	}

	// ход принадлежит чату: в группе его делят несколько пользователей.
	// Порядок захвата всегда пользователь, затем чат.
	unlock := s.locks.Lock(user)
	defer unlock()
	unlockChat := s.chatLocks.Lock(chat)
	defer unlockChat()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("bot", "panic while handling update", map[string]interface{}{
				"update_id": upd.UpdateID, "user_id": user, "panic": fmt.Sprint(r),
			})
			s.sendPlain(ctx, chat, ApologyText)
		}
	}()

	if err := handle(); err != nil {
		s.fail(ctx, chat, user, upd.UpdateID, err)
	}
}

// State — состояние диалога пользователя по данным сессии.
func (s *Service) State(user int64) State {
	sess, ok := s.sessions.Current(user)
	switch {
	case !ok:
		return StateIdle
	case sess.DetailMessageID != 0:
		return StateDetailShown
	case len(sess.Items) > 0:
		return StateResultsShown
	default:
		return StateIdle
	}
}

func (s *Service) fail(ctx context.Context, chat, user, updateID int64, err error) {
	details := map[string]interface{}{
		"update_id": updateID, "user_id": user, "kind": apperr.KindOf(err).String(), "error": err,
	}

	switch apperr.KindOf(err) {
	case apperr.KindStaleReference:
		s.log.Info("bot", "stale reference", details)
		s.sendTracked(ctx, chat, StaleText)
	case apperr.KindDataSource:
		s.log.Warn("bot", "data source unavailable", details)
		s.sendPlain(ctx, chat, FavoritesUnavailableText)
	default:
		s.log.Error("bot", "update failed", details)
		s.sendPlain(ctx, chat, ApologyText)
	}
}

// ---------------------------------------------------------------- text

func (s *Service) handleText(ctx context.Context, chat, user int64, text string) error {
	text = strings.TrimSpace(text)

	switch {
	case text == "/start":
		_, err := s.out.Send(ctx, telegram.Outgoing{
			ChatID:   chat,
			Text:     WelcomeText,
			Keyboard: mainKeyboard(s.opts.WebAppURL),
		})
		return err
	case text == "/app":
		if s.opts.WebAppURL == "" {
			return s.send(ctx, chat, AppUnavailableText)
		}
		_, err := s.out.Send(ctx, telegram.Outgoing{
			ChatID:   chat,
			Text:     OpenAppText,
			Keyboard: [][]telegram.KeyboardButton{{{Text: ButtonOpenApp, WebAppURL: s.opts.WebAppURL}}},
		})
		return err
	case text == ButtonSearch || text == "/search":
		return s.send(ctx, chat, SearchPromptText)
	case text == ButtonContact || text == "/contact":
		return s.send(ctx, chat, s.opts.ContactText)
	case text == ButtonFavorites || text == "/favorites":
		return s.showFavorites(ctx, chat, user)
	case strings.HasPrefix(text, "/"):
		return s.send(ctx, chat, SearchPromptText)
	}

	return s.search(ctx, chat, user, text)
}

func (s *Service) search(ctx context.Context, chat, user int64, text string) error {
	if catalog.Normalize(text) == "" {
		return s.send(ctx, chat, SearchPromptText)
	}

	s.turns.BeginTurn(ctx, chat)

	matches := s.matcher.Match(text, s.catalog.All())
	sess := s.sessions.Replace(user, matches)

	s.log.Info("bot", "search", map[string]interface{}{
		"user_id": user, "query": text, "mode": s.matcher.Mode().String(),
		"matches": len(matches), "stored": len(sess.Items),
	})

	if len(sess.Items) == 0 {
		return s.sendTrackedErr(ctx, chat, NothingFoundText)
	}
	return s.showPage(ctx, chat, user, sess.Gen, 0)
}

// showPage показывает страницу результата начиная с offset и, если есть
// продолжение, кнопку «Ещё».
func (s *Service) showPage(ctx context.Context, chat, user int64, gen uint64, offset int) error {
	items, next, err := s.sessions.Page(user, gen, offset, s.opts.DisplayLimit)
	if err != nil {
		return err
	}

	for i, it := range items {
		t, err := sessionTokens(s.codec, user, gen, offset+i)
		if err != nil {
			return err
		}
		id, err := s.sendCard(ctx, telegram.Outgoing{
			ChatID:   chat,
			Text:     cardText(it),
			PhotoURL: it.Photo(),
			Buttons:  resultButtons(t),
		})
		if err != nil {
			return err
		}
		s.turns.Track(chat, id)
	}

	if next == 0 {
		return nil
	}

	more, err := s.codec.SessionToken(callback.OpMore, user, gen, next)
	if err != nil {
		return err
	}
	id, err := s.out.Send(ctx, telegram.Outgoing{
		ChatID:  chat,
		Text:    MoreResultsText,
		Buttons: [][]telegram.Button{{{Text: ButtonMore, Data: more}}},
	})
	if err != nil {
		return err
	}
	s.turns.Track(chat, id)
	return nil
}

func (s *Service) showFavorites(ctx context.Context, chat, user int64) error {
	s.turns.BeginTurn(ctx, chat)

	entries := s.favorites.List(user)
	if len(entries) == 0 {
		return s.sendTrackedErr(ctx, chat, FavoritesEmptyText)
	}

	if err := s.sendTrackedErr(ctx, chat, FavoritesHeaderText); err != nil {
		return err
	}

	for _, e := range entries {
		buttons, err := favoriteButtons(s.codec, e.Item.Name)
		if err != nil {
			return err
		}
		id, err := s.sendCard(ctx, telegram.Outgoing{
			ChatID:   chat,
			Text:     cardText(e.Item),
			PhotoURL: e.Item.Photo(),
			Buttons:  buttons,
		})
		if err != nil {
			return err
		}
		s.turns.Track(chat, id)
	}
	return nil
}

// ------------------------------------------------------------ callbacks

func (s *Service) handleCallback(ctx context.Context, chat int64, cq *telegram.CallbackQuery) error {
	user := cq.From.ID
	answer := ""
	defer func() {
		// спиннер на кнопке гаснет только после ответа
		if err := s.out.AnswerCallback(ctx, cq.ID, answer); err != nil {
			s.log.Warn("bot", "answer callback failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	action, err := callback.Decode(cq.Data)
	if err != nil {
		s.log.Warn("bot", "malformed callback token", map[string]interface{}{"user_id": user, "data": cq.Data})
		return apperr.ErrStale
	}

	if action.Op == callback.OpMore {
		if action.Kind != callback.KindSession || action.User != user {
			return apperr.ErrStale
		}
		if err := s.showPage(ctx, chat, user, action.Gen, action.Index); err != nil {
			return err
		}
		if cq.Message != nil {
			s.turns.Drop(ctx, chat, cq.Message.MessageID)
		}
		return nil
	}

	item, err := s.resolve(user, action)
	if err != nil {
		return err
	}

	switch action.Op {
	case callback.OpFavorite:
		res, err := s.favorites.Add(ctx, user, cq.From.DisplayName(), item)
		if err != nil {
			return err
		}
		answer = AnswerAlreadyPresent
		if res == favorites.Added {
			answer = AnswerAdded
		}
		return nil

	case callback.OpUnfavorite:
		res, err := s.favorites.Remove(ctx, user, item.Name)
		if err != nil {
			return err
		}
		answer = AnswerNotFound
		if res == favorites.Removed {
			answer = AnswerRemoved
			if cq.Message != nil {
				s.turns.Drop(ctx, chat, cq.Message.MessageID)
			}
		}
		return nil

	default:
		return s.showDetail(ctx, chat, user, action, item)
	}
}

// resolve находит позицию по токену. Всё, что больше не разрешается
// однозначно, — apperr.ErrStale.
func (s *Service) resolve(user int64, a callback.Action) (catalog.Item, error) {
	if a.Kind == callback.KindSession {
		if a.User != user {
			return catalog.Item{}, apperr.ErrStale
		}
		return s.sessions.Get(user, a.Gen, a.Index)
	}

	name, err := s.codec.Lookup(a.Hash)
	if err != nil {
		// реестр пуст после рестарта — ищем хеш среди избранного пользователя
		if e, ok := s.favorites.FindByDigest(user, a.Hash); ok {
			return e.Item, nil
		}
		return catalog.Item{}, apperr.ErrStale
	}
	if catalog.Digest(name) != a.Hash {
		return catalog.Item{}, apperr.ErrStale
	}

	if e, ok := s.favorites.Find(user, name); ok {
		return e.Item, nil
	}
	if a.Op == callback.OpUnfavorite {
		// удалять нечего, но это не устаревшая ссылка
		return catalog.Item{Name: name}, nil
	}
	if it, ok := s.catalog.FindByName(name); ok {
		return it, nil
	}
	return catalog.Item{}, apperr.ErrStale
}

func (s *Service) showDetail(ctx context.Context, chat, user int64, a callback.Action, item catalog.Item) error {
	var buttons [][]telegram.Button
	switch a.Kind {
	case callback.KindSession:
		fav, err := s.codec.SessionToken(callback.OpFavorite, user, a.Gen, a.Index)
		if err != nil {
			return err
		}
		buttons = [][]telegram.Button{{{Text: ButtonAddFav, Data: fav}}}
	case callback.KindItem:
		if _, ok := s.favorites.Find(user, item.Name); ok {
			remove, err := s.codec.ItemToken(callback.OpUnfavorite, item.Name)
			if err != nil {
				return err
			}
			buttons = [][]telegram.Button{{{Text: ButtonRemoveFav, Data: remove}}}
		}
	}

	id, err := s.out.Send(ctx, telegram.Outgoing{
		ChatID:  chat,
		Text:    detailText(a.Op, item),
		Buttons: buttons,
	})
	if err != nil {
		return err
	}

	s.turns.Track(chat, id)
	if prev := s.sessions.SwapDetail(user, id); prev != 0 {
		s.turns.Drop(ctx, chat, prev)
	}
	return nil
}

// ---------------------------------------------------------------- send

// sendCard шлёт фото с подписью; если мессенджер отверг медиа, шлёт тот же текст без фото.
func (s *Service) sendCard(ctx context.Context, msg telegram.Outgoing) (int64, error) {
	id, err := s.out.Send(ctx, msg)
	if err == nil || msg.PhotoURL == "" || !apperr.Is(err, apperr.KindDelivery) {
		return id, err
	}

	s.log.Warn("bot", "media rejected, falling back to text", map[string]interface{}{
		"chat_id": msg.ChatID, "photo": msg.PhotoURL, "error": err.Error(),
	})
	msg.PhotoURL = ""
	return s.out.Send(ctx, msg)
}

func (s *Service) send(ctx context.Context, chat int64, text string) error {
	_, err := s.out.Send(ctx, telegram.Outgoing{ChatID: chat, Text: text})
	return err
}

func (s *Service) sendTrackedErr(ctx context.Context, chat int64, text string) error {
	id, err := s.out.Send(ctx, telegram.Outgoing{ChatID: chat, Text: text})
	if err != nil {
		return err
	}
	s.turns.Track(chat, id)
	return nil
}

// sendTracked / sendPlain — последняя линия: ошибка отправки только в лог.
func (s *Service) sendTracked(ctx context.Context, chat int64, text string) {
	if err := s.sendTrackedErr(ctx, chat, text); err != nil {
		s.log.Error("bot", "fallback send failed", map[string]interface{}{"chat_id": chat, "error": err})
	}
}

func (s *Service) sendPlain(ctx context.Context, chat int64, text string) {
	if err := s.send(ctx, chat, text); err != nil {
		s.log.Error("bot", "fallback send failed", map[string]interface{}{"chat_id": chat, "error": err})
	}
}
