package bot

import (
	"context"

	"github.com/Vovarama1992/rose-catalog-bot/internal/logger"
	"github.com/Vovarama1992/rose-catalog-bot/internal/session"
	"github.com/Vovarama1992/rose-catalog-bot/internal/telegram"
)

// Lifecycle — сообщения текущего хода чата. Перед новым ходом старые
// сообщения удаляются по возможности: ошибки удаления только логируются.
type Lifecycle struct {
	sessions *session.Store
	out      telegram.Outbound
	log      logger.ILogger
}

func NewLifecycle(sessions *session.Store, out telegram.Outbound, log logger.ILogger) *Lifecycle {
	return &Lifecycle{sessions: sessions, out: out, log: log}
}

// BeginTurn забывает прошлый ход чата и пытается удалить его сообщения.
func (l *Lifecycle) BeginTurn(ctx context.Context, chat int64) {
	for _, id := range l.sessions.ClearMessages(chat) {
		l.delete(ctx, chat, id)
	}
}

func (l *Lifecycle) Track(chat, messageID int64) {
	l.sessions.TrackMessages(chat, messageID)
}

// Drop удаляет одно сообщение хода (старая карточка подробностей, кнопка «Ещё»).
func (l *Lifecycle) Drop(ctx context.Context, chat, messageID int64) {
	if messageID == 0 {
		return
	}
	l.sessions.UntrackMessage(chat, messageID)
	l.delete(ctx, chat, messageID)
}

func (l *Lifecycle) delete(ctx context.Context, chat, messageID int64) {
	if err := l.out.Delete(ctx, chat, messageID); err != nil {
		// сообщение уже удалено пользователем или старше 48 часов
		l.log.Warn("lifecycle", "delete skipped", map[string]interface{}{
			"chat_id": chat, "message_id": messageID, "error": err.Error(),
		})
	}
}
