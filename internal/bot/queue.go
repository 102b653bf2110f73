package bot

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/Vovarama1992/rose-catalog-bot/internal/logger"
	"github.com/Vovarama1992/rose-catalog-bot/internal/telegram"
)

const UpdatesTopic = "telegram.updates"

// Queue развязывает вебхук и обработку: вебхук кладёт событие и сразу
// отвечает 200, события одного пользователя обрабатываются по порядку.
type Queue struct {
	pubSub  *gochannel.GoChannel
	handler UpdateHandler
	log     logger.ILogger
	seen    *gocache.Cache

	mu    sync.Mutex
	lanes map[int64][]telegram.Update
	wg    sync.WaitGroup
}

func NewQueue(handler UpdateHandler, log logger.ILogger, dedupTTL time.Duration) *Queue {
	if dedupTTL <= 0 {
		dedupTTL = 10 * time.Minute
	}
	// Publish ждёт подтверждения, иначе gochannel не сохраняет порядок
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256, BlockPublishUntilSubscriberAck: true},
		watermillLogger{log: log},
	)
	return &Queue{
		pubSub:  pubSub,
		handler: handler,
		log:     log,
		seen:    gocache.New(dedupTTL, dedupTTL),
		lanes:   make(map[int64][]telegram.Update),
	}
}

// Publish ставит событие в очередь. Повтор уже виденного update_id отбрасывается.
func (q *Queue) Publish(upd telegram.Update) error {
	if upd.UpdateID != 0 {
		if err := q.seen.Add(strconv.FormatInt(upd.UpdateID, 10), struct{}{}, gocache.DefaultExpiration); err != nil {
			q.log.Debug("queue", "duplicate update dropped", map[string]interface{}{"update_id": upd.UpdateID})
			return nil
		}
	}

	payload, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	return q.pubSub.Publish(UpdatesTopic, message.NewMessage(uuid.NewString(), payload))
}

// Run подписывается на топик и раздаёт события по дорожкам пользователей.
// Возвращается сразу; чтение идёт до Close.
func (q *Queue) Run(ctx context.Context) error {
	messages, err := q.pubSub.Subscribe(ctx, UpdatesTopic)
	if err != nil {
		return err
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for msg := range messages {
			var upd telegram.Update
			if err := json.Unmarshal(msg.Payload, &upd); err != nil {
				q.log.Error("queue", "bad update payload", map[string]interface{}{"message_uuid": msg.UUID, "error": err})
				msg.Ack()
				continue
			}
			msg.Ack()
			q.enqueue(context.WithoutCancel(ctx), upd)
		}
	}()

	return nil
}

func (q *Queue) enqueue(ctx context.Context, upd telegram.Update) {
	user := userOf(upd)

	q.mu.Lock()
	pending, busy := q.lanes[user]
	q.lanes[user] = append(pending, upd)
	q.mu.Unlock()

	if busy {
		return
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.drain(ctx, user)
	}()
}

// drain обрабатывает дорожку пользователя, пока в ней что-то есть.
func (q *Queue) drain(ctx context.Context, user int64) {
	for {
		q.mu.Lock()
		pending := q.lanes[user]
		if len(pending) == 0 {
			delete(q.lanes, user)
			q.mu.Unlock()
			return
		}
		upd := pending[0]
		q.lanes[user] = pending[1:]
		q.mu.Unlock()

		q.handler.HandleUpdate(ctx, upd)
	}
}

// Close останавливает приём и дожидается обработки уже взятых событий.
func (q *Queue) Close() error {
	err := q.pubSub.Close()
	q.wg.Wait()
	return err
}

func userOf(upd telegram.Update) int64 {
	switch {
	case upd.CallbackQuery != nil:
		return upd.CallbackQuery.From.ID
	case upd.Message != nil && upd.Message.From != nil:
		return upd.Message.From.ID
	case upd.Message != nil:
		return upd.Message.Chat.ID
	default:
		return 0
	}
}

// watermillLogger — адаптер ILogger под watermill.LoggerAdapter.
type watermillLogger struct {
	log    logger.ILogger
	fields watermill.LogFields
}

func (l watermillLogger) details(fields watermill.LogFields) map[string]interface{} {
	out := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (l watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	d := l.details(fields)
	d["error"] = err
	l.log.Error("watermill", msg, d)
}

func (l watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.log.Info("watermill", msg, l.details(fields))
}

func (l watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.log.Debug("watermill", msg, l.details(fields))
}

func (l watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.log.Debug("watermill", msg, l.details(fields))
}

func (l watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{log: l.log, fields: l.details(fields)}
}
