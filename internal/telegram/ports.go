package telegram

import (
	"context"
	"fmt"
)

// Update — входящее событие вебхука: либо текст, либо нажатие кнопки.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// DisplayName — имя для строки избранного.
func (u User) DisplayName() string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.LastName != "":
		return u.FirstName + " " + u.LastName
	default:
		return u.FirstName
	}
}

type Chat struct {
	ID int64 `json:"id"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data"`
}

// Button — inline-кнопка: подпись и токен callback_data.
type Button struct {
	Text string
	Data string
}

// KeyboardButton — кнопка reply-клавиатуры, опционально открывающая мини-приложение.
type KeyboardButton struct {
	Text      string
	WebAppURL string
}

// Outgoing — исходящее сообщение: текст или фото с подписью.
type Outgoing struct {
	ChatID   int64
	Text     string
	PhotoURL string
	Buttons  [][]Button
	Keyboard [][]KeyboardButton
}

// Outbound — всё, что диспетчеру нужно от мессенджера.
type Outbound interface {
	Send(ctx context.Context, msg Outgoing) (messageID int64, err error)
	Delete(ctx context.Context, chatID, messageID int64) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// APIError — ответ Bot API с ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}
