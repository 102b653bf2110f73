package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Vovarama1992/rose-catalog-bot/internal/apperr"
)

// Лимиты Bot API.
const (
	MaxTextLen    = 4096
	MaxCaptionLen = 1024
)

type TelegramOutbound struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewTelegramOutbound(baseURL, token string) *TelegramOutbound {
	return &TelegramOutbound{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type webAppInfo struct {
	URL string `json:"url"`
}

type keyboardButton struct {
	Text   string      `json:"text"`
	WebApp *webAppInfo `json:"web_app,omitempty"`
}

func replyMarkup(msg Outgoing) any {
	if len(msg.Buttons) > 0 {
		rows := make([][]inlineButton, 0, len(msg.Buttons))
		for _, row := range msg.Buttons {
			r := make([]inlineButton, 0, len(row))
			for _, b := range row {
				r = append(r, inlineButton{Text: b.Text, CallbackData: b.Data})
			}
			rows = append(rows, r)
		}
		return map[string]any{"inline_keyboard": rows}
	}

	if len(msg.Keyboard) > 0 {
		rows := make([][]keyboardButton, 0, len(msg.Keyboard))
		for _, row := range msg.Keyboard {
			r := make([]keyboardButton, 0, len(row))
			for _, b := range row {
				kb := keyboardButton{Text: b.Text}
				if b.WebAppURL != "" {
					kb.WebApp = &webAppInfo{URL: b.WebAppURL}
				}
				r = append(r, kb)
			}
			rows = append(rows, r)
		}
		return map[string]any{"keyboard": rows, "resize_keyboard": true}
	}

	return nil
}

// Send отправляет фото с подписью, если задан PhotoURL, иначе текст.
func (c *TelegramOutbound) Send(ctx context.Context, msg Outgoing) (int64, error) {
	body := map[string]any{
		"chat_id":    msg.ChatID,
		"parse_mode": "HTML",
	}
	if markup := replyMarkup(msg); markup != nil {
		body["reply_markup"] = markup
	}

	method := "sendMessage"
	if msg.PhotoURL != "" {
		method = "sendPhoto"
		body["photo"] = msg.PhotoURL
		body["caption"] = msg.Text
	} else {
		body["text"] = msg.Text
	}

	var result struct {
		MessageID int64 `json:"message_id"`
	}
	if err := c.call(ctx, method, body, &result); err != nil {
		return 0, apperr.E(apperr.KindDelivery, "telegram."+method, err)
	}
	return result.MessageID, nil
}

func (c *TelegramOutbound) Delete(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

func (c *TelegramOutbound) AnswerCallback(ctx context.Context, callbackID, text string) error {
	body := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		body["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", body, nil)
}

// SetWebhook регистрирует URL вебхука.
func (c *TelegramOutbound) SetWebhook(ctx context.Context, url string) error {
	return c.call(ctx, "setWebhook", map[string]any{
		"url":                  url,
		"allowed_updates":      []string{"message", "callback_query"},
		"drop_pending_updates": false,
	}, nil)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

func (c *TelegramOutbound) call(ctx context.Context, method string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/bot"+c.token+"/"+method,
		bytes.NewReader(b),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// в тексте ошибки net/http есть URL с токеном
		return fmt.Errorf("telegram %s: request failed: %w", method, stripURL(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &APIError{Method: method, Code: resp.StatusCode, Description: "invalid response: " + resp.Status}
	}
	if !parsed.OK {
		return &APIError{Method: method, Code: parsed.ErrorCode, Description: parsed.Description}
	}

	if out != nil && len(parsed.Result) > 0 {
		return json.Unmarshal(parsed.Result, out)
	}
	return nil
}

func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
