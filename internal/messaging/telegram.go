package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TelegramSender шлёт сообщения через Bot API (sendMessage).
// Таймаут запроса ограничен: зависший вызов трактуется как retryable.
type TelegramSender struct {
	apiURL string
	token  string
	client *http.Client
}

func NewTelegramSender(apiURL, token string, timeout time.Duration) *TelegramSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TelegramSender{
		apiURL: apiURL,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func (s *TelegramSender) Send(ctx context.Context, chatID int64, payload []byte) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: string(payload)})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// Сетевые ошибки и таймауты — retryable.
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var apiResp sendMessageResponse
	_ = json.Unmarshal(raw, &apiResp)
	desc := apiResp.Description
	if desc == "" {
		desc = string(raw)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
		// Бот заблокирован получателем или токен невалиден — повторы бесполезны.
		return &FatalError{Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, desc)}
	case resp.StatusCode == http.StatusBadRequest:
		// Кривой chat_id и подобное — тоже навсегда.
		return &FatalError{Reason: fmt.Sprintf("status %d: %s", resp.StatusCode, desc)}
	default:
		// 429 и 5xx — переживаемо, доставим позже.
		return fmt.Errorf("send message: status %d: %s", resp.StatusCode, desc)
	}
}
