package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultAPIBase = "https://api.telegram.org"
	sendTimeout    = 30 * time.Second
)

// ExponentialBackoff waits 1s, 2s, 4s, ... before retry n (0-based).
func ExponentialBackoff(n int) time.Duration { return time.Second << uint(n) }

// TelegramNotifier posts HTML run reports to a single chat.
type TelegramNotifier struct {
	APIBase  string
	BotToken string
	ChatID   string
	Client   *http.Client
	Backoff  func(n int) time.Duration
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// NewTelegramNotifier builds a notifier; proxyURL may be empty.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	client := &http.Client{Timeout: sendTimeout}
	if u, err := url.Parse(proxyURL); proxyURL != "" && err == nil {
		client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	}
	return &TelegramNotifier{
		APIBase:  DefaultAPIBase,
		BotToken: botToken,
		ChatID:   chatID,
		Client:   client,
		Backoff:  ExponentialBackoff,
	}
}

func (t *TelegramNotifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(t.APIBase, "/"), t.BotToken, method)
}

// redact hides the bot token, which is part of every API URL.
func (t *TelegramNotifier) redact(err error) error {
	if t.BotToken == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), t.BotToken, "***"))
}

// Send posts one message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: t.ChatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return t.redact(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", t.redact(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, detail)
}

// SendWithRetry makes up to maxRetries+1 attempts, waiting Backoff(n)
// between them. Cancelling ctx stops the wait.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	attempts := maxRetries + 1
	err := t.Send(ctx, text)
	for n := 0; err != nil && n < maxRetries; n++ {
		wait := t.backoff(n)
		log.Printf("[WARN] telegram: send failed (%d/%d): %v; next try in %v", n+1, attempts, err, wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		err = t.Send(ctx, text)
	}
	if err != nil {
		return fmt.Errorf("telegram: giving up after %d attempt(s): %w", attempts, err)
	}
	return nil
}

func (t *TelegramNotifier) backoff(n int) time.Duration {
	if t.Backoff == nil {
		return ExponentialBackoff(n)
	}
	return t.Backoff(n)
}
