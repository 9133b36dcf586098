// Package telegram provides a minimal client for the Telegram Bot API
// sendMessage endpoint.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the notification operations used by the dispatcher.
type Client interface {
	// SendMessage delivers one Markdown-formatted message to the configured chat.
	SendMessage(ctx context.Context, text string) error
}

// Option configures the Telegram client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	token   string
	chatID  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Telegram Bot API client for one chat.
func NewClient(token, chatID string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		chatID:  chatID,
		baseURL: "https://api.telegram.org",
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		// Bot API allows roughly one message per second per chat.
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (c *httpClient) SendMessage(ctx context.Context, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "telegram: rate limiter")
	}

	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                c.chatID,
		Text:                  text,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return eris.Wrap(err, "telegram: marshal request")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "telegram: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "telegram: send message")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "telegram: read response")
	}

	var result sendMessageResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return eris.Errorf("telegram: status %d: unparseable response", resp.StatusCode)
	}
	if !result.OK {
		return eris.Errorf("telegram: status %d: %s", resp.StatusCode, result.Description)
	}
	return nil
}
