// Package telegram is the outbound Bot API transport shared by every
// store engine. The client is stateless; the per-store bot token rides
// on each call.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrSendFailed indicates the Bot API rejected or never received a
// message.
var ErrSendFailed = errors.New("telegram send failed")

const (
	// DefaultAPIBase is the production Bot API endpoint.
	DefaultAPIBase = "https://api.telegram.org"

	// DefaultTimeout bounds one sendMessage round trip.
	DefaultTimeout = 10 * time.Second

	// MaxMessageLength is the Bot API per-message text limit.
	MaxMessageLength = 4096
)

const maxResponseSize = 1 << 20

// Config holds configuration for the Bot API client.
type Config struct {
	// APIBase overrides the Bot API endpoint, for tests and local
	// gateways. Empty means DefaultAPIBase.
	APIBase string

	// Timeout bounds a single API call. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Client talks to the Telegram Bot API. One instance serves all stores.
type Client struct {
	apiBase string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a Bot API client from the configuration.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		apiBase: strings.TrimRight(apiBase, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type sendRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type sendResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// SendMessage delivers text to a chat, splitting it into several
// messages when it exceeds the Bot API length limit. Replies are sent
// as HTML so store prompts can carry bold names and product links.
//
// Errors never contain the bot token, even when the transport layer
// embeds the request URL.
func (c *Client) SendMessage(ctx context.Context, token string, chatID int64, text string) error {
	if token == "" {
		return fmt.Errorf("%w: empty bot token", ErrSendFailed)
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	for _, chunk := range splitMessage(text, MaxMessageLength) {
		if err := c.sendOne(ctx, token, chatID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendOne(ctx context.Context, token string, chatID int64, text string) error {
	payload, err := json.Marshal(sendRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %v", ErrSendFailed, err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSendFailed, redact(err.Error(), token))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSendFailed, redact(err.Error(), token))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrSendFailed, err)
	}

	var decoded sendResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("%w: status %d, undecodable response", ErrSendFailed, resp.StatusCode)
	}
	if !decoded.OK {
		desc := decoded.Description
		if desc == "" {
			desc = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("%w: %s", ErrSendFailed, desc)
	}

	c.logger.Debug("message sent",
		zap.Int64("chat_id", chatID),
		zap.Int("length", len(text)))
	return nil
}

// redact removes the bot token from transport errors, which quote the
// full request URL.
func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<token>")
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// a line boundary in the back half of each chunk so formatted product
// blocks stay intact.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	chunks := make([]string, 0, (len(runes)+limit-1)/limit)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
