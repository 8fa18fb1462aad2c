package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/spec-kit/ticket-relay/internal/domain"
)

const defaultAPIBaseURL = "https://api.telegram.org"

// ClientConfig configures the Bot API client.
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client calls the Bot API over HTTPS.
type Client struct {
	http    *resty.Client
	timeout time.Duration
}

// NewClient builds a client. Requests are never retried; a failed send is reported to the caller.
func NewClient(cfg ClientConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultAPIBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(fmt.Sprintf("%s/bot%s", base, cfg.Token)).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	return &Client{http: httpClient, timeout: cfg.Timeout}
}

// Send posts msg as an HTML formatted message and returns the new message id.
func (c *Client) Send(ctx context.Context, msg domain.OutboundMessage) (int64, error) {
	req := sendMessageRequest{
		ChatID:    msg.ConversationID,
		Text:      msg.Text,
		ParseMode: "HTML",
	}
	if msg.ReplyToMessageID != nil {
		req.ReplyParameters = &replyParameters{
			MessageID:                *msg.ReplyToMessageID,
			AllowSendingWithoutReply: true,
		}
	}

	var sent Message
	if err := c.call(ctx, "sendMessage", req, &sent); err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout / time.Second),
		AllowedUpdates: []string{"message", "my_chat_member"},
	}

	var updates []Update
	// The server holds a long poll open for timeout, so the deadline extends past it.
	pollCtx, cancel := context.WithTimeout(ctx, timeout+c.timeout)
	defer cancel()
	if err := c.do(pollCtx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", struct{}{}, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// DeleteWebhook removes a configured webhook so long polling can receive updates.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	var ok bool
	return c.call(ctx, "deleteWebhook", struct{}{}, &ok)
}

func (c *Client) call(ctx context.Context, method string, body, out interface{}) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.do(reqCtx, method, body, out)
}

func (c *Client) do(ctx context.Context, method string, body, out interface{}) error {
	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/" + method)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("telegram %s: decode response (status %d): %w", method, resp.StatusCode(), err)
	}
	if !env.OK {
		apiErr := &APIError{ErrorCode: env.ErrorCode, Description: env.Description}
		if apiErr.ErrorCode == 0 {
			apiErr.ErrorCode = resp.StatusCode()
		}
		if env.Parameters != nil {
			apiErr.RetryAfter = env.Parameters.RetryAfter
		}
		return apiErr
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}
