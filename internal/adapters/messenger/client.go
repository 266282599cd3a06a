// Package messenger delivers cards to the chat platform, routing each grouping
// key to its configured chat.
package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"onboard/internal/adapters/vendorapi"
	"onboard/internal/notify/card"
	"onboard/internal/platform/upstream"
	"onboard/pkg/platform/sentinel"
)

const (
	messagesPath = "/open-apis/im/v1/messages?receive_id_type=chat_id"

	codeChatMissing  = 230002
	codeBotNotInChat = 230006
)

var codes = vendorapi.CodeMap{
	codeChatMissing:  sentinel.ErrNotFound,
	codeBotNotInChat: sentinel.ErrInvalidState,
}

type sendRequest struct {
	ReceiveID string `json:"receive_id"`
	MsgType   string `json:"msg_type"`
	Content   string `json:"content"`
}

type sent struct {
	MessageID string `json:"message_id"`
}

type Client struct {
	api    *upstream.Client
	chats  map[string]string
	logger *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// DefaultChat is the chats key of the chat used for the unassigned group,
// unmapped groups and follow-ups.
const DefaultChat = "default"

// New constructs a messenger. chats maps grouping keys to chat ids.
func New(api *upstream.Client, chats map[string]string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, fmt.Errorf("upstream client is required")
	}
	if chats[DefaultChat] == "" {
		return nil, fmt.Errorf("chat %q is required", DefaultChat)
	}
	c := &Client{api: api, chats: chats, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Send posts c to the chat routed for group and returns the message id.
func (c *Client) Send(ctx context.Context, group string, cd card.Card) (string, error) {
	chat := c.chats[group]
	if group == "" || chat == "" {
		chat = c.chats[DefaultChat]
	}
	return c.post(ctx, chat, cd)
}

// SendFollowup posts c to the default chat.
func (c *Client) SendFollowup(ctx context.Context, cd card.Card) error {
	_, err := c.post(ctx, c.chats[DefaultChat], cd)
	return err
}

func (c *Client) post(ctx context.Context, chat string, cd card.Card) (string, error) {
	content, err := json.Marshal(toInteractive(cd))
	if err != nil {
		return "", fmt.Errorf("encode card: %w", err)
	}
	out, err := vendorapi.Call[sent](ctx, c.api, codes, http.MethodPost, messagesPath, sendRequest{
		ReceiveID: chat,
		MsgType:   "interactive",
		Content:   string(content),
	})
	if err != nil {
		return "", fmt.Errorf("send to chat %s: %w", chat, err)
	}
	c.logger.DebugContext(ctx, "card sent", "chat_id", chat, "message_id", out.MessageID)
	return out.MessageID, nil
}
