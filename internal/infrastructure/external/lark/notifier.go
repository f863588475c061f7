package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/finclose/close-engine/internal/application/port"
)

// Config holds Lark client configuration. APITimeout bounds each API call
// at the HTTP client level; zero leaves the SDK default in place.
type Config struct {
	AppID      string
	AppSecret  string
	APITimeout time.Duration
}

// Notifier sends text messages to Lark group chats. It implements
// port.LarkMessageSender; receive ids are chat ids.
type Notifier struct {
	client *lark.Client
	logger *zap.Logger
}

// NewNotifier creates a new Lark notifier
func NewNotifier(cfg Config, logger *zap.Logger) *Notifier {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.APITimeout > 0 {
		opts = append(opts, lark.WithReqTimeout(cfg.APITimeout))
	}

	return &Notifier{
		client: lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		logger: logger,
	}
}

// SendMessage sends a text message to a group chat
func (n *Notifier) SendMessage(ctx context.Context, chatID string, content string) error {
	if chatID == "" {
		return fmt.Errorf("chatID cannot be empty")
	}
	if content == "" {
		return fmt.Errorf("content cannot be empty")
	}

	textContent, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("chat_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType("text").
			Content(string(textContent)).
			Build()).
		Build()

	resp, err := n.client.Im.Message.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send message",
			zap.String("chat_id", chatID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("chat_id", chatID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	n.logger.Info("Message sent",
		zap.String("message_id", messageID),
		zap.String("chat_id", chatID))

	return nil
}

// Verify interface compliance
var _ port.LarkMessageSender = (*Notifier)(nil)
