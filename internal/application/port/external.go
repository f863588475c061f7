package port

import "context"

// LarkMessageSender defines message sending operations against the finance
// ops chat. Implementations live in infrastructure.
type LarkMessageSender interface {
	SendMessage(ctx context.Context, receiveID string, content string) error
}
