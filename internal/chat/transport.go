package chat

import "context"

// Transport is a chat platform the workflow talks through.
type Transport interface {
	// Name returns the transport type (e.g., "telegram").
	Name() string
	// Start begins listening for inbound messages. Blocks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error
	// Stop ends the session.
	Stop() error
	// Send delivers text to a recipient identity.
	Send(ctx context.Context, recipientID, text string) error
}

// InboundMessage is a message received from the chat platform.
type InboundMessage struct {
	Channel  string
	SenderID string
	ChatID   string
	Text     string
}

// InboundHandler processes messages received from the chat platform.
type InboundHandler func(ctx context.Context, msg InboundMessage) error
