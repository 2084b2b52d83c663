package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// OutboundMessage is a message handed to a transport for delivery.
type OutboundMessage struct {
	RecipientID string
	Text        string
}

// LogTransport is a Transport that records and logs outbound messages instead
// of delivering them. It is used when no chat platform is configured.
type LogTransport struct {
	logger *zap.Logger

	mu   sync.Mutex
	sent []OutboundMessage
	stop chan struct{}
	once sync.Once
}

// NewLogTransport builds a recording transport.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTransport{logger: logger, stop: make(chan struct{})}
}

func (l *LogTransport) Name() string { return "log" }

// Start blocks until ctx is cancelled or Stop is called.
func (l *LogTransport) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-l.stop:
	}
	return nil
}

func (l *LogTransport) Stop() error {
	l.once.Do(func() { close(l.stop) })
	return nil
}

func (l *LogTransport) Send(_ context.Context, recipientID, text string) error {
	l.mu.Lock()
	l.sent = append(l.sent, OutboundMessage{RecipientID: recipientID, Text: text})
	l.mu.Unlock()
	l.logger.Info("outbound message", zap.String("recipient_id", recipientID), zap.String("text", text))
	return nil
}

// Sent returns a copy of every message recorded so far.
func (l *LogTransport) Sent() []OutboundMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]OutboundMessage(nil), l.sent...)
}

// SentTo returns the messages recorded for one recipient.
func (l *LogTransport) SentTo(recipientID string) []OutboundMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []OutboundMessage
	for _, m := range l.sent {
		if m.RecipientID == recipientID {
			out = append(out, m)
		}
	}
	return out
}

// Reset drops recorded messages.
func (l *LogTransport) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = nil
}
