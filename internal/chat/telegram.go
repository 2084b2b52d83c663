package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramConfig holds Telegram transport configuration.
type TelegramConfig struct {
	Token              string
	PollTimeoutSeconds int
}

// Telegram implements Transport over the Telegram Bot API using long polling.
// Sender and recipient identities are Telegram chat ids.
type Telegram struct {
	bot     *tgbotapi.BotAPI
	config  TelegramConfig
	handler InboundHandler
	logger  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewTelegram authorizes the bot token and builds the transport.
func NewTelegram(cfg TelegramConfig, handler InboundHandler, logger *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollTimeoutSeconds <= 0 {
		cfg.PollTimeoutSeconds = 30
	}

	logger.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))

	return &Telegram{
		bot:     bot,
		config:  cfg,
		handler: handler,
		logger:  logger,
	}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Start begins long-polling for updates. Blocks until ctx is cancelled or Stop is called.
func (t *Telegram) Start(ctx context.Context) error {
	t.mu.Lock()
	ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.config.PollTimeoutSeconds

	updates := t.bot.GetUpdatesChan(u)

	t.logger.Info("telegram transport started", zap.String("bot", t.bot.Self.UserName))

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			t.handleUpdate(ctx, update.Message)

		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			t.logger.Info("telegram transport stopped")
			return nil
		}
	}
}

// Stop cancels the polling loop.
func (t *Telegram) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

// Send delivers plain text to a Telegram chat.
func (t *Telegram) Send(_ context.Context, recipientID, text string) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(recipientID), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", recipientID, err)
	}
	if strings.TrimSpace(text) == "" {
		t.logger.Warn("skipping empty message", zap.String("recipient_id", recipientID))
		return nil
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}

func (t *Telegram) handleUpdate(ctx context.Context, msg *tgbotapi.Message) {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	inbound := InboundMessage{
		Channel:  t.Name(),
		SenderID: strconv.FormatInt(msg.Chat.ID, 10),
		ChatID:   strconv.FormatInt(msg.Chat.ID, 10),
		Text:     text,
	}

	if err := t.handler(ctx, inbound); err != nil {
		t.logger.Error("inbound handler error",
			zap.String("sender_id", inbound.SenderID),
			zap.Error(err))
	}
}
