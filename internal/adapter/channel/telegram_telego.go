//go:build telegram_telego

package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"moltis/internal/domain"
)

// TelegramTelegoOption configures the telego-backed Telegram channel.
type TelegramTelegoOption func(*TelegramTelegoChannel)

// WithTelegramTelegoMentionOnly enables mention-only filtering in groups.
func WithTelegramTelegoMentionOnly(v bool) TelegramTelegoOption {
	return func(t *TelegramTelegoChannel) { t.mentionOnly = v }
}

// TelegramTelegoChannel implements domain.Channel for Telegram Bot API using
// github.com/mymmrac/telego's long-polling client, instead of the hand-rolled
// HTTP client TelegramChannel uses. Same inbound/outbound semantics; heavier
// dependency, richer update/typed-error handling.
type TelegramTelegoChannel struct {
	bot         *telego.Bot
	handler     domain.MessageHandler
	logger      *slog.Logger
	mentionOnly bool
	botUsername string
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewTelegramTelegoChannel creates a telego-backed Telegram channel.
func NewTelegramTelegoChannel(token string, logger *slog.Logger, opts ...TelegramTelegoOption) (*TelegramTelegoChannel, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create telego bot: %w", err)
	}
	t := &TelegramTelegoChannel{
		bot:    bot,
		logger: logger,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Name implements domain.Channel.
func (t *TelegramTelegoChannel) Name() string { return "telegram" }

// Start begins long-polling for updates via telego.
func (t *TelegramTelegoChannel) Start(ctx context.Context, handler domain.MessageHandler) error {
	t.handler = handler

	if me, err := t.bot.GetMe(ctx); err == nil {
		t.botUsername = me.Username
		t.logger.Info("telegram (telego) bot identified", "username", me.Username)
	} else {
		t.logger.Warn("telegram (telego) getMe failed, mention detection disabled", "error", err)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})

	updates, err := t.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	go func() {
		defer close(t.done)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil {
					continue
				}
				t.handleMessage(pollCtx, update.Message)
			}
		}
	}()

	t.logger.Info("telegram (telego) channel started")
	return nil
}

// Stop cancels long polling and waits for the polling goroutine to exit.
func (t *TelegramTelegoChannel) Stop(_ context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.done != nil {
		select {
		case <-t.done:
		case <-time.After(10 * time.Second):
			t.logger.Warn("telegram (telego) polling goroutine did not exit within timeout")
		}
	}
	return nil
}

// Send sends a message to a Telegram chat.
func (t *TelegramTelegoChannel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	content := msg.Content
	if msg.IsError {
		content = "Error: " + content
	}

	chatID, err := strconv.ParseInt(msg.SessionID, 10, 64)
	if err != nil {
		return fmt.Errorf("parse chat id %q: %w", msg.SessionID, err)
	}

	params := &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chatID},
		Text:   content,
	}
	if msg.ThreadID != "" {
		if tid, err := strconv.Atoi(msg.ThreadID); err == nil {
			params.MessageThreadID = tid
		}
	}
	if msg.ReplyToID != "" {
		if rid, err := strconv.Atoi(msg.ReplyToID); err == nil {
			params.ReplyParameters = &telego.ReplyParameters{MessageID: rid}
		}
	}

	_, err = t.bot.SendMessage(ctx, params)
	if err != nil {
		return fmt.Errorf("telego sendMessage: %w", err)
	}
	return nil
}

func (t *TelegramTelegoChannel) handleMessage(ctx context.Context, m *telego.Message) {
	content := m.Text
	if content == "" {
		content = m.Caption
	}
	if content == "" {
		return
	}

	chatID := strconv.FormatInt(m.Chat.ID, 10)

	isMention := t.hasBotMention(m)
	isGroup := m.Chat.Type != "" && m.Chat.Type != "private"
	if t.mentionOnly && isGroup && !isMention {
		return
	}

	msg := domain.InboundMessage{
		SessionID:   chatID,
		Content:     content,
		ChannelName: "telegram",
		IsMention:   isMention,
	}

	if m.From != nil {
		msg.SenderID = strconv.FormatInt(m.From.ID, 10)
		name := m.From.FirstName
		if m.From.LastName != "" {
			name += " " + m.From.LastName
		}
		msg.SenderName = name
	}

	if isGroup {
		msg.GroupID = chatID
	}
	if m.MessageThreadID != 0 {
		msg.ThreadID = strconv.Itoa(m.MessageThreadID)
	}
	if m.ReplyToMessage != nil {
		msg.ReplyToID = strconv.Itoa(m.ReplyToMessage.MessageID)
	}

	if err := t.handler(ctx, msg); err != nil {
		t.logger.Error("telegram (telego) handler error", "error", err, "chat_id", chatID)
	}
}

func (t *TelegramTelegoChannel) hasBotMention(m *telego.Message) bool {
	if t.botUsername == "" || m.Entities == nil {
		return false
	}
	for _, e := range m.Entities {
		if e.Type != "mention" {
			continue
		}
		end := e.Offset + e.Length
		if end <= len([]rune(m.Text)) {
			mention := string([]rune(m.Text)[e.Offset:end])
			if strings.EqualFold(mention, "@"+t.botUsername) {
				return true
			}
		}
	}
	return false
}
