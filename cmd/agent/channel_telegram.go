//go:build !telegram_telego

package main

import (
	"fmt"
	"log/slog"

	"moltis/internal/adapter/channel"
	"moltis/internal/domain"
	"moltis/internal/infra/config"
)

func buildTelegramChannel(cc config.ChannelConfig, log *slog.Logger) (domain.Channel, error) {
	if cc.Telegram == nil || cc.Telegram.Token == "" {
		return nil, fmt.Errorf("telegram.token is required")
	}
	var opts []channel.TelegramOption
	if cc.MentionOnly {
		opts = append(opts, channel.WithTelegramMentionOnly(true))
	}
	return channel.NewTelegramChannel(cc.Telegram.Token, log, opts...), nil
}
