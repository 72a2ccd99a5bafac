//go:build !discord

package main

import (
	"fmt"
	"log/slog"

	"moltis/internal/domain"
	"moltis/internal/infra/config"
)

func buildDiscordChannel(_ config.ChannelConfig, _ *slog.Logger) (domain.Channel, error) {
	return nil, fmt.Errorf("discord channel requires build with -tags discord")
}
