//go:build !edge

package main

import (
	"log/slog"

	"moltis/internal/adapter/tool"
	"moltis/internal/infra/config"
)

// registerBLETool is a no-op in non-edge builds.
func registerBLETool(_ *config.Config, _ *tool.Registry, _ *slog.Logger) {}
