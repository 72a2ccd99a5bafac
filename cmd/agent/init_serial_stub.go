//go:build !edge

package main

import (
	"log/slog"

	"moltis/internal/adapter/tool"
	"moltis/internal/infra/config"
)

// registerSerialTool is a no-op in non-edge builds.
func registerSerialTool(_ *config.Config, _ *tool.Registry, _ *slog.Logger) {}
