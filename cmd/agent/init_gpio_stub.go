//go:build !edge

package main

import (
	"log/slog"

	"moltis/internal/adapter/tool"
	"moltis/internal/infra/config"
)

// registerGPIOTool is a no-op in non-edge builds.
func registerGPIOTool(_ *config.Config, _ *tool.Registry, _ *slog.Logger) {}
