//go:build !mdns

package main

import (
	"log/slog"

	"moltis/internal/usecase/node"
)

func buildNodeDiscoverer(_ *slog.Logger) node.NodeDiscoverer {
	return node.NewNoopDiscoverer()
}
