//go:build grpc_node

package main

import (
	"log/slog"
	"time"

	"moltis/internal/usecase/node"
)

func buildNodeInvoker(timeout time.Duration, logger *slog.Logger) node.NodeInvoker {
	return node.NewGRPCInvoker(timeout, logger)
}
