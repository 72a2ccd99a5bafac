//go:build bedrock

package main

import (
	"log/slog"

	"moltis/internal/adapter/llm"
	"moltis/internal/domain"
	"moltis/internal/infra/config"
)

func createBedrockProvider(pc config.ProviderConfig, log *slog.Logger) (domain.LLMProvider, error) {
	return llm.NewBedrockProvider(pc, log)
}
