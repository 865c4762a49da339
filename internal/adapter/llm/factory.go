package llm

import (
	"log/slog"

	"github.com/doublesecretagency/craft-sidekick-sub000/internal/config"
)

// NewAssistantClient creates the client selected by the configured mode.
// In mock mode no remote calls are made.
func NewAssistantClient(cfg *config.Config, logger *slog.Logger) AssistantClient {
	if cfg.Mode == config.ModeMock {
		logger.Info("mock mode enabled, using mock assistant client")
		return NewMockClient()
	}
	return NewClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey)
}
