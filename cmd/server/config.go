package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-bi/internal/config"
	"github.com/phrazzld/scry-bi/internal/platform/logger"
)

// loadAppConfig loads the configuration and installs the process logger.
func loadAppConfig(path string) (*config.Config, *slog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"llm_provider", cfg.LLM.Provider,
		"dataset_backend", cfg.Dataset.Backend,
		"rate_limit_backend", cfg.RateLimit.Backend,
		"kafka_enabled", cfg.Events.KafkaEnabled)

	return cfg, log, nil
}
