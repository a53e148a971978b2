package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"inkwell-ai/internal/adapter/llm"
	"inkwell-ai/internal/domain"
	"inkwell-ai/internal/infra/config"
)

// initLLM builds the provider registry and gateway from config.
func initLLM(cfg *config.Config, log *slog.Logger) (*llm.Registry, *llm.Gateway, error) {
	registry := llm.NewRegistry()

	cbCfg := cfg.LLM.CircuitBreaker
	for _, pc := range cfg.LLM.Providers {
		provider, err := createProvider(pc, log)
		if err != nil {
			return nil, nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}

		// Wrap with circuit breaker if enabled (per-provider).
		if cbCfg.Enabled {
			provider = llm.NewCircuitBreakerProvider(provider, cbCfg, log)
		}
		if err := registry.Register(provider); err != nil {
			return nil, nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}
	}

	if cbCfg.Enabled {
		log.Info("llm circuit breaker enabled",
			"max_failures", cbCfg.MaxFailures,
			"timeout", cbCfg.Timeout,
			"interval", cbCfg.Interval,
		)
	}

	if _, ok := registry.Lookup(cfg.LLM.DefaultProvider); !ok {
		return nil, nil, fmt.Errorf("default llm provider %q is not configured", cfg.LLM.DefaultProvider)
	}

	gateway := llm.NewGateway(registry, cfg.LLM, log)
	log.Info("llm gateway ready",
		"providers", registry.List(),
		"default", cfg.LLM.DefaultProvider,
	)
	return registry, gateway, nil
}

func createProvider(pc config.ProviderConfig, log *slog.Logger) (domain.Provider, error) {
	switch pc.Type {
	case "anthropic":
		return llm.NewAnthropicProvider(pc, log), nil
	case "openai", "openai-compatible":
		return llm.NewOpenAIProvider(pc, log), nil
	case "ollama":
		provider := llm.NewOllamaProvider(pc, log)
		warmupOllama(provider, pc, log)
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

// warmupOllama asks the local daemon to preload the model so the first
// completion does not pay the load cost. Best effort.
func warmupOllama(provider *llm.OllamaProvider, pc config.ProviderConfig, log *slog.Logger) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := provider.Warmup(ctx); err != nil {
			log.Warn("ollama warmup failed", "provider", pc.Name, "error", err)
		}
	}()
}
