package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config problems so they can all be
// reported at once.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Problems, "; "))
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

var validProviderTypes = map[string]bool{
	"anthropic":         true,
	"openai":            true,
	"openai-compatible": true,
	"ollama":            true,
}

// Validate checks the config for internal consistency.
func Validate(cfg *Config) error {
	verr := &ValidationError{}

	if cfg.Server.Addr == "" {
		verr.add("server.addr must not be empty")
	}
	if cfg.Server.RateLimit.RequestsPerMin < 0 {
		verr.add("server.rate_limit.requests_per_min must be >= 0")
	}
	if cfg.LLM.MaxTokens <= 0 {
		verr.add("llm.max_tokens must be > 0")
	}
	if cfg.LLM.ProbeTimeout <= 0 {
		verr.add("llm.probe_timeout must be > 0")
	}

	seen := make(map[string]bool, len(cfg.LLM.Providers))
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			verr.add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			verr.add("llm.providers: duplicate name %q", p.Name)
		}
		seen[p.Name] = true
		if !validProviderTypes[p.Type] {
			verr.add("llm.providers[%d] (%s): unknown type %q", i, p.Name, p.Type)
		}
		if p.Type != "ollama" && p.APIKey == "" {
			verr.add("llm.providers[%d] (%s): api_key required for type %q", i, p.Name, p.Type)
		}
		if p.Type == "openai-compatible" && p.BaseURL == "" {
			verr.add("llm.providers[%d] (%s): base_url required for openai-compatible", i, p.Name)
		}
	}

	if cfg.LLM.DefaultProvider != "" && len(cfg.LLM.Providers) > 0 && !seen[cfg.LLM.DefaultProvider] {
		verr.add("llm.default_provider %q is not a configured provider", cfg.LLM.DefaultProvider)
	}

	if cfg.Skills.Dir == "" {
		verr.add("skills.dir must not be empty")
	}
	if cfg.Usage.Enabled && cfg.Usage.DBPath == "" {
		verr.add("usage.db_path required when usage is enabled")
	}
	if cfg.Health.Enabled && cfg.Health.Schedule == "" {
		verr.add("health.schedule required when health monitoring is enabled")
	}

	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		verr.add("logger.level %q is not one of debug, info, warn, error", cfg.Logger.Level)
	}
	switch cfg.Logger.Format {
	case "text", "json":
	default:
		verr.add("logger.format %q is not one of text, json", cfg.Logger.Format)
	}

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}
