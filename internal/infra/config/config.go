package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server Server        `yaml:"server"`
	LLM    LLM           `yaml:"llm"`
	Skills Skills        `yaml:"skills"`
	Usage  UsageLog      `yaml:"usage"`
	Health HealthMonitor `yaml:"health"`
	Logger Logger        `yaml:"logger"`
	Tracer Tracer        `yaml:"tracer"`
}

// Server holds HTTP API settings.
type Server struct {
	Addr      string    `yaml:"addr"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

// RateLimit holds per-IP token bucket settings.
type RateLimit struct {
	RequestsPerMin int `yaml:"requests_per_min"`
	Burst          int `yaml:"burst"`
}

// LLM holds provider gateway settings.
type LLM struct {
	DefaultProvider string           `yaml:"default_provider"`
	DefaultModel    string           `yaml:"default_model"`
	MaxTokens       int              `yaml:"max_tokens"`
	ProbeTimeout    time.Duration    `yaml:"probe_timeout"`
	Providers       []ProviderConfig `yaml:"providers"`
	CircuitBreaker  CircuitBreaker   `yaml:"circuit_breaker"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // "anthropic", "openai", "openai-compatible", "ollama"
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        Pool          `yaml:"pool"`
}

// Pool holds HTTP connection pool settings for LLM providers.
type Pool struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// CircuitBreaker holds per-provider breaker settings.
type CircuitBreaker struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// Skills holds skill corpus settings.
type Skills struct {
	Dir string `yaml:"dir"`
}

// UsageLog holds usage accounting settings.
type UsageLog struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// HealthMonitor holds the periodic provider health sweep settings.
type HealthMonitor struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression, e.g. "@every 5m"
}

// Logger holds logging settings.
type Logger struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Tracer holds tracing settings.
type Tracer struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// defaultDataDir returns the persistent data directory under
// $HOME/.inkwell. Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".inkwell")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: Server{
			Addr: ":8080",
			RateLimit: RateLimit{
				RequestsPerMin: 120,
				Burst:          20,
			},
		},
		LLM: LLM{
			DefaultProvider: "anthropic",
			MaxTokens:       4096,
			ProbeTimeout:    5 * time.Second,
		},
		Skills: Skills{
			Dir: "./skills",
		},
		Usage: UsageLog{
			Enabled: false,
			DBPath:  filepath.Join(defaultDataDir(), "usage.db"),
		},
		Health: HealthMonitor{
			Enabled:  false,
			Schedule: "@every 5m",
		},
		Logger: Logger{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: Tracer{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts
// secrets. A missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("INKWELL_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps INKWELL_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INKWELL_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("INKWELL_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("INKWELL_LLM_DEFAULT_MODEL"); v != "" {
		cfg.LLM.DefaultModel = v
	}
	if v := os.Getenv("INKWELL_LLM_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LLM.MaxTokens = n
		}
	}
	if v := os.Getenv("INKWELL_LLM_PROBE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.LLM.ProbeTimeout = d
		}
	}
	if v := os.Getenv("INKWELL_SKILLS_DIR"); v != "" {
		cfg.Skills.Dir = v
	}
	if v := os.Getenv("INKWELL_USAGE_ENABLED"); v == "true" {
		cfg.Usage.Enabled = true
	} else if v == "false" {
		cfg.Usage.Enabled = false
	}
	if v := os.Getenv("INKWELL_USAGE_DB_PATH"); v != "" {
		cfg.Usage.DBPath = v
	}
	if v := os.Getenv("INKWELL_HEALTH_ENABLED"); v == "true" {
		cfg.Health.Enabled = true
	}
	if v := os.Getenv("INKWELL_HEALTH_SCHEDULE"); v != "" {
		cfg.Health.Schedule = v
	}
	if v := os.Getenv("INKWELL_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("INKWELL_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("INKWELL_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("INKWELL_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}

	// Per-provider API key overrides: INKWELL_LLM_PROVIDER_<NAME>_API_KEY
	for i := range cfg.LLM.Providers {
		envKey := fmt.Sprintf("INKWELL_LLM_PROVIDER_%s_API_KEY",
			strings.ToUpper(cfg.LLM.Providers[i].Name))
		if v := os.Getenv(envKey); v != "" {
			cfg.LLM.Providers[i].APIKey = v
		}
	}
}
