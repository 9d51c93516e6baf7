package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/codescribe-dev/codescribe/internal/scanner"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given project root.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (CODESCRIBE_*)
// 2. Config file (.codescribe/config.yml or .codescribe/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	configDir := filepath.Join(l.rootDir, scanner.WorkDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("CODESCRIBE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("backend.provider")
	v.BindEnv("backend.model")
	v.BindEnv("backend.base_url")
	v.BindEnv("backend.api_key_env")
	v.BindEnv("backend.timeout_seconds")
	v.BindEnv("backend.max_tokens")
	v.BindEnv("generation.concurrency")
	v.BindEnv("generation.max_retries")
	v.BindEnv("output.dir")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("project.include", defaults.Project.Include)
	v.SetDefault("project.exclude", defaults.Project.Exclude)

	v.SetDefault("backend.provider", defaults.Backend.Provider)
	v.SetDefault("backend.model", defaults.Backend.Model)
	v.SetDefault("backend.base_url", defaults.Backend.BaseURL)
	v.SetDefault("backend.api_key_env", defaults.Backend.APIKeyEnv)
	v.SetDefault("backend.timeout_seconds", defaults.Backend.TimeoutSeconds)
	v.SetDefault("backend.max_tokens", defaults.Backend.MaxTokens)

	v.SetDefault("generation.concurrency", defaults.Generation.Concurrency)
	v.SetDefault("generation.max_retries", defaults.Generation.MaxRetries)
	v.SetDefault("generation.api_detail", defaults.Generation.APIDetail)
	v.SetDefault("generation.modules", defaults.Generation.Modules)
	v.SetDefault("generation.project", defaults.Generation.Project)

	v.SetDefault("output.dir", defaults.Output.Dir)
}
