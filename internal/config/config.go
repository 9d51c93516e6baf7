// Package config holds the on-disk project configuration.
package config

import (
	"github.com/codescribe-dev/codescribe/internal/docgraph"
	"github.com/codescribe-dev/codescribe/internal/scanner"
)

// Config represents the complete codescribe configuration.
// It can be loaded from .codescribe/config.yml with environment variable overrides.
type Config struct {
	Project    ProjectConfig    `yaml:"project" mapstructure:"project"`
	Backend    BackendConfig    `yaml:"backend" mapstructure:"backend"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
}

// ProjectConfig defines which files to document and which to skip.
type ProjectConfig struct {
	Include []string `yaml:"include" mapstructure:"include"` // glob patterns for source files
	Exclude []string `yaml:"exclude" mapstructure:"exclude"` // glob patterns to skip
}

// BackendConfig selects and configures the generation provider.
type BackendConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"`               // anthropic, openai, gemini, ollama, lmstudio
	Model          string `yaml:"model" mapstructure:"model"`                     // provider model name
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`               // override the provider endpoint
	APIKeyEnv      string `yaml:"api_key_env" mapstructure:"api_key_env"`         // env var holding the key
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"` // per-call deadline
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`           // response token budget
}

// GenerationConfig controls scheduling and retry behavior.
type GenerationConfig struct {
	Concurrency int  `yaml:"concurrency" mapstructure:"concurrency"` // max in-flight backend calls
	MaxRetries  int  `yaml:"max_retries" mapstructure:"max_retries"` // transient-failure retries per task
	APIDetail   bool `yaml:"api_detail" mapstructure:"api_detail"`
	Modules     bool `yaml:"modules" mapstructure:"modules"`
	Project     bool `yaml:"project" mapstructure:"project"`
}

// OutputConfig defines where generated pages land.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"` // relative to the project root
}

// Stages converts the generation toggles into a stage set.
func (c *Config) Stages() docgraph.StageSet {
	return docgraph.StageSet{
		APIDetail:       c.Generation.APIDetail,
		ModuleOverview:  c.Generation.Modules,
		ProjectOverview: c.Generation.Project,
	}
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			Include: []string{
				"**/*.go",
				"**/*.py",
				"**/*.ts",
				"**/*.tsx",
				"**/*.js",
				"**/*.jsx",
				"**/*.rs",
				"**/*.c",
				"**/*.h",
				"**/*.cpp",
				"**/*.cc",
				"**/*.hpp",
				"**/*.java",
				"**/*.php",
				"**/*.rb",
			},
			Exclude: []string{
				"node_modules/**",
				"vendor/**",
				".git/**",
				"dist/**",
				"build/**",
				"target/**",
				"__pycache__/**",
				scanner.WorkDir + "/**",
			},
		},
		Backend: BackendConfig{
			Provider:       "anthropic",
			Model:          "claude-sonnet-4-20250514",
			APIKeyEnv:      "ANTHROPIC_API_KEY",
			TimeoutSeconds: 120,
			MaxTokens:      4000,
		},
		Generation: GenerationConfig{
			Concurrency: 4,
			MaxRetries:  3,
			APIDetail:   true,
			Modules:     true,
			Project:     true,
		},
		Output: OutputConfig{
			Dir: "docs/reference",
		},
	}
}
