// Package config assembles the importer configuration from a config file,
// environment variables, and flags. The result is a plain value constructed
// once and passed into every component; nothing reads ambient state later.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full configuration surface of the importer.
type Config struct {
	// Credentials.
	CannyAPIKey     string
	AnthropicAPIKey string
	AnthropicModel  string

	// Target boards.
	FeatureBoardID string
	BugBoardID     string

	// Source and state.
	SourcePath string
	StateDir   string

	// Voter pool.
	VoterEmailDomain string

	// AI gate toggles. A disabled stage falls back deterministically:
	// filter passes everything, enhancer leaves records untouched,
	// categorizer assigns the default (feature) category.
	FilterInvalid   bool
	Enhance         bool
	Categorize      bool
	PlatformDetails string

	// MaxPosts caps posts imported per run; 0 means unbounded.
	MaxPosts int
}

// Load builds the configuration. Precedence, lowest to highest: defaults,
// config file, environment (including a .env file if present), then any
// flag overrides the caller applies to the returned viper.
func Load() (*Config, *viper.Viper, error) {
	// A .env next to the invocation is a convenience for credentials;
	// absence is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "canny-import"))
	}

	v.SetEnvPrefix("CANNY_IMPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("source", "")
	v.SetDefault("state-dir", ".canny-import")
	v.SetDefault("voter-email-domain", "example.com")
	v.SetDefault("ai-filter", false)
	v.SetDefault("ai-enhance", false)
	v.SetDefault("ai-categorize", true)
	v.SetDefault("platform-details", "")
	v.SetDefault("max-posts", 0)
	v.SetDefault("anthropic-model", "")

	// Credentials also honor their conventional unprefixed variables.
	_ = v.BindEnv("canny-api-key", "CANNY_IMPORT_CANNY_API_KEY", "CANNY_API_KEY")
	_ = v.BindEnv("anthropic-api-key", "CANNY_IMPORT_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; env and flags can carry everything.
	}

	return FromViper(v), v, nil
}

// FromViper snapshots the viper state into a Config value. Called once,
// after flag binding, so later viper mutations cannot leak into components.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		CannyAPIKey:      v.GetString("canny-api-key"),
		AnthropicAPIKey:  v.GetString("anthropic-api-key"),
		AnthropicModel:   v.GetString("anthropic-model"),
		FeatureBoardID:   v.GetString("feature-board-id"),
		BugBoardID:       v.GetString("bug-board-id"),
		SourcePath:       v.GetString("source"),
		StateDir:         v.GetString("state-dir"),
		VoterEmailDomain: v.GetString("voter-email-domain"),
		FilterInvalid:    v.GetBool("ai-filter"),
		Enhance:          v.GetBool("ai-enhance"),
		Categorize:       v.GetBool("ai-categorize"),
		PlatformDetails:  v.GetString("platform-details"),
		MaxPosts:         v.GetInt("max-posts"),
	}
}

// Validate checks the surface needed for a run. Failures here are fatal
// before any row is processed.
func (c *Config) Validate() error {
	var missing []string
	if c.CannyAPIKey == "" {
		missing = append(missing, "canny-api-key")
	}
	if c.FeatureBoardID == "" {
		missing = append(missing, "feature-board-id")
	}
	if c.BugBoardID == "" {
		missing = append(missing, "bug-board-id")
	}
	if c.SourcePath == "" {
		missing = append(missing, "source")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.UsesAI() && c.AnthropicAPIKey == "" {
		return fmt.Errorf("anthropic-api-key is required when an AI stage is enabled")
	}
	if c.MaxPosts < 0 {
		return fmt.Errorf("max-posts must be zero or positive, got %d", c.MaxPosts)
	}
	return nil
}

// UsesAI reports whether any gate stage will call the AI service.
func (c *Config) UsesAI() bool {
	return c.FilterInvalid || c.Enhance || c.Categorize
}
