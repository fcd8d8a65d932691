// Package config loads the tool configuration from hubtran.yaml, the
// HUBTRAN_* environment and command-line overrides, in that order of
// increasing precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/hubtran/internal/backend"
	"github.com/valpere/hubtran/internal/pipeline"
)

// Defaults applied when neither the config file nor the environment sets
// a value.
const (
	DefaultProvider         = "gemini"
	DefaultModel            = "gemini-2.5-flash"
	DefaultBatchSize        = 100
	DefaultMaxBatchRetries  = 3
	DefaultMaxSingleRetries = 3
	DefaultRetryWaitSec     = 2
	DefaultThreshold        = 0.8
	DefaultDBPath           = "hubtran.db"
)

type Config struct {
	Provider        string
	APIKey          string
	BaseURL         string
	Model           string
	CredentialsFile string

	TargetLang string

	BatchSize        int
	MaxBatchRetries  int
	MaxSingleRetries int
	RetryWait        time.Duration

	QualityThreshold float64

	DBPath            string
	ProfilePath       string
	PromptContextPath string

	LogLevel string
	LogFile  string
}

// Load reads hubtran.yaml from the working directory (if present) and the
// HUBTRAN_* environment. A missing config file is not an error; a malformed
// one is.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("hubtran")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("HUBTRAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("provider", DefaultProvider)
	v.SetDefault("model", DefaultModel)
	v.SetDefault("batch_size", DefaultBatchSize)
	v.SetDefault("max_batch_retries", DefaultMaxBatchRetries)
	v.SetDefault("max_single_retries", DefaultMaxSingleRetries)
	v.SetDefault("retry_wait_seconds", DefaultRetryWaitSec)
	v.SetDefault("quality_threshold", DefaultThreshold)
	v.SetDefault("db_path", DefaultDBPath)
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Provider:        v.GetString("provider"),
		APIKey:          v.GetString("api_key"),
		BaseURL:         v.GetString("base_url"),
		Model:           v.GetString("model"),
		CredentialsFile: v.GetString("credentials_file"),

		TargetLang: v.GetString("target_lang"),

		BatchSize:        v.GetInt("batch_size"),
		MaxBatchRetries:  v.GetInt("max_batch_retries"),
		MaxSingleRetries: v.GetInt("max_single_retries"),
		RetryWait:        time.Duration(v.GetInt("retry_wait_seconds")) * time.Second,

		QualityThreshold: v.GetFloat64("quality_threshold"),

		DBPath:            v.GetString("db_path"),
		ProfilePath:       v.GetString("profile"),
		PromptContextPath: v.GetString("prompt_context"),

		LogLevel: v.GetString("log_level"),
		LogFile:  v.GetString("log_file"),
	}

	return cfg, nil
}

// LoadProfile reads a regional reviewer profile from a JSON file. An empty
// path yields an empty profile.
func LoadProfile(path string) (pipeline.Profile, error) {
	var p pipeline.Profile
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read profile: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return p, nil
}

// LoadPromptContext reads the optional application context (domain, tone,
// glossary) rendered into translation prompts, from a JSON file.
func LoadPromptContext(path string) (backend.PromptContext, error) {
	var pctx backend.PromptContext
	if path == "" {
		return pctx, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return pctx, fmt.Errorf("failed to read prompt context: %w", err)
	}
	if err := json.Unmarshal(data, &pctx); err != nil {
		return pctx, fmt.Errorf("failed to parse prompt context %s: %w", path, err)
	}
	return pctx, nil
}
