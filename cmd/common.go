/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/valpere/hubtran/internal"
	"github.com/valpere/hubtran/internal/backend"
	"github.com/valpere/hubtran/internal/config"
	"github.com/valpere/hubtran/internal/logging"
	"github.com/valpere/hubtran/internal/orchestrator"
)

// loadEnvironment resolves config, flag overrides and the logger shared by
// all subcommands.
func loadEnvironment() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	if flagTargetLang != "" {
		cfg.TargetLang = flagTargetLang
	}
	if flagDBPath != "" {
		cfg.DBPath = flagDBPath
	}
	if cfg.TargetLang == "" {
		return nil, nil, fmt.Errorf("target language is required (--target or target_lang in hubtran.yaml)")
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return cfg, log, nil
}

// buildBackend constructs the translation backend named by cfg.Provider.
func buildBackend(ctx context.Context, cfg *config.Config) (backend.Backend, error) {
	pctx, err := config.LoadPromptContext(cfg.PromptContextPath)
	if err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case "gemini":
		return backend.NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.TargetLang, pctx)
	case "openai", "groq", "openrouter":
		return backend.NewOpenAICompatible(cfg.Provider, cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.TargetLang, pctx)
	case "googlecloud":
		return backend.NewCloudTranslate(ctx, cfg.CredentialsFile, cfg.TargetLang)
	case "mock":
		return backend.NewMock(cfg.TargetLang), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

func orchestratorConfig(cfg *config.Config) orchestrator.Config {
	return orchestrator.Config{
		BatchSize:        cfg.BatchSize,
		MaxBatchRetries:  cfg.MaxBatchRetries,
		MaxSingleRetries: cfg.MaxSingleRetries,
		RetryWait:        cfg.RetryWait,
	}
}

// readEntries loads translation entries from a JSON file: either a list of
// entry objects or a plain list of source strings.
func readEntries(path string) ([]internal.TranslationEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	var entries []internal.TranslationEntry
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}

	var sources []string
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("input must be a JSON list of entries or strings: %w", err)
	}
	for _, s := range sources {
		entries = append(entries, internal.TranslationEntry{SourceText: s})
	}
	return entries, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if path == "" || path == "-" {
		_, err = fmt.Println(string(data))
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
