package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Provider != DefaultProvider {
		t.Errorf("Provider = %q, want %q", cfg.Provider, DefaultProvider)
	}
	if cfg.Model != DefaultModel {
		t.Errorf("Model = %q, want %q", cfg.Model, DefaultModel)
	}
	if cfg.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", cfg.BatchSize, DefaultBatchSize)
	}
	if cfg.MaxBatchRetries != DefaultMaxBatchRetries {
		t.Errorf("MaxBatchRetries = %d, want %d", cfg.MaxBatchRetries, DefaultMaxBatchRetries)
	}
	if cfg.RetryWait != DefaultRetryWaitSec*time.Second {
		t.Errorf("RetryWait = %v, want %v", cfg.RetryWait, DefaultRetryWaitSec*time.Second)
	}
	if cfg.QualityThreshold != DefaultThreshold {
		t.Errorf("QualityThreshold = %v, want %v", cfg.QualityThreshold, DefaultThreshold)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "provider: mock\ntarget_lang: uk\nbatch_size: 25\nquality_threshold: 0.9\n"
	if err := os.WriteFile(filepath.Join(dir, "hubtran.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Provider != "mock" || cfg.TargetLang != "uk" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.BatchSize != 25 || cfg.QualityThreshold != 0.9 {
		t.Errorf("unexpected tuning values: %+v", cfg)
	}
	// unset keys keep defaults
	if cfg.Model != DefaultModel {
		t.Errorf("Model = %q, want default %q", cfg.Model, DefaultModel)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HUBTRAN_API_KEY", "sk-test")
	t.Setenv("HUBTRAN_TARGET_LANG", "de")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "sk-test")
	}
	if cfg.TargetLang != "de" {
		t.Errorf("TargetLang = %q, want %q", cfg.TargetLang, "de")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hubtran.yaml"), []byte("provider: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	if _, err := Load(); err == nil {
		t.Error("expected an error for a malformed config file")
	}
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	data := `{
	  "region": "Ukraine",
	  "formality_level": "formal",
	  "preferred_synonyms": {"мапа": "карта"},
	  "forbidden_terms": [{"term": "застарілий термін", "reason": "outdated"}]
	}`
	path := filepath.Join(dir, "profile.json")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile error: %v", err)
	}
	if p.Region != "Ukraine" || p.FormalityLevel != "formal" {
		t.Errorf("unexpected profile: %+v", p)
	}
	if p.PreferredSynonyms["мапа"] != "карта" {
		t.Errorf("synonyms not loaded: %+v", p.PreferredSynonyms)
	}
	if len(p.ForbiddenTerms) != 1 || p.ForbiddenTerms[0].Reason != "outdated" {
		t.Errorf("forbidden terms not loaded: %+v", p.ForbiddenTerms)
	}
}

func TestLoadProfile_Empty(t *testing.T) {
	p, err := LoadProfile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.IsZero() {
		t.Errorf("expected an empty profile, got %+v", p)
	}
}
