package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
embedding:
  provider: mock
  dimensions: 64
  timeout: 3s
matching:
  question_weights:
    q1: 2.5
  default_top_k: 10
  threshold: 75
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Embedding.Provider != ProviderMock || cfg.Embedding.Dimensions != 64 {
		t.Errorf("unexpected embedding config: %+v", cfg.Embedding)
	}
	if cfg.Embedding.Timeout != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", cfg.Embedding.Timeout)
	}
	if cfg.Matching.QuestionWeights["q1"] != 2.5 {
		t.Errorf("question weights: %v", cfg.Matching.QuestionWeights)
	}
	if cfg.Matching.DefaultTopK != 10 || cfg.Matching.ThresholdOrDefault() != 75 {
		t.Errorf("unexpected matching config: %+v", cfg.Matching)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	path := writeConfig(t, `
debug: true
embedding:
  provider: mock
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_zeroThresholdKept(t *testing.T) {
	path := writeConfig(t, `
embedding:
  provider: mock
matching:
  threshold: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Matching.ThresholdOrDefault(); got != 0 {
		t.Errorf("threshold = %v, want explicit 0 to survive defaults", got)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/kindred.db"
embedding:
  provider: onnx
  model_path: "./models/model.onnx"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(path)
	if want := filepath.Join(dir, "data", "kindred.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "models", "model.onnx"); cfg.Embedding.ModelPath != want {
		t.Errorf("model_path = %s, want %s", cfg.Embedding.ModelPath, want)
	}
}

func TestLoad_emptyDatabasePathStaysEmpty(t *testing.T) {
	cfg, err := Load(writeConfig(t, "embedding:\n  provider: mock\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DatabasePath != "" {
		t.Errorf("database_path = %q, want empty", cfg.Storage.DatabasePath)
	}
}

func TestLoad_invalid(t *testing.T) {
	cases := map[string]string{
		"provider":  "embedding:\n  provider: word2vec\n",
		"threshold": "embedding:\n  provider: mock\nmatching:\n  threshold: 150\n",
		"top_k":     "embedding:\n  provider: mock\nmatching:\n  default_top_k: 600\n  max_top_k: 100\n",
		"weight":    "embedding:\n  provider: mock\nmatching:\n  question_weights:\n    q1: -1\n",
		"yaml":      "server: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Error("expected error")
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 6969 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Embedding.Provider != ProviderONNX || cfg.Embedding.Dimensions != 384 {
		t.Errorf("embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Embedding.Timeout != 10*time.Second || cfg.Embedding.Concurrency != 4 {
		t.Errorf("embedding timeout/concurrency: %v/%d", cfg.Embedding.Timeout, cfg.Embedding.Concurrency)
	}
	if cfg.Matching.PartitionQuestion != "q4" {
		t.Errorf("partition question: got %s", cfg.Matching.PartitionQuestion)
	}
	if len(cfg.Matching.ExcludedQuestions) != 1 || cfg.Matching.ExcludedQuestions[0] != "q4" {
		t.Errorf("excluded questions: got %v", cfg.Matching.ExcludedQuestions)
	}
	if cfg.Matching.DefaultTopK != 50 || cfg.Matching.MaxTopK != 500 {
		t.Errorf("top_k defaults: %d/%d", cfg.Matching.DefaultTopK, cfg.Matching.MaxTopK)
	}
	if cfg.Matching.ThresholdOrDefault() != 60 {
		t.Errorf("threshold default: got %v", cfg.Matching.ThresholdOrDefault())
	}
	if !cfg.Metrics.EnabledOrDefault() {
		t.Error("metrics should default to enabled")
	}
}

func TestApplyDefaults_OpenAIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg := &Config{Embedding: EmbeddingConfig{Provider: ProviderOpenAI}}
	ApplyDefaults(cfg)
	if cfg.Embedding.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.Embedding.APIKey)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("model = %q", cfg.Embedding.Model)
	}
}

func TestApplyDefaults_WatchDebounceWhenEnabled(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Config: true}}
	ApplyDefaults(cfg)
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Watch.Debounce)
	}
}

func TestMetricsConfig_EnabledOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		m := &MetricsConfig{}
		if !m.EnabledOrDefault() {
			t.Error("EnabledOrDefault() = false, want true")
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		m := &MetricsConfig{Enabled: &f}
		if m.EnabledOrDefault() {
			t.Error("EnabledOrDefault() = true, want false")
		}
	})
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := &Config{
		Server:    ServerConfig{Host: "localhost", Port: 9090},
		Embedding: EmbeddingConfig{Provider: ProviderMock},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
