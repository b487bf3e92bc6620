package config

import (
	"os"
	"time"
)

// DefaultThreshold is the minimum similarity percentage when none is configured.
const DefaultThreshold = 60.0

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 6969
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderONNX
	}
	if cfg.Embedding.ModelPath == "" && cfg.Embedding.Provider == ProviderONNX {
		cfg.Embedding.ModelPath = "/usr/local/var/kindred/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 10 * time.Second
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 4
	}
	if cfg.Embedding.Provider == ProviderOpenAI {
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.Embedding.Model == "" {
			cfg.Embedding.Model = "text-embedding-3-small"
		}
	}
	if cfg.Matching.PartitionQuestion == "" {
		cfg.Matching.PartitionQuestion = "q4"
	}
	// The partition answer never feeds the profile vector unless excluded_questions is set explicitly.
	if cfg.Matching.ExcludedQuestions == nil {
		cfg.Matching.ExcludedQuestions = []string{cfg.Matching.PartitionQuestion}
	}
	if cfg.Matching.DefaultTopK == 0 {
		cfg.Matching.DefaultTopK = 50
	}
	if cfg.Matching.MaxTopK == 0 {
		cfg.Matching.MaxTopK = 500
	}
	if cfg.Matching.Threshold == nil {
		t := DefaultThreshold
		cfg.Matching.Threshold = &t
	}
	if cfg.Watch.Config && cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}
