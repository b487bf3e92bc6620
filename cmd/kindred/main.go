// Package main is the kindred CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kindred/internal/cli"
	"github.com/hyperjump/kindred/internal/config"
	"github.com/hyperjump/kindred/internal/embedding"
	"github.com/hyperjump/kindred/internal/index"
	"github.com/hyperjump/kindred/internal/match"
	"github.com/hyperjump/kindred/internal/metrics"
	"github.com/hyperjump/kindred/internal/models"
	"github.com/hyperjump/kindred/internal/profile"
	"github.com/hyperjump/kindred/internal/server"
	"github.com/hyperjump/kindred/internal/service"
	"github.com/hyperjump/kindred/internal/storage"
	"github.com/hyperjump/kindred/internal/watcher"
	"github.com/hyperjump/kindred/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kindred/config.yaml"
	defaultServerURL  = "http://localhost:6969"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "register":
		runRegister()
	case "match":
		runMatch()
	case "status":
		runStatus()
	case "submissions":
		runSubmissions()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("kindred version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Config {
		engine := components.Service.Engine()
		w := watcher.NewWatcher(resolvedConfigPath,
			func(path string) { reloadLimits(path, engine, logger) },
			watcher.WithDebounce(cfg.Watch.Debounce),
			watcher.WithLogger(logger))
		if err := w.Start(watchCtx); err != nil {
			logger.Warn("config watcher not started", zap.Error(err))
		} else {
			defer w.Stop()
		}
	}

	var metricsHandler http.Handler
	if components.Metrics != nil {
		metricsHandler = components.Metrics.Handler()
	}
	srv := server.NewServer(components.Service, cfg.Matching.PartitionQuestion, metricsHandler, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// reloadLimits re-reads the config at path and applies its matching limits to engine.
// A config that fails to load leaves the current limits in place.
func reloadLimits(path string, engine *match.Engine, logger *zap.Logger) {
	cfg, err := config.Load(path)
	if err != nil {
		logger.Warn("config reload failed; keeping current limits", zap.String("path", path), zap.Error(err))
		return
	}
	limits := limitsFromConfig(&cfg.Matching)
	engine.SetLimits(limits)
	logger.Info("matching limits reloaded",
		zap.Int("default_top_k", limits.DefaultTopK),
		zap.Int("max_top_k", limits.MaxTopK),
		zap.Float64("threshold", limits.DefaultThreshold))
}

func limitsFromConfig(m *config.MatchingConfig) match.Limits {
	return match.Limits{
		DefaultTopK:      m.DefaultTopK,
		MaxTopK:          m.MaxTopK,
		DefaultThreshold: m.ThresholdOrDefault(),
	}
}

func runRegister() {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	rollno := fs.String("rollno", "", "user id (required)")
	partition := fs.String("partition", "", "partition (male or female); read from the partition question when empty")
	answersPath := fs.String("answers", "", "JSON file of question id to answer, or - for stdin")
	answers := cli.AnswersFlag{}
	fs.Var(answers, "answer", "answer as qid=text (repeatable)")
	_ = fs.Parse(os.Args[2:])

	responses, err := cli.LoadAnswers(*answersPath, os.Stdin, answers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	req := &models.RegisterRequest{UserID: *rollno, Responses: responses, Partition: *partition}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		fs.Usage()
		os.Exit(1)
	}

	resp, err := cli.NewClient(*serverURL).Register(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Register failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s: %s\n", resp.Status, resp.Message)
}

func runMatch() {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	topK := fs.Int("top-k", 0, "maximum number of matches (0 = server default)")
	threshold := fs.Float64("threshold", -1, "minimum similarity percentage 0-100 (negative = server default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: kindred match [flags] <rollno>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	req := &models.MatchRequest{UserID: fs.Arg(0), TopK: *topK}
	if *threshold >= 0 {
		req.Threshold = threshold
	}
	resp, err := cli.NewClient(*serverURL).Matches(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Match failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteMatchResults(os.Stdout, req.UserID, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	st, err := cli.NewClient(*serverURL).Status(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSubmissions() {
	fs := flag.NewFlagSet("submissions", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: kindred submissions [flags] <rollno>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	resp, err := cli.NewClient(*serverURL).Submissions(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Submissions failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSubmissions(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path to write")
	provider := fs.String("provider", config.ProviderONNX, "embedding provider: onnx, openai or mock")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*configPath, *provider, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *configPath)
}

// writeDefaultConfig writes a config with every default filled in. The submission database sits next to it.
func writeDefaultConfig(path, provider string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	cfg := &config.Config{
		Storage:   config.StorageConfig{DatabasePath: "./kindred.db"},
		Embedding: config.EmbeddingConfig{Provider: provider},
	}
	config.ApplyDefaults(cfg)
	// Keys come from the environment at load time; never write one to disk.
	cfg.Embedding.APIKey = ""
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return config.Save(path, cfg)
}

// Components holds initialized application components.
type Components struct {
	Service *service.Service
	Metrics *metrics.Prometheus
}

// Close releases all component resources.
func (c *Components) Close() {
	if c.Service != nil {
		_ = c.Service.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	embedder, modelName, err := newEmbedder(&cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	cached := embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)

	idx, err := index.NewPartitionedIndex(cached.Dimensions())
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize index: %w", err)
	}

	var recorder metrics.Recorder = metrics.Noop{}
	var prom *metrics.Prometheus
	if cfg.Metrics.EnabledOrDefault() {
		prom = metrics.NewPrometheus()
		recorder = prom
	}

	builder := profile.NewBuilder(cached,
		profile.WithWeights(cfg.Matching.QuestionWeights),
		profile.WithExcluded(cfg.Matching.ExcludedQuestions...),
		profile.WithTimeout(cfg.Embedding.Timeout),
		profile.WithConcurrency(cfg.Embedding.Concurrency),
		profile.WithLogger(logger),
	)
	engine := match.NewEngine(idx,
		match.WithLimits(limitsFromConfig(&cfg.Matching)),
		match.WithMetrics(recorder),
		match.WithLogger(logger),
	)

	opts := []service.Option{
		service.WithMetrics(recorder),
		service.WithLogger(logger),
		service.WithModelName(modelName),
		service.WithCloser(embedder),
	}
	if cfg.Storage.DatabasePath != "" {
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			_ = embedder.Close()
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		opts = append(opts, service.WithStore(store, cfg.Storage.DatabasePath))
	} else {
		logger.Info("no database_path configured; submissions are not persisted")
	}

	return &Components{
		Service: service.New(builder, idx, engine, opts...),
		Metrics: prom,
	}, nil
}

// newEmbedder builds the configured embedder. An ONNX model that cannot be loaded falls back to
// the mock embedder so the server still starts.
func newEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, string, error) {
	switch cfg.Provider {
	case config.ProviderMock:
		return embedding.NewMockEmbedder(cfg.Dimensions), "mock", nil
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, "", fmt.Errorf("openai provider needs embedding.api_key or OPENAI_API_KEY")
		}
		opts := []embedding.OpenAIOption{
			embedding.WithModel(cfg.Model),
			embedding.WithRateLimit(cfg.RequestsPerSecond),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, embedding.WithBaseURL(cfg.BaseURL))
		}
		e := embedding.NewOpenAI(cfg.APIKey, cfg.Dimensions, opts...)
		return e, e.Model(), nil
	default:
		onnx, err := embedding.NewONNXEmbedder(embedding.ONNXConfig{
			ModelPath:  cfg.ModelPath,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
		})
		if err != nil {
			logger.Warn("ONNX embedder unavailable, falling back to mock embedder",
				zap.String("model_path", cfg.ModelPath), zap.Error(err))
			return embedding.NewMockEmbedder(cfg.Dimensions), "mock", nil
		}
		return onnx, filepath.Base(cfg.ModelPath), nil
	}
}

func printUsage() {
	fmt.Println(`kindred - semantic survey matching server

Usage:
  kindred server [flags]            Start the HTTP server
  kindred register [flags]          Register a user's survey answers
  kindred match [flags] <rollno>    Show a user's matches
  kindred status [flags]            Show index and storage status
  kindred submissions [flags] <rollno>  Show a user's stored survey answers
  kindred init [flags]              Write a config file with defaults
  kindred version                   Show version
  kindred help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kindred/config.yaml)
  --debug            Enable debug logging

Register Flags:
  --server string    Server URL (default: http://localhost:6969)
  --rollno string    User id (required)
  --partition string male or female; read from the partition question (q4) when empty
  --answers string   JSON file mapping question id to answer, or - for stdin
  --answer qid=text  A single answer (repeatable, overrides --answers)

Match Flags:
  --server string    Server URL (default: http://localhost:6969)
  --top-k int        Maximum number of matches (default: server's default_top_k)
  --threshold float  Minimum similarity percentage (default: server's threshold)
  --output string    Output format: text or json (default: text)

Status and Submissions Flags:
  --server string    Server URL (default: http://localhost:6969)
  --output string    Output format: text or json (default: text)

Init Flags:
  --config string    Config file path to write (default: /usr/local/etc/kindred/config.yaml)
  --provider string  Embedding provider: onnx, openai or mock (default: onnx)
  --force            Overwrite an existing config file

Examples:
  kindred server
  kindred register --rollno 21CS001 --answers answers.json
  kindred register --rollno 21CS002 --answer q1="hiking" --answer q4=female
  kindred match --top-k 10 21CS001
  kindred match --output json --threshold 75 21CS001
  kindred status --output json
  kindred submissions 21CS001
  kindred init --config ./config.yaml --provider mock`)
}
