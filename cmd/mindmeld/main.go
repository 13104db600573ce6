// Package main is the mindmeld CLI entry point.
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
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Keshav04042001/mindmeld/internal/cli"
	"github.com/Keshav04042001/mindmeld/internal/config"
	"github.com/Keshav04042001/mindmeld/internal/embedding"
	"github.com/Keshav04042001/mindmeld/internal/ingest"
	"github.com/Keshav04042001/mindmeld/internal/nlp"
	"github.com/Keshav04042001/mindmeld/internal/resource"
	"github.com/Keshav04042001/mindmeld/internal/server"
	"github.com/Keshav04042001/mindmeld/internal/storage"
	"github.com/Keshav04042001/mindmeld/internal/watcher"
	"github.com/Keshav04042001/mindmeld/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/mindmeld/config.yaml"

// loadConfig loads config from path. When path is the default, it first
// looks for config.yaml in the current directory (for development); if that
// exists it is used. Returns the config and the path that was actually
// loaded.
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
	// .env carries OPENAI_API_KEY during development; absence is fine
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "train":
		runTrain()
	case "predict":
		runPredict()
	case "encode":
		runEncode()
	case "clear-cache":
		runClearCache()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("mindmeld version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// components bundles the initialized service dependencies.
type components struct {
	Storage   *storage.SQLiteStorage
	Loader    *resource.Loader
	Embedder  *embedding.Embedder
	Processor *nlp.Processor
	Ingester  *ingest.Ingester
	logger    *zap.Logger
}

// Close flushes and releases all components.
func (c *components) Close() {
	if c.Processor != nil {
		if err := c.Processor.Close(); err != nil {
			c.logger.Warn("processor close failed", zap.Error(err))
		}
	}
	if c.Storage != nil {
		if err := c.Storage.Close(); err != nil {
			c.logger.Warn("storage close failed", zap.Error(err))
		}
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	loader, err := resource.NewLoader(cfg.AppPath, store, utils.NamedLogger(logger, "resource"))
	if err != nil {
		store.Close()
		return nil, err
	}

	// Embedding is optional: frequency models work without it, and a
	// misconfigured encoder should not block them.
	var embedder *embedding.Embedder
	embedder, err = embedding.NewEmbedder(cfg.AppPath, cfg.Embedder.Type, embedding.DefaultRegistry(),
		embedding.Options{
			Model:      cfg.Embedder.Model,
			ModelPath:  cfg.Embedder.ModelPath,
			Dimensions: cfg.Embedder.Dimensions,
			MaxTokens:  cfg.Embedder.MaxTokens,
		}, utils.NamedLogger(logger, "embedding"))
	if err != nil {
		logger.Warn("embedder unavailable, centroid models disabled",
			zap.String("type", cfg.Embedder.Type), zap.Error(err))
		embedder = nil
	}

	processor := nlp.NewProcessor(cfg.AppPath, loader, embedder, utils.NamedLogger(logger, "nlp"))
	ingester := ingest.NewIngester(cfg.AppPath, store, utils.NamedLogger(logger, "ingest"))

	return &components{
		Storage:   store,
		Loader:    loader,
		Embedder:  embedder,
		Processor: processor,
		Ingester:  ingester,
		logger:    logger,
	}, nil
}

// setup parses common flags, loads config, and initializes components for
// one-shot subcommands.
func setup(name string, args []string, extra func(fs *flag.FlagSet)) (*components, *config.Config, *zap.Logger, *flag.FlagSet) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	if extra != nil {
		extra(fs)
	}
	_ = fs.Parse(args)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return comps, cfg, logger, fs
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
		zap.String("app_path", cfg.AppPath),
		zap.Bool("debug", debugMode),
	)

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	if _, err := comps.Ingester.Run(context.Background()); err != nil {
		logger.Fatal("Initial ingest failed", zap.Error(err))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.EnabledOrDefault() {
		watchOpts := []watcher.Option{
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond),
		}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(cfg.AppPath, func() {
			if _, err := comps.Ingester.Run(context.Background()); err != nil {
				logger.Warn("reingest after change failed", zap.Error(err))
				return
			}
			comps.Processor.Invalidate()
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(comps.Processor, comps.Ingester, comps.Storage, &cfg.Server, logger)
	go func() {
		// Start returns http.ErrServerClosed after a graceful Stop; that
		// must not abort the process before the shutdown path flushes.
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

func runIngest() {
	comps, _, logger, _ := setup("ingest", os.Args[2:], nil)
	defer comps.Close()
	defer logger.Sync()

	res, err := comps.Ingester.Run(context.Background())
	if err != nil {
		logger.Fatal("Ingest failed", zap.Error(err))
	}
	fmt.Printf("Ingested %d queries from %d files, %d gazetteers (run %s)\n",
		res.Queries, res.QueryFiles, res.Gazetteers, res.RunID)
}

func runTrain() {
	var labelSet, output *string
	var force *bool
	comps, _, logger, fs := setup("train", os.Args[2:], func(fs *flag.FlagSet) {
		labelSet = fs.String("label-set", "", "label set to train on (default: train)")
		force = fs.Bool("force", false, "retrain even when the previous model still matches")
		output = fs.String("output", "text", "output format: text or json")
	})
	defer comps.Close()
	defer logger.Sync()

	if fs.NArg() != 3 {
		fmt.Fprintln(os.Stderr, "Usage: mindmeld train [flags] <domain> <intent> <entity-type>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	domain, intent, entity := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	res, err := comps.Processor.Train(context.Background(), domain, intent, entity, nlp.TrainOptions{
		LabelSet: *labelSet,
		Force:    *force,
	})
	if err != nil {
		logger.Fatal("Training failed", zap.Error(err))
	}
	_ = cli.WriteTrainResult(os.Stdout, domain, intent, entity, res, format)
}

func runPredict() {
	var output *string
	var entityIndex *int
	comps, _, logger, fs := setup("predict", os.Args[2:], func(fs *flag.FlagSet) {
		entityIndex = fs.Int("entity-index", 0, "index of the entity to classify")
		output = fs.String("output", "text", "output format: text or json")
	})
	defer comps.Close()
	defer logger.Sync()

	if fs.NArg() != 4 {
		fmt.Fprintln(os.Stderr, "Usage: mindmeld predict [flags] <domain> <intent> <entity-type> <query>")
		fmt.Fprintln(os.Stderr, `Query uses inline markup, e.g. "open at {9 am|sys_time}"`)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	domain, intent, entity := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	query, err := ingest.ParseMarkup(fs.Arg(3))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid query: %v\n", err)
		os.Exit(1)
	}
	query.Domain = domain
	query.Intent = intent
	if *entityIndex < 0 || *entityIndex >= len(query.Entities) {
		fmt.Fprintf(os.Stderr, "entity-index %d out of range (%d entities)\n", *entityIndex, len(query.Entities))
		os.Exit(1)
	}

	role, err := comps.Processor.Predict(context.Background(), domain, intent, entity, query, *entityIndex)
	if err != nil {
		logger.Fatal("Prediction failed", zap.Error(err))
	}
	_ = cli.WritePrediction(os.Stdout, role, format)
}

func runEncode() {
	comps, _, logger, fs := setup("encode", os.Args[2:], nil)
	defer comps.Close()
	defer logger.Sync()

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: mindmeld encode [flags] <text> [text...]")
		os.Exit(1)
	}
	vectors, err := comps.Processor.Encode(context.Background(), fs.Args())
	if err != nil {
		logger.Fatal("Encoding failed", zap.Error(err))
	}
	for i, vec := range vectors {
		fmt.Printf("%s: %d dimensions", cli.TruncateWords(fs.Arg(i), 8), len(vec))
		if len(vec) > 0 {
			fmt.Printf(" [%s, ...]", strconv.FormatFloat(float64(vec[0]), 'f', 4, 32))
		}
		fmt.Println()
	}
}

func runClearCache() {
	comps, _, logger, _ := setup("clear-cache", os.Args[2:], nil)
	defer comps.Close()
	defer logger.Sync()

	if err := comps.Processor.ClearEncodingCache(); err != nil {
		logger.Fatal("Cache clear failed", zap.Error(err))
	}
	fmt.Println("Encoding cache cleared")
}

func runStatus() {
	var output *string
	comps, _, logger, _ := setup("status", os.Args[2:], func(fs *flag.FlagSet) {
		output = fs.String("output", "text", "output format: text or json")
	})
	defer comps.Close()
	defer logger.Sync()

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	count, err := comps.Storage.CountQueries(context.Background())
	if err != nil {
		logger.Fatal("Status failed", zap.Error(err))
	}
	fmt.Printf("Labeled queries: %d\n", count)
	slots, cacheSize := comps.Processor.Status()
	_ = cli.WriteStatus(os.Stdout, slots, cacheSize, format)
}

func printUsage() {
	fmt.Println(`mindmeld - role classifier training and serving

Usage:
  mindmeld server      [flags]                      Start the HTTP API server
  mindmeld ingest      [flags]                      Load app query files and gazetteers into storage
  mindmeld train       [flags] <domain> <intent> <entity-type>
  mindmeld predict     [flags] <domain> <intent> <entity-type> <query>
  mindmeld encode      [flags] <text> [text...]     Embed texts through the cache
  mindmeld clear-cache [flags]                      Drop the persisted embedding cache
  mindmeld status      [flags]                      Show classifier and cache state
  mindmeld version                                  Show version
  mindmeld help                                     Show this help

Common flags:
  -config <path>   config file path (default ` + defaultConfigPath + `,
                   falls back to ./config.yaml when present)
  -debug           enable debug logging`)
}
