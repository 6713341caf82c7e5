// Package main is the helpmate CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/helpmate/internal/chat"
	"github.com/hyperjump/helpmate/internal/cli"
	"github.com/hyperjump/helpmate/internal/config"
	"github.com/hyperjump/helpmate/internal/embedding"
	"github.com/hyperjump/helpmate/internal/extract"
	"github.com/hyperjump/helpmate/internal/ingest"
	"github.com/hyperjump/helpmate/internal/llm"
	"github.com/hyperjump/helpmate/internal/models"
	"github.com/hyperjump/helpmate/internal/seed"
	"github.com/hyperjump/helpmate/internal/server"
	"github.com/hyperjump/helpmate/internal/storage"
	"github.com/hyperjump/helpmate/internal/vector"
	"github.com/hyperjump/helpmate/internal/watcher"
	"github.com/hyperjump/helpmate/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/helpmate/config.yaml"
	defaultServerURL  = "http://localhost:4000"
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present, and a missing default file means built-in defaults plus
// environment overrides. Returns the config and a description of where it came from.
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
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			cfg := config.Default()
			config.ApplyEnv(cfg)
			if err := cfg.Validate(); err != nil {
				return nil, "", err
			}
			return cfg, "(defaults)", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if err := config.LoadDotEnv(""); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
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
	case "seed":
		runSeed()
	case "chat":
		runChat()
	case "helpers":
		runHelpers()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("helpmate version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, builds the logger and opens the shared components. It exits on failure.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	client, err := llm.NewOpenAIClient(&cfg.LLM, llm.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	vectors := vector.NewStore(components.Storage, cfg.Knowledge.Source, cfg.Knowledge.Title, vector.WithLogger(logger))
	assistant := chat.NewAssistant(components.Storage, components.Embedder, vectors, client,
		chat.WithLogger(logger),
		chat.WithReferral(cfg.Chat.FallbackMessage),
		chat.WithTopK(cfg.Knowledge.TopK),
		chat.WithHelperLimit(cfg.Chat.HelperLimit),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go warmUp(ctx, components.Embedder, vectors, logger)

	srv := server.NewServer(assistant, components.Storage, vectors, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	waitForSignal()
	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	title := fs.String("title", "", "knowledge base title (default from config or DOC_TITLE)")
	watch := fs.Bool("watch", false, "re-ingest whenever the file changes")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: helpmate ingest [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	if !extract.Supported(path) {
		fmt.Fprintf(os.Stderr, "Failed to ingest: unsupported file type %q\n", filepath.Ext(path))
		os.Exit(1)
	}

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ingester := ingest.NewIngester(components.Storage, components.Embedder, extract.NewExtractor(), &cfg.Knowledge,
		ingest.WithOutput(os.Stdout),
		ingest.WithTitle(*title),
		ingest.WithLogger(logger),
	)
	run := func(ctx context.Context) error {
		start := time.Now()
		n, err := ingester.Ingest(ctx, path)
		if err != nil {
			return err
		}
		fmt.Printf("Ingested %d chunks into %q in %s\n", n, ingester.Title(), time.Since(start).Round(time.Millisecond))
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to ingest: %v\n", err)
		if !*watch {
			components.Close()
			os.Exit(1)
		}
	}
	if !*watch {
		return
	}

	w, err := watcher.New(path, func(string) {
		fmt.Printf("\nChange detected, re-ingesting %s\n", path)
		if err := run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to ingest: %v\n", err)
		}
	}, watcher.WithDebounce(cfg.Knowledge.WatchDebounce), watcher.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to watch: %v\n", err)
		os.Exit(1)
	}
	if err := w.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to watch: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Watching %s (Ctrl+C to stop)\n", w.Path())
	waitForSignal()
	w.Stop()
}

func runSeed() {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	file := fs.String("file", "", "YAML file with a top-level helpers list (default: built-in catalog)")
	_ = fs.Parse(os.Args[2:])

	var helpers []*models.HelperProfile
	var err error
	if *file != "" {
		helpers, err = seed.LoadFile(*file)
	} else {
		helpers, err = seed.Builtin()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load helpers: %v\n", err)
		os.Exit(1)
	}

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	if err := components.Storage.ReplaceHelpers(context.Background(), helpers); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to seed helpers: %v\n", err)
		components.Close()
		os.Exit(1)
	}
	fmt.Printf("Seeded %d helpers\n", len(helpers))
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	mode := fs.String("mode", "", "routing hint: helper or policy")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	req := &models.ChatRequest{Message: buildMessage(fs.Args()), Mode: models.Mode(*mode)}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Usage: helpmate chat [flags] <message>: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := cli.NewClient(*serverURL).Chat(ctx, req, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to chat: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()
}

func runHelpers() {
	fs := flag.NewFlagSet("helpers", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct storage mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	name := fs.String("q", "", "name contains")
	nationality := fs.String("nationality", "", "nationality (exact, case-insensitive)")
	skill := fs.String("skill", "", "comma-separated skills, any of")
	available := fs.String("available", "", "true or false")
	minExp := fs.String("min-exp", "", "minimum years of experience")
	maxSalary := fs.String("max-salary", "", "maximum expected salary")
	page := fs.String("page", "", "page number")
	limit := fs.String("limit", "", "page size (max 100)")
	sort := fs.String("sort", "", `sort "field:asc|desc"`)
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	params := helperParams(map[string]string{
		"q": *name, "nationality": *nationality, "skill": *skill, "available": *available,
		"minExp": *minExp, "maxSalary": *maxSalary, "page": *page, "limit": *limit, "sort": *sort,
	})

	ctx := context.Background()
	var result *models.HelperPage
	if *serverURL != "" {
		result, err = cli.NewClient(*serverURL).Helpers(ctx, params)
	} else {
		result, err = listHelpersDirect(ctx, *configPath, params)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list helpers: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteHelpers(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func listHelpersDirect(ctx context.Context, configPath string, params url.Values) (*models.HelperPage, error) {
	q, err := models.ParseHelperQuery(params)
	if err != nil {
		return nil, err
	}
	_, logger, components := setup(configPath, false)
	defer logger.Sync()
	defer components.Close()
	items, total, err := components.Storage.ListHelpers(ctx, q)
	if err != nil {
		return nil, err
	}
	return models.NewHelperPage(q, items, total), nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct storage mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx := context.Background()
	var status *models.KnowledgeStatus
	if *serverURL != "" {
		status, err = cli.NewClient(*serverURL).Status(ctx)
	} else {
		status, err = statusDirect(ctx, *configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// statusDirect loads the knowledge base from storage the way the server would.
func statusDirect(ctx context.Context, configPath string) (*models.KnowledgeStatus, error) {
	cfg, logger, components := setup(configPath, false)
	defer logger.Sync()
	defer components.Close()

	kc := cfg.Knowledge
	count, err := components.Storage.CountChunks(ctx, kc.Source, kc.Title)
	if err != nil {
		return nil, err
	}
	vectors := vector.NewStore(components.Storage, kc.Source, kc.Title, vector.WithLogger(logger))
	if err := vectors.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	status := &models.KnowledgeStatus{
		Title:         kc.Title,
		Source:        kc.Source,
		Chunks:        count,
		LoadedVectors: vectors.Size(),
		Ready:         vectors.Ready(),
		Config:        models.NewStatusConfig(cfg),
	}
	if cfg.Storage.Driver == config.DriverSQLite {
		if n, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath); err == nil {
			status.DiskUsageBytes = &n
		}
	}
	return status, nil
}

// helperParams keeps the non-empty flag values as catalog query parameters.
func helperParams(flags map[string]string) url.Values {
	v := url.Values{}
	for key, val := range flags {
		if val = strings.TrimSpace(val); val != "" {
			v.Set(key, val)
		}
	}
	return v
}

// buildMessage joins all positional args with spaces so messages work with or without quotes.
func buildMessage(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags that appear after positional arguments to the front so that
// flag.Parse sees them ("helpmate chat how much is the levy -mode policy").
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// warmUp loads the embedding model and the knowledge base ahead of the first request.
// Failures are logged only; both retry on the next chat that needs them.
func warmUp(ctx context.Context, embedder *embedding.Provider, vectors *vector.Store, logger *zap.Logger) {
	if err := embedder.Init(ctx); err != nil {
		logger.Warn("Embedding model not loaded at startup", zap.Error(err))
	}
	if err := vectors.EnsureLoaded(ctx); err != nil {
		logger.Warn("Knowledge base not loaded at startup", zap.Error(err))
	}
}

func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}

// Components holds initialized services.
type Components struct {
	Storage  storage.Storage
	Embedder *embedding.Provider
	closed   bool
}

// Close releases storage and the embedding model. It is safe to call twice.
func (c *Components) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.Open(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	provider := embedding.New(&cfg.Embedding, embedding.WithLogger(logger))
	logger.Debug("components initialized",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("embedding", cfg.Embedding.Provider),
		zap.String("model_version", provider.Version()))
	return &Components{Storage: store, Embedder: provider}, nil
}

func printUsage() {
	fmt.Println(`helpmate - chat assistant for a domestic helper agency

Usage:
  helpmate server [flags]            Start the HTTP server
  helpmate ingest [flags] <file>     Replace the policy knowledge base with a document
  helpmate seed [flags]              Replace the helper catalog
  helpmate chat [flags] <message>    Ask the running server a question
  helpmate helpers [flags]           List helpers in the catalog
  helpmate status [flags]            Show knowledge base status
  helpmate version                   Show version
  helpmate help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/helpmate/config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --config string    Config file path
  --title string     Knowledge base title (default: config knowledge.title or DOC_TITLE)
  --watch            Keep running and re-ingest when the file changes
  --debug            Enable debug logging
  Supported files: .pdf, .docx, .xlsx, .txt, .md, .rst

Seed Flags:
  --config string    Config file path
  --file string      YAML file with a helpers list (default: built-in catalog of 30 profiles)

Chat Flags:
  --server string    Server URL (default: http://localhost:4000)
  --mode string      Routing hint: helper or policy

Helpers Flags:
  --server string    Server URL (default: http://localhost:4000). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)
  --q, --nationality, --skill, --available, --min-exp, --max-salary, --page, --limit, --sort

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:4000). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  helpmate seed
  helpmate ingest --title "Hiring a Foreign Domestic Worker (MDW) in Singapore" mdw-guide.pdf
  helpmate ingest --watch mdw-guide.pdf
  helpmate server
  helpmate chat "I need a maid from Indonesia who can cook"
  helpmate chat --mode policy how many rest days does my helper get
  helpmate helpers --nationality Philippines --skill "Elderly Care" --sort experience:desc
  helpmate status --output json`)
}
