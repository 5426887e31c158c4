// Package main is the kotae CLI entry point.
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
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generator"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/prompt"
	"github.com/hyperjump/kotae/internal/retriever"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "config.yaml"

func main() {
	// .env is optional; it only supplies variables such as OPENAI_API_KEY.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "chat":
		runChat(args)
	case "ingest":
		runIngest(args)
	case "search":
		runSearch(args)
	case "ask":
		runAsk(args)
	case "serve", "server":
		runServe(args)
	case "status":
		runStatus(args)
	case "templates":
		runTemplates(args)
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`kotae answers questions from a folder of text files.

Usage:
  kotae chat      [-data dir] [-template name]   interactive question loop
  kotae ingest    [dir]                          add .txt files to the index
  kotae search    [-json] [-top-k N] [-keyword|-hybrid] [-fuzzy N] <query>
  kotae ask       [-template name] [-top-k N] [-dry-run] [-json] <query>
  kotae serve     [-watch]                       start the HTTP API
  kotae status    [-json]
  kotae templates
  kotae version

Every command accepts -config (default config.yaml) and -debug.
`)
}

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	backend   embedding.Backend
	retriever *retriever.Retriever
	prompts   *prompt.Manager
	generator *generator.Generator
}

// commonFlags registers -config and -debug on fs.
func commonFlags(fs *flag.FlagSet) (configPath *string, debug *bool) {
	configPath = fs.String("config", defaultConfigPath, "config file path (missing file means defaults)")
	debug = fs.Bool("debug", false, "enable debug logging")
	return configPath, debug
}

// loadConfig loads path, falling back to defaults when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, _, err := config.LoadOrDefault(path)
	return cfg, err
}

func newApp(ctx context.Context, configPath string, debug bool) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", configPath), zap.String("backend", cfg.Backend.Type))

	backend, err := embedding.NewBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	r, err := retriever.Open(ctx, cfg, backend, retriever.WithLogger(logger))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	prompts, err := prompt.NewManager(cfg.Generation.PromptsDir)
	if err != nil {
		_ = r.Close()
		_ = backend.Close()
		return nil, err
	}
	gen := generator.New(backend, prompts, cfg.Generation.DefaultTemplate, generator.WithLogger(logger))
	return &app{
		cfg:       cfg,
		logger:    logger,
		backend:   backend,
		retriever: r,
		prompts:   prompts,
		generator: gen,
	}, nil
}

func (a *app) Close() {
	if err := a.retriever.Close(); err != nil {
		a.logger.Warn("close retriever", zap.Error(err))
	}
	_ = a.backend.Close()
	_ = a.logger.Sync()
}

func mustApp(ctx context.Context, configPath string, debug bool) *app {
	a, err := newApp(ctx, configPath, debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return a
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse sees them.
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

// buildQuery joins positional args so multi-word queries work with or without quotes.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func outputFormat(asJSON bool) cli.OutputFormat {
	if asJSON {
		return cli.OutputJSON
	}
	return cli.OutputText
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	_ = fs.Parse(argsReorder(args))

	ctx, cancel := signalContext()
	defer cancel()
	a := mustApp(ctx, *configPath, *debug)
	defer a.Close()

	dir := a.cfg.DataDir
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	start := time.Now()
	n, err := a.retriever.LoadDocuments(ctx, dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed after %d documents: %v\n", n, err)
		os.Exit(1)
	}
	fmt.Printf("Ingested %d documents from %s in %s\n", n, dir, time.Since(start).Round(time.Millisecond))
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	topK := fs.Int("top-k", 0, "number of results (0 = configured default)")
	asJSON := fs.Bool("json", false, "write JSON output")
	useKeyword := fs.Bool("keyword", false, "full-text search instead of vector search")
	useHybrid := fs.Bool("hybrid", false, "fuse vector and full-text scores")
	fuzzy := fs.Int("fuzzy", 0, "edit distance allowed per keyword term (0-2; keyword and hybrid only)")
	_ = fs.Parse(argsReorder(args))

	query := models.SearchQuery{Query: buildQuery(fs.Args()), TopK: *topK, Fuzziness: *fuzzy}
	switch {
	case *useHybrid:
		query.Mode = models.SearchModeHybrid
	case *useKeyword:
		query.Mode = models.SearchModeKeyword
	}
	if err := query.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Usage: kotae search [flags] <query>: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()
	a := mustApp(ctx, *configPath, *debug)
	defer a.Close()

	start := time.Now()
	results, err := a.retriever.SearchMode(ctx, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", explain(err))
		os.Exit(1)
	}
	response := &models.SearchResponse{
		Results:   results,
		Query:     query.Query,
		Mode:      query.Mode,
		QueryTime: time.Since(start).Milliseconds(),
	}
	if err := cli.WriteSearchResults(os.Stdout, response, outputFormat(*asJSON)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	topK := fs.Int("top-k", 0, "number of context documents (0 = configured default)")
	template := fs.String("template", "", "prompt template name (empty = configured default)")
	dryRun := fs.Bool("dry-run", false, "print the prompt instead of calling the model")
	asJSON := fs.Bool("json", false, "write JSON output")
	_ = fs.Parse(argsReorder(args))

	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Fprintln(os.Stderr, "Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()
	a := mustApp(ctx, *configPath, *debug)
	defer a.Close()

	results, err := a.retriever.Search(ctx, query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Retrieval failed: %v\n", explain(err))
		os.Exit(1)
	}
	docs := documentsOf(results)
	if *dryRun {
		p, err := a.generator.Prompt(query, docs, *template)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Prompt failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(p)
		return
	}
	answer, err := a.generator.Generate(ctx, query, docs, *template)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Generation failed: %v\n", explain(err))
		os.Exit(1)
	}
	name := *template
	if name == "" {
		name = a.generator.DefaultTemplate()
	}
	resp := &models.AskResponse{Answer: answer, Template: name, Sources: results}
	if err := cli.WriteAnswer(os.Stdout, resp, outputFormat(*asJSON)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func documentsOf(results []*models.SearchResult) []*models.Document {
	docs := make([]*models.Document, len(results))
	for i, r := range results {
		docs[i] = r.Document
	}
	return docs
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	watch := fs.Bool("watch", false, "ingest new .txt files that appear in the data directory")
	_ = fs.Parse(args)

	ctx, cancel := signalContext()
	defer cancel()
	a := mustApp(ctx, *configPath, *debug)
	defer a.Close()

	watching := *watch || a.cfg.Watch.Enabled
	if watching {
		w := watcher.NewWatcher(a.cfg.DataDir, a.retriever.IngestFile, watcher.WithLogger(a.logger))
		if sources, err := a.retriever.Sources(ctx); err == nil {
			for _, src := range sources {
				w.MarkIngested(filepath.Join(a.cfg.DataDir, src))
			}
		}
		if err := w.Start(ctx); err != nil {
			a.logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(a.retriever, a.generator, a.prompts, a.cfg, a.logger, server.WithWatching(watching))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	asJSON := fs.Bool("json", false, "write JSON output")
	_ = fs.Parse(args)

	ctx := context.Background()
	a := mustApp(ctx, *configPath, *debug)
	defer a.Close()

	stats, err := a.retriever.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	diskBytes, _ := storage.DiskUsageBytes(a.cfg.Storage.IndexPath, a.cfg.Storage.DocumentsPath, a.cfg.Storage.KeywordIndexPath)
	if err := cli.WriteStatus(os.Stdout, stats, diskBytes, outputFormat(*asJSON)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runTemplates(args []string) {
	fs := flag.NewFlagSet("templates", flag.ExitOnError)
	configPath, _ := commonFlags(fs)
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	prompts, err := prompt.NewManager(cfg.Generation.PromptsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load templates: %v\n", err)
		os.Exit(1)
	}
	cli.WriteTemplates(os.Stdout, prompts.Descriptions(), cfg.Generation.DefaultTemplate)
}

// explain adds a hint for errors a user can fix directly.
func explain(err error) error {
	switch {
	case errors.Is(err, models.ErrIndexNotInitialized):
		return fmt.Errorf("%w (run `kotae ingest` first)", err)
	case errors.Is(err, models.ErrKeywordDisabled):
		return fmt.Errorf("%w (set storage.keyword_index_path)", err)
	}
	return err
}
