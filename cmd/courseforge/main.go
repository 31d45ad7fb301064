package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/dusk-indust/courseforge/internal/config"
	"github.com/dusk-indust/courseforge/internal/export"
	"github.com/dusk-indust/courseforge/internal/genai"
	"github.com/dusk-indust/courseforge/internal/mcptools"
	"github.com/dusk-indust/courseforge/internal/orchestrator"
	"github.com/dusk-indust/courseforge/internal/runstore"
)

// CLI flags parsed from command line.
type cliFlags struct {
	Outline  string
	DataDir  string
	Model    string
	RunID    string
	Targets  string
	Verbose  bool
	ServeMCP bool
	Version  bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	fs := flag.NewFlagSet("courseforge", flag.ContinueOnError)
	fs.StringVar(&flags.Outline, "outline", "course.yml", "path to the course outline YAML")
	fs.StringVar(&flags.DataDir, "data-dir", "", "directory for run state and rendered images")
	fs.StringVar(&flags.Model, "model", "", "generation model override")
	fs.StringVar(&flags.RunID, "run", "", "run id for regen, resume, and status")
	fs.StringVar(&flags.Targets, "targets", "", "comma-separated lesson or lab ids to regenerate")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable verbose output")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as MCP server for agent integration")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}
	if flags.Model != "" {
		cfg.Model = flags.Model
	}
	if flags.Verbose {
		cfg.Verbose = true
	}

	app, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.ServeMCP {
		server := mcptools.NewCourseMCPServer(app.engine(), app.store)
		return mcptools.RunMCPServerStdio(ctx, server)
	}

	switch fs.Arg(0) {
	case "", "generate":
		return runGenerate(ctx, app, flags.Outline)
	case "regen":
		return runRegen(ctx, app, flags.Outline, flags.RunID, flags.Targets)
	case "resume":
		return runResume(ctx, app, flags.Outline, flags.RunID)
	case "status":
		return runStatus(ctx, app, flags.RunID)
	case "diagram":
		return runDiagram(flags.Outline)
	default:
		return fmt.Errorf("unknown command %q (want generate, regen, resume, status, or diagram)", fs.Arg(0))
	}
}

// app bundles the wired dependencies and builds engines over them.
type app struct {
	client    genai.Client
	store     orchestrator.StateStore
	blobs     orchestrator.BlobStore
	assembler orchestrator.Assembler
	cfg       orchestrator.Config
	log       *zap.Logger

	closers []func() error
}

func (a *app) engine(opts ...orchestrator.EngineOption) *orchestrator.Engine {
	opts = append([]orchestrator.EngineOption{
		orchestrator.WithLogger(a.log),
		orchestrator.WithAssembler(a.assembler),
	}, opts...)
	return orchestrator.NewEngine(a.client, a.store, a.blobs, a.cfg, opts...)
}

func (a *app) engineWithProgress(pr *orchestrator.ProgressReporter) *orchestrator.Engine {
	return a.engine(orchestrator.WithProgress(pr))
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c()
	}
	_ = a.log.Sync()
}

func buildApp(cfg *config.ProjectConfig) (*app, error) {
	log, err := newLogger(cfg.Verbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = ".courseforge"
	}

	store, storeClose, err := openStateStore(filepath.Join(dataDir, "runs.kuzu"))
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	blobs := runstore.NewDirBlobStore(filepath.Join(dataDir, "blobs"))

	baseURL := cfg.GenerateURL
	if baseURL == "" {
		baseURL = "http://localhost:8700"
	}
	client := genai.NewHTTPClient(baseURL)

	a := &app{
		client:    client,
		store:     store,
		blobs:     blobs,
		assembler: export.NewCourseAssembler(filepath.Join(dataDir, "out")),
		cfg: orchestrator.Config{
			MaxPerBatch:     cfg.MaxPerBatch,
			MaxLabsPerBatch: cfg.MaxLabsPerBatch,
			MaxConcurrent:   cfg.MaxConcurrent,
			Budget:          cfg.Budget(),
			Margin:          cfg.Margin(),
			Retry: orchestrator.RetryPolicy{
				MaxAttempts: cfg.RetryMaxAttempts,
				BaseDelay:   cfg.RetryBase(),
			},
			Model: cfg.Model,
			Style: cfg.Style,
		},
		log: log,
	}
	if storeClose != nil {
		a.closers = append(a.closers, storeClose)
	}
	return a, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
