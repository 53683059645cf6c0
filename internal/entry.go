package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"caseport/internal/outputs"
	"caseport/internal/record"
	"caseport/internal/report"
	"caseport/internal/store"
	"caseport/internal/watch"
)

// Run executes the metadata pipeline with the given options: load the test
// report, assemble a record for every test item, and write the configured
// output documents. In watch mode it then keeps regenerating outputs until
// ctx is cancelled or a termination signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	if app.reportPath == "" {
		return fmt.Errorf("report path is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("project", cfg.Project),
		slog.String("report", app.reportPath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	generators := make([]outputs.Generator, 0, 4)
	if app.yamlPath != "" {
		generators = append(generators, &outputs.YAML{Path: app.yamlPath})
	}
	if app.testcasePath != "" || app.testrunPath != "" {
		popts := polarionOptions(cfg)
		if app.testcasePath != "" {
			generators = append(generators, &outputs.Testcases{Path: app.testcasePath, Options: popts})
		}
		if app.testrunPath != "" {
			generators = append(generators, &outputs.Testrun{Path: app.testrunPath, Options: popts})
		}
	}
	if app.storePath != "" {
		db, err := store.Open(app.storePath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()
		generators = append(generators, db)
	}
	if len(generators) == 0 {
		return fmt.Errorf("no outputs configured")
	}

	assembler := record.NewAssembler(&cfg.Testcase.Rules, cfg.TestsURL)

	generate := func() error {
		return generateOnce(ctx, logger, app.reportPath, assembler, generators)
	}

	if !app.watch {
		return generate()
	}

	// Watch mode: one initial pass, then regenerate on change. A failing
	// pass is logged but keeps the watcher alive so the next report write
	// gets another chance.
	if err := generate(); err != nil {
		logger.Error("initial generation failed", slog.String("error", err.Error()))
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return watch.Run(sigCtx, app.reportPath, logger, generate)
}

// generateOnce loads the report, assembles records for all items in
// parallel, and runs every configured generator. Per-test assembly failures
// are logged and counted; the surviving items still produce outputs.
func generateOnce(ctx context.Context, logger *slog.Logger, reportPath string, assembler *record.Assembler, generators []outputs.Generator) error {
	rep, err := report.Load(reportPath)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}

	logger.Info("report loaded",
		slog.String("mode", string(rep.Mode)),
		slog.Int("tests", len(rep.Items)))

	records := make([]*record.Record, len(rep.Items))
	errs := make([]error, len(rep.Items))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range rep.Items {
		g.Go(func() error {
			records[i], errs[i] = assembler.Assemble(&rep.Items[i])
			return nil
		})
	}
	_ = g.Wait()

	items := make([]outputs.Item, 0, len(rep.Items))
	failed := 0
	for i := range rep.Items {
		if errs[i] != nil {
			failed++
			logger.Warn("test skipped", slog.String("error", errs[i].Error()))
			continue
		}
		items = append(items, outputs.Item{Test: &rep.Items[i], Record: records[i]})
	}

	for _, gen := range generators {
		if err := gen.Generate(rep, items); err != nil {
			return fmt.Errorf("generate output: %w", err)
		}
	}

	logger.Info("outputs generated",
		slog.Int("tests", len(items)),
		slog.Int("skipped", failed))

	if failed > 0 {
		return fmt.Errorf("%d of %d tests had invalid metadata", failed, len(rep.Items))
	}
	return nil
}

// polarionOptions maps the configuration onto the importer-facing options,
// resolving the testrun id against the current time.
func polarionOptions(cfg *Config) outputs.PolarionOptions {
	return outputs.PolarionOptions{
		Project:             cfg.Project,
		User:                cfg.User,
		LookupMethod:        cfg.Testrun.LookupMethod,
		LookupMethodFieldID: cfg.Testrun.LookupMethodFieldID,
		DryRun:              cfg.Testrun.DryRun,
		CreateDefects:       cfg.Testrun.CreateDefects,
		IncludeSkipped:      cfg.Testrun.SkippedIncluded(),
		TestrunID:           cfg.Testrun.SanitizedID(time.Now()),
		TestrunTitle:        cfg.Testrun.Title,
		TestrunTemplateID:   cfg.Testrun.TemplateID,
		TestrunTypeID:       cfg.Testrun.TypeID,
		TestrunGroupID:      cfg.Testrun.GroupID,
		ProjectSpanIDs:      cfg.Testrun.ProjectSpanIDs,
		TestcaseProperties:  cfg.Testcase.Properties,
		TestrunProperties:   cfg.Testrun.Properties,
	}
}
