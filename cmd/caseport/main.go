package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"caseport/internal"
	"caseport/internal/mcpserver"
	"caseport/internal/store"
	pkgconfig "caseport/pkg/config"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Command-line overrides take precedence over the config file.
	if v := cmd.String("project"); v != "" {
		cfg.Project = v
	}
	if v := cmd.String("user"); v != "" {
		cfg.User = v
	}
	if v := cmd.String("tests-url"); v != "" {
		cfg.TestsURL = v
	}
	if v := cmd.String("testrun-id"); v != "" {
		cfg.Testrun.ID = v
	}

	return cfg, nil
}

func generate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithReportPath(cmd.String("report")),
		internal.WithWatch(cmd.Bool("watch")),
	}
	if v := cmd.String("output-yaml"); v != "" {
		opts = append(opts, internal.WithYAMLOutput(v))
	}
	if v := cmd.String("output-testcase"); v != "" {
		opts = append(opts, internal.WithTestcaseOutput(v))
	}
	if v := cmd.String("output-testrun"); v != "" {
		opts = append(opts, internal.WithTestrunOutput(v))
	}
	if v := cmd.String("store"); v != "" {
		opts = append(opts, internal.WithStorePath(v))
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("generate error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	db, err := store.Open(cmd.String("store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	return mcpserver.New(db).ServeStdio()
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "caseport.yaml",
		Value:       "caseport.yaml",
		Sources:     cli.EnvVars("CASEPORT_CONFIG_FILE"),
	}
	storeFlag := &cli.StringFlag{
		Name:    "store",
		Usage:   "Path to the SQLite record store",
		Sources: cli.EnvVars("CASEPORT_STORE"),
	}

	cmd := &cli.Command{
		Name:  "caseport",
		Usage: "Collect test metadata from docstrings and render test management import documents",
		Commands: []*cli.Command{
			{
				Name:   "generate",
				Usage:  "Read a test report and write the configured output documents",
				Action: generate,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:     "report",
						Aliases:  []string{"r"},
						Usage:    "Path to the JSON test report",
						Required: true,
						Sources:  cli.EnvVars("CASEPORT_REPORT"),
					},
					&cli.StringFlag{
						Name:  "output-yaml",
						Usage: "Write assembled records as YAML to this path",
					},
					&cli.StringFlag{
						Name:  "output-testcase",
						Usage: "Write the testcase import document to this path",
					},
					&cli.StringFlag{
						Name:  "output-testrun",
						Usage: "Write the testrun import document to this path",
					},
					storeFlag,
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Keep running and regenerate outputs when the report changes",
					},
					&cli.StringFlag{
						Name:    "project",
						Usage:   "Override the target project id",
						Sources: cli.EnvVars("CASEPORT_PROJECT"),
					},
					&cli.StringFlag{
						Name:    "user",
						Usage:   "Override the importing user id",
						Sources: cli.EnvVars("CASEPORT_USER"),
					},
					&cli.StringFlag{
						Name:  "tests-url",
						Usage: "Override the base URL used by field default templates",
					},
					&cli.StringFlag{
						Name:  "testrun-id",
						Usage: "Override the testrun id ({now} expands to the current Unix time)",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the record store over MCP on stdin/stdout",
				Action: mcp,
				Flags: []cli.Flag{
					storeFlag,
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
