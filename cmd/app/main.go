package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/chronicle/internal"
	"github.com/starford/chronicle/internal/insight"
	"github.com/starford/chronicle/internal/mcpserver"
	pkgconfig "github.com/starford/chronicle/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

// withPipeline builds the pipeline for a one-shot command. Logs go to stderr
// so stdout carries only the command output.
func withPipeline(ctx context.Context, cmd *cli.Command, fn func(*internal.Config, *insight.Service) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(cfg.App.LogLevel, os.Stderr)
	slog.SetDefault(logger)

	comp, err := internal.Build(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.PersistTimeout)
		defer cancel()
		if err := comp.Close(closeCtx); err != nil {
			logger.Error("pipeline close error", slog.String("error", err.Error()))
		}
	}()
	return fn(cfg, comp.Service)
}

func readJournal(cmd *cli.Command) (string, error) {
	path := cmd.String("journal")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read journal: %w", err)
	}
	return string(data), nil
}

func parseNow(cmd *cli.Command) (time.Time, error) {
	raw := cmd.String("now")
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now: %w", err)
	}
	return t, nil
}

func userFor(cmd *cli.Command, cfg *internal.Config) string {
	if u := cmd.String("user"); u != "" {
		return u
	}
	return cfg.Watch.User
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func report(ctx context.Context, cmd *cli.Command) error {
	return withPipeline(ctx, cmd, func(cfg *internal.Config, svc *insight.Service) error {
		journal, err := readJournal(cmd)
		if err != nil {
			return err
		}
		now, err := parseNow(cmd)
		if err != nil {
			return err
		}
		res, err := svc.Generate(ctx, insight.Request{
			User:          userFor(cmd, cfg),
			Journal:       journal,
			FormattedDate: cmd.String("date"),
			Topics:        cmd.StringSlice("topic"),
			Now:           now,
		})
		if err != nil {
			return fmt.Errorf("could not generate report: %w", err)
		}
		if cmd.Bool("json") {
			return printJSON(res)
		}
		_, err = fmt.Fprintln(os.Stdout, res.Report)
		return err
	})
}

func estimate(ctx context.Context, cmd *cli.Command) error {
	return withPipeline(ctx, cmd, func(cfg *internal.Config, svc *insight.Service) error {
		journal, err := readJournal(cmd)
		if err != nil {
			return err
		}
		now, err := parseNow(cmd)
		if err != nil {
			return err
		}
		est, err := svc.Estimate(ctx, userFor(cmd, cfg), journal, now)
		if err != nil {
			return err
		}
		return printJSON(est)
	})
}

func cleanup(ctx context.Context, cmd *cli.Command) error {
	return withPipeline(ctx, cmd, func(cfg *internal.Config, svc *insight.Service) error {
		journal, err := readJournal(cmd)
		if err != nil {
			return err
		}
		now, err := parseNow(cmd)
		if err != nil {
			return err
		}
		res, err := svc.Cleanup(ctx, userFor(cmd, cfg), journal, now)
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	return withPipeline(ctx, cmd, func(cfg *internal.Config, svc *insight.Service) error {
		root := cfg.Watch.Dir
		if root != "" {
			abs, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolve journal dir: %w", err)
			}
			root = abs
		}
		return mcpserver.New(svc, userFor(cmd, cfg), root).ServeStdio()
	})
}

func journalFlags(withUser bool) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "journal",
			Aliases:  []string{"j"},
			Usage:    "Path to the journal file",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "now",
			Usage: "Reference time for tiering (RFC 3339, default: current time)",
		},
	}
	if withUser {
		flags = append(flags, userFlag())
	}
	return flags
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "User whose summary cache is used (default: watch.user)",
		Sources: cli.EnvVars("CHRONICLE_USER"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "chronicle",
		Usage:  "Turns a long personal journal into an insight report using tiered, cached period summaries",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (.yaml or .toml)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, event stream and journal inbox maintenance",
				Action: serve,
			},
			{
				Name:  "report",
				Usage: "Generate a report for a journal file",
				Flags: append(journalFlags(true),
					&cli.StringFlag{
						Name:  "date",
						Usage: "Report date shown in the title (default: today)",
					},
					&cli.StringSliceFlag{
						Name:    "topic",
						Aliases: []string{"t"},
						Usage:   "Extra topic to cover (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the report with usage and estimate as JSON",
					},
				),
				Action: report,
			},
			{
				Name:   "estimate",
				Usage:  "Estimate the cost of a report without calling the model",
				Flags:  journalFlags(true),
				Action: estimate,
			},
			{
				Name:   "cleanup",
				Usage:  "Delete cached summaries superseded by the journal's current content",
				Flags:  journalFlags(true),
				Action: cleanup,
			},
			{
				Name:   "mcp",
				Usage:  "Serve report tools over MCP stdio",
				Flags:  []cli.Flag{userFlag()},
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
