// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/poiesic/docrag"
	"github.com/poiesic/docrag/config"
	"github.com/urfave/cli/v2"
)

// env carries the process streams and any options forced onto docrag.Open.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	opts   []docrag.Option
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(&env{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr})
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(e *env) *cli.App {
	return &cli.App{
		Name:      "docrag",
		Usage:     "Index a documentation site and answer questions about it",
		Reader:    e.stdin,
		Writer:    e.stdout,
		ErrWriter: e.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file (default: ./docrag.yaml, then ~/.config/docrag/config.yaml)",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Directory holding the local index and sessions",
			},
		},
		Before: func(c *cli.Context) error {
			return setupLogger(c, e.stderr)
		},
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Discover, chunk, embed and index the documentation site",
				Action: e.ingestCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "root",
						Aliases: []string{"r"},
						Usage:   "Site root to discover pages under (overrides site.roots)",
					},
					&cli.StringSliceFlag{
						Name:  "url",
						Usage: "Ingest exactly these pages instead of discovering them",
					},
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "Drop the index before ingesting",
					},
					&cli.IntFlag{
						Name:  "prefetch",
						Usage: "Pages fetched ahead of the one being indexed (overrides site.prefetch)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Retrieve the chunks most similar to a query",
				ArgsUsage: "<query>",
				Action:    e.searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of results (default: retrieval.k)",
					},
				},
			},
			{
				Name:   "evaluate",
				Usage:  "Measure retrieval quality against the test query set",
				Action: e.evaluateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "queries",
						Usage: "YAML query set (overrides eval.queries_file)",
					},
				},
			},
			{
				Name:   "chat",
				Usage:  "Ask questions about the documentation",
				Action: e.chatCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "session",
						Aliases: []string{"s"},
						Usage:   "Session to continue (default: a new session)",
					},
					&cli.StringFlag{
						Name:    "message",
						Aliases: []string{"m"},
						Usage:   "Ask one question and exit",
					},
					&cli.StringFlag{
						Name:  "context",
						Usage: "Extra context sent with the message",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show the index size and the last ingestion run",
				Action: e.statusCommand,
			},
			{
				Name:   "reset",
				Usage:  "Drop every indexed chunk",
				Action: e.resetCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm the reset",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Re-embed every indexed chunk with the configured model",
				Action: e.reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
				},
			},
			{
				Name:   "init",
				Usage:  "Write the default configuration to a file",
				Action: e.initCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Destination (default: ~/.config/docrag/config.yaml)",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
			},
		},
	}
}

// loadConfig reads the configuration named by --config, or the default
// locations, and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		if err := config.LoadDotEnv(".env"); err != nil {
			return nil, err
		}
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, fmt.Errorf("config file: %w", statErr)
		}
		cfg, err = config.Load(path)
	} else {
		var path string
		cfg, path, err = config.LoadDefault()
		if path != "" {
			slog.Debug("loaded config", "path", path)
		}
	}
	if err != nil {
		return nil, err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}

func (e *env) open(c *cli.Context, cfg *config.Config) (*docrag.System, error) {
	opts := append([]docrag.Option{docrag.WithLogger(slog.Default())}, e.opts...)
	return docrag.Open(c.Context, cfg, opts...)
}

func setupLogger(c *cli.Context, w io.Writer) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
