package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/poiesic/docrag/agent"
	"github.com/poiesic/docrag/config"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/eval"
	"github.com/poiesic/docrag/ingestion"
	"github.com/poiesic/docrag/reembed"
	"github.com/urfave/cli/v2"
)

func (e *env) ingestCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if roots := c.StringSlice("root"); len(roots) > 0 {
		cfg.Site.Roots = roots
	}
	if n := c.Int("prefetch"); n > 0 {
		cfg.Site.Prefetch = n
	}

	sys, err := e.open(c, cfg)
	if err != nil {
		return err
	}
	defer sys.Close()

	opts := []ingestion.Option{
		ingestion.WithReset(c.Bool("reset")),
		ingestion.WithProgress(e.stderr),
	}

	var report *core.RunReport
	if urls := c.StringSlice("url"); len(urls) > 0 {
		p, err := sys.NewPipeline(opts...)
		if err != nil {
			return err
		}
		defer p.Release()
		report, err = p.RunURLs(c.Context, urls...)
	} else {
		report, err = sys.Ingest(c.Context, opts...)
	}

	if report != nil {
		renderRunReport(e.stdout, report)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("ingestion aborted: %v", err), 1)
	}
	if report.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d pages failed", report.Failed, report.Discovered), 1)
	}
	return nil
}

func (e *env) searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a query is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	sys, err := e.open(c, cfg)
	if err != nil {
		return err
	}
	defer sys.Close()

	results, err := sys.Retrieval().Retrieve(c.Context, query, c.Int("k"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	renderResults(e.stdout, query, results, sys.Retrieval().Threshold())
	return nil
}

func (e *env) evaluateCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if path := c.String("queries"); path != "" {
		cfg.Eval.QueriesFile = path
	}

	sys, err := e.open(c, cfg)
	if err != nil {
		return err
	}
	defer sys.Close()

	threshold := sys.Retrieval().Threshold()
	evaluator, err := sys.NewEvaluator(eval.WithObserver(func(index, total int, qr *eval.QueryResult) {
		eval.RenderQuery(e.stdout, index, total, qr, threshold)
	}))
	if err != nil {
		return err
	}

	report, err := evaluator.Run(c.Context)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	eval.RenderSummary(e.stdout, report)
	if !report.Pass {
		return cli.Exit("retrieval quality below threshold: "+strings.Join(report.Reasons, "; "), 1)
	}
	return nil
}

func (e *env) chatCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	sys, err := e.open(c, cfg)
	if err != nil {
		return err
	}
	defer sys.Close()

	a, err := sys.NewAgent()
	if err != nil {
		return err
	}

	session := c.String("session")
	if session == "" {
		session = agent.NewSessionID()
	}
	ask := func(message string) error {
		reply, err := a.Chat(c.Context, agent.ChatRequest{
			SessionID: session,
			Message:   message,
			Context:   c.String("context"),
		})
		if err != nil {
			return err
		}
		renderReply(e.stdout, reply)
		return nil
	}

	if message := c.String("message"); message != "" {
		return ask(message)
	}

	fmt.Fprintf(e.stdout, "Session %s. Type 'exit' or 'quit' to leave.\n", session)
	scanner := bufio.NewScanner(e.stdin)
	for {
		fmt.Fprint(e.stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(e.stdout)
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if lower := strings.ToLower(line); lower == "exit" || lower == "quit" {
			break
		}
		if err := ask(line); err != nil {
			if errors.Is(err, agent.ErrInvalidRequest) {
				fmt.Fprintln(e.stderr, err)
				continue
			}
			return err
		}
		if c.Context.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

func (e *env) statusCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	sys, err := e.open(c, cfg)
	if err != nil {
		return err
	}
	defer sys.Close()

	status, err := sys.Status(c.Context)
	if err != nil {
		return err
	}
	renderStatus(e.stdout, status)
	return nil
}

func (e *env) resetCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !c.Bool("yes") {
		return fmt.Errorf("refusing to reset the %s index without --yes", cfg.Index.Backend)
	}
	sys, err := e.open(c, cfg)
	if err != nil {
		return err
	}
	defer sys.Close()

	if err := sys.Reset(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, "Index reset.")
	return nil
}

func (e *env) reembedCommand(c *cli.Context) error {
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	sys, err := e.open(c, cfg)
	if err != nil {
		return err
	}
	defer sys.Close()

	r, err := sys.NewReembedder(
		reembed.WithBatchSize(c.Int("batch-size")),
		reembed.WithReportInterval(c.Int("report-interval")),
		reembed.WithProgress(e.stderr),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.stderr, "Index: %s\n", cfg.Index.Backend)
	fmt.Fprintf(e.stderr, "Embedding model: %s\n", sys.Embedder().ModelName())
	fmt.Fprintln(e.stderr)

	n, err := r.Run(c.Context)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Fprintf(e.stdout, "Re-embedded %d chunks.\n", n)
	return nil
}

func (e *env) initCommand(c *cli.Context) error {
	path := c.String("path")
	if path == "" {
		p, err := config.UserConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Wrote default configuration to %s\n", path)
	return nil
}
