package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pricecrawl/pricecrawl/internal/api"
	"github.com/pricecrawl/pricecrawl/internal/config"
	"github.com/pricecrawl/pricecrawl/internal/engine"
	"github.com/pricecrawl/pricecrawl/internal/parser"
	"github.com/pricecrawl/pricecrawl/internal/proxy"
	"github.com/pricecrawl/pricecrawl/internal/storage"
)

func newCrawlCmd() *cobra.Command {
	var (
		parserName string
		urlsFile   string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "crawl [urls...]",
		Short: "Scrape the given URLs and persist extracted price records",
		Long: `Starts a concurrent scrape of the given start URLs. The parser discovers
category, product, and pagination links and follows them within the run.
Results are deduplicated and written to the configured storage backend.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd.Context(), parserName, urlsFile, output, args)
		},
	}

	cmd.Flags().StringVar(&parserName, "parser", "knifecenter", "registered parser to use")
	cmd.Flags().StringVar(&urlsFile, "urls-file", "", "file with one start URL per line")
	cmd.Flags().StringVar(&output, "output", "", "destination (file path or table); overrides storage.output_file")
	return cmd
}

func runCrawl(ctx context.Context, parserName, urlsFile, output string, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	urls, err := collectURLs(args, urlsFile)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return errors.New("no start URLs given; pass them as arguments or via --urls-file")
	}

	destination := output
	if destination == "" {
		destination = cfg.Storage.OutputFile
	}
	if destination == "" {
		return errors.New("no destination given; set storage.output_file or pass --output")
	}

	shopParser, err := parser.Open(parserName, logger)
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return err
	}

	proxies, err := loadProxies(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(cfg, proxies, shopParser, store, logger)
	if err := eng.Open(ctx); err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil {
			logger.Warn("failed to close engine", zap.Error(cerr))
		}
	}()

	if cfg.Server.Port > 0 {
		srv := api.NewServer(func() api.Status {
			return api.Status{
				RunID:      eng.RunID(),
				Items:      len(eng.Results()),
				FailedURLs: eng.FailedURLs(),
			}
		}, logger)
		go func() {
			if serr := srv.ListenAndServe(ctx, cfg.Server.Port); serr != nil {
				logger.Warn("ops server stopped", zap.Error(serr))
			}
		}()
	}

	if err := eng.ScrapeURLs(ctx, urls); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scrape urls: %w", err)
	}
	if err := eng.SaveResults(ctx, destination); err != nil {
		return err
	}

	logger.Info("crawl finished",
		zap.Int("items", len(eng.Results())),
		zap.Int("failed_urls", eng.FailedURLs()),
		zap.String("destination", destination),
	)
	return nil
}

// collectURLs merges positional arguments with the optional urls file,
// skipping blank lines and comments.
func collectURLs(args []string, urlsFile string) ([]string, error) {
	urls := make([]string, 0, len(args))
	urls = append(urls, args...)

	if urlsFile == "" {
		return urls, nil
	}

	f, err := os.Open(urlsFile)
	if err != nil {
		return nil, fmt.Errorf("open urls file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read urls file: %w", err)
	}
	return urls, nil
}

// loadProxies builds the proxy pool from the inline list plus the optional
// file. An empty pool is valid; requests then go out directly.
func loadProxies(cfg config.Config, logger *zap.Logger) (*proxy.Manager, error) {
	pool := proxy.ParseList(cfg.Proxy.List, logger)
	if cfg.Proxy.File != "" {
		fromFile, err := proxy.LoadFile(cfg.Proxy.File, logger)
		if err != nil {
			return nil, fmt.Errorf("load proxy file: %w", err)
		}
		pool = append(pool, fromFile...)
	}
	return proxy.NewManager(pool, cfg.Proxy.MaxRequestsPerProxy, logger), nil
}
