// Command bidwatch runs the crawl service: a headless browser session, the
// crawl coordinator, and the HTTP control API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bidwatch/g2b-crawler/internal/ai"
	"github.com/bidwatch/g2b-crawler/internal/api"
	"github.com/bidwatch/g2b-crawler/internal/browser"
	"github.com/bidwatch/g2b-crawler/internal/config"
	"github.com/bidwatch/g2b-crawler/internal/events"
	"github.com/bidwatch/g2b-crawler/internal/g2b"
	"github.com/bidwatch/g2b-crawler/internal/job"
	"github.com/bidwatch/g2b-crawler/internal/logging"
	"github.com/bidwatch/g2b-crawler/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "bidwatch:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := browser.NewChromeSession(browser.Config{
		Headless:  cfg.Browser.Headless,
		UserAgent: cfg.Browser.UserAgent,
		OpTimeout: cfg.NavTimeout(),
	}, logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer session.Close()

	var enricher ai.Extractor
	if cfg.AI.Enabled {
		ollama, err := ai.NewOllamaExtractor(ctx, ai.OllamaConfig{
			BaseURL: cfg.AI.BaseURL,
			Model:   cfg.AI.Model,
		}, logger.Named("ai"))
		if err != nil {
			return fmt.Errorf("init ai extractor: %w", err)
		}
		enricher = ollama
		logger.Info("ai enrichment enabled", zap.String("model", cfg.AI.Model))
	}

	tracker := g2b.NewStateTracker()
	interrupts := g2b.NewInterruptRecovery(session, cfg.Crawl.InterruptSweeps, logger.Named("interrupts"))
	nav := g2b.NewNavigator(session, tracker, interrupts, g2b.NavigatorConfig{
		BaseURL: cfg.Browser.BaseURL,
		Retry: g2b.RetryConfig{
			Attempts: cfg.Crawl.RetryAttempts,
			Delay:    cfg.RetryDelay(),
		},
	}, logger.Named("navigator"))

	scheme := g2b.DefaultCellScheme()
	if cfg.Crawl.MaxRowProbes > 0 {
		scheme.MaxRows = cfg.Crawl.MaxRowProbes
	}
	lists := g2b.NewListExtractor(scheme, logger.Named("list"))
	details := g2b.NewDetailExtractor(session, tracker, interrupts, enricher, g2b.DetailConfig{
		MaxAIInput: cfg.AI.MaxInputChars,
	}, logger.Named("detail"))

	store, err := job.NewSnapshotStore(cfg.Crawl.SnapshotDir, logger.Named("store"))
	if err != nil {
		return err
	}

	bus := events.NewBus(64, logger.Named("events"))
	defer bus.Close()

	jobCfg := job.Config{MaxItemsPerKeyword: cfg.Crawl.MaxItemsPerKeyword}
	if cfg.Crawl.RelevanceFilter {
		jobCfg.Relevance = titleRelevance
	}
	coordinator := job.New(nav, lists, details, bus, store, jobCfg, logger.Named("job"))

	server := api.NewServer(coordinator, bus, logger.Named("api"))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	if _, err := coordinator.Stop(); err == nil {
		logger.Info("running job asked to stop")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// titleRelevance is the default relevance check: keep a candidate when its
// title mentions the keyword, ignoring case and surrounding whitespace.
func titleRelevance(_ context.Context, keyword, title string) bool {
	return strings.Contains(
		strings.ToLower(title),
		strings.ToLower(strings.TrimSpace(keyword)),
	)
}
