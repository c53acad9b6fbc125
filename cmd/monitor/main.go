package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Aprilius996/ofac-monitor/internal/config"
	"github.com/Aprilius996/ofac-monitor/internal/detector"
	"github.com/Aprilius996/ofac-monitor/internal/fetcher"
	"github.com/Aprilius996/ofac-monitor/internal/filter"
	"github.com/Aprilius996/ofac-monitor/internal/listing"
	"github.com/Aprilius996/ofac-monitor/internal/metrics"
	"github.com/Aprilius996/ofac-monitor/internal/notifier"
	"github.com/Aprilius996/ofac-monitor/internal/scheduler"
	"github.com/Aprilius996/ofac-monitor/internal/storage"
)

func main() {
	once := flag.Bool("once", false, "run a single detection cycle and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	sourceLoc, err := time.LoadLocation(cfg.SourceTZ)
	if err != nil {
		log.Error("load source time zone", "tz", cfg.SourceTZ, "error", err)
		os.Exit(1)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Error("open state store", "backend", cfg.StateBackend, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	n, err := notifier.New(cfg, log)
	if err != nil {
		log.Error("create notifier", "channel", cfg.NotifyChannel, "error", err)
		os.Exit(1)
	}

	patterns := append(append([]string{}, filter.DefaultPatterns...), cfg.ExtraPatterns...)
	matcher, err := filter.NewMatcher(cfg.Keywords, patterns)
	if err != nil {
		log.Error("compile keyword patterns", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	pager := fetcher.New(&http.Client{},
		fetcher.WithTimeout(cfg.HTTPTimeout),
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithRate(cfg.FetchRPS),
	)

	var source listing.Source
	switch cfg.ListingFormat {
	case config.FormatRSS:
		source = listing.NewFeedSource(pager, cfg.ListingURL, sourceLoc, collector, log)
	default:
		source = listing.NewHTMLSource(pager, cfg.ListingURL, cfg.BaseURL, sourceLoc, collector, log)
	}

	det := detector.New(source, matcher, store, n, detector.Options{
		Policy:   cfg.DedupPolicy,
		Location: sourceLoc,
	}, collector, log)

	policy, err := newPolicy(cfg)
	if err != nil {
		log.Error("create schedule", "policy", cfg.SchedulePolicy, "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	det.Restore(ctx)

	sched := scheduler.New(func(ctx context.Context) error {
		_, err := det.RunCycle(ctx)
		return err
	}, policy, cfg.FailureCooldown, collector, log)

	if *once {
		if err := sched.RunOnce(ctx); err != nil {
			log.Error("run cycle", "error", err)
			os.Exit(1)
		}
		return
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	log.Info("starting monitor",
		"listing_url", cfg.ListingURL,
		"format", cfg.ListingFormat,
		"schedule", cfg.SchedulePolicy,
		"dedup", cfg.DedupPolicy,
		"channel", cfg.NotifyChannel,
	)

	sched.Run(ctx)

	log.Info("monitor stopped")
}

func openStore(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StateBackend {
	case config.BackendSQLite:
		if err := ensureDir(cfg.DatabasePath); err != nil {
			return nil, err
		}
		db, err := storage.NewSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		if err := ensureDir(cfg.StatePath); err != nil {
			return nil, err
		}
		return storage.NewFileStore(cfg.StatePath), nil
	}
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	return nil
}

func newPolicy(cfg *config.Config) (scheduler.Policy, error) {
	if cfg.SchedulePolicy != config.ScheduleWindow {
		return scheduler.Interval{Every: cfg.CheckInterval}, nil
	}
	loc, err := time.LoadLocation(cfg.WindowTZ)
	if err != nil {
		return nil, fmt.Errorf("load window time zone: %w", err)
	}
	return scheduler.NewWindow(cfg.WindowStart, cfg.WindowEnd, loc)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
