package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"StockPipeline/internal/collector"
	"StockPipeline/internal/config"
	"StockPipeline/internal/notifier"
	"StockPipeline/internal/scheduler"
	"StockPipeline/internal/status"
	"StockPipeline/internal/store"

	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	os.Exit(run())
}

func run() int {
	log.Println("[INFO] StockPipeline starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("[FATAL] load config: %v", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("[FATAL] config validation: %v", err)
		return 1
	}
	symbols, _ := cfg.WatchList()

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init fetcher
	fetcher, err := collector.NewAlphaVantageFetcher(cfg.AlphaVantage.APIKey, cfg.Proxy,
		collector.WithBaseURL(cfg.AlphaVantage.BaseURL),
		collector.WithRetry(cfg.AlphaVantage.MaxAttempts, cfg.RetryDelay()),
		collector.WithQuotaCooldown(cfg.QuotaCooldown(), *cfg.AlphaVantage.MaxNoticeRetries),
	)
	if err != nil {
		log.Printf("[FATAL] init fetcher: %v", err)
		return 1
	}
	fetcher.Client.Timeout = cfg.Timeout()
	log.Printf("[INFO] data source: %s", fetcher.Name())

	// Init store
	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Printf("[FATAL] init store: %v", err)
		return 1
	}
	defer st.Close()

	// Init collector
	col := collector.NewCollector(fetcher, st, collector.NewPacer(cfg.PaceInterval()), symbols)
	col.FailureThreshold = cfg.Batch.FailureThreshold

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, col, st)
	var tn *notifier.TelegramNotifier
	if cfg.NotifierEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sched.Notifier = tn
	}
	if cfg.Schedule.SkipClosedDays {
		sched.Calendar = scheduler.NewTradingCalendar(cfg.Schedule.Market)
	}

	if os.Getenv("RUN_ONCE") == "true" {
		log.Println("[INFO] RUN_ONCE enabled, executing a single batch")
		if _, err := sched.RunNow(ctx, scheduler.TriggerStartup); err != nil {
			log.Printf("[FATAL] batch failed: %v", err)
			return 1
		}
		return 0
	}

	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		log.Printf("[FATAL] register cron task: %v", err)
		return 1
	}
	sched.Start()
	defer sched.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Server.Addr != "" {
		srv := status.NewServer(cfg.Server.Addr, sched)
		g.Go(func() error { return srv.Start(gctx) })
	}
	if tn != nil {
		g.Go(func() error {
			tn.StartPolling(gctx, sched.HandleCommand)
			return nil
		})
		log.Println("[INFO] Telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing a batch now")
		if err := sched.Trigger(scheduler.TriggerStartup); err != nil {
			log.Printf("[WARN] startup run: %v", err)
		}
	}

	log.Printf("[INFO] StockPipeline is running (cron %q). Press Ctrl+C to stop.", cfg.Schedule.Cron)

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Printf("[ERROR] %v", err)
		stop()
		return 1
	}

	log.Println("[INFO] shutdown signal received, stopping...")
	return 0
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return store.NewPostgresStore(ctx, store.PostgresOptions{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
		})
	case config.DriverSQLite:
		return store.NewSQLiteStore(cfg.Database.SQLitePath)
	case config.DriverNoop:
		log.Println("[WARN] noop store selected, records will not be persisted")
		return store.NewNoopStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
