package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"EstateSentinel/internal/analysis"
	"EstateSentinel/internal/api"
	"EstateSentinel/internal/collector"
	"EstateSentinel/internal/config"
	"EstateSentinel/internal/lock"
	"EstateSentinel/internal/logging"
	"EstateSentinel/internal/notifier"
	"EstateSentinel/internal/orchestrator"
	"EstateSentinel/internal/scheduler"
	"EstateSentinel/internal/stats"
	"EstateSentinel/internal/store"
)

func main() {
	boot := logging.New("info", "text")
	boot.Info("EstateSentinel starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot.WithError(err).Fatal("load config")
	}
	if err := cfg.Validate(); err != nil {
		boot.WithError(err).Fatal("config validation")
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init store
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.SQLitePath, cfg.Database.PostgresDSN, logger)
	if err != nil {
		logger.WithError(err).Fatal("open store")
	}
	defer st.Close()

	// Init adapters
	transport := collector.NewHTTPTransport(cfg.Proxy)
	registry := collector.NewRegistry()
	for _, name := range cfg.EnabledSources() {
		adapter, err := collector.NewAdapter(name, sourceSettings(cfg, name), transport)
		if err != nil {
			logger.WithError(err).Fatal("init source adapter")
		}
		if err := registry.Register(adapter); err != nil {
			logger.WithError(err).Fatal("register source adapter")
		}
		lo, hi := adapter.DelayRange()
		logger.WithFields(logrus.Fields{"source": name, "delay_min": lo, "delay_max": hi}).Info("source enabled")
	}

	// Init stats tracker
	var tracker *stats.Tracker
	if cfg.Stats.StateFile != "" {
		if tracker, err = stats.NewPersistentTracker(cfg.Stats.StateFile, logger); err != nil {
			logger.WithError(err).Fatal("init stats tracker")
		}
	} else {
		tracker = stats.NewTracker()
	}

	orch := orchestrator.New(registry, st, tracker, logger, orchestrator.Options{
		MaxRetries:  cfg.Retries(),
		Concurrency: cfg.Scrape.Concurrency,
	})

	// Init analysis lock
	locker := lock.Chain{lock.NewLocalLocker()}
	if cfg.Redis.Address != "" {
		rdb, err := lock.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, analysis lock is process-local")
		} else {
			defer rdb.Close()
			locker = append(locker, lock.NewRedisLocker(rdb, lock.DefaultTTL, logger))
			logger.WithField("addr", cfg.Redis.Address).Info("redis analysis lock enabled")
		}
	}
	analyzer := analysis.NewAnalyzer(st, locker, logger, analysis.Options{
		MinLocationListings: cfg.Analysis.MinLocationListings,
		TopDeals:            cfg.Analysis.TopDeals,
	})

	// Init Telegram notifier
	var notify notifier.Notifier = notifier.Noop{}
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
		notify = tn
	} else {
		logger.Warn("telegram not configured, notifications disabled")
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, orch, analyzer, notify, scheduler.Jobs{
		ScrapeCron:    cfg.Scrape.Cron,
		AnalysisCron:  cfg.Analysis.Cron,
		Sources:       cfg.EnabledSources(),
		MaxPages:      cfg.Scrape.MaxPages,
		LookbackDays:  cfg.Analysis.LookbackDays,
		DealThreshold: cfg.Analysis.DealThreshold,
	}, logger)
	if err := sched.RegisterAll(); err != nil {
		logger.WithError(err).Fatal("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		logger.Info("telegram polling started")
	}

	// Start control API
	if cfg.API.Listen != "" {
		srv := api.NewServer(orch, analyzer, st, api.Defaults{
			MaxPages:      cfg.Scrape.MaxPages,
			LookbackDays:  cfg.Analysis.LookbackDays,
			DealThreshold: cfg.Analysis.DealThreshold,
		}, logger)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.API.Listen); err != nil {
				logger.WithError(err).Error("api server stopped")
			}
		}()
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		logger.Info("RUN_ON_START enabled, executing scrape and analysis now")
		go sched.RunNow()
	}

	logger.Info("EstateSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	logger.Info("shutdown signal received, stopping...")
}

func sourceSettings(cfg *config.Config, name string) collector.Settings {
	sc := cfg.Sources[name]
	return collector.Settings{
		BaseURL:  sc.BaseURL,
		APIURL:   sc.APIURL,
		Category: sc.Category,
		PageSize: sc.PageSize,
		DelayMin: seconds(sc.DelayMin),
		DelayMax: seconds(sc.DelayMax),
		Timeout:  cfg.ScrapeTimeout(),
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
