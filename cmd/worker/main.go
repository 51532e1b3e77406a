package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"autotrade/internal/config"
	"autotrade/internal/domain/entity"
	pgRepo "autotrade/internal/infra/adapter/persistence/postgres"
	"autotrade/internal/infra/db"
	digestProv "autotrade/internal/infra/digest"
	"autotrade/internal/infra/fetcher"
	"autotrade/internal/infra/market/cryptocompare"
	"autotrade/internal/infra/notifier"
	"autotrade/internal/infra/scraper"
	workerPkg "autotrade/internal/infra/worker"
	"autotrade/internal/observability/logging"
	"autotrade/internal/repository"
	"autotrade/internal/resilience/circuitbreaker"
	collectUC "autotrade/internal/usecase/collect"
	digestUC "autotrade/internal/usecase/digest"
	"autotrade/internal/usecase/notify"
	watchUC "autotrade/internal/usecase/watch"
	"autotrade/pkg/callguard"
	pkgconfig "autotrade/pkg/config"
)

func main() {
	// .env values may include LOG_LEVEL, so load before the logger exists.
	dotenvErr := pkgconfig.LoadDotEnv()
	logger := initLogger()
	if dotenvErr != nil {
		logger.Warn("failed to load .env file", slog.Any("error", dotenvErr))
	}
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	// Shutdown context, cancelled by SIGINT/SIGTERM. Running jobs inherit
	// it so a termination request also interrupts an in-flight pass.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("collect_schedule", workerConfig.CollectSchedule),
		slog.String("watch_schedule", workerConfig.WatchSchedule),
		slog.String("digest_schedule", workerConfig.DigestSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("notify_max_concurrent", workerConfig.NotifyMaxConcurrent),
		slog.Int("health_port", workerConfig.HealthPort))

	toolkit := loadToolkit(logger)

	candleRepo := pgRepo.NewCandleRepo(database)
	sourceRepo := pgRepo.NewSourceRepo(database)
	headlineRepo := pgRepo.NewHeadlineRepo(database)

	registerMarkets(ctx, logger, candleRepo, toolkit)

	notifyService := setupNotifyService(logger, workerConfig.NotifyMaxConcurrent)

	// One call admission metrics sink shared by every outbound connection,
	// exposed on /metrics next to the default registry.
	callMetrics := callguard.NewPrometheusMetrics()
	startMetricsServer(ctx, logger, notifyService, callMetrics.Registry())

	// Start health check server. Readiness pings the database through a
	// circuit breaker so a down database fails probes fast instead of
	// stacking ping queries behind a dead connection.
	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	dbGate := circuitbreaker.NewDBCircuitBreaker(database)
	healthServer.SetDBCheck(dbGate.PingContext)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	collectService := setupCollectService(logger, candleRepo, notifyService, callMetrics)
	watchService, watchCleanup := setupWatchService(logger, sourceRepo, headlineRepo, notifyService, toolkit, callMetrics)
	defer watchCleanup()
	syncSources(ctx, logger, watchService, toolkit)
	digestService := setupDigestService(logger, headlineRepo, notifyService)

	runScheduler(ctx, logger, workerConfig, workerMetrics, healthServer, notifyService,
		collectService, watchService, digestService)
}

// initLogger initializes the structured logger and installs it as the
// process default.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the connection pool and applies the schema. The
// candle repository creates per-market price tables on demand, so only
// the watch schema is migrated here.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// loadToolkit reads the structured configuration file naming the tracked
// markets, watched sources, and alert symbols.
func loadToolkit(logger *slog.Logger) *config.Toolkit {
	path := pkgconfig.GetEnvString("TOOLKIT_CONFIG", "toolkit.yaml")
	toolkit, err := config.LoadToolkit(path)
	if err != nil {
		logger.Error("failed to load toolkit configuration",
			slog.String("path", path), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("toolkit configuration loaded",
		slog.String("path", path),
		slog.Int("markets", len(toolkit.Markets)),
		slog.Int("sources", len(toolkit.Watch.Sources)),
		slog.Int("symbols", len(toolkit.Watch.Symbols)))
	return toolkit
}

// registerMarkets ensures a price table exists for every configured
// market so the collector's discovery pass finds them all.
func registerMarkets(ctx context.Context, logger *slog.Logger, candleRepo repository.CandleRepository, toolkit *config.Toolkit) {
	markets, err := toolkit.EntityMarkets()
	if err != nil {
		logger.Error("invalid market configuration", slog.Any("error", err))
		os.Exit(1)
	}
	for _, market := range markets {
		if err := candleRepo.EnsureMarket(ctx, market); err != nil {
			logger.Error("failed to register market",
				slog.String("market", market.String()), slog.Any("error", err))
			os.Exit(1)
		}
	}
	logger.Info("markets registered", slog.Int("count", len(markets)))
}

// syncSources reconciles the stored watch list with the toolkit file. An
// empty file section keeps the seeded watch list untouched.
func syncSources(ctx context.Context, logger *slog.Logger, watchService watchUC.Service, toolkit *config.Toolkit) {
	if len(toolkit.Watch.Sources) == 0 {
		logger.Info("no sources in toolkit config, keeping the stored watch list")
		return
	}

	declared := make([]*entity.Source, 0, len(toolkit.Watch.Sources))
	for _, spec := range toolkit.Watch.Sources {
		src, err := spec.Entity()
		if err != nil {
			logger.Error("invalid source configuration",
				slog.String("source", spec.Name), slog.Any("error", err))
			os.Exit(1)
		}
		declared = append(declared, src)
	}

	if _, err := watchService.SyncSources(ctx, declared); err != nil {
		logger.Error("failed to sync watch sources", slog.Any("error", err))
		os.Exit(1)
	}
}

// setupNotifyService builds the notification fan-out from the configured
// webhook channels.
func setupNotifyService(logger *slog.Logger, maxConcurrent int) notify.Service {
	var channels []notify.Channel

	discordConfig := notifier.LoadDiscordConfigFromEnv(logger)
	if discordConfig.Enabled {
		channels = append(channels, notify.NewDiscordChannel(discordConfig))
		logger.Info("Discord channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Discord channel disabled")
	}

	slackConfig := notifier.LoadSlackConfigFromEnv(logger)
	if slackConfig.Enabled {
		channels = append(channels, notify.NewSlackChannel(slackConfig))
		logger.Info("Slack channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Slack channel disabled")
	}

	service := notify.NewService(channels, maxConcurrent)
	logger.Info("notification service initialized",
		slog.Int("channels", len(channels)),
		slog.Int("max_concurrent", maxConcurrent))
	return service
}

// setupCollectService wires the candle collector to the market data feed.
func setupCollectService(logger *slog.Logger, candleRepo repository.CandleRepository, notifyService notify.Service, callMetrics callguard.Metrics) collectUC.Service {
	clientConfig := cryptocompare.LoadConfigFromEnv()
	clientConfig.Metrics = callMetrics
	client, err := cryptocompare.New(clientConfig)
	if err != nil {
		logger.Error("failed to create market data client", slog.Any("error", err))
		os.Exit(1)
	}

	collectConfig := collectUC.Config{
		Parallelism: pkgconfig.GetEnvInt("COLLECT_PARALLELISM", 3),
		Lookback:    pkgconfig.GetEnvDuration("COLLECT_LOOKBACK", 24*time.Hour),
		Replace:     pkgconfig.GetEnvBool("COLLECT_REPLACE", false),
		Store:       "postgres",
	}
	logger.Info("collect service initialized",
		slog.Int("parallelism", collectConfig.Parallelism),
		slog.Duration("lookback", collectConfig.Lookback),
		slog.Bool("replace", collectConfig.Replace))

	return collectUC.NewService(candleRepo, &cryptocompare.Source{Client: client}, notifyService, collectConfig)
}

// setupWatchService wires the news watch with its scrapers and the
// optional full-article fetcher.
func setupWatchService(
	logger *slog.Logger,
	sourceRepo repository.SourceRepository,
	headlineRepo repository.HeadlineRepository,
	notifyService notify.Service,
	toolkit *config.Toolkit,
	callMetrics callguard.Metrics,
) (watchUC.Service, func()) {
	factory, err := scraper.NewScraperFactory(createScraperHTTPClient(), callMetrics)
	if err != nil {
		logger.Error("failed to create scraper factory", slog.Any("error", err))
		os.Exit(1)
	}

	feedScraper := factory.CreateFeedScraper()
	pageScrapers := factory.CreateScrapers()
	logger.Info("scrapers initialized", slog.Int("page_scrapers", len(pageScrapers)))

	contentConfig, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load content fetch configuration", slog.Any("error", err))
		logger.Warn("content fetching disabled due to configuration error")
		contentConfig = fetcher.DefaultConfig()
		contentConfig.Enabled = false
	}

	var contentFetcher watchUC.ContentFetcher
	if contentConfig.Enabled {
		contentFetcher = fetcher.NewReadabilityFetcher(contentConfig)
		logger.Info("content fetching enabled",
			slog.Int("threshold", contentConfig.Threshold),
			slog.Int("parallelism", contentConfig.Parallelism),
			slog.Duration("timeout", contentConfig.Timeout))
	} else {
		logger.Info("content fetching disabled")
	}

	keywords := toolkit.Watch.Keywords()
	logger.Info("watch list loaded", slog.Int("symbols", len(keywords)))

	service := watchUC.NewService(
		sourceRepo,
		headlineRepo,
		feedScraper,
		pageScrapers,
		contentFetcher,
		notifyService,
		keywords,
		watchUC.Config{
			Parallelism: contentConfig.Parallelism,
			Threshold:   contentConfig.Threshold,
		},
	)

	cleanup := func() {
		if err := factory.Connection().Close(); err != nil {
			logger.Error("failed to close news watch connection", slog.Any("error", err))
		}
	}
	return service, cleanup
}

// setupDigestService wires the daily digest renderer.
func setupDigestService(logger *slog.Logger, headlineRepo repository.HeadlineRepository, notifyService notify.Service) digestUC.Service {
	digestConfig := digestUC.Config{
		Window:       pkgconfig.GetEnvDuration("DIGEST_WINDOW", 24*time.Hour),
		MaxHeadlines: pkgconfig.GetEnvInt("DIGEST_MAX_HEADLINES", 50),
	}
	return digestUC.NewService(headlineRepo, createDigester(logger), notifyService, digestConfig)
}

// createDigester selects the digest provider from the DIGEST_TYPE
// environment variable. The default renders without an LLM so the worker
// runs without any API key.
func createDigester(logger *slog.Logger) digestUC.Digester {
	digestType := os.Getenv("DIGEST_TYPE")
	if digestType == "" {
		digestType = "noop"
	}

	switch digestType {
	case "noop":
		logger.Info("digest rendering uses the builtin formatter", slog.String("type", "noop"))
		return digestProv.NewNoOp()
	case "claude":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			logger.Error("ANTHROPIC_API_KEY is required when DIGEST_TYPE=claude")
			os.Exit(1)
		}
		providerConfig, err := digestProv.LoadProviderConfig()
		if err != nil {
			logger.Error("failed to load digest provider configuration", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("digest rendering uses the Claude API",
			slog.String("type", "claude"),
			slog.Int("character_limit", providerConfig.CharacterLimit))
		return digestProv.NewClaude(apiKey, *providerConfig)
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			logger.Error("OPENAI_API_KEY is required when DIGEST_TYPE=openai")
			os.Exit(1)
		}
		providerConfig, err := digestProv.LoadProviderConfig()
		if err != nil {
			logger.Error("failed to load digest provider configuration", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("digest rendering uses the OpenAI API",
			slog.String("type", "openai"),
			slog.Int("character_limit", providerConfig.CharacterLimit))
		return digestProv.NewOpenAI(apiKey, *providerConfig)
	default:
		logger.Error("Invalid DIGEST_TYPE",
			slog.String("type", digestType),
			slog.String("expected", "noop, claude or openai"))
		os.Exit(1)
		return nil
	}
}

// createScraperHTTPClient creates the HTTP client shared by the news
// scrapers, with connection pooling and TLS 1.2+ enforced.
func createScraperHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12, // Enforce TLS 1.2+
			},
		},
	}
}

// runScheduler registers the three jobs with the cron scheduler, marks
// the worker ready, and blocks until the shutdown signal. On shutdown it
// waits for running jobs, then drains the notification service.
func runScheduler(
	ctx context.Context,
	logger *slog.Logger,
	cfg *workerPkg.WorkerConfig,
	metrics *workerPkg.WorkerMetrics,
	healthServer *workerPkg.HealthServer,
	notifyService notify.Service,
	collectService collectUC.Service,
	watchService watchUC.Service,
	digestService digestUC.Service,
) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	jobs := []struct {
		name     string
		schedule string
		run      func()
	}{
		{workerPkg.JobCollect, cfg.CollectSchedule, func() { runCollectJob(ctx, logger, collectService, cfg, metrics) }},
		{workerPkg.JobWatch, cfg.WatchSchedule, func() { runWatchJob(ctx, logger, watchService, cfg, metrics) }},
		{workerPkg.JobDigest, cfg.DigestSchedule, func() { runDigestJob(ctx, logger, digestService, cfg, metrics) }},
	}
	for _, job := range jobs {
		if _, err := c.AddFunc(job.schedule, job.run); err != nil {
			logger.Error("failed to schedule job",
				slog.String("job", job.name), slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("job scheduled",
			slog.String("job", job.name), slog.String("schedule", job.schedule))
	}

	c.Start()

	// Mark as ready after cron is set up
	healthServer.SetReady(true)
	logger.Info("worker started", slog.String("timezone", cfg.Timezone))

	<-ctx.Done()
	logger.Info("shutdown signal received")
	healthServer.SetReady(false)

	select {
	case <-c.Stop().Done():
		logger.Info("running jobs finished")
	case <-time.After(30 * time.Second):
		logger.Warn("running jobs did not finish in time")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := notifyService.Shutdown(shutdownCtx); err != nil {
		logger.Error("notification service shutdown failed", slog.Any("error", err))
	}
	logger.Info("worker stopped")
}

// runCollectJob executes one candle collection pass with timeout and
// error handling.
func runCollectJob(ctx context.Context, logger *slog.Logger, svc collectUC.Service, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	metrics.RecordJobRun(workerPkg.JobCollect, "started")
	logger.Info("collect started")

	ctx, cancel := context.WithTimeout(ctx, cfg.CollectTimeout)
	defer cancel()

	stats, err := svc.CollectAll(ctx)
	if err != nil {
		logger.Error("collect failed", slog.String("error", logging.SanitizeError(err)))
		metrics.RecordJobRun(workerPkg.JobCollect, "failure")
		metrics.RecordJobDuration(workerPkg.JobCollect, time.Since(startTime).Seconds())
		return
	}

	metrics.RecordJobRun(workerPkg.JobCollect, "success")
	metrics.RecordJobDuration(workerPkg.JobCollect, time.Since(startTime).Seconds())
	metrics.RecordItemsProcessed(workerPkg.JobCollect, int(stats.Written))
	metrics.RecordLastSuccess(workerPkg.JobCollect)

	logger.Info("collect completed",
		slog.Int("markets", stats.Markets),
		slog.Int64("failed_markets", stats.Failed),
		slog.Int64("fetched", stats.Fetched),
		slog.Int64("written", stats.Written),
		slog.Duration("duration", stats.Duration))
}

// runWatchJob executes one news watch pass with timeout and error
// handling.
func runWatchJob(ctx context.Context, logger *slog.Logger, svc watchUC.Service, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	metrics.RecordJobRun(workerPkg.JobWatch, "started")
	logger.Info("watch started")

	ctx, cancel := context.WithTimeout(ctx, cfg.WatchTimeout)
	defer cancel()

	stats, err := svc.WatchAllSources(ctx)
	if err != nil {
		logger.Error("watch failed", slog.String("error", logging.SanitizeError(err)))
		metrics.RecordJobRun(workerPkg.JobWatch, "failure")
		metrics.RecordJobDuration(workerPkg.JobWatch, time.Since(startTime).Seconds())
		return
	}

	metrics.RecordJobRun(workerPkg.JobWatch, "success")
	metrics.RecordJobDuration(workerPkg.JobWatch, time.Since(startTime).Seconds())
	metrics.RecordItemsProcessed(workerPkg.JobWatch, int(stats.Inserted))
	metrics.RecordLastSuccess(workerPkg.JobWatch)

	logger.Info("watch completed",
		slog.Int("sources", stats.Sources),
		slog.Int64("items", stats.Items),
		slog.Int64("inserted", stats.Inserted),
		slog.Int64("duplicated", stats.Duplicated),
		slog.Int64("rejected", stats.Rejected),
		slog.Int64("matched", stats.Matched),
		slog.Duration("duration", stats.Duration))
}

// runDigestJob renders and publishes one digest with timeout and error
// handling. An empty headline window counts as success.
func runDigestJob(ctx context.Context, logger *slog.Logger, svc digestUC.Service, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	metrics.RecordJobRun(workerPkg.JobDigest, "started")
	logger.Info("digest started")

	ctx, cancel := context.WithTimeout(ctx, cfg.DigestTimeout)
	defer cancel()

	if err := svc.Publish(ctx); err != nil {
		logger.Error("digest failed", slog.String("error", logging.SanitizeError(err)))
		metrics.RecordJobRun(workerPkg.JobDigest, "failure")
		metrics.RecordJobDuration(workerPkg.JobDigest, time.Since(startTime).Seconds())
		return
	}

	metrics.RecordJobRun(workerPkg.JobDigest, "success")
	metrics.RecordJobDuration(workerPkg.JobDigest, time.Since(startTime).Seconds())
	metrics.RecordLastSuccess(workerPkg.JobDigest)
	logger.Info("digest completed", slog.Duration("duration", time.Since(startTime)))
}
