package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm_assistant_backend/internal/assistant"
	"crm_assistant_backend/internal/cache"
	"crm_assistant_backend/internal/chatlog"
	"crm_assistant_backend/internal/consent"
	"crm_assistant_backend/internal/conversation"
	apphttp "crm_assistant_backend/internal/http"
	"crm_assistant_backend/internal/http/router"
	"crm_assistant_backend/internal/ingest"
	"crm_assistant_backend/internal/metrics"
	"crm_assistant_backend/internal/scheduler"
	"crm_assistant_backend/internal/storage"
	"crm_assistant_backend/internal/tools"
	"crm_assistant_backend/internal/webhook"
	"crm_assistant_backend/internal/whatsapp"
	"crm_assistant_backend/platform/ai/gemini"
	"crm_assistant_backend/platform/config"
	"crm_assistant_backend/platform/db"
	"crm_assistant_backend/platform/logger"
	"crm_assistant_backend/platform/retry"
	"crm_assistant_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const retentionSweepInterval = time.Hour

type stats struct {
	Datasets []cache.SlotStats `json:"datasets"`
	Sessions int               `json:"sessions"`
	Consents int               `json:"consents"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	m := metrics.New()

	pool := connectDatabase(ctx, cfg, log)
	if pool != nil {
		defer pool.Close()
	}

	var rdb *redis.Client
	if cfg.IsRedisEnabled() {
		opts, err := scheduler.RedisOptions(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
		if err != nil {
			log.Error("invalid REDIS_URL", "error", err)
			panic("invalid REDIS_URL: " + err.Error())
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
	}

	fetcher, err := storage.NewDatasetFetcher(ctx, cfg, log)
	if err != nil {
		log.Error("invalid dataset source configuration", "error", err)
		panic("invalid dataset source configuration: " + err.Error())
	}

	pipeline := ingest.New(fetcher, cfg, log)
	pipeline.SetObserver(m)
	businessCache := cache.New(pipeline, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	var consentStore consent.Store = consent.NewMemoryStore()
	var conversationLog assistant.ConversationLog
	if pool != nil {
		consentStore = consent.NewPostgresStore(pool)
		repo := chatlog.New(pool)
		conversationLog = repo
		if job := scheduler.NewChatLogRetention(repo, log, retentionSweepInterval, cfg.GetConversationRetention()); job != nil {
			go job.Run(ctx)
		}
	}

	gate := consent.NewGate(consentStore, log)
	if n, err := gate.Load(ctx); err != nil {
		log.Error("failed to load consent records", "error", err)
	} else {
		log.Info("consent records loaded", "count", n)
	}

	if empty := businessCache.Warm(ctx); len(empty) > 0 {
		log.Warn("datasets unavailable after warm-up", "datasets", empty)
	}

	toolService := tools.NewService(businessCache, cfg, log)
	registry, err := tools.NewRegistry(toolService, log)
	if err != nil {
		log.Error("failed to build tool registry", "error", err)
		panic("failed to build tool registry: " + err.Error())
	}
	registry.SetObserver(m)

	var model assistant.Model
	geminiClient, err := gemini.NewClient(ctx, cfg, assistant.SystemInstruction, registry.Tools(), log)
	if err != nil {
		log.Error("failed to initialize model client; replies will be unavailable", "error", err)
	} else if geminiClient != nil {
		model = geminiClient
	}

	var outbound assistant.Outbound = whatsapp.NewClient(cfg, log)
	if cfg.IsRedisEnabled() {
		queue, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize reply queue; sending directly", "error", err)
		} else {
			defer func() { _ = queue.Close() }()
			outbound = queue
			log.Info("replies delivered through task queue", "queue", cfg.GetAsynqQueueName())
		}
	}

	var dedup conversation.Deduper = conversation.NewWindow(cfg.GetDedupCapacity())
	if rdb != nil {
		dedup = conversation.NewRedisWindow(rdb, cfg.GetDedupTTL(), cfg.GetDedupCapacity(), log)
	}

	sessions := conversation.NewSessions()
	dispatcher := assistant.New(assistant.Deps{
		Model:       model,
		Tools:       registry,
		Gate:        gate,
		Sessions:    sessions,
		Dedup:       dedup,
		Outbound:    outbound,
		Log:         conversationLog,
		Observer:    m,
		MaxRounds:   cfg.GetMaxToolRounds(),
		SendTimeout: cfg.GetSendTimeout(),
		Logger:      log,
	})

	refresher, err := scheduler.NewDatasetRefresher(cfg.GetRefreshCron(), businessCache, log)
	if err != nil {
		log.Error("invalid dataset refresh schedule", "error", err)
		panic("invalid dataset refresh schedule: " + err.Error())
	}
	refresher.Start()
	defer refresher.Stop()

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Metrics: m.Handler(),
		Stats: func() any {
			return stats{
				Datasets: businessCache.Stats(),
				Sessions: sessions.Len(),
				Consents: gate.Count(),
			}
		},
		Modules: []apphttp.Module{
			webhook.NewModule(dispatcher, cfg.GetWhatsAppVerifyToken(), cfg.GetDefaultPhoneRegion(), validator.New(), log),
		},
	}
	if pool != nil {
		app.Health = pool
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		log.Warn("in-flight turns abandoned at shutdown", "error", err)
	}
}

// connectDatabase opens the pool and applies migrations. It returns nil when
// no DATABASE_URL is set; consent then lives in memory and turns are not logged.
func connectDatabase(ctx context.Context, cfg *config.Config, log *logger.Logger) *pgxpool.Pool {
	if !cfg.IsDatabaseEnabled() {
		log.Warn("DATABASE_URL not configured; consent kept in memory and conversation log disabled")
		return nil
	}

	var pool *pgxpool.Pool
	if err := retry.Do(ctx, log, "database connection", 5, 2*time.Second, func(ctx context.Context) error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	log.Info("database connection established")

	if err := db.RunMigrations(ctx, pool, log); err != nil {
		pool.Close()
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	return pool
}
