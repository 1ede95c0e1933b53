package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/application"
	"github.com/Rdemo143/RenTO/internal/blob"
	"github.com/Rdemo143/RenTO/internal/cache"
	"github.com/Rdemo143/RenTO/internal/catalog"
	"github.com/Rdemo143/RenTO/internal/config"
	"github.com/Rdemo143/RenTO/internal/handlers"
	"github.com/Rdemo143/RenTO/internal/identity"
	"github.com/Rdemo143/RenTO/internal/kafka"
	"github.com/Rdemo143/RenTO/internal/observability"
	"github.com/Rdemo143/RenTO/internal/outbox"
	"github.com/Rdemo143/RenTO/internal/presence"
	"github.com/Rdemo143/RenTO/internal/realtime"
	"github.com/Rdemo143/RenTO/internal/repository/postgres"
	"github.com/Rdemo143/RenTO/internal/router"
	grpcserver "github.com/Rdemo143/RenTO/internal/transport/grpc"
	"github.com/Rdemo143/RenTO/internal/tx"
)

func main() {
	cfg := config.Load()

	// Observability
	observability.InitLogger(cfg.ServiceName)
	log := observability.Log
	defer log.Sync()

	if cfg.TracingEnabled {
		tp, err := observability.InitTracer(cfg.ServiceName, cfg.JaegerURL)
		if err != nil {
			log.Fatal("failed to initialize tracer", zap.Error(err))
		}
		defer tp.Shutdown(context.Background())
	}

	ctx, cancel := setupSignalHandler(log)
	defer cancel()

	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	db := initDB(ctx, cfg, log)
	defer db.Close()

	// Redis is optional: without it the server runs as a single instance
	// with no cache and no presence.
	var redisCache *cache.Cache
	if cfg.RedisAddr != "" {
		redisCache = cache.New(cfg.RedisAddr, cfg.RedisPassword)
		redisCache.ConversationTTL = cfg.ConversationTTL
		redisCache.UserTTL = cfg.UserCacheTTL
		if err := redisCache.PingContext(ctx); err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisCache.Client.Close()
	}

	repo := &postgres.Repository{DB: db, Cache: redisCache}
	if cfg.AutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			log.Fatal("failed to apply schema", zap.Error(err))
		}
	}
	txm := &tx.Manager{DB: db}

	verifier := identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	directory := &identity.Directory{DB: db, Cache: redisCache}
	properties := catalog.New(cfg.CatalogURL, catalog.Options{Timeout: cfg.CatalogTimeout}, log)

	// Realtime
	hub := realtime.NewHub(realtime.HubOptions{
		LegacyEvents: cfg.RealtimeLegacyEvents,
		SignalOnly:   cfg.RealtimeSignalOnly,
	})
	var bus realtime.Bus
	var tracker realtime.PresenceTracker
	if redisCache != nil {
		bus = realtime.NewRedisBus(redisCache.Client)
		tracker = presence.New(redisCache.Client, instanceID)
	} else {
		log.Warn("REDIS_ADDR not set, realtime fan-out is limited to this instance")
		bus = realtime.NewLocalBus()
	}
	bus.Subscribe(ctx, hub.Deliver)
	publisher := realtime.NewPublisher(bus)

	svc := application.New(repo, txm, directory, properties, publisher, log)

	wsHandler := realtime.NewHandler(hub, verifier, svc, tracker, publisher, realtime.HandlerConfig{
		FrameRate:  cfg.RealtimeFrameRate,
		FrameBurst: cfg.RealtimeFrameBurst,
	})

	var store handlers.BlobStore
	if cfg.S3Bucket != "" {
		s3store, err := blob.NewS3Store(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3PublicRead, cfg.S3URLTTL)
		if err != nil {
			log.Fatal("failed to init s3", zap.Error(err))
		}
		store = s3store
	}

	mainHandler := router.NewRouter(
		router.Config{
			ServiceName:       cfg.ServiceName,
			RateLimitRequests: cfg.RateLimitRequests,
			RateLimitWindow:   cfg.RateLimitWindow,
			RequestTimeout:    cfg.RequestTimeout,
		},
		verifier,
		handlers.NewChatHandler(svc),
		handlers.NewAttachmentHandler(store, cfg.MaxUploadMB),
		wsHandler,
	)

	// Outbox relay
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers)
		defer producer.Close()

		worker := &outbox.Worker{
			DB:         db,
			Tx:         txm,
			Producer:   producer,
			Topic:      cfg.KafkaTopic,
			BatchSize:  cfg.OutboxBatchSize,
			PollDelay:  cfg.OutboxPollDelay,
			MaxRetries: cfg.OutboxMaxRetries,
			Retention:  7 * 24 * time.Hour,
		}
		go worker.Start(ctx)
	} else {
		log.Warn("KAFKA_BROKERS not set, outbox events will not be relayed")
	}

	readiness := []observability.Pinger{db}
	if redisCache != nil {
		readiness = append(readiness, redisCache)
	}

	// Servers
	mainSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: mainHandler}
	obsSrv := initObservabilityServer(cfg, readiness)
	grpcSrv := grpcserver.New(cfg.ServiceName, readiness...)
	grpcSrv.WatchReadiness(ctx, 10*time.Second)

	startServers(cfg, mainSrv, obsSrv, grpcSrv, log)

	<-ctx.Done()
	performGracefulShutdown(mainSrv, obsSrv, grpcSrv, hub, log)
}

func setupSignalHandler(log *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, initiating shutdown", zap.String("signal", sig.String()))
		cancel()
	}()
	return ctx, cancel
}

func initDB(ctx context.Context, cfg *config.Config, log *zap.Logger) *sql.DB {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	return db
}

func initObservabilityServer(cfg *config.Config, deps []observability.Pinger) *http.Server {
	mux := chi.NewRouter()
	mux.Use(observability.MetricsMiddleware(cfg.ServiceName))
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Get("/health/live", observability.HealthLiveHandler)
	mux.Get("/health/ready", observability.HealthReadyHandler(deps...))
	return &http.Server{Addr: cfg.ObsHTTPAddr, Handler: mux}
}

func startServers(cfg *config.Config, mainSrv, obsSrv *http.Server, grpcSrv *grpcserver.Server, log *zap.Logger) {
	go func() {
		log.Info("starting observability server", zap.String("addr", cfg.ObsHTTPAddr))
		if err := obsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("observability server error", zap.Error(err))
		}
	}()
	go func() {
		log.Info("starting main server", zap.String("addr", cfg.HTTPAddr))
		if err := mainSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()
	go grpcSrv.Start(cfg.GRPCAddr)
}

func performGracefulShutdown(mainSrv, obsSrv *http.Server, grpcSrv *grpcserver.Server, hub *realtime.Hub, log *zap.Logger) {
	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	hub.CloseAll()
	if err := mainSrv.Shutdown(ctx); err != nil {
		log.Error("error during main server shutdown", zap.Error(err))
	}
	if err := obsSrv.Shutdown(ctx); err != nil {
		log.Error("error during observability server shutdown", zap.Error(err))
	}
	grpcSrv.Stop()
	log.Info("shutdown complete, exiting")
}
