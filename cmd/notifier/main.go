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
	"github.com/hibiken/asynq"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Rdemo143/RenTO/internal/cache"
	"github.com/Rdemo143/RenTO/internal/config"
	"github.com/Rdemo143/RenTO/internal/identity"
	"github.com/Rdemo143/RenTO/internal/kafka"
	"github.com/Rdemo143/RenTO/internal/observability"
	"github.com/Rdemo143/RenTO/internal/presence"
	"github.com/Rdemo143/RenTO/internal/push"
)

// The notifier consumes message.created events and delivers push
// notifications to recipients without a live connection.
func main() {
	cfg := config.Load()

	observability.InitLogger(cfg.ServiceName + "-notifier")
	log := observability.Log
	defer log.Sync()

	if cfg.TracingEnabled {
		tp, err := observability.InitTracer(cfg.ServiceName+"-notifier", cfg.JaegerURL)
		if err != nil {
			log.Fatal("failed to initialize tracer", zap.Error(err))
		}
		defer tp.Shutdown(context.Background())
	}

	if cfg.RedisAddr == "" || len(cfg.KafkaBrokers) == 0 {
		log.Fatal("notifier requires REDIS_ADDR and KAFKA_BROKERS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)

	redisCache := cache.New(cfg.RedisAddr, cfg.RedisPassword)
	redisCache.UserTTL = cfg.UserCacheTTL
	if err := redisCache.PingContext(ctx); err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisCache.Client.Close()

	asynqRedis := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}

	queue := push.NewTaskQueue(asynqRedis, cfg.PushQueue, cfg.PushRetries)
	defer queue.Close()

	dispatcher := push.NewDispatcher(
		presence.New(redisCache.Client, instanceID),
		&identity.Directory{DB: db, Cache: redisCache},
		queue,
	)

	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, []string{cfg.KafkaTopic}, cfg.KafkaConsumerGroup, dispatcher)
	if err != nil {
		log.Fatal("failed to create kafka consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.Start(ctx)

	gateway := push.NewFCMGateway(cfg.FCMEndpoint, cfg.FCMServerKey, log)
	workers := push.NewTaskServer(asynqRedis, cfg.PushQueue, cfg.PushWorkers, gateway)

	obsSrv := initObservabilityServer(cfg, db, redisCache, consumer)
	go func() {
		log.Info("starting observability server", zap.String("addr", cfg.ObsHTTPAddr))
		if err := obsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("observability server error", zap.Error(err))
		}
	}()

	log.Info("notifier started",
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", cfg.KafkaConsumerGroup),
		zap.String("queue", cfg.PushQueue),
	)
	if err := workers.Run(ctx); err != nil {
		log.Fatal("push workers failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := obsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("error during observability server shutdown", zap.Error(err))
	}
	log.Info("shutdown complete, exiting")
}

func initObservabilityServer(cfg *config.Config, deps ...observability.Pinger) *http.Server {
	mux := chi.NewRouter()
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Get("/health/live", observability.HealthLiveHandler)
	mux.Get("/health/ready", observability.HealthReadyHandler(deps...))
	return &http.Server{Addr: cfg.ObsHTTPAddr, Handler: mux}
}
