// cmd/orchestrator/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"query-orchestrator/internal/cache"
	"query-orchestrator/internal/classifier"
	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/common/database"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/common/observability"
	"query-orchestrator/internal/devices"
	"query-orchestrator/internal/llm"
	"query-orchestrator/internal/orchestrator"
	"query-orchestrator/internal/retrieval"
	"query-orchestrator/internal/retrieval/providers"
	"query-orchestrator/internal/router"
	"query-orchestrator/internal/server"
	"query-orchestrator/internal/validation"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting query orchestrator...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	tracer, err := observability.NewTracer(cfg.App.Name, os.Getenv("JAEGER_ENDPOINT"))
	if err != nil {
		zapLog.Fatal("tracer init failed", zap.Error(err))
	}
	defer tracer.Shutdown()

	ctx := context.Background()

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		// The cache degrades to a no-op when unreachable; keep serving.
		zapLog.Warn("redis unavailable, running without cache", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		zapLog.Info("Redis connected successfully")
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	if cfg.Providers.Events.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	if cfg.Providers.Places.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Core components ---
	var answerCache orchestrator.AnswerCache
	var classificationCache classifier.ClassificationCache
	if redisClient != nil {
		tiered := cache.New(redisClient.GetClient(), &cfg.Cache, log)
		answerCache = tiered
		classificationCache = tiered
	}

	modelClient := llm.NewHTTPClient(&cfg.Models, log)
	modelRouter := router.New(&cfg.Models, modelClient, log)
	intentClassifier := classifier.New(&cfg.Classifier, modelClient, classificationCache, log)
	validator := validation.NewPipeline(&cfg.Validation, modelClient, log)
	deviceClient := devices.NewClient(&cfg.Devices, log)

	var providerList []retrieval.Provider
	if cfg.Providers.Weather.Enabled {
		providerList = append(providerList, providers.NewWeather(&cfg.Providers.Weather, log))
	}
	if cfg.Providers.Sports.Enabled {
		providerList = append(providerList, providers.NewSports(&cfg.Providers.Sports, log))
	}
	if cfg.Providers.Airports.Enabled {
		providerList = append(providerList, providers.NewAirports(&cfg.Providers.Airports, log))
	}
	if cfg.Providers.Web.Enabled {
		providerList = append(providerList, providers.NewWeb(&cfg.Providers.Web, log))
	}
	if cfg.Providers.Places.Enabled && esClient != nil {
		providerList = append(providerList, providers.NewPlaces(esClient, cfg.Database.Elasticsearch.Index, cfg.Providers.Places.Timeout, log))
	}
	if cfg.Providers.Events.Enabled && pg != nil {
		providerList = append(providerList, providers.NewEvents(pg, cfg.Providers.Events.Timeout, log))
	}

	retriever := retrieval.NewCoordinator(&cfg.Retrieval, &cfg.Routing, providerList, log)

	engine := orchestrator.New(cfg, intentClassifier, modelRouter, retriever, validator, deviceClient, answerCache, tracer, obs, log)

	zapLog.Info("All components initialized",
		zap.Int("providers", len(providerList)),
		zap.Bool("cache", answerCache != nil),
	)

	// --- Metrics Server ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		zapLog.Info("Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			zapLog.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// --- API Server ---
	api := server.New(engine, log)
	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		zapLog.Info("API server listening", zap.String("addr", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down API server", zap.Error(err))
	}

	zapLog.Info("Query orchestrator stopped gracefully")
}
