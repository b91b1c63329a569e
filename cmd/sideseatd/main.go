// Command sideseatd is the ingestion/query server: it accepts OTLP
// traces/metrics/logs over HTTP, persists normalized spans and metrics,
// and serves the read-side query API (spec.md §6).
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"manifold/internal/apiserver"
	"manifold/internal/authctx"
	"manifold/internal/cache"
	"manifold/internal/config"
	"manifold/internal/dialect"
	"manifold/internal/fileblob"
	"manifold/internal/metricspipeline"
	"manifold/internal/objectstore"
	"manifold/internal/observability"
	"manifold/internal/otelspan"
	"manifold/internal/pricing"
	"manifold/internal/repository"
	"manifold/internal/topic"
	"manifold/internal/tracepipeline"
	"manifold/internal/version"
)

func main() {
	tomlPath := flag.String("config", os.Getenv("SIDESEAT_CONFIG"), "path to a sideseatd TOML config file")
	showVersion := flag.Bool("version", false, "print the sideseatd version and exit")
	flag.Parse()

	if *showVersion {
		os.Stdout.WriteString("sideseatd " + version.Version + "\n")
		return
	}

	cfg, err := config.LoadSideseat(*tomlPath)
	if err != nil {
		log.Fatal().Err(err).Msg("sideseatd_config_load_failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelServiceName := ""
	if cfg.Telemetry.Enabled {
		shutdownOTel, err := observability.InitOTel(ctx, observability.TelemetryConfig{
			Enabled:        cfg.Telemetry.Enabled,
			Endpoint:       cfg.Telemetry.Endpoint,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version.Version,
			Environment:    cfg.Telemetry.Environment,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("sideseatd_telemetry_init_failed")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOTel(shutdownCtx)
		}()
		otelServiceName = cfg.Telemetry.ServiceName
	}
	observability.InitLogger(cfg.Log.Path, cfg.Log.Level, otelServiceName)

	d, err := dialect.ByName(cfg.Database.Dialect)
	if err != nil {
		log.Fatal().Err(err).Msg("sideseatd_dialect_resolve_failed")
	}
	repo, err := repository.OpenDSN(ctx, d, cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sideseatd_database_open_failed")
	}

	topicBackend, err := buildTopicBackend(cfg.Topic)
	if err != nil {
		log.Fatal().Err(err).Msg("sideseatd_topic_backend_failed")
	}
	registry := topic.NewRegistry(topicBackend)
	defer registry.Close(ctx)

	tracesTopic, err := topic.RegisterStream[tracepipeline.Batch](registry, "otlp.traces", cfg.Topic.VisibilityTimeoutSecs)
	if err != nil {
		log.Fatal().Err(err).Msg("sideseatd_traces_topic_failed")
	}
	metricsTopic, err := topic.RegisterBroadcast[metricspipeline.Batch](registry, "otlp.metrics", cfg.Topic.ChannelCapacity)
	if err != nil {
		log.Fatal().Err(err).Msg("sideseatd_metrics_topic_failed")
	}
	logsTopic, err := topic.RegisterBroadcast[[]byte](registry, "otlp.logs", cfg.Topic.ChannelCapacity)
	if err != nil {
		log.Fatal().Err(err).Msg("sideseatd_logs_topic_failed")
	}
	spansTopic, err := topic.RegisterBroadcast[otelspan.Span](registry, "spans.persisted", cfg.Topic.ChannelCapacity)
	if err != nil {
		log.Fatal().Err(err).Msg("sideseatd_spans_topic_failed")
	}

	cacheSvc, err := buildCache(cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("sideseatd_cache_failed")
	}

	store, err := buildBlobStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("sideseatd_blob_store_failed")
	}

	priceTable := pricing.New()
	syncer := pricing.NewSyncer(priceTable, cfg.Pricing.SyncURL, cfg.Pricing.PricingSyncInterval(), cfg.Pricing.Aliases)
	go syncer.Run(ctx)

	tracesSub := tracesTopic.Subscribe("sideseatd")
	tracePipeline := tracepipeline.NewPipeline(tracesSub, repo, repo, store, priceTable, spansTopic)
	go func() {
		if err := tracePipeline.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("sideseatd_trace_pipeline_exited")
		}
	}()

	metricsSub := metricsTopic.Subscribe()
	metricPipeline := metricspipeline.NewPipeline(metricsSub, repo)
	go func() {
		if err := metricPipeline.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("sideseatd_metric_pipeline_exited")
		}
	}()
	_ = logsTopic // logs are republished for downstream consumers but sideseat persists no log rows (spec.md §6 scope)

	checker := authctx.NewChecker(repo, cacheSvc, time.Duration(cfg.Auth.CacheTTLSeconds)*time.Second)
	queries := apiserver.NewQueries(repo)

	srv := &apiserver.Server{
		Queries: queries,
		Ingest: &apiserver.Ingest{
			Traces:  tracesTopic,
			Metrics: metricsTopic,
			Logs:    logsTopic,
		},
		SSE:  &apiserver.SSE{Spans: spansTopic},
		MCP:  &apiserver.MCP{Queries: queries},
		Auth: checker,
	}

	handler := http.Handler(srv.Router())
	if cfg.Telemetry.Enabled {
		handler = otelhttp.NewHandler(handler, "sideseatd")
	}
	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: handler,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Str("version", version.Version).Msg("sideseatd_listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("sideseatd_listen_failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("sideseatd_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("sideseatd_shutdown_failed")
	}
}

func buildTopicBackend(cfg config.SideseatTopicConfig) (topic.Backend, error) {
	if cfg.Backend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return topic.NewRedisBackend(client, cfg.RedisStreamGroup), nil
	}
	return topic.NewMemoryBackend(cfg.ChannelCapacity), nil
}

func buildCache(cfg config.SideseatCacheConfig) (cache.Service, error) {
	if cfg.Backend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return cache.NewRedisService(client), nil
	}
	return cache.NewMemoryService(), nil
}

func buildBlobStore(ctx context.Context, cfg config.SideseatStorageConfig) (*fileblob.Store, error) {
	switch cfg.Backend {
	case "fs":
		backend, err := objectstore.NewFSStore(cfg.FSDir)
		if err != nil {
			return nil, err
		}
		return fileblob.New(backend), nil
	case "s3":
		backend, err := objectstore.NewS3Store(ctx, objectstore.S3Config{
			Bucket:                cfg.S3Bucket,
			Prefix:                cfg.S3Prefix,
			Region:                cfg.S3Region,
			Endpoint:              cfg.S3Endpoint,
			AccessKey:             cfg.S3AccessKey,
			SecretKey:             cfg.S3SecretKey,
			UsePathStyle:          cfg.S3UsePathStyle,
			TLSInsecureSkipVerify: cfg.S3TLSInsecureSkipVerify,
			SSE: objectstore.S3SSEConfig{
				Mode:     cfg.S3SSEMode,
				KMSKeyID: cfg.S3SSEKMSKeyID,
			},
		})
		if err != nil {
			return nil, err
		}
		return fileblob.New(backend), nil
	default:
		return fileblob.New(objectstore.NewMemoryStore()), nil
	}
}
