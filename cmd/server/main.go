package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"kwik.app/dispatch/common/id"
	"kwik.app/dispatch/common/logger"
	"kwik.app/dispatch/common/otel"
	"kwik.app/dispatch/core/config"
	"kwik.app/dispatch/internal/http/handler"
	"kwik.app/dispatch/internal/http/middleware"
	httprouter "kwik.app/dispatch/internal/http/router"
	"kwik.app/dispatch/internal/queue"
	"kwik.app/dispatch/internal/service"
	"kwik.app/dispatch/internal/store"
	"kwik.app/dispatch/internal/triage"
	"kwik.app/dispatch/internal/worker"
)

const (
	sessionTTL       = 30 * time.Minute
	sessionPruneTick = time.Minute
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "dispatch server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	calls, closeStore, err := store.OpenCallStore(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open call store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	builder, provider, err := triage.NewBuilderFromConfig(cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to configure triage", "error", err)
		os.Exit(1)
	}
	if provider == nil {
		slog.WarnContext(ctx, "no triage extractor configured, calls will use default incident data")
	}

	producer, err := newProducer(ctx, cfg, worker.NewProcessor(builder, calls))
	if err != nil {
		slog.ErrorContext(ctx, "failed to create conversation producer", "error", err)
		os.Exit(1)
	}

	services := service.NewServices(calls, builder, producer)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, handler.NewTriageHandler(provider, triage.DefaultWeights, cfg.Triage.Timeout))
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	pruneCtx, stopPrune := context.WithCancel(ctx)
	go pruneSessions(pruneCtx, services.Conversations())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")
	stopPrune()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if err := producer.Close(); err != nil {
		slog.ErrorContext(shutdownCtx, "producer close error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// newProducer enqueues ended conversations on the Redis stream for the worker,
// or processes them in-process when no Redis URL is configured.
func newProducer(ctx context.Context, cfg config.Config, processor worker.TaskProcessor) (queue.Producer, error) {
	if !cfg.Pipeline.Enabled() {
		slog.InfoContext(ctx, "redis disabled, conversations are triaged in-process")
		return worker.NewInlineProducer(processor), nil
	}

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	return queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, slog.Default()), nil
}

func pruneSessions(ctx context.Context, conversations service.ConversationService) {
	ticker := time.NewTicker(sessionPruneTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := conversations.Prune(time.Now().Add(-sessionTTL)); n > 0 {
				slog.InfoContext(ctx, "pruned idle conversation sessions", "count", n)
			}
		}
	}
}

func setupRouter(cfg config.Config, services *service.Services, triageHandler *handler.TriageHandler) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger(cfg.Pipeline.TraceHeaderName))
	router.Use(middleware.CORS(cfg.DashboardURL))

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		Triage: triageHandler,
	})

	return router
}

const banner = `
██╗  ██╗██╗    ██╗██╗██╗  ██╗    ██████╗ ██╗███████╗██████╗  █████╗ ████████╗ ██████╗██╗  ██╗
██║ ██╔╝██║    ██║██║██║ ██╔╝    ██╔══██╗██║██╔════╝██╔══██╗██╔══██╗╚══██╔══╝██╔════╝██║  ██║
█████╔╝ ██║ █╗ ██║██║█████╔╝     ██║  ██║██║███████╗██████╔╝███████║   ██║   ██║     ███████║
██╔═██╗ ██║███╗██║██║██╔═██╗     ██║  ██║██║╚════██║██╔═══╝ ██╔══██║   ██║   ██║     ██╔══██║
██║  ██╗╚███╔███╔╝██║██║  ██╗    ██████╔╝██║███████║██║     ██║  ██║   ██║   ╚██████╗██║  ██║
╚═╝  ╚═╝ ╚══╝╚══╝ ╚═╝╚═╝  ╚═╝    ╚═════╝ ╚═╝╚══════╝╚═╝     ╚═╝  ╚═╝   ╚═╝    ╚═════╝╚═╝  ╚═╝
`
