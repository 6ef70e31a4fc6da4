// Package bootstrap resolves configuration and assembles the runtime
// for the API and worker processes.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/aipropiq/provisioning-service/internal/adapters/cache"
	eventadapter "github.com/aipropiq/provisioning-service/internal/adapters/events"
	httpadapter "github.com/aipropiq/provisioning-service/internal/adapters/http"
	"github.com/aipropiq/provisioning-service/internal/adapters/postgres"
	"github.com/aipropiq/provisioning-service/internal/adapters/security"
	"github.com/aipropiq/provisioning-service/internal/adapters/supabase"
	"github.com/aipropiq/provisioning-service/internal/adapters/woocommerce"
	"github.com/aipropiq/provisioning-service/internal/adapters/wordpress"
	"github.com/aipropiq/provisioning-service/internal/application"
	"github.com/aipropiq/provisioning-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("bootstrapping provisioning service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	repos := postgres.NewRepositories(pool)

	tokenVerifier, err := security.NewServiceTokenVerifier(cfg.ServiceTokenSecret)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init service token verifier: %w", err)
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	storeClient := woocommerce.NewClient(woocommerce.Config{
		BaseURL:        cfg.StoreBaseURL,
		ConsumerKey:    cfg.StoreConsumerKey,
		ConsumerSecret: cfg.StoreConsumerSecret,
	}, httpClient, logger)
	identityClient := supabase.NewClient(supabase.Config{
		BaseURL:    cfg.IdentityBaseURL,
		ServiceKey: cfg.IdentityServiceKey,
	}, httpClient, logger)

	var profileStore ports.ProfileStore
	if cfg.ProfileBaseURL != "" {
		profileStore = wordpress.NewClient(wordpress.Config{
			BaseURL:  cfg.ProfileBaseURL,
			Username: cfg.ProfileUsername,
			Password: cfg.ProfilePassword,
		}, httpClient, logger)
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			Policy:                     cfg.AccessPolicy(),
			FallbackRateLimitThreshold: cfg.FallbackRateLimitThreshold,
			FallbackRateLimitWindow:    cfg.FallbackRateLimitWindow,
		},
		Logger:     logger,
		Store:      storeClient,
		Identity:   identityClient,
		Profiles:   profileStore,
		Attempts:   repos.Attempts,
		RateLimits: cacheadapter.NewRedisRateLimitStore(redisClient),
		Hasher:     security.NewBcryptHasher(cfg.BcryptCost),
	})

	handler := httpadapter.NewHandler(svc, tokenVerifier, security.NewWebhookSignatureVerifier(cfg.WebhookSecret))
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	var publisher ports.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			application.EventAccessProvisioned: "provisioning.access",
			application.EventAccessDenied:      "provisioning.access",
		})
		if pubErr != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init kafka publisher: %w", pubErr)
		}
		publisher = kafkaPublisher
	} else {
		logger.Warn("no kafka brokers configured; events are logged only")
		publisher = eventadapter.NewLoggingPublisher(logger)
	}

	outbox := eventadapter.NewOutboxWorker(
		logger,
		repos.Outbox,
		publisher,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.OutboxClaimTTL,
		cfg.OutboxMaxRetries,
	)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		cleanupFn: func(ctx context.Context) {
			if closer, ok := publisher.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("outbox worker started")
	err := r.outbox.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
