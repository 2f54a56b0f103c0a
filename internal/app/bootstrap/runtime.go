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

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/viralforge/roadworks/internal/adapters/cache"
	eventadapter "github.com/viralforge/roadworks/internal/adapters/events"
	grpcadapter "github.com/viralforge/roadworks/internal/adapters/grpc"
	httpadapter "github.com/viralforge/roadworks/internal/adapters/http"
	"github.com/viralforge/roadworks/internal/adapters/mirror"
	"github.com/viralforge/roadworks/internal/adapters/postgres"
	"github.com/viralforge/roadworks/internal/adapters/security"
	"github.com/viralforge/roadworks/internal/application"
	"github.com/viralforge/roadworks/internal/ports"
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

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("service", cfg.ServiceID)
	slog.SetDefault(logger)
	logger.Info("bootstrapping roadworks service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	closers := []func(){func() { _ = sqlDB.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		closeAll()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	repos := postgres.NewRepositories(pool)

	// Redis only backs rate limiting and the revocation fast path; both fail open without it.
	var (
		redisClient *redis.Client
		rateLimiter ports.RateLimiter
		revocations ports.SessionRevocationStore
	)
	if cfg.RedisURL != "" {
		redisClient, err = cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		rateLimiter = cacheadapter.NewRedisRateLimiter(redisClient)
		revocations = cacheadapter.NewRedisSessionRevocationStore(redisClient)
	} else {
		logger.Warn("REDIS_URL not set, register rate limiting disabled")
	}

	tokenSigner, err := security.NewJWTSigner(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		if !cfg.AllowEphemeralJWT {
			closeAll()
			return nil, fmt.Errorf("init jwt signer: %w", err)
		}
		logger.Warn("using ephemeral JWT secret for local/dev runtime")
		tokenSigner, err = security.NewEphemeralJWTSigner(cfg.JWTIssuer)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init ephemeral jwt signer: %w", err)
		}
	}

	creds := mirror.Credentials{
		ProjectID:   cfg.FirebaseProjectID,
		ClientEmail: cfg.FirebaseClientEmail,
		PrivateKey:  cfg.FirebasePrivateKey,
	}
	var (
		mirrorClients *mirror.Clients
		identities    ports.MirrorIdentityProvider
	)
	if creds.Configured() {
		mirrorClients, err = mirror.Connect(ctx, creds)
		if err != nil {
			logger.Warn("firebase init failed, mirror disabled", "error", err)
			mirrorClients = nil
		}
	} else {
		logger.Warn("firebase credentials not set, mirror disabled")
	}

	gate := application.NewAvailabilityGate(mirrorClients != nil, mirror.NewHTTPProbe(cfg.MirrorProbeURL, cfg.MirrorProbeTimeout))
	var reconciler *application.Reconciler
	if mirrorClients != nil {
		closers = append(closers, func() { _ = mirrorClients.Close() })
		identities = mirror.NewFirebaseIdentityProvider(mirrorClients.Auth)
		reconciler = application.NewReconciler(
			gate,
			mirror.NewFirestoreStore(mirrorClients.Firestore),
			repos.Accounts,
			repos.Signalements,
			nil,
		)
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			RegisterRateLimitIPThreshold:         cfg.RegisterRateLimitIPThreshold,
			RegisterRateLimitIdentifierThreshold: cfg.RegisterRateLimitIdentifierThreshold,
			RegisterRateLimitWindow:              cfg.RegisterRateLimitWindow,
		},
		Accounts:     repos.Accounts,
		Sessions:     repos.Sessions,
		Params:       repos.Params,
		Signalements: repos.Signalements,
		Entreprises:  repos.Entreprises,
		RateLimiter:  rateLimiter,
		Revocations:  revocations,
		Identities:   identities,
		Hasher:       security.NewBcryptHasher(cfg.BcryptCost),
		TokenSigner:  tokenSigner,
		Gate:         gate,
		Sync:         reconciler,
	})

	handler := httpadapter.NewHandler(svc, httpadapter.HandlerOptions{
		Debug: cfg.Debug,
		Readiness: func(ctx context.Context) error {
			if err := sqlDB.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			if redisClient != nil {
				if err := redisClient.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis: %w", err)
				}
			}
			return nil
		},
	})
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
	grpcadapter.Register(grpcServer, grpcadapter.NewAuthInternalServer(svc))

	var publisher ports.EventPublisher = eventadapter.NewLoggingPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, kafkaErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, eventadapter.DefaultTopics)
		if kafkaErr != nil {
			closeAll()
			return nil, fmt.Errorf("init kafka publisher: %w", kafkaErr)
		}
		closers = append(closers, func() { _ = kafkaPublisher.Close() })
		publisher = kafkaPublisher
	}
	outbox := eventadapter.NewOutboxWorker(logger, repos.Outbox, publisher, eventadapter.OutboxWorkerConfig{
		Interval:   cfg.OutboxPollInterval,
		BatchSize:  cfg.OutboxBatchSize,
		ClaimTTL:   cfg.OutboxClaimTTL,
		MaxRetries: cfg.OutboxMaxRetries,
	})

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		outbox:     outbox,
		cleanupFn: func(context.Context) {
			closeAll()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanupFn(ctx)
		return fmt.Errorf("listen gRPC: %w", err)
	}
	r.grpcLis = lis

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

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return runErr
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("outbox worker started")
	err := r.outbox.Run(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
