package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/petcare-user/internal/auth"
	"github.com/utafrali/petcare-user/internal/config"
	"github.com/utafrali/petcare-user/internal/event"
	handler "github.com/utafrali/petcare-user/internal/handler/http"
	"github.com/utafrali/petcare-user/internal/mailer"
	"github.com/utafrali/petcare-user/internal/matching"
	"github.com/utafrali/petcare-user/internal/ratelimit"
	"github.com/utafrali/petcare-user/internal/repository/postgres"
	"github.com/utafrali/petcare-user/internal/scheduler"
	"github.com/utafrali/petcare-user/internal/service"
	"github.com/utafrali/petcare-user/migrations"
	"github.com/utafrali/petcare-user/pkg/database"
	"github.com/utafrali/petcare-user/pkg/health"
	"github.com/utafrali/petcare-user/pkg/httpclient"
	pkgkafka "github.com/utafrali/petcare-user/pkg/kafka"
	"github.com/utafrali/petcare-user/pkg/middleware"
	"github.com/utafrali/petcare-user/pkg/tracing"
)

const (
	serviceName    = "user"
	serviceVersion = "0.1.0"
)

// App wires together all dependencies and runs the user service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	mailQueue      *mailer.Queue
	sweeper        *scheduler.SweepScheduler
	authLimiter    *middleware.IPLimiter
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.closeInfra()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(serviceName, serviceVersion))
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, serviceName)

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThreshold)*time.Millisecond, logger)
	}

	// Repositories and role seeding.
	userRepo := postgres.NewUserRepository(pool)
	roleRepo := postgres.NewRoleRepository(pool)
	tokenRepo := postgres.NewTokenRepository(pool)
	petRepo := postgres.NewPetRepository(pool)

	if err := service.NewRoleSeeder(roleRepo, logger).Seed(ctx); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	// Event publishing. Without brokers events are dropped.
	var publisher event.Publisher = event.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("KAFKA_BROKERS not set, account events will not be published")
	}
	events := event.NewProducer(publisher, logger)

	// Login throttle. Without Redis failed logins are not counted.
	var throttle service.LoginThrottle
	if cfg.RedisHost != "" {
		client, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		throttle = ratelimit.NewLoginThrottle(ratelimit.NewRedisCounter(client), cfg.LoginMaxAttempts, cfg.LoginWindow, logger)
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	} else {
		logger.Warn("REDIS_HOST not set, login throttling disabled")
	}

	// Outgoing mail.
	var sender mailer.Sender
	if cfg.SMTPHost != "" {
		smtp, err := mailer.NewSMTPSender(cfg.SMTP())
		if err != nil {
			return fmt.Errorf("create smtp sender: %w", err)
		}
		sender = smtp
	} else {
		logger.Warn("SMTP_HOST not set, emails will only be logged")
		sender = mailer.NewLogSender(logger)
	}
	templates, err := mailer.NewTemplates()
	if err != nil {
		return fmt.Errorf("parse email templates: %w", err)
	}
	queueCfg := mailer.DefaultQueueConfig()
	queueCfg.Size = cfg.MailQueueSize
	queueCfg.Workers = cfg.MailWorkers
	a.mailQueue = mailer.NewQueue(sender, queueCfg, logger)
	a.mailQueue.Start()
	notifier := mailer.New(a.mailQueue, templates, mailer.Config{
		ActivationURL: cfg.FrontendActivationURL,
		ResetURL:      cfg.FrontendResetURL,
		ActivationTTL: cfg.ActivationTTL,
		ResetTTL:      cfg.ResetTTL,
	})

	// Credentials and sessions.
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	verifier, err := auth.NewCredentialVerifier(userRepo, hasher)
	if err != nil {
		return fmt.Errorf("create credential verifier: %w", err)
	}
	codec, err := auth.NewJWTCodec(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return fmt.Errorf("create jwt codec: %w", err)
	}

	authService := service.NewAuthService(service.AuthDeps{
		Users:    userRepo,
		Roles:    roleRepo,
		Tokens:   tokenRepo,
		Tx:       postgres.NewTransactor(pool),
		Verifier: verifier,
		Hasher:   hasher,
		Codec:    codec,
		Notifier: notifier,
		Events:   events,
		Throttle: throttle,
	}, service.AuthConfig{
		ActivationTTL: cfg.ActivationTTL,
		ResetTTL:      cfg.ResetTTL,
		AdminEmail:    cfg.AdminEmail,
	}, logger)
	sessions := service.NewSessionValidator(tokenRepo, userRepo, codec, logger)
	profiles := service.NewProfileService(userRepo, roleRepo, events, logger)

	// Pet matching through the circuit breaker.
	var matchingService handler.MatchingService
	if cfg.MatchingServiceURL != "" {
		httpCfg := httpclient.DefaultConfig()
		httpCfg.Timeout = cfg.MatchingTimeout
		breaker := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpCfg),
			httpclient.DefaultCircuitBreakerConfig("matching"),
			logger,
		)
		client := matching.NewClient(breaker, cfg.MatchingServiceURL, logger)
		matchingService = service.NewMatchingService(userRepo, petRepo, client, cfg.MatchingTopN, logger)
	} else {
		logger.Warn("MATCHING_SERVICE_URL not set, pet matching disabled")
	}

	// Nightly token sweep.
	a.sweeper, err = scheduler.NewSweepScheduler(cfg.SweepCron, cfg.SweepLocation(), authService, logger)
	if err != nil {
		return fmt.Errorf("create sweep scheduler: %w", err)
	}

	// HTTP router.
	a.authLimiter = middleware.NewIPLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst, 10*time.Minute)
	router := handler.NewRouter(handler.RouterDeps{
		Auth:     authService,
		Profiles: profiles,
		Matching: matchingService,
		Sessions: sessions,
		Health:   healthHandler,
	}, handler.RouterConfig{
		CORS:        middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins...),
		PprofCIDRs:  cfg.PprofAllowedCIDRs,
		AuthLimiter: a.authLimiter,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Run starts the HTTP server and the sweep schedule, and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	defer stopLimiter()
	go a.authLimiter.Run(limiterCtx)

	a.sweeper.Start()

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Sweep schedule (wait for a running sweep)
// 3. Mail queue (deliver what is already queued)
// 4. Tracer, Kafka, Redis and PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Stop the sweep schedule.
	cronCtx, cronCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cronCancel()
	if err := a.sweeper.Stop(cronCtx); err != nil {
		a.logger.Error("sweep scheduler stop error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	errs = append(errs, a.closeInfra())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeInfra releases everything NewApp may have opened. It tolerates a
// partially initialized App.
func (a *App) closeInfra() error {
	var errs []error

	if a.mailQueue != nil {
		mailCtx, mailCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer mailCancel()
		if err := a.mailQueue.Close(mailCtx); err != nil {
			a.logger.Error("mail queue close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}
