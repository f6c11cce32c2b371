package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/utafrali/petcare-user/internal/auth"
	"github.com/utafrali/petcare-user/internal/mailer"
	"github.com/utafrali/petcare-user/internal/scheduler"
	pkgconfig "github.com/utafrali/petcare-user/pkg/config"
	"github.com/utafrali/petcare-user/pkg/database"
	"github.com/utafrali/petcare-user/pkg/tracing"
)

// Config holds all configuration for the user service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8081"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// PostgreSQL
	PostgresHost       string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort       int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser       string        `env:"POSTGRES_USER" envDefault:"petcare"`
	PostgresPass       string        `env:"POSTGRES_PASSWORD" envDefault:"petcare_secret"`
	PostgresDB         string        `env:"POSTGRES_DB" envDefault:"petcare_user"`
	PostgresSSL        string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns         int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime  time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime  time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	SlowQueryThreshold int           `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Kafka. No brokers disables event publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Redis. An empty host disables the login throttle.
	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Tokens
	JWTSecret     string        `env:"JWT_SECRET"`
	JWTTTL        time.Duration `env:"JWT_TTL" envDefault:"24h"`
	ActivationTTL time.Duration `env:"ACTIVATION_TTL" envDefault:"15m"`
	ResetTTL      time.Duration `env:"RESET_TTL" envDefault:"1h"`
	BcryptCost    int           `env:"BCRYPT_COST" envDefault:"12"`

	// Email
	AdminEmail            string        `env:"ADMIN_EMAIL"`
	FrontendActivationURL string        `env:"FRONTEND_ACTIVATION_URL" envDefault:"http://localhost:4200/activate-account"`
	FrontendResetURL      string        `env:"FRONTEND_RESET_URL" envDefault:"http://localhost:4200/reset-password"`
	SMTPHost              string        `env:"SMTP_HOST"`
	SMTPPort              int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername          string        `env:"SMTP_USERNAME"`
	SMTPPassword          string        `env:"SMTP_PASSWORD"`
	SMTPTLSPolicy         string        `env:"SMTP_TLS_POLICY" envDefault:"mandatory"`
	SMTPTimeout           time.Duration `env:"SMTP_TIMEOUT" envDefault:"15s"`
	MailFrom              string        `env:"MAIL_FROM" envDefault:"no-reply@petcare.local"`
	MailWorkers           int           `env:"MAIL_WORKERS" envDefault:"2"`
	MailQueueSize         int           `env:"MAIL_QUEUE_SIZE" envDefault:"100"`

	// Token sweep
	SweepCron     string `env:"SWEEP_CRON" envDefault:"0 3 * * *"`
	SweepTimezone string `env:"SWEEP_TIMEZONE" envDefault:"UTC"`

	// Matching. An empty URL disables POST /api/match.
	MatchingServiceURL string        `env:"MATCHING_SERVICE_URL"`
	MatchingTopN       int           `env:"MATCHING_TOP_N" envDefault:"3"`
	MatchingTimeout    time.Duration `env:"MATCHING_TIMEOUT" envDefault:"10s"`

	// Rate limiting
	LoginMaxAttempts   int           `env:"LOGIN_RATE_LIMIT_MAX_ATTEMPTS" envDefault:"5"`
	LoginWindow        time.Duration `env:"LOGIN_RATE_LIMIT_WINDOW" envDefault:"15m"`
	AuthRateLimitRPS   float64       `env:"AUTH_RATE_LIMIT_RPS" envDefault:"5"`
	AuthRateLimitBurst int           `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`

	// Tracing
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS and profiling
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:4200" envSeparator:","`
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
}

// Load reads configuration from a local .env file, if any, and the
// environment, then validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadWithDotenv(cfg); err != nil {
		return nil, fmt.Errorf("load user config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	// The secret is required in every environment, including development.
	if _, err := auth.NewJWTCodec(c.JWTSecret, c.JWTTTL); err != nil {
		return fmt.Errorf("JWT_SECRET/JWT_TTL: %w", err)
	}
	if c.ActivationTTL <= 0 || c.ResetTTL <= 0 {
		return fmt.Errorf("ACTIVATION_TTL and RESET_TTL must be positive")
	}

	if c.MailWorkers < 1 {
		return fmt.Errorf("MAIL_WORKERS must be at least 1, got %d", c.MailWorkers)
	}
	if c.MailQueueSize < 1 {
		return fmt.Errorf("MAIL_QUEUE_SIZE must be at least 1, got %d", c.MailQueueSize)
	}
	if c.SMTPHost == "" && !c.IsDevelopment() {
		return fmt.Errorf("SMTP_HOST must be set in %q mode", c.Environment)
	}
	if _, err := url.ParseRequestURI(c.FrontendResetURL); err != nil {
		return fmt.Errorf("invalid FRONTEND_RESET_URL: %w", err)
	}

	if err := scheduler.ParseSpec(c.SweepCron); err != nil {
		return fmt.Errorf("SWEEP_CRON: %w", err)
	}
	if _, err := time.LoadLocation(c.SweepTimezone); err != nil {
		return fmt.Errorf("SWEEP_TIMEZONE: %w", err)
	}

	if c.MatchingServiceURL != "" {
		if _, err := url.ParseRequestURI(c.MatchingServiceURL); err != nil {
			return fmt.Errorf("invalid MATCHING_SERVICE_URL: %w", err)
		}
	}
	if c.LoginMaxAttempts < 1 || c.LoginWindow <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT_MAX_ATTEMPTS and LOGIN_RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Postgres returns the connection pool settings.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: c.DBMaxConnLifetime,
		MaxConnIdleTime: c.DBMaxConnIdleTime,
	}
}

// Redis returns the Redis client settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// SMTP returns the SMTP transport settings.
func (c *Config) SMTP() mailer.SMTPConfig {
	return mailer.SMTPConfig{
		Host:      c.SMTPHost,
		Port:      c.SMTPPort,
		Username:  c.SMTPUsername,
		Password:  c.SMTPPassword,
		From:      c.MailFrom,
		TLSPolicy: c.SMTPTLSPolicy,
		Timeout:   c.SMTPTimeout,
	}
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing(serviceName, version string) tracing.Config {
	return tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTelEndpoint,
		SampleRate:     c.OTelSampleRate,
		Enabled:        c.OTelEnabled,
	}
}

// SweepLocation returns the time zone the sweep schedule runs in.
func (c *Config) SweepLocation() *time.Location {
	loc, err := time.LoadLocation(c.SweepTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
