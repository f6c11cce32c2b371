package config

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validSecret = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

// setEnvs sets multiple env vars for the duration of the test.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnvs(t, map[string]string{"JWT_SECRET": validSecret})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8081, cfg.HTTPPort)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 15*time.Minute, cfg.ActivationTTL)
	assert.Equal(t, time.Hour, cfg.ResetTTL)
	assert.Equal(t, "0 3 * * *", cfg.SweepCron)
	assert.Equal(t, 3, cfg.MatchingTopN)
	assert.Equal(t, 2, cfg.MailWorkers)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.RedisHost)
	assert.Equal(t, time.UTC, cfg.SweepLocation())
}

func TestLoad_FromEnv(t *testing.T) {
	setEnvs(t, map[string]string{
		"JWT_SECRET":           validSecret,
		"HTTP_PORT":            "9000",
		"JWT_TTL":              "2h",
		"KAFKA_BROKERS":        "k1:9092,k2:9092",
		"SMTP_HOST":            "smtp.example.com",
		"MATCHING_SERVICE_URL": "http://matcher:8000",
		"SWEEP_CRON":           "30 4 * * *",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "smtp.example.com", cfg.SMTP().Host)
	assert.Equal(t, "http://matcher:8000", cfg.MatchingServiceURL)
}

func TestLoad_SecretRequiredInEveryEnvironment(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		t.Run(env, func(t *testing.T) {
			setEnvs(t, map[string]string{"ENVIRONMENT": env, "JWT_SECRET": "", "SMTP_HOST": "smtp"})

			cfg, err := Load()
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "JWT_SECRET")
		})
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := map[string]map[string]string{
		"secret not base64":    {"JWT_SECRET": "not base64!"},
		"secret too short":     {"JWT_SECRET": base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 31)))},
		"zero jwt ttl":         {"JWT_TTL": "0s"},
		"bad port":             {"HTTP_PORT": "70000"},
		"zero mail workers":    {"MAIL_WORKERS": "0"},
		"bad cron":             {"SWEEP_CRON": "daily at three"},
		"bad timezone":         {"SWEEP_TIMEZONE": "Mars/Olympus"},
		"bad matching url":     {"MATCHING_SERVICE_URL": "not a url"},
		"no smtp in prod":      {"ENVIRONMENT": "production"},
		"zero login attempts":  {"LOGIN_RATE_LIMIT_MAX_ATTEMPTS": "0"},
		"unparseable duration": {"RESET_TTL": "an hour"},
	}

	for name, envs := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", validSecret)
			setEnvs(t, envs)

			cfg, err := Load()
			assert.Nil(t, cfg)
			assert.Error(t, err)
		})
	}
}

func TestConfig_Postgres(t *testing.T) {
	setEnvs(t, map[string]string{
		"JWT_SECRET":    validSecret,
		"POSTGRES_HOST": "db",
		"POSTGRES_DB":   "users",
		"DB_MAX_CONNS":  "7",
	})

	cfg, err := Load()
	require.NoError(t, err)

	pg := cfg.Postgres()
	assert.Equal(t, "db", pg.Host)
	assert.Equal(t, "users", pg.DBName)
	assert.Equal(t, int32(7), pg.MaxConns)
	assert.Contains(t, pg.DSN(), "db:5432/users")
}

func TestConfig_Tracing(t *testing.T) {
	setEnvs(t, map[string]string{"JWT_SECRET": validSecret, "OTEL_ENABLED": "true"})

	cfg, err := Load()
	require.NoError(t, err)

	tc := cfg.Tracing("user", "1.0.0")
	assert.True(t, tc.Enabled)
	assert.Equal(t, "user", tc.ServiceName)
	assert.Equal(t, "development", tc.Environment)
}
