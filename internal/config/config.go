package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Matching MatchingConfig
	Presence PresenceConfig
	Worker   WorkerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	HandoffCodeTTLSeconds int
	BcryptCost            int
}

// MatchingConfig tunes the request-matching engine.
type MatchingConfig struct {
	QuickSupportAttempts int
	AttemptInterval      time.Duration
	QuickSupportCap      int
	ChooseAgentCap       int
	QuickSupportTimeout  time.Duration
	ChooseAgentTimeout   time.Duration
}

// PresenceConfig tunes offline debouncing.
type PresenceConfig struct {
	AgentOfflineGrace time.Duration
	UserOfflineGrace  time.Duration
}

// WorkerConfig tunes the background task pool and the stale-request sweep.
type WorkerConfig struct {
	PoolSize      int
	SweepSchedule string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "live-support"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			HandoffCodeTTLSeconds: getEnvAsInt("AUTH_HANDOFF_CODE_TTL_SECONDS", 120),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Matching: MatchingConfig{
			QuickSupportAttempts: getEnvAsInt("MATCHING_QUICK_SUPPORT_ATTEMPTS", 3),
			AttemptInterval:      getEnvAsDuration("MATCHING_ATTEMPT_INTERVAL", 5*time.Second),
			QuickSupportCap:      getEnvAsInt("MATCHING_QUICK_SUPPORT_CAP", 3),
			ChooseAgentCap:       getEnvAsInt("MATCHING_CHOOSE_AGENT_CAP", 2),
			QuickSupportTimeout:  getEnvAsDuration("MATCHING_QUICK_SUPPORT_TIMEOUT", 600*time.Second),
			ChooseAgentTimeout:   getEnvAsDuration("MATCHING_CHOOSE_AGENT_TIMEOUT", 300*time.Second),
		},
		Presence: PresenceConfig{
			AgentOfflineGrace: getEnvAsDuration("PRESENCE_AGENT_OFFLINE_GRACE", 15*time.Second),
			UserOfflineGrace:  getEnvAsDuration("PRESENCE_USER_OFFLINE_GRACE", 1*time.Second),
		},
		Worker: WorkerConfig{
			PoolSize:      getEnvAsInt("WORKER_POOL_SIZE", 8),
			SweepSchedule: getEnv("WORKER_SWEEP_SCHEDULE", "@every 1m"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TimeoutFor returns the waiting deadline for the given request kind.
func (m MatchingConfig) TimeoutFor(chooseAgent bool) time.Duration {
	if chooseAgent {
		return m.ChooseAgentTimeout
	}
	return m.QuickSupportTimeout
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
