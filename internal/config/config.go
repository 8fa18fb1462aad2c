package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the relay.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Telegram TelegramConfig
	Sweeper  SweeperConfig
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
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	ConnectTimeout int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr              string
	Password          string
	DB                int
	PoolSize          int
	DialTimeoutSec    int
	SessionTTLMinutes int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is "json" or "console".
	Format  string
	Service string
	Env     string
}

// AuthConfig defines admin API token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// TelegramConfig configures the chat platform adapter.
type TelegramConfig struct {
	BotToken           string
	APIBaseURL         string
	PollTimeoutSeconds int
	Workers            int
	RequestTimeoutSec  int
	AdminIDs           []int64
	DeliveryAck        bool
}

// SweeperConfig configures the auto-close sweep.
type SweeperConfig struct {
	InactivityMinutes   int
	CheckIntervalSecond int
	NotifyConcurrency   int
	NotifyTimeoutSecond int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	adminIDs, err := getEnvAsInt64List("ADMIN_IDS")
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_IDS: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-relay"),
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
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			ConnectTimeout: getEnvAsInt("POSTGRES_CONNECT_TIMEOUT_SECONDS", 10),
		},
		Redis: RedisConfig{
			Addr:              getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:          os.Getenv("REDIS_PASSWORD"),
			DB:                redisDB,
			PoolSize:          getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeoutSec:    getEnvAsInt("REDIS_DIAL_TIMEOUT_SECONDS", 5),
			SessionTTLMinutes: getEnvAsInt("REDIS_SESSION_TTL_MINUTES", 60),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Telegram: TelegramConfig{
			BotToken:           os.Getenv("BOT_TOKEN"),
			APIBaseURL:         getEnv("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),
			PollTimeoutSeconds: getEnvAsInt("TELEGRAM_POLL_TIMEOUT_SECONDS", 30),
			Workers:            getEnvAsInt("TELEGRAM_WORKERS", 4),
			RequestTimeoutSec:  getEnvAsInt("TELEGRAM_REQUEST_TIMEOUT_SECONDS", 10),
			AdminIDs:           adminIDs,
			DeliveryAck:        getEnvAsBool("TELEGRAM_DELIVERY_ACK", true),
		},
		Sweeper: SweeperConfig{
			InactivityMinutes:   getEnvAsInt("TICKET_AUTO_CLOSE_MINUTES", 0),
			CheckIntervalSecond: getEnvAsInt("TICKET_AUTO_CLOSE_CHECK_SECONDS", 60),
			NotifyConcurrency:   getEnvAsInt("TICKET_AUTO_CLOSE_NOTIFY_CONCURRENCY", 8),
			NotifyTimeoutSecond: getEnvAsInt("TICKET_AUTO_CLOSE_NOTIFY_TIMEOUT_SECONDS", 10),
		},
	}

	cfg.Logger.Service = cfg.App.Name
	cfg.Logger.Env = cfg.App.Env

	return cfg, nil
}

// Validate reports settings the relay cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required"))
	}
	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	return errors.Join(errs...)
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

// SessionTTL returns how long an idle dialogue context is kept.
func (r RedisConfig) SessionTTL() time.Duration {
	return time.Duration(r.SessionTTLMinutes) * time.Minute
}

// PollTimeout returns the long polling timeout.
func (t TelegramConfig) PollTimeout() time.Duration {
	return time.Duration(t.PollTimeoutSeconds) * time.Second
}

// RequestTimeout bounds a single API call. Long polling adds the poll timeout on top.
func (t TelegramConfig) RequestTimeout() time.Duration {
	return time.Duration(t.RequestTimeoutSec) * time.Second
}

// IsAdmin reports whether platformID is listed in ADMIN_IDS.
func (t TelegramConfig) IsAdmin(platformID int64) bool {
	for _, id := range t.AdminIDs {
		if id == platformID {
			return true
		}
	}
	return false
}

// Enabled reports whether the sweeper should be scheduled at all.
func (s SweeperConfig) Enabled() bool {
	return s.InactivityMinutes > 0
}

// Threshold is the inactivity age after which a ticket is closed.
func (s SweeperConfig) Threshold() time.Duration {
	return time.Duration(s.InactivityMinutes) * time.Minute
}

// Interval is the period between two sweeps.
func (s SweeperConfig) Interval() time.Duration {
	if s.CheckIntervalSecond <= 0 {
		return time.Minute
	}
	return time.Duration(s.CheckIntervalSecond) * time.Second
}

// NotifyTimeout bounds each closure notice.
func (s SweeperConfig) NotifyTimeout() time.Duration {
	return time.Duration(s.NotifyTimeoutSecond) * time.Second
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

func getEnvAsInt64List(key string) ([]int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return nil, nil
	}
	var out []int64
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", part, err)
		}
		out = append(out, id)
	}
	return out, nil
}
