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

// Store drivers supported by the ticket repositories.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Roles    RolesConfig
	Telegram TelegramConfig
	Workflow WorkflowConfig
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

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Driver string
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
}

// SQLiteConfig holds the embedded store location.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis connection values and event bus naming.
type RedisConfig struct {
	Enabled       bool
	Addr          string
	Password      string
	DB            int
	StreamPrefix  string
	ConsumerGroup string
	ConsumerName  string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator API authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	OperatorUsername      string
	OperatorPasswordHash  string
}

// RolesConfig binds approver roles to chat identities.
type RolesConfig struct {
	DeptHeadID string
	TreasuryID string
}

// TelegramConfig configures the chat transport.
type TelegramConfig struct {
	Token              string
	PollTimeoutSeconds int
}

// WorkflowConfig tunes the reconciliation poller and conversations.
type WorkflowConfig struct {
	PollSchedule           string
	PollOverlapSeconds     int
	ConversationTTLMinutes int
	TicketNumberAttempts   int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	hostname, _ := os.Hostname()

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "procurement-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "procurement.db"),
		},
		Redis: RedisConfig{
			Enabled:       getEnvAsBool("REDIS_ENABLED", true),
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			StreamPrefix:  getEnv("EVENT_STREAM_PREFIX", "procurement"),
			ConsumerGroup: getEnv("EVENT_CONSUMER_GROUP", "procurement-service"),
			ConsumerName:  getEnv("EVENT_CONSUMER_NAME", hostname),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			OperatorUsername:      getEnv("OPERATOR_USERNAME", "operator"),
			OperatorPasswordHash:  os.Getenv("OPERATOR_PASSWORD_HASH"),
		},
		Roles: RolesConfig{
			DeptHeadID: strings.TrimSpace(os.Getenv("DEPT_HEAD_ID")),
			TreasuryID: strings.TrimSpace(os.Getenv("TREASURY_ID")),
		},
		Telegram: TelegramConfig{
			Token:              os.Getenv("TELEGRAM_BOT_TOKEN"),
			PollTimeoutSeconds: getEnvAsInt("TELEGRAM_POLL_TIMEOUT_SECONDS", 30),
		},
		Workflow: WorkflowConfig{
			PollSchedule:           getEnv("RECONCILE_SCHEDULE", "@every 60s"),
			PollOverlapSeconds:     getEnvAsInt("RECONCILE_OVERLAP_SECONDS", 5),
			ConversationTTLMinutes: getEnvAsInt("CONVERSATION_TTL_MINUTES", 10),
			TicketNumberAttempts:   getEnvAsInt("TICKET_NUMBER_ATTEMPTS", 3),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the workflow cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverSQLite:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Roles.DeptHeadID == "" || c.Roles.TreasuryID == "" {
		return errors.New("DEPT_HEAD_ID and TREASURY_ID are required")
	}
	if c.Roles.DeptHeadID == c.Roles.TreasuryID {
		return errors.New("DEPT_HEAD_ID and TREASURY_ID must be different identities")
	}
	return nil
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

// PollOverlap returns how far each scan window reaches back before the
// previous scan started.
func (w WorkflowConfig) PollOverlap() time.Duration {
	if w.PollOverlapSeconds <= 0 {
		return 0
	}
	return time.Duration(w.PollOverlapSeconds) * time.Second
}

// ConversationTTL returns how long an idle dialogue stays open.
func (w WorkflowConfig) ConversationTTL() time.Duration {
	if w.ConversationTTLMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(w.ConversationTTLMinutes) * time.Minute
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
