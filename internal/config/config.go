// Package config holds the runtime settings of the storefront service.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file, and finally environment variables (a .env file in the working
// directory is loaded first if present).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	PolicyEscalating = "escalating"
	PolicyFixed      = "fixed"
)

var ErrInvalidConfig = errors.New("invalid config")

// DefaultJWTSecret is the development signing secret. It is only accepted
// with the in-memory backend.
const DefaultJWTSecret = "dev-secret"

type Config struct {
	HTTPPort           string        `yaml:"http_port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`
	LogLevel           string        `yaml:"log_level"`

	Storage   StorageConfig   `yaml:"storage"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Session   SessionConfig   `yaml:"session"`
}

type StorageConfig struct {
	Backend       string        `yaml:"backend"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisTTL      time.Duration `yaml:"redis_ttl"`
	MongoURI      string        `yaml:"mongo_uri"`
	MongoDB       string        `yaml:"mongo_db"`
	SQLitePath    string        `yaml:"sqlite_path"`
	Postgres      Postgres      `yaml:"postgres"`
}

type Postgres struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`
	AnalyticsTopic string   `yaml:"analytics_topic"`
	CheckoutTopic  string   `yaml:"checkout_topic"`
	GroupID        string   `yaml:"group_id"`
}

type CatalogConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	JWTSecret     string            `yaml:"jwt_secret"`
	TokenTTL      time.Duration     `yaml:"token_ttl"`
	LockoutPolicy string            `yaml:"lockout_policy"`
	AcceptAll     bool              `yaml:"accept_all"`
	DemoAccounts  map[string]string `yaml:"demo_accounts"`
}

type SessionConfig struct {
	// IdleTTL evicts cached sessions (and their rate limiters) unused for
	// that long. Zero disables eviction.
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type RateLimitConfig struct {
	AuthPerMinute int `yaml:"auth_per_minute"`
	AuthBurst     int `yaml:"auth_burst"`
}

// LoadDefaults fills c with development defaults.
func (c *Config) LoadDefaults() {
	c.HTTPPort = "8080"
	c.RequestTimeout = 30 * time.Second
	c.ShutdownTimeout = 10 * time.Second
	c.MaxRequestBodySize = 1 << 20 // 1MB
	c.LogLevel = "info"

	c.Storage = StorageConfig{
		Backend:    BackendMemory,
		RedisAddr:  "localhost:6379",
		MongoURI:   "mongodb://localhost:27017",
		MongoDB:    "storefront",
		SQLitePath: "storefront.db",
		Postgres: Postgres{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			DBName:   "storefront",
		},
	}
	c.Kafka = KafkaConfig{
		AnalyticsTopic: "storefront-analytics",
		CheckoutTopic:  "checkout-outbox",
		GroupID:        "storefront",
	}
	c.Catalog = CatalogConfig{
		BaseURL: "http://localhost:8081/api",
		Timeout: 5 * time.Second,
	}
	c.Auth = AuthConfig{
		JWTSecret:     DefaultJWTSecret,
		TokenTTL:      24 * time.Hour,
		LockoutPolicy: PolicyEscalating,
		DemoAccounts:  map[string]string{"admin@shop.local": "admin123"},
	}
	c.RateLimit = RateLimitConfig{
		AuthPerMinute: 30,
		AuthBurst:     10,
	}
	c.Session = SessionConfig{
		IdleTTL:       30 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Load builds a Config from defaults, the optional YAML file at path, and the
// environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	// a missing .env is fine
	_ = godotenv.Load()

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.RedisAddr = getEnv("REDIS_ADDR", c.Storage.RedisAddr)
	c.Storage.RedisPassword = getEnv("REDIS_PASSWORD", c.Storage.RedisPassword)
	c.Storage.MongoURI = getEnv("MONGO_URI", c.Storage.MongoURI)
	c.Storage.MongoDB = getEnv("MONGO_DB_NAME", c.Storage.MongoDB)
	c.Storage.SQLitePath = getEnv("SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.Postgres.Host = getEnv("DB_HOST", c.Storage.Postgres.Host)
	c.Storage.Postgres.User = getEnv("DB_USER", c.Storage.Postgres.User)
	c.Storage.Postgres.Password = getEnv("DB_PASSWORD", c.Storage.Postgres.Password)
	c.Storage.Postgres.DBName = getEnv("DB_NAME", c.Storage.Postgres.DBName)
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: DB_PORT: %v", ErrInvalidConfig, err)
		}
		c.Storage.Postgres.Port = port
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	c.Kafka.AnalyticsTopic = getEnv("KAFKA_ANALYTICS_TOPIC", c.Kafka.AnalyticsTopic)
	c.Kafka.CheckoutTopic = getEnv("KAFKA_CHECKOUT_TOPIC", c.Kafka.CheckoutTopic)

	c.Catalog.BaseURL = getEnv("CATALOG_BASE_URL", c.Catalog.BaseURL)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.LockoutPolicy = getEnv("LOCKOUT_POLICY", c.Auth.LockoutPolicy)
	if v := os.Getenv("AUTH_ACCEPT_ALL"); v != "" {
		c.Auth.AcceptAll = v == "true"
	}

	if v := os.Getenv("SESSION_IDLE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: SESSION_IDLE_TTL: %v", ErrInvalidConfig, err)
		}
		c.Session.IdleTTL = ttl
	}
	return nil
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis, BackendMongo, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	switch c.Auth.LockoutPolicy {
	case PolicyEscalating, PolicyFixed:
	default:
		return fmt.Errorf("%w: unknown lockout policy %q", ErrInvalidConfig, c.Auth.LockoutPolicy)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: JWT secret is required", ErrInvalidConfig)
	}
	if c.UsesDefaultSecret() && c.Storage.Backend != BackendMemory {
		return fmt.Errorf("%w: JWT_SECRET must be set for the %s backend", ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Session.IdleTTL > 0 && c.Session.SweepInterval <= 0 {
		return fmt.Errorf("%w: session sweep interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// UsesDefaultSecret reports whether tokens would be signed with the public
// development secret.
func (c *Config) UsesDefaultSecret() bool {
	return c.Auth.JWTSecret == DefaultJWTSecret
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
