package config

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"ms-booking/internal/logger"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Booking  BookingConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite". sqlite is for local runs only: it has no exclusion constraint.
	Driver         string
	DSN            string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	ConnectRetries int
	MigrationsDir  string
	AutoMigrate    bool
	SeedData       bool
}

type RedisConfig struct {
	Addr             string
	Password         string
	DB               int
	Enabled          bool
	LockTTL          time.Duration
	LockWait         time.Duration
	RegistryCacheTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	BookingCreated  string
	BookingUpdated  string
	BookingCanceled string
	TimezoneChanged string
}

type AuthConfig struct {
	OIDCIssuer string
	// Insecure accepts unsigned tokens. Local development only.
	Insecure bool
}

type BookingConfig struct {
	PassSecret string
}

type LogConfig struct {
	Service string
	Dir     string
	Level   string
}

// Options maps the log settings onto a logger writing to terminal
func (c LogConfig) Options(terminal io.Writer) logger.Options {
	return logger.Options{
		Service:  c.Service,
		Dir:      c.Dir,
		MinLevel: logger.ParseLevel(c.Level),
		Terminal: terminal,
	}
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8085"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Database: DatabaseConfig{
			Driver:         strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:    time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			ConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 5),
			MigrationsDir:  getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:    getEnvBool("DB_AUTO_MIGRATE", true),
			SeedData:       getEnvBool("DB_SEED_DATA", false),
		},
		Redis: RedisConfig{
			Addr:             getEnv("REDIS_ADDR", "localhost:6379"),
			Password:         os.Getenv("REDIS_PASSWORD"),
			DB:               getEnvInt("REDIS_DB", 0),
			Enabled:          getEnvBool("REDIS_ENABLED", true),
			LockTTL:          getEnvDuration("BOOKING_LOCK_TTL", 10*time.Second),
			LockWait:         getEnvDuration("BOOKING_LOCK_WAIT", 3*time.Second),
			RegistryCacheTTL: getEnvDuration("REGISTRY_CACHE_TTL", 10*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID: getEnv("KAFKA_GROUP_ID", "booking-service-group"),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				BookingCreated:  getEnv("KAFKA_TOPIC_BOOKING_CREATED", "tithi.booking.created"),
				BookingUpdated:  getEnv("KAFKA_TOPIC_BOOKING_UPDATED", "tithi.booking.updated"),
				BookingCanceled: getEnv("KAFKA_TOPIC_BOOKING_CANCELED", "tithi.booking.canceled"),
				TimezoneChanged: getEnv("KAFKA_TOPIC_TIMEZONE_CHANGED", "tithi.registry.timezone_changed"),
			},
		},
		Auth: AuthConfig{
			OIDCIssuer: os.Getenv("OIDC_ISSUER"),
			Insecure:   getEnvBool("AUTH_INSECURE", false),
		},
		Booking: BookingConfig{
			PassSecret: os.Getenv("BOOKING_PASS_SECRET"),
		},
		Log: LogConfig{
			Service: getEnv("SERVICE_NAME", "booking-service"),
			Dir:     getEnv("LOG_DIR", "logs"),
			Level:   getEnv("LOG_LEVEL", "INFO"),
		},
	}
}

// AllTopics lists every topic the service produces to or consumes from.
func (k KafkaConfig) AllTopics() []string {
	return []string{
		k.Topics.BookingCreated,
		k.Topics.BookingUpdated,
		k.Topics.BookingCanceled,
		k.Topics.TimezoneChanged,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
