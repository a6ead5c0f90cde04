package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Remote    RemoteConfig
	Snapshot  SnapshotConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Observ    ObservabilityConfig
	Fulfill   FulfillConfig
	AdminList []string
}

type ServerConfig struct {
	Port string
	Env  string
}

// RemoteConfig points the client gateway at the remote commerce service.
// IdentityToken is the opaque credential for the single session this
// process serves; empty means the session is unauthenticated.
type RemoteConfig struct {
	BaseURL       string
	IdentityToken string
	Timeout       time.Duration
	ReadRetries   int
}

// SnapshotConfig configures the optional Redis-backed warm-start store for
// public query results. An empty Addr disables it.
type SnapshotConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type DatabaseConfig struct {
	URL string
}

type KafkaConfig struct {
	Brokers       []string
	TopicOrders   string
	ConsumerGroup string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

// FulfillConfig controls the devserver's pending->completed transition when
// no Kafka brokers are configured.
type FulfillConfig struct {
	Delay time.Duration
}

func Load() *Config {
	_ = godotenv.Load()

	snapshotDB, _ := strconv.Atoi(getEnv("SNAPSHOT_REDIS_DB", "0"))
	retries, _ := strconv.Atoi(getEnv("REMOTE_READ_RETRIES", "2"))

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Remote: RemoteConfig{
			BaseURL:       getEnv("REMOTE_BASE_URL", "http://localhost:9090"),
			IdentityToken: getEnv("IDENTITY_TOKEN", ""),
			Timeout:       getDuration("REMOTE_TIMEOUT", 10*time.Second),
			ReadRetries:   retries,
		},
		Snapshot: SnapshotConfig{
			Addr:     getEnv("SNAPSHOT_REDIS_ADDR", ""),
			Password: getEnv("SNAPSHOT_REDIS_PASSWORD", ""),
			DB:       snapshotDB,
			TTL:      getDuration("SNAPSHOT_TTL", 24*time.Hour),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers:       splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
			TopicOrders:   getEnv("KAFKA_TOPIC_ORDERS", "order-placed"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "storefront-fulfillment"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		},
		Fulfill: FulfillConfig{
			Delay: getDuration("FULFILL_DELAY", 5*time.Second),
		},
		AdminList: splitNonEmpty(getEnv("ADMIN_IDENTITIES", "")),
	}

	log.Printf("Config loaded: env=%s, port=%s", cfg.Server.Env, cfg.Server.Port)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
