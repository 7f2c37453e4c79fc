package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	MQTT        MQTTConfig
	Scylla      ScyllaConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	EnableTLS    bool
	CertFile     string
	KeyFile      string
}

type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	QoS       byte
	Topics    TopicsConfig
}

// TopicsConfig holds the fixed topic names the bridge works with. The admin
// topic is bidirectional: it carries inbound CARD_ADDED/CARD_REMOVED
// notifications and outbound ADD/REMOVE commands. The door topic is
// publish-only.
type TopicsConfig struct {
	AccessLog   string
	Admin       string
	Security    string
	DoorControl string
}

type ScyllaConfig struct {
	Nodes       []string
	Keyspace    string
	Username    string
	Password    string
	Timeout     time.Duration
	AutoMigrate bool
}

type RedisConfig struct {
	URL      string
	DB       int
	PoolSize int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig reads configuration from the environment, loading a .env file
// first when one is present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnvInt("PORT", 3001),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
			CertFile:     getEnv("SERVER_CERT_FILE", ""),
			KeyFile:      getEnv("SERVER_KEY_FILE", ""),
		},
		MQTT: MQTTConfig{
			BrokerURL: getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
			ClientID:  getEnv("MQTT_CLIENT_ID", "rfid-bridge"),
			Username:  getEnv("MQTT_USERNAME", ""),
			Password:  getEnv("MQTT_PASSWORD", ""),
			QoS:       byte(getEnvInt("MQTT_QOS", 1)),
			Topics: TopicsConfig{
				AccessLog:   getEnv("MQTT_TOPIC_ACCESS", "rfid/access"),
				Admin:       getEnv("MQTT_TOPIC_ADMIN", "rfid/admin"),
				Security:    getEnv("MQTT_TOPIC_SECURITY", "rfid/security"),
				DoorControl: getEnv("MQTT_TOPIC_DOOR", "rfid/door"),
			},
		},
		Scylla: ScyllaConfig{
			Nodes:       getEnvSlice("SCYLLA_NODES", []string{"localhost:9042"}),
			Keyspace:    getEnv("SCYLLA_KEYSPACE", "rfid"),
			Username:    getEnv("SCYLLA_USERNAME", ""),
			Password:    getEnv("SCYLLA_PASSWORD", ""),
			Timeout:     getEnvDuration("SCYLLA_TIMEOUT", 10*time.Second),
			AutoMigrate: getEnvBool("SCYLLA_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_AUDIT_TOPIC", "rfid.bridge.events"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("API_RATE_LIMIT_PER_MINUTE", 60),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// RedisEnabled reports whether a Redis URL was configured; without one the
// admin API runs without rate limiting.
func (c *Config) RedisEnabled() bool {
	return c.Redis.URL != ""
}

// KafkaEnabled reports whether brokers were configured; without them events
// are persisted but not mirrored onto the audit stream.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
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

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
