package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	NATS       NATSConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Products   ProductsConfig
	Pagination PaginationConfig
}

// ServerConfig covers the admin HTTP server (health, readiness, metrics).
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type NATSConfig struct {
	Servers []string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type KafkaConfig struct {
	Brokers     []string
	OrdersTopic string
}

// ProductsConfig covers the product-validation round trip to the products
// service over the bus.
type ProductsConfig struct {
	Subject string
	Timeout time.Duration
}

type PaginationConfig struct {
	DefaultLimit int
	MaxLimit     int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 3002),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT", 30)) * time.Second,
		},
		NATS: NATSConfig{
			Servers: getEnvList("NATS_SERVERS", "nats://localhost:4222"),
		},
		Database: DatabaseConfig{
			Host:         getEnvString("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnvString("DB_USER", "orders"),
			Password:     getEnvString("DB_PASSWORD", "orders"),
			Name:         getEnvString("DB_NAME", "orders"),
			SSLMode:      getEnvString("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME", 300)) * time.Second,
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvInt("REDIS_TTL", 300)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvList("KAFKA_BROKERS", "localhost:9092"),
			OrdersTopic: getEnvString("KAFKA_ORDERS_TOPIC", "orders.events"),
		},
		Products: ProductsConfig{
			Subject: getEnvString("PRODUCTS_SUBJECT", "validate_product"),
			Timeout: time.Duration(getEnvInt("PRODUCTS_TIMEOUT", 5)) * time.Second,
		},
		Pagination: PaginationConfig{
			DefaultLimit: getEnvInt("PAGINATION_DEFAULT_LIMIT", 10),
			MaxLimit:     getEnvInt("PAGINATION_MAX_LIMIT", 100),
		},
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvList(key, defaultValue string) []string {
	raw := getEnvString(key, defaultValue)
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
