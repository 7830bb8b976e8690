package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	LogLevel    string
	FrontendURL string
	CORSOrigins []string

	Database Database
	Gateway  Gateway
	Redis    Redis
	Broker   Broker
	Sweep    Sweep
}

type Database struct {
	URL      string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	Schema   string
}

// DSN returns DATABASE_URL when set, otherwise a URL assembled from the parts.
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", d.Username, d.Password, d.Host, d.Port, d.Name)
	if d.Schema != "" {
		dsn += "&search_path=" + d.Schema
	}
	return dsn
}

type Gateway struct {
	BaseURL     string
	TmnCode     string
	HashSecret  string
	ReturnURL   string
	Version     string
	Currency    string
	Locale      string
	AmountScale int64
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Broker struct {
	Kind             string
	KafkaBrokers     []string
	RabbitMQURL      string
	RabbitMQExchange string
}

type Sweep struct {
	Interval          time.Duration
	PendingPaymentTTL time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load env file: %w", err)
	}

	scale, err := strconv.ParseInt(getenv("GATEWAY_AMOUNT_SCALE", "100"), 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("config: GATEWAY_AMOUNT_SCALE: %w", err)
	}
	redisDB, err := strconv.Atoi(getenv("REDIS_DB", "0"))
	if err != nil {
		return Config{}, fmt.Errorf("config: REDIS_DB: %w", err)
	}
	interval, err := time.ParseDuration(getenv("SWEEP_INTERVAL", "1m"))
	if err != nil {
		return Config{}, fmt.Errorf("config: SWEEP_INTERVAL: %w", err)
	}
	ttl, err := time.ParseDuration(getenv("PENDING_PAYMENT_TTL", "30m"))
	if err != nil {
		return Config{}, fmt.Errorf("config: PENDING_PAYMENT_TTL: %w", err)
	}

	cfg := Config{
		Port:        getenv("PORT", "8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		FrontendURL: strings.TrimRight(getenv("FRONTEND_URL", "http://localhost:3000"), "/"),
		CORSOrigins: splitCSV(getenv("CORS_ORIGINS", "http://localhost:3000")),
		Database: Database{
			URL:      getenv("DATABASE_URL", ""),
			Host:     getenv("DB_HOST", "localhost"),
			Port:     getenv("DB_PORT", "5432"),
			Username: getenv("DB_USERNAME", ""),
			Password: getenv("DB_PASSWORD", ""),
			Name:     getenv("DB_DATABASE", ""),
			Schema:   getenv("DB_SCHEMA", ""),
		},
		Gateway: Gateway{
			BaseURL:     getenv("GATEWAY_BASE_URL", ""),
			TmnCode:     getenv("GATEWAY_TMN_CODE", ""),
			HashSecret:  getenv("GATEWAY_HASH_SECRET", ""),
			ReturnURL:   getenv("GATEWAY_RETURN_URL", ""),
			Version:     getenv("GATEWAY_VERSION", "2.1.0"),
			Currency:    getenv("GATEWAY_CURRENCY", "VND"),
			Locale:      getenv("GATEWAY_LOCALE", "vn"),
			AmountScale: scale,
		},
		Redis: Redis{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Broker: Broker{
			Kind:             strings.ToLower(getenv("BROKER", "none")),
			KafkaBrokers:     splitCSV(getenv("KAFKA_BROKERS", "")),
			RabbitMQURL:      getenv("RABBITMQ_URL", ""),
			RabbitMQExchange: getenv("RABBITMQ_EXCHANGE", "order.exchange"),
		},
		Sweep: Sweep{
			Interval:          interval,
			PendingPaymentTTL: ttl,
		},
	}
	return cfg, cfg.Validate()
}

// Validate reports every missing or inconsistent setting in one error.
func (c Config) Validate() error {
	var missing []string
	if c.Database.URL == "" && (c.Database.Username == "" || c.Database.Name == "") {
		missing = append(missing, "DATABASE_URL or DB_USERNAME/DB_DATABASE")
	}
	if c.Gateway.BaseURL == "" {
		missing = append(missing, "GATEWAY_BASE_URL")
	}
	if c.Gateway.TmnCode == "" {
		missing = append(missing, "GATEWAY_TMN_CODE")
	}
	if c.Gateway.HashSecret == "" {
		missing = append(missing, "GATEWAY_HASH_SECRET")
	}
	if c.Gateway.ReturnURL == "" {
		missing = append(missing, "GATEWAY_RETURN_URL")
	}
	if c.Gateway.AmountScale <= 0 {
		missing = append(missing, "GATEWAY_AMOUNT_SCALE > 0")
	}
	switch c.Broker.Kind {
	case "none", "":
	case "kafka":
		if len(c.Broker.KafkaBrokers) == 0 {
			missing = append(missing, "KAFKA_BROKERS")
		}
	case "rabbitmq":
		if c.Broker.RabbitMQURL == "" {
			missing = append(missing, "RABBITMQ_URL")
		}
	default:
		missing = append(missing, "BROKER one of kafka|rabbitmq|none")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing or invalid: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
