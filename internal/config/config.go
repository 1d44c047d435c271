package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wms-platform/production-service/internal/domain"
	"github.com/wms-platform/production-service/pkg/kafka"
	"github.com/wms-platform/production-service/pkg/mongodb"
	"github.com/wms-platform/production-service/pkg/temporal"
	"github.com/wms-platform/production-service/pkg/tracing"
)

// ServiceName identifies the service in logs, metrics and traces
const ServiceName = "production-service"

// Config holds application configuration
type Config struct {
	ServerAddr      string
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	MongoDB  *mongodb.Config
	Kafka    *kafka.Config
	Temporal *temporal.Config
	Tracing  *tracing.Config

	// TemporalEnabled exposes the durable fulfillment endpoint in the API.
	TemporalEnabled bool

	// RulesFile is an optional YAML file with SKU rules and size charts.
	RulesFile string
	Rules     *domain.SKURules
	Charts    []*domain.SizeChart
}

// Load reads .env (when present) and the environment, then the rules file.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := FromEnv()
	rules, charts, err := LoadRulesFile(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	cfg.Rules = rules
	cfg.Charts = charts
	return cfg, nil
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() *Config {
	tracingCfg := tracing.DefaultConfig(ServiceName)
	tracingCfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", tracingCfg.OTLPEndpoint)
	tracingCfg.Environment = getEnv("ENVIRONMENT", tracingCfg.Environment)
	tracingCfg.Enabled = getBool("TRACING_ENABLED", false)

	mongoCfg := mongodb.DefaultConfig()
	mongoCfg.URI = getEnv("MONGODB_URI", mongoCfg.URI)
	mongoCfg.Database = getEnv("MONGODB_DATABASE", "production_db")

	kafkaCfg := kafka.DefaultConfig()
	kafkaCfg.Brokers = strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")

	temporalCfg := temporal.DefaultConfig()
	temporalCfg.HostPort = getEnv("TEMPORAL_HOST", temporalCfg.HostPort)
	temporalCfg.Namespace = getEnv("TEMPORAL_NAMESPACE", temporalCfg.Namespace)

	return &Config{
		ServerAddr:      getEnv("SERVER_ADDR", ":8080"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		CORSOrigins:     strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"), ","),
		MongoDB:         mongoCfg,
		Kafka:           kafkaCfg,
		Temporal:        temporalCfg,
		Tracing:         tracingCfg,
		TemporalEnabled: getBool("TEMPORAL_ENABLED", false),
		RulesFile:       os.Getenv("SKU_RULES_FILE"),
		Rules:           domain.DefaultSKURules(),
	}
}

// SeedSizeCharts stores the configured charts, replacing any with the same key.
func SeedSizeCharts(ctx context.Context, repo domain.SizeChartRepository, charts []*domain.SizeChart) error {
	for _, chart := range charts {
		if err := repo.Save(ctx, chart); err != nil {
			return fmt.Errorf("failed to seed size chart %s: %w", chart.Key, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return d
}
