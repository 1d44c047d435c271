package kafka

import "time"

// Config holds Kafka producer configuration
type Config struct {
	Brokers  []string
	ClientID string

	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:      []string{"localhost:9092"},
		ClientID:     "production-service",
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,
		WriteTimeout: 10 * time.Second,
	}
}

// Topics contains the production Kafka topic names
var Topics = struct {
	RequestEvents string
	OrderEvents   string
	Audit         string
	Notifications string
}{
	RequestEvents: "production.requests.events",
	OrderEvents:   "production.orders.events",
	Audit:         "production.audit",
	Notifications: "production.notifications",
}
