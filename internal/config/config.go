package config

import "time"

// Backend kinds
const (
	BackendProcess  = "process"
	BackendAMQP     = "amqp"
	BackendLoopback = "loopback"
)

// Config is the process configuration
type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog"`
	Backend BackendConfig `mapstructure:"backend"`
	AMQP    AMQPConfig    `mapstructure:"amqp"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// CatalogConfig points at the catalog service
type CatalogConfig struct {
	URL          string        `mapstructure:"url"`
	ResolveLinks bool          `mapstructure:"resolve_links"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Concurrency  int           `mapstructure:"concurrency"`
}

// BackendConfig selects and launches the download backend
type BackendConfig struct {
	Kind    string   `mapstructure:"kind"`
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// AMQPConfig configures the RabbitMQ backend transport
type AMQPConfig struct {
	URL          string `mapstructure:"url"`
	Exchange     string `mapstructure:"exchange"`
	RequestQueue string `mapstructure:"request_queue"`
}

// LoggingConfig holds the zerolog settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}
