package config

import "time"

// ServerConfig configures the orchestrator's HTTP/metrics listeners when run
// as a long-lived service (see cmd/turnctl).
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// DatabaseConfig configures the reference session store backend.
type DatabaseConfig struct {
	// Backend selects the reference store implementation: "memory" or "postgres".
	Backend string `yaml:"backend"`

	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}
