package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL    time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`

	// SendBuffer is the per-connection outbound queue size; events beyond
	// it are dropped for that connection.
	SendBuffer int `mapstructure:"send_buffer" yaml:"send_buffer"`

	// SweepInterval and RetentionWindow drive the conversation retention
	// sweeper.
	SweepInterval   time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	RetentionWindow time.Duration `mapstructure:"retention_window" yaml:"retention_window"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "sickleconnect.db",
		LogLevel:          "info",
		JWTSecret:         "change-me",
		JWTIssuer:         "sickleconnect",
		JWTAudience:       "sickleconnect",
		TokenTTL:          7 * 24 * time.Hour,
		SendBuffer:        16,
		SweepInterval:     time.Hour,
		RetentionWindow:   24 * time.Hour,
	}
}
