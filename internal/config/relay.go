package config

import "time"

// RelayConfig holds websocket relay settings.
type RelayConfig struct {
	Name             string           `mapstructure:"NAME"            json:"name"            validate:"required,min=1,max=30"`
	WSAddr           string           `mapstructure:"WS_ADDR"         json:"ws_addr"         validate:"required,wsaddr"`
	Mode             string           `mapstructure:"MODE"            json:"mode"            validate:"required,relay_mode"`
	TLSCertFile      string           `mapstructure:"TLS_CERT_FILE"   json:"tls_cert_file"   validate:"omitempty"`
	TLSKeyFile       string           `mapstructure:"TLS_KEY_FILE"    json:"tls_key_file"    validate:"omitempty"`
	AllowedOrigins   []string         `mapstructure:"ALLOWED_ORIGINS" json:"allowed_origins" validate:"omitempty,dive,url"`
	IdleTimeout      time.Duration    `mapstructure:"IDLE_TIMEOUT"    json:"idle_timeout"    validate:"required,reasonable_duration"`
	WriteTimeout     time.Duration    `mapstructure:"WRITE_TIMEOUT"   json:"write_timeout"   validate:"required,timeout_duration"`
	ThrottlingConfig ThrottlingConfig `mapstructure:"THROTTLING"      json:"throttling"      validate:"required"`
}

// ThrottlingConfig holds connection and message limits.
type ThrottlingConfig struct {
	RateLimit       RateLimitConfig `mapstructure:"RATE_LIMIT"        json:"rate_limit"`
	MaxMessageBytes int             `mapstructure:"MAX_MESSAGE_BYTES" json:"max_message_bytes" validate:"required,min=512,max=1048576"`
	MaxConnections  int             `mapstructure:"MAX_CONNECTIONS"   json:"max_connections"   validate:"required,min=1,max=100000"`
}

// RateLimitConfig holds the per-connection inbound event rate limit.
type RateLimitConfig struct {
	Enabled            bool `mapstructure:"ENABLED"               json:"enabled"`
	MaxEventsPerSecond int  `mapstructure:"MAX_EVENTS_PER_SECOND" json:"max_events_per_second" validate:"min=0,max=10000"`
	BurstSize          int  `mapstructure:"BURST_SIZE"            json:"burst_size"            validate:"min=0,max=1000"`
}
