package config

import (
	"fmt"
	"time"
)

// RedisConfig holds the event-bus broker connection and channel settings.
type RedisConfig struct {
	Host     string `mapstructure:"HOST"     json:"host"     validate:"required,host"`
	Port     int    `mapstructure:"PORT"     json:"port"     validate:"required,min=1,max=65535"`
	Password string `mapstructure:"PASSWORD" json:"-"        validate:"omitempty"`
	DB       int    `mapstructure:"DB"       json:"db"       validate:"min=0,max=15"`

	// Channel names consumed by the bridge.
	ImageProcessingChannel string `mapstructure:"IMAGE_PROCESSING_CHANNEL" json:"image_processing_channel" validate:"required"`
	ChatReadEventsChannel  string `mapstructure:"CHAT_READ_EVENTS_CHANNEL" json:"chat_read_events_channel" validate:"required"`

	// ImagePushDelay postpones the image_uploaded push after the bus
	// message arrives.
	ImagePushDelay time.Duration `mapstructure:"IMAGE_PUSH_DELAY" json:"image_push_delay" validate:"min=0"`
}

// Addr returns the host:port pair for the go-redis client.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
