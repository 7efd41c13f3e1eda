package constants

import "time"

// Event-bus channel names the bridge subscribes to. The backend publishes
// with a framework-derived prefix, so these defaults match its naming.
const (
	ImageProcessingChannel = "laravel_database_image_processing_queue"
	ChatReadEventsChannel  = "laravel_database_chat-read-events"
)

const (
	// ShutdownTimeout bounds the entire graceful shutdown sequence.
	ShutdownTimeout = 30 * time.Second

	// CloseGracePeriod is how long a connection gets to complete the
	// websocket close handshake before the socket is torn down.
	CloseGracePeriod = 2 * time.Second

	// DefaultImagePushDelay decouples the image_uploaded push from the
	// moment the event-bus message arrives, so derivatives have time to
	// land on the CDN before clients re-fetch.
	DefaultImagePushDelay = 2 * time.Second

	// HealthCheckTimeout bounds a single /health evaluation.
	HealthCheckTimeout = 5 * time.Second
)
