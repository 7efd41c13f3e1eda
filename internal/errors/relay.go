package errors

import "fmt"

// Relay-specific error constructors, one per failure in the taxonomy.

// AuthenticationError refuses a connection that presented no usable identity.
// Fatal to the single connection; nothing else is touched.
func AuthenticationError(reason string) *AppError {
	return New(ErrorTypeAuthentication, "AUTHENTICATION_FAILED",
		fmt.Sprintf("Authentication error: %s", reason)).
		WithSeverity(SeverityMedium).
		WithUserMessage("Authentication error: " + reason)
}

// EventValidationError marks a single inbound event that failed the
// required-field checklist. The connection stays up.
func EventValidationError(kind, reason string) *AppError {
	return New(ErrorTypeValidation, "EVENT_VALIDATION_FAILED",
		fmt.Sprintf("Invalid %s event: %s", kind, reason)).
		WithSeverity(SeverityLow)
}

// DecodeError marks a single event-bus message body that could not be parsed.
func DecodeError(channel string, cause error) *AppError {
	return Wrap(cause, ErrorTypeDecode, "MESSAGE_DECODE_FAILED",
		fmt.Sprintf("Failed to decode message on channel %s", channel)).
		WithSeverity(SeverityLow)
}

// RegistrationError marks a failure wiring event handlers onto a new
// connection. Fatal to that one connection.
func RegistrationError(cause error) *AppError {
	return Wrap(cause, ErrorTypeRegistration, "HANDLER_REGISTRATION_FAILED",
		"Failed to register event handlers for connection").
		WithSeverity(SeverityMedium)
}

// TransportError records a low-level socket failure on an established
// connection. Informational; cleanup belongs to the disconnect path.
func TransportError(operation string, cause error) *AppError {
	return Wrap(cause, ErrorTypeTransport, "TRANSPORT_ERROR",
		fmt.Sprintf("WebSocket %s failed", operation)).
		WithSeverity(SeverityLow)
}

// BrokerSubscribeError records a channel subscription that could not be
// established at startup. The bridge keeps serving the channels that did.
func BrokerSubscribeError(channel string, cause error) *AppError {
	return Wrap(cause, ErrorTypeBroker, "BROKER_SUBSCRIBE_FAILED",
		fmt.Sprintf("Failed to subscribe to channel %s", channel)).
		WithSeverity(SeverityHigh)
}

// ConnectionLimitError refuses a handshake while the relay is saturated.
func ConnectionLimitError(currentCount, maxCount int) *AppError {
	return New(ErrorTypeRateLimit, "CONNECTION_LIMIT_EXCEEDED",
		fmt.Sprintf("Connection limit exceeded: %d/%d", currentCount, maxCount)).
		WithSeverity(SeverityMedium).
		WithUserMessage("Too many active connections. Please try again later.")
}

// OriginError refuses a handshake from a disallowed cross-origin source.
func OriginError(origin string) *AppError {
	return New(ErrorTypeAuthentication, "ORIGIN_NOT_ALLOWED",
		fmt.Sprintf("Origin %s is not allowed", origin)).
		WithSeverity(SeverityMedium).
		WithUserMessage("Origin not allowed.")
}
