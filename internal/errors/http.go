package errors

import (
	"encoding/json"
	"net/http"

	"github.com/stg-network/chat-relay/internal/logger"
	"go.uber.org/zap"
)

// HandleHTTPError writes a structured error response for a request that was
// refused before the websocket upgrade (authentication, origin, saturation).
func HandleHTTPError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := err.(*AppError)
	if !ok {
		appErr = Wrap(err, ErrorTypeInternal, "INTERNAL_ERROR", "Unexpected error")
	}

	logger.Warn("Request refused",
		zap.String("type", string(appErr.Type)),
		zap.String("code", appErr.Code),
		zap.String("message", appErr.Message),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("path", r.URL.Path))

	body := map[string]string{
		"error": appErr.Code,
	}
	if appErr.UserMessage != "" {
		body["message"] = appErr.UserMessage
	} else {
		body["message"] = appErr.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(appErr.Type))
	_ = json.NewEncoder(w).Encode(body)
}

func statusFor(t ErrorType) int {
	switch t {
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeValidation, ErrorTypeDecode:
		return http.StatusBadRequest
	case ErrorTypeRateLimit:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
