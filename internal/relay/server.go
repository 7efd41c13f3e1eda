package relay

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stg-network/chat-relay/internal/config"
	"github.com/stg-network/chat-relay/internal/constants"
	"github.com/stg-network/chat-relay/internal/domain"
	"github.com/stg-network/chat-relay/internal/errors"
	"github.com/stg-network/chat-relay/internal/health"
	"github.com/stg-network/chat-relay/internal/identity"
	"github.com/stg-network/chat-relay/internal/logger"
	"github.com/stg-network/chat-relay/internal/metrics"
	"go.uber.org/zap"
)

// Server accepts websocket connections, runs them through the identity
// gate, and wires accepted connections to the event router.
type Server struct {
	cfg           config.RelayConfig
	fullCfg       *config.Config
	node          domain.NodeInterface
	gate          *identity.Gate
	router        *Router
	healthChecker *health.HealthChecker
}

// NewServer constructs a Server over the given node, gate and router.
func NewServer(node domain.NodeInterface, gate *identity.Gate, router *Router, broker health.BrokerInterface, fullCfg *config.Config) *Server {
	nodeAdapter := &nodeHealthAdapter{node: node}
	healthChecker := health.NewHealthChecker(
		broker,
		nodeAdapter,
		fullCfg,
		logger.New("health"),
		config.Version,
	)

	return &Server{
		cfg:           fullCfg.Relay,
		fullCfg:       fullCfg,
		node:          node,
		gate:          gate,
		router:        router,
		healthChecker: healthChecker,
	}
}

// ListenAndServe starts the relay server and blocks until it stops. In
// https mode it falls back to plain HTTP when the certificate files are
// missing, so a misplaced cert never leaves the relay unreachable.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(s.cfg.AllowedOrigins, r.Header.Get("Origin"))
		},
		HandshakeTimeout: 10 * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if isWebSocketRequest(r) {
			s.handleWebSocketConnection(ctx, w, r, upgrader)
			return
		}
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprintf(w, "%s is running.\n", s.cfg.Name)
		case "/health":
			s.healthChecker.HandleHealth(w, r)
		default:
			logger.Warn("Invalid request path",
				zap.String("path", r.URL.Path),
				zap.String("client_ip", r.RemoteAddr))
			http.NotFound(w, r)
		}
	})

	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown when context is canceled: the listener stops
	// accepting first; established connections are closed by the node.
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down WebSocket server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	if s.cfg.Mode == "https" {
		if fileExists(s.cfg.TLSCertFile) && fileExists(s.cfg.TLSKeyFile) {
			logger.Info("Relay WebSocket server listening (https)",
				zap.String("address", addr))
			return httpSrv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		}
		logger.Error("HTTPS mode requested but certificate files not found, falling back to HTTP",
			zap.String("cert_file", s.cfg.TLSCertFile),
			zap.String("key_file", s.cfg.TLSKeyFile))
	}

	logger.Info("Relay WebSocket server listening", zap.String("address", addr))
	return httpSrv.ListenAndServe()
}

// handleWebSocketConnection authenticates the handshake and, on success,
// upgrades and wires the connection into the relay.
func (s *Server) handleWebSocketConnection(ctx context.Context, w http.ResponseWriter, r *http.Request, upgrader websocket.Upgrader) {
	// Saturation check before any other work.
	if metrics.GetActiveConnectionsCount() >= int64(s.cfg.ThrottlingConfig.MaxConnections) {
		metrics.HandshakeRefusals.WithLabelValues("connection_limit").Inc()
		limitErr := errors.ConnectionLimitError(
			int(metrics.GetActiveConnectionsCount()),
			s.cfg.ThrottlingConfig.MaxConnections)
		errors.HandleHTTPError(w, r, limitErr)
		return
	}

	if origin := r.Header.Get("Origin"); !originAllowed(s.cfg.AllowedOrigins, origin) {
		metrics.HandshakeRefusals.WithLabelValues("origin").Inc()
		errors.HandleHTTPError(w, r, errors.OriginError(origin))
		return
	}

	// Identity gate: refused connections never reach event handling and
	// never touch the registry.
	userID, authErr := s.gate.Authenticate(r.Context(), r)
	if authErr != nil {
		metrics.HandshakeRefusals.WithLabelValues("authentication").Inc()
		errors.HandleHTTPError(w, r, authErr)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade failures (including origin rejections) have already
		// written a response; nothing to clean up.
		metrics.HandshakeRefusals.WithLabelValues("upgrade").Inc()
		logger.Debug("WebSocket upgrade failed",
			zap.String("client_ip", r.RemoteAddr),
			zap.Error(err))
		return
	}

	metrics.IncrementActiveConnections()

	conn := NewWsConnection(ctx, wsConn, s.node, s.router, userID, r.RemoteAddr)
	s.node.RegisterConn(conn)

	// Guarded handler registration: a failure terminates this one
	// connection and nothing else.
	if err := s.router.Register(conn); err != nil {
		regErr := errors.RegistrationError(err)
		logger.Error("Failed to register handlers, closing connection",
			zap.String("conn_id", conn.ID()),
			zap.Int64("user_id", userID),
			zap.Error(regErr))
		conn.Close()
		return
	}

	logger.Debug("WebSocket connection established",
		zap.String("conn_id", conn.ID()),
		zap.Int64("user_id", userID),
		zap.Int64("active_connections", metrics.GetActiveConnectionsCount()))

	go conn.HandleMessages(ctx)
}

// isWebSocketRequest checks if the request is a WebSocket upgrade request.
func isWebSocketRequest(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") &&
		strings.ToLower(r.Header.Get("Upgrade")) == "websocket"
}

// originAllowed applies the cross-origin allow-list. Requests without an
// Origin header (non-browser clients) are always allowed; an empty list
// allows every origin.
func originAllowed(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// nodeHealthAdapter adapts domain.NodeInterface to health.NodeInterface.
type nodeHealthAdapter struct {
	node domain.NodeInterface
}

func (n *nodeHealthAdapter) GetConnectionCount() int {
	return n.node.GetConnectionCount()
}

func (n *nodeHealthAdapter) GetStartTime() time.Time {
	return n.node.GetStartTime()
}
