package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pollranking/internal/token"
	"pollranking/pkg/interfaces"
)

// Verifier checks an access token and returns the identity it carries.
type Verifier interface {
	Verify(tokenString string) (*token.Credential, error)
}

// Coordinator receives the lifecycle events of admitted connections.
// Dispatch is called sequentially per connection, in frame order.
type Coordinator interface {
	Admit(ctx context.Context, conn *Connection) error
	Dispatch(ctx context.Context, conn *Connection, data []byte)
	Release(ctx context.Context, conn *Connection)
}

// Options tunes heartbeat and frame limits.
type Options struct {
	PingInterval     time.Duration
	PongWait         time.Duration
	MaxMessageSize   int64
	OperationTimeout time.Duration
	AllowedOrigins   []string
}

// DefaultOptions returns the heartbeat settings used in production.
func DefaultOptions() Options {
	return Options{
		PingInterval:     30 * time.Second,
		PongWait:         60 * time.Second,
		MaxMessageSize:   4096,
		OperationTimeout: 10 * time.Second,
	}
}

// Handler verifies credentials, upgrades the request and runs the connection's read pump.
type Handler struct {
	verifier    Verifier
	coordinator Coordinator
	options     Options
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewHandler creates a WebSocket handler.
func NewHandler(verifier Verifier, coordinator Coordinator, options Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		verifier:    verifier,
		coordinator: coordinator,
		options:     options,
		logger:      logger.With("component", "websocket"),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.options.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.options.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.HandleWebSocket(w, r)
}

// HandleWebSocket rejects unverifiable credentials with 401 before upgrading;
// nothing is admitted or mutated for a rejected request.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := extractToken(r)
	if err != nil {
		http.Error(w, "Missing access token", http.StatusUnauthorized)
		return
	}

	cred, err := h.verifier.Verify(raw)
	if err != nil {
		h.logger.Info("websocket credential rejected", "remote_addr", r.RemoteAddr, "error", err)
		if token.IsExpired(err) {
			http.Error(w, "Access token expired", http.StatusUnauthorized)
			return
		}
		http.Error(w, "Invalid access token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	wsConn := NewConnection(conn)
	if err := wsConn.SetCredentials(cred.ParticipantID, cred.PollID, cred.Name); err != nil {
		h.logger.Error("failed to bind credentials", "error", err)
		_ = wsConn.Close()
		return
	}

	ctx, cancel := h.operationContext()
	err = h.coordinator.Admit(ctx, wsConn)
	cancel()
	if err != nil {
		h.logger.Info("connection not admitted", "poll_id", cred.PollID, "participant_id", cred.ParticipantID, "error", err)
		// the coordinator may still be flushing an exception frame
		go func() {
			select {
			case <-wsConn.Done():
			case <-time.After(writeWait):
				_ = wsConn.Close()
			}
		}()
		return
	}

	go h.handleConnection(wsConn)
}

func (h *Handler) operationContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.options.OperationTimeout)
}

// handleConnection runs heartbeat and the read pump; frames are dispatched one at a time.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		ctx, cancel := h.operationContext()
		h.coordinator.Release(ctx, conn)
		cancel()
		_ = conn.Close()
	}()

	if h.options.MaxMessageSize > 0 {
		conn.conn.SetReadLimit(h.options.MaxMessageSize)
	}
	if err := conn.conn.SetReadDeadline(time.Now().Add(h.options.PongWait)); err != nil {
		h.logger.Debug("failed to set read deadline", "error", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.options.PongWait))
	})

	go h.pingLoop(conn)

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", "participant_id", conn.GetParticipantID(), "error", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		ctx, cancel := h.operationContext()
		h.coordinator.Dispatch(ctx, conn, data)
		cancel()
	}
}

func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-conn.Done():
			return
		}
	}
}

// extractToken reads the credential from ?token= or an Authorization bearer header.
func extractToken(r *http.Request) (string, error) {
	if t := r.URL.Query().Get("token"); t != "" {
		return t, nil
	}
	return BearerToken(r)
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(value) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(value), nil
}

// IsCredentialError reports whether err came from credential verification.
func IsCredentialError(err error) bool {
	return errors.Is(err, interfaces.ErrInvalidCredential) || errors.Is(err, ErrMissingToken)
}
