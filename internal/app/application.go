package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"pollranking/internal/api"
	"pollranking/internal/config"
	"pollranking/internal/hub"
	"pollranking/internal/poll"
	"pollranking/internal/router"
	"pollranking/internal/store"
	"pollranking/internal/token"
	"pollranking/internal/websocket"
	"pollranking/pkg/database"
)

// Application owns every component and their start/stop order.
type Application struct {
	config     *config.Config
	logger     *slog.Logger
	store      store.Store
	hub        *hub.Hub
	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener
}

// NewApplication builds the component graph:
// Store → Service → Signer → Registry → Router → Hub → WebSocket/API → HTTP
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	sqliteCfg := database.DefaultConfig()
	sqliteCfg.DatabasePath = cfg.Store.SQLitePath
	sqliteCfg.WriteTimeout = cfg.Store.WriteTimeout

	st, err := store.Open(ctx, store.Config{
		Driver:      cfg.Store.Driver,
		SQLite:      sqliteCfg,
		PostgresDSN: cfg.Store.PostgresDSN,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}

	service := poll.NewService(st, cfg.Poll.TTL, logger)

	// credentials live exactly as long as the poll they are bound to
	signer, err := token.NewSigner([]byte(cfg.Token.SigningKey), cfg.Token.Issuer, cfg.Poll.TTL)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create token signer: %w", err)
	}

	registry := websocket.NewRegistry(logger)
	limiter := router.NewRateLimiter(cfg.WebSocket.RateLimit, cfg.WebSocket.RateWindow)
	messageRouter := router.NewRouter(registry, limiter, logger)
	messageHub := hub.NewHub(registry, messageRouter, service, logger)

	wsHandler := websocket.NewHandler(signer, messageHub, websocket.Options{
		PingInterval:     cfg.WebSocket.PingInterval,
		PongWait:         cfg.WebSocket.PongWait,
		MaxMessageSize:   cfg.WebSocket.MaxMessageSize,
		OperationTimeout: cfg.WebSocket.OperationTimeout,
		AllowedOrigins:   cfg.WebSocket.AllowedOrigins,
	}, logger)

	handler := api.NewRouter(service, signer, messageHub, st, wsHandler, logger)

	return &Application{
		config:  cfg,
		logger:  logger.With("component", "app"),
		store:   st,
		hub:     messageHub,
		handler: handler,
		httpServer: &http.Server{
			Addr:         cfg.HTTP.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
	}, nil
}

// Start runs the hub and cleanup routine, then begins accepting connections.
func (app *Application) Start(ctx context.Context) error {
	if err := app.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message hub: %w", err)
	}
	app.store.StartCleanupRoutine(app.config.Store.CleanupInterval)

	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		_ = app.hub.Stop()
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.listener = listener

	go func() {
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("HTTP server error", "error", err)
		}
	}()

	app.logger.Info("application started", "addr", listener.Addr().String(), "store", app.config.Store.Driver)
	return nil
}

// Stop shuts down in reverse order: HTTP → Hub → Store.
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down")

	var errs []error
	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := app.hub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}
	if err := app.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store shutdown: %w", err))
	}

	app.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// Handler exposes the full HTTP surface, mainly for tests.
func (app *Application) Handler() http.Handler {
	return app.handler
}

// GetAddr returns the bound address once started, otherwise the configured one.
func (app *Application) GetAddr() string {
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}
