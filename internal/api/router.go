package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pollranking/pkg/interfaces"
)

// NewRouter creates the chi router with all routes and middleware.
// ws may be nil when the real-time endpoint is served elsewhere.
func NewRouter(
	service interfaces.PollService,
	issuer Issuer,
	stats ConnectionStats,
	store HealthChecker,
	ws http.Handler,
	logger *slog.Logger,
) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")

	r := chi.NewRouter()

	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	healthH := NewHealthHandler(store, stats)
	pollH := NewPollHandler(service, issuer, stats, logger)

	r.Get("/health", healthH.Health)

	r.Route("/api/polls", func(r chi.Router) {
		r.Post("/", pollH.Create)
		r.Post("/join", pollH.Join)
		r.Post("/rejoin", pollH.Rejoin)
		r.Get("/{id}", pollH.Get)
	})

	if ws != nil {
		r.Handle("/ws", ws)
	}

	return r
}
