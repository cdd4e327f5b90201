/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy
  3. Logging:    slog request log plus Prometheus request metrics
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the web client

ROUTE GROUPS:
  /api/users/*        Signup, profiles, wallets
  /api/wallet/*       Top-ups (auth)
  /api/events/*       Events, RSVPs, wishlists
  /api/gifts/*        Gifts and contributions
  /api/auth/token     Token minting (development only)
  /api/scenarios/*    Demo scenarios (development only)
  /api/admin/audit    Ledger audit (development only)
  /metrics            Prometheus
  /healthz            Liveness

AUTHENTICATION:
  Every route that moves money or changes an event requires a bearer token
  (RequireAuth). The caller's user id comes from the token, never from the
  request body.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: JWT tokens and RequireAuth
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smartgifter/giftledger/metrics"
)

// RouterOptions configures the ambient parts of the router.
type RouterOptions struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger, opts.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
	}))

	requireAuth := RequireAuth(h.Tokens)

	r.Route("/api", func(r chi.Router) {
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.With(requireAuth).Get("/{id}/wallet", h.GetWallet)
		})

		// Wallet routes
		r.Route("/wallet", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/topups", h.TopUp)
		})

		// Event routes
		r.Route("/events", func(r chi.Router) {
			r.Get("/{id}", h.GetEvent)
			r.Get("/{id}/gifts", h.ListEventGifts)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", h.CreateEvent)
				r.Put("/{id}/rsvp", h.UpdateRSVP)
				r.Post("/{id}/gifts", h.CreateGift)
			})
		})

		// Gift routes
		r.Route("/gifts", func(r chi.Router) {
			r.Get("/{id}", h.GetGift)
			r.With(requireAuth).Post("/{id}/contributions", h.Contribute)
		})

		if h.DevMode {
			r.Post("/auth/token", h.IssueToken)

			// Scenario routes
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})

			if h.Audit != nil {
				r.Get("/admin/audit", h.GetAuditReport)
				r.Post("/admin/audit/run", h.RunAudit)
			}
		}
	})

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", h.Health)

	return r
}

// requestLogger logs one line per request and records request metrics under
// the matched route pattern.
func requestLogger(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Int64("duration_ms", elapsed.Milliseconds()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			if m != nil {
				m.ObserveRequest(r.Method, route, status, elapsed)
			}
		})
	}
}
