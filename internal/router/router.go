package router

import (
	"log/slog"
	"net/http"

	"github.com/StimpyDev/EconomyCraft/internal/handler"
	"github.com/StimpyDev/EconomyCraft/internal/metrics"
	"github.com/StimpyDev/EconomyCraft/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Handler        *handler.Handler
	EconomyHandler *handler.EconomyHandler
	MarketHandler  *handler.MarketHandler
	ShopHandler    *handler.ShopHandler
	MailboxHandler *handler.MailboxHandler
	LogHandler     *handler.LogHandler
	AdminHandler   *handler.AdminHandler
	EventsHandler  *handler.EventsHandler
	AuthMiddleware func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(cfg.Logger, cfg.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	// AUTHENTICATED routes
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			r.Route("/players/{player}", func(r chi.Router) {
				if h := cfg.EconomyHandler; h != nil {
					r.Delete("/", h.DeletePlayer)
					r.Get("/balance", h.GetBalance)
					r.Put("/balance", h.SetBalance)
					r.Post("/balance/add", h.AddBalance)
					r.Post("/balance/remove", h.RemoveBalance)
					r.Get("/daily", h.DailyStatus)
					r.Post("/daily", h.ClaimDaily)
					r.Get("/sell-limit", h.SellLimit)
					r.Get("/name", h.GetName)
					r.Put("/name", h.RegisterName)
				}
				if h := cfg.LogHandler; h != nil {
					r.Get("/transactions", h.GetTransactions)
				}
				if h := cfg.MailboxHandler; h != nil {
					r.Get("/mailbox", h.List)
					r.Post("/mailbox/claim", h.Claim)
				}
				if h := cfg.ShopHandler; h != nil {
					r.Post("/sell", h.Sell)
					r.Post("/sell-all", h.PreviewSellAll)
					r.Post("/sell-all/confirm", h.ConfirmSellAll)
					r.Post("/shop/buy", h.Buy)
				}
			})

			if h := cfg.EconomyHandler; h != nil {
				r.Get("/names/{name}", h.LookupName)
				r.Get("/balances/top", h.TopBalances)
				r.Post("/payments", h.Pay)
				r.Post("/pvp/kills", h.PvPKill)
			}

			if h := cfg.MarketHandler; h != nil {
				r.Route("/listings", func(r chi.Router) {
					r.Get("/", h.ListListings)
					r.Post("/", h.CreateListing)
					r.Get("/{id}", h.GetListing)
					r.Delete("/{id}", h.DeleteListing)
					r.Post("/{id}/cancel", h.CancelListing)
					r.Post("/{id}/purchase", h.PurchaseListing)
				})
				r.Route("/requests", func(r chi.Router) {
					r.Get("/", h.ListRequests)
					r.Post("/", h.CreateRequest)
					r.Get("/{id}", h.GetRequest)
					r.Delete("/{id}", h.DeleteRequest)
					r.Post("/{id}/cancel", h.CancelRequest)
					r.Post("/{id}/fulfill", h.FulfillRequest)
				})
			}

			if h := cfg.ShopHandler; h != nil {
				r.Get("/shop/items", h.Items)
			}

			if h := cfg.EventsHandler; h != nil {
				r.Get("/events", h.Stream)
			}

			if h := cfg.AdminHandler; h != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Get("/stats", h.GetStats)
					r.Post("/flush", h.Flush)
				})
			}
		})
	})

	return r
}
