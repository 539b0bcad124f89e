package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/outfitly/outfitly/internal/api/middleware"
	"github.com/outfitly/outfitly/internal/api/response"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler       http.HandlerFunc
	TriggerHandler      http.HandlerFunc
	PollJobHandler      http.HandlerFunc
	StreamHandler       http.HandlerFunc
	AddItemHandler      http.HandlerFunc
	ListItemsHandler    http.HandlerFunc
	DecideItemHandler   http.HandlerFunc
	CountsHandler       http.HandlerFunc
	ListWardrobeHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public endpoints
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Handle("/metrics", promhttp.Handler())

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/outfits", orNotImplemented(deps.TriggerHandler))
		r.Get("/api/v1/outfits/{jobID}", orNotImplemented(deps.PollJobHandler))
		r.Get("/api/v1/outfits/{jobID}/stream", orNotImplemented(deps.StreamHandler))

		r.Post("/api/v1/closet/candidates", orNotImplemented(deps.AddItemHandler))
		r.Get("/api/v1/closet/candidates", orNotImplemented(deps.ListItemsHandler))
		r.Post("/api/v1/closet/candidates/{itemID}/decision", orNotImplemented(deps.DecideItemHandler))
		r.Get("/api/v1/closet/counts", orNotImplemented(deps.CountsHandler))

		r.Get("/api/v1/wardrobe", orNotImplemented(deps.ListWardrobeHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
