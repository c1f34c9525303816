package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"pedigree-chart-go/internal/config"
	"pedigree-chart-go/internal/transport/httpserver/handler"
	authmw "pedigree-chart-go/internal/transport/httpserver/middleware"
)

func NewRouter(cfg config.Config, handlers *handler.Handlers, identity *authmw.Identity, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Location", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", handlers.Health)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware)

		r.Get("/{owner}/list", handlers.ListCharts)
		r.Get("/{owner}/view/{slug}", handlers.ViewChart)

		r.Group(func(r chi.Router) {
			r.Use(identity.RequireUser)

			r.Get("/", handlers.Index)
			r.Post("/add", handlers.AddChart)
			r.Get("/{owner}/edit/{slug}", handlers.EditChart)
			r.Post("/{owner}/edit/{slug}", handlers.UpdateChart)
		})
	})

	return r
}
