package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mueck/internal/http/handlers"
	"mueck/internal/infra"
	"mueck/internal/middleware"
)

// RouterOptions tunes the shared middleware stack.
type RouterOptions struct {
	Logger          infra.Logger
	RateLimitPerMin int
	// CORSOrigins may read the query API from a browser.
	CORSOrigins     []string
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
	)

	r.Get("/v1/healthz", app.Health)

	r.With(middleware.RateLimit(opts.RateLimitPerMin)).Post("/v1/slack/events", app.SlackEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(opts.CORSOrigins))
		r.Get("/v1/events/{id}", app.GetEvent)
		r.Route("/v1/jobs/{id}", func(r chi.Router) {
			r.Get("/", app.GetJob)
			r.Get("/images", app.JobImages)
			r.Get("/images.zip", app.JobImagesZip)
		})
	})

	return r
}
