package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"mueck/internal/domain"
	"mueck/internal/infra"
	"mueck/internal/infra/geoip"
	"mueck/internal/slack"
)

// ArtifactReader loads stored artifacts by key.
type ArtifactReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// App carries the dependencies of every HTTP handler.
type App struct {
	Events       domain.EventStore
	Jobs         domain.JobStore
	Integrations domain.IntegrationStore
	Files        ArtifactReader
	Verifier     slack.Verifier
	GeoIP        geoip.CountryResolver
	// Ping reports database health; nil means always healthy.
	Ping   func(ctx context.Context) error
	Logger *infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}

// log prefers the request-scoped logger installed by middleware.Logger.
func (a *App) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	if a.Logger != nil {
		return a.Logger
	}
	nop := infra.NopLogger()
	return &nop
}
