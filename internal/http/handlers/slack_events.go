package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"mueck/internal/domain"
	"mueck/internal/infra/geoip"
	"mueck/internal/slack"
)

const maxEventBody = 1 << 20

// SlackEvents receives Events API deliveries. Verified messages are stored and left for the
// worker; the response never waits for generation.
func (a *App) SlackEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}
	if len(body) > maxEventBody {
		a.error(w, http.StatusRequestEntityTooLarge, "too_large", "payload too large")
		return
	}
	env, err := slack.ParseEnvelope(body)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid envelope")
		return
	}
	log := a.log(r).With().Str("app_id", env.APIAppID).Str("slack_event_id", env.EventID).Logger()

	if env.Type == slack.TypeURLVerification {
		// the challenge may arrive before the app is installed; verify whenever it resolves
		if env.APIAppID != "" {
			integration, err := a.Integrations.GetByAppID(r.Context(), env.APIAppID)
			switch {
			case err == nil:
				if !a.verified(w, r, log, integration, body) {
					return
				}
			case !errors.Is(err, domain.ErrNotFound):
				log.Error().Err(err).Msg("slack: integration lookup failed")
				a.error(w, http.StatusInternalServerError, "internal", "integration lookup failed")
				return
			}
		}
		a.json(w, http.StatusOK, map[string]string{"challenge": env.Challenge})
		return
	}

	integration, err := a.Integrations.GetByAppID(r.Context(), env.APIAppID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Msg("slack: event for unknown app")
			a.error(w, http.StatusNotFound, "not_found", "unknown app")
			return
		}
		log.Error().Err(err).Msg("slack: integration lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "integration lookup failed")
		return
	}
	if !a.verified(w, r, log, integration, body) {
		return
	}

	msg := env.Event
	if msg.FromBot(integration.BotUserID) {
		a.json(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	event := &domain.InboundEvent{
		IntegrationID: integration.ID,
		Payload:       body,
		Channel:       msg.Channel,
		RequestTS:     msg.TS,
		ThreadTS:      msg.ThreadTS,
	}
	if err := a.Events.Insert(r.Context(), event); err != nil {
		if errors.Is(err, domain.ErrDuplicateOperation) {
			log.Info().Str("channel", msg.Channel).Str("ts", msg.TS).Msg("slack: duplicate delivery ignored")
			a.json(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		}
		log.Error().Err(err).Msg("slack: store event failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store event")
		return
	}
	log.Info().Int64("event_id", event.ID).Str("channel", msg.Channel).Msg("slack: event accepted")
	a.json(w, http.StatusOK, map[string]any{"status": "accepted", "event_id": event.ID})
}

// verified checks the request signature against the integration's signing secret and
// answers 401 when it does not match.
func (a *App) verified(w http.ResponseWriter, r *http.Request, log zerolog.Logger, integration *domain.Integration, body []byte) bool {
	ts := r.Header.Get(slack.HeaderTimestamp)
	err := a.Verifier.Verify(integration.SigningSecret, ts, r.Header.Get(slack.HeaderSignature), body)
	if err == nil {
		return true
	}
	log.Warn().
		Err(err).
		Str("remote_addr", r.RemoteAddr).
		Str("country", geoip.Origin(a.GeoIP, r.RemoteAddr)).
		Str("timestamp", ts).
		Msg("security: rejected slack signature")
	a.error(w, http.StatusUnauthorized, "unauthorized", "signature mismatch")
	return false
}
