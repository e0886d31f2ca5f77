package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tsvoboda/crisis-council-backend/internal/notify"
	"github.com/tsvoboda/crisis-council-backend/internal/ws"
)

func SetupRoutes(a *API, hub *notify.Hub) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(hub))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", a.createSession)
		r.Post("/join", a.join)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Post("/start", a.startSession)
			r.Post("/pause", a.pauseSession)
			r.Post("/resume", a.resumeSession)
			r.Post("/teams", a.createTeam)
			r.Delete("/teams/{teamID}", a.deleteTeam)
			r.Post("/assign", a.assignTeams)
			r.Post("/connection", a.setConnected)
			r.Post("/votes", a.castVote)
			r.Post("/responses", a.submitResponse)
			r.Get("/snapshot", a.snapshot)
			r.Get("/results", a.results)
		})
	})
	return r
}
