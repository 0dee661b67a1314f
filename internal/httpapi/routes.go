package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/avelinsk/livevote-backend/internal/config"
	"github.com/avelinsk/livevote-backend/internal/session"
	"github.com/avelinsk/livevote-backend/internal/ws"
)

func SetupRoutes(sess *session.Session, cfg config.Config, log *zap.Logger) http.Handler {
	h := NewHandlers(sess, cfg, log)
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(sess, log))

	r.Route("/api", func(r chi.Router) {
		r.Post("/signin", h.SignIn)
		r.Get("/snapshot", h.Snapshot)
		r.Get("/votes/{id}/results", h.Results)

		r.Post("/participant/vote", h.SubmitAnswer)

		// Admin CRUD for activities and polls.
		r.Post("/admin/activities", h.CreateActivity)
		r.Post("/admin/votes", h.CreatePoll)

		// Operator controls, host token required.
		r.Route("/host", func(r chi.Router) {
			r.Post("/activity/start", h.requireHost(h.StartActivity))
			r.Post("/activity/end", h.requireHost(h.EndActivity))
			r.Post("/activity/close", h.requireHost(h.CloseActivity))
			r.Post("/vote/{id}/start", h.requireHost(h.StartPoll))
			r.Post("/vote/end", h.requireHost(h.EndPoll))
			r.Post("/vote/exit", h.requireHost(h.ExitPoll))
		})
	})

	return r
}
