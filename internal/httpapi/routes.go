package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/voicearcade/server/internal/orchestrator"
	"github.com/voicearcade/server/internal/ws"
)

func SetupRoutes(o *orchestrator.Orchestrator, hub *ws.Hub, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/sessions", CreateSession(o, log))
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", GetSessionState(o))
		r.Post("/join", JoinSession(o))
		r.Post("/start", StartSession(o))
		r.Post("/voice", ProcessVoiceCommand(o))
		r.Post("/pause", PauseSession(o))
		r.Post("/resume", ResumeSession(o))
		r.Post("/end", EndSession(o))
		r.Get("/stats", SessionStats(o))
	})
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(hub, log))
	return r
}
