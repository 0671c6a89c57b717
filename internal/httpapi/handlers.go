package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/voicearcade/server/internal/game"
	"github.com/voicearcade/server/internal/orchestrator"
)

type errorBody struct {
	Error  string `json:"error"`
	Spoken string `json:"spoken,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, game.ErrInvalidState),
		errors.Is(err, game.ErrSessionFull),
		errors.Is(err, game.ErrDuplicatePlayer):
		return http.StatusConflict
	case errors.Is(err, game.ErrAmbiguousInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, game.ErrUnknownGameType):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrUpstreamFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{
		Error:  err.Error(),
		Spoken: game.SpokenFallback(err),
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad json"})
		return false
	}
	return true
}

func CreateSession(o *orchestrator.Orchestrator, log *zap.Logger) http.HandlerFunc {
	type request struct {
		HostID   string        `json:"host_id"`
		HostName string        `json:"host_name"`
		GameType game.GameType `json:"game_type"`
		Settings game.Settings `json:"settings"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decode(w, r, &req) {
			return
		}
		if req.HostID == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "host_id required"})
			return
		}
		view, err := o.CreateSession(req.HostID, req.HostName, req.GameType, req.Settings)
		if err != nil {
			writeError(w, err)
			return
		}
		log.Info("session created over http",
			zap.String("session_id", view.ID), zap.String("game_type", string(view.GameType)))
		writeJSON(w, http.StatusCreated, view)
	}
}

func JoinSession(o *orchestrator.Orchestrator) http.HandlerFunc {
	type request struct {
		PlayerID string `json:"player_id"`
		Name     string `json:"name"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decode(w, r, &req) {
			return
		}
		if err := o.JoinSession(chi.URLParam(r, "id"), req.PlayerID, req.Name); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"joined": true})
	}
}

func StartSession(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := o.StartSession(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"started": true})
	}
}

func ProcessVoiceCommand(o *orchestrator.Orchestrator) http.HandlerFunc {
	type request struct {
		PlayerID   string  `json:"player_id"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decode(w, r, &req) {
			return
		}
		res, err := o.ProcessVoiceCommand(r.Context(), chi.URLParam(r, "id"), req.PlayerID, req.Text, req.Confidence)
		if err != nil {
			// the result still carries the spoken fallback for the voice layer
			writeJSON(w, statusFor(err), res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func PauseSession(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := o.PauseSession(chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
	}
}

func ResumeSession(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := o.ResumeSession(chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"resumed": true})
	}
}

func EndSession(o *orchestrator.Orchestrator) http.HandlerFunc {
	type request struct {
		Reason string `json:"reason"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if !decode(w, r, &req) {
			return
		}
		if req.Reason == "" {
			req.Reason = "completed"
		}
		stats, err := o.EndSession(chi.URLParam(r, "id"), req.Reason)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func GetSessionState(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := o.GetSessionState(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func SessionStats(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := o.SessionStats(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
