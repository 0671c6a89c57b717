package game

import "errors"

var ErrNotFound = errors.New("session not found")
var ErrInvalidState = errors.New("operation not valid in current session state")
var ErrNotAuthorized = errors.New("player not allowed to perform this action")
var ErrSessionFull = errors.New("session is full")
var ErrDuplicatePlayer = errors.New("player already joined")
var ErrAmbiguousInput = errors.New("could not resolve a game action from input")
var ErrUpstreamFailure = errors.New("upstream service failed")
var ErrUnknownGameType = errors.New("unknown game type")

// SpokenFallback maps an engine error to something the voice layer can
// say instead of silence.
func SpokenFallback(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "I couldn't find that game. It may have already ended."
	case errors.Is(err, ErrInvalidState):
		return "You can't do that right now."
	case errors.Is(err, ErrNotAuthorized):
		return "Hold on, it's not your turn yet."
	case errors.Is(err, ErrSessionFull):
		return "Sorry, that game is already full."
	case errors.Is(err, ErrDuplicatePlayer):
		return "You're already in this game."
	case errors.Is(err, ErrAmbiguousInput):
		return "Sorry, I didn't catch that. Could you say it again?"
	case errors.Is(err, ErrUpstreamFailure):
		return "Something went wrong on my end. Let's try that again."
	default:
		return "Something unexpected happened. Please try again."
	}
}
