package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/engine"
	"github.com/jason-s-yu/mighty/internal/game"
	"github.com/jason-s-yu/mighty/internal/lobby"
)

const authCookie = "auth_token"

var (
	errMissingToken = errors.New("missing auth token")
	errBadToken     = errors.New("invalid auth token")
	errWrongPlayer  = errors.New("token does not belong to this player")
)

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// requestToken reads the session token from the auth cookie or a Bearer header.
func requestToken(r *http.Request) string {
	if t := extractCookieToken(r.Header.Get("Cookie"), authCookie); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorKind names err for clients, extending game.ErrorKind with room and auth failures.
func errorKind(err error) string {
	switch {
	case errors.Is(err, lobby.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, lobby.ErrRoomFull):
		return "room_full"
	case errors.Is(err, lobby.ErrRoomInGame):
		return "room_in_game"
	case errors.Is(err, lobby.ErrRoomNotReady):
		return "room_not_ready"
	case errors.Is(err, lobby.ErrNotHost):
		return "not_host"
	case errors.Is(err, lobby.ErrNotSeated):
		return "not_seated"
	case errors.Is(err, errMissingToken):
		return "unauthenticated"
	case errors.Is(err, errBadToken), errors.Is(err, errWrongPlayer):
		return "forbidden"
	case errors.Is(err, errBadCommand):
		return "bad_request"
	}
	return game.ErrorKind(err)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case string(engine.KindOutOfTurn), string(engine.KindPhaseMismatch),
		"game_over", "already_started", "room_full", "room_in_game", "room_not_ready":
		return http.StatusConflict
	case string(engine.KindInvalidBid), string(engine.KindInvalidDiscard), string(engine.KindInvalidFriendCard),
		string(engine.KindIllegalCard), string(engine.KindInvalidJokerCall):
		return http.StatusUnprocessableEntity
	case string(engine.KindUnknownPlayer), "game_not_found", "room_not_found", "not_seated":
		return http.StatusNotFound
	case "unauthenticated":
		return http.StatusUnauthorized
	case "forbidden", "not_host":
		return http.StatusForbidden
	case "bad_request":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError sends {"error": kind, "message": ...} with the status for its kind.
func writeError(w http.ResponseWriter, err error) {
	kind := errorKind(err)
	writeJSON(w, statusFor(kind), map[string]string{"error": kind, "message": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": msg})
}

// parseID parses a uuid field, treating an empty string as missing.
func parseID(field, v string) (uuid.UUID, error) {
	if v == "" {
		return uuid.Nil, errors.New(field + " is required")
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, errors.New("invalid " + field)
	}
	return id, nil
}
