// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/mighty/internal/middleware"
)

// Routes registers every REST and WebSocket endpoint on a new mux wrapped in request logging.
func (gs *GameServer) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /user/create", withDatabase(CreateUserHandler))
	mux.HandleFunc("POST /user/login", withDatabase(LoginHandler))
	mux.HandleFunc("POST /user/claim", withDatabase(ClaimEphemeralHandler))

	mux.HandleFunc("POST /api/game/create", CreateGameHandler(gs))
	mux.HandleFunc("POST /api/game/join", JoinGameHandler(gs))
	mux.HandleFunc("GET /api/game/state/{roomId}", GameStateHandler(gs))
	for path, action := range map[string]string{
		"bid":        "bid",
		"pass":       "pass",
		"dealmiss":   "dealmiss",
		"tablecards": "tablecards",
		"friend":     "friend",
		"draw":       "draw",
		"next":       "next",
	} {
		mux.HandleFunc("POST /api/game/"+path, CommandHandler(gs, action))
	}
	mux.HandleFunc("GET /api/game/ws/{gameId}", GameWSHandler(gs))

	mux.HandleFunc("POST /api/room/create", CreateRoomHandler(gs))
	mux.HandleFunc("GET /api/room/list", ListRoomsHandler(gs))
	mux.HandleFunc("POST /api/room/join", JoinRoomHandler(gs))
	mux.HandleFunc("POST /api/room/leave", LeaveRoomHandler(gs))
	mux.HandleFunc("POST /api/room/start", StartRoomHandler(gs))
	mux.HandleFunc("POST /api/room/rules", UpdateRoomRulesHandler(gs))
	mux.HandleFunc("GET /api/room/{id}", GetRoomHandler(gs))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"rooms": len(gs.Rooms.Rooms()),
			"games": gs.Games.Len(),
		})
	})

	return middleware.LogMiddleware(gs.Logger)(mux)
}
