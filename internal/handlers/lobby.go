// internal/handlers/lobby.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/database"
	"github.com/jason-s-yu/mighty/internal/lobby"
	"github.com/jason-s-yu/mighty/internal/models"
)

type roomRequest struct {
	RoomID     string                 `json:"roomId"`
	Name       string                 `json:"name"`
	PlayerName string                 `json:"playerName"`
	HouseRules map[string]interface{} `json:"houseRules,omitempty"`
	Settings   map[string]interface{} `json:"settings,omitempty"`
}

// currentPlayer resolves the token's user as a player. The stored username wins over name.
func currentPlayer(r *http.Request, name string) (*models.Player, error) {
	userID, err := authenticate(r)
	if err != nil {
		return nil, err
	}
	u := &models.User{ID: userID, Username: name, IsEphemeral: true}
	if database.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		stored, err := database.GetUserByID(ctx, userID)
		cancel()
		if err == nil {
			stored.Password = ""
			u = stored
		}
	}
	if u.Username == "" {
		u.Username = "Guest"
	}
	return playerOf(u), nil
}

// roomFromRequest decodes the body and looks up its room.
func (gs *GameServer) roomFromRequest(w http.ResponseWriter, r *http.Request) (*lobby.Room, *roomRequest, bool) {
	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid room payload")
		return nil, nil, false
	}
	id, err := parseID("roomId", req.RoomID)
	if err != nil {
		badRequest(w, err.Error())
		return nil, nil, false
	}
	room, err := gs.Rooms.Lookup(id)
	if err != nil {
		writeError(w, err)
		return nil, nil, false
	}
	return room, &req, true
}

// CreateRoomHandler opens a room hosted by the caller: POST /api/room/create.
func CreateRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req roomRequest
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "bad room request payload")
			return
		}
		host, err := currentPlayer(r, req.PlayerName)
		if err != nil {
			writeError(w, err)
			return
		}

		room := gs.CreateRoom(host, req.Name)
		if req.HouseRules != nil || req.Settings != nil {
			update := map[string]interface{}{}
			if req.HouseRules != nil {
				update["houseRules"] = req.HouseRules
			}
			if req.Settings != nil {
				update["settings"] = req.Settings
			}
			if err := room.UpdateRules(host.ID, update); err != nil {
				gs.Rooms.DeleteRoom(room.ID)
				badRequest(w, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusCreated, room.Summary())
	}
}

// ListRoomsHandler lists every live room: GET /api/room/list.
func ListRoomsHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms := gs.Rooms.Rooms()
		out := make([]lobby.Summary, 0, len(rooms))
		for _, room := range rooms {
			out = append(out, room.Summary())
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GetRoomHandler describes one room: GET /api/room/{id}.
func GetRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			badRequest(w, "invalid room id")
			return
		}
		room, err := gs.Rooms.Lookup(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, room.Summary())
	}
}

// JoinRoomHandler seats the caller: POST /api/room/join.
func JoinRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, req, ok := gs.roomFromRequest(w, r)
		if !ok {
			return
		}
		p, err := currentPlayer(r, req.PlayerName)
		if err != nil {
			writeError(w, err)
			return
		}
		if _, err := gs.JoinRoom(room, p); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, room.Summary())
	}
}

// LeaveRoomHandler frees the caller's seat: POST /api/room/leave.
func LeaveRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, _, ok := gs.roomFromRequest(w, r)
		if !ok {
			return
		}
		userID, err := authenticate(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := gs.LeaveRoom(room, userID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// StartRoomHandler lets the host start a full room: POST /api/room/start.
func StartRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, _, ok := gs.roomFromRequest(w, r)
		if !ok {
			return
		}
		userID, err := authenticate(r)
		if err != nil {
			writeError(w, err)
			return
		}
		g, err := gs.StartGame(room, userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"gameId": g.ID, "room": room.Summary()})
	}
}

// UpdateRoomRulesHandler applies the host's rule changes: POST /api/room/rules.
func UpdateRoomRulesHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, req, ok := gs.roomFromRequest(w, r)
		if !ok {
			return
		}
		userID, err := authenticate(r)
		if err != nil {
			writeError(w, err)
			return
		}
		update := map[string]interface{}{}
		if req.HouseRules != nil {
			update["houseRules"] = req.HouseRules
		}
		if req.Settings != nil {
			update["settings"] = req.Settings
		}
		if err := room.UpdateRules(userID, update); err != nil {
			kind := errorKind(err)
			if statusFor(kind) == http.StatusInternalServerError {
				badRequest(w, err.Error())
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, room.Summary())
	}
}
