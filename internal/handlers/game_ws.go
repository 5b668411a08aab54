// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/game"
	"github.com/jason-s-yu/mighty/internal/lobby"
	"github.com/jason-s-yu/mighty/internal/middleware"
	"github.com/sirupsen/logrus"
)

const wsSubprotocol = "mighty"

// wsMessage is one client frame. Command fields sit at the top level next to type.
type wsMessage struct {
	Type string `json:"type"`
	commandRequest

	HouseRules map[string]interface{} `json:"houseRules,omitempty"`
	Settings   map[string]interface{} `json:"settings,omitempty"`
}

// GameWSHandler upgrades a seated player's connection for a room and its game:
// GET /api/game/ws/{gameId}. The path id is the room id, which is also the game id.
func GameWSHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, err := uuid.Parse(r.PathValue("gameId"))
		if err != nil {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}
		room, ok := gs.Rooms.GetRoom(roomID)
		if !ok {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{wsSubprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			gs.Logger.Warnf("websocket accept error for room %s: %v", roomID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "internal server error")

		if c.Subprotocol() != wsSubprotocol {
			c.Close(BadSubprotocolError, "client must use the mighty subprotocol")
			return
		}
		userID, err := authenticate(r)
		if err != nil {
			c.Close(InvalidAuthTokenError, "invalid auth token")
			return
		}
		if !room.HasSeat(userID) {
			c.Close(NotSeatedError, "you are not seated at this table")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		conn := lobby.NewConnection(userID, cancel)
		if err := room.AddConnection(conn); err != nil {
			c.Close(NotSeatedError, err.Error())
			return
		}
		middleware.LogWebSocketConnect(gs.Logger, r.RemoteAddr, r.URL.Path)
		log := gs.Logger.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})

		go writePump(ctx, c, conn, log)

		if g, ok := gs.Games.GetGame(roomID); ok {
			g.HandleReconnect(userID)
		} else {
			sendWsMessage(conn, map[string]interface{}{"type": "room_state", "room": room.Summary()})
		}

		readErr := readPump(ctx, c, gs, room, conn, log)

		if room.RemoveConnection(conn) {
			if g, ok := gs.Games.GetGame(roomID); ok {
				g.HandleDisconnect(userID)
			}
		}
		middleware.LogWebSocketDisconnect(gs.Logger, r.RemoteAddr, r.URL.Path, readErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// writePump drains the connection's queue onto the socket and keeps it alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *lobby.Connection, log *logrus.Entry) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-conn.OutChan:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				log.Debugf("write failed: %v", err)
				conn.Cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Debugf("ping failed: %v", err)
				conn.Cancel()
				return
			}
		}
	}
}

// readPump handles client frames until the socket closes or the player leaves.
// It returns the read error, or nil on an orderly close.
func readPump(ctx context.Context, c *websocket.Conn, gs *GameServer, room *lobby.Room, conn *lobby.Connection, log *logrus.Entry) error {
	userID := conn.UserID
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWsError(conn, "bad_request", "invalid JSON")
			continue
		}
		log.Tracef("received %q", msg.Type)

		switch msg.Type {
		case "ping":
			sendWsMessage(conn, map[string]string{"type": "pong"})

		case "state":
			if g, ok := gs.Games.GetGame(room.ID); ok {
				snap, err := g.Snapshot(userID)
				if err != nil {
					replyError(conn, err)
					continue
				}
				sendWsMessage(conn, game.GameEvent{Type: game.EventGameStateSnapshot, State: &snap})
			} else {
				sendWsMessage(conn, map[string]interface{}{"type": "room_state", "room": room.Summary()})
			}

		case "start":
			if _, err := gs.StartGame(room, userID); err != nil {
				replyError(conn, err)
			}

		case "update_rules":
			update := map[string]interface{}{}
			if msg.HouseRules != nil {
				update["houseRules"] = msg.HouseRules
			}
			if msg.Settings != nil {
				update["settings"] = msg.Settings
			}
			if err := room.UpdateRules(userID, update); err != nil {
				replyError(conn, err)
			}

		case "leave":
			if err := gs.LeaveRoom(room, userID); err != nil {
				replyError(conn, err)
				continue
			}
			return nil

		default:
			g, ok := gs.Games.GetGame(room.ID)
			if !ok {
				replyError(conn, game.ErrGameNotFound)
				continue
			}
			err := runCommand(g, userID, msg.Type, &msg.commandRequest)
			if err != nil && !game.Notified(err) {
				replyError(conn, err)
			}
		}
	}
}

func replyError(conn *lobby.Connection, err error) {
	sendWsError(conn, errorKind(err), err.Error())
}

// sendWsMessage marshals message onto the connection's queue.
func sendWsMessage(conn *lobby.Connection, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("marshal websocket message: %v", err)
		return
	}
	conn.Write(data)
}

// sendWsError sends an error event shaped like the ones the game emits.
func sendWsError(conn *lobby.Connection, kind, message string) {
	sendWsMessage(conn, game.GameEvent{
		Type:    game.EventError,
		Payload: map[string]interface{}{"kind": kind, "message": message},
	})
}
