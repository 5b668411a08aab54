// internal/handlers/game_server.go
package handlers

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/game"
	"github.com/jason-s-yu/mighty/internal/lobby"
	"github.com/jason-s-yu/mighty/internal/models"
	"github.com/sirupsen/logrus"
)

// GameServer is a high-level struct that holds the rooms and the live games they spawned.
type GameServer struct {
	Rooms *lobby.RoomStore
	Games *game.GameStore

	Logger    *logrus.Logger
	Publisher game.EventPublisher

	// DefaultRules seed every new room.
	DefaultRules game.HouseRules
	AutoStart    bool

	// Seed returns the shuffle seed of a new game.
	Seed func() int64
}

func NewGameServer(logger *logrus.Logger, rules game.HouseRules, autoStart bool) *GameServer {
	return &GameServer{
		Rooms:        lobby.NewRoomStore(),
		Games:        game.NewGameStore(),
		Logger:       logger,
		DefaultRules: rules,
		AutoStart:    autoStart,
		Seed:         func() int64 { return time.Now().UnixNano() },
	}
}

// CreateRoom seats host in a new room and stores it.
func (gs *GameServer) CreateRoom(host *models.Player, name string) *lobby.Room {
	room := lobby.NewRoomWithDefaults(host, name, gs.DefaultRules, gs.AutoStart)
	room.OnEmpty = func(roomID uuid.UUID) {
		gs.Rooms.DeleteRoom(roomID)
	}
	gs.Rooms.AddRoom(room)
	gs.Logger.WithField("room_id", room.ID).Infof("room created by %s", host.ID)
	return room
}

// JoinRoom seats p and starts the game when the fifth seat fills in an auto-start room.
func (gs *GameServer) JoinRoom(room *lobby.Room, p *models.Player) (int, error) {
	seat, full, err := room.Join(p)
	if err != nil {
		return -1, err
	}
	if full && room.Summary().Settings.AutoStart {
		if _, err := gs.StartGame(room, uuid.Nil); err != nil {
			gs.Logger.WithField("room_id", room.ID).Warnf("auto-start failed: %v", err)
		}
	}
	return seat, nil
}

// LeaveRoom frees the seat and aborts the room's game if one was running.
func (gs *GameServer) LeaveRoom(room *lobby.Room, userID uuid.UUID) error {
	abortID, err := room.Leave(userID)
	if err != nil {
		return err
	}
	if abortID != uuid.Nil {
		if g, ok := gs.Games.GetGame(abortID); ok {
			g.Abort(fmt.Sprintf("player %s left the table", userID))
		}
	}
	return nil
}

// StartGame creates a MightyGame for a full room, wires it to the room's connections
// and deals the first hand. byUser is the requesting host, or uuid.Nil for auto-start.
func (gs *GameServer) StartGame(room *lobby.Room, byUser uuid.UUID) (*game.MightyGame, error) {
	info, err := room.BeginStart(byUser)
	if err != nil {
		return nil, err
	}

	g, err := game.NewMightyGame(room.ID, info.Players, info.Rules, gs.Seed())
	if err != nil {
		room.CancelStart()
		return nil, err
	}
	g.SetLogger(gs.Logger)
	g.BroadcastFn = func(ev game.GameEvent) {
		room.Broadcast(game.EncodeEvent(ev))
	}
	g.BroadcastToPlayerFn = func(playerID uuid.UUID, ev game.GameEvent) {
		room.SendTo(playerID, game.EncodeEvent(ev))
	}
	if gs.Publisher != nil {
		g.Publisher = gs.Publisher
	}
	g.OnRoundEnd = func(gameID uuid.UUID, res models.RoundResult) {
		room.RecordRound(res)
		gs.Logger.WithFields(logrus.Fields{
			"game_id": gameID,
			"deal":    res.Deal,
			"success": res.Success,
		}).Info("round recorded")
	}
	g.OnAbort = func(gameID uuid.UUID) {
		gs.Games.DeleteGame(gameID)
		room.MarkFinished()
	}

	gs.Games.AddGame(g)
	room.MarkStarted()
	if err := g.Start(); err != nil {
		gs.Games.DeleteGame(g.ID)
		room.MarkFinished()
		return nil, err
	}
	return g, nil
}

// Shutdown aborts every live game.
func (gs *GameServer) Shutdown(reason string) {
	for _, room := range gs.Rooms.Rooms() {
		if g, ok := gs.Games.GetGame(room.ID); ok {
			g.Abort(reason)
		}
	}
}
