// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/engine"
	"github.com/jason-s-yu/mighty/internal/game"
	"github.com/jason-s-yu/mighty/internal/models"
)

var errBadCommand = errors.New("malformed command")

// playerRef is a playerId given either as a user id or as a seat number.
type playerRef struct {
	set    bool
	bySeat bool
	seat   int
	id     uuid.UUID
}

func parsePlayerRef(v string) (playerRef, error) {
	if v == "" {
		return playerRef{}, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return playerRef{set: true, bySeat: true, seat: n}, nil
	}
	id, err := parseID("playerId", v)
	if err != nil {
		return playerRef{}, fmt.Errorf("%w: %v", errBadCommand, err)
	}
	return playerRef{set: true, id: id}, nil
}

func (p *playerRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = playerRef{}
		return nil
	}
	var seat int
	if err := json.Unmarshal(data, &seat); err == nil {
		*p = playerRef{set: true, bySeat: true, seat: seat}
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("playerId must be a user id or a seat number")
	}
	ref, err := parsePlayerRef(str)
	if err != nil {
		return err
	}
	*p = ref
	return nil
}

// resolve names the user p refers to, reading seats through holder.
func (p playerRef) resolve(holder func(seat int) (uuid.UUID, bool)) (uuid.UUID, error) {
	if !p.bySeat {
		return p.id, nil
	}
	id, ok := holder(p.seat)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: no player in seat %d", engine.ErrUnknownPlayer, p.seat)
	}
	return id, nil
}

// commandRequest is the body of every game command, over REST and WebSocket alike.
// gameId and roomId are interchangeable: a game has the id of the room that started it.
// bidType, cards and bid are the web client's names for quantity, discardedCards and
// bidQuantity.
type commandRequest struct {
	GameID   string    `json:"gameId,omitempty"`
	RoomID   string    `json:"roomId,omitempty"`
	PlayerID playerRef `json:"playerId"`

	Quantity  int         `json:"quantity,omitempty"`
	BidType   int         `json:"bidType,omitempty"`
	TrumpSuit engine.Suit `json:"trumpSuit,omitempty"`

	DiscardedCards []engine.Card `json:"discardedCards,omitempty"`
	Cards          []engine.Card `json:"cards,omitempty"`
	TrumpType      engine.Suit   `json:"trumpType,omitempty"`
	BidQuantity    int           `json:"bidQuantity,omitempty"`
	Bid            int           `json:"bid,omitempty"`

	FriendType *engine.FriendMode `json:"friendType,omitempty"`
	FriendCard *engine.Card       `json:"friendCard,omitempty"`

	Card          *engine.Card `json:"card,omitempty"`
	JokerCall     bool         `json:"jokerCall,omitempty"`
	JokerCallSuit engine.Suit  `json:"jokerCallSuit,omitempty"`
}

func (req *commandRequest) tableID() (uuid.UUID, error) {
	if req.GameID != "" {
		return parseID("gameId", req.GameID)
	}
	return parseID("gameId", req.RoomID)
}

func firstSet(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func (req *commandRequest) discards() []engine.Card {
	if len(req.DiscardedCards) > 0 {
		return req.DiscardedCards
	}
	return req.Cards
}

// runCommand dispatches one named command to g.
func runCommand(g *game.MightyGame, playerID uuid.UUID, action string, req *commandRequest) error {
	switch action {
	case "bid":
		return g.PlaceBid(playerID, firstSet(req.Quantity, req.BidType), req.TrumpSuit)
	case "pass":
		return g.PassBid(playerID)
	case "dealmiss", "deal_miss":
		return g.DeclareDealMiss(playerID)
	case "tablecards", "table_cards":
		return g.SetTableCards(playerID, req.discards(), req.TrumpType, firstSet(req.BidQuantity, req.Bid))
	case "friend":
		if req.FriendType == nil {
			return fmt.Errorf("%w: friendType is required", errBadCommand)
		}
		return g.SelectFriend(playerID, *req.FriendType, req.FriendCard)
	case "draw", "play":
		if req.Card == nil {
			return fmt.Errorf("%w: card is required", errBadCommand)
		}
		return g.PlayCard(playerID, *req.Card, req.JokerCall, req.JokerCallSuit)
	case "next":
		return g.NextDeal(playerID)
	}
	return fmt.Errorf("%w: unknown command %q", errBadCommand, action)
}

// checkPlayer verifies that the token's user is the player ref names.
// An omitted playerId means the token's own player.
func checkPlayer(userID uuid.UUID, ref playerRef, holder func(seat int) (uuid.UUID, bool)) (uuid.UUID, error) {
	if !ref.set {
		return userID, nil
	}
	id, err := ref.resolve(holder)
	if err != nil {
		return uuid.Nil, err
	}
	if id != userID {
		return uuid.Nil, errWrongPlayer
	}
	return id, nil
}

// CommandHandler serves one game command: POST /api/game/{bid,pass,dealmiss,tablecards,friend,draw,next}.
// It answers with the caller's snapshot after the command committed.
func CommandHandler(gs *GameServer, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req commandRequest
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid command payload: "+err.Error())
			return
		}
		gameID, err := req.tableID()
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		userID, err := authenticate(r)
		if err != nil {
			writeError(w, err)
			return
		}
		g, err := gs.Games.Lookup(gameID)
		if err != nil {
			writeError(w, err)
			return
		}
		playerID, err := checkPlayer(userID, req.PlayerID, g.PlayerAt)
		if err != nil {
			writeError(w, err)
			return
		}

		if err := runCommand(g, playerID, action, &req); err != nil {
			writeError(w, err)
			return
		}
		snap, err := g.Snapshot(playerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "state": snap})
	}
}

type seatResponse struct {
	RoomID   uuid.UUID `json:"roomId"`
	GameID   uuid.UUID `json:"gameId"`
	PlayerID uuid.UUID `json:"playerId"`
	Seat     int       `json:"seat"`
	Token    string    `json:"token"`
	Started  bool      `json:"started"`
}

// CreateGameHandler opens a new table with the caller in seat 0: POST /api/game/create.
func CreateGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PlayerName string `json:"playerName"`
			RoomName   string `json:"roomName"`
		}
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid payload")
			return
		}
		user, token, err := EnsureEphemeralUser(w, r, req.PlayerName)
		if err != nil {
			gs.Logger.Errorf("create game: %v", err)
			http.Error(w, "could not create player", http.StatusInternalServerError)
			return
		}

		room := gs.CreateRoom(playerOf(user), req.RoomName)
		writeJSON(w, http.StatusCreated, seatResponse{
			RoomID:   room.ID,
			GameID:   room.ID,
			PlayerID: user.ID,
			Seat:     0,
			Token:    token,
		})
	}
}

// JoinGameHandler seats the caller at an open table: POST /api/game/join.
func JoinGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			commandRequest
			PlayerName string `json:"playerName"`
		}
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid payload")
			return
		}
		roomID, err := req.tableID()
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		room, err := gs.Rooms.Lookup(roomID)
		if err != nil {
			writeError(w, err)
			return
		}
		user, token, err := EnsureEphemeralUser(w, r, req.PlayerName)
		if err != nil {
			gs.Logger.Errorf("join game: %v", err)
			http.Error(w, "could not create player", http.StatusInternalServerError)
			return
		}

		seat, err := gs.JoinRoom(room, playerOf(user))
		if err != nil {
			writeError(w, err)
			return
		}
		_, started := gs.Games.GetGame(room.ID)
		writeJSON(w, http.StatusOK, seatResponse{
			RoomID:   room.ID,
			GameID:   room.ID,
			PlayerID: user.ID,
			Seat:     seat,
			Token:    token,
			Started:  started,
		})
	}
}

// GameStateHandler returns the caller's redacted snapshot: GET /api/game/state/{roomId}?playerId=.
// Before the game starts it returns the room instead.
func GameStateHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, err := parseID("roomId", r.PathValue("roomId"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		userID, err := authenticate(r)
		if err != nil {
			writeError(w, err)
			return
		}
		ref, err := parsePlayerRef(r.URL.Query().Get("playerId"))
		if err != nil {
			writeError(w, err)
			return
		}

		if g, ok := gs.Games.GetGame(roomID); ok {
			playerID, err := checkPlayer(userID, ref, g.PlayerAt)
			if err != nil {
				writeError(w, err)
				return
			}
			snap, err := g.Snapshot(playerID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, snap)
			return
		}

		room, err := gs.Rooms.Lookup(roomID)
		if err != nil {
			writeError(w, game.ErrGameNotFound)
			return
		}
		playerID, err := checkPlayer(userID, ref, room.PlayerAt)
		if err != nil {
			writeError(w, err)
			return
		}
		if !room.HasSeat(playerID) {
			writeError(w, fmt.Errorf("%w: %s", engine.ErrUnknownPlayer, playerID))
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"phase": engine.PhaseWaiting,
			"room":  room.Summary(),
		})
	}
}

func playerOf(u *models.User) *models.Player {
	return &models.Player{ID: u.ID, Username: u.Username, User: u}
}
