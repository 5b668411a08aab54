// internal/lobby/lobby.go
package lobby

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/engine"
	"github.com/jason-s-yu/mighty/internal/game"
	"github.com/jason-s-yu/mighty/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrRoomInGame   = errors.New("room is already playing")
	ErrNotHost      = errors.New("only the host can do that")
	ErrNotSeated    = errors.New("user is not seated in this room")
	ErrRoomNotReady = fmt.Errorf("a room needs %d seated players to start", engine.NumPlayers)
)

// Room is an ephemeral table of up to five seats. Its ID doubles as the game ID once
// play starts, and it holds the live WebSocket connections of its seats.
type Room struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	HostUserID uuid.UUID `json:"hostUserID"`
	CreatedAt  time.Time `json:"createdAt"`

	// Seats is in join order; index is the seat number at the table.
	Seats []*models.Player `json:"-"`

	// Connections holds the open event streams of seated users.
	Connections map[uuid.UUID]*Connection `json:"-"`

	HouseRules game.HouseRules `json:"houseRules"`
	Settings   Settings        `json:"settings"`

	InGame     bool                `json:"inGame"`
	starting   bool                // a start is being prepared outside the lock
	Deals      int                 `json:"deals"`
	LastResult *models.RoundResult `json:"lastResult,omitempty"`

	// OnEmpty is called after the last seat leaves, typically
	//   room.OnEmpty = func(id uuid.UUID) { store.DeleteRoom(id) }
	OnEmpty func(roomID uuid.UUID) `json:"-"`

	Mu sync.Mutex
}

// Settings are the room behaviors that are not game rules.
type Settings struct {
	AutoStart bool `json:"autoStart"` // start as soon as the fifth seat fills
}

// Connection is a single user's event stream.
type Connection struct {
	UserID  uuid.UUID
	Cancel  func()
	OutChan chan []byte
}

// NewConnection returns a connection with a buffered outbound queue.
func NewConnection(userID uuid.UUID, cancel func()) *Connection {
	return &Connection{UserID: userID, Cancel: cancel, OutChan: make(chan []byte, 64)}
}

// Write queues data without blocking. A full queue drops the message.
func (conn *Connection) Write(data []byte) bool {
	select {
	case conn.OutChan <- data:
		return true
	default:
		logrus.Warnf("connection for user %s is backed up, dropping message", conn.UserID)
		return false
	}
}

// NewRoomWithDefaults creates a room with host in seat 0.
func NewRoomWithDefaults(host *models.Player, name string, rules game.HouseRules, autoStart bool) *Room {
	id, _ := uuid.NewRandom()
	if name == "" {
		name = fmt.Sprintf("%s's table", host.Username)
	}
	seat := *host
	seat.Seat = 0
	return &Room{
		ID:          id,
		Name:        name,
		HostUserID:  host.ID,
		CreatedAt:   time.Now(),
		Seats:       []*models.Player{&seat},
		Connections: make(map[uuid.UUID]*Connection),
		HouseRules:  rules,
		Settings:    Settings{AutoStart: autoStart},
	}
}

func (r *Room) seatOfUnsafe(userID uuid.UUID) int {
	for i, p := range r.Seats {
		if p.ID == userID {
			return i
		}
	}
	return -1
}

// Join seats p in the next free seat. Joining twice returns the existing seat.
// full reports whether this join filled the table.
func (r *Room) Join(p *models.Player) (seat int, full bool, err error) {
	r.Mu.Lock()
	if seat = r.seatOfUnsafe(p.ID); seat >= 0 {
		r.Mu.Unlock()
		return seat, false, nil
	}
	if r.InGame || r.starting {
		r.Mu.Unlock()
		return -1, false, ErrRoomInGame
	}
	if len(r.Seats) >= engine.NumPlayers {
		r.Mu.Unlock()
		return -1, false, ErrRoomFull
	}

	joined := *p
	joined.Seat = len(r.Seats)
	r.Seats = append(r.Seats, &joined)
	seat = joined.Seat
	full = len(r.Seats) == engine.NumPlayers
	logrus.WithField("room_id", r.ID).Infof("user %s (%s) took seat %d", p.ID, p.Username, seat)
	msg := r.updatePayloadUnsafe("user_join", &joined)
	r.Mu.Unlock()

	r.Broadcast(msg)
	return seat, full, nil
}

// Leave frees the user's seat and closes their stream. Later seats move up one.
// If the room was playing, the returned id is the game that has to be aborted.
func (r *Room) Leave(userID uuid.UUID) (abortGame uuid.UUID, err error) {
	r.Mu.Lock()
	seat := r.seatOfUnsafe(userID)
	if seat < 0 {
		r.Mu.Unlock()
		return uuid.Nil, ErrNotSeated
	}
	left := r.Seats[seat]
	r.Seats = append(r.Seats[:seat], r.Seats[seat+1:]...)
	for i, p := range r.Seats {
		p.Seat = i
	}
	if conn, ok := r.Connections[userID]; ok {
		delete(r.Connections, userID)
		if conn.Cancel != nil {
			conn.Cancel()
		}
	}
	if r.InGame {
		abortGame = r.ID
		r.InGame = false
	}
	if userID == r.HostUserID && len(r.Seats) > 0 {
		r.HostUserID = r.Seats[0].ID
	}
	logrus.WithField("room_id", r.ID).Infof("user %s left seat %d", userID, seat)

	empty := len(r.Seats) == 0
	onEmpty := r.OnEmpty
	msg := r.updatePayloadUnsafe("user_left", left)
	r.Mu.Unlock()

	r.Broadcast(msg)
	if empty && onEmpty != nil {
		onEmpty(r.ID)
	}
	return abortGame, nil
}

// StartInfo is what a game needs from the room.
type StartInfo struct {
	Players []*models.Player
	Rules   game.HouseRules
}

// BeginStart reserves the room for a new game. byUser must be the host unless it is
// uuid.Nil (auto-start). Follow with MarkStarted or CancelStart.
func (r *Room) BeginStart(byUser uuid.UUID) (StartInfo, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if byUser != uuid.Nil && byUser != r.HostUserID {
		return StartInfo{}, ErrNotHost
	}
	if r.InGame || r.starting {
		return StartInfo{}, ErrRoomInGame
	}
	if len(r.Seats) != engine.NumPlayers {
		return StartInfo{}, ErrRoomNotReady
	}
	r.starting = true
	return StartInfo{Players: r.playersUnsafe(), Rules: r.HouseRules}, nil
}

// MarkStarted completes BeginStart.
func (r *Room) MarkStarted() {
	r.Mu.Lock()
	r.starting = false
	r.InGame = true
	msg := r.encodeUnsafe(map[string]interface{}{
		"type":    "game_start",
		"game_id": r.ID.String(),
	})
	r.Mu.Unlock()
	r.Broadcast(msg)
}

// CancelStart releases a reservation taken by BeginStart.
func (r *Room) CancelStart() {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.starting = false
}

// MarkFinished returns the room to the waiting state after its game ended.
func (r *Room) MarkFinished() {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.InGame = false
}

// RecordRound keeps the latest settled deal for the room summary.
func (r *Room) RecordRound(res models.RoundResult) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.Deals++
	r.LastResult = &res
}

// UpdateRules applies a partial update of {"houseRules": {...}, "settings": {...}} from the host.
func (r *Room) UpdateRules(byUser uuid.UUID, update map[string]interface{}) error {
	r.Mu.Lock()
	if byUser != r.HostUserID {
		r.Mu.Unlock()
		return ErrNotHost
	}
	if r.InGame || r.starting {
		r.Mu.Unlock()
		return ErrRoomInGame
	}

	rules := r.HouseRules
	if hr, ok := update["houseRules"].(map[string]interface{}); ok {
		if err := rules.Update(hr); err != nil {
			r.Mu.Unlock()
			return err
		}
	}
	settings := r.Settings
	if s, ok := update["settings"].(map[string]interface{}); ok {
		if v, exists := s["autoStart"]; exists {
			b, ok := v.(bool)
			if !ok {
				r.Mu.Unlock()
				return fmt.Errorf("invalid type for autoStart")
			}
			settings.AutoStart = b
		}
	}
	if rules == r.HouseRules && settings == r.Settings {
		r.Mu.Unlock()
		return nil
	}
	r.HouseRules, r.Settings = rules, settings
	msg := r.encodeUnsafe(map[string]interface{}{
		"type":       "room_rules_updated",
		"houseRules": r.HouseRules,
		"settings":   r.Settings,
	})
	r.Mu.Unlock()

	r.Broadcast(msg)
	return nil
}

// HasSeat reports whether userID holds a seat.
func (r *Room) HasSeat(userID uuid.UUID) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.seatOfUnsafe(userID) >= 0
}

// PlayerAt returns the id of the user in seat.
func (r *Room) PlayerAt(seat int) (uuid.UUID, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if seat < 0 || seat >= len(r.Seats) {
		return uuid.Nil, false
	}
	return r.Seats[seat].ID, true
}

// IsFull reports whether all five seats are taken.
func (r *Room) IsFull() bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return len(r.Seats) == engine.NumPlayers
}

// Players returns copies of the seated players in seat order.
func (r *Room) Players() []*models.Player {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.playersUnsafe()
}

func (r *Room) playersUnsafe() []*models.Player {
	out := make([]*models.Player, len(r.Seats))
	for i, p := range r.Seats {
		cp := *p
		out[i] = &cp
	}
	return out
}

// AddConnection registers a seated user's stream, replacing any older one.
func (r *Room) AddConnection(conn *Connection) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.seatOfUnsafe(conn.UserID) < 0 {
		return ErrNotSeated
	}
	if old, ok := r.Connections[conn.UserID]; ok && old != conn {
		logrus.WithField("room_id", r.ID).Infof("user %s replaced an open connection", conn.UserID)
		if old.Cancel != nil {
			old.Cancel()
		}
	}
	r.Connections[conn.UserID] = conn
	return nil
}

// RemoveConnection drops conn if it is still the user's current stream.
func (r *Room) RemoveConnection(conn *Connection) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if cur, ok := r.Connections[conn.UserID]; ok && cur == conn {
		delete(r.Connections, conn.UserID)
		return true
	}
	return false
}

// Broadcast queues data on every open stream.
func (r *Room) Broadcast(data []byte) {
	if data == nil {
		return
	}
	r.Mu.Lock()
	conns := make([]*Connection, 0, len(r.Connections))
	for _, c := range r.Connections {
		conns = append(conns, c)
	}
	r.Mu.Unlock()
	for _, c := range conns {
		c.Write(data)
	}
}

// SendTo queues data on one user's stream, if open.
func (r *Room) SendTo(userID uuid.UUID, data []byte) {
	r.Mu.Lock()
	conn := r.Connections[userID]
	r.Mu.Unlock()
	if conn != nil {
		conn.Write(data)
	}
}

// SeatSummary is one seat as listed to clients.
type SeatSummary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Seat     int       `json:"seat"`
	IsHost   bool      `json:"isHost"`
	Online   bool      `json:"online"`
}

// Summary is the public description of a room.
type Summary struct {
	ID         uuid.UUID           `json:"id"`
	Name       string              `json:"name"`
	HostUserID uuid.UUID           `json:"hostUserID"`
	Seats      []SeatSummary       `json:"seats"`
	Capacity   int                 `json:"capacity"`
	InGame     bool                `json:"inGame"`
	GameID     *uuid.UUID          `json:"gameId,omitempty"`
	HouseRules game.HouseRules     `json:"houseRules"`
	Settings   Settings            `json:"settings"`
	Deals      int                 `json:"deals"`
	LastResult *models.RoundResult `json:"lastResult,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
}

// Summary snapshots the room for listing.
func (r *Room) Summary() Summary {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.summaryUnsafe()
}

func (r *Room) summaryUnsafe() Summary {
	s := Summary{
		ID:         r.ID,
		Name:       r.Name,
		HostUserID: r.HostUserID,
		Capacity:   engine.NumPlayers,
		InGame:     r.InGame,
		HouseRules: r.HouseRules,
		Settings:   r.Settings,
		Deals:      r.Deals,
		LastResult: r.LastResult,
		CreatedAt:  r.CreatedAt,
	}
	if r.InGame {
		id := r.ID
		s.GameID = &id
	}
	for i, p := range r.Seats {
		_, online := r.Connections[p.ID]
		s.Seats = append(s.Seats, SeatSummary{
			ID:       p.ID,
			Username: p.Username,
			Seat:     i,
			IsHost:   p.ID == r.HostUserID,
			Online:   online,
		})
	}
	return s
}

// updatePayloadUnsafe encodes a room_update for who. Assumes lock is held.
func (r *Room) updatePayloadUnsafe(change string, who *models.Player) []byte {
	return r.encodeUnsafe(map[string]interface{}{
		"type":     "room_update",
		change:     who.ID.String(),
		"username": who.Username,
		"room":     r.summaryUnsafe(),
	})
}

func (r *Room) encodeUnsafe(msg map[string]interface{}) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		logrus.WithField("room_id", r.ID).Warnf("failed to marshal %v: %v", msg["type"], err)
		return nil
	}
	return data
}
