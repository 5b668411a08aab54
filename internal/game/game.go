// internal/game/game.go
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/cache"
	"github.com/jason-s-yu/mighty/internal/database"
	"github.com/jason-s-yu/mighty/internal/engine"
	"github.com/jason-s-yu/mighty/internal/models"
	"github.com/sirupsen/logrus"
)

// GameEventType is the "type" field of every message sent to clients.
type GameEventType string

const (
	EventGameStateSnapshot GameEventType = "game_state_snapshot" // private, redacted per viewer
	EventDealStarted       GameEventType = "deal_started"
	EventBidPlaced         GameEventType = "bid_placed"
	EventBidPassed         GameEventType = "bid_passed"
	EventDealMissDeclared  GameEventType = "deal_miss_declared"
	EventRedealt           GameEventType = "redealt"
	EventMasterDecided     GameEventType = "master_decided"
	EventKittyDealt        GameEventType = "kitty_dealt" // private to the master
	EventTableCardsSet     GameEventType = "table_cards_set"
	EventFriendSelected    GameEventType = "friend_selected"
	EventFriendRevealed    GameEventType = "friend_revealed"
	EventCardPlayed        GameEventType = "card_played"
	EventTrickResolved     GameEventType = "trick_resolved"
	EventRoundResult       GameEventType = "round_result"
	EventPlayerTurn        GameEventType = "player_turn"
	EventPlayerConnection  GameEventType = "player_connection"
	EventGameAborted       GameEventType = "game_aborted"
	EventError             GameEventType = "error" // private to the rejected player
)

// EventUser identifies the seat an event is about.
type EventUser struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username,omitempty"`
	Seat     int       `json:"seat"`
}

// GameEvent holds data about an event that can be broadcast to the clients in a consistent format.
type GameEvent struct {
	Type   GameEventType `json:"type"`
	User   *EventUser    `json:"user,omitempty"`
	Card   *engine.Card  `json:"card,omitempty"`
	Cards  []engine.Card `json:"cards,omitempty"`
	Bid    *engine.Bid   `json:"bid,omitempty"`
	Forced bool          `json:"forced,omitempty"`

	Payload map[string]interface{} `json:"payload,omitempty"`

	State *ObfGameState `json:"state,omitempty"`
}

var (
	ErrGameOver       = errors.New("game is over")
	ErrAlreadyStarted = errors.New("game already started")
	ErrTableNotFull   = fmt.Errorf("a table needs exactly %d players", engine.NumPlayers)
)

// OnRoundEndFunc receives each settled deal after its events have been delivered.
// It runs on the delivery path and must not call back into the game.
type OnRoundEndFunc func(gameID uuid.UUID, result models.RoundResult)

// EventPublisher mirrors public events to an external bus.
type EventPublisher interface {
	PublishGameEvent(gameID uuid.UUID, ev any) error
}

// outbound is one queued delivery. A nil to broadcasts; fn, when set, runs instead.
type outbound struct {
	to uuid.UUID
	ev GameEvent
	fn func()
}

// MightyGame is one live table: the engine state plus the plumbing around it.
type MightyGame struct {
	ID         uuid.UUID // same as the room that spawned it
	HouseRules HouseRules
	Players    []*models.Player // indexed by seat

	TurnDuration time.Duration
	Started      bool
	GameOver     bool
	CreatedAt    time.Time

	state       *engine.State
	seq         int // bumped on every commit; turn timers carry the value they were armed with
	turnTimer   *time.Timer
	actionIndex int
	lastRecord  int // last deal handed to persistence

	// Mu guards every field above. sendMu is taken before Mu is released so deliveries
	// leave in commit order without holding the state lock during I/O.
	Mu     sync.Mutex
	sendMu sync.Mutex

	// BroadcastFn is used to send events to all players. If nil, no broadcast is done.
	BroadcastFn func(ev GameEvent)

	// BroadcastToPlayerFn sends an event to a single specific player.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)

	Publisher  EventPublisher
	OnRoundEnd OnRoundEndFunc
	OnAbort    func(gameID uuid.UUID)

	logger *logrus.Entry
}

// NewMightyGame seats exactly five players in the given order and prepares a deal
// seeded by seed. Call Start to deal the first hand.
func NewMightyGame(id uuid.UUID, players []*models.Player, rules HouseRules, seed int64) (*MightyGame, error) {
	if len(players) != engine.NumPlayers {
		return nil, ErrTableNotFull
	}
	seen := make(map[uuid.UUID]bool, len(players))
	for _, p := range players {
		if p == nil || p.ID == uuid.Nil || seen[p.ID] {
			return nil, fmt.Errorf("players must be distinct and non-empty")
		}
		seen[p.ID] = true
	}

	st, err := engine.NewState(rules.EngineRules(), seed)
	if err != nil {
		return nil, fmt.Errorf("invalid house rules: %w", err)
	}

	seated := make([]*models.Player, len(players))
	for i, p := range players {
		cp := *p
		cp.Seat = i
		seated[i] = &cp
	}

	return &MightyGame{
		ID:           id,
		HouseRules:   rules,
		Players:      seated,
		TurnDuration: time.Duration(rules.TurnTimerSec) * time.Second,
		CreatedAt:    time.Now(),
		state:        st,
		logger:       logrus.WithField("game_id", id),
	}, nil
}

// SetLogger replaces the default logrus entry.
func (g *MightyGame) SetLogger(l *logrus.Logger) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.logger = l.WithField("game_id", g.ID)
}

// run executes fn under Mu and delivers whatever it queued after the lock is released.
func (g *MightyGame) run(fn func() ([]outbound, error)) error {
	g.Mu.Lock()
	out, err := fn()
	g.sendMu.Lock()
	g.Mu.Unlock()
	defer g.sendMu.Unlock()
	g.deliver(out)
	return err
}

func (g *MightyGame) deliver(out []outbound) {
	for _, o := range out {
		switch {
		case o.fn != nil:
			o.fn()
		case o.to == uuid.Nil:
			g.fireEvent(o.ev)
		default:
			g.fireEventToPlayer(o.to, o.ev)
		}
	}
}

// fireEvent broadcasts an event to every connection on the table and the bus.
func (g *MightyGame) fireEvent(ev GameEvent) {
	if g.BroadcastFn != nil {
		g.BroadcastFn(ev)
	}
	if g.Publisher != nil {
		if err := g.Publisher.PublishGameEvent(g.ID, ev); err != nil {
			g.logger.Warnf("publish %s: %v", ev.Type, err)
		}
	}
}

// fireEventToPlayer sends an event only to a specific player.
func (g *MightyGame) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	if g.BroadcastToPlayerFn != nil {
		g.BroadcastToPlayerFn(playerID, ev)
	}
}

// Start deals the first hand. Assumes lock is not held.
func (g *MightyGame) Start() error {
	return g.run(func() ([]outbound, error) {
		if g.GameOver {
			return nil, ErrGameOver
		}
		if g.Started {
			return nil, ErrAlreadyStarted
		}
		g.Started = true
		g.logger.Infof("starting game with %d players", len(g.Players))
		g.markInProgress()
		return g.applyLocked(uuid.Nil, 0, engine.StartDeal{})
	})
}

// PlaceBid raises the auction for the caller's seat.
func (g *MightyGame) PlaceBid(playerID uuid.UUID, quantity int, trump engine.Suit) error {
	return g.command(playerID, engine.PlaceBid{Quantity: quantity, Trump: trump})
}

// PassBid drops the caller out of the auction.
func (g *MightyGame) PassBid(playerID uuid.UUID) error {
	return g.command(playerID, engine.PassBid{})
}

// DeclareDealMiss claims a redeal for a weak hand.
func (g *MightyGame) DeclareDealMiss(playerID uuid.UUID) error {
	return g.command(playerID, engine.DeclareDealMiss{})
}

// SetTableCards buries the master's discards and fixes the final contract.
func (g *MightyGame) SetTableCards(playerID uuid.UUID, discards []engine.Card, trump engine.Suit, quantity int) error {
	return g.command(playerID, engine.SetTableCards{Discards: discards, Trump: trump, Quantity: quantity})
}

// SelectFriend records how the master's partner is chosen.
func (g *MightyGame) SelectFriend(playerID uuid.UUID, mode engine.FriendMode, card *engine.Card) error {
	return g.command(playerID, engine.SelectFriend{Mode: mode, Card: card})
}

// PlayCard plays one card into the current trick.
func (g *MightyGame) PlayCard(playerID uuid.UUID, card engine.Card, jokerCall bool, jokerCallSuit engine.Suit) error {
	return g.command(playerID, engine.PlayCard{Card: card, JokerCall: jokerCall, JokerCallSuit: jokerCallSuit})
}

// NextDeal starts the following deal once a round has been settled. Any seat may call it.
func (g *MightyGame) NextDeal(playerID uuid.UUID) error {
	return g.command(playerID, engine.StartDeal{})
}

func (g *MightyGame) command(playerID uuid.UUID, cmd engine.Command) error {
	return g.run(func() ([]outbound, error) {
		seat, err := g.seatOf(playerID)
		if err != nil {
			return nil, err
		}
		return g.applyLocked(playerID, seat, cmd)
	})
}

// applyLocked runs one engine command and queues its fallout. Assumes lock is held.
func (g *MightyGame) applyLocked(actorID uuid.UUID, seat int, cmd engine.Command) ([]outbound, error) {
	if g.GameOver {
		return nil, ErrGameOver
	}
	if !g.Started {
		return nil, fmt.Errorf("%w: game has not started", engine.ErrPhaseMismatch)
	}

	log := g.logger.WithFields(logrus.Fields{"seat": seat, "action": cmd.CommandName()})
	next, events, err := engine.Apply(g.state, seat, cmd)
	if err != nil {
		log.Debugf("rejected: %v", err)
		if actorID == uuid.Nil {
			return nil, err
		}
		return []outbound{{to: actorID, ev: errorEvent(err)}}, notifiedError{err}
	}

	g.state = next
	g.seq++
	g.logAction(actorID, cmd.CommandName(), commandPayload(cmd))
	log.Tracef("applied, %d events, phase %s", len(events), next.Phase.Name())

	out := make([]outbound, 0, len(events)+len(g.Players)+2)
	for _, e := range events {
		ev := g.toGameEvent(e)
		if e.Public() {
			out = append(out, outbound{ev: ev})
		} else {
			out = append(out, outbound{to: g.Players[e.PrivateTo].ID, ev: ev})
		}
	}
	out = append(out, g.snapshotsLocked()...)
	if turn, ok := g.turnEventLocked(); ok {
		out = append(out, outbound{ev: turn})
	}
	g.scheduleTurnTimer()

	if res, ok := next.Phase.(engine.Result); ok && g.lastRecord < next.Deal {
		g.lastRecord = next.Deal
		out = append(out, g.finishRoundLocked(res.Outcome)...)
	}
	return out, nil
}

func (g *MightyGame) seatOf(playerID uuid.UUID) (int, error) {
	for _, p := range g.Players {
		if p.ID == playerID {
			return p.Seat, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", engine.ErrUnknownPlayer, playerID)
}

// PlayerAt returns the id of the player in seat.
func (g *MightyGame) PlayerAt(seat int) (uuid.UUID, bool) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if seat < 0 || seat >= len(g.Players) {
		return uuid.Nil, false
	}
	return g.Players[seat].ID, true
}

// HasPlayer reports whether playerID holds a seat.
func (g *MightyGame) HasPlayer(playerID uuid.UUID) bool {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	_, err := g.seatOf(playerID)
	return err == nil
}

// scheduleTurnTimer arms a deadline for whoever is expected to act. Assumes lock is held.
func (g *MightyGame) scheduleTurnTimer() {
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}
	if g.TurnDuration <= 0 || g.GameOver || g.state.CurrentTurn() < 0 {
		return
	}
	delay := g.TurnDuration
	if p, ok := g.state.Phase.(engine.Playing); ok && len(p.Trick.Plays) == 0 && len(g.state.Completed) > 0 {
		// clients are still showing the previous trick
		delay += time.Duration(g.HouseRules.TrickClearDelayMs) * time.Millisecond
	}
	seq := g.seq
	g.turnTimer = time.AfterFunc(delay, func() {
		g.handleTimeout(seq)
	})
}

// handleTimeout forces the stalled seat's move unless the timer has gone stale.
func (g *MightyGame) handleTimeout(seq int) {
	_ = g.run(func() ([]outbound, error) {
		if g.GameOver || seq != g.seq {
			g.logger.Debugf("stale timer for action %d (now %d), ignoring", seq, g.seq)
			return nil, nil
		}
		seat := g.state.CurrentTurn()
		cmd := forcedCommand(g.state)
		if seat < 0 || cmd == nil {
			return nil, nil
		}
		playerID := g.Players[seat].ID
		g.logger.WithField("seat", seat).Infof("turn timed out, forcing %s", cmd.CommandName())
		g.logAction(playerID, "player_timeout", nil)
		out, err := g.applyLocked(playerID, seat, cmd)
		if err != nil {
			g.logger.Errorf("forced %s failed: %v", cmd.CommandName(), err)
		}
		return out, err
	})
}

// forcedCommand picks the fallback for the phase s is in.
func forcedCommand(s *engine.State) engine.Command {
	switch s.Phase.(type) {
	case engine.Bidding:
		return engine.ForcePass{}
	case engine.TableCards:
		return engine.ForceDiscardRandom{}
	case engine.FriendSelect:
		return engine.SelectFriend{Mode: engine.FriendFirstTrickWinner}
	case engine.Playing:
		return engine.ForcePlay{}
	}
	return nil
}

// turnEventLocked announces whose move it is. Assumes lock is held.
func (g *MightyGame) turnEventLocked() (GameEvent, bool) {
	seat := g.state.CurrentTurn()
	if seat < 0 {
		return GameEvent{}, false
	}
	payload := map[string]interface{}{
		"phase": g.state.Phase.Name(),
		"turn":  g.seq,
	}
	if g.TurnDuration > 0 {
		payload["deadline"] = time.Now().Add(g.TurnDuration).UnixMilli()
	}
	return GameEvent{Type: EventPlayerTurn, User: g.eventUser(seat), Payload: payload}, true
}

// snapshotsLocked queues each seat's own redacted view. Assumes lock is held.
func (g *MightyGame) snapshotsLocked() []outbound {
	out := make([]outbound, 0, len(g.Players))
	for _, p := range g.Players {
		st := g.GetCurrentObfuscatedGameState(p.ID)
		out = append(out, outbound{to: p.ID, ev: GameEvent{Type: EventGameStateSnapshot, State: &st}})
	}
	return out
}

// Snapshot returns the caller's redacted view of the table.
func (g *MightyGame) Snapshot(playerID uuid.UUID) (ObfGameState, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if _, err := g.seatOf(playerID); err != nil {
		return ObfGameState{}, err
	}
	return g.GetCurrentObfuscatedGameState(playerID), nil
}

// EngineState returns a copy of the committed engine state.
func (g *MightyGame) EngineState() *engine.State {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.state.Clone()
}

// HandleDisconnect marks the player offline. Play continues; timers cover their turns.
func (g *MightyGame) HandleDisconnect(playerID uuid.UUID) {
	g.setConnected(playerID, false)
}

// HandleReconnect marks the player online and resends their snapshot.
func (g *MightyGame) HandleReconnect(playerID uuid.UUID) {
	g.setConnected(playerID, true)
}

func (g *MightyGame) setConnected(playerID uuid.UUID, connected bool) {
	_ = g.run(func() ([]outbound, error) {
		seat, err := g.seatOf(playerID)
		if err != nil {
			g.logger.Warnf("connection change for unseated player %s", playerID)
			return nil, err
		}
		g.Players[seat].Connected = connected
		action := "player_disconnect"
		if connected {
			action = "player_reconnect"
		}
		g.logAction(playerID, action, nil)

		out := []outbound{{ev: GameEvent{
			Type:    EventPlayerConnection,
			User:    g.eventUser(seat),
			Payload: map[string]interface{}{"connected": connected},
		}}}
		if connected {
			st := g.GetCurrentObfuscatedGameState(playerID)
			out = append(out, outbound{to: playerID, ev: GameEvent{Type: EventGameStateSnapshot, State: &st}})
		}
		return out, nil
	})
}

// Abort ends the session in whatever phase it is in. Safe to call more than once.
func (g *MightyGame) Abort(reason string) {
	var onAbort func(uuid.UUID)
	_ = g.run(func() ([]outbound, error) {
		if g.GameOver {
			return nil, nil
		}
		g.GameOver = true
		g.seq++
		if g.turnTimer != nil {
			g.turnTimer.Stop()
			g.turnTimer = nil
		}
		g.logger.Infof("game aborted: %s", reason)
		g.logAction(uuid.Nil, "game_aborted", map[string]interface{}{"reason": reason})
		g.setStatus("abandoned")
		onAbort = g.OnAbort
		return []outbound{{ev: GameEvent{
			Type:    EventGameAborted,
			Payload: map[string]interface{}{"reason": reason},
		}}}, nil
	})
	if onAbort != nil {
		onAbort(g.ID)
	}
}

// finishRoundLocked queues persistence and the round callback. Assumes lock is held.
func (g *MightyGame) finishRoundLocked(out engine.Outcome) []outbound {
	res := models.RoundResult{
		GameID:      g.ID,
		Deal:        g.state.Deal,
		MasterSeat:  out.Master,
		FriendSeat:  out.Friend,
		BidQuantity: out.Bid.Quantity,
		Trump:       out.Bid.Trump.String(),
		Success:     out.Success,
		TeamPoints:  out.TeamPoints,
	}
	for seat, p := range g.Players {
		res.Seats = append(res.Seats, models.SeatResult{
			UserID: p.ID,
			Seat:   seat,
			Points: out.Points[seat],
			Delta:  out.Deltas[seat],
			Chips:  out.Chips[seat],
		})
	}
	g.logger.WithFields(logrus.Fields{"deal": res.Deal, "success": res.Success}).
		Infof("round settled: master seat %d, team %d/%d", out.Master, out.TeamPoints, out.Bid.Quantity)

	if database.DB != nil {
		go func(r models.RoundResult) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := database.RecordRoundResult(ctx, r); err != nil {
				g.logger.Errorf("persist round: %v", err)
			}
		}(res)
	}

	cb := g.OnRoundEnd
	if cb == nil {
		return nil
	}
	return []outbound{{fn: func() { cb(g.ID, res) }}}
}

// markInProgress upserts the games row. Assumes lock is held.
func (g *MightyGame) markInProgress() {
	if database.DB == nil {
		return
	}
	go func(id uuid.UUID) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.UpsertGame(ctx, id); err != nil {
			g.logger.Warnf("upsert game row: %v", err)
		}
	}(g.ID)
}

func (g *MightyGame) setStatus(status string) {
	if database.DB == nil {
		return
	}
	go func(id uuid.UUID) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.SetGameStatus(ctx, id, status); err != nil {
			g.logger.Warnf("set game status %s: %v", status, err)
		}
	}(g.ID)
}

// logAction records a game action with the historian queue. Assumes lock is held.
func (g *MightyGame) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.GameActionRecord{
		GameID:        g.ID,
		ActionIndex:   g.actionIndex,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	if cache.Rdb == nil {
		return
	}
	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			g.logger.Warnf("publish action %d to redis: %v", rec.ActionIndex, err)
		}
	}(record)
}
