// internal/game/game_test.go
package game

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/engine"
	"github.com/jason-s-yu/mighty/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []GameEvent               // Events sent to everyone
	playerEvents map[uuid.UUID][]GameEvent // Events sent to specific players
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		playerEvents: make(map[uuid.UUID][]GameEvent),
	}
}

func (mb *mockBroadcaster) broadcastFn(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(playerID uuid.UUID, ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = []GameEvent{}
	mb.playerEvents = make(map[uuid.UUID][]GameEvent)
}

func (mb *mockBroadcaster) publicOfType(typ GameEventType) []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []GameEvent
	for _, ev := range mb.allEvents {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (mb *mockBroadcaster) privateOfType(playerID uuid.UUID, typ GameEventType) []GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []GameEvent
	for _, ev := range mb.playerEvents[playerID] {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (mb *mockBroadcaster) getLastPlayerEvent(playerID uuid.UUID) *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	events, ok := mb.playerEvents[playerID]
	if !ok || len(events) == 0 {
		return nil
	}
	return &events[len(events)-1]
}

func (mb *mockBroadcaster) lastSnapshot(t *testing.T, playerID uuid.UUID) ObfGameState {
	t.Helper()
	snaps := mb.privateOfType(playerID, EventGameStateSnapshot)
	require.NotEmpty(t, snaps, "no snapshot delivered")
	return *snaps[len(snaps)-1].State
}

func newPlayers() []*models.Player {
	players := make([]*models.Player, engine.NumPlayers)
	for i := range players {
		players[i] = &models.Player{ID: uuid.New(), Username: "p" + string(rune('A'+i)), Connected: true}
	}
	return players
}

// setupTestGame builds a started five-seat game with timers disabled.
func setupTestGame(t *testing.T, rules HouseRules) (*MightyGame, []*models.Player, *mockBroadcaster) {
	t.Helper()
	players := newPlayers()
	g, err := NewMightyGame(uuid.New(), players, rules, 42)
	require.NoError(t, err)

	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn
	g.TurnDuration = 0

	require.NoError(t, g.Start())
	require.True(t, g.Started)
	return g, players, mb
}

// toPlaying gets seat 0 the contract at 13 spades with no friend and starts trick play.
func toPlaying(t *testing.T, g *MightyGame, players []*models.Player, friend engine.FriendMode, card *engine.Card) {
	t.Helper()
	require.NoError(t, g.PlaceBid(players[0].ID, 13, engine.SuitSpade))
	for _, p := range players[1:] {
		require.NoError(t, g.PassBid(p.ID))
	}
	hand := g.EngineState().Players[0].Hand
	require.NoError(t, g.SetTableCards(players[0].ID, hand[:3], engine.SuitNone, 0))
	require.NoError(t, g.SelectFriend(players[0].ID, friend, card))
	require.Equal(t, engine.PhasePlaying, g.EngineState().Phase.Name())
}

func TestNewMightyGameValidation(t *testing.T) {
	_, err := NewMightyGame(uuid.New(), newPlayers()[:4], DefaultHouseRules(), 1)
	assert.ErrorIs(t, err, ErrTableNotFull)

	dup := newPlayers()
	dup[3] = dup[1]
	_, err = NewMightyGame(uuid.New(), dup, DefaultHouseRules(), 1)
	assert.Error(t, err)

	bad := DefaultHouseRules()
	bad.MinBid = 0
	_, err = NewMightyGame(uuid.New(), newPlayers(), bad, 1)
	assert.Error(t, err)
}

func TestStartDealsPrivateHands(t *testing.T) {
	g, players, mb := setupTestGame(t, DefaultHouseRules())

	require.Len(t, mb.publicOfType(EventDealStarted), 1)
	turns := mb.publicOfType(EventPlayerTurn)
	require.Len(t, turns, 1)
	assert.Equal(t, players[0].ID, turns[0].User.ID)

	for seat, p := range players {
		snap := mb.lastSnapshot(t, p.ID)
		assert.Equal(t, engine.PhaseBidding, snap.Phase)
		for _, ps := range snap.Players {
			assert.Equal(t, 10, ps.HandSize)
			if ps.Seat == seat {
				assert.Len(t, ps.Hand, 10)
			} else {
				assert.Nil(t, ps.Hand, "seat %d sees seat %d's hand", seat, ps.Seat)
			}
		}
	}

	assert.ErrorIs(t, g.Start(), ErrAlreadyStarted)
}

func TestRejectedCommandSendsPrivateError(t *testing.T) {
	g, players, mb := setupTestGame(t, DefaultHouseRules())
	before := g.EngineState()
	mb.clear()

	err := g.PlaceBid(players[2].ID, 14, engine.SuitHeart)
	require.ErrorIs(t, err, engine.ErrOutOfTurn)

	last := mb.getLastPlayerEvent(players[2].ID)
	require.NotNil(t, last)
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, "out_of_turn", last.Payload["kind"])
	assert.Empty(t, mb.publicOfType(EventBidPlaced))
	assert.Empty(t, mb.privateOfType(players[0].ID, EventError))

	after := g.EngineState()
	assert.Equal(t, before.CurrentTurn(), after.CurrentTurn())
	assert.Equal(t, before.Players, after.Players)

	err = g.PassBid(uuid.New())
	assert.ErrorIs(t, err, engine.ErrUnknownPlayer)
}

func TestNotifiedOnlyWhenErrorEventSent(t *testing.T) {
	players := newPlayers()
	g, err := NewMightyGame(uuid.New(), players, DefaultHouseRules(), 42)
	require.NoError(t, err)
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn
	g.TurnDuration = 0

	err = g.PlaceBid(players[0].ID, 13, engine.SuitSpade)
	require.ErrorIs(t, err, engine.ErrPhaseMismatch)
	assert.False(t, Notified(err), "nothing is sent before the deal")
	assert.Empty(t, mb.privateOfType(players[0].ID, EventError))

	require.NoError(t, g.Start())
	err = g.PlaceBid(players[3].ID, 13, engine.SuitSpade)
	require.ErrorIs(t, err, engine.ErrOutOfTurn)
	assert.True(t, Notified(err))
	assert.Equal(t, "out_of_turn", ErrorKind(err))
	assert.Len(t, mb.privateOfType(players[3].ID, EventError), 1)

	err = g.PassBid(uuid.New())
	assert.False(t, Notified(err))
}

func TestKittyGoesOnlyToMaster(t *testing.T) {
	g, players, mb := setupTestGame(t, DefaultHouseRules())
	require.NoError(t, g.PlaceBid(players[0].ID, 13, engine.SuitSpade))
	require.NoError(t, g.PlaceBid(players[1].ID, 14, engine.SuitHeart))
	for _, p := range players[2:] {
		require.NoError(t, g.PassBid(p.ID))
	}

	decided := mb.publicOfType(EventMasterDecided)
	require.Len(t, decided, 1)
	assert.Equal(t, 1, decided[0].User.Seat)
	assert.Equal(t, 14, decided[0].Bid.Quantity)

	assert.Empty(t, mb.publicOfType(EventKittyDealt))
	kitty := mb.privateOfType(players[1].ID, EventKittyDealt)
	require.Len(t, kitty, 1)
	assert.Len(t, kitty[0].Cards, 3)
	for _, p := range []*models.Player{players[0], players[2], players[3], players[4]} {
		assert.Empty(t, mb.privateOfType(p.ID, EventKittyDealt))
	}

	snap := mb.lastSnapshot(t, players[1].ID)
	assert.Equal(t, engine.PhaseTableCards, snap.Phase)
	assert.Equal(t, 1, snap.Master)
	assert.Len(t, snap.Players[1].Hand, 13)
}

func TestFriendStaysHiddenUntilPlayed(t *testing.T) {
	g, players, mb := setupTestGame(t, DefaultHouseRules())
	require.NoError(t, g.PlaceBid(players[0].ID, 13, engine.SuitSpade))
	for _, p := range players[1:] {
		require.NoError(t, g.PassBid(p.ID))
	}
	st := g.EngineState()
	require.NoError(t, g.SetTableCards(players[0].ID, st.Players[0].Hand[:3], engine.SuitNone, 0))

	st = g.EngineState()
	var friendCard engine.Card
	for _, c := range st.Players[2].Hand {
		if c != st.Mighty() {
			friendCard = c
			break
		}
	}
	require.NoError(t, g.SelectFriend(players[0].ID, engine.FriendByCard, &friendCard))

	selected := mb.publicOfType(EventFriendSelected)
	require.Len(t, selected, 1)
	assert.Equal(t, "unknown", selected[0].Payload["friend"])
	assert.Equal(t, friendCard, selected[0].Payload["card"])

	snap := mb.lastSnapshot(t, players[3].ID)
	require.NotNil(t, snap.Friend)
	assert.Nil(t, snap.Friend.Seat)
	assert.Equal(t, friendCard, *snap.Friend.Card)
	assert.False(t, snap.Players[2].IsFriend)
	assert.Nil(t, snap.DeadCards, "only the master sees the dead cards")
	assert.Len(t, mb.lastSnapshot(t, players[0].ID).DeadCards, 3)
}

func TestFullRoundSettlesAndNextDeal(t *testing.T) {
	rules := DefaultHouseRules()
	players := newPlayers()
	g, err := NewMightyGame(uuid.New(), players, rules, 7)
	require.NoError(t, err)
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn
	g.TurnDuration = 0

	var (
		mu     sync.Mutex
		result *models.RoundResult
	)
	g.OnRoundEnd = func(gameID uuid.UUID, res models.RoundResult) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, g.ID, gameID)
		result = &res
	}

	require.NoError(t, g.Start())
	toPlaying(t, g, players, engine.FriendNone, nil)

	for i := 0; i < engine.NumPlayers*10; i++ {
		st := g.EngineState()
		seat := st.CurrentTurn()
		legal := st.LegalPlays(seat)
		require.NotEmpty(t, legal, "play %d", i)
		c := legal[0]
		suit := engine.SuitNone
		if c.IsJoker() && len(st.Phase.(engine.Playing).Trick.Plays) == 0 {
			suit = engine.SuitSpade
		}
		require.NoError(t, g.PlayCard(players[seat].ID, c, false, suit), "play %d", i)
	}

	assert.Len(t, mb.publicOfType(EventCardPlayed), 50)
	assert.Len(t, mb.publicOfType(EventTrickResolved), 10)
	require.Len(t, mb.publicOfType(EventRoundResult), 1)
	assert.Equal(t, engine.PhaseResult, g.EngineState().Phase.Name())

	mu.Lock()
	require.NotNil(t, result)
	require.Len(t, result.Seats, engine.NumPlayers)
	sum := 0
	for _, s := range result.Seats {
		sum += s.Delta
		assert.Equal(t, 100+s.Delta, s.Chips)
	}
	mu.Unlock()
	assert.Zero(t, sum)
	assert.Equal(t, 0, result.MasterSeat)
	assert.Equal(t, -1, result.FriendSeat)

	// a late play is rejected without leaving Result
	assert.ErrorIs(t, g.PlayCard(players[1].ID, engine.JokerCard, false, engine.SuitNone), engine.ErrPhaseMismatch)

	require.NoError(t, g.NextDeal(players[3].ID))
	deals := mb.publicOfType(EventDealStarted)
	require.Len(t, deals, 2)
	assert.Equal(t, 2, deals[1].Payload["deal"])
	assert.Equal(t, 1, g.EngineState().CurrentTurn(), "the starting bidder rotates")
}

func TestTurnTimerForcesPass(t *testing.T) {
	players := newPlayers()
	g, err := NewMightyGame(uuid.New(), players, DefaultHouseRules(), 3)
	require.NoError(t, err)
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn
	g.TurnDuration = 20 * time.Millisecond
	t.Cleanup(func() { g.Abort("test done") })

	require.NoError(t, g.Start())

	require.Eventually(t, func() bool {
		return len(mb.publicOfType(EventBidPassed)) > 0
	}, 2*time.Second, 5*time.Millisecond)

	passed := mb.publicOfType(EventBidPassed)[0]
	assert.True(t, passed.Forced)
	assert.Equal(t, 0, passed.User.Seat)
}

func TestStaleTimerIsIgnored(t *testing.T) {
	g, players, _ := setupTestGame(t, DefaultHouseRules())

	g.Mu.Lock()
	armed := g.seq
	g.Mu.Unlock()

	require.NoError(t, g.PassBid(players[0].ID))
	g.handleTimeout(armed)

	st := g.EngineState()
	assert.Equal(t, 1, st.CurrentTurn())
	assert.False(t, st.Phase.(engine.Bidding).Passed[1])
}

func TestTimeoutFallbacks(t *testing.T) {
	g, players, mb := setupTestGame(t, DefaultHouseRules())
	require.NoError(t, g.PlaceBid(players[0].ID, 13, engine.SuitDiamond))
	for _, p := range players[1:] {
		require.NoError(t, g.PassBid(p.ID))
	}

	fire := func() {
		g.Mu.Lock()
		seq := g.seq
		g.Mu.Unlock()
		g.handleTimeout(seq)
	}

	fire()
	set := mb.publicOfType(EventTableCardsSet)
	require.Len(t, set, 1)
	assert.True(t, set[0].Forced)

	fire()
	assert.Len(t, mb.publicOfType(EventFriendSelected), 1)
	assert.Equal(t, engine.FriendFirstTrickWinner, g.EngineState().Friend.Mode)

	fire()
	played := mb.publicOfType(EventCardPlayed)
	require.Len(t, played, 1)
	assert.True(t, played[0].Forced)
	assert.Equal(t, 1, played[0].User.Seat)
}

func TestAbort(t *testing.T) {
	g, players, mb := setupTestGame(t, DefaultHouseRules())
	var aborted []uuid.UUID
	g.OnAbort = func(id uuid.UUID) { aborted = append(aborted, id) }

	g.Abort("host closed the room")
	g.Abort("again")

	require.Len(t, mb.publicOfType(EventGameAborted), 1)
	assert.Equal(t, []uuid.UUID{g.ID}, aborted)
	assert.ErrorIs(t, g.PassBid(players[0].ID), ErrGameOver)
}

func TestDisconnectAndReconnect(t *testing.T) {
	g, players, mb := setupTestGame(t, DefaultHouseRules())
	mb.clear()

	g.HandleDisconnect(players[2].ID)
	conn := mb.publicOfType(EventPlayerConnection)
	require.Len(t, conn, 1)
	assert.Equal(t, false, conn[0].Payload["connected"])

	snap, err := g.Snapshot(players[0].ID)
	require.NoError(t, err)
	assert.False(t, snap.Players[2].Connected)

	g.HandleReconnect(players[2].ID)
	assert.Len(t, mb.publicOfType(EventPlayerConnection), 2)
	resent := mb.privateOfType(players[2].ID, EventGameStateSnapshot)
	require.Len(t, resent, 1)
	assert.True(t, resent[0].State.Players[2].Connected)

	_, err = g.Snapshot(uuid.New())
	assert.ErrorIs(t, err, engine.ErrUnknownPlayer)
}

func TestAnnouncedFirstTrickWinnerStaysUnknown(t *testing.T) {
	g, players, mb := setupTestGame(t, DefaultHouseRules())
	toPlaying(t, g, players, engine.FriendFirstTrickWinner, nil)

	selected := mb.publicOfType(EventFriendSelected)
	require.Len(t, selected, 1)
	assert.Equal(t, "first_trick", selected[0].Payload["mode"])
	assert.Nil(t, mb.lastSnapshot(t, players[4].ID).Friend.Seat)
}
