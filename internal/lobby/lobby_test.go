package lobby

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/game"
	"github.com/jason-s-yu/mighty/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func player(name string) *models.Player {
	return &models.Player{ID: uuid.New(), Username: name, Connected: true}
}

func fullRoom(t *testing.T) (*Room, []*models.Player) {
	t.Helper()
	host := player("host")
	room := NewRoomWithDefaults(host, "", game.DefaultHouseRules(), true)
	players := []*models.Player{host}
	for i := 1; i < 5; i++ {
		p := player("p")
		seat, full, err := room.Join(p)
		require.NoError(t, err)
		assert.Equal(t, i, seat)
		assert.Equal(t, i == 4, full)
		players = append(players, p)
	}
	return room, players
}

func drain(conn *Connection) []map[string]interface{} {
	var msgs []map[string]interface{}
	for {
		select {
		case data := <-conn.OutChan:
			var m map[string]interface{}
			if err := json.Unmarshal(data, &m); err == nil {
				msgs = append(msgs, m)
			}
		default:
			return msgs
		}
	}
}

func TestJoinFillsSeatsInOrder(t *testing.T) {
	room, players := fullRoom(t)
	assert.Equal(t, "host's table", room.Name)
	assert.True(t, room.IsFull())

	_, _, err := room.Join(player("late"))
	assert.ErrorIs(t, err, ErrRoomFull)

	seat, full, err := room.Join(players[2])
	require.NoError(t, err)
	assert.Equal(t, 2, seat, "joining twice keeps the seat")
	assert.False(t, full)

	seated := room.Players()
	for i, p := range seated {
		assert.Equal(t, i, p.Seat)
		assert.Equal(t, players[i].ID, p.ID)
	}
}

func TestLeaveMovesHostAndTriggersOnEmpty(t *testing.T) {
	host := player("host")
	room := NewRoomWithDefaults(host, "table", game.DefaultHouseRules(), false)
	guest := player("guest")
	_, _, err := room.Join(guest)
	require.NoError(t, err)

	var emptied uuid.UUID
	room.OnEmpty = func(id uuid.UUID) { emptied = id }

	_, err = room.Leave(host.ID)
	require.NoError(t, err)
	assert.Equal(t, guest.ID, room.Summary().HostUserID)
	assert.Equal(t, 0, room.Players()[0].Seat)

	_, err = room.Leave(host.ID)
	assert.ErrorIs(t, err, ErrNotSeated)

	_, err = room.Leave(guest.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, emptied)
}

func TestBeginStart(t *testing.T) {
	host := player("host")
	room := NewRoomWithDefaults(host, "", game.DefaultHouseRules(), false)
	_, err := room.BeginStart(host.ID)
	assert.ErrorIs(t, err, ErrRoomNotReady)

	room, players := fullRoom(t)
	_, err = room.BeginStart(players[1].ID)
	assert.ErrorIs(t, err, ErrNotHost)

	info, err := room.BeginStart(players[0].ID)
	require.NoError(t, err)
	assert.Len(t, info.Players, 5)
	_, err = room.BeginStart(uuid.Nil)
	assert.ErrorIs(t, err, ErrRoomInGame, "a start is already pending")

	room.CancelStart()
	_, err = room.BeginStart(uuid.Nil)
	require.NoError(t, err)
	room.MarkStarted()
	assert.True(t, room.Summary().InGame)
	require.NotNil(t, room.Summary().GameID)

	abort, err := room.Leave(players[3].ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, abort)
	assert.False(t, room.Summary().InGame)
}

func TestUpdateRules(t *testing.T) {
	room, players := fullRoom(t)
	conn := NewConnection(players[1].ID, nil)
	require.NoError(t, room.AddConnection(conn))

	err := room.UpdateRules(players[1].ID, map[string]interface{}{})
	assert.ErrorIs(t, err, ErrNotHost)

	err = room.UpdateRules(players[0].ID, map[string]interface{}{
		"houseRules": map[string]interface{}{"minBid": float64(14)},
		"settings":   map[string]interface{}{"autoStart": false},
	})
	require.NoError(t, err)
	s := room.Summary()
	assert.Equal(t, 14, s.HouseRules.MinBid)
	assert.False(t, s.Settings.AutoStart)

	msgs := drain(conn)
	require.Len(t, msgs, 1)
	assert.Equal(t, "room_rules_updated", msgs[0]["type"])

	err = room.UpdateRules(players[0].ID, map[string]interface{}{
		"houseRules": map[string]interface{}{"minBid": "high"},
	})
	assert.Error(t, err)
	assert.Equal(t, 14, room.Summary().HouseRules.MinBid)
}

func TestConnectionsReceiveBroadcasts(t *testing.T) {
	host := player("host")
	room := NewRoomWithDefaults(host, "", game.DefaultHouseRules(), false)

	stranger := NewConnection(uuid.New(), nil)
	assert.ErrorIs(t, room.AddConnection(stranger), ErrNotSeated)

	cancelled := false
	first := NewConnection(host.ID, func() { cancelled = true })
	require.NoError(t, room.AddConnection(first))
	second := NewConnection(host.ID, nil)
	require.NoError(t, room.AddConnection(second))
	assert.True(t, cancelled, "the replaced connection is cancelled")
	assert.False(t, room.RemoveConnection(first))

	_, _, err := room.Join(player("guest"))
	require.NoError(t, err)
	msgs := drain(second)
	require.Len(t, msgs, 1)
	assert.Equal(t, "room_update", msgs[0]["type"])
	assert.Contains(t, msgs[0], "user_join")

	room.SendTo(host.ID, []byte(`{"type":"ping"}`))
	assert.Len(t, drain(second), 1)
	assert.Empty(t, drain(first))

	summary := room.Summary()
	assert.True(t, summary.Seats[0].Online)
	assert.False(t, summary.Seats[1].Online)
}

func TestRoomStore(t *testing.T) {
	store := NewRoomStore()
	a := NewRoomWithDefaults(player("a"), "", game.DefaultHouseRules(), true)
	b := NewRoomWithDefaults(player("b"), "", game.DefaultHouseRules(), true)
	b.CreatedAt = a.CreatedAt.Add(1)
	store.AddRoom(b)
	store.AddRoom(a)

	rooms := store.Rooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, a.ID, rooms[0].ID)

	store.DeleteRoom(a.ID)
	_, err := store.Lookup(a.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
