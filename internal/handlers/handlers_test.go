package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/auth"
	"github.com/jason-s-yu/mighty/internal/game"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seatedPlayer struct {
	ID    string
	Token string
	Seat  int
}

func newTestServer(t *testing.T, autoStart bool) (*GameServer, *httptest.Server) {
	t.Helper()
	require.NoError(t, auth.Init(""))

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	rules := game.DefaultHouseRules()
	rules.TurnTimerSec = 0

	gs := NewGameServer(logger, rules, autoStart)
	gs.Seed = func() int64 { return 42 }
	srv := httptest.NewServer(gs.Routes())
	t.Cleanup(func() {
		gs.Shutdown("test over")
		srv.Close()
	})
	return gs, srv
}

func doJSON(t *testing.T, method, url, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	data, _ := io.ReadAll(resp.Body)
	if len(bytes.TrimSpace(data)) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

// seatTable creates a table and joins four more guests; seats are returned in join order.
func seatTable(t *testing.T, srv *httptest.Server) (string, []seatedPlayer) {
	t.Helper()
	status, created := doJSON(t, "POST", srv.URL+"/api/game/create", "", map[string]string{"playerName": "p0"})
	require.Equal(t, http.StatusCreated, status)
	roomID := created["roomId"].(string)
	assert.Equal(t, roomID, created["gameId"])

	players := []seatedPlayer{{ID: created["playerId"].(string), Token: created["token"].(string), Seat: 0}}
	for i := 1; i < 5; i++ {
		status, joined := doJSON(t, "POST", srv.URL+"/api/game/join", "", map[string]string{
			"gameId":     roomID,
			"playerName": "p" + string(rune('0'+i)),
		})
		require.Equal(t, http.StatusOK, status, joined)
		assert.EqualValues(t, i, joined["seat"])
		assert.Equal(t, i == 4, joined["started"])
		players = append(players, seatedPlayer{ID: joined["playerId"].(string), Token: joined["token"].(string), Seat: i})
	}
	return roomID, players
}

func currentTurn(t *testing.T, srv *httptest.Server, roomID string, p seatedPlayer) int {
	t.Helper()
	status, state := doJSON(t, "GET", srv.URL+"/api/game/state/"+roomID, p.Token, nil)
	require.Equal(t, http.StatusOK, status)
	return int(state["currentTurn"].(float64))
}

func TestRestTableFlow(t *testing.T) {
	_, srv := newTestServer(t, true)
	roomID, players := seatTable(t, srv)

	status, state := doJSON(t, "GET", srv.URL+"/api/game/state/"+roomID, players[0].Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bidding", state["phase"])
	seats := state["players"].([]interface{})
	require.Len(t, seats, 5)
	own := seats[0].(map[string]interface{})
	assert.Len(t, own["hand"], 10)
	other := seats[1].(map[string]interface{})
	assert.Nil(t, other["hand"], "other hands are redacted")
	assert.EqualValues(t, 10, other["hand_size"])

	turn := currentTurn(t, srv, roomID, players[0])
	bidder := players[turn]
	waiting := players[(turn+1)%5]

	status, body := doJSON(t, "POST", srv.URL+"/api/game/bid", waiting.Token, map[string]interface{}{
		"gameId": roomID, "quantity": 13, "trumpSuit": 1,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "out_of_turn", body["error"])

	status, body = doJSON(t, "POST", srv.URL+"/api/game/bid", bidder.Token, map[string]interface{}{
		"gameId": roomID, "playerId": bidder.ID, "quantity": 13, "trumpSuit": 1,
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["ok"])
	snap := body["state"].(map[string]interface{})
	assert.EqualValues(t, (turn+1)%5, snap["currentTurn"])

	status, body = doJSON(t, "POST", srv.URL+"/api/game/bid", waiting.Token, map[string]interface{}{
		"gameId": roomID, "quantity": 12, "trumpSuit": 1,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid_bid", body["error"])

	status, body = doJSON(t, "POST", srv.URL+"/api/game/pass", waiting.Token, map[string]interface{}{"gameId": roomID})
	require.Equal(t, http.StatusOK, status, body)

	status, body = doJSON(t, "POST", srv.URL+"/api/game/draw", players[(turn+2)%5].Token, map[string]interface{}{"gameId": roomID})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", body["error"])
}

func TestRestAcceptsWebClientBodies(t *testing.T) {
	_, srv := newTestServer(t, true)
	roomID, players := seatTable(t, srv)
	turn := currentTurn(t, srv, roomID, players[0])
	master := players[turn]

	status, body := doJSON(t, "POST", srv.URL+"/api/game/bid", master.Token, map[string]interface{}{
		"roomId": roomID, "playerId": turn, "bidType": 13, "trumpSuit": 1,
	})
	require.Equal(t, http.StatusOK, status, body)

	next := players[(turn+1)%5]
	status, body = doJSON(t, "POST", srv.URL+"/api/game/pass", next.Token, map[string]interface{}{
		"gameId": roomID, "playerId": (turn + 2) % 5,
	})
	assert.Equal(t, http.StatusForbidden, status, "a seat number must match the token")
	assert.Equal(t, "forbidden", body["error"])

	status, body = doJSON(t, "POST", srv.URL+"/api/game/pass", next.Token, map[string]interface{}{
		"gameId": roomID, "playerId": 7,
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "unknown_player", body["error"])

	for i := 1; i < 5; i++ {
		seat := (turn + i) % 5
		status, body = doJSON(t, "POST", srv.URL+"/api/game/pass", players[seat].Token, map[string]interface{}{
			"gameId": roomID, "playerId": seat,
		})
		require.Equal(t, http.StatusOK, status, body)
	}

	status, state := doJSON(t, "GET", srv.URL+"/api/game/state/"+roomID+"?playerId="+strconv.Itoa(turn), master.Token, nil)
	require.Equal(t, http.StatusOK, status, state)
	assert.Equal(t, "tableCards", state["phase"])
	hand := state["players"].([]interface{})[turn].(map[string]interface{})["hand"].([]interface{})
	require.Len(t, hand, 13)

	status, body = doJSON(t, "POST", srv.URL+"/api/game/tablecards", master.Token, map[string]interface{}{
		"gameId": roomID, "playerId": turn, "cards": hand[:3], "trumpType": 1, "bid": 13,
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "friendSelect", body["state"].(map[string]interface{})["phase"])
}

func TestRestAuthFailures(t *testing.T) {
	_, srv := newTestServer(t, true)
	roomID, players := seatTable(t, srv)

	status, body := doJSON(t, "POST", srv.URL+"/api/game/pass", "", map[string]interface{}{"gameId": roomID})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthenticated", body["error"])

	status, body = doJSON(t, "POST", srv.URL+"/api/game/pass", "garbage", map[string]interface{}{"gameId": roomID})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["error"])

	status, body = doJSON(t, "POST", srv.URL+"/api/game/pass", players[1].Token, map[string]interface{}{
		"gameId": roomID, "playerId": players[0].ID,
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["error"])

	status, body = doJSON(t, "POST", srv.URL+"/api/game/pass", players[1].Token, map[string]interface{}{
		"gameId": uuid.NewString(),
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "game_not_found", body["error"])

	stranger, err := auth.CreateJWT(uuid.NewString())
	require.NoError(t, err)
	status, body = doJSON(t, "GET", srv.URL+"/api/game/state/"+roomID, stranger, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "unknown_player", body["error"])

	status, _ = doJSON(t, "POST", srv.URL+"/api/game/pass", players[1].Token, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestJoinFullTableIsRejected(t *testing.T) {
	_, srv := newTestServer(t, true)
	roomID, _ := seatTable(t, srv)

	status, body := doJSON(t, "POST", srv.URL+"/api/game/join", "", map[string]string{"gameId": roomID, "playerName": "late"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "room_in_game", body["error"])
}

func TestRoomEndpoints(t *testing.T) {
	_, srv := newTestServer(t, false)

	tokens := make([]string, 5)
	for i := range tokens {
		tok, err := auth.CreateJWT(uuid.NewString())
		require.NoError(t, err)
		tokens[i] = tok
	}

	status, room := doJSON(t, "POST", srv.URL+"/api/room/create", tokens[0], map[string]interface{}{
		"name":       "friday",
		"playerName": "host",
		"houseRules": map[string]interface{}{"minBid": 14},
	})
	require.Equal(t, http.StatusCreated, status, room)
	roomID := room["id"].(string)
	assert.Equal(t, "friday", room["name"])
	assert.EqualValues(t, 14, room["houseRules"].(map[string]interface{})["minBid"])

	status, _ = doJSON(t, "POST", srv.URL+"/api/room/create", tokens[0], map[string]interface{}{
		"houseRules": map[string]interface{}{"minBid": 99},
	})
	assert.Equal(t, http.StatusBadRequest, status)

	for i := 1; i < 5; i++ {
		status, body := doJSON(t, "POST", srv.URL+"/api/room/join", tokens[i], map[string]interface{}{
			"roomId": roomID, "playerName": "guest",
		})
		require.Equal(t, http.StatusOK, status, body)
	}

	status, body := doJSON(t, "GET", srv.URL+"/api/room/"+roomID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["seats"], 5)
	assert.Equal(t, false, body["inGame"])

	status, body = doJSON(t, "POST", srv.URL+"/api/room/rules", tokens[1], map[string]interface{}{
		"roomId": roomID, "houseRules": map[string]interface{}{"minBid": 15},
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not_host", body["error"])

	status, body = doJSON(t, "POST", srv.URL+"/api/room/start", tokens[1], map[string]interface{}{"roomId": roomID})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = doJSON(t, "POST", srv.URL+"/api/room/start", tokens[0], map[string]interface{}{"roomId": roomID})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, roomID, body["gameId"])

	status, body = doJSON(t, "GET", srv.URL+"/api/game/state/"+roomID, tokens[2], nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 14, body["houseRules"].(map[string]interface{})["minBid"])

	status, _ = doJSON(t, "POST", srv.URL+"/api/room/leave", tokens[3], map[string]interface{}{"roomId": roomID})
	assert.Equal(t, http.StatusNoContent, status)

	status, body = doJSON(t, "POST", srv.URL+"/api/game/pass", tokens[0], map[string]interface{}{"gameId": roomID})
	assert.Equal(t, http.StatusNotFound, status, "a leave aborts the game")
	assert.Equal(t, "game_not_found", body["error"])

	req, err := http.NewRequest("GET", srv.URL+"/api/room/list", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Len(t, list[0]["seats"], 4)

	status, body = doJSON(t, "GET", srv.URL+"/api/room/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "room_not_found", body["error"])
}

func dialGame(t *testing.T, srv *httptest.Server, roomID, token string, protocols ...string) *websocket.Conn {
	t.Helper()
	if protocols == nil {
		protocols = []string{wsSubprotocol}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/game/ws/" + roomID
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: protocols,
		HTTPHeader:   http.Header{"Authorization": []string{"Bearer " + token}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

// readUntil reads frames until one has the wanted type.
func readUntil(t *testing.T, c *websocket.Conn, want string) map[string]interface{} {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, data, err := c.Read(ctx)
		require.NoError(t, err, "waiting for %s", want)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == want {
			return msg
		}
	}
}

func writeFrame(t *testing.T, c *websocket.Conn, msg interface{}) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

func TestWebSocketCommands(t *testing.T) {
	_, srv := newTestServer(t, true)
	roomID, players := seatTable(t, srv)
	turn := currentTurn(t, srv, roomID, players[0])
	bidder := players[turn]
	waiting := players[(turn+1)%5]

	bc := dialGame(t, srv, roomID, bidder.Token)
	snap := readUntil(t, bc, "game_state_snapshot")
	assert.Equal(t, "bidding", snap["state"].(map[string]interface{})["phase"])

	wc := dialGame(t, srv, roomID, waiting.Token)
	readUntil(t, wc, "game_state_snapshot")

	writeFrame(t, wc, map[string]interface{}{"type": "bid", "quantity": 13, "trumpSuit": 1})
	rejected := readUntil(t, wc, "error")
	assert.Equal(t, "out_of_turn", rejected["payload"].(map[string]interface{})["kind"])

	writeFrame(t, bc, map[string]interface{}{"type": "bid", "quantity": 13, "trumpSuit": 1})
	placed := readUntil(t, wc, "bid_placed")
	assert.Equal(t, bidder.ID, placed["user"].(map[string]interface{})["id"])

	writeFrame(t, wc, map[string]interface{}{"type": "ping"})
	readUntil(t, wc, "pong")

	writeFrame(t, wc, map[string]interface{}{"type": "shuffle"})
	unknown := readUntil(t, wc, "error")
	assert.Equal(t, "bad_request", unknown["payload"].(map[string]interface{})["kind"])
}

func TestWebSocketBeforeStartSendsRoom(t *testing.T) {
	_, srv := newTestServer(t, true)
	status, created := doJSON(t, "POST", srv.URL+"/api/game/create", "", map[string]string{"playerName": "solo"})
	require.Equal(t, http.StatusCreated, status)

	c := dialGame(t, srv, created["roomId"].(string), created["token"].(string))
	msg := readUntil(t, c, "room_state")
	assert.Len(t, msg["room"].(map[string]interface{})["seats"], 1)

	writeFrame(t, c, map[string]interface{}{"type": "pass"})
	rejected := readUntil(t, c, "error")
	assert.Equal(t, "game_not_found", rejected["payload"].(map[string]interface{})["kind"])
}

func TestWebSocketRejectsBadHandshake(t *testing.T) {
	_, srv := newTestServer(t, true)
	roomID, players := seatTable(t, srv)

	readClose := func(c *websocket.Conn) websocket.StatusCode {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _, err := c.Read(ctx)
		require.Error(t, err)
		return websocket.CloseStatus(err)
	}

	stranger, err := auth.CreateJWT(uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, NotSeatedError, readClose(dialGame(t, srv, roomID, stranger)))
	assert.Equal(t, InvalidAuthTokenError, readClose(dialGame(t, srv, roomID, "garbage")))
	assert.Equal(t, BadSubprotocolError, readClose(dialGame(t, srv, roomID, players[0].Token, "other")))
}

func TestUserRoutesNeedDatabase(t *testing.T) {
	_, srv := newTestServer(t, false)

	for _, path := range []string{"/user/create", "/user/login", "/user/claim"} {
		status, body := doJSON(t, http.MethodPost, srv.URL+path, "", map[string]string{"email": "a@b.c", "password": "pw"})
		assert.Equal(t, http.StatusServiceUnavailable, status, path)
		assert.Equal(t, "unavailable", body["error"], path)
	}
}
