package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/auction-draft-backend/internal/engine"
	"github.com/DoyleJ11/auction-draft-backend/internal/hub"
	"github.com/DoyleJ11/auction-draft-backend/internal/lobby"
	"github.com/DoyleJ11/auction-draft-backend/internal/types"
	pub "github.com/DoyleJ11/auction-draft-backend/pkg/types"
)

type received struct {
	Type    pub.EventName   `json:"type"`
	Version int             `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

func newServer(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, zap.NewNop(), lobby.WithAdvanceDelay(10*time.Millisecond))
	srv := httptest.NewServer(Handler(h, engine.DefaultSettings(), zap.NewNop()))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func recv(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var m received
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func expect(t *testing.T, conn *websocket.Conn, want ...pub.EventName) []received {
	t.Helper()
	out := make([]received, 0, len(want))
	for _, w := range want {
		m := recv(t, conn)
		require.Equal(t, w, m.Type, "payload: %s", m.Payload)
		out = append(out, m)
	}
	return out
}

func errorMessage(t *testing.T, m received) string {
	t.Helper()
	require.Equal(t, pub.EvtError, m.Type)
	var p lobby.ErrorPayload
	require.NoError(t, json.Unmarshal(m.Payload, &p))
	return p.Message
}

func joinAdmin(code string, settings *types.Settings) types.ClientMessage {
	return types.ClientMessage{Type: pub.CmdJoinLeague, LeagueCode: code, Role: pub.RoleAdmin, Settings: settings}
}

func joinCaptain(code, name string) types.ClientMessage {
	return types.ClientMessage{Type: pub.CmdJoinLeague, LeagueCode: code, Role: pub.RoleCaptain, Name: name}
}

func TestHandler_FullAuction(t *testing.T) {
	url := newServer(t)

	admin := dial(t, url)
	sendJSON(t, admin, joinAdmin("E2E001", &types.Settings{
		LeagueName: "Test League", TeamCount: 1, PlayersPerTeam: 1, Budget: 100, BasePrice: 10,
		Players: []engine.PlayerInput{{Name: "Kohli", Category: "Batter"}},
	}))
	msgs := expect(t, admin, pub.EvtLeagueUpdate, pub.EvtAdminRestore, pub.EvtLeagueUpdate)
	var restored engine.Session
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &restored))
	assert.Equal(t, "Test League", restored.Name)
	assert.Len(t, restored.AdminPin, 6)
	assert.NotContains(t, string(msgs[2].Payload), "adminPin", "public view must not leak the PIN")

	capt := dial(t, url)
	sendJSON(t, capt, joinCaptain("E2E001", "Lions"))
	expect(t, capt, pub.EvtLeagueUpdate, pub.EvtLeagueUpdate)
	expect(t, admin, pub.EvtLeagueUpdate)

	sendJSON(t, admin, types.ClientMessage{Type: pub.CmdStartAuction})
	for _, c := range []*websocket.Conn{admin, capt} {
		msgs = expect(t, c, pub.EvtNewPlayer, pub.EvtLeagueUpdate)
		assert.Equal(t, 3, msgs[0].Version)
	}

	sendJSON(t, capt, types.ClientMessage{Type: pub.CmdPlaceBid, Amount: 30})
	msgs = expect(t, admin, pub.EvtBidUpdate, pub.EvtLeagueUpdate)
	assert.JSONEq(t, `{"amount":30,"holder":"`+bidHolder(t, msgs[0])+`","holderName":"Lions"}`, string(msgs[0].Payload))

	sendJSON(t, admin, types.ClientMessage{Type: pub.CmdSold})
	msgs = expect(t, admin, pub.EvtPlayerSold, pub.EvtLeagueUpdate, pub.EvtAuctionEnded, pub.EvtLeagueUpdate)
	assert.JSONEq(t, `{"player":{"id":1,"name":"Kohli","category":"Batter","basePrice":10,"status":"SOLD","soldTo":"Lions","soldAt":30},"winner":"Lions","amount":30}`, string(msgs[0].Payload))

	var view engine.View
	require.NoError(t, json.Unmarshal(msgs[3].Payload, &view))
	assert.Equal(t, engine.StateEnded, view.State)
	assert.Equal(t, 70, view.Teams[0].Budget)
}

func bidHolder(t *testing.T, m received) string {
	t.Helper()
	var b engine.Bid
	require.NoError(t, json.Unmarshal(m.Payload, &b))
	require.NotEmpty(t, b.Holder)
	return b.Holder
}

func TestHandler_AdminRejoinWithPin(t *testing.T) {
	url := newServer(t)

	first := dial(t, url)
	sendJSON(t, first, joinAdmin("PIN001", &types.Settings{Players: []engine.PlayerInput{{Name: "P1"}}}))
	msgs := expect(t, first, pub.EvtLeagueUpdate, pub.EvtAdminRestore, pub.EvtLeagueUpdate)
	var restored engine.Session
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &restored))

	wrong := dial(t, url)
	sendJSON(t, wrong, joinAdmin("PIN001", &types.Settings{AdminPin: "not-it"}))
	expect(t, wrong, pub.EvtLeagueUpdate)
	assert.Equal(t, "invalid admin PIN", errorMessage(t, recv(t, wrong)))

	second := dial(t, url)
	sendJSON(t, second, joinAdmin("PIN001", &types.Settings{AdminPin: restored.AdminPin}))
	expect(t, second, pub.EvtLeagueUpdate, pub.EvtAdminRestore, pub.EvtLeagueUpdate)
}

func TestHandler_JoinErrors(t *testing.T) {
	url := newServer(t)

	cases := []struct {
		name string
		msg  types.ClientMessage
		want string
	}{
		{name: "captain of unknown league", msg: joinCaptain("NOPE00", "Lions"), want: "league not found"},
		{name: "admin without players", msg: joinAdmin("EMPTY1", &types.Settings{}), want: "player list is empty"},
		{name: "missing code", msg: joinCaptain("", "Lions"), want: "league code is required"},
		{name: "bad role", msg: types.ClientMessage{Type: pub.CmdJoinLeague, LeagueCode: "X", Role: "SPECTATOR"}, want: "role must be ADMIN or CAPTAIN"},
		{name: "not a join", msg: types.ClientMessage{Type: pub.CmdPlaceBid, Amount: 5}, want: "first message must be JOIN_LEAGUE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := dial(t, url)
			sendJSON(t, conn, tc.msg)
			assert.Equal(t, tc.want, errorMessage(t, recv(t, conn)))
		})
	}
}

func TestHandler_UnknownTypeAndBadJSON(t *testing.T) {
	url := newServer(t)

	conn := dial(t, url)
	sendJSON(t, conn, joinAdmin("ODD001", &types.Settings{Players: []engine.PlayerInput{{Name: "P1"}}}))
	expect(t, conn, pub.EvtLeagueUpdate, pub.EvtAdminRestore, pub.EvtLeagueUpdate)

	sendJSON(t, conn, map[string]string{"type": "DANCE"})
	assert.Equal(t, "unknown type", errorMessage(t, recv(t, conn)))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{nope")))
	assert.Equal(t, "bad json", errorMessage(t, recv(t, conn)))
}

func TestToEngineCommand(t *testing.T) {
	o := engine.Origin{ClientID: "c1"}
	cases := []struct {
		in   types.ClientMessage
		want engine.Command
	}{
		{types.ClientMessage{Type: pub.CmdStartAuction}, engine.StartAuction{Origin: o}},
		{types.ClientMessage{Type: pub.CmdPlaceBid, Amount: 40}, engine.PlaceBid{Origin: o, Amount: 40}},
		{types.ClientMessage{Type: pub.CmdCaptainPass}, engine.Pass{Origin: o}},
		{types.ClientMessage{Type: pub.CmdSold}, engine.Sold{Origin: o}},
		{types.ClientMessage{Type: pub.CmdSkipPlayer}, engine.SkipPlayer{Origin: o}},
		{types.ClientMessage{Type: pub.CmdUndoBid}, engine.UndoBid{Origin: o}},
		{types.ClientMessage{Type: pub.CmdRestartBidding}, engine.RestartBidding{Origin: o}},
		{types.ClientMessage{Type: pub.CmdAssignPlayer, PlayerID: 3, TeamName: "Lions", Price: 50}, engine.AssignPlayer{Origin: o, PlayerID: 3, TeamName: "Lions", Price: 50}},
		{types.ClientMessage{Type: pub.CmdUnassignPlayer, PlayerID: 3}, engine.UnassignPlayer{Origin: o, PlayerID: 3}},
		{types.ClientMessage{Type: pub.CmdEndSession}, engine.EndSession{Origin: o}},
	}
	for _, tc := range cases {
		got, ok := toEngineCommand(tc.in, "c1")
		require.True(t, ok, tc.in.Type)
		assert.Equal(t, tc.want, got)
	}

	_, ok := toEngineCommand(types.ClientMessage{Type: pub.CmdJoinLeague}, "c1")
	assert.False(t, ok, "JOIN_LEAGUE is only valid as the first message")
}
