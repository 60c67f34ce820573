package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/auction-draft-backend/internal/engine"
	"github.com/DoyleJ11/auction-draft-backend/internal/hub"
	"github.com/DoyleJ11/auction-draft-backend/internal/lobby"
	"github.com/DoyleJ11/auction-draft-backend/internal/types"
	pub "github.com/DoyleJ11/auction-draft-backend/pkg/types"
)

const (
	joinTimeout  = 30 * time.Second
	writeTimeout = 3 * time.Second
	outboxSize   = 32
	readLimit    = 1 << 20 // rosters can be large
)

// Handler upgrades the request and expects JOIN_LEAGUE as the first message.
// Admins create the league if its code is free; captains can only join an
// existing one.
func Handler(h *hub.Hub, defaults engine.Defaults, log *zap.Logger, originPatterns ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(readLimit)

		clientID := uuid.NewString()
		clog := log.With(zap.String("client", clientID))

		joinCtx, cancel := context.WithTimeout(r.Context(), joinTimeout)
		cm, err := readMessage(joinCtx, conn)
		cancel()
		if err != nil {
			return
		}
		if cm.Type != pub.CmdJoinLeague {
			writeError(r.Context(), conn, "first message must be JOIN_LEAGUE")
			return
		}

		lb, join, err := resolveJoin(h, defaults, clientID, cm)
		if err != nil {
			writeError(r.Context(), conn, err.Error())
			return
		}
		clog = clog.With(zap.String("league", lb.Code()))

		out := make(chan lobby.Message, outboxSize)
		if !lb.Send(lobby.Subscribe{ClientID: clientID, Outbox: out}) {
			writeError(r.Context(), conn, engine.ErrLeagueNotFound.Error())
			return
		}
		defer lb.Send(lobby.Unsubscribe{ClientID: clientID})

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for m := range out {
				msg := types.ServerMessage{Type: m.Type, Version: m.Version, Payload: m.Payload}
				if err := writeJSON(writeCtx, conn, msg); err != nil {
					clog.Debug("write failed", zap.Error(err))
				}
			}
			// The lobby dropped us or shut down.
			conn.Close(websocket.StatusGoingAway, "lobby closed")
		}()

		lb.Send(lobby.FromClient{Cmd: join})

		// Reader loop
		for {
			cm, err := readMessage(r.Context(), conn)
			if err != nil {
				var syntaxErr *json.SyntaxError
				var typeErr *json.UnmarshalTypeError
				if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
					writeError(r.Context(), conn, "bad json")
					continue
				}
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					clog.Debug("read failed", zap.Error(err))
				}
				return
			}

			cmd, ok := toEngineCommand(cm, clientID)
			if !ok {
				writeError(r.Context(), conn, "unknown type")
				continue
			}
			if !lb.Send(lobby.FromClient{Cmd: cmd}) {
				return
			}
		}
	}
}

// resolveJoin finds or creates the lobby for a JOIN_LEAGUE and returns the
// command that binds the caller to it.
func resolveJoin(h *hub.Hub, defaults engine.Defaults, clientID string, cm types.ClientMessage) (*lobby.Lobby, engine.Command, error) {
	code := strings.TrimSpace(cm.LeagueCode)
	if code == "" {
		return nil, nil, engine.ErrMissingCode
	}
	origin := engine.Origin{ClientID: clientID}

	switch cm.Role {
	case pub.RoleAdmin:
		var settings types.Settings
		if cm.Settings != nil {
			settings = *cm.Settings
		}
		reply := make(chan hub.EnsureResult, 1)
		h.Inbox() <- hub.Ensure{
			Code:  code,
			Build: func() (*engine.Session, error) { return engine.NewSession(code, settings.Engine(), defaults) },
			Reply: reply,
		}
		res := <-reply
		if res.Err != nil {
			return nil, nil, res.Err
		}
		return res.Lobby, engine.JoinAdmin{Origin: origin, Pin: settings.AdminPin, Creator: res.Created}, nil

	case pub.RoleCaptain:
		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.GetLobby{Code: code, Reply: reply}
		lb := <-reply
		if lb == nil {
			return nil, nil, engine.ErrLeagueNotFound
		}
		return lb, engine.JoinCaptain{Origin: origin, Name: strings.TrimSpace(cm.Name)}, nil

	default:
		return nil, nil, errors.New("role must be ADMIN or CAPTAIN")
	}
}

func toEngineCommand(m types.ClientMessage, clientID string) (engine.Command, bool) {
	o := engine.Origin{ClientID: clientID}
	switch m.Type {
	case pub.CmdStartAuction:
		return engine.StartAuction{Origin: o}, true
	case pub.CmdPlaceBid:
		return engine.PlaceBid{Origin: o, Amount: m.Amount}, true
	case pub.CmdCaptainPass:
		return engine.Pass{Origin: o}, true
	case pub.CmdSold:
		return engine.Sold{Origin: o}, true
	case pub.CmdSkipPlayer:
		return engine.SkipPlayer{Origin: o}, true
	case pub.CmdUndoBid:
		return engine.UndoBid{Origin: o}, true
	case pub.CmdRestartBidding:
		return engine.RestartBidding{Origin: o}, true
	case pub.CmdAssignPlayer:
		return engine.AssignPlayer{Origin: o, PlayerID: m.PlayerID, TeamName: m.TeamName, Price: m.Price}, true
	case pub.CmdUnassignPlayer:
		return engine.UnassignPlayer{Origin: o, PlayerID: m.PlayerID}, true
	case pub.CmdEndSession:
		return engine.EndSession{Origin: o}, true
	default:
		return nil, false
	}
}

func readMessage(ctx context.Context, conn *websocket.Conn) (types.ClientMessage, error) {
	var cm types.ClientMessage
	_, data, err := conn.Read(ctx)
	if err != nil {
		return cm, err
	}
	err = json.Unmarshal(data, &cm)
	return cm, err
}

func writeJSON(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func writeError(ctx context.Context, conn *websocket.Conn, message string) {
	_ = writeJSON(ctx, conn, types.ServerMessage{Type: pub.EvtError, Payload: lobby.ErrorPayload{Message: message}})
}
