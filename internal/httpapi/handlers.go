package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/auction-draft-backend/internal/engine"
	"github.com/DoyleJ11/auction-draft-backend/internal/hub"
	"github.com/DoyleJ11/auction-draft-backend/internal/lobby"
)

const maxCodeAttempts = 10

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// LeagueView is the body of GET /leagues/{code}.
type LeagueView struct {
	Version int `json:"version"`
	engine.View
}

// CreateLeague proposes a code no running league uses. The league itself is
// created when the admin joins with that code.
func CreateLeague(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for range maxCodeAttempts {
			c, err := GenerateCode()
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to generate code")
				return
			}
			if lookup(h, c) != nil {
				log.Info("collision on code, regenerating", zap.String("league", c))
				continue
			}
			writeJSON(w, http.StatusCreated, struct {
				Code string `json:"code"`
			}{Code: c})
			return
		}
		writeError(w, http.StatusServiceUnavailable, "no free league code")
	}
}

func GetLeague(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb := lookup(h, chi.URLParam(r, "code"))
		if lb == nil {
			writeError(w, http.StatusNotFound, engine.ErrLeagueNotFound.Error())
			return
		}
		reply := make(chan lobby.View, 1)
		if !lb.Send(lobby.GetState{Reply: reply}) {
			writeError(w, http.StatusNotFound, engine.ErrLeagueNotFound.Error())
			return
		}
		select {
		case v := <-reply:
			writeJSON(w, http.StatusOK, LeagueView{Version: v.Version, View: engine.NewView(v.Session)})
		case <-r.Context().Done():
		}
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func lookup(h *hub.Hub, code string) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	h.Inbox() <- hub.GetLobby{Code: code, Reply: reply}
	return <-reply
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, lobby.ErrorPayload{Message: message})
}
