package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/auction-draft-backend/internal/engine"
	"github.com/DoyleJ11/auction-draft-backend/internal/lobby"
)

type HubMsg interface{ isHubMsg() }

// Ensure returns the lobby for Code, building its session with Build only if
// no lobby is registered yet. A Build error is returned and nothing is
// registered.
type Ensure struct {
	Code  string
	Build func() (*engine.Session, error)
	Reply chan EnsureResult
}

type EnsureResult struct {
	Lobby   *lobby.Lobby
	Created bool
	Err     error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// Restore registers a session loaded from storage. It never replaces a live
// lobby; Reply reports whether the session was registered.
type Restore struct {
	Session *engine.Session
	Version int
	Reply   chan bool
}

// ShutdownHub stops every lobby and closes Done once their hooks have drained.
type ShutdownHub struct {
	Done chan struct{}
}

func (Ensure) isHubMsg()      {}
func (GetLobby) isHubMsg()    {}
func (Restore) isHubMsg()     {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	opts    []lobby.Option
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewHub starts the registry. opts are applied to every lobby it creates.
func NewHub(parent context.Context, log *zap.Logger, opts ...lobby.Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		opts:    append([]lobby.Option{lobby.WithLogger(log)}, opts...),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Ensure:
				if lb := h.lobbies[msg.Code]; lb != nil {
					msg.Reply <- EnsureResult{Lobby: lb}
					break
				}
				s, err := msg.Build()
				if err != nil {
					msg.Reply <- EnsureResult{Err: err}
					break
				}
				lb := lobby.NewLobby(h.ctx, s, h.opts...)
				h.lobbies[msg.Code] = lb
				h.log.Info("league created", zap.String("league", msg.Code))
				msg.Reply <- EnsureResult{Lobby: lb, Created: true}

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case Restore:
				if h.lobbies[msg.Session.Code] != nil {
					msg.Reply <- false
					break
				}
				opts := append(h.opts[:len(h.opts):len(h.opts)], lobby.WithVersion(msg.Version))
				h.lobbies[msg.Session.Code] = lobby.NewLobby(h.ctx, msg.Session, opts...)
				msg.Reply <- true

			case ShutdownHub:
				for _, lb := range h.lobbies {
					lb.Send(lobby.Shutdown{})
				}
				for _, lb := range h.lobbies {
					<-lb.Done()
				}
				clear(h.lobbies)
				h.cancel()
				close(msg.Done)
				return
			}
		}
	}
}

// Loader yields the latest stored snapshot of every league.
type Loader interface {
	LoadAll(ctx context.Context) ([]lobby.Snapshot, error)
}

// Hydrate restores every stored league into the registry. It is best effort:
// undecodable records are logged and skipped, and a failing loader leaves the
// registry empty.
func (h *Hub) Hydrate(ctx context.Context, loader Loader) (int, error) {
	snaps, err := loader.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("hydrate: %w", err)
	}

	restored := 0
	for _, snap := range snaps {
		var s engine.Session
		if err := json.Unmarshal(snap.Document, &s); err != nil {
			h.log.Error("hydrate: bad document", zap.String("league", snap.Code), zap.Error(err))
			continue
		}
		if s.Code == "" {
			s.Code = snap.Code
		}

		reply := make(chan bool, 1)
		select {
		case h.inbox <- Restore{Session: &s, Version: snap.Version, Reply: reply}:
		case <-ctx.Done():
			return restored, ctx.Err()
		}
		if <-reply {
			restored++
		}
	}
	return restored, nil
}
