package lobby

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/DoyleJ11/auction-draft-backend/internal/engine"
	"github.com/DoyleJ11/auction-draft-backend/pkg/types"
)

type Msg interface{ isLobbyMsg() }

type FromClient struct {
	Cmd engine.Command
}

func (FromClient) isLobbyMsg() {}

type Subscribe struct {
	ClientID string
	Outbox   chan Message // where this client wants to receive server messages
}

func (Subscribe) isLobbyMsg() {}

type Unsubscribe struct{ ClientID string }

func (Unsubscribe) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// advanceLot is posted by the deferred timer once a resolved lot has been shown.
type advanceLot struct{}

func (advanceLot) isLobbyMsg() {}

// Message is one outbound server message. Payload is owned by the receiver.
type Message struct {
	Version int
	Type    types.EventName
	Payload any
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type View struct {
	Version    int
	NumClients int
	Session    *engine.Session
}

// FinalSuffix marks the snapshot written when the admin ends the session.
const FinalSuffix = "FINAL_SESSION"

// Snapshot is handed to post-commit hooks after every accepted command.
// Document is the full session as JSON; Latest is the activity entry the
// command added, if any.
type Snapshot struct {
	Code     string
	Name     string
	State    engine.State
	Version  int
	Suffix   string
	Taken    time.Time
	Document []byte
	Latest   *engine.LogEntry
}

// Hook is a best-effort side effect. Its error is logged, never returned.
type Hook func(ctx context.Context, snap Snapshot) error

const (
	DefaultAdvanceDelay = time.Second
	hookTimeout         = 5 * time.Second
	hookBacklog         = 256
)

type Option func(*Lobby)

func WithHooks(hooks ...Hook) Option {
	return func(l *Lobby) { l.hooks = append(l.hooks, hooks...) }
}

func WithClock(c clockwork.Clock) Option {
	return func(l *Lobby) { l.clock = c }
}

func WithAdvanceDelay(d time.Duration) Option {
	return func(l *Lobby) { l.delay = d }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Lobby) { l.log = log }
}

// WithVersion resumes a hydrated session at its stored version.
func WithVersion(v int) Option {
	return func(l *Lobby) { l.version = v }
}

type Lobby struct {
	inbox   chan Msg
	session *engine.Session
	version int
	clients map[string]chan Message
	ctx     context.Context
	cancel  context.CancelFunc

	clock   clockwork.Clock
	delay   time.Duration
	advance clockwork.Timer
	log     *zap.Logger

	hooks   []Hook
	pending chan Snapshot
	done    chan struct{}
}

// NewLobby starts the goroutine that owns s. Nothing else may touch s after
// this call.
func NewLobby(parent context.Context, s *engine.Session, opts ...Option) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		inbox:   make(chan Msg, 64),
		session: s,
		clients: make(map[string]chan Message),
		ctx:     ctx,
		cancel:  cancel,
		clock:   clockwork.NewRealClock(),
		delay:   DefaultAdvanceDelay,
		log:     zap.NewNop(),
		pending: make(chan Snapshot, hookBacklog),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With(zap.String("league", s.Code))

	// A session restored mid-auction may be sitting on a resolved lot.
	if s.State == engine.StateLive && s.LotResolved() {
		l.scheduleAdvance()
	}

	go l.runHooks()
	go l.loop()
	return l
}

// Inbox exposes the inbox so the ws layer and tests can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Send delivers m unless the lobby has shut down.
func (l *Lobby) Send(m Msg) bool {
	if l.ctx.Err() != nil {
		return false
	}
	select {
	case l.inbox <- m:
		return true
	case <-l.ctx.Done():
		return false
	}
}

// Done is closed once the lobby has stopped and every queued hook has run.
func (l *Lobby) Done() <-chan struct{} { return l.done }

func (l *Lobby) Code() string { return l.session.Code }

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Subscribe:
				l.clients[msg.ClientID] = msg.Outbox
				l.sendTo(msg.ClientID, l.leagueUpdate())

			case Unsubscribe:
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch)
					delete(l.clients, msg.ClientID)
				}

			case FromClient:
				l.apply(msg.Cmd)

			case advanceLot:
				l.advance = nil
				l.apply(engine.NextLot{})

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					Session:    l.session.Clone(),
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) apply(cmd engine.Command) {
	head := logHead(l.session)
	events, err := engine.Apply(l.session, cmd)
	if err != nil {
		if engine.Explicit(err) {
			l.sendTo(cmd.Caller(), Message{Version: l.version, Type: types.EvtError, Payload: ErrorPayload{Message: err.Error()}})
			return
		}
		l.log.Debug("command rejected",
			zap.String("client", cmd.Caller()),
			zap.String("cmd", fmt.Sprintf("%T", cmd)),
			zap.Error(err))
		return
	}

	l.version++
	if engine.ContainsEvent(events, types.EvtPlayerSold) || engine.ContainsEvent(events, types.EvtPlayerUnsold) {
		l.scheduleAdvance()
	}

	for _, ev := range events {
		m := Message{Version: l.version, Type: ev.Type, Payload: ev.Payload}
		if ev.To != "" {
			l.sendTo(ev.To, m)
		} else {
			l.broadcast(m)
		}
	}
	l.broadcast(l.leagueUpdate())

	suffix := ""
	if _, ok := cmd.(engine.EndSession); ok {
		suffix = FinalSuffix
	}
	l.commit(suffix, logHead(l.session) != head)
}

// logHead identifies the newest activity entry. Every log write allocates a
// new slice, so a changed head means the command logged something.
func logHead(s *engine.Session) *engine.LogEntry {
	if len(s.ActivityLog) == 0 {
		return nil
	}
	return &s.ActivityLog[0]
}

func (l *Lobby) leagueUpdate() Message {
	return Message{Version: l.version, Type: types.EvtLeagueUpdate, Payload: engine.NewView(l.session)}
}

func (l *Lobby) scheduleAdvance() {
	if l.advance != nil {
		l.advance.Stop()
	}
	l.advance = l.clock.AfterFunc(l.delay, func() { l.Send(advanceLot{}) })
}

// commit queues a snapshot for the hook worker. Hooks run in version order.
func (l *Lobby) commit(suffix string, logged bool) {
	if len(l.hooks) == 0 {
		return
	}
	doc, err := json.Marshal(l.session)
	if err != nil {
		l.log.Warn("encode snapshot", zap.Int("version", l.version), zap.Error(err))
		return
	}
	snap := Snapshot{
		Code:     l.session.Code,
		Name:     l.session.Name,
		State:    l.session.State,
		Version:  l.version,
		Suffix:   suffix,
		Taken:    l.clock.Now(),
		Document: doc,
	}
	if logged {
		latest := l.session.ActivityLog[0]
		snap.Latest = &latest
	}

	select {
	case l.pending <- snap:
	default:
		l.log.Warn("hook backlog full, dropping snapshot", zap.Int("version", l.version))
	}
}

func (l *Lobby) runHooks() {
	defer close(l.done)
	for snap := range l.pending {
		for _, h := range l.hooks {
			l.runHook(h, snap)
		}
	}
}

func (l *Lobby) runHook(h Hook, snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(l.ctx), hookTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			l.log.Warn("hook panicked", zap.Int("version", snap.Version), zap.Any("panic", r))
		}
	}()
	if err := h(ctx, snap); err != nil {
		l.log.Warn("hook failed", zap.Int("version", snap.Version), zap.Error(err))
	}
}

func (l *Lobby) shutdown() {
	if l.advance != nil {
		l.advance.Stop()
		l.advance = nil
	}
	for id, ch := range l.clients {
		close(ch) // no more messages for this client
		delete(l.clients, id)
	}
	l.cancel()
	close(l.pending)
}

func (l *Lobby) sendTo(clientID string, m Message) {
	ch, ok := l.clients[clientID]
	if !ok {
		return
	}
	select {
	case ch <- m:
	default:
		l.drop(clientID, ch)
	}
}

func (l *Lobby) broadcast(m Message) {
	for id, ch := range l.clients {
		select {
		case ch <- m:
			//ok
		default:
			// Client is slow/full - drop them.
			l.drop(id, ch)
		}
	}
}

func (l *Lobby) drop(clientID string, ch chan Message) {
	close(ch)
	delete(l.clients, clientID)
	l.log.Info("dropped slow client", zap.String("client", clientID))
}
