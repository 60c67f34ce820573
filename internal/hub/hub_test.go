package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/auction-draft-backend/internal/engine"
	"github.com/DoyleJ11/auction-draft-backend/internal/lobby"
)

func newHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHub(ctx, zap.NewNop())
}

func build(code string) func() (*engine.Session, error) {
	return func() (*engine.Session, error) {
		return engine.NewSession(code, engine.Settings{Players: []engine.PlayerInput{{Name: "P1"}}}, engine.DefaultSettings())
	}
}

func ensure(h *Hub, code string, b func() (*engine.Session, error)) EnsureResult {
	reply := make(chan EnsureResult, 1)
	h.Inbox() <- Ensure{Code: code, Build: b, Reply: reply}
	return <-reply
}

func get(h *Hub, code string) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	h.Inbox() <- GetLobby{Code: code, Reply: reply}
	return <-reply
}

func TestHub_Ensure_Get_SamePointer(t *testing.T) {
	h := newHub(t)

	first := ensure(h, "ZED123", build("ZED123"))
	require.NoError(t, first.Err)
	assert.True(t, first.Created)

	built := false
	second := ensure(h, "ZED123", func() (*engine.Session, error) {
		built = true
		return nil, nil
	})
	assert.False(t, built, "build must not run for a registered code")
	assert.False(t, second.Created)
	assert.Same(t, first.Lobby, second.Lobby)
	assert.Same(t, first.Lobby, get(h, "ZED123"))
	assert.Nil(t, get(h, "NOPE00"))
}

func TestHub_ConcurrentEnsureCreatesOnce(t *testing.T) {
	h := newHub(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		lobbies = map[*lobby.Lobby]bool{}
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := ensure(h, "RACE01", build("RACE01"))
			mu.Lock()
			defer mu.Unlock()
			if res.Created {
				created++
			}
			lobbies[res.Lobby] = true
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, lobbies, 1)
}

func TestHub_BuildErrorRegistersNothing(t *testing.T) {
	h := newHub(t)

	res := ensure(h, "EMPTY1", func() (*engine.Session, error) {
		return engine.NewSession("EMPTY1", engine.Settings{}, engine.DefaultSettings())
	})
	require.ErrorIs(t, res.Err, engine.ErrEmptyPlayerList)
	assert.Nil(t, res.Lobby)
	assert.Nil(t, get(h, "EMPTY1"))
}

type fakeLoader struct {
	snaps []lobby.Snapshot
	err   error
}

func (f fakeLoader) LoadAll(context.Context) ([]lobby.Snapshot, error) { return f.snaps, f.err }

func document(t *testing.T, code string) []byte {
	t.Helper()
	s, err := build(code)()
	require.NoError(t, err)
	doc, err := json.Marshal(s)
	require.NoError(t, err)
	return doc
}

func TestHub_Hydrate(t *testing.T) {
	h := newHub(t)
	live := ensure(h, "LIVE01", build("LIVE01"))
	require.NoError(t, live.Err)

	n, err := h.Hydrate(context.Background(), fakeLoader{snaps: []lobby.Snapshot{
		{Code: "OLD001", Version: 12, Document: document(t, "OLD001")},
		{Code: "BAD001", Document: []byte("{not json")},
		{Code: "LIVE01", Version: 3, Document: document(t, "LIVE01")},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	restored := get(h, "OLD001")
	require.NotNil(t, restored)
	reply := make(chan lobby.View, 1)
	restored.Inbox() <- lobby.GetState{Reply: reply}
	v := <-reply
	assert.Equal(t, 12, v.Version)
	assert.Equal(t, "OLD001", v.Session.Code)

	assert.Nil(t, get(h, "BAD001"))
	assert.Same(t, live.Lobby, get(h, "LIVE01"), "a live lobby is never replaced")
}

func TestHub_HydrateLoaderFailure(t *testing.T) {
	h := newHub(t)

	n, err := h.Hydrate(context.Background(), fakeLoader{err: errors.New("connection refused")})
	require.Error(t, err)
	assert.Zero(t, n)
}

func TestHub_ShutdownStopsLobbies(t *testing.T) {
	h := newHub(t)
	res := ensure(h, "BYE001", build("BYE001"))
	require.NoError(t, res.Err)

	out := make(chan lobby.Message, 4)
	res.Lobby.Inbox() <- lobby.Subscribe{ClientID: "c1", Outbox: out}
	<-out

	done := make(chan struct{})
	h.Inbox() <- ShutdownHub{Done: done}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not shut down")
	}

	_, ok := <-out
	assert.False(t, ok, "client outbox should be closed")
	<-res.Lobby.Done()
}
