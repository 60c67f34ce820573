package engine

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"time"

	"github.com/DoyleJ11/auction-draft-backend/pkg/types"
)

// Swapped out by tests for deterministic orders, PINs and log times.
var shuffle = mrand.Shuffle

var now = time.Now

var generatePin = func() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return fmt.Sprintf("%06d", 100000+mrand.IntN(900000))
	}
	return fmt.Sprintf("%06d", 100000+n.Int64())
}

// logf prepends an entry to the activity log, keeping the newest LogCapacity.
func (s *Session) logf(kind, format string, args ...any) {
	entry := LogEntry{Type: kind, Text: fmt.Sprintf(format, args...), Time: now()}
	s.ActivityLog = append([]LogEntry{entry}, s.ActivityLog...)
	if len(s.ActivityLog) > LogCapacity {
		s.ActivityLog = s.ActivityLog[:LogCapacity]
	}
}

func ContainsEvent(events []Event, eventType types.EventName) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func removePlayer(squad []Player, id int) []Player {
	out := squad[:0]
	for _, p := range squad {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func removeID(ids []int, id int) []int {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// View is the public LEAGUE_UPDATE payload. The admin PIN and admin
// connection id stay out of it.
type View struct {
	Code          string       `json:"code"`
	Name          string       `json:"name"`
	Config        LeagueConfig `json:"config"`
	Teams         []Team       `json:"teams"`
	State         State        `json:"state"`
	CurrentBid    Bid          `json:"currentBid"`
	CurrentPlayer *Player      `json:"currentPlayer"`
	Players       []Player     `json:"players"`
	ActivityLog   []LogEntry   `json:"activityLog"`
	PassedTeams   []string     `json:"passedTeams"`
	BiddingOrder  []string     `json:"biddingOrder"`
	ActiveTurn    *string      `json:"activeTurn"`
	Phase         TurnPhase    `json:"phase"`
}

// NewView copies everything it needs out of s.
func NewView(s *Session) View {
	c := s.Clone()
	v := View{
		Code:         c.Code,
		Name:         c.Name,
		Config:       c.Config,
		Teams:        c.Teams,
		State:        c.State,
		CurrentBid:   c.CurrentBid,
		Players:      c.Players,
		ActivityLog:  c.ActivityLog,
		PassedTeams:  c.Passed,
		BiddingOrder: c.BiddingOrder,
		Phase:        DerivePhase(s),
	}
	if v.PassedTeams == nil {
		v.PassedTeams = []string{}
	}
	if v.BiddingOrder == nil {
		v.BiddingOrder = []string{}
	}
	if p, ok := c.Current(); ok {
		v.CurrentPlayer = &p
	}
	if c.ActiveTurn != "" {
		turn := c.ActiveTurn
		v.ActiveTurn = &turn
	}
	return v
}
