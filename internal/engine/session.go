package engine

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type State string

const (
	StateWaiting State = "WAITING"
	StateLive    State = "LIVE"
	StateEnded   State = "ENDED"
)

type PlayerStatus string

const (
	PlayerWaiting PlayerStatus = "WAITING"
	PlayerSold    PlayerStatus = "SOLD"
	PlayerUnsold  PlayerStatus = "UNSOLD"
)

// LogCapacity bounds the activity log.
const LogCapacity = 50

// LeagueConfig is fixed once the league is created.
type LeagueConfig struct {
	TeamCount      int  `json:"teamCount"`
	PlayersPerTeam int  `json:"playersPerTeam"`
	Budget         int  `json:"budget"`
	BasePrice      int  `json:"basePrice"`
	MaxBid         *int `json:"maxBid"` // nil means no ceiling
}

func (c LeagueConfig) Validate() error {
	if c.TeamCount <= 0 || c.PlayersPerTeam <= 0 || c.Budget <= 0 || c.BasePrice <= 0 {
		return fmt.Errorf("%w: team count, squad size, budget and base price must be positive", ErrInvalidSettings)
	}
	if c.MaxBid != nil && *c.MaxBid < c.BasePrice {
		return fmt.Errorf("%w: max bid %d is below base price %d", ErrInvalidSettings, *c.MaxBid, c.BasePrice)
	}
	return nil
}

// AllowsBid reports whether amount is within the optional ceiling.
func (c LeagueConfig) AllowsBid(amount int) bool {
	return c.MaxBid == nil || amount <= *c.MaxBid
}

type Player struct {
	ID        int          `json:"id"`
	Name      string       `json:"name"`
	Category  string       `json:"category"`
	BasePrice int          `json:"basePrice"`
	Status    PlayerStatus `json:"status"`
	SoldTo    string       `json:"soldTo,omitempty"`
	SoldAt    int          `json:"soldAt,omitempty"`
}

type Team struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Budget int      `json:"budget"`
	Squad  []Player `json:"squad"`
}

func (t *Team) slotsLeft(c LeagueConfig) int { return c.PlayersPerTeam - len(t.Squad) }

// Bid with Amount 0 and no holder means nobody has bid on the lot yet.
type Bid struct {
	Amount     int    `json:"amount"`
	Holder     string `json:"holder,omitempty"`
	HolderName string `json:"holderName,omitempty"`
}

type LogEntry struct {
	Type string    `json:"type"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// Session is the authoritative record of one league's auction. It is only
// ever touched by the goroutine that owns it.
type Session struct {
	Code     string       `json:"code"`
	Name     string       `json:"name"`
	AdminID  string       `json:"adminId"`
	AdminPin string       `json:"adminPin"`
	Config   LeagueConfig `json:"config"`
	Teams    []Team       `json:"teams"`
	Players  []Player     `json:"players"`

	// Unpicked holds player ids still to be drawn; lots are popped off the end.
	Unpicked     []int    `json:"unpickedPlayers"`
	CurrentID    int      `json:"currentPlayerId"`
	CurrentBid   Bid      `json:"currentBid"`
	BidHistory   []Bid    `json:"bidHistory"`
	Passed       []string `json:"passedTeams"`
	BiddingOrder []string `json:"biddingOrder"`
	ActiveTurn   string   `json:"activeTurn"`
	RoundStart   int      `json:"roundRobinIndex"`

	State       State      `json:"state"`
	ActivityLog []LogEntry `json:"activityLog"`
}

// Defaults fill in any setting the admin left at zero.
type Defaults struct {
	LeagueName     string
	TeamCount      int
	PlayersPerTeam int
	Budget         int
	BasePrice      int
}

func DefaultSettings() Defaults {
	return Defaults{
		LeagueName:     "Premier League",
		TeamCount:      8,
		PlayersPerTeam: 15,
		Budget:         10000,
		BasePrice:      20,
	}
}

type PlayerInput struct {
	Name      string `json:"name"`
	Category  string `json:"category,omitempty"`
	BasePrice int    `json:"basePrice,omitempty"`
}

// Settings is what an admin submits when creating a league.
type Settings struct {
	LeagueName     string
	TeamCount      int
	PlayersPerTeam int
	Budget         int
	BasePrice      int
	MaxBid         *int
	Players        []PlayerInput
	PlayersCSV     string
}

// NewSession validates settings and builds a league in WAITING with a fresh
// admin PIN. No admin is bound until the creator's JoinAdmin is applied.
func NewSession(code string, in Settings, d Defaults) (*Session, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrMissingCode
	}

	cfg := LeagueConfig{
		TeamCount:      orDefault(in.TeamCount, d.TeamCount),
		PlayersPerTeam: orDefault(in.PlayersPerTeam, d.PlayersPerTeam),
		Budget:         orDefault(in.Budget, d.Budget),
		BasePrice:      orDefault(in.BasePrice, d.BasePrice),
	}
	if in.MaxBid != nil && *in.MaxBid != 0 {
		ceiling := *in.MaxBid
		cfg.MaxBid = &ceiling
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	inputs := in.Players
	if in.PlayersCSV != "" {
		parsed, err := ParseRosterCSV(in.PlayersCSV)
		if err != nil {
			return nil, err
		}
		inputs = append(append([]PlayerInput(nil), inputs...), parsed...)
	}

	players := make([]Player, 0, len(inputs))
	for _, p := range inputs {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		cat := strings.TrimSpace(p.Category)
		if cat == "" {
			cat = "General"
		}
		players = append(players, Player{
			ID:        len(players) + 1,
			Name:      name,
			Category:  cat,
			BasePrice: orDefault(p.BasePrice, cfg.BasePrice),
			Status:    PlayerWaiting,
		})
	}
	if len(players) == 0 {
		return nil, ErrEmptyPlayerList
	}

	name := strings.TrimSpace(in.LeagueName)
	if name == "" {
		name = d.LeagueName
	}

	s := &Session{
		Code:        code,
		Name:        name,
		AdminPin:    generatePin(),
		Config:      cfg,
		Teams:       []Team{},
		Players:     players,
		Unpicked:    make([]int, len(players)),
		RoundStart:  -1,
		State:       StateWaiting,
		ActivityLog: []LogEntry{},
	}
	for i, p := range players {
		s.Unpicked[i] = p.ID
	}
	return s, nil
}

func orDefault(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// Current returns the player on the block, if any.
func (s *Session) Current() (Player, bool) {
	if s.CurrentID == 0 {
		return Player{}, false
	}
	p := s.player(s.CurrentID)
	if p == nil {
		return Player{}, false
	}
	return *p, true
}

// lotOpen is true while the current lot can still be bid on or resolved.
func (s *Session) lotOpen() bool {
	p, ok := s.Current()
	return ok && p.Status == PlayerWaiting
}

// LotResolved is true between a Sold/Skip and the next lot being drawn.
func (s *Session) LotResolved() bool {
	p, ok := s.Current()
	return ok && p.Status != PlayerWaiting
}

func (s *Session) player(id int) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

func (s *Session) teamByName(name string) *Team {
	for i := range s.Teams {
		if s.Teams[i].Name == name {
			return &s.Teams[i]
		}
	}
	return nil
}

func (s *Session) teamByClient(clientID string) *Team {
	if clientID == "" {
		return nil
	}
	for i := range s.Teams {
		if s.Teams[i].ID == clientID {
			return &s.Teams[i]
		}
	}
	return nil
}

func (s *Session) hasPassed(team string) bool { return slices.Contains(s.Passed, team) }

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Session) Clone() *Session {
	c := *s
	if s.Config.MaxBid != nil {
		ceiling := *s.Config.MaxBid
		c.Config.MaxBid = &ceiling
	}
	c.Teams = cloneTeams(s.Teams)
	c.Players = clone(s.Players)
	c.Unpicked = clone(s.Unpicked)
	c.BidHistory = clone(s.BidHistory)
	c.Passed = clone(s.Passed)
	c.BiddingOrder = clone(s.BiddingOrder)
	c.ActivityLog = clone(s.ActivityLog)
	return &c
}

func cloneTeams(in []Team) []Team {
	out := make([]Team, len(in))
	for i, t := range in {
		out[i] = t
		out[i].Squad = clone(t.Squad)
	}
	return out
}

// clone copies a slice, keeping empty (non-nil) slices empty so they encode as [].
func clone[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
