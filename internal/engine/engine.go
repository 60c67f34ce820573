package engine

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/auction-draft-backend/pkg/types"
)

// Rejections that the lobby drops silently: the broadcast state already
// tells the client why the action had no effect.
var ErrWrongState = errors.New("command not allowed in current state")
var ErrNotAdmin = errors.New("caller is not the league admin")
var ErrNotCaptain = errors.New("caller has no team")
var ErrNoLot = errors.New("no open lot")
var ErrWrongTurn = errors.New("not your turn")
var ErrAlreadyPassed = errors.New("team already passed on this lot")
var ErrBidTooLow = errors.New("bid must exceed current bid")
var ErrOverBudget = errors.New("bid exceeds budget")
var ErrOverMaxBid = errors.New("bid exceeds max bid")
var ErrSquadFull = errors.New("squad is full")
var ErrReserve = errors.New("bid leaves too little budget to fill squad")
var ErrNoBid = errors.New("no bid to act on")
var ErrNothingToUndo = errors.New("no bid history")
var ErrUnsupportedCommand = errors.New("unsupported command")

// Rejections reported back to the caller as an ERROR event.
var ErrLeagueNotFound = errors.New("league not found")
var ErrLeagueFull = errors.New("league full")
var ErrInvalidPin = errors.New("invalid admin PIN")
var ErrEmptyPlayerList = errors.New("player list is empty")
var ErrInvalidSettings = errors.New("invalid league settings")
var ErrMissingCode = errors.New("league code is required")
var ErrMissingTeamName = errors.New("team name is required")
var ErrNotAllTeamsJoined = errors.New("not all teams have joined")
var ErrPlayerNotFound = errors.New("player not found")
var ErrTeamNotFound = errors.New("team not found")
var ErrPlayerOnBlock = errors.New("player is currently being auctioned")
var ErrInvalidAssignment = errors.New("invalid assignment")

var explicit = []error{
	ErrLeagueNotFound, ErrLeagueFull, ErrInvalidPin, ErrEmptyPlayerList,
	ErrInvalidSettings, ErrMissingCode, ErrMissingTeamName, ErrNotAllTeamsJoined,
	ErrPlayerNotFound, ErrTeamNotFound, ErrPlayerOnBlock, ErrInvalidAssignment,
}

// Explicit reports whether err should be surfaced to the caller.
func Explicit(err error) bool {
	for _, e := range explicit {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// Command is the closed set of inputs Apply understands. Every variant embeds
// Origin so the caller's connection id travels with it.
type Command interface {
	Caller() string
	isCommand()
}

type Origin struct {
	ClientID string
}

func (o Origin) Caller() string { return o.ClientID }
func (Origin) isCommand()       {}

// JoinAdmin binds the caller as admin. Creator is set by the transport only
// for the connection whose settings created the league; everyone else needs
// the PIN.
type JoinAdmin struct {
	Origin
	Pin     string
	Creator bool
}

type JoinCaptain struct {
	Origin
	Name string
}

type StartAuction struct{ Origin }

type PlaceBid struct {
	Origin
	Amount int
}

type Pass struct{ Origin }

type Sold struct{ Origin }

type SkipPlayer struct{ Origin }

type UndoBid struct{ Origin }

type RestartBidding struct{ Origin }

type AssignPlayer struct {
	Origin
	PlayerID int
	TeamName string
	Price    int
}

type UnassignPlayer struct {
	Origin
	PlayerID int
}

type EndSession struct{ Origin }

// NextLot draws the next player once a resolved lot has been shown. It is
// issued by the lobby's deferred timer, never by clients.
type NextLot struct{ Origin }

// Event is a notification produced by a command. An empty To means the
// whole room.
type Event struct {
	Type    types.EventName
	To      string
	Payload any
}

type NewPlayerPayload struct {
	Player     Player `json:"player"`
	CurrentBid Bid    `json:"currentBid"`
}

type SoldPayload struct {
	Player Player `json:"player"`
	Winner string `json:"winner"`
	Amount int    `json:"amount"`
}

type UnsoldPayload struct {
	Player Player `json:"player"`
}

// Apply validates cmd against s and mutates s in place. On error s is left
// untouched.
func Apply(s *Session, cmd Command) ([]Event, error) {
	switch c := cmd.(type) {
	case JoinAdmin:
		return joinAdmin(s, c)
	case JoinCaptain:
		return joinCaptain(s, c)
	case StartAuction:
		return startAuction(s)
	case PlaceBid:
		return placeBid(s, c)
	case Pass:
		return pass(s, c)
	case NextLot:
		if s.State != StateLive || s.lotOpen() {
			return nil, ErrWrongState
		}
		return pickNextPlayer(s), nil
	}

	// Everything below is admin only.
	if s.AdminID == "" || cmd.Caller() != s.AdminID {
		return nil, ErrNotAdmin
	}

	switch c := cmd.(type) {
	case Sold:
		return sold(s)
	case SkipPlayer:
		return skipPlayer(s)
	case UndoBid:
		return undoBid(s)
	case RestartBidding:
		return restartBidding(s)
	case AssignPlayer:
		return assignPlayer(s, c)
	case UnassignPlayer:
		return unassignPlayer(s, c)
	case EndSession:
		return endSession(s)
	default:
		return nil, ErrUnsupportedCommand
	}
}

func joinAdmin(s *Session, c JoinAdmin) ([]Event, error) {
	if !c.Creator && c.Pin != s.AdminPin {
		return nil, ErrInvalidPin
	}
	s.AdminID = c.ClientID
	return []Event{{Type: types.EvtAdminRestore, To: c.ClientID, Payload: s.Clone()}}, nil
}

func joinCaptain(s *Session, c JoinCaptain) ([]Event, error) {
	if c.Name == "" {
		return nil, ErrMissingTeamName
	}
	if t := s.teamByName(c.Name); t != nil {
		t.ID = c.ClientID
		return nil, nil
	}
	if len(s.Teams) >= s.Config.TeamCount {
		return nil, fmt.Errorf("%w: max %d teams allowed", ErrLeagueFull, s.Config.TeamCount)
	}
	s.Teams = append(s.Teams, Team{
		ID:     c.ClientID,
		Name:   c.Name,
		Budget: s.Config.Budget,
		Squad:  []Player{},
	})
	s.logf("JOIN", "%s joined the league", c.Name)
	return nil, nil
}

func startAuction(s *Session) ([]Event, error) {
	if s.State != StateWaiting {
		return nil, ErrWrongState
	}
	if len(s.Teams) != s.Config.TeamCount {
		return nil, fmt.Errorf("%w: %d of %d", ErrNotAllTeamsJoined, len(s.Teams), s.Config.TeamCount)
	}

	shuffle(len(s.Unpicked), func(i, j int) { s.Unpicked[i], s.Unpicked[j] = s.Unpicked[j], s.Unpicked[i] })

	order := make([]string, len(s.Teams))
	for i, t := range s.Teams {
		order[i] = t.Name
	}
	shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	s.BiddingOrder = order
	s.RoundStart = -1
	s.State = StateLive
	s.logf("START", "Auction started")

	return pickNextPlayer(s), nil
}

func placeBid(s *Session, c PlaceBid) ([]Event, error) {
	if s.State != StateLive {
		return nil, ErrWrongState
	}
	team := s.teamByClient(c.ClientID)
	if team == nil {
		return nil, ErrNotCaptain
	}
	if !s.lotOpen() {
		return nil, ErrNoLot
	}
	if s.ActiveTurn != team.Name {
		return nil, ErrWrongTurn
	}
	if s.hasPassed(team.Name) {
		return nil, ErrAlreadyPassed
	}
	if c.Amount <= s.CurrentBid.Amount {
		return nil, ErrBidTooLow
	}
	if c.Amount > team.Budget {
		return nil, ErrOverBudget
	}
	if !s.Config.AllowsBid(c.Amount) {
		return nil, ErrOverMaxBid
	}
	if team.slotsLeft(s.Config) <= 0 {
		return nil, ErrSquadFull
	}
	// Whatever is left after this purchase must still cover the base price of
	// every empty slot.
	if after := team.slotsLeft(s.Config) - 1; after > 0 && team.Budget-c.Amount < after*s.Config.BasePrice {
		return nil, ErrReserve
	}

	s.BidHistory = append(s.BidHistory, s.CurrentBid)
	s.CurrentBid = Bid{Amount: c.Amount, Holder: team.ID, HolderName: team.Name}
	s.logf("BID", "%s bid %d", team.Name, c.Amount)
	findNextTurn(s)

	return []Event{{Type: types.EvtBidUpdate, Payload: s.CurrentBid}}, nil
}

func pass(s *Session, c Pass) ([]Event, error) {
	if s.State != StateLive {
		return nil, ErrWrongState
	}
	team := s.teamByClient(c.ClientID)
	if team == nil {
		return nil, ErrNotCaptain
	}
	if !s.lotOpen() {
		return nil, ErrNoLot
	}
	if s.ActiveTurn != team.Name {
		return nil, ErrWrongTurn
	}
	if s.hasPassed(team.Name) {
		return nil, ErrAlreadyPassed
	}

	s.Passed = append(s.Passed, team.Name)
	p, _ := s.Current()
	s.logf("PASS", "%s passed on %s", team.Name, p.Name)
	findNextTurn(s)
	return nil, nil
}

func sold(s *Session) ([]Event, error) {
	if s.State != StateLive || !s.lotOpen() {
		return nil, ErrNoLot
	}
	if s.CurrentBid.HolderName == "" {
		return nil, ErrNoBid
	}
	// Holder connection ids change on reconnect; the team name does not.
	team := s.teamByName(s.CurrentBid.HolderName)
	if team == nil {
		return nil, ErrNoBid
	}

	amount := s.CurrentBid.Amount
	p := s.player(s.CurrentID)
	team.Budget -= amount
	p.Status = PlayerSold
	p.SoldTo = team.Name
	p.SoldAt = amount
	team.Squad = append(team.Squad, *p)
	s.ActiveTurn = ""
	s.logf("SOLD", "%s SOLD to %s for %d", p.Name, team.Name, amount)

	return []Event{{
		Type:    types.EvtPlayerSold,
		Payload: SoldPayload{Player: *p, Winner: team.Name, Amount: amount},
	}}, nil
}

func skipPlayer(s *Session) ([]Event, error) {
	if s.State != StateLive || !s.lotOpen() {
		return nil, ErrNoLot
	}
	p := s.player(s.CurrentID)
	p.Status = PlayerUnsold
	s.ActiveTurn = ""
	s.logf("SKIP", "%s was UNSOLD (skipped)", p.Name)
	return []Event{{Type: types.EvtPlayerUnsold, Payload: UnsoldPayload{Player: *p}}}, nil
}

func undoBid(s *Session) ([]Event, error) {
	if s.State != StateLive || !s.lotOpen() {
		return nil, ErrNoLot
	}
	if len(s.BidHistory) == 0 {
		return nil, ErrNothingToUndo
	}
	last := len(s.BidHistory) - 1
	s.CurrentBid = s.BidHistory[last]
	s.BidHistory = s.BidHistory[:last]
	s.logf("UNDO", "Last bid undone, current bid %d", s.CurrentBid.Amount)
	return []Event{{Type: types.EvtBidUpdate, Payload: s.CurrentBid}}, nil
}

func restartBidding(s *Session) ([]Event, error) {
	if s.State != StateLive || !s.lotOpen() {
		return nil, ErrNoLot
	}
	s.CurrentBid = Bid{}
	s.BidHistory = nil
	s.Passed = nil
	openLot(s)
	s.logf("RESTART", "Bidding restarted")
	return []Event{{Type: types.EvtBidUpdate, Payload: s.CurrentBid}}, nil
}

func assignPlayer(s *Session, c AssignPlayer) ([]Event, error) {
	p := s.player(c.PlayerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if c.PlayerID == s.CurrentID && s.lotOpen() {
		return nil, ErrPlayerOnBlock
	}
	target := s.teamByName(c.TeamName)
	if target == nil {
		return nil, fmt.Errorf("%w: %q", ErrTeamNotFound, c.TeamName)
	}
	if c.Price < s.Config.BasePrice {
		return nil, fmt.Errorf("%w: price %d is below base price %d", ErrInvalidAssignment, c.Price, s.Config.BasePrice)
	}
	if !s.Config.AllowsBid(c.Price) {
		return nil, fmt.Errorf("%w: price %d exceeds max bid %d", ErrInvalidAssignment, c.Price, *s.Config.MaxBid)
	}

	var prev *Team
	if p.Status == PlayerSold {
		prev = s.teamByName(p.SoldTo)
	}
	sameTeam := prev != nil && prev.Name == target.Name
	// The holder of the open lot's bid already owes that amount and a slot.
	committed, reserved := 0, 0
	if s.lotOpen() && s.CurrentBid.HolderName == target.Name {
		committed, reserved = s.CurrentBid.Amount, 1
	}
	if !sameTeam && target.slotsLeft(s.Config)-reserved <= 0 {
		return nil, fmt.Errorf("%w: %s has no empty slot", ErrInvalidAssignment, target.Name)
	}
	available := target.Budget - committed
	if sameTeam {
		available += p.SoldAt
	}
	if available < c.Price {
		return nil, fmt.Errorf("%w: %s cannot afford %d", ErrInvalidAssignment, target.Name, c.Price)
	}

	if prev != nil {
		prev.Budget += p.SoldAt
		prev.Squad = removePlayer(prev.Squad, p.ID)
	}
	s.Unpicked = removeID(s.Unpicked, p.ID)

	target.Budget -= c.Price
	p.Status = PlayerSold
	p.SoldTo = target.Name
	p.SoldAt = c.Price
	target.Squad = append(target.Squad, *p)
	s.logf("ASSIGN", "%s assigned to %s for %d", p.Name, target.Name, c.Price)
	return nil, nil
}

func unassignPlayer(s *Session, c UnassignPlayer) ([]Event, error) {
	p := s.player(c.PlayerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if c.PlayerID == s.CurrentID && s.lotOpen() {
		return nil, ErrPlayerOnBlock
	}
	if p.Status == PlayerSold {
		if owner := s.teamByName(p.SoldTo); owner != nil {
			owner.Budget += p.SoldAt
			owner.Squad = removePlayer(owner.Squad, p.ID)
		}
	}
	s.Unpicked = removeID(s.Unpicked, p.ID)
	p.Status = PlayerUnsold
	p.SoldTo = ""
	p.SoldAt = 0
	s.logf("UNASSIGN", "%s released back to UNSOLD", p.Name)
	return nil, nil
}

func endSession(s *Session) ([]Event, error) {
	s.State = StateEnded
	s.ActiveTurn = ""
	s.logf("END", "Auction ended by admin")
	return []Event{{Type: types.EvtAuctionEnded}}, nil
}
