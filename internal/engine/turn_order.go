package engine

import "github.com/DoyleJ11/auction-draft-backend/pkg/types"

// TurnPhase is the bidding state of the current lot, derived from the session.
type TurnPhase string

const (
	PhaseNoActiveLot       TurnPhase = "NoActiveLot"
	PhaseAwaitingFirstBid  TurnPhase = "AwaitingFirstBid"
	PhaseBiddingInProgress TurnPhase = "BiddingInProgress"
	PhaseRoundExhausted    TurnPhase = "RoundExhausted"
)

func DerivePhase(s *Session) TurnPhase {
	switch {
	case s.State != StateLive || !s.lotOpen():
		return PhaseNoActiveLot
	case s.ActiveTurn == "":
		return PhaseRoundExhausted
	case s.CurrentBid.Amount == 0:
		return PhaseAwaitingFirstBid
	default:
		return PhaseBiddingInProgress
	}
}

// pickNextPlayer puts the next unpicked player on the block, or ends the
// auction when the pool is empty. The opening team moves one seat along the
// bidding order with every lot.
func pickNextPlayer(s *Session) []Event {
	if len(s.Unpicked) == 0 {
		s.State = StateEnded
		s.CurrentID = 0
		s.ActiveTurn = ""
		s.logf("END", "All players auctioned")
		return []Event{{Type: types.EvtAuctionEnded}}
	}

	last := len(s.Unpicked) - 1
	s.CurrentID = s.Unpicked[last]
	s.Unpicked = s.Unpicked[:last]
	s.CurrentBid = Bid{}
	s.BidHistory = nil
	s.Passed = nil
	if n := len(s.BiddingOrder); n > 0 {
		s.RoundStart = (s.RoundStart + 1) % n
	}
	openLot(s)

	p, _ := s.Current()
	s.logf("NEW_LOT", "%s is up for auction (base %d)", p.Name, p.BasePrice)
	return []Event{{Type: types.EvtNewPlayer, Payload: NewPlayerPayload{Player: p, CurrentBid: s.CurrentBid}}}
}

// openLot hands the turn to the lot's opening team, or to the next team that
// can bid if the opener cannot.
func openLot(s *Session) {
	s.ActiveTurn = ""
	if len(s.BiddingOrder) == 0 || s.RoundStart < 0 {
		return
	}
	opener := s.BiddingOrder[s.RoundStart%len(s.BiddingOrder)]
	if canBid(s, opener) {
		s.ActiveTurn = opener
		return
	}
	s.ActiveTurn = opener
	findNextTurn(s)
}

// findNextTurn walks the bidding order from the active team, visiting every
// other team once, and hands the turn to the first one still able to bid.
// With no such team the round is over and the admin must sell or skip.
func findNextTurn(s *Session) {
	n := len(s.BiddingOrder)
	start := indexOf(s.BiddingOrder, s.ActiveTurn)
	s.ActiveTurn = ""
	if start < 0 {
		return
	}
	for step := 1; step < n; step++ {
		name := s.BiddingOrder[(start+step)%n]
		if canBid(s, name) {
			s.ActiveTurn = name
			return
		}
	}
}

// canBid is false for teams that passed on this lot, have a full squad, or
// cannot reach the next acceptable amount. Before the first bid that is the
// base price of the player on the block.
func canBid(s *Session, name string) bool {
	if s.hasPassed(name) {
		return false
	}
	t := s.teamByName(name)
	if t == nil || t.slotsLeft(s.Config) <= 0 {
		return false
	}
	need := s.Config.BasePrice
	if p, ok := s.Current(); ok && p.BasePrice > 0 {
		need = p.BasePrice
	}
	if s.CurrentBid.Amount > 0 {
		need = s.CurrentBid.Amount + 1
	}
	return t.Budget >= need && s.Config.AllowsBid(need)
}

func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}
