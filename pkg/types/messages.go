package types

// Client -> Server
//
// JOIN_LEAGUE:
//   leagueCode: string
//   role: "ADMIN" | "CAPTAIN"
//   name: string                      // team name for captains
//   settings: {                       // admin only; used when the league is created
//     leagueName, teamCount, playersPerTeam, budget, basePrice, maxBid?: number,
//     players: [{ name, category?, basePrice? }],
//     playersCsv: string,             // "name,category,basePrice" per line
//     adminPin: string                // required to rejoin an existing league
//   }
//
// START_AUCTION, CAPTAIN_PASS, SOLD, SKIP_PLAYER, UNDO_BID, RESTART_BIDDING, END_SESSION: {}
//
// PLACE_BID:
//   amount: number
//
// ADMIN_ASSIGN_PLAYER:
//   playerId: number
//   teamName: string
//   price: number
//
// ADMIN_UNASSIGN_PLAYER:
//   playerId: number

// CommandName is the "type" of a client message.
type CommandName string

const (
	CmdJoinLeague     CommandName = "JOIN_LEAGUE"
	CmdStartAuction   CommandName = "START_AUCTION"
	CmdPlaceBid       CommandName = "PLACE_BID"
	CmdCaptainPass    CommandName = "CAPTAIN_PASS"
	CmdSold           CommandName = "SOLD"
	CmdSkipPlayer     CommandName = "SKIP_PLAYER"
	CmdUndoBid        CommandName = "UNDO_BID"
	CmdRestartBidding CommandName = "RESTART_BIDDING"
	CmdAssignPlayer   CommandName = "ADMIN_ASSIGN_PLAYER"
	CmdUnassignPlayer CommandName = "ADMIN_UNASSIGN_PLAYER"
	CmdEndSession     CommandName = "END_SESSION"
)

// Roles accepted by JOIN_LEAGUE.
const (
	RoleAdmin   = "ADMIN"
	RoleCaptain = "CAPTAIN"
)

// Server -> Client
//
// LEAGUE_UPDATE:   public view of the league (no admin PIN)
// NEW_PLAYER:      { player, currentBid }
// BID_UPDATE:      { amount, holder, holderName }
// PLAYER_SOLD:     { player, winner, amount }
// PLAYER_UNSOLD:   { player }
// AUCTION_ENDED:   {}
// ADMIN_RESTORE:   full league document, admin caller only
// ERROR:           { message }

// EventName is the "type" of a server message.
type EventName string

const (
	EvtLeagueUpdate EventName = "LEAGUE_UPDATE"
	EvtNewPlayer    EventName = "NEW_PLAYER"
	EvtBidUpdate    EventName = "BID_UPDATE"
	EvtPlayerSold   EventName = "PLAYER_SOLD"
	EvtPlayerUnsold EventName = "PLAYER_UNSOLD"
	EvtAuctionEnded EventName = "AUCTION_ENDED"
	EvtAdminRestore EventName = "ADMIN_RESTORE"
	EvtError        EventName = "ERROR"
)
