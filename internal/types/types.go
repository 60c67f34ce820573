package types

import (
	"github.com/DoyleJ11/auction-draft-backend/internal/engine"
	"github.com/DoyleJ11/auction-draft-backend/pkg/types"
)

type ClientMessage struct {
	Type       types.CommandName `json:"type"`
	LeagueCode string            `json:"leagueCode,omitempty"`
	Role       string            `json:"role,omitempty"`
	Name       string            `json:"name,omitempty"`
	Settings   *Settings         `json:"settings,omitempty"`
	Amount     int               `json:"amount,omitempty"`
	PlayerID   int               `json:"playerId,omitempty"`
	TeamName   string            `json:"teamName,omitempty"`
	Price      int               `json:"price,omitempty"`
}

// Settings is the admin's JOIN_LEAGUE payload. AdminPin is only checked when
// the league already exists.
type Settings struct {
	LeagueName     string               `json:"leagueName,omitempty"`
	TeamCount      int                  `json:"teamCount,omitempty"`
	PlayersPerTeam int                  `json:"playersPerTeam,omitempty"`
	Budget         int                  `json:"budget,omitempty"`
	BasePrice      int                  `json:"basePrice,omitempty"`
	MaxBid         *int                 `json:"maxBid,omitempty"`
	Players        []engine.PlayerInput `json:"players,omitempty"`
	PlayersCSV     string               `json:"playersCsv,omitempty"`
	AdminPin       string               `json:"adminPin,omitempty"`
}

func (s Settings) Engine() engine.Settings {
	return engine.Settings{
		LeagueName:     s.LeagueName,
		TeamCount:      s.TeamCount,
		PlayersPerTeam: s.PlayersPerTeam,
		Budget:         s.Budget,
		BasePrice:      s.BasePrice,
		MaxBid:         s.MaxBid,
		Players:        s.Players,
		PlayersCSV:     s.PlayersCSV,
	}
}

type ServerMessage struct {
	Type    types.EventName `json:"type"`
	Version int             `json:"version"`
	Payload any             `json:"payload,omitempty"`
}
