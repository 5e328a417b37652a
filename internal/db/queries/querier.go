package queries

import (
	"context"
	"time"
)

type Querier interface {
	ApplyDroppedOutStreaks(ctx context.Context, gameID int64) (int64, error)
	ApplyPlayedStreaks(ctx context.Context, gameID int64) (int64, error)
	ApplyReserveStreaks(ctx context.Context, gameID int64) (int64, error)
	ConsumePriorityToken(ctx context.Context, id int64) (int64, error)
	CountSelectedForGame(ctx context.Context, gameID int64) (int64, error)
	CreateGame(ctx context.Context, arg CreateGameParams) (Game, error)
	CreatePlayer(ctx context.Context, arg CreatePlayerParams) (Player, error)
	CreateRegistration(ctx context.Context, arg CreateRegistrationParams) (GameRegistration, error)
	CreateSelectionRun(ctx context.Context, arg CreateSelectionRunParams) (SelectionRun, error)
	GetGame(ctx context.Context, id int64) (Game, error)
	GetPlayer(ctx context.Context, id int64) (Player, error)
	GetRegistration(ctx context.Context, arg GetRegistrationParams) (GameRegistration, error)
	ListGames(ctx context.Context) ([]Game, error)
	ListGamesDueForSelection(ctx context.Context, now time.Time) ([]Game, error)
	ListPlayerStatsForGame(ctx context.Context, gameID int64) ([]ListPlayerStatsForGameRow, error)
	ListPlayers(ctx context.Context) ([]Player, error)
	ListRegistrationsForGame(ctx context.Context, gameID int64) ([]GameRegistration, error)
	ListRosterForGame(ctx context.Context, gameID int64) ([]ListRosterForGameRow, error)
	ListSelectionRuns(ctx context.Context, gameID int64) ([]SelectionRun, error)
	ListWhatsappMembershipForGame(ctx context.Context, gameID int64) ([]ListWhatsappMembershipForGameRow, error)
	MarkRegistrationSelected(ctx context.Context, arg MarkRegistrationSelectedParams) (int64, error)
	MarkRemainingAsReserve(ctx context.Context, gameID int64) (int64, error)
	ResetAbsentStreaks(ctx context.Context, gameID int64) (int64, error)
	SetPlayerPriorityTokens(ctx context.Context, arg SetPlayerPriorityTokensParams) (Player, error)
	SetRegistrationPaid(ctx context.Context, arg SetRegistrationPaidParams) (int64, error)
	SetRegistrationTeam(ctx context.Context, arg SetRegistrationTeamParams) (int64, error)
	TransitionGameStatus(ctx context.Context, arg TransitionGameStatusParams) (int64, error)
	UpdatePlayerWhatsappMembership(ctx context.Context, arg UpdatePlayerWhatsappMembershipParams) (Player, error)
	UpdateRegistrationStatus(ctx context.Context, arg UpdateRegistrationStatusParams) (int64, error)
}

var _ Querier = (*Queries)(nil)
