package roster

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/codr1/wnf/internal/db"
	"github.com/codr1/wnf/internal/db/queries"
	"github.com/codr1/wnf/internal/events"
	"github.com/codr1/wnf/internal/teams"
)

type GameInput struct {
	Title                string    `json:"title" validate:"required,max=120"`
	Venue                string    `json:"venue" validate:"max=120"`
	StartsAt             time.Time `json:"starts_at" validate:"required"`
	RegistrationClosesAt time.Time `json:"registration_closes_at" validate:"required"`
	MaxPlayers           int64     `json:"max_players" validate:"gte=2,lte=40"`
}

// CreateGame opens a new game for registration. Times are stored in UTC.
func (s *Service) CreateGame(ctx context.Context, input GameInput) (queries.Game, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Venue = strings.TrimSpace(input.Venue)
	if err := validate.Struct(input); err != nil {
		return queries.Game{}, fmt.Errorf("%w: %v", ErrInvalidGame, err)
	}
	if input.RegistrationClosesAt.After(input.StartsAt) {
		return queries.Game{}, fmt.Errorf("%w: registration must close before kick-off", ErrInvalidGame)
	}

	game, err := s.db.Queries.CreateGame(ctx, queries.CreateGameParams{
		Title:                input.Title,
		Venue:                input.Venue,
		StartsAt:             input.StartsAt.UTC(),
		RegistrationClosesAt: input.RegistrationClosesAt.UTC(),
		MaxPlayers:           input.MaxPlayers,
	})
	if err != nil {
		return queries.Game{}, fmt.Errorf("create game: %w", err)
	}
	log.Ctx(ctx).Info().
		Int64("game_id", game.ID).
		Time("registration_closes_at", game.RegistrationClosesAt).
		Int64("max_players", game.MaxPlayers).
		Msg("Game created")
	return game, nil
}

// CompletionSummary counts the players whose streaks changed.
type CompletionSummary struct {
	Played     int64 `json:"played"`
	Benched    int64 `json:"benched"`
	DroppedOut int64 `json:"dropped_out"`
	Absent     int64 `json:"absent"`
}

// CompleteGame applies post-game streaks and closes the game. Selected
// players gain a cap and extend their playing streak with the bench streak
// reset. Reserves extend their bench streak. Dropouts lose their playing
// streak. Players who did not register lose both streaks.
func (s *Service) CompleteGame(ctx context.Context, gameID int64) (CompletionSummary, error) {
	logger := log.Ctx(ctx).With().
		Str("component", "roster_service").
		Int64("game_id", gameID).
		Logger()

	var summary CompletionSummary
	err := s.db.RunInTx(ctx, func(txdb *db.DB) error {
		game, err := loadGame(ctx, txdb.Queries, gameID)
		if err != nil {
			return err
		}
		if game.Status != GamePlayersAnnounced && game.Status != GameTeamsAnnounced {
			return fmt.Errorf("%w: game %d is %s", ErrGameNotActive, gameID, game.Status)
		}

		q := txdb.Queries
		if summary.Played, err = q.ApplyPlayedStreaks(ctx, gameID); err != nil {
			return fmt.Errorf("apply played streaks: %w", err)
		}
		if summary.Benched, err = q.ApplyReserveStreaks(ctx, gameID); err != nil {
			return fmt.Errorf("apply reserve streaks: %w", err)
		}
		if summary.DroppedOut, err = q.ApplyDroppedOutStreaks(ctx, gameID); err != nil {
			return fmt.Errorf("apply dropout streaks: %w", err)
		}
		if summary.Absent, err = q.ResetAbsentStreaks(ctx, gameID); err != nil {
			return fmt.Errorf("reset absent streaks: %w", err)
		}
		return transitionGame(ctx, q, gameID, game.Status, GameCompleted)
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to complete game")
		return CompletionSummary{}, err
	}

	logger.Info().
		Int64("played", summary.Played).
		Int64("benched", summary.Benched).
		Int64("dropped_out", summary.DroppedOut).
		Int64("absent", summary.Absent).
		Str("decision", "completed").
		Msg("Game completed")
	s.publish(ctx, events.New(events.TypeGameCompleted, gameID, events.Payload{}))
	return summary, nil
}

// GenerateTeams balances the selected players into blue and orange and
// announces the teams. Running it again reshuffles the current squad.
func (s *Service) GenerateTeams(ctx context.Context, gameID int64) (teams.Assignment, error) {
	logger := log.Ctx(ctx).With().
		Str("component", "roster_service").
		Int64("game_id", gameID).
		Logger()

	var assignment teams.Assignment
	err := s.db.RunInTx(ctx, func(txdb *db.DB) error {
		game, err := loadGame(ctx, txdb.Queries, gameID)
		if err != nil {
			return err
		}
		if game.Status != GamePlayersAnnounced && game.Status != GameTeamsAnnounced {
			return fmt.Errorf("%w: game %d is %s", ErrGameNotActive, gameID, game.Status)
		}

		rows, err := txdb.Queries.ListRosterForGame(ctx, gameID)
		if err != nil {
			return fmt.Errorf("%w: list roster for game %d: %v", ErrDataUnavailable, gameID, err)
		}
		squad := lo.FilterMap(rows, func(r queries.ListRosterForGameRow, _ int) (teams.Player, bool) {
			return teams.Player{ID: r.PlayerID, XP: r.Xp}, r.Status == RegistrationSelected
		})
		if len(squad) < 2 {
			return fmt.Errorf("%w: %d selected", ErrNotEnoughPlayers, len(squad))
		}

		assignment = teams.Balance(squad)
		for id, team := range assignment.TeamOf() {
			if _, err := txdb.Queries.SetRegistrationTeam(ctx, queries.SetRegistrationTeamParams{
				Team:     sql.NullString{String: string(team), Valid: true},
				GameID:   gameID,
				PlayerID: id,
			}); err != nil {
				return fmt.Errorf("assign player %d to %s: %w", id, team, err)
			}
		}

		if game.Status == GamePlayersAnnounced {
			return transitionGame(ctx, txdb.Queries, gameID, GamePlayersAnnounced, GameTeamsAnnounced)
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to generate teams")
		return teams.Assignment{}, err
	}

	logger.Info().
		Int64("blue_xp", assignment.BlueXP()).
		Int64("orange_xp", assignment.OrangeXP()).
		Str("decision", "teams_announced").
		Msg("Teams generated")
	s.publish(ctx, events.New(events.TypeTeamsAnnounced, gameID, events.Payload{
		Message: fmt.Sprintf("Blue %d XP vs Orange %d XP", assignment.BlueXP(), assignment.OrangeXP()),
	}))
	return assignment, nil
}
