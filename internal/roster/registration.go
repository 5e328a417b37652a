package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/codr1/wnf/internal/db"
	"github.com/codr1/wnf/internal/db/queries"
	"github.com/codr1/wnf/internal/email"
	"github.com/codr1/wnf/internal/events"
	"github.com/codr1/wnf/internal/selection"
)

// Register signs a player up for an open game. Registration closes at the
// game's registration_closes_at or once selection has run.
func (s *Service) Register(ctx context.Context, gameID, playerID int64, usePriorityToken bool) (queries.GameRegistration, error) {
	logger := log.Ctx(ctx).With().
		Str("component", "roster_service").
		Int64("game_id", gameID).
		Int64("player_id", playerID).
		Logger()

	now := s.now().UTC()
	var reg queries.GameRegistration
	err := s.db.RunInTx(ctx, func(txdb *db.DB) error {
		game, err := loadGame(ctx, txdb.Queries, gameID)
		if err != nil {
			return err
		}
		if game.Status != GameOpen || !now.Before(game.RegistrationClosesAt) {
			return fmt.Errorf("%w: game %d", ErrRegistrationClosed, gameID)
		}

		player, err := txdb.Queries.GetPlayer(ctx, playerID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %d", ErrPlayerNotFound, playerID)
		}
		if err != nil {
			return fmt.Errorf("load player %d: %w", playerID, err)
		}
		if usePriorityToken && player.PriorityTokens <= 0 {
			return fmt.Errorf("%w: player %d", ErrNoPriorityToken, playerID)
		}

		reg, err = txdb.Queries.CreateRegistration(ctx, queries.CreateRegistrationParams{
			GameID:           gameID,
			PlayerID:         playerID,
			UsePriorityToken: usePriorityToken,
			CreatedAt:        now,
		})
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: player %d game %d", ErrAlreadyRegistered, playerID, gameID)
		}
		if err != nil {
			return fmt.Errorf("create registration: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Debug().Err(err).Msg("Registration rejected")
		return queries.GameRegistration{}, err
	}

	s.metrics.RecordRegistration(usePriorityToken)
	logger.Info().Bool("use_priority_token", usePriorityToken).Msg("Player registered")
	s.publish(ctx, events.New(events.TypeRegistrationCreated, gameID, events.Payload{PlayerID: playerID}))
	return reg, nil
}

// DropOutResult reports the reserve promoted into a freed slot, if any.
type DropOutResult struct {
	GameID        int64
	PlayerID      int64
	ReplacementID int64
	Replaced      bool
}

// DropOut withdraws a player. Before selection the registration is simply
// withdrawn. After selection a selected player's slot is refilled from the
// reserves with a single weighted draw, WhatsApp members first, and the
// replacement inherits the team if teams were already announced.
func (s *Service) DropOut(ctx context.Context, gameID, playerID int64) (DropOutResult, error) {
	logger := log.Ctx(ctx).With().
		Str("component", "roster_service").
		Int64("game_id", gameID).
		Int64("player_id", playerID).
		Logger()

	result := DropOutResult{GameID: gameID, PlayerID: playerID}
	var game queries.Game

	err := s.db.RunInTx(ctx, func(txdb *db.DB) error {
		var err error
		game, err = loadGame(ctx, txdb.Queries, gameID)
		if err != nil {
			return err
		}

		reg, err := txdb.Queries.GetRegistration(ctx, queries.GetRegistrationParams{GameID: gameID, PlayerID: playerID})
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: player %d game %d", ErrRegistrationNotFound, playerID, gameID)
		}
		if err != nil {
			return fmt.Errorf("load registration: %w", err)
		}

		switch game.Status {
		case GameOpen:
			if reg.Status != RegistrationRegistered {
				return fmt.Errorf("%w: player %d is %s", ErrNotSelected, playerID, reg.Status)
			}
			return withdraw(ctx, txdb.Queries, gameID, playerID, RegistrationRegistered)
		case GamePlayersAnnounced, GameTeamsAnnounced:
		default:
			return fmt.Errorf("%w: game %d is %s", ErrGameNotActive, gameID, game.Status)
		}

		if reg.Status == RegistrationReserve {
			logger.Debug().Str("decision", "withdraw_reserve").Msg("Reserve withdrawn, no slot to refill")
			return withdraw(ctx, txdb.Queries, gameID, playerID, RegistrationReserve)
		}
		if reg.Status != RegistrationSelected {
			return fmt.Errorf("%w: player %d is %s", ErrNotSelected, playerID, reg.Status)
		}
		if err := withdraw(ctx, txdb.Queries, gameID, playerID, RegistrationSelected); err != nil {
			return err
		}
		if _, err := txdb.Queries.SetRegistrationTeam(ctx, queries.SetRegistrationTeamParams{
			GameID:   gameID,
			PlayerID: playerID,
		}); err != nil {
			return fmt.Errorf("clear team for player %d: %w", playerID, err)
		}

		pool, err := LoadPool(ctx, txdb.Queries, gameID)
		if err != nil {
			return err
		}
		reserves := lo.Reject(pool, func(c selection.Candidate, _ int) bool { return c.AlreadySelected })
		picked := selection.SelectWeighted(reserves, 1, s.rng)
		if len(picked) == 0 {
			logger.Info().Str("decision", "no_reserves").Msg("No reserve available to fill slot")
			return nil
		}

		replacement := picked[0].ID
		if err := persistPicks(ctx, txdb.Queries, gameID, []selection.Pick{{CandidateID: replacement, Method: selection.MethodRandom}}); err != nil {
			return err
		}
		if reg.Team.Valid {
			if _, err := txdb.Queries.SetRegistrationTeam(ctx, queries.SetRegistrationTeamParams{
				Team:     reg.Team,
				GameID:   gameID,
				PlayerID: replacement,
			}); err != nil {
				return fmt.Errorf("assign team to replacement %d: %w", replacement, err)
			}
		}
		if _, err := txdb.Queries.CreateSelectionRun(ctx, queries.CreateSelectionRunParams{
			GameID:        gameID,
			RunUuid:       uuid.NewString(),
			Trigger:       string(TriggerDropout),
			RandomSlots:   1,
			SelectedCount: 1,
		}); err != nil {
			return fmt.Errorf("record dropout run for game %d: %w", gameID, err)
		}

		result.ReplacementID = replacement
		result.Replaced = true
		return nil
	})
	if err != nil {
		logger.Debug().Err(err).Msg("Dropout rejected")
		return DropOutResult{}, err
	}

	logger.Info().
		Bool("replaced", result.Replaced).
		Int64("replacement_id", result.ReplacementID).
		Str("decision", "dropped_out").
		Msg("Player dropped out")

	s.publish(ctx, events.New(events.TypeRosterUpdated, gameID, events.Payload{
		PlayerID:      playerID,
		ReplacementID: result.ReplacementID,
	}))
	if result.Replaced {
		s.metrics.RecordReservePromotion()
		s.notifyPromotion(ctx, game, result.ReplacementID)
	}
	return result, nil
}

// MarkPaid records whether a selected player has paid their match fee.
func (s *Service) MarkPaid(ctx context.Context, gameID, playerID int64, paid bool) error {
	return s.db.RunInTx(ctx, func(txdb *db.DB) error {
		reg, err := txdb.Queries.GetRegistration(ctx, queries.GetRegistrationParams{GameID: gameID, PlayerID: playerID})
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: player %d game %d", ErrRegistrationNotFound, playerID, gameID)
		}
		if err != nil {
			return fmt.Errorf("load registration: %w", err)
		}
		if reg.Status != RegistrationSelected {
			return fmt.Errorf("%w: player %d is %s", ErrNotSelected, playerID, reg.Status)
		}
		if _, err := txdb.Queries.SetRegistrationPaid(ctx, queries.SetRegistrationPaidParams{
			Paid:     paid,
			GameID:   gameID,
			PlayerID: playerID,
		}); err != nil {
			return fmt.Errorf("set paid for player %d: %w", playerID, err)
		}
		log.Ctx(ctx).Info().
			Int64("game_id", gameID).
			Int64("player_id", playerID).
			Bool("paid", paid).
			Msg("Payment status updated")
		return nil
	})
}

func withdraw(ctx context.Context, q *queries.Queries, gameID, playerID int64, from string) error {
	rows, err := q.UpdateRegistrationStatus(ctx, queries.UpdateRegistrationStatusParams{
		Status:     RegistrationDroppedOut,
		GameID:     gameID,
		PlayerID:   playerID,
		FromStatus: from,
	})
	if err != nil {
		return fmt.Errorf("drop out player %d: %w", playerID, err)
	}
	if rows != 1 {
		return fmt.Errorf("%w: player %d is no longer %s", ErrNotSelected, playerID, from)
	}
	return nil
}

func (s *Service) notifyPromotion(ctx context.Context, game queries.Game, playerID int64) {
	if s.sender == nil {
		return
	}
	player, err := s.db.Queries.GetPlayer(ctx, playerID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("player_id", playerID).Msg("Failed to load player for promotion notice")
		return
	}
	s.notify(ctx, s.gameDetails(game), []email.Recipient{{
		PlayerID: player.ID,
		Name:     player.Name,
		Email:    player.Email.String,
		Notice:   email.NoticePromoted,
	}})
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
