package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/codr1/wnf/internal/db"
	"github.com/codr1/wnf/internal/db/queries"
	"github.com/codr1/wnf/internal/email"
	"github.com/codr1/wnf/internal/events"
	"github.com/codr1/wnf/internal/metrics"
	"github.com/codr1/wnf/internal/selection"
)

// Outcome describes a committed selection run.
type Outcome struct {
	RunID        string
	GameID       int64
	Request      selection.Request
	Result       selection.Result
	OpenSlots    int
	ReserveCount int
}

// RunSelection allocates the game's open slots and persists the picks in a
// single transaction. The game moves from open to players_announced, so a
// second run for the same game fails with ErrSelectionClosed.
func (s *Service) RunSelection(ctx context.Context, req selection.Request, trigger Trigger) (Outcome, error) {
	started := s.now()
	req = req.Normalize()

	logger := log.Ctx(ctx).With().
		Str("component", "roster_service").
		Int64("game_id", req.GameID).
		Str("trigger", string(trigger)).
		Logger()

	outcome := Outcome{RunID: uuid.NewString(), GameID: req.GameID, Request: req}
	var game queries.Game

	err := s.db.RunInTx(ctx, func(txdb *db.DB) error {
		var err error
		game, err = loadGame(ctx, txdb.Queries, req.GameID)
		if err != nil {
			return err
		}
		if game.Status != GameOpen {
			logger.Debug().
				Str("status", game.Status).
				Str("decision", "skip_selection").
				Msg("Game is not open for selection")
			return fmt.Errorf("%w: game %d is %s", ErrSelectionClosed, game.ID, game.Status)
		}

		openSlots, err := countOpenSlots(ctx, txdb.Queries, game)
		if err != nil {
			return err
		}
		outcome.OpenSlots = openSlots
		if req.Total() > openSlots {
			logger.Info().
				Int("requested", req.Total()).
				Int("open_slots", openSlots).
				Str("decision", "reject_request").
				Msg("Selection request exceeds open slots")
			return fmt.Errorf("%w: requested %d, open %d", ErrSlotsExceedCapacity, req.Total(), openSlots)
		}

		pool, err := LoadPool(ctx, txdb.Queries, game.ID)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to load selection pool")
			return err
		}

		outcome.Result = selection.Allocate(pool, req, s.rng)

		if err := persistPicks(ctx, txdb.Queries, game.ID, outcome.Result.Picks); err != nil {
			logger.Error().Err(err).Msg("Failed to persist selection picks")
			return err
		}

		reserves, err := txdb.Queries.MarkRemainingAsReserve(ctx, game.ID)
		if err != nil {
			return fmt.Errorf("mark reserves for game %d: %w", game.ID, err)
		}
		outcome.ReserveCount = int(reserves)

		if err := transitionGame(ctx, txdb.Queries, game.ID, GameOpen, GamePlayersAnnounced); err != nil {
			return err
		}

		if _, err := txdb.Queries.CreateSelectionRun(ctx, queries.CreateSelectionRunParams{
			GameID:        game.ID,
			RunUuid:       outcome.RunID,
			Trigger:       string(trigger),
			PrioritySlots: int64(req.PrioritySlots),
			XpSlots:       int64(req.XPSlots),
			RandomSlots:   int64(req.RandomSlots),
			SelectedCount: int64(len(outcome.Result.Picks)),
		}); err != nil {
			return fmt.Errorf("record selection run for game %d: %w", game.ID, err)
		}
		return nil
	})
	elapsed := s.now().Sub(started)
	if err != nil {
		s.metrics.RecordSelectionRun(string(trigger), selectionOutcome(err), nil, elapsed)
		logger.Error().Err(err).Msg("Selection run failed")
		return Outcome{}, err
	}

	s.metrics.RecordSelectionRun(string(trigger), metrics.OutcomeSuccess, map[string]int{
		string(selection.MethodPriority): outcome.Result.Count(selection.MethodPriority),
		string(selection.MethodXP):       outcome.Result.Count(selection.MethodXP),
		string(selection.MethodRandom):   outcome.Result.Count(selection.MethodRandom),
	}, elapsed)

	logger.Info().
		Str("run_id", outcome.RunID).
		Int("priority", outcome.Result.Count(selection.MethodPriority)).
		Int("xp", outcome.Result.Count(selection.MethodXP)).
		Int("random", outcome.Result.Count(selection.MethodRandom)).
		Int("reserves", outcome.ReserveCount).
		Str("decision", "players_announced").
		Msg("Selection run completed")

	s.publish(ctx, events.New(events.TypeSelectionCompleted, game.ID, events.Payload{
		RunID:        outcome.RunID,
		SelectedIDs:  outcome.Result.CandidateIDs(),
		ReserveCount: outcome.ReserveCount,
	}))
	s.notifySelection(ctx, game)

	return outcome, nil
}

// DefaultRequest fills the game's open slots: every priority token holder,
// then the configured XP and random split, each clamped to what is left.
func (s *Service) DefaultRequest(ctx context.Context, gameID int64) (selection.Request, error) {
	game, err := loadGame(ctx, s.db.Queries, gameID)
	if err != nil {
		return selection.Request{}, err
	}
	openSlots, err := countOpenSlots(ctx, s.db.Queries, game)
	if err != nil {
		return selection.Request{}, err
	}
	pool, err := LoadPool(ctx, s.db.Queries, gameID)
	if err != nil {
		return selection.Request{}, err
	}
	holders := len(selection.PartitionPool(pool).PriorityHolders)
	return buildDefaultRequest(gameID, openSlots, holders, s.defaults), nil
}

func buildDefaultRequest(gameID int64, openSlots, holders int, d Defaults) selection.Request {
	req := selection.Request{GameID: gameID}
	left := max(openSlots, 0)

	req.PrioritySlots = min(holders, left)
	left -= req.PrioritySlots
	req.XPSlots = min(max(d.XPSlots, 0), left)
	left -= req.XPSlots
	req.RandomSlots = min(max(d.RandomSlots, 0), left)
	return req
}

// RunDueSelections runs selection with the default split for every open
// game whose registration has closed. It returns how many runs committed.
// A failing game is logged and does not stop the others.
func (s *Service) RunDueSelections(ctx context.Context) (int, error) {
	logger := log.Ctx(ctx).With().Str("component", "roster_service").Logger()

	games, err := s.db.Queries.ListGamesDueForSelection(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: list games due for selection: %v", ErrDataUnavailable, err)
	}

	ran := 0
	var errs []error
	for _, game := range games {
		req, err := s.DefaultRequest(ctx, game.ID)
		if err != nil {
			logger.Error().Err(err).Int64("game_id", game.ID).Msg("Failed to build default selection request")
			errs = append(errs, err)
			continue
		}
		if _, err := s.RunSelection(ctx, req, TriggerScheduled); err != nil {
			if errors.Is(err, ErrSelectionClosed) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		ran++
	}
	return ran, errors.Join(errs...)
}

func (s *Service) notifySelection(ctx context.Context, game queries.Game) {
	if s.sender == nil {
		return
	}
	rows, err := s.db.Queries.ListRosterForGame(ctx, game.ID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("game_id", game.ID).Msg("Failed to load roster for selection notices")
		return
	}
	recipients := lo.FilterMap(rows, func(r queries.ListRosterForGameRow, _ int) (email.Recipient, bool) {
		notice := ""
		switch r.Status {
		case RegistrationSelected:
			notice = email.NoticeSelected
		case RegistrationReserve:
			notice = email.NoticeReserve
		default:
			return email.Recipient{}, false
		}
		return email.Recipient{PlayerID: r.PlayerID, Name: r.Name, Email: r.Email.String, Notice: notice}, true
	})
	s.notify(ctx, s.gameDetails(game), recipients)
}

func (s *Service) gameDetails(game queries.Game) email.GameDetails {
	return email.GameDetails{
		ID:        game.ID,
		Title:     game.Title,
		Venue:     game.Venue,
		StartsAt:  game.StartsAt,
		RosterURL: s.rosterURL(game.ID),
	}
}

func persistPicks(ctx context.Context, q *queries.Queries, gameID int64, picks []selection.Pick) error {
	for _, pick := range picks {
		rows, err := q.MarkRegistrationSelected(ctx, queries.MarkRegistrationSelectedParams{
			SelectionMethod: string(pick.Method),
			GameID:          gameID,
			PlayerID:        pick.CandidateID,
		})
		if err != nil {
			return fmt.Errorf("select player %d: %w", pick.CandidateID, err)
		}
		if rows != 1 {
			return fmt.Errorf("select player %d: registration changed during selection", pick.CandidateID)
		}
		if pick.Method != selection.MethodPriority {
			continue
		}
		consumed, err := q.ConsumePriorityToken(ctx, pick.CandidateID)
		if err != nil {
			return fmt.Errorf("consume priority token for player %d: %w", pick.CandidateID, err)
		}
		if consumed != 1 {
			return fmt.Errorf("%w: player %d", ErrNoPriorityToken, pick.CandidateID)
		}
	}
	return nil
}

func loadGame(ctx context.Context, q *queries.Queries, gameID int64) (queries.Game, error) {
	game, err := q.GetGame(ctx, gameID)
	if errors.Is(err, sql.ErrNoRows) {
		return queries.Game{}, fmt.Errorf("%w: %d", ErrGameNotFound, gameID)
	}
	if err != nil {
		return queries.Game{}, fmt.Errorf("%w: load game %d: %v", ErrDataUnavailable, gameID, err)
	}
	return game, nil
}

func countOpenSlots(ctx context.Context, q *queries.Queries, game queries.Game) (int, error) {
	selected, err := q.CountSelectedForGame(ctx, game.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: count selected for game %d: %v", ErrDataUnavailable, game.ID, err)
	}
	return max(int(game.MaxPlayers-selected), 0), nil
}

func transitionGame(ctx context.Context, q *queries.Queries, gameID int64, from, to string) error {
	rows, err := q.TransitionGameStatus(ctx, queries.TransitionGameStatusParams{
		ToStatus:   to,
		ID:         gameID,
		FromStatus: from,
	})
	if err != nil {
		return fmt.Errorf("move game %d from %s to %s: %w", gameID, from, to, err)
	}
	if rows != 1 {
		if from == GameOpen {
			return fmt.Errorf("%w: game %d changed state", ErrSelectionClosed, gameID)
		}
		return fmt.Errorf("%w: game %d changed state", ErrGameNotActive, gameID)
	}
	return nil
}

func selectionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrSelectionClosed),
		errors.Is(err, ErrSlotsExceedCapacity),
		errors.Is(err, ErrGameNotFound):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeFailed
	}
}

