package roster

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/codr1/wnf/internal/db/queries"
	"github.com/codr1/wnf/internal/selection"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// PoolSource reads the three record sets a selection pool is built from.
// *queries.Queries satisfies it.
type PoolSource interface {
	ListRegistrationsForGame(ctx context.Context, gameID int64) ([]queries.GameRegistration, error)
	ListPlayerStatsForGame(ctx context.Context, gameID int64) ([]queries.ListPlayerStatsForGameRow, error)
	ListWhatsappMembershipForGame(ctx context.Context, gameID int64) ([]queries.ListWhatsappMembershipForGameRow, error)
}

type RegistrationRecord struct {
	PlayerID         int64     `validate:"gt=0"`
	Status           string    `validate:"oneof=registered selected reserve dropped_out"`
	UsePriorityToken bool
	RegisteredAt     time.Time `validate:"required"`
}

type PlayerStatsRecord struct {
	PlayerID          int64 `validate:"gt=0"`
	XP                int64 `validate:"gte=0"`
	Caps              int64 `validate:"gte=0"`
	CurrentStreak     int64 `validate:"gte=0"`
	BenchWarmerStreak int64 `validate:"gte=0"`
	PriorityTokens    int64 `validate:"gte=0"`
}

type MembershipRecord struct {
	PlayerID       int64 `validate:"gt=0"`
	WhatsAppMember bool
}

// LoadPool builds selection candidates for every active registration of the
// game. Dropped-out registrations are left out. A player with no membership
// record counts as a non-member; a player with no stats record is malformed.
func LoadPool(ctx context.Context, src PoolSource, gameID int64) ([]selection.Candidate, error) {
	regRows, err := src.ListRegistrationsForGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("%w: list registrations for game %d: %v", ErrDataUnavailable, gameID, err)
	}
	statRows, err := src.ListPlayerStatsForGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("%w: list player stats for game %d: %v", ErrDataUnavailable, gameID, err)
	}
	memberRows, err := src.ListWhatsappMembershipForGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("%w: list membership for game %d: %v", ErrDataUnavailable, gameID, err)
	}

	registrations, err := decodeAll(regRows, func(r queries.GameRegistration) RegistrationRecord {
		return RegistrationRecord{
			PlayerID:         r.PlayerID,
			Status:           r.Status,
			UsePriorityToken: r.UsePriorityToken,
			RegisteredAt:     r.CreatedAt,
		}
	})
	if err != nil {
		return nil, err
	}
	stats, err := decodeAll(statRows, func(r queries.ListPlayerStatsForGameRow) PlayerStatsRecord {
		return PlayerStatsRecord{
			PlayerID:          r.ID,
			XP:                r.Xp,
			Caps:              r.Caps,
			CurrentStreak:     r.CurrentStreak,
			BenchWarmerStreak: r.BenchWarmerStreak,
			PriorityTokens:    r.PriorityTokens,
		}
	})
	if err != nil {
		return nil, err
	}
	memberships, err := decodeAll(memberRows, func(r queries.ListWhatsappMembershipForGameRow) MembershipRecord {
		return MembershipRecord{PlayerID: r.ID, WhatsAppMember: r.WhatsappGroupMember}
	})
	if err != nil {
		return nil, err
	}

	return joinPool(registrations, stats, memberships)
}

func joinPool(registrations []RegistrationRecord, stats []PlayerStatsRecord, memberships []MembershipRecord) ([]selection.Candidate, error) {
	statsByPlayer := lo.KeyBy(stats, func(s PlayerStatsRecord) int64 { return s.PlayerID })
	memberByPlayer := lo.KeyBy(memberships, func(m MembershipRecord) int64 { return m.PlayerID })

	pool := make([]selection.Candidate, 0, len(registrations))
	for _, reg := range registrations {
		if reg.Status == RegistrationDroppedOut {
			continue
		}
		st, ok := statsByPlayer[reg.PlayerID]
		if !ok {
			return nil, fmt.Errorf("%w: no stats for player %d", ErrMalformedRecord, reg.PlayerID)
		}
		pool = append(pool, selection.Candidate{
			ID:                reg.PlayerID,
			XP:                st.XP,
			BenchWarmerStreak: st.BenchWarmerStreak,
			IsWhatsAppMember:  memberByPlayer[reg.PlayerID].WhatsAppMember,
			HasPriorityToken:  reg.UsePriorityToken && st.PriorityTokens > 0,
			AlreadySelected:   reg.Status == RegistrationSelected,
			RegisteredAt:      reg.RegisteredAt,
		})
	}
	return pool, nil
}

func decodeAll[Row any, Record any](rows []Row, decode func(Row) Record) ([]Record, error) {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := decode(row)
		if err := validate.Struct(rec); err != nil {
			return nil, fmt.Errorf("%w: %T: %v", ErrMalformedRecord, rec, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
