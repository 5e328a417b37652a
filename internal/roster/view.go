package roster

import (
	"context"
	"fmt"
	"time"

	"github.com/codr1/wnf/internal/db/queries"
)

type Entry struct {
	PlayerID          int64     `json:"player_id"`
	Name              string    `json:"name"`
	XP                int64     `json:"xp"`
	BenchWarmerStreak int64     `json:"bench_warmer_streak"`
	Status            string    `json:"status"`
	Method            string    `json:"selection_method,omitempty"`
	Team              string    `json:"team,omitempty"`
	Paid              bool      `json:"paid"`
	RegisteredAt      time.Time `json:"registered_at"`
}

// View is the public roster of a game, grouped by registration status in
// registration order.
type View struct {
	Game       queries.Game `json:"game"`
	OpenSlots  int        `json:"open_slots"`
	Selected   []Entry    `json:"selected"`
	Reserves   []Entry    `json:"reserves"`
	Registered []Entry    `json:"registered"`
	DroppedOut []Entry    `json:"dropped_out"`
}

func (s *Service) Roster(ctx context.Context, gameID int64) (View, error) {
	game, err := loadGame(ctx, s.db.Queries, gameID)
	if err != nil {
		return View{}, err
	}
	rows, err := s.db.Queries.ListRosterForGame(ctx, gameID)
	if err != nil {
		return View{}, fmt.Errorf("%w: list roster for game %d: %v", ErrDataUnavailable, gameID, err)
	}

	view := View{
		Game:       game,
		Selected:   []Entry{},
		Reserves:   []Entry{},
		Registered: []Entry{},
		DroppedOut: []Entry{},
	}
	for _, r := range rows {
		entry := Entry{
			PlayerID:          r.PlayerID,
			Name:              r.Name,
			XP:                r.Xp,
			BenchWarmerStreak: r.BenchWarmerStreak,
			Status:            r.Status,
			Method:            r.SelectionMethod.String,
			Team:              r.Team.String,
			Paid:              r.Paid,
			RegisteredAt:      r.RegisteredAt,
		}
		switch r.Status {
		case RegistrationSelected:
			view.Selected = append(view.Selected, entry)
		case RegistrationReserve:
			view.Reserves = append(view.Reserves, entry)
		case RegistrationDroppedOut:
			view.DroppedOut = append(view.DroppedOut, entry)
		default:
			view.Registered = append(view.Registered, entry)
		}
	}
	view.OpenSlots = max(int(game.MaxPlayers)-len(view.Selected), 0)
	return view, nil
}

// Team returns the selected players on one side.
func (v View) Team(team string) []Entry {
	out := []Entry{}
	for _, e := range v.Selected {
		if e.Team == team {
			out = append(out, e)
		}
	}
	return out
}
