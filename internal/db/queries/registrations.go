package queries

import (
	"context"
	"database/sql"
	"time"
)

const registrationColumns = `id, game_id, player_id, status, selection_method, use_priority_token, team, paid, created_at`

func scanRegistration(row interface{ Scan(...interface{}) error }) (GameRegistration, error) {
	var i GameRegistration
	err := row.Scan(
		&i.ID,
		&i.GameID,
		&i.PlayerID,
		&i.Status,
		&i.SelectionMethod,
		&i.UsePriorityToken,
		&i.Team,
		&i.Paid,
		&i.CreatedAt,
	)
	return i, err
}

const createRegistration = `
INSERT INTO game_registrations (game_id, player_id, use_priority_token, created_at)
VALUES (?, ?, ?, ?)
RETURNING ` + registrationColumns

type CreateRegistrationParams struct {
	GameID           int64     `json:"game_id"`
	PlayerID         int64     `json:"player_id"`
	UsePriorityToken bool      `json:"use_priority_token"`
	CreatedAt        time.Time `json:"created_at"`
}

func (q *Queries) CreateRegistration(ctx context.Context, arg CreateRegistrationParams) (GameRegistration, error) {
	row := q.db.QueryRowContext(ctx, createRegistration,
		arg.GameID,
		arg.PlayerID,
		arg.UsePriorityToken,
		arg.CreatedAt,
	)
	return scanRegistration(row)
}

const getRegistration = `
SELECT ` + registrationColumns + `
FROM game_registrations
WHERE game_id = ? AND player_id = ?
`

type GetRegistrationParams struct {
	GameID   int64 `json:"game_id"`
	PlayerID int64 `json:"player_id"`
}

func (q *Queries) GetRegistration(ctx context.Context, arg GetRegistrationParams) (GameRegistration, error) {
	row := q.db.QueryRowContext(ctx, getRegistration, arg.GameID, arg.PlayerID)
	return scanRegistration(row)
}

const listRegistrationsForGame = `
SELECT ` + registrationColumns + `
FROM game_registrations
WHERE game_id = ?
ORDER BY created_at, id
`

func (q *Queries) ListRegistrationsForGame(ctx context.Context, gameID int64) ([]GameRegistration, error) {
	rows, err := q.db.QueryContext(ctx, listRegistrationsForGame, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GameRegistration{}
	for rows.Next() {
		i, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countSelectedForGame = `
SELECT COUNT(*) FROM game_registrations WHERE game_id = ? AND status = 'selected'
`

func (q *Queries) CountSelectedForGame(ctx context.Context, gameID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, countSelectedForGame, gameID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const markRegistrationSelected = `
UPDATE game_registrations
SET status = 'selected', selection_method = ?
WHERE game_id = ? AND player_id = ? AND status IN ('registered', 'reserve')
`

type MarkRegistrationSelectedParams struct {
	SelectionMethod string `json:"selection_method"`
	GameID          int64  `json:"game_id"`
	PlayerID        int64  `json:"player_id"`
}

func (q *Queries) MarkRegistrationSelected(ctx context.Context, arg MarkRegistrationSelectedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markRegistrationSelected, arg.SelectionMethod, arg.GameID, arg.PlayerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markRemainingAsReserve = `
UPDATE game_registrations
SET status = 'reserve'
WHERE game_id = ? AND status = 'registered'
`

func (q *Queries) MarkRemainingAsReserve(ctx context.Context, gameID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, markRemainingAsReserve, gameID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateRegistrationStatus = `
UPDATE game_registrations
SET status = ?
WHERE game_id = ? AND player_id = ? AND status = ?
`

type UpdateRegistrationStatusParams struct {
	Status     string `json:"status"`
	GameID     int64  `json:"game_id"`
	PlayerID   int64  `json:"player_id"`
	FromStatus string `json:"from_status"`
}

func (q *Queries) UpdateRegistrationStatus(ctx context.Context, arg UpdateRegistrationStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateRegistrationStatus, arg.Status, arg.GameID, arg.PlayerID, arg.FromStatus)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setRegistrationTeam = `
UPDATE game_registrations
SET team = ?
WHERE game_id = ? AND player_id = ?
`

type SetRegistrationTeamParams struct {
	Team     sql.NullString `json:"team"`
	GameID   int64          `json:"game_id"`
	PlayerID int64          `json:"player_id"`
}

func (q *Queries) SetRegistrationTeam(ctx context.Context, arg SetRegistrationTeamParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setRegistrationTeam, arg.Team, arg.GameID, arg.PlayerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setRegistrationPaid = `
UPDATE game_registrations
SET paid = ?
WHERE game_id = ? AND player_id = ?
`

type SetRegistrationPaidParams struct {
	Paid     bool  `json:"paid"`
	GameID   int64 `json:"game_id"`
	PlayerID int64 `json:"player_id"`
}

func (q *Queries) SetRegistrationPaid(ctx context.Context, arg SetRegistrationPaidParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setRegistrationPaid, arg.Paid, arg.GameID, arg.PlayerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listRosterForGame = `
SELECT gr.player_id, p.name, p.email, p.xp, p.bench_warmer_streak, gr.status,
       gr.selection_method, gr.team, gr.paid, gr.created_at
FROM game_registrations gr
JOIN players p ON p.id = gr.player_id
WHERE gr.game_id = ?
ORDER BY gr.created_at, gr.id
`

type ListRosterForGameRow struct {
	PlayerID          int64          `json:"player_id"`
	Name              string         `json:"name"`
	Email             sql.NullString `json:"email"`
	Xp                int64          `json:"xp"`
	BenchWarmerStreak int64          `json:"bench_warmer_streak"`
	Status            string         `json:"status"`
	SelectionMethod   sql.NullString `json:"selection_method"`
	Team              sql.NullString `json:"team"`
	Paid              bool           `json:"paid"`
	RegisteredAt      time.Time      `json:"registered_at"`
}

func (q *Queries) ListRosterForGame(ctx context.Context, gameID int64) ([]ListRosterForGameRow, error) {
	rows, err := q.db.QueryContext(ctx, listRosterForGame, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListRosterForGameRow{}
	for rows.Next() {
		var i ListRosterForGameRow
		if err := rows.Scan(
			&i.PlayerID,
			&i.Name,
			&i.Email,
			&i.Xp,
			&i.BenchWarmerStreak,
			&i.Status,
			&i.SelectionMethod,
			&i.Team,
			&i.Paid,
			&i.RegisteredAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
