package queries

import (
	"context"
	"time"
)

const gameColumns = `id, title, venue, starts_at, registration_closes_at, max_players, status, created_at`

func scanGame(row interface{ Scan(...interface{}) error }) (Game, error) {
	var i Game
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Venue,
		&i.StartsAt,
		&i.RegistrationClosesAt,
		&i.MaxPlayers,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}

func scanGames(rows interface {
	Next() bool
	Scan(...interface{}) error
	Close() error
	Err() error
}) ([]Game, error) {
	defer rows.Close()
	items := []Game{}
	for rows.Next() {
		i, err := scanGame(rows)
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

const createGame = `
INSERT INTO games (title, venue, starts_at, registration_closes_at, max_players)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + gameColumns

type CreateGameParams struct {
	Title                string    `json:"title"`
	Venue                string    `json:"venue"`
	StartsAt             time.Time `json:"starts_at"`
	RegistrationClosesAt time.Time `json:"registration_closes_at"`
	MaxPlayers           int64     `json:"max_players"`
}

func (q *Queries) CreateGame(ctx context.Context, arg CreateGameParams) (Game, error) {
	row := q.db.QueryRowContext(ctx, createGame,
		arg.Title,
		arg.Venue,
		arg.StartsAt,
		arg.RegistrationClosesAt,
		arg.MaxPlayers,
	)
	return scanGame(row)
}

const getGame = `SELECT ` + gameColumns + ` FROM games WHERE id = ?`

func (q *Queries) GetGame(ctx context.Context, id int64) (Game, error) {
	row := q.db.QueryRowContext(ctx, getGame, id)
	return scanGame(row)
}

const listGames = `SELECT ` + gameColumns + ` FROM games ORDER BY starts_at DESC, id DESC`

func (q *Queries) ListGames(ctx context.Context) ([]Game, error) {
	rows, err := q.db.QueryContext(ctx, listGames)
	if err != nil {
		return nil, err
	}
	return scanGames(rows)
}

const listGamesDueForSelection = `
SELECT ` + gameColumns + `
FROM games
WHERE status = 'open' AND registration_closes_at <= ?
ORDER BY registration_closes_at, id
`

// ListGamesDueForSelection compares stored timestamps as text, so callers
// must pass UTC times.
func (q *Queries) ListGamesDueForSelection(ctx context.Context, now time.Time) ([]Game, error) {
	rows, err := q.db.QueryContext(ctx, listGamesDueForSelection, now)
	if err != nil {
		return nil, err
	}
	return scanGames(rows)
}

const transitionGameStatus = `
UPDATE games SET status = ?
WHERE id = ? AND status = ?
`

type TransitionGameStatusParams struct {
	ToStatus   string `json:"to_status"`
	ID         int64  `json:"id"`
	FromStatus string `json:"from_status"`
}

func (q *Queries) TransitionGameStatus(ctx context.Context, arg TransitionGameStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, transitionGameStatus, arg.ToStatus, arg.ID, arg.FromStatus)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
