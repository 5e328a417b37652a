package queries

import (
	"context"
	"database/sql"
)

const playerColumns = `id, name, email, phone, xp, caps, current_streak, bench_warmer_streak, whatsapp_group_member, priority_tokens, created_at`

func scanPlayer(row interface{ Scan(...interface{}) error }) (Player, error) {
	var i Player
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Email,
		&i.Phone,
		&i.Xp,
		&i.Caps,
		&i.CurrentStreak,
		&i.BenchWarmerStreak,
		&i.WhatsappGroupMember,
		&i.PriorityTokens,
		&i.CreatedAt,
	)
	return i, err
}

const createPlayer = `
INSERT INTO players (name, email, phone, xp, whatsapp_group_member, priority_tokens)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + playerColumns

type CreatePlayerParams struct {
	Name                string         `json:"name"`
	Email               sql.NullString `json:"email"`
	Phone               sql.NullString `json:"phone"`
	Xp                  int64          `json:"xp"`
	WhatsappGroupMember bool           `json:"whatsapp_group_member"`
	PriorityTokens      int64          `json:"priority_tokens"`
}

func (q *Queries) CreatePlayer(ctx context.Context, arg CreatePlayerParams) (Player, error) {
	row := q.db.QueryRowContext(ctx, createPlayer,
		arg.Name,
		arg.Email,
		arg.Phone,
		arg.Xp,
		arg.WhatsappGroupMember,
		arg.PriorityTokens,
	)
	return scanPlayer(row)
}

const getPlayer = `SELECT ` + playerColumns + ` FROM players WHERE id = ?`

func (q *Queries) GetPlayer(ctx context.Context, id int64) (Player, error) {
	row := q.db.QueryRowContext(ctx, getPlayer, id)
	return scanPlayer(row)
}

const listPlayers = `SELECT ` + playerColumns + ` FROM players ORDER BY name, id`

func (q *Queries) ListPlayers(ctx context.Context) ([]Player, error) {
	rows, err := q.db.QueryContext(ctx, listPlayers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Player{}
	for rows.Next() {
		i, err := scanPlayer(rows)
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

const updatePlayerWhatsappMembership = `
UPDATE players SET whatsapp_group_member = ?
WHERE id = ?
RETURNING ` + playerColumns

type UpdatePlayerWhatsappMembershipParams struct {
	WhatsappGroupMember bool  `json:"whatsapp_group_member"`
	ID                  int64 `json:"id"`
}

func (q *Queries) UpdatePlayerWhatsappMembership(ctx context.Context, arg UpdatePlayerWhatsappMembershipParams) (Player, error) {
	row := q.db.QueryRowContext(ctx, updatePlayerWhatsappMembership, arg.WhatsappGroupMember, arg.ID)
	return scanPlayer(row)
}

const setPlayerPriorityTokens = `
UPDATE players SET priority_tokens = ?
WHERE id = ?
RETURNING ` + playerColumns

type SetPlayerPriorityTokensParams struct {
	PriorityTokens int64 `json:"priority_tokens"`
	ID             int64 `json:"id"`
}

func (q *Queries) SetPlayerPriorityTokens(ctx context.Context, arg SetPlayerPriorityTokensParams) (Player, error) {
	row := q.db.QueryRowContext(ctx, setPlayerPriorityTokens, arg.PriorityTokens, arg.ID)
	return scanPlayer(row)
}

const consumePriorityToken = `
UPDATE players SET priority_tokens = priority_tokens - 1
WHERE id = ? AND priority_tokens > 0
`

func (q *Queries) ConsumePriorityToken(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, consumePriorityToken, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listPlayerStatsForGame = `
SELECT p.id, p.xp, p.current_streak, p.caps, p.bench_warmer_streak, p.priority_tokens
FROM players p
JOIN game_registrations gr ON gr.player_id = p.id
WHERE gr.game_id = ?
ORDER BY p.id
`

type ListPlayerStatsForGameRow struct {
	ID                int64 `json:"id"`
	Xp                int64 `json:"xp"`
	CurrentStreak     int64 `json:"current_streak"`
	Caps              int64 `json:"caps"`
	BenchWarmerStreak int64 `json:"bench_warmer_streak"`
	PriorityTokens    int64 `json:"priority_tokens"`
}

func (q *Queries) ListPlayerStatsForGame(ctx context.Context, gameID int64) ([]ListPlayerStatsForGameRow, error) {
	rows, err := q.db.QueryContext(ctx, listPlayerStatsForGame, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListPlayerStatsForGameRow{}
	for rows.Next() {
		var i ListPlayerStatsForGameRow
		if err := rows.Scan(
			&i.ID,
			&i.Xp,
			&i.CurrentStreak,
			&i.Caps,
			&i.BenchWarmerStreak,
			&i.PriorityTokens,
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

const listWhatsappMembershipForGame = `
SELECT p.id, p.whatsapp_group_member
FROM players p
JOIN game_registrations gr ON gr.player_id = p.id
WHERE gr.game_id = ?
ORDER BY p.id
`

type ListWhatsappMembershipForGameRow struct {
	ID                  int64 `json:"id"`
	WhatsappGroupMember bool  `json:"whatsapp_group_member"`
}

func (q *Queries) ListWhatsappMembershipForGame(ctx context.Context, gameID int64) ([]ListWhatsappMembershipForGameRow, error) {
	rows, err := q.db.QueryContext(ctx, listWhatsappMembershipForGame, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListWhatsappMembershipForGameRow{}
	for rows.Next() {
		var i ListWhatsappMembershipForGameRow
		if err := rows.Scan(&i.ID, &i.WhatsappGroupMember); err != nil {
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

const applyPlayedStreaks = `
UPDATE players
SET caps = caps + 1,
    current_streak = current_streak + 1,
    bench_warmer_streak = 0
WHERE id IN (
    SELECT player_id FROM game_registrations WHERE game_id = ? AND status = 'selected'
)
`

func (q *Queries) ApplyPlayedStreaks(ctx context.Context, gameID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, applyPlayedStreaks, gameID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const applyReserveStreaks = `
UPDATE players
SET bench_warmer_streak = bench_warmer_streak + 1
WHERE id IN (
    SELECT player_id FROM game_registrations WHERE game_id = ? AND status IN ('reserve', 'registered')
)
`

func (q *Queries) ApplyReserveStreaks(ctx context.Context, gameID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, applyReserveStreaks, gameID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const applyDroppedOutStreaks = `
UPDATE players
SET current_streak = 0
WHERE id IN (
    SELECT player_id FROM game_registrations WHERE game_id = ? AND status = 'dropped_out'
)
`

func (q *Queries) ApplyDroppedOutStreaks(ctx context.Context, gameID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, applyDroppedOutStreaks, gameID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const resetAbsentStreaks = `
UPDATE players
SET current_streak = 0,
    bench_warmer_streak = 0
WHERE id NOT IN (
    SELECT player_id FROM game_registrations WHERE game_id = ?
)
`

func (q *Queries) ResetAbsentStreaks(ctx context.Context, gameID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, resetAbsentStreaks, gameID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
