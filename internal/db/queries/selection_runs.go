package queries

import (
	"context"
)

const selectionRunColumns = `id, game_id, run_uuid, trigger, priority_slots, xp_slots, random_slots, selected_count, created_at`

func scanSelectionRun(row interface{ Scan(...interface{}) error }) (SelectionRun, error) {
	var i SelectionRun
	err := row.Scan(
		&i.ID,
		&i.GameID,
		&i.RunUuid,
		&i.Trigger,
		&i.PrioritySlots,
		&i.XpSlots,
		&i.RandomSlots,
		&i.SelectedCount,
		&i.CreatedAt,
	)
	return i, err
}

const createSelectionRun = `
INSERT INTO selection_runs (game_id, run_uuid, trigger, priority_slots, xp_slots, random_slots, selected_count)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + selectionRunColumns

type CreateSelectionRunParams struct {
	GameID        int64  `json:"game_id"`
	RunUuid       string `json:"run_uuid"`
	Trigger       string `json:"trigger"`
	PrioritySlots int64  `json:"priority_slots"`
	XpSlots       int64  `json:"xp_slots"`
	RandomSlots   int64  `json:"random_slots"`
	SelectedCount int64  `json:"selected_count"`
}

func (q *Queries) CreateSelectionRun(ctx context.Context, arg CreateSelectionRunParams) (SelectionRun, error) {
	row := q.db.QueryRowContext(ctx, createSelectionRun,
		arg.GameID,
		arg.RunUuid,
		arg.Trigger,
		arg.PrioritySlots,
		arg.XpSlots,
		arg.RandomSlots,
		arg.SelectedCount,
	)
	return scanSelectionRun(row)
}

const listSelectionRuns = `
SELECT ` + selectionRunColumns + `
FROM selection_runs
WHERE game_id = ?
ORDER BY created_at, id
`

func (q *Queries) ListSelectionRuns(ctx context.Context, gameID int64) ([]SelectionRun, error) {
	rows, err := q.db.QueryContext(ctx, listSelectionRuns, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SelectionRun{}
	for rows.Next() {
		i, err := scanSelectionRun(rows)
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
