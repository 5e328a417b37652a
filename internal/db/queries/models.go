package queries

import (
	"database/sql"
	"time"
)

type Game struct {
	ID                   int64     `json:"id"`
	Title                string    `json:"title"`
	Venue                string    `json:"venue"`
	StartsAt             time.Time `json:"starts_at"`
	RegistrationClosesAt time.Time `json:"registration_closes_at"`
	MaxPlayers           int64     `json:"max_players"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
}

type GameRegistration struct {
	ID               int64          `json:"id"`
	GameID           int64          `json:"game_id"`
	PlayerID         int64          `json:"player_id"`
	Status           string         `json:"status"`
	SelectionMethod  sql.NullString `json:"selection_method"`
	UsePriorityToken bool           `json:"use_priority_token"`
	Team             sql.NullString `json:"team"`
	Paid             bool           `json:"paid"`
	CreatedAt        time.Time      `json:"created_at"`
}

type Player struct {
	ID                  int64          `json:"id"`
	Name                string         `json:"name"`
	Email               sql.NullString `json:"email"`
	Phone               sql.NullString `json:"phone"`
	Xp                  int64          `json:"xp"`
	Caps                int64          `json:"caps"`
	CurrentStreak       int64          `json:"current_streak"`
	BenchWarmerStreak   int64          `json:"bench_warmer_streak"`
	WhatsappGroupMember bool           `json:"whatsapp_group_member"`
	PriorityTokens      int64          `json:"priority_tokens"`
	CreatedAt           time.Time      `json:"created_at"`
}

type SelectionRun struct {
	ID            int64     `json:"id"`
	GameID        int64     `json:"game_id"`
	RunUuid       string    `json:"run_uuid"`
	Trigger       string    `json:"trigger"`
	PrioritySlots int64     `json:"priority_slots"`
	XpSlots       int64     `json:"xp_slots"`
	RandomSlots   int64     `json:"random_slots"`
	SelectedCount int64     `json:"selected_count"`
	CreatedAt     time.Time `json:"created_at"`
}
