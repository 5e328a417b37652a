package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/codr1/wnf/internal/db"
	"github.com/codr1/wnf/internal/db/queries"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// PlayerSeed describes a player inserted by SeedPlayer.
type PlayerSeed struct {
	Name              string
	Email             string
	XP                int64
	BenchWarmerStreak int64
	CurrentStreak     int64
	WhatsApp          bool
	PriorityTokens    int64
}

// SeedPlayer inserts a player and returns its ID.
func SeedPlayer(t *testing.T, database *db.DB, seed PlayerSeed) int64 {
	t.Helper()

	name := seed.Name
	if name == "" {
		name = "Player"
	}
	result, err := database.ExecContext(context.Background(),
		`INSERT INTO players (name, email, xp, bench_warmer_streak, current_streak, whatsapp_group_member, priority_tokens)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name,
		sql.NullString{String: seed.Email, Valid: seed.Email != ""},
		seed.XP,
		seed.BenchWarmerStreak,
		seed.CurrentStreak,
		seed.WhatsApp,
		seed.PriorityTokens,
	)
	if err != nil {
		t.Fatalf("insert player: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("player id: %v", err)
	}
	return id
}

// SeedGame inserts an open game whose registration closed an hour ago.
func SeedGame(t *testing.T, database *db.DB, maxPlayers int64) queries.Game {
	t.Helper()

	now := time.Now().UTC()
	game, err := database.Queries.CreateGame(context.Background(), queries.CreateGameParams{
		Title:                "Wednesday Night Football",
		Venue:                "Astro pitch 2",
		StartsAt:             now.Add(24 * time.Hour),
		RegistrationClosesAt: now.Add(-time.Hour),
		MaxPlayers:           maxPlayers,
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	return game
}

// SeedRegistration registers a player for a game at the given time.
func SeedRegistration(t *testing.T, database *db.DB, gameID, playerID int64, usePriorityToken bool, at time.Time) {
	t.Helper()

	if _, err := database.Queries.CreateRegistration(context.Background(), queries.CreateRegistrationParams{
		GameID:           gameID,
		PlayerID:         playerID,
		UsePriorityToken: usePriorityToken,
		CreatedAt:        at.UTC(),
	}); err != nil {
		t.Fatalf("create registration: %v", err)
	}
}
