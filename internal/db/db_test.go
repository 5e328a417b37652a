package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/codr1/wnf/internal/db/queries"
)

func TestEnsureSQLiteDSNOptions(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{name: "bare_path", dsn: "data/wnf.db", want: "data/wnf.db?_fk=1&_busy_timeout=5000"},
		{name: "existing_query", dsn: "data/wnf.db?cache=shared", want: "data/wnf.db?cache=shared&_fk=1&_busy_timeout=5000"},
		{name: "fk_present", dsn: "data/wnf.db?_fk=0", want: "data/wnf.db?_fk=0&_busy_timeout=5000"},
		{name: "all_present", dsn: "x.db?_fk=1&_busy_timeout=10", want: "x.db?_fk=1&_busy_timeout=10"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ensureSQLiteDSNOptions(test.dsn); got != test.want {
				t.Fatalf("ensureSQLiteDSNOptions(%q) = %q, want %q", test.dsn, got, test.want)
			}
		})
	}
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	database, err := New(filepath.Join(t.TempDir(), "tx.db"))
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	ctx := context.Background()
	sentinel := errors.New("abort")
	err = database.RunInTx(ctx, func(txdb *DB) error {
		if _, err := txdb.Queries.CreateGame(ctx, queries.CreateGameParams{
			Title:                "Rolled back",
			StartsAt:             time.Now().UTC(),
			RegistrationClosesAt: time.Now().UTC(),
			MaxPlayers:           18,
		}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	games, err := database.Queries.ListGames(ctx)
	if err != nil {
		t.Fatalf("list games: %v", err)
	}
	if len(games) != 0 {
		t.Fatalf("expected rollback to discard game, found %d", len(games))
	}
}

func TestRegistrationUniquePerGame(t *testing.T) {
	database, err := New(filepath.Join(t.TempDir(), "unique.db"))
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	ctx := context.Background()
	game, err := database.Queries.CreateGame(ctx, queries.CreateGameParams{
		Title:                "Wednesday",
		StartsAt:             time.Now().UTC().Add(48 * time.Hour),
		RegistrationClosesAt: time.Now().UTC().Add(24 * time.Hour),
		MaxPlayers:           18,
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	player, err := database.Queries.CreatePlayer(ctx, queries.CreatePlayerParams{Name: "Sam"})
	if err != nil {
		t.Fatalf("create player: %v", err)
	}

	params := queries.CreateRegistrationParams{GameID: game.ID, PlayerID: player.ID, CreatedAt: time.Now().UTC()}
	if _, err := database.Queries.CreateRegistration(ctx, params); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := database.Queries.CreateRegistration(ctx, params); err == nil {
		t.Fatal("expected unique constraint violation on second registration")
	}
}

func TestMigrationsApplied(t *testing.T) {
	database, err := New(filepath.Join(t.TempDir(), "migrations.db"))
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	for _, table := range []string{"players", "games", "game_registrations", "selection_runs"} {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name = ?",
			table,
		).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			t.Fatalf("missing expected table %q after migrations", table)
		}
		if err != nil {
			t.Fatalf("query table %q existence: %v", table, err)
		}
	}
}

func TestForeignKeyIntegrity(t *testing.T) {
	database, err := New(filepath.Join(t.TempDir(), "fk.db"))
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	var foreignKeysEnabled int
	if err := database.QueryRow("PRAGMA foreign_keys;").Scan(&foreignKeysEnabled); err != nil {
		t.Fatalf("query foreign_keys pragma: %v", err)
	}
	if foreignKeysEnabled != 1 {
		t.Fatalf("expected foreign_keys pragma enabled, got %d", foreignKeysEnabled)
	}

	_, err = database.Exec(
		`INSERT INTO game_registrations (game_id, player_id, created_at)
		 VALUES (9999, 9999, CURRENT_TIMESTAMP)`,
	)
	if err == nil {
		t.Fatal("expected foreign key constraint failure for unknown game and player")
	}
}
