package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codr1/wnf/internal/events"
	"github.com/codr1/wnf/internal/testutil"
)

func TestCreateGame(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	kickoff := time.Date(2026, 10, 21, 19, 0, 0, 0, time.FixedZone("BST", 3600))

	game, err := h.svc.CreateGame(ctx, GameInput{
		Title:                "  Wednesday Night Football ",
		Venue:                "Astro pitch 2",
		StartsAt:             kickoff,
		RegistrationClosesAt: kickoff.Add(-24 * time.Hour),
		MaxPlayers:           18,
	})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if game.Title != "Wednesday Night Football" || game.Status != GameOpen {
		t.Fatalf("unexpected game %+v", game)
	}
	if !game.StartsAt.Equal(kickoff) {
		t.Fatalf("starts_at %v, want %v", game.StartsAt, kickoff)
	}

	invalid := []GameInput{
		{Title: "", StartsAt: kickoff, RegistrationClosesAt: kickoff.Add(-time.Hour), MaxPlayers: 10},
		{Title: "Tiny", StartsAt: kickoff, RegistrationClosesAt: kickoff.Add(-time.Hour), MaxPlayers: 1},
		{Title: "Late close", StartsAt: kickoff, RegistrationClosesAt: kickoff.Add(time.Hour), MaxPlayers: 10},
	}
	for _, input := range invalid {
		if _, err := h.svc.CreateGame(ctx, input); !errors.Is(err, ErrInvalidGame) {
			t.Fatalf("%q: expected ErrInvalidGame, got %v", input.Title, err)
		}
	}
}

func TestCompleteGameUpdatesStreaks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := seedScenario(t, h)
	absent := testutil.SeedPlayer(t, h.db, testutil.PlayerSeed{Name: "Away", CurrentStreak: 3, BenchWarmerStreak: 2})
	runScenarioSelection(t, h, s)

	dropped := s.topXP[0]
	result, err := h.svc.DropOut(ctx, s.game.ID, dropped)
	if err != nil {
		t.Fatalf("DropOut: %v", err)
	}

	sub, err := h.bus.Subscribe(ctx, s.game.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	summary, err := h.svc.CompleteGame(ctx, s.game.ID)
	if err != nil {
		t.Fatalf("CompleteGame: %v", err)
	}
	if summary.Played != 5 || summary.Benched != 2 || summary.DroppedOut != 1 || summary.Absent != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	promoted := player(t, h.db, result.ReplacementID)
	if promoted.Caps != 1 || promoted.CurrentStreak != 1 || promoted.BenchWarmerStreak != 0 {
		t.Fatalf("promoted player stats %+v", promoted)
	}
	if p := player(t, h.db, dropped); p.CurrentStreak != 0 || p.Caps != 0 {
		t.Fatalf("dropped player stats %+v", p)
	}
	fay := player(t, h.db, s.others[0])
	if fay.BenchWarmerStreak != 2 || fay.Caps != 0 {
		t.Fatalf("reserve stats %+v", fay)
	}
	if p := player(t, h.db, absent); p.CurrentStreak != 0 || p.BenchWarmerStreak != 0 {
		t.Fatalf("absent player stats %+v", p)
	}

	if st := gameStatus(t, h.db, s.game.ID); st != GameCompleted {
		t.Fatalf("game status %s", st)
	}
	if ev := nextEvent(t, sub); ev.Type != events.TypeGameCompleted {
		t.Fatalf("unexpected event %+v", ev)
	}

	if _, err := h.svc.CompleteGame(ctx, s.game.ID); !errors.Is(err, ErrGameNotActive) {
		t.Fatalf("expected ErrGameNotActive, got %v", err)
	}
}

func TestCompleteGameRequiresSelection(t *testing.T) {
	h := newHarness(t)
	s := seedScenario(t, h)
	if _, err := h.svc.CompleteGame(context.Background(), s.game.ID); !errors.Is(err, ErrGameNotActive) {
		t.Fatalf("expected ErrGameNotActive, got %v", err)
	}
}

func TestGenerateTeams(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := seedScenario(t, h)
	runScenarioSelection(t, h, s)

	assignment, err := h.svc.GenerateTeams(ctx, s.game.ID)
	if err != nil {
		t.Fatalf("GenerateTeams: %v", err)
	}
	if len(assignment.Blue) != 3 || len(assignment.Orange) != 2 {
		t.Fatalf("unexpected team sizes blue=%d orange=%d", len(assignment.Blue), len(assignment.Orange))
	}

	view, err := h.svc.Roster(ctx, s.game.ID)
	if err != nil {
		t.Fatalf("Roster: %v", err)
	}
	if len(view.Team("blue"))+len(view.Team("orange")) != 5 {
		t.Fatalf("expected all selected players on a team, got %+v", view.Selected)
	}
	for _, e := range view.Reserves {
		if e.Team != "" {
			t.Fatalf("reserve %d has team %q", e.PlayerID, e.Team)
		}
	}
	if view.Game.Status != GameTeamsAnnounced {
		t.Fatalf("game status %s", view.Game.Status)
	}

	if _, err := h.svc.GenerateTeams(ctx, s.game.ID); err != nil {
		t.Fatalf("regenerating teams: %v", err)
	}
}

func TestGenerateTeamsNeedsSelection(t *testing.T) {
	h := newHarness(t)
	s := seedScenario(t, h)
	if _, err := h.svc.GenerateTeams(context.Background(), s.game.ID); !errors.Is(err, ErrGameNotActive) {
		t.Fatalf("expected ErrGameNotActive, got %v", err)
	}
}

func TestRosterView(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := seedScenario(t, h)

	view, err := h.svc.Roster(ctx, s.game.ID)
	if err != nil {
		t.Fatalf("Roster: %v", err)
	}
	if len(view.Registered) != 8 || len(view.Selected) != 0 || view.OpenSlots != 5 {
		t.Fatalf("unexpected pre-selection view: registered=%d selected=%d open=%d", len(view.Registered), len(view.Selected), view.OpenSlots)
	}
	if view.Registered[0].PlayerID != s.token {
		t.Fatalf("expected registration order, first is %d", view.Registered[0].PlayerID)
	}

	runScenarioSelection(t, h, s)
	view, err = h.svc.Roster(ctx, s.game.ID)
	if err != nil {
		t.Fatalf("Roster: %v", err)
	}
	if len(view.Selected) != 5 || len(view.Reserves) != 3 || view.OpenSlots != 0 {
		t.Fatalf("unexpected post-selection view: selected=%d reserves=%d open=%d", len(view.Selected), len(view.Reserves), view.OpenSlots)
	}

	if _, err := h.svc.Roster(ctx, 999); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}
