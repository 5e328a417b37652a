package roster

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codr1/wnf/internal/db"
	"github.com/codr1/wnf/internal/db/queries"
	"github.com/codr1/wnf/internal/events"
	"github.com/codr1/wnf/internal/selection"
	"github.com/codr1/wnf/internal/testutil"
)

type recordingSender struct {
	mu   sync.Mutex
	sent map[string]string
}

func (r *recordingSender) Send(_ context.Context, recipient, subject, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = map[string]string{}
	}
	r.sent[recipient] = subject
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type harness struct {
	db     *db.DB
	bus    *events.MemoryBus
	sender *recordingSender
	svc    *Service
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		db:     testutil.NewTestDB(t),
		bus:    events.NewMemoryBus(),
		sender: &recordingSender{},
	}
	t.Cleanup(func() { h.bus.Close() })

	opts = append([]Option{
		WithRandomSource(selection.NewSource(7)),
		WithEmailSender(h.sender),
		WithDefaults(Defaults{XPSlots: 2, RandomSlots: 2, BaseURL: "https://wnf.example.com"}),
	}, opts...)
	svc, err := NewService(h.db, h.bus, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.svc = svc
	return h
}

// scenario is a five-a-side game with eight registrations.
type scenario struct {
	game    queries.Game
	token   int64 // priority token holder, lowest XP
	topXP   []int64
	members []int64
	others  []int64
}

func seedScenario(t *testing.T, h *harness) scenario {
	t.Helper()
	game := testutil.SeedGame(t, h.db, 5)
	base := time.Now().UTC().Add(-48 * time.Hour)

	s := scenario{game: game}
	reg := func(seed testutil.PlayerSeed, useToken bool, minute int) int64 {
		id := testutil.SeedPlayer(t, h.db, seed)
		testutil.SeedRegistration(t, h.db, game.ID, id, useToken, base.Add(time.Duration(minute)*time.Minute))
		return id
	}

	s.token = reg(testutil.PlayerSeed{Name: "Tok", Email: "tok@example.com", XP: 10, PriorityTokens: 1}, true, 0)
	s.topXP = []int64{
		reg(testutil.PlayerSeed{Name: "Ace", Email: "ace@example.com", XP: 90, CurrentStreak: 4}, false, 1),
		reg(testutil.PlayerSeed{Name: "Bo", XP: 80}, false, 2),
	}
	s.members = []int64{
		reg(testutil.PlayerSeed{Name: "Cal", Email: "cal@example.com", XP: 70, WhatsApp: true}, false, 3),
		reg(testutil.PlayerSeed{Name: "Dee", XP: 60, WhatsApp: true, BenchWarmerStreak: 3}, false, 4),
		reg(testutil.PlayerSeed{Name: "Eli", XP: 40, WhatsApp: true}, false, 6),
	}
	s.others = []int64{
		reg(testutil.PlayerSeed{Name: "Fay", Email: "fay@example.com", XP: 50, BenchWarmerStreak: 1}, false, 5),
		reg(testutil.PlayerSeed{Name: "Gus", XP: 30}, false, 7),
	}
	return s
}

func registration(t *testing.T, database *db.DB, gameID, playerID int64) queries.GameRegistration {
	t.Helper()
	reg, err := database.Queries.GetRegistration(context.Background(), queries.GetRegistrationParams{GameID: gameID, PlayerID: playerID})
	if err != nil {
		t.Fatalf("get registration %d: %v", playerID, err)
	}
	return reg
}

func player(t *testing.T, database *db.DB, id int64) queries.Player {
	t.Helper()
	p, err := database.Queries.GetPlayer(context.Background(), id)
	if err != nil {
		t.Fatalf("get player %d: %v", id, err)
	}
	return p
}

func gameStatus(t *testing.T, database *db.DB, id int64) string {
	t.Helper()
	g, err := database.Queries.GetGame(context.Background(), id)
	if err != nil {
		t.Fatalf("get game %d: %v", id, err)
	}
	return g.Status
}

func nextEvent(t *testing.T, sub events.Subscription) events.Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return events.Event{}
}

func runScenarioSelection(t *testing.T, h *harness, s scenario) Outcome {
	t.Helper()
	outcome, err := h.svc.RunSelection(context.Background(), selection.Request{
		GameID: s.game.ID, PrioritySlots: 1, XPSlots: 2, RandomSlots: 2,
	}, TriggerManual)
	if err != nil {
		t.Fatalf("RunSelection: %v", err)
	}
	return outcome
}

func TestRunSelectionPersistsPicks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := seedScenario(t, h)

	sub, err := h.bus.Subscribe(ctx, s.game.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	outcome := runScenarioSelection(t, h, s)

	if got := len(outcome.Result.Picks); got != 5 {
		t.Fatalf("expected 5 picks, got %d", got)
	}
	if outcome.ReserveCount != 3 {
		t.Fatalf("expected 3 reserves, got %d", outcome.ReserveCount)
	}

	tok := registration(t, h.db, s.game.ID, s.token)
	if tok.Status != RegistrationSelected || tok.SelectionMethod.String != "priority" {
		t.Fatalf("token holder: status=%s method=%s", tok.Status, tok.SelectionMethod.String)
	}
	if p := player(t, h.db, s.token); p.PriorityTokens != 0 {
		t.Fatalf("expected priority token consumed, have %d", p.PriorityTokens)
	}
	for _, id := range s.topXP {
		reg := registration(t, h.db, s.game.ID, id)
		if reg.Status != RegistrationSelected || reg.SelectionMethod.String != "xp" {
			t.Fatalf("player %d: status=%s method=%s", id, reg.Status, reg.SelectionMethod.String)
		}
	}

	randomMembers := 0
	for _, id := range s.members {
		if registration(t, h.db, s.game.ID, id).Status == RegistrationSelected {
			randomMembers++
		}
	}
	if randomMembers != 2 {
		t.Fatalf("expected both random slots to go to WhatsApp members, got %d", randomMembers)
	}
	for _, id := range s.others {
		if st := registration(t, h.db, s.game.ID, id).Status; st != RegistrationReserve {
			t.Fatalf("player %d: expected reserve, got %s", id, st)
		}
	}

	if st := gameStatus(t, h.db, s.game.ID); st != GamePlayersAnnounced {
		t.Fatalf("expected game players_announced, got %s", st)
	}

	runs, err := h.db.Queries.ListSelectionRuns(ctx, s.game.ID)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Trigger != "manual" || runs[0].SelectedCount != 5 || runs[0].RunUuid != outcome.RunID {
		t.Fatalf("unexpected selection runs %+v", runs)
	}

	ev := nextEvent(t, sub)
	if ev.Type != events.TypeSelectionCompleted || len(ev.Payload.SelectedIDs) != 5 || ev.Payload.RunID != outcome.RunID {
		t.Fatalf("unexpected event %+v", ev)
	}

	h.svc.Wait()
	// Players with an email: Tok, Ace, Cal, Fay.
	if got := h.sender.count(); got != 4 {
		t.Fatalf("expected 4 notices, got %d", got)
	}
	if subj := h.sender.sent["fay@example.com"]; !strings.HasPrefix(subj, "You're a reserve") {
		t.Fatalf("expected reserve notice for Fay, got %q", subj)
	}
}

func TestRunSelectionRejectsSecondRun(t *testing.T) {
	h := newHarness(t)
	s := seedScenario(t, h)
	runScenarioSelection(t, h, s)

	_, err := h.svc.RunSelection(context.Background(), selection.Request{GameID: s.game.ID, XPSlots: 1}, TriggerManual)
	if !errors.Is(err, ErrSelectionClosed) {
		t.Fatalf("expected ErrSelectionClosed, got %v", err)
	}
}

func TestRunSelectionRejectsOverCapacity(t *testing.T) {
	h := newHarness(t)
	s := seedScenario(t, h)

	_, err := h.svc.RunSelection(context.Background(), selection.Request{
		GameID: s.game.ID, PrioritySlots: 1, XPSlots: 3, RandomSlots: 2,
	}, TriggerManual)
	if !errors.Is(err, ErrSlotsExceedCapacity) {
		t.Fatalf("expected ErrSlotsExceedCapacity, got %v", err)
	}
	if st := gameStatus(t, h.db, s.game.ID); st != GameOpen {
		t.Fatalf("expected game to stay open, got %s", st)
	}
	if reg := registration(t, h.db, s.game.ID, s.token); reg.Status != RegistrationRegistered {
		t.Fatalf("expected no picks persisted, token holder is %s", reg.Status)
	}
}

func TestRunSelectionClampsNegativeCounts(t *testing.T) {
	h := newHarness(t)
	s := seedScenario(t, h)

	outcome, err := h.svc.RunSelection(context.Background(), selection.Request{
		GameID: s.game.ID, PrioritySlots: -3, XPSlots: 2, RandomSlots: -1,
	}, TriggerManual)
	if err != nil {
		t.Fatalf("RunSelection: %v", err)
	}
	if outcome.Result.Count(selection.MethodXP) != 2 || len(outcome.Result.Picks) != 2 {
		t.Fatalf("unexpected picks %+v", outcome.Result.Picks)
	}
}

func TestRunSelectionEmptyPool(t *testing.T) {
	h := newHarness(t)
	game := testutil.SeedGame(t, h.db, 10)

	outcome, err := h.svc.RunSelection(context.Background(), selection.Request{GameID: game.ID, XPSlots: 4, RandomSlots: 4}, TriggerManual)
	if err != nil {
		t.Fatalf("empty pool should not error: %v", err)
	}
	if len(outcome.Result.Picks) != 0 {
		t.Fatalf("expected no picks, got %d", len(outcome.Result.Picks))
	}
}

func TestRunSelectionUnknownGame(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.RunSelection(context.Background(), selection.Request{GameID: 999, XPSlots: 1}, TriggerManual)
	if !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}

func TestBuildDefaultRequest(t *testing.T) {
	tests := []struct {
		name      string
		openSlots int
		holders   int
		defaults  Defaults
		want      selection.Request
	}{
		{name: "fits", openSlots: 18, holders: 2, defaults: Defaults{XPSlots: 10, RandomSlots: 6}, want: selection.Request{GameID: 1, PrioritySlots: 2, XPSlots: 10, RandomSlots: 6}},
		{name: "random clamped", openSlots: 18, holders: 4, defaults: Defaults{XPSlots: 10, RandomSlots: 8}, want: selection.Request{GameID: 1, PrioritySlots: 4, XPSlots: 10, RandomSlots: 4}},
		{name: "holders exceed slots", openSlots: 3, holders: 5, defaults: Defaults{XPSlots: 10, RandomSlots: 8}, want: selection.Request{GameID: 1, PrioritySlots: 3}},
		{name: "no slots", openSlots: 0, holders: 1, defaults: Defaults{XPSlots: 10, RandomSlots: 8}, want: selection.Request{GameID: 1}},
		{name: "negative defaults", openSlots: 6, defaults: Defaults{XPSlots: -1, RandomSlots: 2}, want: selection.Request{GameID: 1, RandomSlots: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildDefaultRequest(1, tt.openSlots, tt.holders, tt.defaults)
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRunDueSelections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := seedScenario(t, h)

	future, err := h.db.Queries.CreateGame(ctx, queries.CreateGameParams{
		Title:                "Next week",
		StartsAt:             time.Now().UTC().Add(8 * 24 * time.Hour),
		RegistrationClosesAt: time.Now().UTC().Add(7 * 24 * time.Hour),
		MaxPlayers:           10,
	})
	if err != nil {
		t.Fatalf("create future game: %v", err)
	}

	ran, err := h.svc.RunDueSelections(ctx)
	if err != nil {
		t.Fatalf("RunDueSelections: %v", err)
	}
	if ran != 1 {
		t.Fatalf("expected 1 run, got %d", ran)
	}
	if st := gameStatus(t, h.db, s.game.ID); st != GamePlayersAnnounced {
		t.Fatalf("due game status %s", st)
	}
	if st := gameStatus(t, h.db, future.ID); st != GameOpen {
		t.Fatalf("future game status %s", st)
	}

	runs, err := h.db.Queries.ListSelectionRuns(ctx, s.game.ID)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	// One token holder, then xp 2 and random 2 from the defaults.
	if len(runs) != 1 || runs[0].Trigger != "scheduled" || runs[0].PrioritySlots != 1 || runs[0].SelectedCount != 5 {
		t.Fatalf("unexpected runs %+v", runs)
	}

	again, err := h.svc.RunDueSelections(ctx)
	if err != nil || again != 0 {
		t.Fatalf("second pass: ran=%d err=%v", again, err)
	}
}
