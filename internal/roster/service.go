// Package roster owns a game's registrations from sign-up to final whistle:
// loading the selection pool, persisting selection runs, dropouts, teams,
// payments and post-game streak updates.
package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/wnf/internal/db"
	"github.com/codr1/wnf/internal/email"
	"github.com/codr1/wnf/internal/events"
	"github.com/codr1/wnf/internal/metrics"
	"github.com/codr1/wnf/internal/selection"
)

const (
	GameOpen             = "open"
	GamePlayersAnnounced = "players_announced"
	GameTeamsAnnounced   = "teams_announced"
	GameCompleted        = "completed"
	GameCancelled        = "cancelled"

	RegistrationRegistered = "registered"
	RegistrationSelected   = "selected"
	RegistrationReserve    = "reserve"
	RegistrationDroppedOut = "dropped_out"
)

// Trigger records what started a selection run.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerDropout   Trigger = "dropout"
)

// Defaults are the slot split used when a run does not name one.
type Defaults struct {
	XPSlots     int
	RandomSlots int
	// BaseURL prefixes roster links in notification emails.
	BaseURL string
}

type Service struct {
	db       *db.DB
	bus      events.Bus
	metrics  *metrics.Manager
	sender   email.EmailSender
	rng      selection.RandomSource
	defaults Defaults
	now      func() time.Time

	pending sync.WaitGroup
}

type Option func(*Service)

func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEmailSender enables selection notices.
func WithEmailSender(sender email.EmailSender) Option {
	return func(s *Service) { s.sender = sender }
}

func WithRandomSource(rng selection.RandomSource) Option {
	return func(s *Service) {
		if rng != nil {
			s.rng = rng
		}
	}
}

func WithDefaults(d Defaults) Option {
	return func(s *Service) { s.defaults = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(database *db.DB, bus events.Bus, opts ...Option) (*Service, error) {
	if database == nil {
		return nil, errors.New("roster service requires a database")
	}
	if bus == nil {
		return nil, errors.New("roster service requires an event bus")
	}
	s := &Service{
		db:  database,
		bus: bus,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = selection.NewSource(uint64(s.now().UnixNano()))
	}
	return s, nil
}

// Wait blocks until queued notifications have been sent.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.bus.Publish(ctx, event); err != nil {
		log.Ctx(ctx).Warn().
			Err(err).
			Str("component", "roster_service").
			Int64("game_id", event.GameID).
			Str("event_type", string(event.Type)).
			Msg("Failed to publish roster event")
	}
}

func (s *Service) rosterURL(gameID int64) string {
	if s.defaults.BaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/games/%d", strings.TrimRight(s.defaults.BaseURL, "/"), gameID)
}

// notify sends notices in the background. Callers must have committed
// before calling.
func (s *Service) notify(ctx context.Context, game email.GameDetails, recipients []email.Recipient) {
	if s.sender == nil || len(recipients) == 0 {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		email.SendSelectionNotices(ctx, s.sender, game, recipients)
	}()
}
