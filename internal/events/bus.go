// Package events carries realtime game updates to subscribers such as the
// server-sent events endpoint.
package events

import (
	"context"
	"errors"
	"time"
)

type Type string

const (
	TypeRegistrationCreated Type = "registration.created"
	TypeSelectionCompleted  Type = "selection.completed"
	TypeRosterUpdated       Type = "roster.updated"
	TypeTeamsAnnounced      Type = "teams.announced"
	TypeGameCompleted       Type = "game.completed"
)

var ErrBusClosed = errors.New("event bus closed")

// Event is published per game. Payload is a small, typed summary; consumers
// re-read the roster for full state.
type Event struct {
	Type       Type      `json:"type"`
	GameID     int64     `json:"game_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    Payload   `json:"payload"`
}

type Payload struct {
	PlayerID      int64   `json:"player_id,omitempty"`
	SelectedIDs   []int64 `json:"selected_ids,omitempty"`
	ReserveCount  int     `json:"reserve_count,omitempty"`
	RunID         string  `json:"run_id,omitempty"`
	Message       string  `json:"message,omitempty"`
	ReplacementID int64   `json:"replacement_id,omitempty"`
}

// Bus publishes events and hands out per-game subscriptions.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, gameID int64) (Subscription, error)
}

// Subscription must be closed by its owner; Close is idempotent.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

func newEvent(t Type, gameID int64, payload Payload) Event {
	return Event{Type: t, GameID: gameID, OccurredAt: time.Now().UTC(), Payload: payload}
}

// New builds an event stamped with the current time.
func New(t Type, gameID int64, payload Payload) Event {
	return newEvent(t, gameID, payload)
}
