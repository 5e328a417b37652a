// Package selection decides which registered players get a slot in a game.
//
// Everything here is a pure function of its inputs plus an injected random
// source. Loading the pool and persisting the outcome live in the roster
// package.
package selection

import (
	"time"

	"github.com/samber/lo"
)

// Method records how a player won their slot.
type Method string

const (
	MethodPriority Method = "priority"
	MethodXP       Method = "xp"
	MethodRandom   Method = "random"
)

// Candidate is a registered player as seen by the selection core.
type Candidate struct {
	ID                int64
	XP                int64
	BenchWarmerStreak int64
	IsWhatsAppMember  bool
	// HasPriorityToken is set when the registration asked to spend a token
	// and the player still holds one.
	HasPriorityToken bool
	AlreadySelected  bool
	RegisteredAt     time.Time
}

// MaxWeight caps a single candidate's tickets so the draw total cannot
// overflow.
const MaxWeight int64 = 1 << 20

// Weight is the number of tickets a candidate holds in a random draw, in
// [1, MaxWeight]. A zero streak still has a chance.
func Weight(c Candidate) int64 {
	if c.BenchWarmerStreak < 0 {
		return 1
	}
	if c.BenchWarmerStreak >= MaxWeight {
		return MaxWeight
	}
	return c.BenchWarmerStreak + 1
}

// Request is the slot budget for one selection run.
type Request struct {
	GameID        int64
	PrioritySlots int
	XPSlots       int
	RandomSlots   int
}

// Normalize clamps negative slot counts to zero.
func (r Request) Normalize() Request {
	r.PrioritySlots = max(r.PrioritySlots, 0)
	r.XPSlots = max(r.XPSlots, 0)
	r.RandomSlots = max(r.RandomSlots, 0)
	return r
}

// Total is the number of slots requested after normalization.
func (r Request) Total() int {
	n := r.Normalize()
	return n.PrioritySlots + n.XPSlots + n.RandomSlots
}

type Pick struct {
	CandidateID int64
	Method      Method
}

// Result lists picks in allocation order: priority, then xp, then random.
type Result struct {
	GameID int64
	Picks  []Pick
}

func (r Result) Count(method Method) int {
	return lo.CountBy(r.Picks, func(p Pick) bool { return p.Method == method })
}

func (r Result) CandidateIDs() []int64 {
	return lo.Map(r.Picks, func(p Pick, _ int) int64 { return p.CandidateID })
}

// Contains reports whether id was picked by any method.
func (r Result) Contains(id int64) bool {
	return lo.ContainsBy(r.Picks, func(p Pick) bool { return p.CandidateID == id })
}
