package selection

import (
	"sort"

	"github.com/samber/lo"
)

// Partition splits a game's registrations into the groups each allocation
// phase draws from.
type Partition struct {
	AlreadySelected []Candidate
	// PriorityHolders is ordered by registration time, earliest first.
	PriorityHolders []Candidate
	// Remaining keeps registration order.
	Remaining []Candidate
}

// PartitionPool never mutates pool. A player listed twice keeps the first entry.
func PartitionPool(pool []Candidate) Partition {
	part := Partition{
		AlreadySelected: []Candidate{},
		PriorityHolders: []Candidate{},
		Remaining:       []Candidate{},
	}
	if len(pool) == 0 {
		return part
	}

	unique := lo.UniqBy(pool, func(c Candidate) int64 { return c.ID })
	for _, c := range unique {
		switch {
		case c.AlreadySelected:
			part.AlreadySelected = append(part.AlreadySelected, c)
		case c.HasPriorityToken:
			part.PriorityHolders = append(part.PriorityHolders, c)
		default:
			part.Remaining = append(part.Remaining, c)
		}
	}

	sortByRegistration(part.PriorityHolders)
	sortByRegistration(part.Remaining)
	return part
}

func sortByRegistration(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return registeredBefore(candidates[i], candidates[j])
	})
}

func registeredBefore(a, b Candidate) bool {
	if !a.RegisteredAt.Equal(b.RegisteredAt) {
		return a.RegisteredAt.Before(b.RegisteredAt)
	}
	return a.ID < b.ID
}
