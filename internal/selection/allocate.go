package selection

import (
	"sort"
)

// Allocate fills the requested slots in three phases. Priority token holders
// go first in registration order. XP slots then go to the highest XP among
// everyone not yet picked, earlier registration winning ties. Whoever is left
// enters the weighted draw for the random slots.
//
// A phase that runs out of candidates is left short; later phases never make
// up the difference. Holders who miss out on a priority slot compete in the
// XP and random phases like everyone else.
func Allocate(pool []Candidate, req Request, rng RandomSource) Result {
	req = req.Normalize()
	result := Result{GameID: req.GameID, Picks: []Pick{}}

	part := PartitionPool(pool)

	priorityCount := min(req.PrioritySlots, len(part.PriorityHolders))
	for _, c := range part.PriorityHolders[:priorityCount] {
		result.Picks = append(result.Picks, Pick{CandidateID: c.ID, Method: MethodPriority})
	}

	remaining := make([]Candidate, 0, len(part.Remaining)+len(part.PriorityHolders)-priorityCount)
	remaining = append(remaining, part.PriorityHolders[priorityCount:]...)
	remaining = append(remaining, part.Remaining...)
	sortByRegistration(remaining)

	byXP := RankByXP(remaining)
	xpCount := min(req.XPSlots, len(byXP))
	xpPicked := make(map[int64]struct{}, xpCount)
	for _, c := range byXP[:xpCount] {
		result.Picks = append(result.Picks, Pick{CandidateID: c.ID, Method: MethodXP})
		xpPicked[c.ID] = struct{}{}
	}

	randomPool := make([]Candidate, 0, len(remaining)-xpCount)
	for _, c := range remaining {
		if _, ok := xpPicked[c.ID]; !ok {
			randomPool = append(randomPool, c)
		}
	}
	for _, c := range SelectWeighted(randomPool, req.RandomSlots, rng) {
		result.Picks = append(result.Picks, Pick{CandidateID: c.ID, Method: MethodRandom})
	}

	return result
}

// RankByXP returns a copy ordered by XP descending, then registration time.
func RankByXP(candidates []Candidate) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].XP != ranked[j].XP {
			return ranked[i].XP > ranked[j].XP
		}
		return registeredBefore(ranked[i], ranked[j])
	})
	return ranked
}
