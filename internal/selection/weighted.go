package selection

import (
	"math/rand/v2"
	"sync"

	"github.com/samber/lo"
)

// RandomSource yields uniform integers in [0, n). *rand.Rand from
// math/rand/v2 satisfies it.
type RandomSource interface {
	IntN(n int) int
}

type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource returns a goroutine-safe source seeded with seed.
func NewSource(seed uint64) RandomSource {
	return &lockedSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// SelectWeighted draws min(count, len(candidates)) distinct candidates
// without replacement, each draw proportional to Weight among those left.
// WhatsApp group members are drawn first; non-members only fill what the
// members cannot.
func SelectWeighted(candidates []Candidate, count int, rng RandomSource) []Candidate {
	if count <= 0 || len(candidates) == 0 {
		return []Candidate{}
	}
	if rng == nil {
		rng = globalSource{}
	}

	members := lo.Filter(candidates, func(c Candidate, _ int) bool { return c.IsWhatsAppMember })
	others := lo.Reject(candidates, func(c Candidate, _ int) bool { return c.IsWhatsAppMember })

	picked := drawWithoutReplacement(members, count, rng)
	if remaining := count - len(picked); remaining > 0 {
		picked = append(picked, drawWithoutReplacement(others, remaining, rng)...)
	}
	return picked
}

func drawWithoutReplacement(pool []Candidate, count int, rng RandomSource) []Candidate {
	n := min(count, len(pool))
	if n <= 0 {
		return []Candidate{}
	}

	left := make([]Candidate, len(pool))
	copy(left, pool)

	var total int64
	for _, c := range left {
		total += Weight(c)
	}

	picked := make([]Candidate, 0, n)
	for len(picked) < n {
		ticket := int64(rng.IntN(int(total)))
		idx := len(left) - 1
		var cumulative int64
		for i, c := range left {
			cumulative += Weight(c)
			if ticket < cumulative {
				idx = i
				break
			}
		}

		winner := left[idx]
		picked = append(picked, winner)
		total -= Weight(winner)
		left = append(left[:idx], left[idx+1:]...)
	}
	return picked
}
