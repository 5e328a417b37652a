// Package teams splits a selected squad into two sides of similar strength.
package teams

import (
	"sort"

	"github.com/samber/lo"
)

type Team string

const (
	Blue   Team = "blue"
	Orange Team = "orange"
)

type Player struct {
	ID int64
	XP int64
}

type Assignment struct {
	Blue   []Player
	Orange []Player
}

func (a Assignment) BlueXP() int64   { return totalXP(a.Blue) }
func (a Assignment) OrangeXP() int64 { return totalXP(a.Orange) }

// Difference is the absolute XP gap between the sides.
func (a Assignment) Difference() int64 {
	return abs(a.BlueXP() - a.OrangeXP())
}

// TeamOf maps each player id to its side.
func (a Assignment) TeamOf() map[int64]Team {
	out := make(map[int64]Team, len(a.Blue)+len(a.Orange))
	for _, p := range a.Blue {
		out[p.ID] = Blue
	}
	for _, p := range a.Orange {
		out[p.ID] = Orange
	}
	return out
}

// Balance assigns players greedily by descending XP to the weaker side,
// keeping team sizes within one of each other, then swaps pairs across the
// sides while a swap narrows the XP gap. The result depends only on the
// input set.
func Balance(players []Player) Assignment {
	ordered := make([]Player, len(players))
	copy(ordered, players)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].XP != ordered[j].XP {
			return ordered[i].XP > ordered[j].XP
		}
		return ordered[i].ID < ordered[j].ID
	})

	blueCap := (len(ordered) + 1) / 2
	orangeCap := len(ordered) / 2

	a := Assignment{Blue: []Player{}, Orange: []Player{}}
	var blueXP, orangeXP int64
	for _, p := range ordered {
		toBlue := blueXP <= orangeXP
		if len(a.Blue) >= blueCap {
			toBlue = false
		} else if len(a.Orange) >= orangeCap {
			toBlue = true
		}
		if toBlue {
			a.Blue = append(a.Blue, p)
			blueXP += p.XP
		} else {
			a.Orange = append(a.Orange, p)
			orangeXP += p.XP
		}
	}

	improveBySwaps(&a)
	sortTeam(a.Blue)
	sortTeam(a.Orange)
	return a
}

// improveBySwaps applies the best single swap until none helps. Each swap
// strictly reduces the gap, so the loop terminates.
func improveBySwaps(a *Assignment) {
	for {
		diff := a.BlueXP() - a.OrangeXP()
		if diff == 0 {
			return
		}
		bestGap := abs(diff)
		bestI, bestJ := -1, -1
		for i, b := range a.Blue {
			for j, o := range a.Orange {
				// Moving b to orange and o to blue shifts the gap by 2*(o-b).
				gap := abs(diff + 2*(o.XP-b.XP))
				if gap < bestGap {
					bestGap, bestI, bestJ = gap, i, j
				}
			}
		}
		if bestI < 0 {
			return
		}
		a.Blue[bestI], a.Orange[bestJ] = a.Orange[bestJ], a.Blue[bestI]
	}
}

func sortTeam(team []Player) {
	sort.SliceStable(team, func(i, j int) bool {
		if team[i].XP != team[j].XP {
			return team[i].XP > team[j].XP
		}
		return team[i].ID < team[j].ID
	})
}

func totalXP(players []Player) int64 {
	return lo.SumBy(players, func(p Player) int64 { return p.XP })
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
