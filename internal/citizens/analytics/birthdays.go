// Package analytics derives the read-only reports of an import: presents per
// birth month and age percentiles per town.
package analytics

import (
	"cmp"
	"slices"
	"strconv"
	"time"

	"census/internal/citizens/models"
)

// Birthdays counts, per month, the presents every citizen buys. A citizen
// buys one present for each relative in the relative's birth month, so an
// edge {X, Y} credits X under Y's month and Y under X's month exactly once.
//
// Citizens are visited by ascending relative count. Ties keep the order of
// citizens, which the stores return sorted by id. citizens is not modified.
func Birthdays(citizens []models.Citizen) models.Birthdays {
	months := make(map[int64]time.Month, len(citizens))
	adjacency := make(map[int64][]int64, len(citizens))
	visit := make([]int64, 0, len(citizens))
	for _, c := range citizens {
		months[c.ID] = c.BirthDate.Month()
		if len(c.Relatives) == 0 {
			continue
		}
		adjacency[c.ID] = slices.Clone(c.Relatives)
		visit = append(visit, c.ID)
	}
	// Fewest relatives first.
	slices.SortStableFunc(visit, func(a, b int64) int {
		return cmp.Compare(len(adjacency[a]), len(adjacency[b]))
	})

	credits := make(map[time.Month]map[int64]int, 12)
	credit := func(month time.Month, id int64) {
		if credits[month] == nil {
			credits[month] = make(map[int64]int)
		}
		credits[month][id]++
	}

	for _, id := range visit {
		relatives, ok := adjacency[id]
		if !ok {
			continue
		}
		for _, rel := range relatives {
			relMonth, known := months[rel]
			if !known {
				continue
			}
			credit(relMonth, id)
			credit(months[id], rel)
			consumeBackEdge(adjacency, rel, id)
		}
		delete(adjacency, id)
	}

	report := models.NewBirthdays()
	for month, byCitizen := range credits {
		entries := make([]models.Presents, 0, len(byCitizen))
		for id, n := range byCitizen {
			entries = append(entries, models.Presents{CitizenID: id, Presents: n})
		}
		slices.SortFunc(entries, func(a, b models.Presents) int { return cmp.Compare(a.CitizenID, b.CitizenID) })
		report[strconv.Itoa(int(month))] = entries
	}
	return report
}

// consumeBackEdge drops one occurrence of from in to's remaining relatives so
// the edge is not credited again when to is visited. A missing back-edge
// (asymmetric data) is left alone.
func consumeBackEdge(adjacency map[int64][]int64, to, from int64) {
	remaining, ok := adjacency[to]
	if !ok {
		return
	}
	i := slices.Index(remaining, from)
	if i < 0 {
		return
	}
	remaining = slices.Delete(remaining, i, i+1)
	if len(remaining) == 0 {
		delete(adjacency, to)
		return
	}
	adjacency[to] = remaining
}
