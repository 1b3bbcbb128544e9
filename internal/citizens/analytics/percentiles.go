package analytics

import (
	"cmp"
	"fmt"
	"slices"

	"census/internal/citizens/models"
	"census/pkg/stats"
)

// Percentiles reported per town.
var reportedPercentiles = [...]float64{50, 75, 99}

// TownAgePercentiles returns the 50th, 75th and 99th age percentile of each
// town, rounded to two decimals. Ages are full years at today. Towns appear in
// the order their first citizen does when citizens are ordered by id.
func TownAgePercentiles(citizens []models.Citizen, today models.Date) ([]models.TownAgeStats, error) {
	byID := slices.Clone(citizens)
	slices.SortStableFunc(byID, func(a, b models.Citizen) int { return cmp.Compare(a.ID, b.ID) })

	var towns []string
	ages := make(map[string][]float64)
	for _, c := range byID {
		if _, seen := ages[c.Town]; !seen {
			towns = append(towns, c.Town)
		}
		ages[c.Town] = append(ages[c.Town], float64(c.BirthDate.AgeAt(today)))
	}

	out := make([]models.TownAgeStats, 0, len(towns))
	for _, town := range towns {
		var values [len(reportedPercentiles)]float64
		for i, p := range reportedPercentiles {
			v, err := stats.Percentile(ages[town], p)
			if err != nil {
				return nil, fmt.Errorf("percentile %v of %q: %w", p, town, err)
			}
			values[i] = stats.Round(v, 2)
		}
		out = append(out, models.TownAgeStats{Town: town, P50: values[0], P75: values[1], P99: values[2]})
	}
	return out, nil
}
