package models

import "strconv"

// Presents is how many gifts one citizen buys in a month.
type Presents struct {
	CitizenID int64 `json:"citizen_id"`
	Presents  int   `json:"presents"`
}

// Birthdays maps month keys "1".."12" to per-citizen present counts sorted by
// citizen id. Every month key is present, possibly with an empty list.
type Birthdays map[string][]Presents

// NewBirthdays returns a report with all twelve months set to empty lists.
func NewBirthdays() Birthdays {
	b := make(Birthdays, 12)
	for month := 1; month <= 12; month++ {
		b[strconv.Itoa(month)] = []Presents{}
	}
	return b
}

// TownAgeStats holds age percentiles of one town.
type TownAgeStats struct {
	Town string  `json:"town"`
	P50  float64 `json:"p50"`
	P75  float64 `json:"p75"`
	P99  float64 `json:"p99"`
}

// ImportCreated is the payload returned after a successful import.
type ImportCreated struct {
	ImportID int64 `json:"import_id"`
}
