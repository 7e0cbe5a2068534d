// Package aggregate computes the descriptive analytics over one run's
// canonical dataset. Build is a pure function: no I/O, inputs are not
// mutated, and empty input yields an empty snapshot rather than an
// error.
package aggregate

import (
	"sort"

	"github.com/jobpulse/jobpulse-cli/internal/model"
)

// Build computes sector counts, skill frequencies, and city activity
// over the canonical postings. Every table is ordered by count
// descending, ties broken alphabetically by key.
func Build(postings []model.Posting, companies []model.Company) model.AnalyticsSnapshot {
	sectors := make(map[string]int)
	skills := make(map[string]int)
	cities := make(map[string]int)

	for _, p := range postings {
		sectors[p.Sector]++
		for _, s := range p.Skills {
			skills[s]++
		}
		if p.City != "" {
			cities[p.City]++
		}
	}

	return model.AnalyticsSnapshot{
		Sectors:        rank(sectors),
		Skills:         rank(skills),
		Cities:         rank(cities),
		TotalPostings:  len(postings),
		TotalCompanies: len(companies),
	}
}

// rank converts a count map to an ordered table: count descending,
// ties alphabetical.
func rank(counts map[string]int) []model.CountEntry {
	entries := make([]model.CountEntry, 0, len(counts))
	for key, n := range counts {
		entries = append(entries, model.CountEntry{Key: key, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	return entries
}
