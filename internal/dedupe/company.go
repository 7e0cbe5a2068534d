package dedupe

import (
	"sort"

	"github.com/jobpulse/jobpulse-cli/internal/model"
)

// companyCluster accumulates postings attributed to the same employer.
type companyCluster struct {
	seedKey  string
	postings []model.Posting
}

// Companies resolves canonical companies from the deduplicated
// postings: blocked by city, merged on exact normalized-name match or
// name similarity at or above CompanyNameThreshold. Returns the
// companies, a posting-id to company-id assignment, and the number of
// distinct reported names folded into an existing company.
func (d *Deduper) Companies(postings []model.Posting) ([]model.Company, map[string]string, int) {
	// Deterministic processing order regardless of caller ordering.
	ordered := make([]model.Posting, len(postings))
	copy(ordered, postings)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.CompanyKey != b.CompanyKey {
			return a.CompanyKey < b.CompanyKey
		}
		return a.ID < b.ID
	})

	blocks := make(map[string][]*companyCluster)
	assign := make(map[string]string, len(ordered))
	merges := 0

	for _, p := range ordered {
		var target *companyCluster
		for _, cl := range blocks[p.CityKey] {
			if cl.seedKey == p.CompanyKey ||
				nameSimilarity(cl.seedKey, p.CompanyKey) >= d.cfg.CompanyNameThreshold {
				target = cl
				break
			}
		}
		if target == nil {
			target = &companyCluster{seedKey: p.CompanyKey}
			blocks[p.CityKey] = append(blocks[p.CityKey], target)
		} else if p.CompanyKey != target.seedKey {
			merges++
		}
		target.postings = append(target.postings, p)
		assign[p.ID] = model.CompanyID(target.seedKey, p.CityKey)
	}

	var companies []model.Company
	for cityKey, clusters := range blocks {
		for _, cl := range clusters {
			companies = append(companies, buildCompany(cl, cityKey))
		}
	}

	sort.Slice(companies, func(i, j int) bool { return companies[i].ID < companies[j].ID })
	return companies, assign, merges
}

// buildCompany merges a cluster's postings into one canonical company.
// The sector is the mode of all reported sectors, ties broken
// alphabetically; the display name comes from the seed-keyed posting.
func buildCompany(cl *companyCluster, cityKey string) model.Company {
	c := model.Company{
		ID:      model.CompanyID(cl.seedKey, cityKey),
		NameKey: cl.seedKey,
		CityKey: cityKey,
	}

	sectorCounts := make(map[string]int)
	nameFromSeed := false
	for _, p := range cl.postings {
		// Display name follows the seed-keyed spelling when present.
		if c.Name == "" || (!nameFromSeed && p.CompanyKey == cl.seedKey) {
			c.Name = p.Company
			nameFromSeed = p.CompanyKey == cl.seedKey
		}
		if c.City == "" {
			c.City = p.City
		}
		sectorCounts[p.Sector]++
		for _, src := range p.Sources {
			c.Sources = appendUnique(c.Sources, src)
		}
	}
	sort.Strings(c.Sources)
	c.Postings = len(cl.postings)
	c.Sector = modeSector(sectorCounts)
	return c
}

// modeSector picks the most frequent sector; ties break alphabetically
// so the result is deterministic.
func modeSector(counts map[string]int) string {
	var best string
	bestCount := -1
	for sector, n := range counts {
		if n > bestCount || (n == bestCount && sector < best) {
			best = sector
			bestCount = n
		}
	}
	return best
}
