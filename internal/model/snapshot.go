package model

// CountEntry is one row of a grouped count table.
type CountEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// AnalyticsSnapshot holds the descriptive statistics computed over one
// run's canonical dataset. Each table is ordered by count descending,
// ties broken alphabetically by key.
type AnalyticsSnapshot struct {
	Sectors        []CountEntry `json:"sectors"`
	Skills         []CountEntry `json:"skills"`
	Cities         []CountEntry `json:"cities"`
	TotalPostings  int          `json:"total_postings"`
	TotalCompanies int          `json:"total_companies"`
}
