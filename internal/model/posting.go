// Package model defines the canonical entities shared across the
// ingestion pipeline: raw records, posting candidates, deduplicated
// postings and companies, and run bookkeeping.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// RawRecord is an opaque field-name to raw-value mapping as returned by
// a source adapter. Field names are source-specific; interpretation
// happens in the normalizer via the source's field mapping.
type RawRecord map[string]string

// PostingCandidate is a normalized posting prior to deduplication.
// Display fields preserve the original casing; Key fields are folded
// for comparison (lower-cased, diacritics stripped, whitespace
// collapsed).
type PostingCandidate struct {
	SourceID    string    `json:"source_id"`
	NativeID    string    `json:"native_id"`
	Title       string    `json:"title"`
	TitleKey    string    `json:"title_key"`
	Company     string    `json:"company"`
	CompanyKey  string    `json:"company_key"`
	City        string    `json:"city"`
	CityKey     string    `json:"city_key"`
	Sector      string    `json:"sector"`
	Skills      []string  `json:"skills"`
	PostedAt    time.Time `json:"posted_at"`
	Salary      float64   `json:"salary,omitempty"`
	URL         string    `json:"url,omitempty"`
	Description string    `json:"description,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
	Authority   int       `json:"authority"`
}

// ID returns the stable posting identifier for the candidate: the
// first 16 hex characters of sha256 over the normalized identity
// fields. Re-ingesting the same posting from any source yields the
// same identifier when the normalized content matches.
func (c PostingCandidate) ID() string {
	return PostingID(c.TitleKey, c.CompanyKey, c.CityKey, c.PostedAt)
}

// PostingID derives the deterministic posting identifier from the
// normalized comparison keys and posting date.
func PostingID(titleKey, companyKey, cityKey string, postedAt time.Time) string {
	h := sha256.Sum256([]byte(strings.Join([]string{
		titleKey, companyKey, cityKey, postedAt.UTC().Format("2006-01-02"),
	}, "|")))
	return hex.EncodeToString(h[:])[:16]
}

// Posting is a canonical, deduplicated job posting.
type Posting struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	TitleKey    string    `json:"title_key"`
	Company     string    `json:"company"`
	CompanyKey  string    `json:"company_key"`
	CompanyID   string    `json:"company_id,omitempty"`
	City        string    `json:"city"`
	CityKey     string    `json:"city_key"`
	Sector      string    `json:"sector"`
	Skills      []string  `json:"skills"`
	PostedAt    time.Time `json:"posted_at"`
	Salary      float64   `json:"salary,omitempty"`
	URL         string    `json:"url,omitempty"`
	Description string    `json:"description,omitempty"`
	Sources     []string  `json:"sources"`
	NativeIDs   []string  `json:"native_ids,omitempty"`
}

// Company is a canonical employer merged across sources.
type Company struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	NameKey  string   `json:"name_key"`
	Sector   string   `json:"sector"`
	City     string   `json:"city"`
	CityKey  string   `json:"city_key"`
	Sources  []string `json:"sources"`
	Postings int      `json:"postings"`
}

// CompanyID derives the deterministic company identifier from the
// folded name and city keys.
func CompanyID(nameKey, cityKey string) string {
	h := sha256.Sum256([]byte(nameKey + "|" + cityKey))
	return hex.EncodeToString(h[:])[:16]
}

// DedupCluster groups posting candidates judged to be the same real
// posting. The merge is many-to-one and directional: members point at
// exactly one canonical posting. The cluster identifier is fixed by
// the seed candidate and does not change as further matches join.
type DedupCluster struct {
	ID        string   `json:"id"`
	PostingID string   `json:"posting_id"`
	MemberIDs []string `json:"member_ids"`
	SourceIDs []string `json:"source_ids"`
}

// Merges returns the number of candidates that were folded into the
// cluster beyond the canonical one.
func (c DedupCluster) Merges() int {
	if len(c.MemberIDs) == 0 {
		return 0
	}
	return len(c.MemberIDs) - 1
}
