package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobpulse/jobpulse-cli/internal/model"
)

func posting(title, company, companyKey, cityKey, sector string) model.Posting {
	p := model.Posting{
		Title:      title,
		TitleKey:   foldKey(title),
		Company:    company,
		CompanyKey: companyKey,
		City:       "Paris",
		CityKey:    cityKey,
		Sector:     sector,
		PostedAt:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Sources:    []string{"boards"},
	}
	p.ID = model.PostingID(p.TitleKey, p.CompanyKey, p.CityKey, p.PostedAt)
	return p
}

func TestCompanies_ExactKeyMatch(t *testing.T) {
	d := New(testDedupeConfig())

	postings := []model.Posting{
		posting("Backend Engineer", "Acme Corp", "acme corp", "paris", "Tech"),
		posting("Data Analyst", "ACME Corp", "acme corp", "paris", "Tech"),
	}

	companies, assign, merges := d.Companies(postings)
	require.Len(t, companies, 1)
	assert.Equal(t, 0, merges)
	assert.Equal(t, 2, companies[0].Postings)
	assert.Equal(t, companies[0].ID, assign[postings[0].ID])
	assert.Equal(t, companies[0].ID, assign[postings[1].ID])
}

func TestCompanies_FuzzyNameMerge(t *testing.T) {
	d := New(testDedupeConfig())

	postings := []model.Posting{
		posting("Backend Engineer", "Acme Corporation", "acme corporation", "paris", "Tech"),
		posting("Data Analyst", "Acme Corporations", "acme corporations", "paris", "Tech"),
	}

	companies, _, merges := d.Companies(postings)
	require.Len(t, companies, 1)
	assert.Equal(t, 1, merges)
}

func TestCompanies_DifferentCitiesStaySeparate(t *testing.T) {
	d := New(testDedupeConfig())

	postings := []model.Posting{
		posting("Backend Engineer", "Acme Corp", "acme corp", "paris", "Tech"),
		posting("Data Analyst", "Acme Corp", "acme corp", "lyon", "Tech"),
	}

	companies, _, _ := d.Companies(postings)
	assert.Len(t, companies, 2)
}

func TestCompanies_SectorIsMode(t *testing.T) {
	d := New(testDedupeConfig())

	postings := []model.Posting{
		posting("Backend Engineer", "Acme Corp", "acme corp", "paris", "Tech"),
		posting("Data Analyst", "Acme Corp", "acme corp", "paris", "Tech"),
		posting("Store Clerk", "Acme Corp", "acme corp", "paris", "Retail"),
	}

	companies, _, _ := d.Companies(postings)
	require.Len(t, companies, 1)
	assert.Equal(t, "Tech", companies[0].Sector)
}

func TestCompanies_SectorTieBreaksAlphabetically(t *testing.T) {
	d := New(testDedupeConfig())

	postings := []model.Posting{
		posting("Backend Engineer", "Acme Corp", "acme corp", "paris", "Tech"),
		posting("Store Clerk", "Acme Corp", "acme corp", "paris", "Retail"),
	}

	companies, _, _ := d.Companies(postings)
	require.Len(t, companies, 1)
	assert.Equal(t, "Retail", companies[0].Sector)
}

func TestCompanies_DeterministicAcrossOrdering(t *testing.T) {
	d := New(testDedupeConfig())

	a := posting("Backend Engineer", "Acme Corporation", "acme corporation", "paris", "Tech")
	b := posting("Data Analyst", "Acme Corporations", "acme corporations", "paris", "Tech")

	first, _, _ := d.Companies([]model.Posting{a, b})
	second, _, _ := d.Companies([]model.Posting{b, a})
	assert.Equal(t, first, second)
}

func TestNameSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, nameSimilarity("", ""))
	assert.Equal(t, 1.0, nameSimilarity("acme corp", "acme corp"))
	assert.Greater(t, nameSimilarity("acme corporation", "acme corporations"), 0.9)
	assert.Less(t, nameSimilarity("acme corp", "globex"), 0.5)
}
