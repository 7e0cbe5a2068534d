package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobpulse/jobpulse-cli/internal/model"
)

func postingWith(sector, city string, skills ...string) model.Posting {
	return model.Posting{Sector: sector, City: city, Skills: skills}
}

func TestBuild_RankedTables(t *testing.T) {
	postings := []model.Posting{
		postingWith("Tech", "Paris", "Go", "SQL"),
		postingWith("Tech", "Paris", "Go"),
		postingWith("Tech", "Lyon", "SQL"),
		postingWith("Retail", "Paris"),
		postingWith("Retail", "Lyon"),
		postingWith("unclassified", "Paris"),
	}
	companies := []model.Company{{ID: "c1"}, {ID: "c2"}}

	snap := Build(postings, companies)

	require.Len(t, snap.Sectors, 3)
	assert.Equal(t, model.CountEntry{Key: "Tech", Count: 3}, snap.Sectors[0])
	assert.Equal(t, model.CountEntry{Key: "Retail", Count: 2}, snap.Sectors[1])
	assert.Equal(t, model.CountEntry{Key: "unclassified", Count: 1}, snap.Sectors[2])

	require.Len(t, snap.Skills, 2)
	assert.Equal(t, model.CountEntry{Key: "Go", Count: 2}, snap.Skills[0])
	assert.Equal(t, model.CountEntry{Key: "SQL", Count: 2}, snap.Skills[1])

	require.Len(t, snap.Cities, 2)
	assert.Equal(t, model.CountEntry{Key: "Paris", Count: 4}, snap.Cities[0])
	assert.Equal(t, model.CountEntry{Key: "Lyon", Count: 2}, snap.Cities[1])

	assert.Equal(t, 6, snap.TotalPostings)
	assert.Equal(t, 2, snap.TotalCompanies)
}

func TestBuild_TieBreaksAlphabetically(t *testing.T) {
	postings := []model.Posting{
		postingWith("Retail", ""),
		postingWith("Tech", ""),
	}

	snap := Build(postings, nil)
	require.Len(t, snap.Sectors, 2)
	assert.Equal(t, "Retail", snap.Sectors[0].Key)
	assert.Equal(t, "Tech", snap.Sectors[1].Key)
	assert.Empty(t, snap.Cities)
}

func TestBuild_EmptyInput(t *testing.T) {
	snap := Build(nil, nil)
	assert.Empty(t, snap.Sectors)
	assert.Empty(t, snap.Skills)
	assert.Empty(t, snap.Cities)
	assert.Zero(t, snap.TotalPostings)
	assert.Zero(t, snap.TotalCompanies)
}
