package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobpulse/jobpulse-cli/internal/config"
	"github.com/jobpulse/jobpulse-cli/internal/model"
)

func testDedupeConfig() config.DedupeConfig {
	return config.DedupeConfig{
		Threshold:            0.75,
		TitleWeight:          0.5,
		CompanyWeight:        0.2,
		CityWeight:           0.1,
		SkillWeight:          0.2,
		CompanyNameThreshold: 0.9,
		BlockWorkers:         2,
	}
}

func candidate(sourceID, title string, authority int, fetchedAt time.Time, skills ...string) model.PostingCandidate {
	return model.PostingCandidate{
		SourceID:   sourceID,
		Title:      title,
		TitleKey:   foldKey(title),
		Company:    "Acme Corp",
		CompanyKey: "acme corp",
		City:       "Paris",
		CityKey:    "paris",
		Sector:     "Tech",
		Skills:     skills,
		PostedAt:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		FetchedAt:  fetchedAt,
		Authority:  authority,
	}
}

// foldKey is a test shorthand; production keys come from vocab.Fold.
func foldKey(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+32)
		case r == '(' || r == ')' || r == '/':
			out = append(out, ' ')
		default:
			out = append(out, r)
		}
	}
	fields := []rune{}
	space := false
	for _, r := range out {
		if r == ' ' {
			space = len(fields) > 0
			continue
		}
		if space {
			fields = append(fields, ' ')
			space = false
		}
		fields = append(fields, r)
	}
	return string(fields)
}

func TestPostings_CrossSourceMerge(t *testing.T) {
	d := New(testDedupeConfig())
	now := time.Now().UTC()

	a := candidate("boards", "Backend Engineer", 1, now, "Go", "SQL")
	b := candidate("agency", "Backend Engineer (m/f)", 2, now.Add(-time.Hour), "Go", "SQL", "Docker")

	postings, clusters, err := d.Postings(context.Background(), []model.PostingCandidate{a, b})
	require.NoError(t, err)
	require.Len(t, postings, 1)
	require.Len(t, clusters, 1)

	p := postings[0]
	// The more authoritative source wins the base fields.
	assert.Equal(t, "Backend Engineer", p.Title)
	// Skills are the union across members.
	assert.ElementsMatch(t, []string{"Go", "SQL", "Docker"}, p.Skills)
	assert.ElementsMatch(t, []string{"boards", "agency"}, p.Sources)
	assert.Equal(t, 1, clusters[0].Merges())
}

func TestPostings_BelowThresholdStaysSeparate(t *testing.T) {
	d := New(testDedupeConfig())
	now := time.Now().UTC()

	a := candidate("boards", "Backend Engineer", 1, now, "Go")
	b := candidate("boards", "Accountant", 1, now, "SQL")

	postings, clusters, err := d.Postings(context.Background(), []model.PostingCandidate{a, b})
	require.NoError(t, err)
	assert.Len(t, postings, 2)
	assert.Len(t, clusters, 2)
	for _, cl := range clusters {
		assert.Equal(t, 0, cl.Merges())
	}
}

func TestPostings_DifferentWeeksNeverCompared(t *testing.T) {
	d := New(testDedupeConfig())
	now := time.Now().UTC()

	a := candidate("boards", "Backend Engineer", 1, now, "Go")
	b := candidate("agency", "Backend Engineer", 1, now, "Go")
	b.PostedAt = b.PostedAt.AddDate(0, 0, 14)

	postings, _, err := d.Postings(context.Background(), []model.PostingCandidate{a, b})
	require.NoError(t, err)
	assert.Len(t, postings, 2)
}

func TestPostings_SingletonPassesThrough(t *testing.T) {
	d := New(testDedupeConfig())

	a := candidate("boards", "Backend Engineer", 1, time.Now().UTC(), "Go")
	postings, clusters, err := d.Postings(context.Background(), []model.PostingCandidate{a})
	require.NoError(t, err)
	require.Len(t, postings, 1)

	assert.Equal(t, a.ID(), postings[0].ID)
	assert.Equal(t, []string{"boards"}, postings[0].Sources)
	assert.Equal(t, postings[0].ID, clusters[0].PostingID)
}

func TestPostings_OrderIndependent(t *testing.T) {
	d := New(testDedupeConfig())
	now := time.Now().UTC()

	a := candidate("boards", "Backend Engineer", 1, now, "Go", "SQL")
	b := candidate("agency", "Backend Engineer (m/f)", 2, now, "Go", "SQL")
	c := candidate("feeds", "Frontend Developer", 1, now, "Go")

	first, _, err := d.Postings(context.Background(), []model.PostingCandidate{a, b, c})
	require.NoError(t, err)
	second, _, err := d.Postings(context.Background(), []model.PostingCandidate{c, b, a})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPostings_Idempotent(t *testing.T) {
	d := New(testDedupeConfig())
	now := time.Now().UTC()

	input := []model.PostingCandidate{
		candidate("boards", "Backend Engineer", 1, now, "Go"),
		candidate("agency", "Backend Engineer", 2, now, "Go"),
	}

	first, _, err := d.Postings(context.Background(), input)
	require.NoError(t, err)
	second, _, err := d.Postings(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMerge_AuthorityThenRecency(t *testing.T) {
	d := New(testDedupeConfig())
	older := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	newer := older.Add(4 * time.Hour)

	// Same authority: the more recently fetched member wins.
	a := candidate("boards", "Backend Engineer", 1, older, "Go")
	a.Salary = 50000
	b := candidate("agency", "Backend Engineer", 1, newer, "Go")
	b.Salary = 60000

	postings, _, err := d.Postings(context.Background(), []model.PostingCandidate{a, b})
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, 60000.0, postings[0].Salary)
}

func TestMerge_GapFillFromLowerAuthority(t *testing.T) {
	d := New(testDedupeConfig())
	now := time.Now().UTC()

	a := candidate("boards", "Backend Engineer", 1, now, "Go")
	a.Sector = "unclassified"
	b := candidate("agency", "Backend Engineer", 2, now, "Go")
	b.Sector = "Tech"
	b.URL = "https://agency.example/123"

	postings, _, err := d.Postings(context.Background(), []model.PostingCandidate{a, b})
	require.NoError(t, err)
	require.Len(t, postings, 1)

	// The winner's empty or unclassified fields fill from other members.
	assert.Equal(t, "Tech", postings[0].Sector)
	assert.Equal(t, "https://agency.example/123", postings[0].URL)
}

func TestSkillOverlap(t *testing.T) {
	assert.Equal(t, 1.0, skillOverlap(nil, nil))
	assert.Equal(t, 0.0, skillOverlap([]string{"Go"}, nil))
	assert.Equal(t, 1.0, skillOverlap([]string{"Go", "SQL"}, []string{"SQL", "Go"}))
	assert.InDelta(t, 1.0/3.0, skillOverlap([]string{"Go", "SQL"}, []string{"Go", "Docker"}), 1e-9)
}

func TestScore_IdenticalCandidates(t *testing.T) {
	cfg := testDedupeConfig()
	a := candidate("boards", "Backend Engineer", 1, time.Now(), "Go")
	assert.InDelta(t, 1.0, score(cfg, a, a), 1e-9)
}
