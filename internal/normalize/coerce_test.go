package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate_DefaultLayouts(t *testing.T) {
	want := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	for _, raw := range []string{
		"2024-01-10",
		"2024-01-10T09:30:00Z",
		"2024-01-10 09:30:00",
		"Jan 10, 2024",
		"10 January 2024",
	} {
		got, err := ParseDate(raw, nil)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestParseDate_SourceLayoutWins(t *testing.T) {
	got, err := ParseDate("10.01.2024", []string{"02.01.2006"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), got)
}

func TestParseDate_TruncatesToUTCDate(t *testing.T) {
	got, err := ParseDate("2024-01-10T23:59:00+02:00", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), got)
}

func TestParseDate_NoLayoutMatches(t *testing.T) {
	_, err := ParseDate("next tuesday", nil)
	assert.Error(t, err)
}

func TestParseSalary(t *testing.T) {
	cases := []struct {
		raw  string
		unit string
		want float64
	}{
		{"55000", "", 55000},
		{"€55,000", "annual", 55000},
		{"$40k", "", 40000},
		{"40k - 60k", "", 40000},
		{"4500", "monthly", 54000},
		{"25", "hourly", 52000},
		{"62.5k", "", 62500},
	}
	for _, tc := range cases {
		got, err := ParseSalary(tc.raw, tc.unit)
		require.NoError(t, err, tc.raw)
		assert.InDelta(t, tc.want, got, 0.01, tc.raw)
	}
}

func TestParseSalary_Errors(t *testing.T) {
	_, err := ParseSalary("", "")
	assert.Error(t, err)

	_, err = ParseSalary("competitive", "")
	assert.Error(t, err)

	_, err = ParseSalary("55000", "fortnightly")
	assert.Error(t, err)
}
