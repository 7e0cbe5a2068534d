package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/jobpulse/jobpulse-cli/internal/config"
)

func writeXLSX(t *testing.T, sheetName string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	require.NoError(t, err)
	for _, row := range rows {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().Value = cell
		}
	}
	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestXLSX_Fetch(t *testing.T) {
	path := writeXLSX(t, "Postings", [][]string{
		{"title", "company", "date"},
		{"Backend Engineer", "Acme", "2024-01-10"},
		{"", "", ""},
		{"Data Analyst", "Globex", "2024-01-11"},
	})

	a, err := Build("exports", config.SourceConfig{Kind: "xlsx", Endpoint: path, SheetName: "Postings"}, nil, nil)
	require.NoError(t, err)

	res := a.Fetch(context.Background())
	require.NoError(t, res.Err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, 1, res.Malformed)
	assert.Equal(t, "Acme", res.Records[0]["company"])
}

func TestXLSX_MissingSheetIsSourceFailure(t *testing.T) {
	path := writeXLSX(t, "Postings", [][]string{{"title"}})

	a, err := Build("exports", config.SourceConfig{Kind: "xlsx", Endpoint: path, SheetName: "Absent"}, nil, nil)
	require.NoError(t, err)

	res := a.Fetch(context.Background())
	assert.Error(t, res.Err)
}
