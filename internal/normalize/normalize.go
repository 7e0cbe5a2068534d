// Package normalize maps source-specific raw records into canonical
// posting candidates: field coercion, date parsing, salary conversion,
// vocabulary-driven skill extraction, and sector mapping.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/jobpulse/jobpulse-cli/internal/config"
	"github.com/jobpulse/jobpulse-cli/internal/model"
	"github.com/jobpulse/jobpulse-cli/internal/vocab"
)

// RecordError flags a single malformed or unparseable record. It is
// non-fatal: the record is dropped from the run, the error is counted
// in the manifest, and the run continues.
type RecordError struct {
	SourceID string
	Reason   string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("normalize %s: %s", e.SourceID, e.Reason)
}

func recordErrf(sourceID, format string, args ...any) *RecordError {
	return &RecordError{SourceID: sourceID, Reason: fmt.Sprintf(format, args...)}
}

// Normalize converts one raw record into a posting candidate using the
// source's explicit field mapping. It is a pure function: no I/O, no
// shared state. Returns a *RecordError when the record cannot be
// normalized.
func Normalize(rec model.RawRecord, sourceID string, cfg config.SourceConfig, vocabs *vocab.Set, fetchedAt time.Time) (model.PostingCandidate, error) {
	field := func(name string) string {
		raw, ok := cfg.Fields[name]
		if !ok {
			return ""
		}
		return clean(rec[raw])
	}

	title := field("title")
	if title == "" {
		return model.PostingCandidate{}, recordErrf(sourceID, "missing title")
	}
	company := field("company")
	if company == "" {
		return model.PostingCandidate{}, recordErrf(sourceID, "missing company")
	}

	rawDate := field("date")
	if rawDate == "" {
		return model.PostingCandidate{}, recordErrf(sourceID, "missing date")
	}
	postedAt, err := ParseDate(rawDate, cfg.DateLayouts)
	if err != nil {
		return model.PostingCandidate{}, recordErrf(sourceID, "unparseable date %q", rawDate)
	}

	city := field("city")
	description := field("description")

	var salary float64
	if rawSalary := field("salary"); rawSalary != "" {
		salary, err = ParseSalary(rawSalary, cfg.SalaryUnit)
		if err != nil {
			// Salary is enrichment, not identity: a bad value is
			// dropped without rejecting the record.
			salary = 0
		}
	}

	// Skill extraction scans the title, the description, and any
	// explicit skills field the source provides. Terms outside the
	// vocabulary are discarded.
	skillText := title
	if rawSkills := field("skills"); rawSkills != "" {
		skillText += " " + rawSkills
	}
	if description != "" {
		skillText += " " + description
	}

	return model.PostingCandidate{
		SourceID:    sourceID,
		NativeID:    field("id"),
		Title:       title,
		TitleKey:    vocab.Fold(title),
		Company:     company,
		CompanyKey:  vocab.Fold(company),
		City:        vocabs.City(city),
		CityKey:     vocab.Fold(vocabs.City(city)),
		Sector:      vocabs.Sector(field("sector")),
		Skills:      vocabs.ExtractSkills(skillText),
		PostedAt:    postedAt,
		Salary:      salary,
		URL:         field("url"),
		Description: description,
		FetchedAt:   fetchedAt.UTC(),
		Authority:   cfg.Authority,
	}, nil
}

// clean trims and collapses internal whitespace while preserving the
// display casing.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
