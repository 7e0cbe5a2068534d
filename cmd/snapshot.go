package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/jobpulse/jobpulse-cli/internal/model"
	"github.com/jobpulse/jobpulse-cli/internal/store"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Query the snapshot of a completed run",
	Long:  "Reads analytics, companies, and postings out of a run's persisted snapshot. Defaults to the most recent completed run.",
}

// resolveRunID returns the --run flag value or the latest completed
// run when the flag is empty.
func resolveRunID(cmd *cobra.Command, st store.Store) (string, error) {
	runID, _ := cmd.Flags().GetString("run")
	if runID != "" {
		return runID, nil
	}
	return st.LatestRunID(cmd.Context())
}

// -- snapshot analytics --

var snapshotAnalyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show the aggregated analytics tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runID, err := resolveRunID(cmd, st)
		if err != nil {
			return eris.Wrap(err, "snapshot analytics")
		}

		analytics, err := st.GetAnalytics(ctx, runID)
		if err != nil {
			return eris.Wrap(err, "snapshot analytics")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(analytics)
		}

		fmt.Printf("Run %s: %d postings, %d companies\n\n",
			truncateID(runID), analytics.TotalPostings, analytics.TotalCompanies)
		formatCounts(os.Stdout, "SECTOR", analytics.Sectors)
		formatCounts(os.Stdout, "SKILL", analytics.Skills)
		formatCounts(os.Stdout, "CITY", analytics.Cities)
		return nil
	},
}

// -- snapshot companies --

var snapshotCompaniesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List the canonical companies of a run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runID, err := resolveRunID(cmd, st)
		if err != nil {
			return eris.Wrap(err, "snapshot companies")
		}

		companies, err := st.GetCompanies(ctx, runID)
		if err != nil {
			return eris.Wrap(err, "snapshot companies")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(companies)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tSECTOR\tCITY\tPOSTINGS\tSOURCES")
		for _, c := range companies {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
				truncateID(c.ID), c.Name, c.Sector, c.City, c.Postings, len(c.Sources))
		}
		return w.Flush()
	},
}

// -- snapshot postings --

var snapshotPostingsCmd = &cobra.Command{
	Use:   "postings",
	Short: "Query the canonical postings of a run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runID, err := resolveRunID(cmd, st)
		if err != nil {
			return eris.Wrap(err, "snapshot postings")
		}

		filter, err := postingFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		postings, err := st.QueryPostings(ctx, runID, filter)
		if err != nil {
			return eris.Wrap(err, "snapshot postings")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(postings)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tTITLE\tCOMPANY\tCITY\tSECTOR\tPOSTED\tSOURCES")
		for _, p := range postings {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
				truncateID(p.ID), p.Title, p.Company, p.City, p.Sector,
				p.PostedAt.Format("2006-01-02"), len(p.Sources))
		}
		return w.Flush()
	},
}

// postingFilterFromFlags parses the shared posting query flags.
func postingFilterFromFlags(cmd *cobra.Command) (store.PostingFilter, error) {
	var filter store.PostingFilter
	filter.Sector, _ = cmd.Flags().GetString("sector")
	filter.Skill, _ = cmd.Flags().GetString("skill")
	filter.City, _ = cmd.Flags().GetString("city")
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	for _, f := range []struct {
		name string
		dst  *time.Time
	}{
		{"since", &filter.Since},
		{"until", &filter.Until},
	} {
		raw, _ := cmd.Flags().GetString(f.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, eris.Wrapf(err, "snapshot: parse --%s", f.name)
		}
		*f.dst = t
	}
	return filter, nil
}

func init() {
	snapshotCmd.PersistentFlags().String("run", "", "run id (defaults to the latest completed run)")
	snapshotCmd.PersistentFlags().Bool("json", false, "emit JSON instead of a table")

	snapshotPostingsCmd.Flags().String("sector", "", "filter by canonical sector")
	snapshotPostingsCmd.Flags().String("skill", "", "filter by canonical skill")
	snapshotPostingsCmd.Flags().String("city", "", "filter by canonical city")
	snapshotPostingsCmd.Flags().String("since", "", "only postings on or after this date (YYYY-MM-DD)")
	snapshotPostingsCmd.Flags().String("until", "", "only postings on or before this date (YYYY-MM-DD)")
	snapshotPostingsCmd.Flags().Int("limit", 100, "max number of postings to display")

	snapshotCmd.AddCommand(snapshotAnalyticsCmd)
	snapshotCmd.AddCommand(snapshotCompaniesCmd)
	snapshotCmd.AddCommand(snapshotPostingsCmd)
	rootCmd.AddCommand(snapshotCmd)
}

// formatCounts writes one ranked analytics table to w.
func formatCounts(out io.Writer, header string, entries []model.CountEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "%s\tCOUNT\n", header)
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", e.Key, e.Count)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintln(out)
}
