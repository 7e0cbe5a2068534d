package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/jobpulse/jobpulse-cli/internal/fetcher"
	"github.com/jobpulse/jobpulse-cli/internal/model"
	"github.com/jobpulse/jobpulse-cli/internal/pipeline"
	"github.com/jobpulse/jobpulse-cli/internal/source"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one ingestion run",
	Long:  "Fetches all configured sources, normalizes and deduplicates the postings, aggregates analytics, and persists the snapshot.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if driver, _ := cmd.Flags().GetString("store"); driver != "" {
			cfg.Store.Driver = driver
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		only, _ := cmd.Flags().GetStringSlice("sources")

		httpF := fetcher.NewHTTPFetcher(cfg.Fetch)
		ftpF := fetcher.NewFTPFetcher(cfg.Fetch.FTPTimeout())

		adapters, err := source.BuildAll(cfg.Sources, only, httpF, ftpF)
		if err != nil {
			return eris.Wrap(err, "run: build sources")
		}
		if len(adapters) == 0 {
			return eris.New("run: no sources configured")
		}

		manifest, runErr := pipeline.New(cfg, st, adapters).Run(ctx)
		if manifest != nil {
			formatManifest(os.Stdout, manifest)
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().StringSlice("sources", nil, "restrict the run to these source names")
	runCmd.Flags().String("store", "", "override the configured store driver (sqlite or postgres)")
	rootCmd.AddCommand(runCmd)
}

// formatManifest writes a human-readable run summary to w.
func formatManifest(out io.Writer, m *model.RunManifest) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", m.RunID)
	_, _ = fmt.Fprintf(w, "Elapsed:\t%s\n", m.FinishedAt.Sub(m.StartedAt).Round(time.Millisecond))
	if m.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", m.Error)
	}
	if m.PartialFailure {
		_, _ = fmt.Fprintln(w, "Partial failure:\tyes")
	}
	_, _ = fmt.Fprintf(w, "Candidates:\t%d\n", m.Candidates)
	_, _ = fmt.Fprintf(w, "Postings:\t%d\n", m.Postings)
	_, _ = fmt.Fprintf(w, "Companies:\t%d\n", m.Companies)
	_, _ = fmt.Fprintf(w, "Posting merges:\t%d\n", m.MergeCount)
	_, _ = fmt.Fprintf(w, "Company merges:\t%d\n", m.CompanyMerges)
	_ = w.Flush()

	names := make([]string, 0, len(m.Sources))
	for name := range m.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\nSOURCE\tFETCHED\tMALFORMED\tNORMALIZED\tDROPPED\tSTATUS")
	for _, name := range names {
		s := m.Sources[name]
		status := "ok"
		if s.Failed {
			status = "failed: " + s.Reason
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			name, s.Fetched, s.Malformed, s.Normalized, s.Dropped, status)
	}
	_ = w.Flush()
}
