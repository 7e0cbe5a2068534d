package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jobpulse/jobpulse-cli/internal/vocab"
)

var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "Manage the controlled vocabularies",
}

var vocabCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate that the vocabulary files load",
	Long:  "Loads the sector, skill, and city vocabularies and reports their sizes. A run aborts before fetching if this fails.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		set, err := vocab.LoadSet(cfg.Vocab)
		if err != nil {
			fmt.Fprintf(os.Stderr, "vocabulary check failed: %v\n", err)
			return err
		}

		fmt.Printf("sectors: %d\nskills: %d\ncities: %d\n",
			len(set.Sectors()), set.SkillCount(), set.CityCount())
		return nil
	},
}

func init() {
	vocabCmd.AddCommand(vocabCheckCmd)
	rootCmd.AddCommand(vocabCmd)
}
