package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/andywang514/violin-coach/pkg/coach"
	"github.com/andywang514/violin-coach/pkg/models"
)

func init() {
	resultsCmd.AddCommand(resultsListCmd, resultsShowCmd, resultsDeleteCmd)
	rootCmd.AddCommand(resultsCmd)
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect the practice history",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored practice results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := createService()
		if err != nil {
			return err
		}
		defer svc.Close()

		results, err := svc.ListResults()
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No practice results yet.")
			return nil
		}
		for _, r := range results {
			fmt.Printf("%s  %-24q %3d bpm  %3.0f%%  %s\n",
				r.ID, r.ScoreName, r.BaseBPM, 100*r.Accuracy(),
				humanize.Time(r.CreatedAt))
		}
		return nil
	},
}

var resultsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one practice result beat by beat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := createService()
		if err != nil {
			return err
		}
		defer svc.Close()

		result, beats, err := svc.GetResult(args[0])
		if err != nil {
			return err
		}
		printResult(*result, beats)
		return nil
	},
}

var resultsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a practice result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := createService()
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.DeleteResult(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func printResult(r models.PracticeResult, beats []models.BeatRecord) {
	fmt.Printf("%q (%s)\n", r.ScoreName, humanize.Time(r.CreatedAt))
	fmt.Printf("  base %d bpm", r.BaseBPM)
	if r.DynamicTempo {
		fmt.Printf(", dynamic tempo, finished at %d bpm", r.FinalBPM)
	}
	fmt.Println()
	fmt.Printf("  %d beats: %d correct, %d incorrect, %d missed (%.0f%%)\n",
		r.Beats, r.Correct, r.Incorrect, r.Missed, 100*r.Accuracy())
	if r.DurationMs > 0 {
		fmt.Printf("  took %s\n", (time.Duration(r.DurationMs) * time.Millisecond).Round(time.Second))
	}
	for _, b := range beats {
		fmt.Printf("  beat %3d  %-9s %s at %d bpm\n",
			b.BeatIndex+1, b.Classification, coach.PitchName(b.MIDIPitch), b.BPM)
	}
}
