package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/andywang514/violin-coach/internal/midiscore"
	"github.com/andywang514/violin-coach/internal/pitchdet"
	"github.com/andywang514/violin-coach/pkg/coach"
	"github.com/andywang514/violin-coach/pkg/logger"
	"github.com/andywang514/violin-coach/pkg/models"
)

var (
	gradeBPM     int
	gradeDynamic bool
	gradeSave    bool
	gradeVerbose bool
)

func init() {
	gradeCmd.Flags().IntVar(&gradeBPM, "bpm", coach.DefaultBaseBPM, "base tempo in beats per minute")
	gradeCmd.Flags().BoolVar(&gradeDynamic, "dynamic-tempo", false, "slow down after errors and recover after clean stretches")
	gradeCmd.Flags().BoolVar(&gradeSave, "save", true, "store the result in the practice history")
	gradeCmd.Flags().BoolVar(&gradeVerbose, "verbose", false, "print every beat")
	rootCmd.AddCommand(gradeCmd)
}

var gradeCmd = &cobra.Command{
	Use:   "grade <score.mid> <take.wav>",
	Short: "Grade a recorded take against a score",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGrade(args[0], args[1])
	},
}

func runGrade(scorePath, audioPath string) error {
	log := logger.GetLogger()

	seq, err := midiscore.Load(scorePath)
	if err != nil {
		return fmt.Errorf("loading score: %w", err)
	}
	log.Infof("Loaded %q: %d elements, %d measures", seq.Name, len(seq.Elements), seq.MeasureCount())

	samples, err := pitchdet.DetectFile(audioPath, pitchdet.DefaultConfig())
	if err != nil {
		return fmt.Errorf("analyzing audio: %w", err)
	}
	log.Infof("Extracted %d pitch samples", len(samples))

	svc, err := createService()
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	defer svc.Close()

	grade, err := svc.GradeRecording(seq, samples, coach.GradeOptions{
		BPM:            gradeBPM,
		DynamicTempo:   gradeDynamic,
		ReferencePitch: refPitch,
	})
	if err != nil {
		return err
	}

	if !grade.Started {
		fmt.Println("The recording never settled on the opening note; nothing to grade.")
		fmt.Println("Hold the first pitch steadily for at least a quarter second.")
		return nil
	}

	if gradeVerbose {
		for _, ev := range grade.Events {
			rec := grade.Records[ev.BeatIndex]
			fmt.Printf("  beat %3d  %-9s %s at %d bpm\n",
				ev.BeatIndex+1, ev.Classification, coach.PitchName(rec.MIDIPitch), rec.BPM)
		}
	}

	total := len(grade.Events)
	fmt.Printf("\n%q at %d bpm", seq.Name, gradeBPM)
	if gradeDynamic && grade.FinalBPM != gradeBPM {
		fmt.Printf(" (finished at %d bpm)", grade.FinalBPM)
	}
	fmt.Println()
	fmt.Printf("  %d beats: %d correct, %d incorrect, %d missed (%.0f%%)\n",
		total, grade.Correct, grade.Incorrect, grade.Missed,
		percent(grade.Correct, total))

	if gradeSave {
		result := resultFromGrade(seq, grade)
		id, err := svc.SaveResult(result, grade.Records)
		if err != nil {
			return fmt.Errorf("saving result: %w", err)
		}
		fmt.Printf("  saved as %s\n", id)
	}
	return nil
}

func resultFromGrade(seq *coach.ScoreSequence, grade *coach.RecordingGrade) models.PracticeResult {
	return models.PracticeResult{
		ScoreName:    seq.Name,
		BaseBPM:      gradeBPM,
		FinalBPM:     grade.FinalBPM,
		DynamicTempo: gradeDynamic,
		Beats:        len(grade.Events),
		Correct:      grade.Correct,
		Incorrect:    grade.Incorrect,
		Missed:       grade.Missed,
		CreatedAt:    time.Now(),
	}
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}
