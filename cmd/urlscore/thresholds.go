package main

import (
	"fmt"

	"github.com/raaihank/pasteshield/internal/batch"
	"github.com/spf13/cobra"
)

var (
	sweepStep    int
	sweepWorkers int
)

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds <dataset>",
	Short: "Sweep the sensitivity knob over a labelled dataset",
	Long: `thresholds scores a dataset once and classifies it at every sensitivity
from 0 to 100 in --step increments. The row with the best F1 is highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if sweepStep <= 0 || sweepStep > 100 {
			return fmt.Errorf("step must be between 1 and 100")
		}

		log, err := newLogger()
		if err != nil {
			return err
		}
		defer log.Sync()

		detector, err := newDetector(log)
		if err != nil {
			return err
		}

		var sensitivities []int
		for s := 0; s <= 100; s += sweepStep {
			sensitivities = append(sensitivities, s)
		}
		if sensitivities[len(sensitivities)-1] != 100 {
			sensitivities = append(sensitivities, 100)
		}

		pipeline := batch.NewPipeline(detector, &batch.Config{WorkerCount: sweepWorkers}, log.WithComponent("batch").Logger)
		points, err := pipeline.Sweep(cmd.Context(), args[0], sensitivities)
		if err != nil {
			return err
		}

		best := bestF1(points)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", cyan("sens  threshold  precision  recall      f1     tp     fp     tn     fn"))
		for i, p := range points {
			row := fmt.Sprintf("%4d  %9.3f  %9s  %6s  %6s  %5d  %5d  %5d  %5d",
				p.Sensitivity, p.Threshold, percent(p.Precision), percent(p.Recall), percent(p.F1),
				p.TruePositives, p.FalsePositives, p.TrueNegatives, p.FalseNegatives)
			if i == best {
				row = green(row + "  <- best F1")
			}
			fmt.Fprintln(out, row)
		}
		return nil
	},
}

func init() {
	thresholdsCmd.Flags().IntVar(&sweepStep, "step", 5, "sensitivity increment")
	thresholdsCmd.Flags().IntVarP(&sweepWorkers, "workers", "w", 4, "number of scoring workers")
}

// bestF1 returns the index of the highest F1, preferring the lower
// sensitivity on ties. It returns -1 for an empty sweep.
func bestF1(points []batch.SweepPoint) int {
	best := -1
	for i, p := range points {
		if best < 0 || p.F1 > points[best].F1 {
			best = i
		}
	}
	return best
}
