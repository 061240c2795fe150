package main

import (
	"fmt"
	"os"

	"github.com/raaihank/pasteshield/internal/batch"
	"github.com/spf13/cobra"
)

var (
	scoreOutput    string
	scoreWorkers   int
	scoreBatchSize int
)

var scoreCmd = &cobra.Command{
	Use:   "score <dataset>",
	Short: "Score a labelled dataset and report precision, recall and F1",
	Long: `score reads a CSV, JSON lines or Parquet dataset of {url, label} records,
where label 1 marks phishing, and reports the confusion matrix at the
configured threshold. Per-URL results can be written with --output.`,
	Example: `  urlscore score urls.csv
  urlscore score urls.parquet -o scored.parquet --workers 8 -s 40`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("input file does not exist: %s", args[0])
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

		var sink batch.Sink
		if scoreOutput != "" {
			sink, err = batch.NewFileSink(scoreOutput)
			if err != nil {
				return err
			}
		}

		pipeline := batch.NewPipeline(detector, &batch.Config{
			BatchSize:      scoreBatchSize,
			WorkerCount:    scoreWorkers,
			ProgressReport: 10000,
		}, log.WithComponent("batch").Logger)

		report, err := pipeline.ProcessFile(cmd.Context(), args[0], sink)
		if sink != nil {
			if closeErr := sink.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}
		if err != nil {
			return err
		}

		printReport(cmd, report)
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreOutput, "output", "o", "", "write per-URL results (.csv, .jsonl or .parquet)")
	scoreCmd.Flags().IntVarP(&scoreWorkers, "workers", "w", 4, "number of scoring workers")
	scoreCmd.Flags().IntVar(&scoreBatchSize, "batch-size", 1000, "records per batch")
}

func printReport(cmd *cobra.Command, r *batch.Report) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "\n%s\n", cyan("=== Scoring Report ==="))
	fmt.Fprintf(out, "Records:         %d (%d scored, %d invalid, %d unparseable)\n",
		r.TotalRecords, r.Scored, r.Invalid, r.Errors)
	fmt.Fprintf(out, "Threshold:       %.3f\n", r.Threshold)
	fmt.Fprintf(out, "True positives:  %s\n", green(r.TruePositives))
	fmt.Fprintf(out, "False positives: %s\n", yellow(r.FalsePositives))
	fmt.Fprintf(out, "True negatives:  %s\n", green(r.TrueNegatives))
	fmt.Fprintf(out, "False negatives: %s\n", red(r.FalseNegatives))
	fmt.Fprintf(out, "Precision:       %s\n", percent(r.Precision))
	fmt.Fprintf(out, "Recall:          %s\n", percent(r.Recall))
	fmt.Fprintf(out, "F1:              %s\n", percent(r.F1))
	fmt.Fprintf(out, "Accuracy:        %s\n", percent(r.Accuracy))
	fmt.Fprintf(out, "Duration:        %v\n", r.Duration)
}
