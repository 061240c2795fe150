package main

import (
	"fmt"

	"github.com/raaihank/pasteshield/internal/config"
	"github.com/raaihank/pasteshield/internal/logger"
	"github.com/raaihank/pasteshield/internal/phishing"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	tablesFile  string
	sensitivity int
	threshold   float64
	verbose     bool
	noColor     bool
)

var rootCmd = &cobra.Command{
	Use:   "urlscore",
	Short: "Score URLs with the PasteShield phishing heuristics",
	Long: `urlscore runs the PasteShield phishing detector outside the daemon.
It checks single URLs, scores labelled datasets and sweeps the
sensitivity knob to help pick a threshold.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			disableColor()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "PasteShield configuration file")
	flags.StringVar(&tablesFile, "tables", "", "heuristic tables YAML file (overrides the config)")
	flags.IntVarP(&sensitivity, "sensitivity", "s", -1, "sensitivity 0-100 (overrides threshold)")
	flags.Float64VarP(&threshold, "threshold", "t", -1, "classification threshold in [0,1]")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(checkCmd, scoreCmd, thresholdsCmd, versionCmd)
}

// newLogger logs to stdout only in verbose mode
func newLogger() (*logger.Logger, error) {
	if !verbose {
		return logger.Nop(), nil
	}
	return logger.New(logger.Config{Level: "debug", Format: "console"})
}

// newDetector builds a detector from the optional config file and flag overrides
func newDetector(log *logger.Logger) (*phishing.Detector, error) {
	cfg := config.GetDefaults()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	pc := cfg.Phishing
	if tablesFile != "" {
		pc.TablesFile = tablesFile
	}
	switch {
	case sensitivity >= 0:
		if sensitivity > 100 {
			return nil, fmt.Errorf("sensitivity %d outside [0,100]", sensitivity)
		}
		s := sensitivity
		pc.Sensitivity = &s
	case threshold >= 0:
		if err := phishing.ValidateThreshold(threshold); err != nil {
			return nil, err
		}
		pc.Sensitivity = nil
		pc.Threshold = threshold
	}

	detectorCfg, err := pc.DetectorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load phishing tables: %w", err)
	}
	return phishing.NewDetector(detectorCfg, log.WithComponent("phishing").Logger)
}
