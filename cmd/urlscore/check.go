package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/raaihank/pasteshield/internal/phishing"
	"github.com/spf13/cobra"
)

var (
	checkInput    string
	checkJSON     bool
	checkFeatures bool
)

var checkCmd = &cobra.Command{
	Use:   "check [url...]",
	Short: "Score one or more URLs",
	Example: `  urlscore check https://paypa1-secure.example/login
  urlscore check -i urls.txt --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := args
		if checkInput != "" {
			lines, err := readLines(checkInput)
			if err != nil {
				return err
			}
			urls = append(urls, lines...)
		}
		if len(urls) == 0 {
			return fmt.Errorf("no URLs provided. Use -i or pass URLs as arguments")
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

		out := cmd.OutOrStdout()
		if checkJSON {
			enc := json.NewEncoder(out)
			for _, u := range urls {
				if err := enc.Encode(detector.Check(u)); err != nil {
					return err
				}
			}
			return nil
		}

		flagged := 0
		for _, u := range urls {
			result := detector.Check(u)
			if result.IsPhishing {
				flagged++
			}
			printResult(cmd, result)
		}

		fmt.Fprintf(out, "\n%s %d/%d flagged at threshold %.2f (detector %s)\n",
			cyan("Summary:"), flagged, len(urls), detector.Threshold(), dim(detector.Version()))
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkInput, "input", "i", "", "file with one URL per line")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print full results as JSON lines")
	checkCmd.Flags().BoolVar(&checkFeatures, "features", false, "print the feature vector")
}

func printResult(cmd *cobra.Command, r phishing.Result) {
	out := cmd.OutOrStdout()

	if r.Error != "" {
		fmt.Fprintf(out, "%s %s %s\n", yellow("[INVALID] "), r.URL, dim(r.Error))
		return
	}

	label := green("[OK]      ")
	if r.IsPhishing {
		label = red("[PHISHING]")
	}
	fmt.Fprintf(out, "%s %s %s score=%.3f\n",
		label, riskColor(r.Confidence)(fmt.Sprintf("%3d%%", r.Confidence)), r.URL, r.PhishingScore)

	if checkFeatures {
		features := r.Features.Map()
		names := make([]string, 0, len(features))
		for name := range features {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "    %-24s %.3f\n", dim(name), features[name])
		}
		if len(r.DomainSegments) > 0 {
			fmt.Fprintf(out, "    %-24s %s\n", dim("domain segments"), strings.Join(r.DomainSegments, " "))
		}
	}
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
