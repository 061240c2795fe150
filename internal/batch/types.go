package batch

import (
	"path/filepath"
	"strings"
	"time"
)

// DataRecord is one labelled URL from an input dataset. Label is 1 for
// phishing and 0 for legitimate.
type DataRecord struct {
	URL   string `parquet:"url" json:"url"`
	Label int    `parquet:"label" json:"label"`
}

// ScoredRecord is the per-URL output of a scoring run
type ScoredRecord struct {
	URL           string  `parquet:"url" json:"url"`
	Label         int     `parquet:"label" json:"label"`
	Predicted     int     `parquet:"predicted" json:"predicted"`
	PhishingScore float64 `parquet:"phishing_score" json:"phishing_score"`
	BaseScore     float64 `parquet:"base_score" json:"base_score"`
	Confidence    int     `parquet:"confidence" json:"confidence"`
	Error         string  `parquet:"error" json:"error,omitempty"`
}

// Confusion counts classification outcomes against labels
type Confusion struct {
	TruePositives  int64 `json:"true_positives"`
	FalsePositives int64 `json:"false_positives"`
	TrueNegatives  int64 `json:"true_negatives"`
	FalseNegatives int64 `json:"false_negatives"`
}

// Add records one prediction
func (c *Confusion) Add(label, predicted int) {
	switch {
	case label == 1 && predicted == 1:
		c.TruePositives++
	case label == 0 && predicted == 1:
		c.FalsePositives++
	case label == 0:
		c.TrueNegatives++
	default:
		c.FalseNegatives++
	}
}

// Total returns the number of recorded predictions
func (c Confusion) Total() int64 {
	return c.TruePositives + c.FalsePositives + c.TrueNegatives + c.FalseNegatives
}

// Precision is TP / (TP + FP), or 0 with no positive predictions
func (c Confusion) Precision() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalsePositives)
}

// Recall is TP / (TP + FN), or 0 with no positive labels
func (c Confusion) Recall() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalseNegatives)
}

// F1 is the harmonic mean of precision and recall
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Accuracy is the share of correct predictions
func (c Confusion) Accuracy() float64 {
	return ratio(c.TruePositives+c.TrueNegatives, c.Total())
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Report summarizes a scoring run
type Report struct {
	Confusion
	TotalRecords int64         `json:"total_records"`
	Scored       int64         `json:"scored"`
	Invalid      int64         `json:"invalid"`
	Errors       int64         `json:"errors"`
	Threshold    float64       `json:"threshold"`
	Precision    float64       `json:"precision"`
	Recall       float64       `json:"recall"`
	F1           float64       `json:"f1"`
	Accuracy     float64       `json:"accuracy"`
	Duration     time.Duration `json:"duration"`
}

func (r *Report) finish() {
	r.Precision = r.Confusion.Precision()
	r.Recall = r.Confusion.Recall()
	r.F1 = r.Confusion.F1()
	r.Accuracy = r.Confusion.Accuracy()
}

// SweepPoint is the outcome of classifying a scored dataset at one sensitivity
type SweepPoint struct {
	Confusion
	Sensitivity int     `json:"sensitivity"`
	Threshold   float64 `json:"threshold"`
	Precision   float64 `json:"precision"`
	Recall      float64 `json:"recall"`
	F1          float64 `json:"f1"`
}

// Config contains pipeline configuration
type Config struct {
	BatchSize      int `yaml:"batch_size" mapstructure:"batch_size"`
	WorkerCount    int `yaml:"worker_count" mapstructure:"worker_count"`
	ProgressReport int `yaml:"progress_report" mapstructure:"progress_report"`
}

// DefaultConfig returns the pipeline defaults
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      1000,
		WorkerCount:    4,
		ProgressReport: 10000,
	}
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension, defaulting to CSV
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".parquet":
		return FormatParquet
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	default:
		return FormatCSV
	}
}
