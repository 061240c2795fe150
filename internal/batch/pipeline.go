package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/raaihank/pasteshield/internal/phishing"
	"go.uber.org/zap"
)

// Pipeline scores labelled URL datasets with a phishing detector
type Pipeline struct {
	detector *phishing.Detector
	config   *Config
	logger   *zap.Logger
}

// NewPipeline creates a new scoring pipeline
func NewPipeline(detector *phishing.Detector, config *Config, logger *zap.Logger) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		detector: detector,
		config:   config,
		logger:   logger,
	}
}

// ProcessFile scores every valid record in a CSV, JSON lines or Parquet
// dataset. Scored records are written to sink in input order when sink is
// not nil.
func (p *Pipeline) ProcessFile(ctx context.Context, inputPath string, sink Sink) (*Report, error) {
	reader, err := openReader(inputPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	p.logger.Info("Starting scoring pipeline",
		zap.String("file", inputPath),
		zap.String("format", string(DetectFileFormat(inputPath))),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount),
		zap.Float64("threshold", p.detector.Threshold()))

	start := time.Now()
	report := &Report{Threshold: p.detector.Threshold()}

	for {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		batch, done, err := p.readBatch(reader, report)
		if err != nil {
			return report, err
		}

		if len(batch) > 0 {
			scored, err := p.ScoreRecords(ctx, batch)
			if err != nil {
				return report, err
			}
			p.tally(report, scored)

			if sink != nil {
				if err := sink.Write(scored); err != nil {
					return report, err
				}
			}
			p.reportProgress(report, len(batch))
		}

		if done {
			break
		}
	}

	report.Duration = time.Since(start)
	report.finish()

	p.logger.Info("Scoring pipeline completed",
		zap.Int64("total_records", report.TotalRecords),
		zap.Int64("scored", report.Scored),
		zap.Int64("invalid", report.Invalid),
		zap.Float64("precision", report.Precision),
		zap.Float64("recall", report.Recall),
		zap.Float64("f1", report.F1),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// readBatch reads up to BatchSize valid records. done is true at end of input.
func (p *Pipeline) readBatch(reader recordReader, report *Report) ([]DataRecord, bool, error) {
	batch := make([]DataRecord, 0, p.config.BatchSize)

	for len(batch) < p.config.BatchSize {
		record, err := reader.Read()
		if err == io.EOF {
			return batch, true, nil
		}

		if err != nil {
			if errors.Is(err, ErrInvalidRecord) {
				report.TotalRecords++
				report.Invalid++
				p.logger.Warn("Skipping invalid record", zap.Error(err))
				continue
			}
			return batch, true, err
		}

		report.TotalRecords++
		batch = append(batch, record)
	}

	return batch, false, nil
}

// ScoreRecords scores records with the worker pool, preserving order
func (p *Pipeline) ScoreRecords(ctx context.Context, records []DataRecord) ([]ScoredRecord, error) {
	scored := make([]ScoredRecord, len(records))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.config.WorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				scored[i] = p.Score(records[i])
			}
		}()
	}

	var err error
feed:
	for i := range records {
		select {
		case jobs <- i:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err != nil {
		return nil, err
	}
	return scored, nil
}

// Score runs the detector on one record
func (p *Pipeline) Score(record DataRecord) ScoredRecord {
	result := p.detector.Check(record.URL)

	scored := ScoredRecord{
		URL:           record.URL,
		Label:         record.Label,
		PhishingScore: result.PhishingScore,
		BaseScore:     result.BaseScore,
		Confidence:    result.Confidence,
		Error:         result.Error,
	}
	if result.IsPhishing {
		scored.Predicted = 1
	}
	return scored
}

func (p *Pipeline) tally(report *Report, scored []ScoredRecord) {
	for _, r := range scored {
		if r.Error != "" {
			report.Errors++
			continue
		}
		report.Scored++
		report.Add(r.Label, r.Predicted)
	}
}

func (p *Pipeline) reportProgress(report *Report, batchSize int) {
	every := int64(p.config.ProgressReport)
	if every <= 0 {
		return
	}
	before := report.TotalRecords - int64(batchSize)
	if report.TotalRecords/every > before/every {
		p.logger.Info("Scoring progress",
			zap.Int64("records", report.TotalRecords),
			zap.Int64("scored", report.Scored),
			zap.Int64("invalid", report.Invalid))
	}
}

// Sweep scores a dataset once and evaluates it at each sensitivity. The
// phishing score does not depend on the threshold, so only classification
// is repeated.
func (p *Pipeline) Sweep(ctx context.Context, inputPath string, sensitivities []int) ([]SweepPoint, error) {
	sink := &memorySink{}
	if _, err := p.ProcessFile(ctx, inputPath, sink); err != nil {
		return nil, err
	}

	points := make([]SweepPoint, 0, len(sensitivities))
	for _, s := range sensitivities {
		if s < 0 || s > 100 {
			return nil, fmt.Errorf("%w: sensitivity %d outside [0,100]", phishing.ErrInvalidConfig, s)
		}

		point := SweepPoint{Sensitivity: s, Threshold: phishing.ThresholdFromSensitivity(s)}
		for _, r := range sink.records {
			if r.Error != "" {
				continue
			}
			predicted := 0
			if phishing.Classify(r.PhishingScore, point.Threshold) {
				predicted = 1
			}
			point.Add(r.Label, predicted)
		}
		point.Precision = point.Confusion.Precision()
		point.Recall = point.Confusion.Recall()
		point.F1 = point.Confusion.F1()
		points = append(points, point)
	}

	return points, nil
}
