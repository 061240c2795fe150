package batch

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/segmentio/parquet-go"
)

// Sink receives scored records in input order
type Sink interface {
	Write(records []ScoredRecord) error
	Close() error
}

// NewFileSink creates a sink writing to path in the format implied by its extension
func NewFileSink(path string) (Sink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	switch DetectFileFormat(path) {
	case FormatParquet:
		return &parquetSink{file: file, writer: parquet.NewGenericWriter[ScoredRecord](file)}, nil
	case FormatJSON:
		buf := bufio.NewWriter(file)
		return &jsonSink{file: file, buf: buf, encoder: json.NewEncoder(buf)}, nil
	default:
		w := csv.NewWriter(file)
		if err := w.Write([]string{"url", "label", "predicted", "phishing_score", "base_score", "confidence", "error"}); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write CSV header: %w", err)
		}
		return &csvSink{file: file, writer: w}, nil
	}
}

type parquetSink struct {
	file   *os.File
	writer *parquet.GenericWriter[ScoredRecord]
}

func (s *parquetSink) Write(records []ScoredRecord) error {
	if _, err := s.writer.Write(records); err != nil {
		return fmt.Errorf("failed to write Parquet rows: %w", err)
	}
	return nil
}

func (s *parquetSink) Close() error {
	if err := s.writer.Close(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to finalize Parquet file: %w", err)
	}
	return s.file.Close()
}

type jsonSink struct {
	file    *os.File
	buf     *bufio.Writer
	encoder *json.Encoder
}

func (s *jsonSink) Write(records []ScoredRecord) error {
	for i := range records {
		if err := s.encoder.Encode(&records[i]); err != nil {
			return fmt.Errorf("failed to write JSON record: %w", err)
		}
	}
	return nil
}

func (s *jsonSink) Close() error {
	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

type csvSink struct {
	file   *os.File
	writer *csv.Writer
}

func (s *csvSink) Write(records []ScoredRecord) error {
	for _, r := range records {
		row := []string{
			r.URL,
			strconv.Itoa(r.Label),
			strconv.Itoa(r.Predicted),
			strconv.FormatFloat(r.PhishingScore, 'f', 6, 64),
			strconv.FormatFloat(r.BaseScore, 'f', 6, 64),
			strconv.Itoa(r.Confidence),
			r.Error,
		}
		if err := s.writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	return nil
}

func (s *csvSink) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// memorySink collects records; used by Sweep
type memorySink struct {
	records []ScoredRecord
}

func (s *memorySink) Write(records []ScoredRecord) error {
	s.records = append(s.records, records...)
	return nil
}

func (s *memorySink) Close() error {
	return nil
}
