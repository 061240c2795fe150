package batch

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/segmentio/parquet-go"
)

// ErrInvalidRecord marks a row that could not be turned into a DataRecord
var ErrInvalidRecord = errors.New("invalid record")

// recordReader yields records one at a time and returns io.EOF when done.
// Malformed rows are reported with ErrInvalidRecord and reading continues.
type recordReader interface {
	Read() (DataRecord, error)
	Close() error
}

// openReader opens a dataset in the format implied by its extension
func openReader(path string) (recordReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}

	switch DetectFileFormat(path) {
	case FormatParquet:
		return &parquetReader{file: file, reader: parquet.NewReader(file)}, nil
	case FormatJSON:
		return &jsonReader{file: file, decoder: json.NewDecoder(file)}, nil
	default:
		r, err := newCSVReader(file)
		if err != nil {
			file.Close()
			return nil, err
		}
		return r, nil
	}
}

type csvReader struct {
	file     *os.File
	reader   *csv.Reader
	urlCol   int
	labelCol int
	pending  []string
}

// newCSVReader reads an optional header naming url and label columns.
// Without a header the first two columns are used.
func newCSVReader(file *os.File) (*csvReader, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	r := &csvReader{file: file, reader: reader, urlCol: 0, labelCol: 1}

	first, err := reader.Read()
	if err == io.EOF {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	urlCol, labelCol := -1, -1
	for i, name := range first {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "url":
			urlCol = i
		case "label", "status", "type":
			labelCol = i
		}
	}
	if urlCol >= 0 && labelCol >= 0 {
		r.urlCol, r.labelCol = urlCol, labelCol
	} else {
		r.pending = first
	}

	return r, nil
}

func (r *csvReader) Read() (DataRecord, error) {
	row := r.pending
	r.pending = nil
	if row == nil {
		var err error
		row, err = r.reader.Read()
		if err == io.EOF {
			return DataRecord{}, io.EOF
		}
		if err != nil {
			return DataRecord{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
	}

	if len(row) <= r.urlCol || len(row) <= r.labelCol {
		return DataRecord{}, fmt.Errorf("%w: expected at least %d columns", ErrInvalidRecord, max(r.urlCol, r.labelCol)+1)
	}

	label, err := ParseLabel(row[r.labelCol])
	if err != nil {
		return DataRecord{}, err
	}
	return validate(DataRecord{URL: strings.TrimSpace(row[r.urlCol]), Label: label})
}

func (r *csvReader) Close() error {
	return r.file.Close()
}

type jsonReader struct {
	file    *os.File
	decoder *json.Decoder
}

func (r *jsonReader) Read() (DataRecord, error) {
	var raw struct {
		URL   string          `json:"url"`
		Label json.RawMessage `json:"label"`
	}
	if err := r.decoder.Decode(&raw); err == io.EOF {
		return DataRecord{}, io.EOF
	} else if err != nil {
		// A syntax error leaves the decoder unusable
		return DataRecord{}, fmt.Errorf("failed to decode JSON record: %w", err)
	}

	label, err := ParseLabel(strings.Trim(string(raw.Label), `"`))
	if err != nil {
		return DataRecord{}, err
	}
	return validate(DataRecord{URL: strings.TrimSpace(raw.URL), Label: label})
}

func (r *jsonReader) Close() error {
	return r.file.Close()
}

type parquetReader struct {
	file   *os.File
	reader *parquet.Reader
}

func (r *parquetReader) Read() (DataRecord, error) {
	var record DataRecord
	if err := r.reader.Read(&record); err != nil {
		if errors.Is(err, io.EOF) {
			return DataRecord{}, io.EOF
		}
		return DataRecord{}, fmt.Errorf("failed to read Parquet record: %w", err)
	}
	if record.Label != 0 && record.Label != 1 {
		return DataRecord{}, fmt.Errorf("%w: label %d", ErrInvalidRecord, record.Label)
	}
	return validate(record)
}

func (r *parquetReader) Close() error {
	r.reader.Close()
	return r.file.Close()
}

// ParseLabel accepts 0/1, booleans and the common dataset words for each class
func ParseLabel(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "phishing", "malicious", "bad":
		return 1, nil
	case "0", "false", "legitimate", "benign", "safe", "good":
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return 0, fmt.Errorf("%w: label %d", ErrInvalidRecord, n)
	}
	return 0, fmt.Errorf("%w: label %q", ErrInvalidRecord, s)
}

func validate(record DataRecord) (DataRecord, error) {
	if record.URL == "" {
		return DataRecord{}, fmt.Errorf("%w: empty url", ErrInvalidRecord)
	}
	return record, nil
}
