package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/raaihank/pasteshield/internal/phishing"
	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const datasetCSV = `url,label
http://192.168.1.1/login/verify,1
https://appleid-verify.com/account/update,phishing
https://www.google.com/search?q=test,0
https://example.org/docs/index.html,benign
https://example.net/,maybe
not a url,0
`

func newTestPipeline(t *testing.T, workers int) *Pipeline {
	t.Helper()
	d, err := phishing.NewDetector(phishing.DefaultConfig(), nil)
	require.NoError(t, err)
	return NewPipeline(d, &Config{BatchSize: 2, WorkerCount: workers, ProgressReport: 1}, zap.NewNop())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func assertDatasetReport(t *testing.T, report *Report) {
	t.Helper()
	assert.Equal(t, int64(6), report.TotalRecords)
	assert.Equal(t, int64(1), report.Invalid)
	assert.Equal(t, int64(1), report.Errors)
	assert.Equal(t, int64(4), report.Scored)
	assert.Equal(t, int64(2), report.TruePositives)
	assert.Equal(t, int64(2), report.TrueNegatives)
	assert.Zero(t, report.FalsePositives)
	assert.Zero(t, report.FalseNegatives)
	assert.Equal(t, 1.0, report.Precision)
	assert.Equal(t, 1.0, report.Recall)
	assert.Equal(t, 1.0, report.F1)
	assert.Equal(t, phishing.DefaultThreshold, report.Threshold)
}

func TestProcessCSV(t *testing.T) {
	p := newTestPipeline(t, 3)
	out := filepath.Join(t.TempDir(), "scored.jsonl")

	sink, err := NewFileSink(out)
	require.NoError(t, err)
	report, err := p.ProcessFile(context.Background(), writeFile(t, "urls.csv", datasetCSV), sink)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	assertDatasetReport(t, report)

	file, err := os.Open(out)
	require.NoError(t, err)
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec ScoredRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		urls = append(urls, rec.URL)
	}
	assert.Equal(t, []string{
		"http://192.168.1.1/login/verify",
		"https://appleid-verify.com/account/update",
		"https://www.google.com/search?q=test",
		"https://example.org/docs/index.html",
		"not a url",
	}, urls, "output keeps input order")
}

func TestProcessCSVWithoutHeader(t *testing.T) {
	p := newTestPipeline(t, 1)

	report, err := p.ProcessFile(context.Background(), writeFile(t, "urls.csv", "http://192.168.1.1/login/verify,1\nhttps://example.org/,0\n"), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.Scored)
	assert.Equal(t, int64(1), report.TruePositives)
	assert.Equal(t, int64(1), report.TrueNegatives)
}

func TestProcessJSONLines(t *testing.T) {
	p := newTestPipeline(t, 2)
	content := `{"url":"http://192.168.1.1/login/verify","label":1}
{"url":"https://appleid-verify.com/account/update","label":"phishing"}
{"url":"https://www.google.com/search?q=test","label":false}
{"url":"https://example.org/docs/index.html","label":0}
{"url":"https://example.net/","label":7}
{"url":"not a url","label":0}
`
	report, err := p.ProcessFile(context.Background(), writeFile(t, "urls.jsonl", content), nil)
	require.NoError(t, err)
	assertDatasetReport(t, report)
}

func TestProcessParquetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "urls.parquet")

	file, err := os.Create(in)
	require.NoError(t, err)
	w := parquet.NewGenericWriter[DataRecord](file)
	_, err = w.Write([]DataRecord{
		{URL: "http://192.168.1.1/login/verify", Label: 1},
		{URL: "https://example.org/docs/index.html", Label: 0},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, file.Close())

	out := filepath.Join(dir, "scored.parquet")
	sink, err := NewFileSink(out)
	require.NoError(t, err)

	report, err := newTestPipeline(t, 2).ProcessFile(context.Background(), in, sink)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.Equal(t, int64(2), report.Scored)

	result, err := os.Open(out)
	require.NoError(t, err)
	defer result.Close()

	reader := parquet.NewReader(result)
	defer reader.Close()

	var rows []ScoredRecord
	for {
		var row ScoredRecord
		err := reader.Read(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Predicted)
	assert.Equal(t, 0, rows[1].Predicted)
	assert.Greater(t, rows[0].PhishingScore, rows[1].PhishingScore)
}

func TestSweep(t *testing.T) {
	p := newTestPipeline(t, 2)
	points, err := p.Sweep(context.Background(), writeFile(t, "urls.csv", datasetCSV), []int{0, 25, 50, 100})
	require.NoError(t, err)
	require.Len(t, points, 4)

	for i := 1; i < len(points); i++ {
		assert.LessOrEqual(t, points[i].Threshold, points[i-1].Threshold)
		assert.GreaterOrEqual(t, points[i].Recall, points[i-1].Recall)
		assert.Equal(t, int64(4), points[i].Total())
	}
	assert.Equal(t, phishing.DefaultThreshold, points[1].Threshold)

	_, err = p.Sweep(context.Background(), writeFile(t, "urls.csv", datasetCSV), []int{101})
	assert.ErrorIs(t, err, phishing.ErrInvalidConfig)
}

func TestProcessFileCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestPipeline(t, 1).ProcessFile(ctx, writeFile(t, "urls.csv", datasetCSV), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfusionMetrics(t *testing.T) {
	var c Confusion
	assert.Zero(t, c.Precision())
	assert.Zero(t, c.F1())

	c.Add(1, 1)
	c.Add(1, 1)
	c.Add(1, 0)
	c.Add(0, 1)
	c.Add(0, 0)

	assert.InDelta(t, 2.0/3.0, c.Precision(), 1e-9)
	assert.InDelta(t, 2.0/3.0, c.Recall(), 1e-9)
	assert.InDelta(t, 2.0/3.0, c.F1(), 1e-9)
	assert.InDelta(t, 0.6, c.Accuracy(), 1e-9)
}

func TestParseLabelAndFormat(t *testing.T) {
	for _, s := range []string{"1", "TRUE", "phishing", " malicious "} {
		got, err := ParseLabel(s)
		require.NoError(t, err, s)
		assert.Equal(t, 1, got)
	}
	_, err := ParseLabel("2")
	assert.ErrorIs(t, err, ErrInvalidRecord)

	assert.Equal(t, FormatParquet, DetectFileFormat("a/b.PARQUET"))
	assert.Equal(t, FormatJSON, DetectFileFormat("x.ndjson"))
	assert.Equal(t, FormatCSV, DetectFileFormat("x.txt"))
}
