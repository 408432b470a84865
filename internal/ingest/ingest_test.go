package ingest

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlpipe/dataset"
	"github.com/YuminosukeSato/mlpipe/internal/testutil"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/pkg/log"
)

const dirtyCSV = `gender,lunch,math_score,reading_score
female,standard,72,72
male,standard,69,
female,standard,72,72
,free/reduced,47,60
male,free/reduced,,80
female,,70,66
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoaderErrorsAreLogged(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	l := NewLoader(logger)

	_, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	assert.True(t, errors.IsKind(err, errors.KindMissingInput))
	assert.True(t, logger.ContainsField(log.ErrorKindKey, "missing_input"))

	_, err = l.Load(context.Background(), writeFile(t, "bad.csv", "a,b\n1,2,3\n"))
	assert.True(t, errors.IsKind(err, errors.KindParse))
}

func TestLoaderLogsShape(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	tbl, err := NewLoader(logger).Load(context.Background(), writeFile(t, "s.csv", dirtyCSV))
	require.NoError(t, err)
	assert.Equal(t, 6, tbl.NRows())
	assert.True(t, logger.ContainsMessage("Data loaded"))
	assert.True(t, logger.ContainsField(log.SamplesKey, float64(6)))
}

func TestLoaderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader(log.NewNopLogger()).Load(ctx, writeFile(t, "s.csv", dirtyCSV))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCleaner(t *testing.T) {
	tbl, err := dataset.ReadCSV(strings.NewReader(dirtyCSV))
	require.NoError(t, err)

	logger, _ := log.NewTestLogger(log.LevelDebug)
	cleaned, err := NewCleaner(logger).Clean(tbl)
	require.NoError(t, err)

	assert.Equal(t, 5, cleaned.NRows(), "exact duplicate removed")

	reading, _ := cleaned.Column("reading_score")
	assert.Equal(t, 0, reading.MissingCount())
	assert.Equal(t, 69.0, reading.Floats[1], "median of 72, 60, 80, 66 after dedup")

	mathCol, _ := cleaned.Column("math_score")
	assert.False(t, math.IsNaN(mathCol.Floats[3]))

	gender, _ := cleaned.Column("gender")
	assert.Equal(t, "female", gender.Strings[2], "female and male tie; the smaller wins")

	lunch, _ := cleaned.Column("lunch")
	assert.Equal(t, "free/reduced", lunch.Strings[4], "ties resolve to the smaller category")

	assert.True(t, logger.ContainsField(log.ColumnKey, "reading_score"))
}

func TestCleanerRejectsEmptyColumn(t *testing.T) {
	tbl := dataset.MustTable(
		dataset.NumericColumn("a", []float64{1, 2}),
		dataset.NumericColumn("b", []float64{math.NaN(), math.NaN()}),
	)
	_, err := NewCleaner(log.NewNopLogger()).Clean(tbl)
	assert.True(t, errors.IsKind(err, errors.KindDataQuality))
	assert.Contains(t, err.Error(), `"b"`)
}

func TestSplitterPartitions(t *testing.T) {
	tbl := testutil.Students(100, 1)
	s := NewSplitter(log.NewNopLogger(), 0.2, 42)

	train, test, err := s.Split(tbl)
	require.NoError(t, err)
	assert.Equal(t, 80, train.NRows())
	assert.Equal(t, 20, test.NRows())

	seen := make(map[string]int)
	for _, part := range []*dataset.Table{train, test} {
		for i := 0; i < part.NRows(); i++ {
			seen[part.RowKey(i)]++
		}
	}
	all := make(map[string]int)
	for i := 0; i < tbl.NRows(); i++ {
		all[tbl.RowKey(i)]++
	}
	assert.Equal(t, all, seen)
}

func TestSplitToIsReproducible(t *testing.T) {
	tbl := testutil.Students(50, 3)
	dir := t.TempDir()
	s := NewSplitter(log.NewNopLogger(), 0.2, 42)

	write := func(sub string) ([]byte, []byte) {
		trainPath := filepath.Join(dir, sub, "train.csv")
		testPath := filepath.Join(dir, sub, "test.csv")
		require.NoError(t, s.SplitTo(tbl, trainPath, testPath))
		train, err := os.ReadFile(trainPath)
		require.NoError(t, err)
		test, err := os.ReadFile(testPath)
		require.NoError(t, err)
		return train, test
	}
	train1, test1 := write("a")
	train2, test2 := write("b")
	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)
}

func TestSplitterRejectsTinyTable(t *testing.T) {
	tbl := dataset.MustTable(dataset.NumericColumn("a", []float64{1}))
	_, _, err := NewSplitter(log.NewNopLogger(), 0.2, 42).Split(tbl)
	assert.True(t, errors.IsKind(err, errors.KindDataQuality))
}

func TestIngestionEndToEnd(t *testing.T) {
	dir := t.TempDir()
	raw := testutil.WriteStudents(t, dir, "students.csv", 100, 9)
	in := NewIngestion(log.NewNopLogger(), testutil.Categorical, 0.2, 42)

	cleanedPath := filepath.Join(dir, "cleaned", "cleaned_students.csv")
	cleaned, err := in.Clean(context.Background(), raw, cleanedPath)
	require.NoError(t, err)
	assert.LessOrEqual(t, cleaned.NRows(), 100)

	trainPath := filepath.Join(dir, "cleaned", "train.csv")
	testPath := filepath.Join(dir, "cleaned", "test.csv")
	require.NoError(t, in.Split(context.Background(), cleanedPath, trainPath, testPath))

	train, err := dataset.LoadCSV(trainPath, testutil.Categorical...)
	require.NoError(t, err)
	test, err := dataset.LoadCSV(testPath, testutil.Categorical...)
	require.NoError(t, err)
	assert.Equal(t, cleaned.NRows(), train.NRows()+test.NRows())
	assert.Equal(t, cleaned.Names(), train.Names())
}
