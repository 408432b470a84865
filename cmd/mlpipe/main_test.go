package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlpipe/dataset"
	"github.com/YuminosukeSato/mlpipe/internal/config"
	"github.com/YuminosukeSato/mlpipe/internal/evaluate"
	"github.com/YuminosukeSato/mlpipe/internal/testutil"
	"github.com/YuminosukeSato/mlpipe/metrics"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	raw := testutil.WriteStudents(t, filepath.Join(dir, "data", "uncleaned"), "students.csv", 120, 3)
	yaml := fmt.Sprintf(`paths:
  raw: %s
  cleaned: %s
  artifacts: %s
  logs: %s
tuning:
  alphas: [0.1, 1, 10]
  solvers: [auto, svd]
  folds: 3
`, raw, filepath.Join(dir, "data", "cleaned"), filepath.Join(dir, "artifacts"), filepath.Join(dir, "logs"))
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestRunAll(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the whole pipeline")
	}
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"--config", cfgPath, "run"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	artifacts := filepath.Join(dir, "artifacts")
	for _, name := range []string{
		config.PreprocessorFile,
		config.TransformedTrainFile,
		config.TransformedTestFile,
		config.BestModelFile,
		config.TunedModelFile,
		config.R2ComparisonFile,
		config.PredictionsFile,
	} {
		assert.FileExists(t, filepath.Join(artifacts, name))
	}
	cleaned, err := dataset.LoadCSV(filepath.Join(dir, "data", "cleaned", "cleaned_students.csv"), testutil.Categorical...)
	require.NoError(t, err)
	pred, err := dataset.LoadCSV(filepath.Join(artifacts, config.PredictionsFile))
	require.NoError(t, err)
	assert.Equal(t, cleaned.NRows(), pred.NRows(), "predict reads the cleaned dataset by default")
	assert.Equal(t, []string{"Predicted Values"}, pred.Names())

	assert.Contains(t, stdout.String(), "Best model:")
	assert.Contains(t, stdout.String(), "R2 Score after tuning:")

	logs, err := os.ReadDir(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestPredictWithoutArtifactsFails(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"-c", cfgPath, "predict", "--model", "best"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "missing_input")
}

func TestUnknownModelSelector(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"-c", cfgPath, "importance", "--model", "worst"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "must be best or tuned")
}

func TestMissingConfigFails(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"-c", filepath.Join(t.TempDir(), "nope.yaml"), "ingest"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "missing_input")
}

func TestPrintLeaderboard(t *testing.T) {
	var out bytes.Buffer
	a := newApp(&out)
	r := &evaluate.Report{
		Scores: []evaluate.Score{
			{Name: evaluate.LinearRegression, Test: metrics.Regression{MAE: 4, RMSE: 5, R2: 0.80}},
			{Name: evaluate.Ridge, Test: metrics.Regression{MAE: 3, RMSE: 4, R2: 0.85}},
			{Name: evaluate.KNeighbors, Err: errors.New("boom")},
		},
		Best:   evaluate.Ridge,
		BestR2: 0.85,
	}
	a.printLeaderboard(r)

	s := out.String()
	assert.Less(t, strings.Index(s, evaluate.Ridge), strings.Index(s, evaluate.LinearRegression))
	assert.Contains(t, s, "boom")
	assert.Contains(t, s, "Best model: "+evaluate.Ridge+" (R2: 0.8500)")
}
