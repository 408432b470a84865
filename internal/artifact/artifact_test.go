package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/dataset"
	"github.com/YuminosukeSato/mlpipe/linear"
	"github.com/YuminosukeSato/mlpipe/pipeline"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/sklearn/ensemble"
)

func fittedPreprocessor(t *testing.T) (*pipeline.ColumnTransformer, *dataset.Table) {
	t.Helper()
	tbl := dataset.MustTable(
		dataset.NumericColumn("reading_score", []float64{70, 80, 90, 60}),
		dataset.CategoricalColumn("lunch", []string{"standard", "free/reduced", "standard", "standard"}, nil),
	)
	ct, err := pipeline.NewColumnTransformer([]string{"reading_score"}, []string{"lunch"}, pipeline.Options{})
	require.NoError(t, err)
	_, err = ct.FitTransform(tbl)
	require.NoError(t, err)
	return ct, tbl
}

func fittedRidge(t *testing.T) *linear.Ridge {
	t.Helper()
	X := mat.NewDense(4, 2, []float64{1, 0, 2, 1, 3, 0, 4, 1})
	y := mat.NewDense(4, 1, []float64{2, 5, 6, 9})
	r := linear.NewRidge(linear.WithAlpha(0.5))
	require.NoError(t, r.Fit(X, y))
	return r
}

func TestRegressorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best_model.gob")
	r := fittedRidge(t)
	runID := NewRunID()
	require.NoError(t, SaveRegressor(path, "Ridge", runID, r))

	m, err := LoadRegressor(path)
	require.NoError(t, err)
	assert.Equal(t, "Ridge", m.Name)
	assert.Equal(t, runID, m.RunID)

	X := mat.NewDense(2, 2, []float64{5, 0, 6, 1})
	want, err := r.Predict(X)
	require.NoError(t, err)
	got, err := m.Regressor.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}

func TestEnsembleRoundTrip(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(6, 1, []float64{1, 1, 1, 5, 5, 5})
	rf := ensemble.NewRandomForestRegressor(5, 42)
	require.NoError(t, rf.Fit(X, y))

	path := filepath.Join(t.TempDir(), "rf.gob")
	require.NoError(t, SaveRegressor(path, "Random Forest Regressor", NewRunID(), rf))
	m, err := LoadRegressor(path)
	require.NoError(t, err)
	_, ok := m.Regressor.(*ensemble.RandomForestRegressor)
	assert.True(t, ok)
}

func TestPreprocessorRoundTrip(t *testing.T) {
	ct, tbl := fittedPreprocessor(t)
	path := filepath.Join(t.TempDir(), "preprocessor.gob")
	require.NoError(t, modelSave(path, ct))

	loaded, err := LoadPreprocessor(path)
	require.NoError(t, err)
	assert.Equal(t, ct.FeatureNames(), loaded.FeatureNames())

	want, err := ct.Transform(tbl)
	require.NoError(t, err)
	got, err := loaded.Transform(tbl)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}

func modelSave(path string, ct *pipeline.ColumnTransformer) error {
	b := NewBatch()
	if err := b.StageArtifact(path, Preprocessor(NewRunID(), ct)); err != nil {
		return err
	}
	return b.Commit()
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadRegressor(filepath.Join(dir, "absent.gob"))
	assert.True(t, errors.IsKind(err, errors.KindMissingInput))

	corrupt := filepath.Join(dir, "corrupt.gob")
	require.NoError(t, os.WriteFile(corrupt, []byte("not gob"), 0o644))
	_, err = LoadPreprocessor(corrupt)
	assert.True(t, errors.IsKind(err, errors.KindPersistence))

	modelPath := filepath.Join(dir, "model.gob")
	require.NoError(t, SaveRegressor(modelPath, "Ridge", NewRunID(), fittedRidge(t)))
	_, err = LoadPreprocessor(modelPath)
	assert.True(t, errors.IsKind(err, errors.KindPersistence), "a model is not a preprocessor")

	ct, _ := fittedPreprocessor(t)
	prePath := filepath.Join(dir, "pre.gob")
	require.NoError(t, modelSave(prePath, ct))
	_, err = LoadRegressor(prePath)
	assert.True(t, errors.IsKind(err, errors.KindPersistence), "a preprocessor is not a model")
}

func TestSaveRegressorRejectsUnfitted(t *testing.T) {
	err := SaveRegressor(filepath.Join(t.TempDir(), "m.gob"), "Ridge", NewRunID(), linear.NewRidge())
	assert.True(t, errors.IsKind(err, errors.KindPersistence))
}

func TestRunIDsAreUnique(t *testing.T) {
	assert.NotEqual(t, NewRunID(), NewRunID())
	assert.Len(t, NewRunID(), 36)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestBatchCommit(t *testing.T) {
	dir := t.TempDir()
	_, tbl := fittedPreprocessor(t)
	b := NewBatch()
	require.NoError(t, b.StageCSV(filepath.Join(dir, "a.csv"), tbl))
	require.NoError(t, b.StageCSV(filepath.Join(dir, "b.csv"), tbl))

	for _, name := range listDir(t, dir) {
		assert.True(t, strings.Contains(name, ".staged-"), "nothing visible before commit: %s", name)
	}

	require.NoError(t, b.Commit())
	assert.ElementsMatch(t, []string{"a.csv", "b.csv"}, listDir(t, dir))

	back, err := dataset.LoadCSV(filepath.Join(dir, "a.csv"), "lunch")
	require.NoError(t, err)
	assert.Equal(t, tbl.NRows(), back.NRows())

	assert.Error(t, b.Commit(), "a batch commits once")
}

func TestBatchCommitFailureRemovesEverything(t *testing.T) {
	dir := t.TempDir()
	_, tbl := fittedPreprocessor(t)

	blocked := filepath.Join(dir, "blocked.csv")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "child"), 0o755))

	b := NewBatch()
	require.NoError(t, b.StageCSV(filepath.Join(dir, "first.csv"), tbl))
	require.NoError(t, b.StageCSV(blocked, tbl))
	require.NoError(t, b.StageCSV(filepath.Join(dir, "last.csv"), tbl))

	err := b.Commit()
	assert.True(t, errors.IsKind(err, errors.KindPersistence))
	assert.Equal(t, []string{"blocked.csv"}, listDir(t, dir), "first.csv rolled back, staged files removed")
}

func TestBatchStageFailureAborts(t *testing.T) {
	dir := t.TempDir()
	_, tbl := fittedPreprocessor(t)

	b := NewBatch()
	require.NoError(t, b.StageCSV(filepath.Join(dir, "ok.csv"), tbl))
	err := b.StageArtifact(filepath.Join(dir, "bad.gob"), Regressor("Ridge", NewRunID(), nil))
	assert.True(t, errors.IsKind(err, errors.KindPersistence))
	assert.Empty(t, listDir(t, dir))
	assert.Error(t, b.Commit())
}
