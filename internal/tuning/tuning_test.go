package tuning

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlpipe/dataset"
	"github.com/YuminosukeSato/mlpipe/internal/artifact"
	"github.com/YuminosukeSato/mlpipe/linear"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/pkg/log"
)

func writeTransformed(t *testing.T, n int) string {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	a, b, y := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		a[i], b[i] = rng.NormFloat64(), rng.NormFloat64()
		y[i] = 66 + 12*a[i] - 4*b[i] + 0.5*rng.NormFloat64()
	}
	path := filepath.Join(t.TempDir(), "transformed_train_data.csv")
	require.NoError(t, dataset.SaveCSV(path, dataset.MustTable(
		dataset.NumericColumn("reading_score", a),
		dataset.NumericColumn("lunch_standard", b),
		dataset.NumericColumn("math_score", y),
	)))
	return path
}

func TestGridOrder(t *testing.T) {
	tu := New(log.NewNopLogger(), []float64{0.1, 1}, []string{"auto", "svd"}, 5, 0)
	combos := tu.Grid().Combinations()
	require.Len(t, combos, 4)
	assert.Equal(t, 0.1, combos[0]["alpha"])
	assert.Equal(t, "svd", combos[1]["solver"])
	assert.Equal(t, 1.0, combos[2]["alpha"])
}

func TestLoadTrain(t *testing.T) {
	X, y, features, err := LoadTrain(writeTransformed(t, 30))
	require.NoError(t, err)
	r, c := X.Dims()
	assert.Equal(t, 30, r)
	assert.Equal(t, 2, c)
	yr, yc := y.Dims()
	assert.Equal(t, []int{30, 1}, []int{yr, yc})
	assert.Equal(t, []string{"reading_score", "lunch_standard"}, features)
}

func TestLoadTrainErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, _, err := LoadTrain(filepath.Join(dir, "absent.csv"))
	assert.True(t, errors.IsKind(err, errors.KindMissingInput))

	only := filepath.Join(dir, "only.csv")
	require.NoError(t, dataset.SaveCSV(only, dataset.MustTable(dataset.NumericColumn("y", []float64{1, 2}))))
	_, _, _, err = LoadTrain(only)
	assert.True(t, errors.IsKind(err, errors.KindSchemaMismatch))

	raw := filepath.Join(dir, "raw.csv")
	require.NoError(t, dataset.SaveCSV(raw, dataset.MustTable(
		dataset.CategoricalColumn("gender", []string{"female", "male"}, nil),
		dataset.NumericColumn("y", []float64{1, 2}),
	)))
	_, _, _, err = LoadTrain(raw)
	assert.True(t, errors.IsKind(err, errors.KindSchemaMismatch), "untransformed data is rejected")
}

func TestRunSavesTunedModel(t *testing.T) {
	train := writeTransformed(t, 120)
	out := filepath.Join(t.TempDir(), "tuned_model.gob")
	tu := New(log.NewNopLogger(), []float64{0.01, 0.1, 1, 10, 100}, linear.Solvers, 5, 4)

	res, err := tu.Run(context.Background(), train, out, artifact.NewRunID())
	require.NoError(t, err)

	assert.Equal(t, 0.01, res.BestParams["alpha"])
	assert.Contains(t, linear.Solvers, res.BestParams["solver"])
	assert.Greater(t, res.BestScore, 0.99)
	assert.Len(t, res.CVResults, 20)
	assert.Equal(t, out, res.Path)

	m, err := artifact.LoadRegressor(out)
	require.NoError(t, err)
	assert.Equal(t, ModelName, m.Name)
	ridge, ok := m.Regressor.(*linear.Ridge)
	require.True(t, ok)
	assert.Equal(t, 0.01, ridge.Alpha)
	assert.InDelta(t, 12, ridge.Weights()[0], 0.3)
	assert.InDelta(t, 66, ridge.Intercept(), 0.3)
}

func TestTuneSkipsBrokenSolver(t *testing.T) {
	X, y, _, err := LoadTrain(writeTransformed(t, 40))
	require.NoError(t, err)

	logger, _ := log.NewTestLogger(log.LevelDebug)
	tu := New(logger, []float64{1}, []string{"qr", "svd"}, 4, 1)
	res, err := tu.Tune(context.Background(), X, y)
	require.NoError(t, err)
	assert.Equal(t, "svd", res.BestParams["solver"])
	assert.True(t, math.IsNaN(res.CVResults[0].GetMeanScore()))
	assert.True(t, logger.ContainsMessage("Grid search fit failed"))

	_, err = New(log.NewNopLogger(), []float64{1}, []string{"qr"}, 4, 1).Tune(context.Background(), X, y)
	assert.True(t, errors.IsKind(err, errors.KindFitFailure))
}
