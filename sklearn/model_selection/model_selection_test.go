package model_selection

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/linear"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/pkg/log"
)

func TestTrainTestSplitIndices(t *testing.T) {
	train, test, err := TrainTestSplitIndices(100, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	for i, v := range all {
		require.Equal(t, i, v, "train and test partition the rows")
	}

	train2, test2, err := TrainTestSplitIndices(100, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, test3, err := TrainTestSplitIndices(100, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, test, test3)
}

func TestTrainTestSplitRoundsTestSizeUp(t *testing.T) {
	train, test, err := TrainTestSplitIndices(11, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 3) // ceil(2.2)
	assert.Len(t, train, 8)
}

func TestTrainTestSplitErrors(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		testSize float64
	}{
		{"zero test size", 10, 0},
		{"whole test size", 10, 1},
		{"single row", 1, 0.2},
		{"empty", 0, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := TrainTestSplitIndices(tt.n, tt.testSize, 42)
			assert.Error(t, err)
		})
	}
}

func TestTrainTestSplitMatrices(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{0, 1, 2, 3, 4})
	y := mat.NewDense(5, 1, []float64{0, 10, 20, 30, 40})
	XTrain, XTest, yTrain, yTest, err := TrainTestSplit(X, y, 0.2, 42)
	require.NoError(t, err)

	r, _ := XTest.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 10*XTest.At(0, 0), yTest.At(0, 0), "rows stay aligned")
	for i := 0; i < 4; i++ {
		assert.Equal(t, 10*XTrain.At(i, 0), yTrain.At(i, 0))
	}
}

func TestKFoldUnshuffled(t *testing.T) {
	folds, err := NewKFold(5, false, 0).Split(11)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	assert.Equal(t, []int{0, 1, 2}, folds[0].TestIndices)
	assert.Equal(t, []int{3, 4}, folds[1].TestIndices)
	assert.Equal(t, []int{9, 10}, folds[4].TestIndices)
	assert.Equal(t, []int{0, 1, 2, 5, 6, 7, 8, 9, 10}, folds[1].TrainIndices)

	seen := make([]int, 11)
	for _, f := range folds {
		assert.Len(t, f.TrainIndices, 11-len(f.TestIndices))
		for _, i := range f.TestIndices {
			seen[i]++
		}
	}
	for i, c := range seen {
		assert.Equal(t, 1, c, "row %d is tested exactly once", i)
	}

	_, err = NewKFold(5, false, 0).Split(4)
	assert.True(t, errors.IsKind(err, errors.KindDataQuality))
	_, err = NewKFold(1, false, 0).Split(4)
	assert.Error(t, err)
}

func TestParamGridCombinationsOrder(t *testing.T) {
	grid := ParamGrid{
		"solver": {"svd", "lsqr"},
		"alpha":  {0.1, 1.0},
	}
	assert.Equal(t, []map[string]interface{}{
		{"alpha": 0.1, "solver": "svd"},
		{"alpha": 0.1, "solver": "lsqr"},
		{"alpha": 1.0, "solver": "svd"},
		{"alpha": 1.0, "solver": "lsqr"},
	}, grid.Combinations())
}

// stubRegressor predicts its "score" parameter, which the test scorer reports.
type stubRegressor struct {
	model.BaseEstimator
	score float64
	fail  bool
	fits  *int64
}

func (s *stubRegressor) Fit(X, y mat.Matrix) error {
	atomic.AddInt64(s.fits, 1)
	if s.fail {
		return errors.New("stub failure")
	}
	_, c := X.Dims()
	s.SetFitted(c)
	return nil
}

func (s *stubRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, s.score)
	}
	return out, nil
}

func (s *stubRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{"score": s.score, "fail": s.fail}
}

func (s *stubRegressor) SetParams(params map[string]interface{}) error {
	if v, ok := params["score"]; ok {
		s.score = v.(float64)
	}
	if v, ok := params["fail"]; ok {
		s.fail = v.(bool)
	}
	return nil
}

func stubSearch(grid ParamGrid, fits *int64) *GridSearchCV {
	gs := NewGridSearchCV(func() model.Tunable { return &stubRegressor{fits: fits} }, grid, NewKFold(5, false, 0))
	gs.Scoring = func(_, yPred mat.Matrix) (float64, error) { return yPred.At(0, 0), nil }
	gs.NJobs = 4
	return gs
}

func TestGridSearchTieKeepsEarliestCombination(t *testing.T) {
	var fits int64
	gs := stubSearch(ParamGrid{"score": {1.0, 3.0, 3.0, 2.0}}, &fits)
	X := mat.NewDense(10, 1, nil)
	y := mat.NewDense(10, 1, nil)

	require.NoError(t, gs.Fit(context.Background(), X, y))
	assert.Equal(t, 1, gs.BestIndex)
	assert.Equal(t, 3.0, gs.BestScore)
	assert.Equal(t, int64(4*5+1), fits, "every combination and fold fitted once, plus the refit")
	assert.Equal(t, 1, gs.Results[1].Rank)
	assert.Equal(t, 4, gs.Results[0].Rank)
	require.NotNil(t, gs.BestEstimator)
	assert.True(t, gs.BestEstimator.IsFitted())
}

func TestGridSearchSkipsFailedCombinations(t *testing.T) {
	var fits int64
	gs := stubSearch(ParamGrid{"score": {5.0}, "fail": {true, false}}, &fits)
	X := mat.NewDense(10, 1, nil)
	y := mat.NewDense(10, 1, nil)

	require.NoError(t, gs.Fit(context.Background(), X, y))
	assert.Equal(t, false, gs.BestParams["fail"])
	assert.True(t, gs.Results[0].Failed())
	assert.True(t, math.IsNaN(gs.Results[0].GetMeanScore()))
	assert.Equal(t, 2, gs.Results[0].Rank)

	gs = stubSearch(ParamGrid{"fail": {true}}, &fits)
	err := gs.Fit(context.Background(), X, y)
	assert.True(t, errors.IsKind(err, errors.KindFitFailure))
}

func TestGridSearchRidge(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	n := 60
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a, b, c := rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		X.Set(i, 2, c)
		y.Set(i, 0, 3*a-2*b+c+0.1*rng.NormFloat64())
	}

	gs := NewGridSearchCV(
		func() model.Tunable { return linear.NewRidge() },
		ParamGrid{
			"alpha":  {0.01, 1e5},
			"solver": {linear.SolverAuto, linear.SolverSVD, linear.SolverCholesky, linear.SolverLSQR},
		},
		NewKFold(5, false, 0),
	)
	require.NoError(t, gs.Fit(context.Background(), X, y))

	assert.Equal(t, 0.01, gs.BestParams["alpha"])
	assert.Contains(t, linear.Solvers, gs.BestParams["solver"])
	assert.Greater(t, gs.BestScore, 0.99)
	assert.Len(t, gs.Results, 8)

	ridge, ok := gs.BestEstimator.(*linear.Ridge)
	require.True(t, ok)
	assert.Equal(t, 0.01, ridge.Alpha)
	assert.InDelta(t, 3, ridge.Weights()[0], 0.05)
}

func TestGridSearchSendsWarningsToLogger(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	n := 40
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a, b := rng.NormFloat64(), rng.NormFloat64()
		X.Set(i, 0, a)
		X.Set(i, 1, a+0.5*b)
		y.Set(i, 0, 2*a-b+0.1*rng.NormFloat64())
	}

	logger, _ := log.NewTestLogger(log.LevelDebug)
	gs := NewGridSearchCV(
		func() model.Tunable {
			return linear.NewRidge(linear.WithSolver(linear.SolverLSQR), linear.WithMaxIter(1), linear.WithTol(1e-12))
		},
		ParamGrid{"alpha": {0.1}},
		NewKFold(4, false, 0),
	)
	gs.Logger = logger
	require.NoError(t, gs.Fit(context.Background(), X, y))

	// 4 fold + refit
	warns := logger.EntriesAt("WARN")
	assert.Len(t, warns, 5)
	assert.True(t, logger.ContainsMessage("Ridge(lsqr) failed to converge"))
}

func TestGridSearchHonoursCancellation(t *testing.T) {
	var fits int64
	gs := stubSearch(ParamGrid{"score": {1.0}}, &fits)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := gs.Fit(ctx, mat.NewDense(10, 1, nil), mat.NewDense(10, 1, nil))
	assert.Error(t, err)
	assert.Equal(t, int64(0), fits)
}
