// Package ensemble provides bagged and boosted tree regressors built on the
// tree package's builder.
package ensemble

import (
	"encoding/gob"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/core/parallel"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/sklearn/tree"
)

func init() {
	gob.Register(&RandomForestRegressor{})
}

// RandomForestRegressor averages fully grown trees fitted on bootstrap
// samples. Each tree gets its own seed drawn from RandomState, so the forest
// is identical for any NJobs.
type RandomForestRegressor struct {
	model.BaseEstimator

	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Bootstrap       bool
	RandomState     int64
	NJobs           int

	Trees              []tree.Nodes
	FeatureImportances []float64
}

// NewRandomForestRegressor creates a forest of n trees.
func NewRandomForestRegressor(n int, seed int64) *RandomForestRegressor {
	return &RandomForestRegressor{
		NEstimators:     n,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     seed,
	}
}

// Fit grows the trees in parallel.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	const op = "RandomForestRegressor.Fit"
	if rf.NEstimators <= 0 {
		return errors.NewValidationError("n_estimators", "must be positive", rf.NEstimators)
	}
	cols, target, err := tree.CheckFitInput(op, X, y)
	if err != nil {
		return err
	}
	n, p := len(target), len(cols)
	grad, hess := tree.SquaredErrorStats(target)

	master := rand.New(rand.NewSource(rf.RandomState))
	seeds := make([]int64, rf.NEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]tree.Nodes, rf.NEstimators)
	parallel.ForEach(rf.NEstimators, rf.NJobs, func(i int) {
		rng := rand.New(rand.NewSource(seeds[i]))
		rows := make([]int, n)
		for k := range rows {
			if rf.Bootstrap {
				rows[k] = rng.Intn(n)
			} else {
				rows[k] = k
			}
		}
		b := &tree.Builder{
			MaxDepth:        rf.MaxDepth,
			MinSamplesSplit: rf.MinSamplesSplit,
			MinSamplesLeaf:  rf.MinSamplesLeaf,
			MaxFeatures:     rf.MaxFeatures,
			Rand:            rng,
		}
		trees[i] = b.Build(cols, grad, hess, rows)
	})

	importances := make([]float64, p)
	per := make([]float64, p)
	for _, t := range trees {
		for j := range per {
			per[j] = 0
		}
		t.AddImportances(per)
		tree.Normalize(per)
		for j, v := range per {
			importances[j] += v
		}
	}

	rf.Trees = trees
	rf.FeatureImportances = tree.Normalize(importances)
	rf.SetFitted(p)
	return nil
}

// Predict averages the predictions of all trees.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	_, c := X.Dims()
	if err := rf.CheckPredictInput("RandomForestRegressor", c); err != nil {
		return nil, err
	}
	return predictRows(X, rf.NJobs, func(at func(int) float64) float64 {
		sum := 0.0
		for _, t := range rf.Trees {
			sum += t.PredictRow(at)
		}
		return sum / float64(len(rf.Trees))
	}), nil
}

// GetFeatureImportances returns the mean normalised gain per feature.
func (rf *RandomForestRegressor) GetFeatureImportances() []float64 {
	return append([]float64(nil), rf.FeatureImportances...)
}

// GetParams returns the hyperparameters.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.NEstimators,
		"max_depth":         rf.MaxDepth,
		"min_samples_split": rf.MinSamplesSplit,
		"min_samples_leaf":  rf.MinSamplesLeaf,
		"max_features":      rf.MaxFeatures,
		"bootstrap":         rf.Bootstrap,
		"random_state":      rf.RandomState,
	}
}

func (rf *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, random_state=%d)", rf.NEstimators, rf.RandomState)
}

// predictRows evaluates f on every row of X, in parallel for large inputs.
func predictRows(X mat.Matrix, workers int, f func(at func(int) float64) float64) *mat.Dense {
	r, c := X.Dims()
	out := make([]float64, r)
	parallel.ParallelizeWithThreshold(r, 256, workers, func(start, end int) {
		row := make([]float64, c)
		at := func(j int) float64 { return row[j] }
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			out[i] = f(at)
		}
	})
	return mat.NewDense(r, 1, out)
}

func mean(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}
