package ensemble

import (
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/sklearn/tree"
)

func init() {
	gob.Register(&GradientBoostingRegressor{})
}

// GradientBoostingRegressor is second-order gradient boosting on squared
// error with L2-regularised leaf weights, in the manner of XGBoost's exact
// greedy tree method. Training starts from the mean target.
type GradientBoostingRegressor struct {
	model.BaseEstimator

	NEstimators    int
	LearningRate   float64
	MaxDepth       int
	Lambda         float64
	Gamma          float64
	MinChildWeight float64
	NJobs          int

	BaseScore          float64
	Trees              []tree.Nodes
	FeatureImportances []float64
}

// NewGradientBoostingRegressor returns the XGBoost defaults:
// 100 rounds, eta 0.3, depth 6, lambda 1.
func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		NEstimators:    100,
		LearningRate:   0.3,
		MaxDepth:       6,
		Lambda:         1,
		MinChildWeight: 1,
	}
}

// Fit adds NEstimators trees, each fitted to the current gradients.
func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) error {
	const op = "GradientBoostingRegressor.Fit"
	if gb.NEstimators <= 0 {
		return errors.NewValidationError("n_estimators", "must be positive", gb.NEstimators)
	}
	if gb.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", gb.LearningRate)
	}
	cols, target, err := tree.CheckFitInput(op, X, y)
	if err != nil {
		return err
	}
	n, p := len(target), len(cols)

	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	b := &tree.Builder{
		MaxDepth:       gb.MaxDepth,
		MinChildWeight: gb.MinChildWeight,
		Lambda:         gb.Lambda,
		Gamma:          gb.Gamma,
	}

	gb.BaseScore = mean(target)
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = gb.BaseScore
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	for i := range hess {
		hess[i] = 1
	}

	gb.Trees = make([]tree.Nodes, 0, gb.NEstimators)
	importances := make([]float64, p)
	for m := 0; m < gb.NEstimators; m++ {
		for i := range grad {
			grad[i] = pred[i] - target[i]
		}
		nodes := b.Build(cols, grad, hess, rows)
		nodes.Scale(gb.LearningRate)
		nodes.AddImportances(importances)
		for i := range pred {
			pred[i] += nodes.PredictRow(func(j int) float64 { return cols[j][i] })
		}
		gb.Trees = append(gb.Trees, nodes)
	}
	if err := errors.CheckVector(op, pred, gb.NEstimators); err != nil {
		return err
	}

	gb.FeatureImportances = tree.Normalize(importances)
	gb.SetFitted(p)
	return nil
}

// Predict sums the base score and every tree's output.
func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	_, c := X.Dims()
	if err := gb.CheckPredictInput("GradientBoostingRegressor", c); err != nil {
		return nil, err
	}
	return predictRows(X, gb.NJobs, func(at func(int) float64) float64 {
		s := gb.BaseScore
		for _, t := range gb.Trees {
			s += t.PredictRow(at)
		}
		return s
	}), nil
}

// GetFeatureImportances returns the normalised total gain per feature.
func (gb *GradientBoostingRegressor) GetFeatureImportances() []float64 {
	return append([]float64(nil), gb.FeatureImportances...)
}

// GetParams returns the hyperparameters.
func (gb *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     gb.NEstimators,
		"learning_rate":    gb.LearningRate,
		"max_depth":        gb.MaxDepth,
		"reg_lambda":       gb.Lambda,
		"gamma":            gb.Gamma,
		"min_child_weight": gb.MinChildWeight,
	}
}

func (gb *GradientBoostingRegressor) String() string {
	return fmt.Sprintf("GradientBoostingRegressor(n_estimators=%d, learning_rate=%g, max_depth=%d)",
		gb.NEstimators, gb.LearningRate, gb.MaxDepth)
}
