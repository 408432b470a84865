package evaluate

import (
	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/linear"
	"github.com/YuminosukeSato/mlpipe/sklearn/ensemble"
	"github.com/YuminosukeSato/mlpipe/sklearn/neighbors"
	"github.com/YuminosukeSato/mlpipe/sklearn/tree"
)

// Candidate is one entry of the model roster. New returns a fresh, unfitted
// model with the candidate's default hyperparameters.
type Candidate struct {
	Name string
	New  func() model.Regressor
}

// Roster names.
const (
	LinearRegression  = "Linear Regression"
	Lasso             = "Lasso"
	Ridge             = "Ridge"
	KNeighbors        = "K-Neighbors Regressor"
	DecisionTree      = "Decision Tree"
	RandomForest      = "Random Forest Regressor"
	GradientBoosting  = "Gradient Boosting Regressor"
	ObliviousBoosting = "Oblivious Boosting Regressor"
	AdaBoost          = "AdaBoost Regressor"
)

// Roster returns the fixed candidate list in evaluation order. seed is used
// by every randomised candidate.
func Roster(seed int64) []Candidate {
	return []Candidate{
		{LinearRegression, func() model.Regressor { return linear.NewLinearRegression() }},
		{Lasso, func() model.Regressor { return linear.NewLasso(linear.WithAlpha(1)) }},
		{Ridge, func() model.Regressor { return linear.NewRidge(linear.WithAlpha(1)) }},
		{KNeighbors, func() model.Regressor { return neighbors.NewKNeighborsRegressor(5) }},
		{DecisionTree, func() model.Regressor { return tree.NewDecisionTreeRegressor(tree.WithRandomState(seed)) }},
		{RandomForest, func() model.Regressor { return ensemble.NewRandomForestRegressor(100, seed) }},
		{GradientBoosting, func() model.Regressor { return ensemble.NewGradientBoostingRegressor() }},
		{ObliviousBoosting, func() model.Regressor { return ensemble.NewObliviousBoostingRegressor() }},
		{AdaBoost, func() model.Regressor { return ensemble.NewAdaBoostRegressor(seed) }},
	}
}
