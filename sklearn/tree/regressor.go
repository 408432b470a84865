// Package tree provides CART regression trees and the tree builder shared by
// the ensemble models.
package tree

import (
	"encoding/gob"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

func init() {
	gob.Register(&DecisionTreeRegressor{})
}

// Option configures a DecisionTreeRegressor
type Option func(*DecisionTreeRegressor)

// WithMaxDepth limits the depth of the tree (0 = unlimited)
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeRegressor) {
		dt.MaxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeRegressor) {
		dt.MinSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeRegressor) {
		dt.MinSamplesLeaf = n
	}
}

// WithMaxFeatures sets the number of features examined per split (0 = all)
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeRegressor) {
		dt.MaxFeatures = n
	}
}

// WithRandomState sets the seed used when MaxFeatures samples features
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeRegressor) {
		dt.RandomState = seed
	}
}

// DecisionTreeRegressor is a squared-error CART regression tree.
type DecisionTreeRegressor struct {
	model.BaseEstimator

	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	RandomState     int64

	Tree               Nodes
	FeatureImportances []float64
}

// NewDecisionTreeRegressor creates a tree that grows until its leaves are pure.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomState:     42,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// Builder returns the tree builder configured with the regressor's parameters.
func (dt *DecisionTreeRegressor) Builder() *Builder {
	return &Builder{
		MaxDepth:        dt.MaxDepth,
		MinSamplesSplit: dt.MinSamplesSplit,
		MinSamplesLeaf:  dt.MinSamplesLeaf,
		MaxFeatures:     dt.MaxFeatures,
		Rand:            rand.New(rand.NewSource(dt.RandomState)),
	}
}

// Fit grows the tree on X and y.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	cols, target, err := CheckFitInput("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if dt.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be non-negative", dt.MaxDepth)
	}

	n := len(target)
	grad, hess := SquaredErrorStats(target)
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}

	dt.Tree = dt.Builder().Build(cols, grad, hess, rows)
	dt.FeatureImportances = make([]float64, len(cols))
	dt.Tree.AddImportances(dt.FeatureImportances)
	Normalize(dt.FeatureImportances)
	dt.SetFitted(len(cols))
	return nil
}

// Predict returns the leaf mean reached by every row of X.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := dt.CheckPredictInput("DecisionTreeRegressor", c); err != nil {
		return nil, err
	}
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, dt.Tree.PredictRow(func(j int) float64 { return X.At(i, j) }))
	}
	return out, nil
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeRegressor) GetDepth() int {
	return dt.Tree.Depth()
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeRegressor) GetNLeaves() int {
	return dt.Tree.NLeaves()
}

// GetFeatureImportances returns the normalised total gain per feature.
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.FeatureImportances...)
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         dt.MaxDepth,
		"min_samples_split": dt.MinSamplesSplit,
		"min_samples_leaf":  dt.MinSamplesLeaf,
		"max_features":      dt.MaxFeatures,
		"random_state":      dt.RandomState,
	}
}

// SetParams updates the hyperparameters.
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		v, ok := value.(int)
		if !ok {
			return errors.NewValidationError(key, "must be an int", value)
		}
		switch key {
		case "max_depth":
			dt.MaxDepth = v
		case "min_samples_split":
			dt.MinSamplesSplit = v
		case "min_samples_leaf":
			dt.MinSamplesLeaf = v
		case "max_features":
			dt.MaxFeatures = v
		case "random_state":
			dt.RandomState = int64(v)
		default:
			return errors.NewValidationError(key, "unknown DecisionTreeRegressor parameter", value)
		}
	}
	return nil
}

func (dt *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d)", dt.MaxDepth)
}

// CheckFitInput validates X and y and returns X by column and y as a slice.
func CheckFitInput(op string, X, y mat.Matrix) ([][]float64, []float64, error) {
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	ry, cy := y.Dims()
	if ry != n {
		return nil, nil, errors.NewDimensionError(op, n, ry, 0)
	}
	if cy != 1 {
		return nil, nil, errors.NewValueError(op, "y must be a column vector")
	}
	if err := errors.CheckMatrix(op, X, n, p, 0); err != nil {
		return nil, nil, err
	}
	return Columns(X), mat.Col(nil, 0, y), nil
}

// SquaredErrorStats returns the gradient and hessian that make Builder fit
// leaf means of y.
func SquaredErrorStats(y []float64) (grad, hess []float64) {
	grad = make([]float64, len(y))
	hess = make([]float64, len(y))
	for i, v := range y {
		grad[i] = -v
		hess[i] = 1
	}
	return grad, hess
}
