package ensemble

import (
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/sklearn/tree"
)

func init() {
	gob.Register(&AdaBoostRegressor{})
}

// AdaBoost.R2 loss functions.
const (
	LossLinear      = "linear"
	LossSquare      = "square"
	LossExponential = "exponential"
)

// AdaBoostRegressor implements AdaBoost.R2 with shallow regression trees.
// Each round fits a tree on a weighted bootstrap sample; prediction is the
// weighted median of the trees.
type AdaBoostRegressor struct {
	model.BaseEstimator

	NEstimators  int
	LearningRate float64
	Loss         string
	MaxDepth     int
	RandomState  int64

	Estimators       []tree.Nodes
	EstimatorWeights []float64
	EstimatorErrors  []float64
}

// NewAdaBoostRegressor returns 50 depth-3 trees with linear loss.
func NewAdaBoostRegressor(seed int64) *AdaBoostRegressor {
	return &AdaBoostRegressor{
		NEstimators:  50,
		LearningRate: 1,
		Loss:         LossLinear,
		MaxDepth:     3,
		RandomState:  seed,
	}
}

// Fit runs the boosting rounds. Boosting stops early on a perfect fit or when
// a round's weighted error reaches one half.
func (ab *AdaBoostRegressor) Fit(X, y mat.Matrix) error {
	const op = "AdaBoostRegressor.Fit"
	if ab.NEstimators <= 0 {
		return errors.NewValidationError("n_estimators", "must be positive", ab.NEstimators)
	}
	switch ab.Loss {
	case LossLinear, LossSquare, LossExponential:
	default:
		return errors.NewValidationError("loss", "unknown loss", ab.Loss)
	}
	cols, target, err := tree.CheckFitInput(op, X, y)
	if err != nil {
		return err
	}
	n, p := len(target), len(cols)
	grad, hess := tree.SquaredErrorStats(target)
	rng := rand.New(rand.NewSource(ab.RandomState))
	b := &tree.Builder{MaxDepth: ab.MaxDepth, MinSamplesSplit: 2, MinSamplesLeaf: 1}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1 / float64(n)
	}
	cdf := make([]float64, n)
	rows := make([]int, n)
	errs := make([]float64, n)

	ab.Estimators = ab.Estimators[:0]
	ab.EstimatorWeights = ab.EstimatorWeights[:0]
	ab.EstimatorErrors = ab.EstimatorErrors[:0]

	for m := 0; m < ab.NEstimators; m++ {
		acc := 0.0
		for i, w := range weights {
			acc += w
			cdf[i] = acc
		}
		for k := range rows {
			u := rng.Float64() * acc
			rows[k] = min(sort.SearchFloat64s(cdf, u), n-1)
		}
		nodes := b.Build(cols, grad, hess, rows)

		maxErr := 0.0
		for i := range errs {
			pred := nodes.PredictRow(func(j int) float64 { return cols[j][i] })
			errs[i] = math.Abs(pred - target[i])
			if weights[i] > 0 {
				maxErr = math.Max(maxErr, errs[i])
			}
		}
		if maxErr != 0 {
			for i := range errs {
				errs[i] /= maxErr
			}
		}
		switch ab.Loss {
		case LossSquare:
			for i := range errs {
				errs[i] *= errs[i]
			}
		case LossExponential:
			for i := range errs {
				errs[i] = 1 - math.Exp(-errs[i])
			}
		}

		estErr := 0.0
		for i, w := range weights {
			estErr += w * errs[i]
		}

		if estErr <= 0 {
			ab.push(nodes, 1, 0)
			break
		}
		if estErr >= 0.5 {
			if len(ab.Estimators) == 0 {
				ab.push(nodes, 1, estErr)
			}
			break
		}

		beta := estErr / (1 - estErr)
		ab.push(nodes, ab.LearningRate*math.Log(1/beta), estErr)
		if m == ab.NEstimators-1 {
			break
		}

		sum := 0.0
		for i := range weights {
			if weights[i] > 0 {
				weights[i] *= math.Pow(beta, (1-errs[i])*ab.LearningRate)
			}
			sum += weights[i]
		}
		if sum <= 0 {
			break
		}
		for i := range weights {
			weights[i] /= sum
		}
	}

	ab.SetFitted(p)
	return nil
}

func (ab *AdaBoostRegressor) push(nodes tree.Nodes, weight, err float64) {
	ab.Estimators = append(ab.Estimators, nodes)
	ab.EstimatorWeights = append(ab.EstimatorWeights, weight)
	ab.EstimatorErrors = append(ab.EstimatorErrors, err)
}

// Predict returns the weighted median of the estimators' predictions.
func (ab *AdaBoostRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	_, c := X.Dims()
	if err := ab.CheckPredictInput("AdaBoostRegressor", c); err != nil {
		return nil, err
	}
	total := 0.0
	for _, w := range ab.EstimatorWeights {
		total += w
	}
	return predictRows(X, 0, func(at func(int) float64) float64 {
		preds := make([]float64, len(ab.Estimators))
		order := make([]int, len(ab.Estimators))
		for k, est := range ab.Estimators {
			preds[k] = est.PredictRow(at)
			order[k] = k
		}
		sort.SliceStable(order, func(a, b int) bool { return preds[order[a]] < preds[order[b]] })
		cum := 0.0
		for _, k := range order {
			cum += ab.EstimatorWeights[k]
			if cum >= 0.5*total {
				return preds[k]
			}
		}
		return preds[order[len(order)-1]]
	}), nil
}

// GetParams returns the hyperparameters.
func (ab *AdaBoostRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":  ab.NEstimators,
		"learning_rate": ab.LearningRate,
		"loss":          ab.Loss,
		"max_depth":     ab.MaxDepth,
		"random_state":  ab.RandomState,
	}
}

func (ab *AdaBoostRegressor) String() string {
	return fmt.Sprintf("AdaBoostRegressor(n_estimators=%d, loss=%s)", ab.NEstimators, ab.Loss)
}
