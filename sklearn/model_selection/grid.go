package model_selection

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/core/parallel"
	"github.com/YuminosukeSato/mlpipe/metrics"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/pkg/log"
)

// ParamGrid maps a parameter name to the values to try.
type ParamGrid map[string][]interface{}

// Keys returns the parameter names in sorted order.
func (g ParamGrid) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Combinations expands the grid into every parameter combination. Keys are
// sorted and the last key varies fastest.
func (g ParamGrid) Combinations() []map[string]interface{} {
	keys := g.Keys()
	combos := []map[string]interface{}{{}}
	for _, k := range keys {
		next := make([]map[string]interface{}, 0, len(combos)*len(g[k]))
		for _, c := range combos {
			for _, v := range g[k] {
				m := make(map[string]interface{}, len(c)+1)
				for ck, cv := range c {
					m[ck] = cv
				}
				m[k] = v
				next = append(next, m)
			}
		}
		combos = next
	}
	return combos
}

// Scorer returns a score where higher is better.
type Scorer func(yTrue, yPred mat.Matrix) (float64, error)

// GridSearchCV evaluates every parameter combination with k-fold
// cross-validation and refits the best one on the full data.
type GridSearchCV struct {
	// NewEstimator returns a fresh unfitted estimator.
	NewEstimator func() model.Tunable
	Grid         ParamGrid
	CV           *KFold
	Scoring      Scorer
	NJobs        int
	Refit        bool
	Logger       log.Logger

	Results       []CVResult
	BestIndex     int
	BestParams    map[string]interface{}
	BestScore     float64
	BestEstimator model.Tunable
}

// NewGridSearchCV creates a search that refits the winner. A nil Scoring
// scores by R² and reports undefined-metric warnings to Logger.
func NewGridSearchCV(newEstimator func() model.Tunable, grid ParamGrid, cv *KFold) *GridSearchCV {
	return &GridSearchCV{
		NewEstimator: newEstimator,
		Grid:         grid,
		CV:           cv,
		Refit:        true,
		Logger:       log.NewNopLogger(),
	}
}

// Fit runs every (combination, fold) fit exactly once. Fits may run
// concurrently; results are stored by index so the outcome does not depend
// on scheduling. A failed fit scores NaN and excludes its combination. The
// best combination has the highest mean score, the earliest one on ties.
func (gs *GridSearchCV) Fit(ctx context.Context, X, y mat.Matrix) error {
	const op = "GridSearchCV.Fit"
	if gs.NewEstimator == nil || gs.CV == nil {
		return errors.NewValueError(op, "estimator factory and CV splitter are required")
	}
	if gs.Logger == nil {
		gs.Logger = log.NewNopLogger()
	}
	warn := log.Warnings(gs.Logger)
	if gs.Scoring == nil {
		gs.Scoring = metrics.R2Scorer(warn)
	}
	n, _ := X.Dims()
	folds, err := gs.CV.Split(n)
	if err != nil {
		return err
	}
	if len(gs.Grid) == 0 {
		return errors.NewValidationError("param_grid", "grid is empty", nil)
	}
	combos := gs.Grid.Combinations()

	nFolds := len(folds)
	gs.Results = make([]CVResult, len(combos))
	for c := range gs.Results {
		gs.Results[c] = CVResult{
			Params:     combos[c],
			TestScores: make([]float64, nFolds),
			Errors:     make([]error, nFolds),
		}
	}

	parallel.ForEach(len(combos)*nFolds, gs.NJobs, func(task int) {
		c, f := task/nFolds, task%nFolds
		res := &gs.Results[c]
		if err := ctx.Err(); err != nil {
			res.TestScores[f], res.Errors[f] = math.NaN(), err
			return
		}
		score, err := gs.fitFold(combos[c], X, y, folds[f], warn)
		if err != nil {
			score = math.NaN()
			gs.Logger.Warn("Grid search fit failed",
				"error", err.Error(),
				log.HyperParamsKey, fmt.Sprint(combos[c]),
				log.FoldKey, f,
			)
		}
		res.TestScores[f], res.Errors[f] = score, err
	})
	if err := ctx.Err(); err != nil {
		return errors.WrapKind(err, errors.KindFitFailure, op, "grid search cancelled")
	}

	gs.BestIndex = -1
	for c := range gs.Results {
		mean := gs.Results[c].GetMeanScore()
		gs.Logger.Debug("Grid search candidate scored",
			log.HyperParamsKey, fmt.Sprint(combos[c]),
			log.R2ScoreKey, mean,
		)
		if math.IsNaN(mean) {
			continue
		}
		if gs.BestIndex < 0 || mean > gs.BestScore {
			gs.BestIndex, gs.BestScore = c, mean
		}
	}
	gs.rank()
	if gs.BestIndex < 0 {
		return errors.NewPipelineError(errors.KindFitFailure, op, "every parameter combination failed")
	}
	gs.BestParams = combos[gs.BestIndex]

	if !gs.Refit {
		return nil
	}
	best := gs.NewEstimator()
	if we, ok := best.(model.WarningEmitter); ok {
		we.SetWarnFunc(warn)
	}
	if err := best.SetParams(gs.BestParams); err != nil {
		return errors.Classify(err, errors.KindFitFailure, op)
	}
	if err := best.Fit(X, y); err != nil {
		return errors.WrapKind(err, errors.KindFitFailure, op, "refit with %v", gs.BestParams)
	}
	gs.BestEstimator = best
	return nil
}

func (gs *GridSearchCV) fitFold(params map[string]interface{}, X, y mat.Matrix, fold CVFold, warn errors.WarnFunc) (score float64, err error) {
	err = errors.SafeExecute("GridSearchCV.fitFold", func() error {
		est := gs.NewEstimator()
		if we, ok := est.(model.WarningEmitter); ok {
			we.SetWarnFunc(warn)
		}
		if err := est.SetParams(params); err != nil {
			return err
		}
		XTrain, yTrain := Subset(X, y, fold.TrainIndices)
		XTest, yTest := Subset(X, y, fold.TestIndices)
		if err := est.Fit(XTrain, yTrain); err != nil {
			return err
		}
		pred, err := est.Predict(XTest)
		if err != nil {
			return err
		}
		score, err = gs.Scoring(yTest, pred)
		return err
	})
	return score, err
}

// rank assigns rank 1 to the best mean score. Failed combinations rank last.
func (gs *GridSearchCV) rank() {
	order := make([]int, len(gs.Results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ma, mb := gs.Results[order[a]].GetMeanScore(), gs.Results[order[b]].GetMeanScore()
		if math.IsNaN(mb) {
			return !math.IsNaN(ma)
		}
		return ma > mb
	})
	for r, i := range order {
		gs.Results[i].Rank = r + 1
	}
}
