// Package tuning grid-searches the Ridge family on the transformed training
// data and saves the refitted winner.
package tuning

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/dataset"
	"github.com/YuminosukeSato/mlpipe/internal/artifact"
	"github.com/YuminosukeSato/mlpipe/linear"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/pkg/log"
	"github.com/YuminosukeSato/mlpipe/sklearn/model_selection"
)

// ModelName is the artifact name of the tuned model.
const ModelName = "Ridge (tuned)"

// Tuner searches alpha × solver for Ridge.
type Tuner struct {
	Alphas  []float64
	Solvers []string
	Folds   int
	// Workers bounds concurrent fold fits. <= 0 means one per CPU.
	Workers int

	logger log.Logger
}

func New(logger log.Logger, alphas []float64, solvers []string, folds, workers int) *Tuner {
	return &Tuner{
		Alphas:  alphas,
		Solvers: solvers,
		Folds:   folds,
		Workers: workers,
		logger:  logger.With(log.ComponentKey, "tuning"),
	}
}

// Grid returns the search space. Combinations run alpha-major in the order
// the values were configured.
func (t *Tuner) Grid() model_selection.ParamGrid {
	alphas := make([]interface{}, len(t.Alphas))
	for i, a := range t.Alphas {
		alphas[i] = a
	}
	solvers := make([]interface{}, len(t.Solvers))
	for i, s := range t.Solvers {
		solvers[i] = s
	}
	return model_selection.ParamGrid{"alpha": alphas, "solver": solvers}
}

// Result is the outcome of a search.
type Result struct {
	BestParams map[string]interface{}
	BestScore  float64
	Model      *linear.Ridge
	CVResults  []model_selection.CVResult
	Path       string
}

// LoadTrain reads a transformed training CSV whose last column is the target.
func LoadTrain(path string) (X, y *mat.Dense, features []string, err error) {
	const op = "tuning.LoadTrain"
	t, err := dataset.LoadCSV(path)
	if err != nil {
		return nil, nil, nil, err
	}
	names := t.Names()
	if len(names) < 2 {
		return nil, nil, nil, errors.NewPipelineError(errors.KindSchemaMismatch, op,
			"%s needs at least one feature and the target", path)
	}
	features = names[:len(names)-1]
	if X, err = t.Matrix(features...); err != nil {
		return nil, nil, nil, errors.Classify(err, errors.KindSchemaMismatch, op)
	}
	if y, err = t.Matrix(names[len(names)-1]); err != nil {
		return nil, nil, nil, errors.Classify(err, errors.KindSchemaMismatch, op)
	}
	return X, y, features, nil
}

// Tune runs the cross-validated search and refits the best combination on
// all of X. Ties keep the earliest combination.
func (t *Tuner) Tune(ctx context.Context, X, y mat.Matrix) (*Result, error) {
	const op = "tuning.Tune"
	gs := model_selection.NewGridSearchCV(
		func() model.Tunable { return linear.NewRidge() },
		t.Grid(),
		model_selection.NewKFold(t.Folds, false, 0),
	)
	gs.NJobs = t.Workers
	gs.Logger = t.logger

	start := time.Now()
	if err := gs.Fit(ctx, X, y); err != nil {
		return nil, errors.Logged(t.logger, errors.Classify(err, errors.KindFitFailure, op))
	}
	ridge, ok := gs.BestEstimator.(*linear.Ridge)
	if !ok {
		return nil, errors.Logged(t.logger, errors.NewPipelineError(errors.KindFitFailure, op,
			"unexpected estimator %T", gs.BestEstimator))
	}

	t.logger.Info("Grid search finished",
		log.HyperParamsKey, fmt.Sprint(gs.BestParams),
		log.R2ScoreKey, gs.BestScore,
		"cv.combinations", len(gs.Results),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return &Result{
		BestParams: gs.BestParams,
		BestScore:  gs.BestScore,
		Model:      ridge,
		CVResults:  gs.Results,
	}, nil
}

// Run loads trainPath, tunes and saves the refitted model to outPath.
func (t *Tuner) Run(ctx context.Context, trainPath, outPath, runID string) (*Result, error) {
	X, y, _, err := LoadTrain(trainPath)
	if err != nil {
		return nil, errors.Logged(t.logger, err)
	}
	res, err := t.Tune(ctx, X, y)
	if err != nil {
		return nil, err
	}
	if err := artifact.SaveRegressor(outPath, ModelName, runID, res.Model); err != nil {
		return nil, errors.Logged(t.logger, err)
	}
	res.Path = outPath
	t.logger.Info("Tuned model saved", log.PathKey, outPath)
	return res, nil
}
