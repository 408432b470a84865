// Package evaluate trains every roster candidate on the transformed training
// set, scores it on the test set and keeps the best one by R².
package evaluate

import (
	"context"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/core/parallel"
	"github.com/YuminosukeSato/mlpipe/internal/artifact"
	"github.com/YuminosukeSato/mlpipe/metrics"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/pkg/log"
)

// Score is the outcome of one candidate. Err is set when the candidate failed
// and its metrics are then meaningless.
type Score struct {
	Name     string
	Test     metrics.Regression
	Train    metrics.Regression
	Duration time.Duration
	Err      error

	model model.Regressor
}

// OK reports whether the candidate produced usable metrics.
func (s Score) OK() bool {
	return s.Err == nil
}

// Report holds one Score per candidate in roster order plus the winner.
type Report struct {
	Scores []Score
	Best   string
	BestR2 float64
	Model  model.Regressor
	// Path is where the best model was saved, if it was.
	Path string
}

// Get returns the score of the named candidate.
func (r *Report) Get(name string) (Score, bool) {
	for _, s := range r.Scores {
		if s.Name == name {
			return s, true
		}
	}
	return Score{}, false
}

// Leaderboard returns the successful candidates sorted by test R², highest
// first. Equal scores keep roster order.
func (r *Report) Leaderboard() []Score {
	out := make([]Score, 0, len(r.Scores))
	for _, s := range r.Scores {
		if s.OK() {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Test.R2 > out[j].Test.R2 })
	return out
}

// Engine runs the roster.
type Engine struct {
	Candidates []Candidate
	// Workers bounds how many candidates train at once. <= 0 means one per CPU.
	Workers int
	logger  log.Logger
}

func NewEngine(logger log.Logger, candidates []Candidate) *Engine {
	return &Engine{Candidates: candidates, logger: logger.With(log.ComponentKey, "evaluate")}
}

// Evaluate fits every candidate on the training data and scores it on the
// test data. Candidates may train concurrently, but the winner is chosen
// afterwards in roster order: a later candidate replaces the current best
// only with a strictly greater test R². Failing candidates are logged and
// skipped. If none succeeds the error is KindFitFailure wrapping
// errors.ErrNoViableModel.
func (e *Engine) Evaluate(ctx context.Context, XTrain, yTrain, XTest, yTest mat.Matrix) (*Report, error) {
	const op = "evaluate.Evaluate"
	if len(e.Candidates) == 0 {
		return nil, errors.Logged(e.logger, errors.NewPipelineError(errors.KindFitFailure, op, "no candidates"))
	}

	scores := make([]Score, len(e.Candidates))
	parallel.ForEach(len(e.Candidates), e.Workers, func(i int) {
		scores[i] = e.run(ctx, e.Candidates[i], XTrain, yTrain, XTest, yTest)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Scores: scores, BestR2: math.Inf(-1)}
	for _, s := range scores {
		if !s.OK() {
			continue
		}
		if report.Model == nil || s.Test.R2 > report.BestR2 {
			report.Best, report.BestR2, report.Model = s.Name, s.Test.R2, s.model
		}
	}
	if report.Model == nil {
		err := errors.WrapKind(errors.ErrNoViableModel, errors.KindFitFailure, op,
			"all %d candidates failed", len(scores))
		return nil, errors.Logged(e.logger, err)
	}

	e.logger.Info("Best model selected", log.ModelNameKey, report.Best, log.R2ScoreKey, report.BestR2)
	return report, nil
}

func (e *Engine) run(ctx context.Context, c Candidate, XTrain, yTrain, XTest, yTest mat.Matrix) Score {
	s := Score{Name: c.Name}
	logger := e.logger.With(log.ModelNameKey, c.Name)
	if err := ctx.Err(); err != nil {
		s.Err = err
		return s
	}

	warn := log.Warnings(logger)
	start := time.Now()
	s.Err = errors.SafeExecute(c.Name, func() error {
		m := c.New()
		if we, ok := m.(model.WarningEmitter); ok {
			we.SetWarnFunc(warn)
		}
		if err := m.Fit(XTrain, yTrain); err != nil {
			return err
		}
		test, err := score(m, XTest, yTest, warn)
		if err != nil {
			return err
		}
		if math.IsNaN(test.R2) {
			return errors.NewValueError(c.Name, "test R² is NaN")
		}
		train, err := score(m, XTrain, yTrain, warn)
		if err != nil {
			return err
		}
		s.Test, s.Train, s.model = test, train, m
		return nil
	})
	s.Duration = time.Since(start)

	if s.Err != nil {
		logger.Error("Candidate failed", s.Err, log.ErrorKindKey, errors.KindFitFailure.String())
		return s
	}
	logger.Info("Candidate evaluated",
		log.MAEKey, s.Test.MAE,
		log.RMSEKey, s.Test.RMSE,
		log.R2ScoreKey, s.Test.R2,
		"train."+log.R2ScoreKey, s.Train.R2,
		log.DurationMsKey, s.Duration.Milliseconds(),
	)
	return s
}

func score(m model.Regressor, X, y mat.Matrix, warn errors.WarnFunc) (metrics.Regression, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return metrics.Regression{}, err
	}
	return metrics.Evaluate(y, pred, warn)
}

// Save writes the best model of r to path and records the path in r.
func (e *Engine) Save(r *Report, path, runID string) error {
	if err := artifact.SaveRegressor(path, r.Best, runID, r.Model); err != nil {
		return errors.Logged(e.logger, err)
	}
	r.Path = path
	e.logger.Info("Best model saved", log.ModelNameKey, r.Best, log.PathKey, path)
	return nil
}
