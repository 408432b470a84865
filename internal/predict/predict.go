// Package predict serves predictions from a saved preprocessor and model.
// The preprocessor is only ever used to transform; it is never refitted.
package predict

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/dataset"
	"github.com/YuminosukeSato/mlpipe/internal/artifact"
	"github.com/YuminosukeSato/mlpipe/pipeline"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/pkg/log"
)

var (
	// ErrPreprocessorArtifact marks failures to read the preprocessor.
	ErrPreprocessorArtifact = errors.New("preprocessor artifact unavailable")
	// ErrModelArtifact marks failures to read the model.
	ErrModelArtifact = errors.New("model artifact unavailable")
)

// Predictor pairs a fitted preprocessor with a fitted model.
type Predictor struct {
	Preprocessor *pipeline.ColumnTransformer
	Model        *artifact.Model
	// Target is dropped from input tables that still carry it.
	Target string

	logger log.Logger
}

// Load reads both artifacts. Failures satisfy errors.Is with
// ErrPreprocessorArtifact or ErrModelArtifact and keep their Kind.
func Load(logger log.Logger, preprocessorPath, modelPath, target string) (*Predictor, error) {
	logger = logger.With(log.ComponentKey, "predict")

	ct, err := artifact.LoadPreprocessor(preprocessorPath)
	if err != nil {
		return nil, errors.Logged(logger, errors.Mark(err, ErrPreprocessorArtifact))
	}
	m, err := artifact.LoadRegressor(modelPath)
	if err != nil {
		return nil, errors.Logged(logger, errors.Mark(err, ErrModelArtifact))
	}
	logger.Info("Artifacts loaded",
		log.ModelNameKey, m.Name,
		log.RunIDKey, m.RunID,
		log.FeaturesKey, ct.NOutputs(),
	)
	return &Predictor{Preprocessor: ct, Model: m, Target: target, logger: logger.With(log.ModelNameKey, m.Name)}, nil
}

// Predict returns one prediction per row of features, in row order.
// A table missing any column the preprocessor was fitted on is
// KindSchemaMismatch.
func (p *Predictor) Predict(ctx context.Context, features *dataset.Table) ([]float64, error) {
	const op = "predict.Predict"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Target != "" && features.Has(p.Target) {
		features = features.Drop(p.Target)
	}

	start := time.Now()
	X, err := p.Preprocessor.Transform(features)
	if err != nil {
		return nil, errors.Logged(p.logger, errors.Classify(err, errors.KindSchemaMismatch, op))
	}
	pred, err := p.Model.Regressor.Predict(X)
	if err != nil {
		return nil, errors.Logged(p.logger, errors.WrapKind(err, errors.KindSchemaMismatch, op,
			"model does not accept the preprocessor output"))
	}

	out := mat.Col(nil, 0, pred)
	p.logger.Info("Predictions made",
		log.OperationKey, log.OperationPredict,
		log.SamplesKey, len(out),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return out, nil
}

// PredictFile loads a raw CSV with the column kinds the preprocessor was
// fitted on and predicts every row.
func (p *Predictor) PredictFile(ctx context.Context, path string) (*dataset.Table, []float64, error) {
	t, err := dataset.LoadCSVSchema(path, p.Preprocessor.NumericColumns, p.Preprocessor.CategoricalColumns)
	if err != nil {
		return nil, nil, errors.Logged(p.logger, err)
	}
	pred, err := p.Predict(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	return t, pred, nil
}
