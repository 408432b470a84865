// Package transform fits the preprocessing pipeline on the training split,
// applies it to both splits and persists the results.
package transform

import (
	"context"
	"io/fs"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/dataset"
	"github.com/YuminosukeSato/mlpipe/internal/artifact"
	"github.com/YuminosukeSato/mlpipe/internal/evaluate"
	"github.com/YuminosukeSato/mlpipe/pipeline"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/pkg/log"
)

// Outputs are the destinations written by Persist.
type Outputs struct {
	Preprocessor string
	Train        string
	Test         string
	// BestModel receives the winner of the optional evaluation.
	BestModel string
}

// Schema names the target and feature columns.
type Schema struct {
	Target      string
	Numeric     []string
	Categorical []string
}

// Required returns every column both splits must carry.
func (s Schema) Required() []string {
	out := make([]string, 0, len(s.Numeric)+len(s.Categorical)+1)
	out = append(out, s.Numeric...)
	out = append(out, s.Categorical...)
	return append(out, s.Target)
}

// Result is what Run produces.
type Result struct {
	Outputs
	FeatureNames []string
	// Report is nil unless evaluation was requested.
	Report *evaluate.Report
}

// Transformed holds both splits after preprocessing.
type Transformed struct {
	Preprocessor *pipeline.ColumnTransformer
	XTrain       *mat.Dense
	XTest        *mat.Dense
	YTrain       []float64
	YTest        []float64
}

// DataTransformation orchestrates the transformation stage.
type DataTransformation struct {
	Schema  Schema
	Options pipeline.Options
	Out     Outputs
	RunID   string
	// Engine runs the optional evaluation step. Nil disables it.
	Engine *evaluate.Engine

	logger log.Logger
}

func New(logger log.Logger, schema Schema, opts pipeline.Options, out Outputs, runID string) *DataTransformation {
	return &DataTransformation{
		Schema:  schema,
		Options: opts,
		Out:     out,
		RunID:   runID,
		logger:  logger.With(log.ComponentKey, "transform", log.RunIDKey, runID),
	}
}

// ValidateInputs checks that both split files exist.
func (dt *DataTransformation) ValidateInputs(trainPath, testPath string) error {
	const op = "transform.ValidateInputs"
	for _, p := range []string{trainPath, testPath} {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return errors.Logged(dt.logger, errors.WrapKind(err, errors.KindMissingInput, op, "%s does not exist", p))
			}
			return errors.Logged(dt.logger, errors.WrapKind(err, errors.KindIO, op, "stat %s", p))
		}
		if info.IsDir() {
			return errors.Logged(dt.logger, errors.NewPipelineError(errors.KindMissingInput, op, "%s is a directory", p))
		}
	}
	return nil
}

// Load reads both splits, forcing categorical columns to text.
func (dt *DataTransformation) Load(trainPath, testPath string) (train, test *dataset.Table, err error) {
	if train, err = dataset.LoadCSV(trainPath, dt.Schema.Categorical...); err != nil {
		return nil, nil, errors.Logged(dt.logger, err)
	}
	if test, err = dataset.LoadCSV(testPath, dt.Schema.Categorical...); err != nil {
		return nil, nil, errors.Logged(dt.logger, err)
	}
	dt.logger.Info("Splits loaded", "rows.train", train.NRows(), "rows.test", test.NRows())
	return train, test, nil
}

// ValidateSchema checks that every required column is present in both tables.
func (dt *DataTransformation) ValidateSchema(train, test *dataset.Table) error {
	const op = "transform.ValidateSchema"
	required := dt.Schema.Required()
	for _, part := range []struct {
		name string
		t    *dataset.Table
	}{{"train", train}, {"test", test}} {
		if missing := part.t.Absent(required...); len(missing) > 0 {
			return errors.Logged(dt.logger, errors.NewPipelineError(errors.KindSchemaMismatch, op,
				"missing required column %q in %s data", missing[0], part.name))
		}
	}
	return nil
}

// FitTransform fits a fresh preprocessor on the training features only and
// transforms both splits with it.
func (dt *DataTransformation) FitTransform(train, test *dataset.Table) (*Transformed, error) {
	const op = "transform.FitTransform"
	ct, err := pipeline.NewColumnTransformer(dt.Schema.Numeric, dt.Schema.Categorical, dt.Options)
	if err != nil {
		return nil, errors.Logged(dt.logger, errors.Classify(err, errors.KindFitFailure, op))
	}

	out := &Transformed{Preprocessor: ct}
	if out.YTrain, err = train.Floats(dt.Schema.Target); err != nil {
		return nil, errors.Logged(dt.logger, errors.Classify(err, errors.KindSchemaMismatch, op))
	}
	if out.YTest, err = test.Floats(dt.Schema.Target); err != nil {
		return nil, errors.Logged(dt.logger, errors.Classify(err, errors.KindSchemaMismatch, op))
	}
	for _, y := range [][]float64{out.YTrain, out.YTest} {
		for i, v := range y {
			if math.IsNaN(v) {
				return nil, errors.Logged(dt.logger, errors.NewPipelineError(errors.KindDataQuality, op,
					"target %q is missing in row %d", dt.Schema.Target, i))
			}
		}
	}
	if out.XTrain, err = ct.FitTransform(train.Drop(dt.Schema.Target)); err != nil {
		return nil, errors.Logged(dt.logger, errors.Classify(err, errors.KindFitFailure, op))
	}
	if out.XTest, err = ct.Transform(test.Drop(dt.Schema.Target)); err != nil {
		return nil, errors.Logged(dt.logger, errors.Classify(err, errors.KindFitFailure, op))
	}

	_, width := out.XTrain.Dims()
	dt.logger.Info("Features transformed", log.FeaturesKey, width, log.SamplesKey, len(out.YTrain))
	return out, nil
}

// Combine appends the target as the last column of X. Column names are the
// preprocessor's feature names followed by the target name.
func (dt *DataTransformation) Combine(names []string, X *mat.Dense, y []float64) (*dataset.Table, error) {
	const op = "transform.Combine"
	r, c := X.Dims()
	if len(names) != c {
		return nil, errors.NewPipelineError(errors.KindSchemaMismatch, op, "%d names for %d columns", len(names), c)
	}
	if len(y) != r {
		return nil, errors.NewPipelineError(errors.KindSchemaMismatch, op, "%d targets for %d rows", len(y), r)
	}
	cols := make([]*dataset.Column, 0, c+1)
	for j, name := range names {
		cols = append(cols, dataset.NumericColumn(name, mat.Col(nil, j, X)))
	}
	cols = append(cols, dataset.NumericColumn(dt.Schema.Target, append([]float64(nil), y...)))
	return dataset.NewTable(cols...)
}

// Persist writes the transformed splits and the preprocessor. The three files
// are committed together: on any failure none of them is left behind.
func (dt *DataTransformation) Persist(tr *Transformed) error {
	names := tr.Preprocessor.FeatureNames()
	train, err := dt.Combine(names, tr.XTrain, tr.YTrain)
	if err != nil {
		return errors.Logged(dt.logger, err)
	}
	test, err := dt.Combine(names, tr.XTest, tr.YTest)
	if err != nil {
		return errors.Logged(dt.logger, err)
	}

	b := artifact.NewBatch()
	if err := b.StageCSV(dt.Out.Train, train); err != nil {
		return errors.Logged(dt.logger, err)
	}
	if err := b.StageCSV(dt.Out.Test, test); err != nil {
		return errors.Logged(dt.logger, err)
	}
	if err := b.StageArtifact(dt.Out.Preprocessor, artifact.Preprocessor(dt.RunID, tr.Preprocessor)); err != nil {
		return errors.Logged(dt.logger, err)
	}
	if err := b.Commit(); err != nil {
		return errors.Logged(dt.logger, err)
	}
	dt.logger.Info("Transformation outputs saved",
		"path.train", dt.Out.Train,
		"path.test", dt.Out.Test,
		"path.preprocessor", dt.Out.Preprocessor,
	)
	return nil
}

// Evaluate runs the roster on the transformed splits and saves the best model.
func (dt *DataTransformation) Evaluate(ctx context.Context, tr *Transformed) (*evaluate.Report, error) {
	if dt.Engine == nil {
		return nil, errors.NewPipelineError(errors.KindFitFailure, "transform.Evaluate", "no evaluation engine configured")
	}
	yTrain := mat.NewDense(len(tr.YTrain), 1, tr.YTrain)
	yTest := mat.NewDense(len(tr.YTest), 1, tr.YTest)
	report, err := dt.Engine.Evaluate(ctx, tr.XTrain, yTrain, tr.XTest, yTest)
	if err != nil {
		return nil, err
	}
	if dt.Out.BestModel != "" {
		if err := dt.Engine.Save(report, dt.Out.BestModel, dt.RunID); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// Run executes the whole stage. Evaluation runs only when withEvaluation is
// set and an Engine is configured.
func (dt *DataTransformation) Run(ctx context.Context, trainPath, testPath string, withEvaluation bool) (*Result, error) {
	if err := dt.ValidateInputs(trainPath, testPath); err != nil {
		return nil, err
	}
	train, test, err := dt.Load(trainPath, testPath)
	if err != nil {
		return nil, err
	}
	if err := dt.ValidateSchema(train, test); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tr, err := dt.FitTransform(train, test)
	if err != nil {
		return nil, err
	}
	if err := dt.Persist(tr); err != nil {
		return nil, err
	}

	res := &Result{Outputs: dt.Out, FeatureNames: tr.Preprocessor.FeatureNames()}
	if withEvaluation && dt.Engine != nil {
		if res.Report, err = dt.Evaluate(ctx, tr); err != nil {
			return nil, err
		}
	}
	return res, nil
}
