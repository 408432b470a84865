package pipeline

import (
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/dataset"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/preprocessing"
)

func init() {
	gob.Register(&ColumnTransformer{})
}

// Group names of the composed preprocessor.
const (
	NumPipelineName = "num_pipeline"
	CatPipelineName = "cat_pipeline"
)

// Numeric scaler choices.
const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
)

// Options tunes the recipe built by NewColumnTransformer.
type Options struct {
	// NumericScaler is ScalerStandard (default) or ScalerMinMax.
	NumericScaler string
}

// ColumnTransformer is the fitted preprocessing state for a table.
//
// Numeric columns go through median imputation and scaling. Categorical
// columns go through most-frequent imputation, one-hot encoding that ignores
// unseen categories, and scaling by the standard deviation without
// centering. Output columns are the numeric outputs followed by the
// categorical indicator columns.
type ColumnTransformer struct {
	model.BaseEstimator

	NumericColumns     []string
	CategoricalColumns []string

	Num        *Pipeline
	CatImputer *preprocessing.CategoricalImputer
	Encoder    *preprocessing.OneHotEncoder
	Cat        *Pipeline

	OutputNames []string
}

// NewColumnTransformer builds an unfitted preprocessor for the column groups.
func NewColumnTransformer(numeric, categorical []string, opts Options) (*ColumnTransformer, error) {
	if len(numeric)+len(categorical) == 0 {
		return nil, errors.NewValidationError("columns", "at least one feature column is required", 0)
	}
	seen := make(map[string]bool)
	for _, name := range append(append([]string(nil), numeric...), categorical...) {
		if seen[name] {
			return nil, errors.NewValidationError("columns", "column listed twice", name)
		}
		seen[name] = true
	}

	var numScaler model.Transformer
	switch opts.NumericScaler {
	case "", ScalerStandard:
		numScaler = preprocessing.NewStandardScalerDefault()
	case ScalerMinMax:
		numScaler = preprocessing.NewMinMaxScalerDefault()
	default:
		return nil, errors.NewValidationError("numeric_scaler", "unknown scaler", opts.NumericScaler)
	}

	return &ColumnTransformer{
		NumericColumns:     append([]string(nil), numeric...),
		CategoricalColumns: append([]string(nil), categorical...),
		Num: New(
			Step{Name: "imputer", Transformer: preprocessing.NewSimpleImputer(preprocessing.StrategyMedian)},
			Step{Name: "scaler", Transformer: numScaler},
		),
		CatImputer: preprocessing.NewCategoricalImputer(),
		Encoder:    preprocessing.NewOneHotEncoder(),
		Cat: New(
			Step{Name: "scaler", Transformer: preprocessing.NewStandardScaler(false, true)},
		),
	}, nil
}

// Fit learns every statistic from t. A fitted transformer refuses to be
// fitted again so training statistics cannot be overwritten by accident.
func (ct *ColumnTransformer) Fit(t *dataset.Table) error {
	_, err := ct.FitTransform(t)
	return err
}

// FitTransform fits on t and returns the transformed matrix of t.
func (ct *ColumnTransformer) FitTransform(t *dataset.Table) (*mat.Dense, error) {
	const op = "ColumnTransformer.Fit"
	if ct.IsFitted() {
		return nil, errors.NewPipelineError(errors.KindFitFailure, op, "preprocessor is already fitted")
	}
	if err := ct.checkInput(op, t); err != nil {
		return nil, err
	}

	var blocks []mat.Matrix
	var names []string

	if len(ct.NumericColumns) > 0 {
		X, _ := t.Matrix(ct.NumericColumns...)
		out, err := ct.Num.FitTransform(X)
		if err != nil {
			return nil, errors.Classify(errors.Wrapf(err, "fit %s", NumPipelineName), errors.KindFitFailure, op)
		}
		blocks = append(blocks, out)
		names = append(names, ct.NumericColumns...)
	}

	if len(ct.CategoricalColumns) > 0 {
		cols := ct.categoricalInput(t)
		if err := ct.CatImputer.Fit(cols); err != nil {
			return nil, errors.Classify(errors.Wrapf(err, "fit %s", CatPipelineName), errors.KindFitFailure, op)
		}
		filled, err := ct.CatImputer.Transform(cols)
		if err != nil {
			return nil, errors.Classify(err, errors.KindFitFailure, op)
		}
		if err := ct.Encoder.Fit(filled); err != nil {
			return nil, errors.Classify(err, errors.KindFitFailure, op)
		}
		encoded, err := ct.Encoder.Transform(filled)
		if err != nil {
			return nil, errors.Classify(err, errors.KindFitFailure, op)
		}
		out, err := ct.Cat.FitTransform(encoded)
		if err != nil {
			return nil, errors.Classify(errors.Wrapf(err, "fit %s", CatPipelineName), errors.KindFitFailure, op)
		}
		blocks = append(blocks, out)
		names = append(names, ct.Encoder.FeatureNames(ct.CategoricalColumns)...)
	}

	ct.OutputNames = names
	ct.SetFitted(len(ct.NumericColumns) + len(ct.CategoricalColumns))
	return hstack(blocks), nil
}

// Transform applies the fitted statistics to t. It never refits.
func (ct *ColumnTransformer) Transform(t *dataset.Table) (*mat.Dense, error) {
	const op = "ColumnTransformer.Transform"
	if !ct.IsFitted() {
		return nil, errors.Classify(errors.NewNotFittedError("ColumnTransformer", "Transform"), errors.KindFitFailure, op)
	}
	if err := ct.checkInput(op, t); err != nil {
		return nil, err
	}

	var blocks []mat.Matrix
	if len(ct.NumericColumns) > 0 {
		X, _ := t.Matrix(ct.NumericColumns...)
		out, err := ct.Num.Transform(X)
		if err != nil {
			return nil, errors.Classify(err, errors.KindSchemaMismatch, op)
		}
		blocks = append(blocks, out)
	}
	if len(ct.CategoricalColumns) > 0 {
		filled, err := ct.CatImputer.Transform(ct.categoricalInput(t))
		if err != nil {
			return nil, errors.Classify(err, errors.KindSchemaMismatch, op)
		}
		encoded, err := ct.Encoder.Transform(filled)
		if err != nil {
			return nil, errors.Classify(err, errors.KindSchemaMismatch, op)
		}
		out, err := ct.Cat.Transform(encoded)
		if err != nil {
			return nil, errors.Classify(err, errors.KindSchemaMismatch, op)
		}
		blocks = append(blocks, out)
	}
	return hstack(blocks), nil
}

// FeatureNames returns the output column names: numeric column names, then
// "<column>_<category>" for every learned category.
func (ct *ColumnTransformer) FeatureNames() []string {
	return append([]string(nil), ct.OutputNames...)
}

// NOutputs returns the number of output columns after fitting.
func (ct *ColumnTransformer) NOutputs() int {
	return len(ct.OutputNames)
}

// InputColumns returns every column the transformer reads.
func (ct *ColumnTransformer) InputColumns() []string {
	return append(append([]string(nil), ct.NumericColumns...), ct.CategoricalColumns...)
}

func (ct *ColumnTransformer) String() string {
	return fmt.Sprintf("ColumnTransformer[%s%v: %v, %s%v: (imputer most_frequent, one_hot ignore_unknown, %v)]",
		NumPipelineName, ct.NumericColumns, ct.Num, CatPipelineName, ct.CategoricalColumns, ct.Cat)
}

func (ct *ColumnTransformer) checkInput(op string, t *dataset.Table) error {
	if t == nil || t.NRows() == 0 {
		return errors.NewPipelineError(errors.KindDataQuality, op, "input table has no rows")
	}
	if absent := t.Absent(ct.InputColumns()...); len(absent) > 0 {
		return errors.NewPipelineError(errors.KindSchemaMismatch, op, "missing columns %v", absent)
	}
	for _, name := range ct.NumericColumns {
		if c, _ := t.Column(name); c.Kind != dataset.Numeric {
			return errors.NewPipelineError(errors.KindSchemaMismatch, op, "column %q is %s, expected numeric", name, c.Kind)
		}
	}
	return nil
}

func (ct *ColumnTransformer) categoricalInput(t *dataset.Table) []*dataset.Column {
	cols := make([]*dataset.Column, len(ct.CategoricalColumns))
	for j, name := range ct.CategoricalColumns {
		cols[j], _ = t.Column(name)
	}
	return cols
}

func hstack(blocks []mat.Matrix) *mat.Dense {
	r, _ := blocks[0].Dims()
	width := 0
	for _, b := range blocks {
		_, c := b.Dims()
		width += c
	}
	out := mat.NewDense(r, width, nil)
	off := 0
	for _, b := range blocks {
		_, c := b.Dims()
		out.Slice(0, r, off, off+c).(*mat.Dense).Copy(b)
		off += c
	}
	return out
}
