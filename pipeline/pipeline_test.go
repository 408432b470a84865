package pipeline

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/dataset"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/preprocessing"
)

func trainTable(t *testing.T) *dataset.Table {
	t.Helper()
	return dataset.MustTable(
		dataset.NumericColumn("reading", []float64{1, 2, 3, math.NaN()}),
		dataset.CategoricalColumn("gender", []string{"female", "male", "female", ""}, []bool{false, false, false, true}),
	)
}

func TestPipelineChainsSteps(t *testing.T) {
	p := New(
		Step{Name: "imputer", Transformer: preprocessing.NewSimpleImputer(preprocessing.StrategyMedian)},
		Step{Name: "scaler", Transformer: preprocessing.NewStandardScalerDefault()},
	)
	X := mat.NewDense(3, 1, []float64{1, math.NaN(), 3})

	out, err := p.FitTransform(X)
	require.NoError(t, err)
	assert.True(t, p.IsFitted())
	assert.InDelta(t, -1.224744871, out.At(0, 0), 1e-9)
	assert.InDelta(t, 0, out.At(1, 0), 1e-12)

	again, err := p.Transform(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(out, again, 1e-12))

	step, ok := p.Step("scaler")
	require.True(t, ok)
	assert.IsType(t, &preprocessing.StandardScaler{}, step)
}

func TestPipelineErrors(t *testing.T) {
	_, err := New().FitTransform(mat.NewDense(1, 1, nil))
	assert.Error(t, err)

	p := New(Step{Name: "scaler", Transformer: preprocessing.NewStandardScalerDefault()})
	_, err = p.Transform(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	p = New(Step{Name: "imputer", Transformer: preprocessing.NewSimpleImputer(preprocessing.StrategyMedian)})
	_, err = p.FitTransform(mat.NewDense(2, 1, []float64{math.NaN(), math.NaN()}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fit step 'imputer'")
}

func TestColumnTransformerFitTransform(t *testing.T) {
	ct, err := NewColumnTransformer([]string{"reading"}, []string{"gender"}, Options{})
	require.NoError(t, err)

	out, err := ct.FitTransform(trainTable(t))
	require.NoError(t, err)

	r, c := out.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, []string{"reading", "gender_female", "gender_male"}, ct.FeatureNames())
	assert.Equal(t, 3, ct.NOutputs())

	// reading: [1 2 3 2] -> mean 2, population std sqrt(0.5)
	assert.InDelta(t, -1/math.Sqrt(0.5), out.At(0, 0), 1e-9)
	assert.InDelta(t, 0, out.At(3, 0), 1e-12)

	// gender_female: [1 0 1 1] scaled by its std without centering
	std := math.Sqrt(0.1875)
	assert.InDelta(t, 1/std, out.At(3, 1), 1e-9)
	assert.Equal(t, 0.0, out.At(1, 1))
	assert.InDelta(t, 1/std, out.At(1, 2), 1e-9)
}

func TestColumnTransformerTransformDoesNotRefit(t *testing.T) {
	ct, err := NewColumnTransformer([]string{"reading"}, []string{"gender"}, Options{})
	require.NoError(t, err)
	require.NoError(t, ct.Fit(trainTable(t)))

	test := dataset.MustTable(
		dataset.NumericColumn("reading", []float64{math.NaN(), 100}),
		dataset.CategoricalColumn("gender", []string{"other", "male"}, nil),
	)
	out, err := ct.Transform(test)
	require.NoError(t, err)

	assert.InDelta(t, 0, out.At(0, 0), 1e-12, "imputed with the training median")
	assert.InDelta(t, 98/math.Sqrt(0.5), out.At(1, 0), 1e-9)
	assert.Equal(t, 0.0, out.At(0, 1), "unknown category encodes as zeros")
	assert.Equal(t, 0.0, out.At(0, 2))
	assert.Greater(t, out.At(1, 2), 0.0)
}

func TestColumnTransformerRejectsBadInput(t *testing.T) {
	ct, err := NewColumnTransformer([]string{"reading"}, []string{"gender"}, Options{})
	require.NoError(t, err)

	_, err = ct.Transform(trainTable(t))
	assert.True(t, errors.IsKind(err, errors.KindFitFailure))

	require.NoError(t, ct.Fit(trainTable(t)))
	err = ct.Fit(trainTable(t))
	assert.True(t, errors.IsKind(err, errors.KindFitFailure), "refitting is refused")

	missing := dataset.MustTable(dataset.NumericColumn("reading", []float64{1}))
	_, err = ct.Transform(missing)
	assert.True(t, errors.IsKind(err, errors.KindSchemaMismatch))
	assert.Contains(t, err.Error(), "gender")

	wrongKind := dataset.MustTable(
		dataset.CategoricalColumn("reading", []string{"a"}, nil),
		dataset.CategoricalColumn("gender", []string{"male"}, nil),
	)
	_, err = ct.Transform(wrongKind)
	assert.True(t, errors.IsKind(err, errors.KindSchemaMismatch))

	empty := dataset.MustTable(
		dataset.NumericColumn("reading", []float64{}),
		dataset.CategoricalColumn("gender", []string{}, nil),
	)
	_, err = ct.Transform(empty)
	assert.True(t, errors.IsKind(err, errors.KindDataQuality))
}

func TestNewColumnTransformerValidation(t *testing.T) {
	tests := []struct {
		name        string
		numeric     []string
		categorical []string
		opts        Options
	}{
		{"no columns", nil, nil, Options{}},
		{"duplicate column", []string{"a"}, []string{"a"}, Options{}},
		{"unknown scaler", []string{"a"}, nil, Options{NumericScaler: "robust"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewColumnTransformer(tt.numeric, tt.categorical, tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestColumnTransformerMinMax(t *testing.T) {
	ct, err := NewColumnTransformer([]string{"reading"}, nil, Options{NumericScaler: ScalerMinMax})
	require.NoError(t, err)
	out, err := ct.FitTransform(trainTable(t))
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.At(0, 0))
	assert.Equal(t, 1.0, out.At(2, 0))
}

func TestColumnTransformerSurvivesArtifactRoundTrip(t *testing.T) {
	ct, err := NewColumnTransformer([]string{"reading"}, []string{"gender"}, Options{})
	require.NoError(t, err)
	want, err := ct.FitTransform(trainTable(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, model.EncodeArtifact(&buf, model.NewArtifact(model.KindPreprocessor, "preprocessor", "run-1", ct)))
	a, err := model.DecodeArtifact(&buf)
	require.NoError(t, err)

	loaded, ok := a.Payload.(*ColumnTransformer)
	require.True(t, ok)
	got, err := loaded.Transform(trainTable(t))
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))
	assert.Equal(t, ct.FeatureNames(), loaded.FeatureNames())
}

func TestColumnTransformerStatisticsComeFromTrainingData(t *testing.T) {
	fitOn := func(reading []float64, gender []string) *ColumnTransformer {
		ct, err := NewColumnTransformer([]string{"reading"}, []string{"gender"}, Options{})
		require.NoError(t, err)
		_, err = ct.FitTransform(dataset.MustTable(
			dataset.NumericColumn("reading", reading),
			dataset.CategoricalColumn("gender", gender, nil),
		))
		require.NoError(t, err)
		return ct
	}
	a := fitOn([]float64{10, 20, 30, 40}, []string{"female", "male", "female", "male"})
	b := fitOn([]float64{55, 60, 65, 90}, []string{"female", "female", "female", "male"})

	heldOut := dataset.MustTable(
		dataset.NumericColumn("reading", []float64{50}),
		dataset.CategoricalColumn("gender", []string{"male"}, nil),
	)
	outA, err := a.Transform(heldOut)
	require.NoError(t, err)
	outB, err := b.Transform(heldOut)
	require.NoError(t, err)

	assert.Equal(t, a.FeatureNames(), b.FeatureNames())
	assert.NotEqual(t, outA.At(0, 0), outB.At(0, 0), "scaled numeric value")
	assert.NotEqual(t, outA.At(0, 2), outB.At(0, 2), "scaled indicator value")
}

func TestColumnTransformerWidthIsStableAcrossFits(t *testing.T) {
	genders := []string{"female", "male", "female", "male", "female", "male"}
	for i := 0; i < 5; i++ {
		reading := make([]float64, len(genders))
		for j := range reading {
			reading[j] = float64(i*7 + j*j)
		}
		tbl := dataset.MustTable(
			dataset.NumericColumn("reading", reading),
			dataset.CategoricalColumn("gender", genders, nil),
		)

		ct, err := NewColumnTransformer([]string{"reading"}, []string{"gender"}, Options{})
		require.NoError(t, err)
		fitted, err := ct.FitTransform(tbl)
		require.NoError(t, err)
		again, err := ct.Transform(tbl)
		require.NoError(t, err)

		_, fc := fitted.Dims()
		_, tc := again.Dims()
		assert.Equal(t, 3, fc, "fit %d", i)
		assert.Equal(t, 3, tc, "fit %d", i)
		assert.Equal(t, 3, ct.NOutputs(), "fit %d", i)
	}
}
