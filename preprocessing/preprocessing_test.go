package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/dataset"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})
	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")

	col := mat.Col(nil, 0, out)
	sum, sq := 0.0, 0.0
	for _, v := range col {
		sum += v
		sq += v * v
	}
	assert.InDelta(t, 0, sum/4, 1e-12)
	assert.InDelta(t, 1, sq/4, 1e-12)
	assert.Equal(t, 0.0, out.At(0, 1))
}

func TestStandardScalerWithoutMeanUsesTrueStd(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 1, 0, 0})
	s := NewStandardScaler(false, true)
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.Mean[0])
	assert.InDelta(t, 0.5, s.Scale[0], 1e-12)
	assert.InDelta(t, 2.0, out.At(0, 0), 1e-12)
	assert.Equal(t, 0.0, out.At(3, 0), "zeros stay zero")
}

func TestScalersRejectMisuse(t *testing.T) {
	s := NewStandardScalerDefault()
	_, err := s.Transform(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))

	m := NewMinMaxScaler([2]float64{1, 0})
	assert.Error(t, m.Fit(mat.NewDense(1, 1, []float64{1})))
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0, 7,
		5, 7,
		10, 7,
	})
	m := NewMinMaxScalerDefault()
	out, err := m.FitTransform(X)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0.5, 1}, mat.Col(nil, 0, out))
	assert.Equal(t, []float64{0, 0, 0}, mat.Col(nil, 1, out))

	unseen, err := m.Transform(mat.NewDense(1, 2, []float64{20, 7}))
	require.NoError(t, err)
	assert.Equal(t, 2.0, unseen.At(0, 0), "values outside the training range are not clipped")
}

func TestSimpleImputer(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(5, 1, []float64{1, nan, 3, 3, 10})

	tests := []struct {
		strategy string
		want     float64
	}{
		{StrategyMedian, 3},
		{StrategyMean, 4.25},
		{StrategyMostFrequent, 3},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			imp := NewSimpleImputer(tt.strategy)
			out, err := imp.FitTransform(X)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, out.At(1, 0), 1e-12)
			assert.Equal(t, 10.0, out.At(4, 0))
		})
	}

	assert.Error(t, NewSimpleImputer("constant").Fit(X))

	allMissing := mat.NewDense(2, 1, []float64{nan, nan})
	err := NewSimpleImputer(StrategyMedian).Fit(allMissing)
	assert.True(t, errors.IsKind(err, errors.KindDataQuality))
}

func TestMostFrequentTieBreak(t *testing.T) {
	assert.Equal(t, 2.0, mostFrequent([]float64{5, 2, 5, 2, 9}))
}

func TestCategoricalImputer(t *testing.T) {
	train := []*dataset.Column{
		dataset.CategoricalColumn("lunch", []string{"standard", "", "free", "standard"}, []bool{false, true, false, false}),
		dataset.CategoricalColumn("prep", []string{"none", "completed", "completed", "none"}, nil),
	}

	ci := NewCategoricalImputer()
	require.NoError(t, ci.Fit(train))
	assert.Equal(t, []string{"standard", "completed"}, ci.Fills)

	out, err := ci.Transform(train)
	require.NoError(t, err)
	assert.Equal(t, []string{"standard", "standard", "free", "standard"}, out[0])

	_, err = ci.Transform(train[:1])
	assert.Error(t, err)

	empty := []*dataset.Column{dataset.CategoricalColumn("x", []string{""}, []bool{true})}
	assert.True(t, errors.IsKind(NewCategoricalImputer().Fit(empty), errors.KindDataQuality))
}

func TestOneHotEncoder(t *testing.T) {
	cols := [][]string{
		{"male", "female", "female"},
		{"group B", "group A", "group C"},
	}
	enc := NewOneHotEncoder()
	require.NoError(t, enc.Fit(cols))

	assert.Equal(t, [][]string{{"female", "male"}, {"group A", "group B", "group C"}}, enc.Categories)
	assert.Equal(t, 5, enc.Width)
	assert.Equal(t,
		[]string{"gender_female", "gender_male", "race_group A", "race_group B", "race_group C"},
		enc.FeatureNames([]string{"gender", "race"}))

	out, err := enc.Transform(cols)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0, 1, 0}, mat.Row(nil, 0, out))
	for i := 0; i < 3; i++ {
		assert.Equal(t, 2.0, mat.Sum(out.RowView(i)))
	}

	unknown, err := enc.Transform([][]string{{"other"}, {"group A"}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 0, 0}, mat.Row(nil, 0, unknown), "unseen category encodes as zeros")
}
