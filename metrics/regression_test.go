package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

func vec(v ...float64) *mat.VecDense {
	return mat.NewVecDense(len(v), v)
}

func TestScores(t *testing.T) {
	tests := []struct {
		name         string
		yTrue, yPred *mat.VecDense
		mse, mae, r2 float64
	}{
		{
			name:  "perfect",
			yTrue: vec(72, 69, 90, 47, 76),
			yPred: vec(72, 69, 90, 47, 76),
			mse:   0, mae: 0, r2: 1,
		},
		{
			name:  "off by half a point",
			yTrue: vec(1, 2, 3, 4),
			yPred: vec(1.5, 2.5, 2.5, 3.5),
			mse:   0.25, mae: 0.5, r2: 0.8,
		},
		{
			name:  "mixed errors",
			yTrue: vec(10, 20, 30),
			yPred: vec(12, 18, 33),
			mse:   17.0 / 3, mae: 7.0 / 3, r2: 1 - 17.0/200,
		},
		{
			name:  "worse than the mean",
			yTrue: vec(1, 2, 3, 4),
			yPred: vec(4, 3, 2, 1),
			mse:   5, mae: 2, r2: -3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mse, err := MSE(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.mse, mse, 1e-12)

			rmse, err := RMSE(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.mse, rmse*rmse, 1e-12)

			mae, err := MAE(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.mae, mae, 1e-12)

			r2, err := R2Score(tt.yTrue, tt.yPred, nil)
			require.NoError(t, err)
			assert.InDelta(t, tt.r2, r2, 1e-12)
		})
	}
}

func TestScoresRejectBadInput(t *testing.T) {
	for name, fn := range map[string]func(a, b *mat.VecDense) (float64, error){
		"MSE": MSE, "RMSE": RMSE, "MAE": MAE,
		"R2Score": func(a, b *mat.VecDense) (float64, error) { return R2Score(a, b, nil) },
	} {
		t.Run(name, func(t *testing.T) {
			_, err := fn(vec(1, 2, 3), vec(1, 2))
			var de *errors.DimensionError
			assert.True(t, errors.As(err, &de))

			_, err = fn(&mat.VecDense{}, &mat.VecDense{})
			var ve *errors.ValueError
			assert.True(t, errors.As(err, &ve))
		})
	}
}

func TestR2ScoreZeroVariance(t *testing.T) {
	var warnings []error
	warn := errors.WarnFunc(func(w error) { warnings = append(warnings, w) })

	r2, err := R2Score(vec(3, 3, 3, 3), vec(2, 3, 4, 3), warn)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r2)

	r2, err = R2Score(vec(3, 3, 3), vec(3, 3, 3), warn)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r2)

	require.Len(t, warnings, 2)
	var uw *errors.UndefinedMetricWarning
	assert.True(t, errors.As(warnings[0], &uw))
}

func TestEvaluate(t *testing.T) {
	yTrue := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	yPred := mat.NewDense(4, 1, []float64{1.5, 2.5, 2.5, 3.5})

	got, err := Evaluate(yTrue, yPred, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.MAE, 1e-12)
	assert.InDelta(t, 0.5, got.RMSE, 1e-12)
	assert.InDelta(t, 0.8, got.R2, 1e-12)
	assert.Equal(t, "MAE=0.5000 RMSE=0.5000 R2=0.8000", got.String())

	r2, err := R2ScoreMatrix(yTrue, yPred, nil)
	require.NoError(t, err)
	assert.Equal(t, got.R2, r2)

	r2, err = R2Scorer(nil)(yTrue, yPred)
	require.NoError(t, err)
	assert.Equal(t, got.R2, r2)

	mse, err := MSEMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, mse, 1e-12)

	_, err = Evaluate(yTrue, mat.NewDense(3, 1, nil), nil)
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	_, err = Evaluate(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil), nil)
	assert.Error(t, err)
}

func BenchmarkEvaluate(b *testing.B) {
	const n = 10000
	yTrue := mat.NewDense(n, 1, nil)
	yPred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		yTrue.Set(i, 0, float64(i%100))
		yPred.Set(i, 0, float64(i%100)+0.1*float64(i%10))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Evaluate(yTrue, yPred, nil)
	}
}
