package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

func (m *constModel) Fit(X, y mat.Matrix) error { return nil }

func (m *constModel) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, m.Value)
	}
	return out, nil
}

type linearStub struct {
	constModel
	coef []float64
}

func (l *linearStub) Weights() []float64 { return l.coef }
func (l *linearStub) Intercept() float64 { return 2 }

type treeStub struct {
	constModel
	importances []float64
}

func (t *treeStub) GetFeatureImportances() []float64 { return t.importances }

func TestExtractWeights(t *testing.T) {
	lin := &linearStub{coef: []float64{0.5, -3, 1}}
	lin.SetFitted(3)
	mw, err := ExtractWeights(lin, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, SourceCoefficients, mw.Source)
	assert.Equal(t, 2.0, mw.Intercept)
	assert.Equal(t, []int{1, 2, 0}, mw.Ranked())

	tree := &treeStub{importances: []float64{0.25, 0.75}}
	tree.SetFitted(2)
	mw, err = ExtractWeights(tree, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, SourceImportances, mw.Source)
	assert.Equal(t, []float64{0.25, 0.75}, mw.Values)
}

func TestExtractWeightsErrors(t *testing.T) {
	plain := &constModel{}
	_, err := ExtractWeights(plain, nil)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	plain.SetFitted(1)
	_, err = ExtractWeights(plain, []string{"a"})
	assert.True(t, errors.Is(err, ErrNoWeights))

	lin := &linearStub{coef: []float64{1, 2}}
	lin.SetFitted(2)
	_, err = ExtractWeights(lin, []string{"only"})
	assert.True(t, errors.IsKind(err, errors.KindSchemaMismatch))
	assert.Contains(t, err.Error(), "2 weights and 1 features")
}
