// Package model_selection provides data splitting, k-fold cross-validation
// and exhaustive grid search.
package model_selection

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

// TrainTestSplitIndices shuffles 0..n-1 with the given seed and returns the
// first ceil(testSize*n) shuffled indices as test and the rest as train.
// The same n, testSize and seed always give the same partition.
func TrainTestSplitIndices(n int, testSize float64, seed int64) (train, test []int, err error) {
	const op = "TrainTestSplit"
	if testSize <= 0 || testSize >= 1 || math.IsNaN(testSize) {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, errors.NewPipelineError(errors.KindDataQuality, op,
			"cannot split %d rows with test_size=%g into two non-empty sets", n, testSize)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	return indices[nTest:], indices[:nTest], nil
}

// TrainTestSplit splits X and y by rows with TrainTestSplitIndices.
func TrainTestSplit(X, y mat.Matrix, testSize float64, seed int64) (XTrain, XTest, yTrain, yTest *mat.Dense, err error) {
	n, _ := X.Dims()
	if ry, _ := y.Dims(); ry != n {
		return nil, nil, nil, nil, errors.NewDimensionError("TrainTestSplit", n, ry, 0)
	}
	train, test, err := TrainTestSplitIndices(n, testSize, seed)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	XTrain, yTrain = Subset(X, y, train)
	XTest, yTest = Subset(X, y, test)
	return XTrain, XTest, yTrain, yTest, nil
}

// Subset extracts the given rows of X and y, in the order given.
func Subset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	rows := len(indices)
	_, xCols := X.Dims()
	_, yCols := y.Dims()

	xSubset := mat.NewDense(rows, xCols, nil)
	ySubset := mat.NewDense(rows, yCols, nil)
	for i, idx := range indices {
		for j := 0; j < xCols; j++ {
			xSubset.Set(i, j, X.At(idx, j))
		}
		for j := 0; j < yCols; j++ {
			ySubset.Set(i, j, y.At(idx, j))
		}
	}
	return xSubset, ySubset
}
