// Package neighbors provides nearest-neighbour regression.
package neighbors

import (
	"encoding/gob"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/core/parallel"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

func init() {
	gob.Register(&KNeighborsRegressor{})
}

// Weighting schemes.
const (
	WeightsUniform  = "uniform"
	WeightsDistance = "distance"
)

// Distance metrics.
const (
	MetricEuclidean = "euclidean"
	MetricManhattan = "manhattan"
)

// KNeighborsRegressor predicts the (weighted) mean target of the k nearest
// training rows. Fit only stores the data. Ties in distance keep the earlier
// training row.
type KNeighborsRegressor struct {
	model.BaseEstimator

	NNeighbors int
	Weights    string
	Metric     string
	NJobs      int

	XTrain [][]float64
	YTrain []float64
}

// NewKNeighborsRegressor creates a uniform-weight Euclidean regressor.
func NewKNeighborsRegressor(k int) *KNeighborsRegressor {
	return &KNeighborsRegressor{
		NNeighbors: k,
		Weights:    WeightsUniform,
		Metric:     MetricEuclidean,
	}
}

// Fit stores the training data.
func (knn *KNeighborsRegressor) Fit(X, y mat.Matrix) error {
	const op = "KNeighborsRegressor.Fit"
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	ry, cy := y.Dims()
	if ry != n {
		return errors.NewDimensionError(op, n, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError(op, "y must be a column vector")
	}
	if knn.NNeighbors <= 0 {
		return errors.NewValidationError("n_neighbors", "must be positive", knn.NNeighbors)
	}
	if knn.NNeighbors > n {
		return errors.NewValidationError("n_neighbors", fmt.Sprintf("exceeds the %d training samples", n), knn.NNeighbors)
	}
	switch knn.Weights {
	case WeightsUniform, WeightsDistance:
	default:
		return errors.NewValidationError("weights", "unknown weighting", knn.Weights)
	}
	switch knn.Metric {
	case MetricEuclidean, MetricManhattan:
	default:
		return errors.NewValidationError("metric", "unknown metric", knn.Metric)
	}

	knn.XTrain = make([][]float64, n)
	for i := range knn.XTrain {
		knn.XTrain[i] = mat.Row(nil, i, X)
	}
	knn.YTrain = mat.Col(nil, 0, y)
	knn.SetFitted(p)
	return nil
}

// Predict returns one prediction per row of X. Rows are processed in parallel.
func (knn *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := knn.CheckPredictInput("KNeighborsRegressor", c); err != nil {
		return nil, err
	}

	out := make([]float64, r)
	parallel.ParallelizeWithThreshold(r, 64, knn.NJobs, func(start, end int) {
		row := make([]float64, c)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			out[i] = knn.predictRow(row)
		}
	})
	return mat.NewDense(r, 1, out), nil
}

type neighbor struct {
	dist  float64
	index int
}

func (knn *KNeighborsRegressor) predictRow(x []float64) float64 {
	nbrs := make([]neighbor, len(knn.XTrain))
	for j, xj := range knn.XTrain {
		nbrs[j] = neighbor{dist: knn.distance(x, xj), index: j}
	}
	sort.SliceStable(nbrs, func(a, b int) bool { return nbrs[a].dist < nbrs[b].dist })
	nbrs = nbrs[:knn.NNeighbors]

	if knn.Weights == WeightsUniform {
		sum := 0.0
		for _, nb := range nbrs {
			sum += knn.YTrain[nb.index]
		}
		return sum / float64(len(nbrs))
	}

	// 距離 0 の近傍があればそれらの平均を返す
	if nbrs[0].dist == 0 {
		sum, n := 0.0, 0
		for _, nb := range nbrs {
			if nb.dist == 0 {
				sum += knn.YTrain[nb.index]
				n++
			}
		}
		return sum / float64(n)
	}
	num, den := 0.0, 0.0
	for _, nb := range nbrs {
		w := 1 / nb.dist
		num += w * knn.YTrain[nb.index]
		den += w
	}
	return num / den
}

func (knn *KNeighborsRegressor) distance(a, b []float64) float64 {
	if knn.Metric == MetricManhattan {
		return floats.Distance(a, b, 1)
	}
	return math.Sqrt(sqDist(a, b))
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// GetParams returns the hyperparameters.
func (knn *KNeighborsRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": knn.NNeighbors,
		"weights":     knn.Weights,
		"metric":      knn.Metric,
		"n_jobs":      knn.NJobs,
	}
}

func (knn *KNeighborsRegressor) String() string {
	return fmt.Sprintf("KNeighborsRegressor(n_neighbors=%d, weights=%s)", knn.NNeighbors, knn.Weights)
}
