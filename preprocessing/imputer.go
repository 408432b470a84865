package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/dataset"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

// Imputation strategies.
const (
	StrategyMean         = "mean"
	StrategyMedian       = "median"
	StrategyMostFrequent = "most_frequent"
)

// SimpleImputer replaces NaN cells of a numeric matrix with a per-column
// statistic learned at fit time.
type SimpleImputer struct {
	model.BaseEstimator

	Strategy   string
	Statistics []float64
}

// NewSimpleImputer returns an unfitted imputer for the given strategy.
func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{Strategy: strategy}
}

// Fit learns one statistic per column from the non-NaN values.
func (s *SimpleImputer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}

	stats := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		present := col[:0:0]
		for _, v := range col {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		if len(present) == 0 {
			return errors.NewPipelineError(errors.KindDataQuality, "SimpleImputer.Fit",
				"feature %d has no non-missing values", j)
		}

		switch s.Strategy {
		case StrategyMean:
			stats[j] = stat.Mean(present, nil)
		case StrategyMedian:
			stats[j], _ = dataset.Median(present)
		case StrategyMostFrequent:
			stats[j] = mostFrequent(present)
		default:
			return errors.NewValidationError("strategy", "unknown imputation strategy", s.Strategy)
		}
	}

	s.Statistics = stats
	s.SetFitted(c)
	return nil
}

// mostFrequent returns the modal value, smallest first on ties.
func mostFrequent(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	best, bestCount := sorted[0], 0
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		if j-i > bestCount {
			best, bestCount = sorted[i], j-i
		}
		i = j
	}
	return best
}

// Transform fills NaN cells with the learned statistics.
func (s *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("SimpleImputer", "Transform")
	}
	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("SimpleImputer.Transform", s.NFeatures, c, 1)
	}
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return s.Statistics[j]
		}
		return v
	}, X)
	return result, nil
}

// FitTransform fits on X and fills it.
func (s *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

func (s *SimpleImputer) String() string {
	return fmt.Sprintf("SimpleImputer(strategy=%s)", s.Strategy)
}

// CategoricalImputer fills missing categorical cells with each column's most
// frequent training category (lexicographically smallest on ties).
type CategoricalImputer struct {
	model.BaseEstimator

	Fills []string
}

// NewCategoricalImputer returns an unfitted most-frequent imputer.
func NewCategoricalImputer() *CategoricalImputer {
	return &CategoricalImputer{}
}

// Fit learns the fill value of each column.
func (ci *CategoricalImputer) Fit(cols []*dataset.Column) error {
	if len(cols) == 0 {
		return errors.NewModelError("CategoricalImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	fills := make([]string, len(cols))
	for j, c := range cols {
		values, missing := c.Categories()
		mode, ok := dataset.Mode(values, missing)
		if !ok {
			return errors.NewPipelineError(errors.KindDataQuality, "CategoricalImputer.Fit",
				"column %q has no non-missing values", c.Name)
		}
		fills[j] = mode
	}
	ci.Fills = fills
	ci.SetFitted(len(cols))
	return nil
}

// Transform returns one filled string slice per column.
func (ci *CategoricalImputer) Transform(cols []*dataset.Column) ([][]string, error) {
	if !ci.IsFitted() {
		return nil, errors.NewNotFittedError("CategoricalImputer", "Transform")
	}
	if len(cols) != ci.NFeatures {
		return nil, errors.NewDimensionError("CategoricalImputer.Transform", ci.NFeatures, len(cols), 1)
	}
	out := make([][]string, len(cols))
	for j, c := range cols {
		values, missing := c.Categories()
		filled := make([]string, len(values))
		for i, v := range values {
			if missing[i] {
				v = ci.Fills[j]
			}
			filled[i] = v
		}
		out[j] = filled
	}
	return out, nil
}
