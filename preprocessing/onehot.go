package preprocessing

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

// OneHotEncoder expands each categorical column into one indicator column
// per category seen at fit time. Categories are sorted per column. A category
// not seen at fit time encodes as an all-zero block.
type OneHotEncoder struct {
	model.BaseEstimator

	Categories [][]string
	Offsets    []int
	Width      int
}

// NewOneHotEncoder returns an unfitted encoder that ignores unknown categories.
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{}
}

// Fit learns the sorted category list of every column. cols[j][i] is row i of column j.
func (e *OneHotEncoder) Fit(cols [][]string) error {
	if len(cols) == 0 || len(cols[0]) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	e.Categories = make([][]string, len(cols))
	e.Offsets = make([]int, len(cols))
	width := 0
	for j, values := range cols {
		seen := make(map[string]struct{})
		for _, v := range values {
			seen[v] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		e.Categories[j] = cats
		e.Offsets[j] = width
		width += len(cats)
	}
	e.Width = width
	e.SetFitted(len(cols))
	return nil
}

// Transform encodes the columns into an n×Width indicator matrix.
func (e *OneHotEncoder) Transform(cols [][]string) (*mat.Dense, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if len(cols) != e.NFeatures {
		return nil, errors.NewDimensionError("OneHotEncoder.Transform", e.NFeatures, len(cols), 1)
	}
	n := len(cols[0])
	if n == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Transform", "empty data", errors.ErrEmptyData)
	}

	out := mat.NewDense(n, e.Width, nil)
	for j, values := range cols {
		if len(values) != n {
			return nil, errors.NewDimensionError("OneHotEncoder.Transform", n, len(values), 0)
		}
		cats := e.Categories[j]
		for i, v := range values {
			k := sort.SearchStrings(cats, v)
			if k < len(cats) && cats[k] == v {
				out.Set(i, e.Offsets[j]+k, 1)
			}
		}
	}
	return out, nil
}

// FeatureNames returns "<column>_<category>" for every output column.
func (e *OneHotEncoder) FeatureNames(columns []string) []string {
	names := make([]string, 0, e.Width)
	for j, cats := range e.Categories {
		for _, c := range cats {
			names = append(names, columns[j]+"_"+c)
		}
	}
	return names
}
