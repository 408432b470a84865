package dataset

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

// DropDuplicates removes rows identical in every column to an earlier row.
// The first occurrence is kept and row order is preserved.
func DropDuplicates(t *Table) (*Table, int) {
	seen := make(map[string]struct{}, t.NRows())
	keep := make([]int, 0, t.NRows())
	for i := 0; i < t.NRows(); i++ {
		key := t.RowKey(i)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, i)
	}
	if len(keep) == t.NRows() {
		return t, 0
	}
	return t.Select(keep), t.NRows() - len(keep)
}

// Median returns the median of the non-NaN values. Even counts average the
// two middle values. ok is false when there is no value.
func Median(values []float64) (median float64, ok bool) {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	n := len(present)
	if n == 0 {
		return math.NaN(), false
	}
	sort.Float64s(present)
	if n%2 == 1 {
		return present[n/2], true
	}
	return (present[n/2-1] + present[n/2]) / 2, true
}

// Mode returns the most frequent non-missing value. Ties resolve to the
// lexicographically smallest value. ok is false when every value is missing.
func Mode(values []string, missing []bool) (mode string, ok bool) {
	counts := make(map[string]int)
	for i, v := range values {
		if missing != nil && missing[i] {
			continue
		}
		counts[v]++
	}
	best := -1
	for v, n := range counts {
		if n > best || (n == best && v < mode) {
			mode, best = v, n
		}
	}
	return mode, best > 0
}

// Fill describes the imputation applied to one column.
type Fill struct {
	Column string
	Kind   Kind
	Value  string
	Cells  int
}

// FillMissing replaces missing numeric cells with the column median and
// missing categorical cells with the column mode. Statistics come from the
// table itself. A non-empty column with no value at all is a data quality
// error naming the column.
func FillMissing(t *Table) (*Table, []Fill, error) {
	const op = "dataset.FillMissing"
	var fills []Fill
	cols := make([]*Column, 0, t.NCols())

	for _, c := range t.Columns() {
		missing := c.MissingCount()
		if missing == 0 {
			cols = append(cols, c)
			continue
		}
		if missing == c.Len() {
			return nil, nil, errors.NewPipelineError(errors.KindDataQuality, op,
				"column %q has no non-missing values", c.Name)
		}

		filled := c.Clone()
		switch c.Kind {
		case Numeric:
			median, _ := Median(c.Floats)
			for i, v := range filled.Floats {
				if math.IsNaN(v) {
					filled.Floats[i] = median
				}
			}
			fills = append(fills, Fill{Column: c.Name, Kind: Numeric, Value: FormatFloat(median), Cells: missing})
		case Categorical:
			mode, _ := Mode(c.Strings, c.Missing)
			for i := range filled.Strings {
				if filled.Missing[i] {
					filled.Strings[i] = mode
					filled.Missing[i] = false
				}
			}
			fills = append(fills, Fill{Column: c.Name, Kind: Categorical, Value: mode, Cells: missing})
		}
		cols = append(cols, filled)
	}

	out, err := NewTable(cols...)
	if err != nil {
		return nil, nil, err
	}
	return out, fills, nil
}
