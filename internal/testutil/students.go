// Package testutil builds synthetic student-score tables for tests.
package testutil

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlpipe/dataset"
)

var (
	Target      = "math_score"
	Numeric     = []string{"writing_score", "reading_score"}
	Categorical = []string{"gender", "race_ethnicity", "parental_level_of_education", "lunch", "test_preparation_course"}

	levels = map[string][]string{
		"gender":         {"female", "male"},
		"race_ethnicity": {"group A", "group B", "group C", "group D", "group E"},
		"parental_level_of_education": {
			"associate's degree", "bachelor's degree", "high school",
			"master's degree", "some college", "some high school",
		},
		"lunch":                   {"free/reduced", "standard"},
		"test_preparation_course": {"completed", "none"},
	}
)

// NCategories is the number of distinct categories over all categorical columns.
func NCategories() int {
	n := 0
	for _, name := range Categorical {
		n += len(levels[name])
	}
	return n
}

func score(v float64) float64 {
	return math.Round(math.Max(0, math.Min(100, v)))
}

// Students returns n rows in the layout of the students dataset. The first
// rows cycle through every category so any 80% sample sees all of them.
func Students(n int, seed int64) *dataset.Table {
	rng := rand.New(rand.NewSource(seed))
	cats := make(map[string][]string, len(Categorical))
	for _, name := range Categorical {
		cats[name] = make([]string, n)
	}
	reading := make([]float64, n)
	writing := make([]float64, n)
	mathScore := make([]float64, n)

	for i := 0; i < n; i++ {
		for _, name := range Categorical {
			lv := levels[name]
			if i < 2*len(lv) {
				cats[name][i] = lv[i%len(lv)]
			} else {
				cats[name][i] = lv[rng.Intn(len(lv))]
			}
		}
		r := 69 + 14*rng.NormFloat64()
		reading[i] = score(r)
		writing[i] = score(r - 1 + 4*rng.NormFloat64())

		m := 0.55*reading[i] + 0.35*writing[i]
		if cats["gender"][i] == "male" {
			m += 6
		}
		if cats["lunch"][i] == "standard" {
			m += 8
		}
		if cats["test_preparation_course"][i] == "none" {
			m -= 3
		}
		mathScore[i] = score(m + 3*rng.NormFloat64())
	}

	cols := make([]*dataset.Column, 0, len(Categorical)+3)
	for _, name := range Categorical {
		cols = append(cols, dataset.CategoricalColumn(name, cats[name], nil))
	}
	cols = append(cols,
		dataset.NumericColumn(Target, mathScore),
		dataset.NumericColumn("reading_score", reading),
		dataset.NumericColumn("writing_score", writing),
	)
	return dataset.MustTable(cols...)
}

// WriteStudents saves Students(n, seed) under dir and returns the path.
func WriteStudents(t testing.TB, dir, name string, n int, seed int64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, dataset.SaveCSV(path, Students(n, seed)))
	return path
}
