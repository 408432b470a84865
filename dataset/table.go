// Package dataset holds the in-memory tabular representation shared by every
// pipeline stage, together with CSV I/O and the cleaning primitives.
//
// A Table is a list of equally long columns. Numeric columns store float64
// values with NaN marking a missing cell; categorical columns store strings
// with an explicit missing mask.
package dataset

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

// Kind is the value type of a column.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "categorical"
}

// Column is one named column of a Table.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
	Missing []bool
}

// NumericColumn builds a numeric column. NaN values are missing.
func NumericColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Numeric, Floats: values}
}

// CategoricalColumn builds a categorical column. A nil mask means no cell is missing.
func CategoricalColumn(name string, values []string, missing []bool) *Column {
	if missing == nil {
		missing = make([]bool, len(values))
	}
	return &Column{Name: name, Kind: Categorical, Strings: values, Missing: missing}
}

// Len returns the number of cells.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Floats)
	}
	return len(c.Strings)
}

// IsMissing reports whether cell i is missing.
func (c *Column) IsMissing(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Floats[i])
	}
	return c.Missing[i]
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// Cell returns the textual form of cell i, "" when missing.
func (c *Column) Cell(i int) string {
	if c.IsMissing(i) {
		return ""
	}
	if c.Kind == Numeric {
		return FormatFloat(c.Floats[i])
	}
	return c.Strings[i]
}

// Categories returns the column as strings with its missing mask. Numeric
// columns are rendered with FormatFloat so they can be one-hot encoded.
func (c *Column) Categories() ([]string, []bool) {
	if c.Kind == Categorical {
		return c.Strings, c.Missing
	}
	values := make([]string, len(c.Floats))
	missing := make([]bool, len(c.Floats))
	for i, v := range c.Floats {
		if math.IsNaN(v) {
			missing[i] = true
			continue
		}
		values[i] = FormatFloat(v)
	}
	return values, missing
}

func (c *Column) subset(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Numeric {
		out.Floats = make([]float64, len(rows))
		for i, r := range rows {
			out.Floats[i] = c.Floats[r]
		}
		return out
	}
	out.Strings = make([]string, len(rows))
	out.Missing = make([]bool, len(rows))
	for i, r := range rows {
		out.Strings[i] = c.Strings[r]
		out.Missing[i] = c.Missing[r]
	}
	return out
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Numeric {
		out.Floats = append([]float64(nil), c.Floats...)
		return out
	}
	out.Strings = append([]string(nil), c.Strings...)
	out.Missing = append([]bool(nil), c.Missing...)
	return out
}

// Table is an ordered set of equally long columns.
type Table struct {
	cols  []*Column
	index map[string]int
	nrows int
}

// NewTable validates that column names are unique and lengths agree.
func NewTable(cols ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := t.index[c.Name]; dup {
			return nil, errors.NewPipelineError(errors.KindSchemaMismatch, "dataset.NewTable", "duplicate column %q", c.Name)
		}
		if c.Kind == Categorical && len(c.Missing) != len(c.Strings) {
			return nil, errors.NewPipelineError(errors.KindSchemaMismatch, "dataset.NewTable", "column %q has a malformed missing mask", c.Name)
		}
		if i == 0 {
			t.nrows = c.Len()
		} else if c.Len() != t.nrows {
			return nil, errors.NewPipelineError(errors.KindSchemaMismatch, "dataset.NewTable",
				"column %q has %d rows, expected %d", c.Name, c.Len(), t.nrows)
		}
		t.index[c.Name] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// MustTable is NewTable for statically known, valid input.
func MustTable(cols ...*Column) *Table {
	t, err := NewTable(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) NRows() int { return t.nrows }
func (t *Table) NCols() int { return len(t.cols) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order. The slice must not be modified.
func (t *Table) Columns() []*Column {
	return t.cols
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Absent returns the names that are not columns of t, in the given order.
func (t *Table) Absent(names ...string) []string {
	var out []string
	for _, n := range names {
		if !t.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// Select returns a new table with the given rows, in the given order.
func (t *Table) Select(rows []int) *Table {
	out := &Table{index: make(map[string]int, len(t.cols)), nrows: len(rows)}
	for i, c := range t.cols {
		out.cols = append(out.cols, c.subset(rows))
		out.index[c.Name] = i
	}
	return out
}

// Drop returns a new table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := &Table{index: make(map[string]int, len(t.cols)), nrows: t.nrows}
	for _, c := range t.cols {
		if skip[c.Name] {
			continue
		}
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, c)
	}
	return out
}

// WithColumn returns a new table with c appended, or replacing the column of the same name.
func (t *Table) WithColumn(c *Column) (*Table, error) {
	cols := make([]*Column, 0, len(t.cols)+1)
	replaced := false
	for _, existing := range t.cols {
		if existing.Name == c.Name {
			cols = append(cols, c)
			replaced = true
			continue
		}
		cols = append(cols, existing)
	}
	if !replaced {
		cols = append(cols, c)
	}
	return NewTable(cols...)
}

// Floats returns the values of a numeric column.
func (t *Table) Floats(name string) ([]float64, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, errors.NewPipelineError(errors.KindSchemaMismatch, "dataset.Floats", "column %q not found", name)
	}
	if c.Kind != Numeric {
		return nil, errors.NewPipelineError(errors.KindSchemaMismatch, "dataset.Floats", "column %q is %s, expected numeric", name, c.Kind)
	}
	return c.Floats, nil
}

// Matrix stacks the named numeric columns into an n×len(names) matrix.
func (t *Table) Matrix(names ...string) (*mat.Dense, error) {
	if t.nrows == 0 || len(names) == 0 {
		return nil, errors.NewPipelineError(errors.KindDataQuality, "dataset.Matrix", "cannot build a %dx%d matrix", t.nrows, len(names))
	}
	m := mat.NewDense(t.nrows, len(names), nil)
	for j, name := range names {
		values, err := t.Floats(name)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// RowKey returns a string identifying the full contents of row i.
func (t *Table) RowKey(i int) string {
	var b strings.Builder
	for j, c := range t.cols {
		if j > 0 {
			b.WriteByte('\x1f')
		}
		if c.IsMissing(i) {
			b.WriteByte('\x00')
			continue
		}
		b.WriteString(c.Cell(i))
	}
	return b.String()
}

// Preview renders the first n rows as aligned text for log output.
func (t *Table) Preview(n int) string {
	if n > t.nrows {
		n = t.nrows
	}
	widths := make([]int, len(t.cols))
	for j, c := range t.cols {
		widths[j] = len(c.Name)
		for i := 0; i < n; i++ {
			if l := len(c.Cell(i)); l > widths[j] {
				widths[j] = l
			}
		}
	}
	var b strings.Builder
	for j, c := range t.cols {
		fmt.Fprintf(&b, "%-*s ", widths[j], c.Name)
	}
	b.WriteByte('\n')
	for i := 0; i < n; i++ {
		for j, c := range t.cols {
			fmt.Fprintf(&b, "%-*s ", widths[j], c.Cell(i))
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
