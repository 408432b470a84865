package dataset

import (
	"bufio"
	"encoding/csv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

// NaNValues are the cell spellings read as missing.
var NaNValues = []string{"", "NA", "N/A", "NaN", "nan", "null", "<nil>"}

// FormatFloat renders v with the shortest representation that round-trips.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadCSV parses a headed CSV stream. Column kinds are detected from the
// values; columns listed in categorical are always read as text.
func ReadCSV(r io.Reader, categorical ...string) (*Table, error) {
	return ReadCSVSchema(r, nil, categorical)
}

// ReadCSVSchema is ReadCSV with known column kinds. Columns listed in numeric
// are read as numbers even when every cell is missing, so an empty column
// still reaches the median imputer.
func ReadCSVSchema(r io.Reader, numeric, categorical []string) (*Table, error) {
	const op = "dataset.ReadCSV"

	opts := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(NaNValues),
	}
	if len(numeric)+len(categorical) > 0 {
		types := make(map[string]series.Type, len(numeric)+len(categorical))
		for _, name := range numeric {
			types[name] = series.Float
		}
		for _, name := range categorical {
			types[name] = series.String
		}
		opts = append(opts, dataframe.WithTypes(types))
	}

	df := dataframe.ReadCSV(r, opts...)
	if df.Err != nil {
		return nil, errors.WrapKind(df.Err, errors.KindParse, op, "malformed CSV")
	}

	cols := make([]*Column, 0, df.Ncol())
	for _, name := range df.Names() {
		s := df.Col(name)
		switch s.Type() {
		case series.Int, series.Float:
			cols = append(cols, NumericColumn(name, s.Float()))
		default:
			records := s.Records()
			missing := s.IsNaN()
			for i := range records {
				if missing[i] {
					records[i] = ""
				}
			}
			cols = append(cols, CategoricalColumn(name, records, missing))
		}
	}
	t, err := NewTable(cols...)
	if err != nil {
		return nil, errors.WrapKind(err, errors.KindParse, op, "inconsistent CSV")
	}
	return t, nil
}

// LoadCSV reads the CSV file at path. A missing file is KindMissingInput, a
// malformed file KindParse and any other read failure KindIO.
func LoadCSV(path string, categorical ...string) (*Table, error) {
	return LoadCSVSchema(path, nil, categorical)
}

// LoadCSVSchema is LoadCSV with the column kinds of ReadCSVSchema.
func LoadCSVSchema(path string, numeric, categorical []string) (*Table, error) {
	const op = "dataset.LoadCSV"
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.WrapKind(err, errors.KindMissingInput, op, "file %s not found", path)
		}
		return nil, errors.WrapKind(err, errors.KindIO, op, "open %s", path)
	}
	defer f.Close()

	if info, err := f.Stat(); err != nil {
		return nil, errors.WrapKind(err, errors.KindIO, op, "stat %s", path)
	} else if info.IsDir() {
		return nil, errors.NewPipelineError(errors.KindIO, op, "%s is a directory", path)
	}

	return ReadCSVSchema(bufio.NewReader(f), numeric, categorical)
}

// WriteCSV writes the table with a header row. Missing cells are empty.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return err
	}
	record := make([]string, len(t.cols))
	for i := 0; i < t.nrows; i++ {
		for j, c := range t.cols {
			record[j] = c.Cell(i)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the table to path through a temporary file and a rename,
// creating parent directories as needed.
func SaveCSV(path string, t *Table) (err error) {
	const op = "dataset.SaveCSV"
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapKind(err, errors.KindIO, op, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.WrapKind(err, errors.KindIO, op, "create temp file for %s", path)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := t.WriteCSV(bw); err != nil {
		_ = tmp.Close()
		return errors.WrapKind(err, errors.KindIO, op, "write %s", path)
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return errors.WrapKind(err, errors.KindIO, op, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapKind(err, errors.KindIO, op, "close %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.WrapKind(err, errors.KindIO, op, "rename to %s", path)
	}
	return nil
}
