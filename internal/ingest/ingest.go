// Package ingest covers the first three stages of the pipeline: loading the
// raw CSV, cleaning it and splitting it into train and test sets.
package ingest

import (
	"context"
	"time"

	"github.com/YuminosukeSato/mlpipe/dataset"
	"github.com/YuminosukeSato/mlpipe/internal/artifact"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/pkg/log"
	"github.com/YuminosukeSato/mlpipe/sklearn/model_selection"
)

// previewRows is the number of rows logged after a load.
const previewRows = 5

// Loader reads a headed CSV file into a Table.
type Loader struct {
	// Categorical columns are always read as text, even when every value
	// looks numeric.
	Categorical []string
	logger      log.Logger
}

func NewLoader(logger log.Logger, categorical ...string) *Loader {
	return &Loader{Categorical: categorical, logger: logger.With(log.ComponentKey, "loader")}
}

// Load reads path. Failures are classified MissingInput, Parse or IO.
func (l *Loader) Load(ctx context.Context, path string) (*dataset.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	t, err := dataset.LoadCSV(path, l.Categorical...)
	if err != nil {
		return nil, errors.Logged(l.logger, err)
	}
	l.logger.Info("Data loaded",
		log.PathKey, path,
		log.SamplesKey, t.NRows(),
		log.FeaturesKey, t.NCols(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	l.logger.Debug("Data preview\n" + t.Preview(previewRows))
	return t, nil
}

// Cleaner removes duplicate rows and fills missing cells.
type Cleaner struct {
	logger log.Logger
}

func NewCleaner(logger log.Logger) *Cleaner {
	return &Cleaner{logger: logger.With(log.ComponentKey, "cleaner")}
}

// Clean drops exact duplicates (first occurrence kept) and then fills numeric
// gaps with the column median and categorical gaps with the column mode.
func (c *Cleaner) Clean(t *dataset.Table) (*dataset.Table, error) {
	deduped, dropped := dataset.DropDuplicates(t)
	c.logger.Info("Duplicates removed", "rows.dropped", dropped, log.SamplesKey, deduped.NRows())

	filled, fills, err := dataset.FillMissing(deduped)
	if err != nil {
		return nil, errors.Logged(c.logger, err)
	}
	for _, f := range fills {
		c.logger.Info("Missing values filled",
			log.ColumnKey, f.Column,
			"fill.kind", f.Kind.String(),
			"fill.value", f.Value,
			"fill.cells", f.Cells,
		)
	}
	return filled, nil
}

// Splitter partitions a table into train and test rows.
type Splitter struct {
	TestSize float64
	Seed     int64
	logger   log.Logger
}

func NewSplitter(logger log.Logger, testSize float64, seed int64) *Splitter {
	return &Splitter{TestSize: testSize, Seed: seed, logger: logger.With(log.ComponentKey, "splitter")}
}

// Split returns the train and test tables. The same seed and input always
// give the same partition.
func (s *Splitter) Split(t *dataset.Table) (train, test *dataset.Table, err error) {
	trainIdx, testIdx, err := model_selection.TrainTestSplitIndices(t.NRows(), s.TestSize, s.Seed)
	if err != nil {
		return nil, nil, errors.Logged(s.logger, errors.Classify(err, errors.KindDataQuality, "ingest.Split"))
	}
	train, test = t.Select(trainIdx), t.Select(testIdx)
	s.logger.Info("Data split",
		"rows.train", train.NRows(),
		"rows.test", test.NRows(),
		log.RandomSeedKey, s.Seed,
	)
	return train, test, nil
}

// SplitTo splits t and writes both halves. Either both files are written or
// neither is.
func (s *Splitter) SplitTo(t *dataset.Table, trainPath, testPath string) error {
	train, test, err := s.Split(t)
	if err != nil {
		return err
	}
	b := artifact.NewBatch()
	if err := b.StageCSV(trainPath, train); err != nil {
		return errors.Logged(s.logger, err)
	}
	if err := b.StageCSV(testPath, test); err != nil {
		return errors.Logged(s.logger, err)
	}
	if err := b.Commit(); err != nil {
		return errors.Logged(s.logger, err)
	}
	s.logger.Info("Split saved", "path.train", trainPath, "path.test", testPath)
	return nil
}

// Ingestion chains the three stages over files.
type Ingestion struct {
	Loader   *Loader
	Cleaner  *Cleaner
	Splitter *Splitter
	logger   log.Logger
}

func NewIngestion(logger log.Logger, categorical []string, testSize float64, seed int64) *Ingestion {
	return &Ingestion{
		Loader:   NewLoader(logger, categorical...),
		Cleaner:  NewCleaner(logger),
		Splitter: NewSplitter(logger, testSize, seed),
		logger:   logger,
	}
}

// Clean loads rawPath, cleans it and saves the result to cleanedPath.
func (in *Ingestion) Clean(ctx context.Context, rawPath, cleanedPath string) (*dataset.Table, error) {
	t, err := in.Loader.Load(ctx, rawPath)
	if err != nil {
		return nil, err
	}
	cleaned, err := in.Cleaner.Clean(t)
	if err != nil {
		return nil, err
	}
	if err := dataset.SaveCSV(cleanedPath, cleaned); err != nil {
		return nil, errors.Logged(in.logger, err)
	}
	in.logger.Info("Cleaned data saved", log.PathKey, cleanedPath, log.SamplesKey, cleaned.NRows())
	return cleaned, nil
}

// Split loads cleanedPath and writes train and test CSVs.
func (in *Ingestion) Split(ctx context.Context, cleanedPath, trainPath, testPath string) error {
	t, err := in.Loader.Load(ctx, cleanedPath)
	if err != nil {
		return err
	}
	return in.Splitter.SplitTo(t, trainPath, testPath)
}
