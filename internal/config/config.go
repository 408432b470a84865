// Package config loads the pipeline configuration from YAML.
//
// Every field has a default, so a missing file yields the stock student-score
// pipeline: data/uncleaned/students.csv, target math_score, a 0.2 test split
// with seed 42 and the Ridge grid used for tuning.
package config

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/mlpipe/pipeline"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/pkg/log"
)

// DefaultPath is the configuration file read when none is given.
const DefaultPath = "config/pipeline.yaml"

// Config is the root of pipeline.yaml.
type Config struct {
	Paths         Paths         `yaml:"paths"`
	Data          Data          `yaml:"data"`
	Split         Split         `yaml:"split"`
	Preprocessing Preprocessing `yaml:"preprocessing"`
	Evaluation    Evaluation    `yaml:"evaluation"`
	Tuning        Tuning        `yaml:"tuning"`
	Logging       Logging       `yaml:"logging"`
}

// Paths holds the on-disk layout.
type Paths struct {
	Raw       string `yaml:"raw"`
	Cleaned   string `yaml:"cleaned"`
	Artifacts string `yaml:"artifacts"`
	Logs      string `yaml:"logs"`
}

// Data names the target and the feature columns by kind.
type Data struct {
	Target      string   `yaml:"target"`
	Numeric     []string `yaml:"numeric"`
	Categorical []string `yaml:"categorical"`
}

type Split struct {
	TestSize float64 `yaml:"test_size"`
	Seed     int64   `yaml:"seed"`
}

type Preprocessing struct {
	NumericScaler string `yaml:"numeric_scaler"`
}

// Evaluation configures the candidate roster run. Workers <= 0 means one per CPU.
type Evaluation struct {
	Workers int   `yaml:"workers"`
	Seed    int64 `yaml:"seed"`
}

// Tuning configures the Ridge grid search.
type Tuning struct {
	Alphas  []float64 `yaml:"alphas"`
	Solvers []string  `yaml:"solvers"`
	Folds   int       `yaml:"folds"`
	Workers int       `yaml:"workers"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Paths: Paths{
			Raw:       filepath.Join("data", "uncleaned", "students.csv"),
			Cleaned:   filepath.Join("data", "cleaned"),
			Artifacts: "artifacts",
			Logs:      "logs",
		},
		Data: Data{
			Target:  "math_score",
			Numeric: []string{"writing_score", "reading_score"},
			Categorical: []string{
				"gender",
				"race_ethnicity",
				"parental_level_of_education",
				"lunch",
				"test_preparation_course",
			},
		},
		Split:         Split{TestSize: 0.2, Seed: 42},
		Preprocessing: Preprocessing{NumericScaler: pipeline.ScalerStandard},
		Evaluation:    Evaluation{Seed: 42},
		Tuning: Tuning{
			Alphas:  []float64{0.01, 0.1, 1, 10, 100},
			Solvers: []string{"auto", "svd", "cholesky", "lsqr"},
			Folds:   5,
		},
		Logging: Logging{Level: "info", Format: "console"},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// path is DefaultPath; an explicitly named file must exist.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.WrapKind(err, errors.KindMissingInput, op, "config %s not found", path)
		}
		return nil, errors.WrapKind(err, errors.KindIO, op, "read %s", path)
	}
	if err := cfg.decode(data); err != nil {
		return nil, errors.WrapKind(err, errors.KindParse, op, "invalid config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Classify(err, errors.KindParse, op)
	}
	return cfg, nil
}

// decode overlays YAML onto cfg. Unknown keys are rejected.
func (c *Config) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

// Validate rejects values no stage can run with.
func (c *Config) Validate() error {
	switch {
	case c.Data.Target == "":
		return errors.NewValidationError("data.target", "must not be empty", c.Data.Target)
	case len(c.Data.Numeric)+len(c.Data.Categorical) == 0:
		return errors.NewValidationError("data", "no feature columns configured", nil)
	case c.Split.TestSize <= 0 || c.Split.TestSize >= 1:
		return errors.NewValidationError("split.test_size", "must be in (0, 1)", c.Split.TestSize)
	case c.Tuning.Folds < 2:
		return errors.NewValidationError("tuning.folds", "must be at least 2", c.Tuning.Folds)
	case len(c.Tuning.Alphas) == 0:
		return errors.NewValidationError("tuning.alphas", "must not be empty", c.Tuning.Alphas)
	case len(c.Tuning.Solvers) == 0:
		return errors.NewValidationError("tuning.solvers", "must not be empty", c.Tuning.Solvers)
	}
	for _, name := range append(append([]string(nil), c.Data.Numeric...), c.Data.Categorical...) {
		if name == c.Data.Target {
			return errors.NewValidationError("data", "target is also listed as a feature", name)
		}
	}
	for _, a := range c.Tuning.Alphas {
		if a < 0 {
			return errors.NewValidationError("tuning.alphas", "must be non-negative", a)
		}
	}
	switch c.Preprocessing.NumericScaler {
	case pipeline.ScalerStandard, pipeline.ScalerMinMax:
	default:
		return errors.NewValidationError("preprocessing.numeric_scaler", "unknown scaler", c.Preprocessing.NumericScaler)
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return errors.NewValidationError("logging.level", err.Error(), c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json", "slog":
	default:
		return errors.NewValidationError("logging.format", "must be console, json or slog", c.Logging.Format)
	}
	return nil
}

// LogOptions converts the logging section for log.NewProvider.
func (c *Config) LogOptions() log.Options {
	level, _ := log.ParseLevel(c.Logging.Level)
	return log.Options{Level: level, Format: c.Logging.Format, Dir: c.Paths.Logs}
}

// Features returns numeric then categorical column names.
func (c *Config) Features() []string {
	out := make([]string, 0, len(c.Data.Numeric)+len(c.Data.Categorical))
	out = append(out, c.Data.Numeric...)
	return append(out, c.Data.Categorical...)
}

// DatasetName is the raw file name without extension, e.g. "students".
func (c *Config) DatasetName() string {
	base := filepath.Base(c.Paths.Raw)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (c *Config) CleanedPath() string {
	return filepath.Join(c.Paths.Cleaned, "cleaned_"+c.DatasetName()+".csv")
}

func (c *Config) TrainPath() string { return filepath.Join(c.Paths.Cleaned, "train.csv") }
func (c *Config) TestPath() string  { return filepath.Join(c.Paths.Cleaned, "test.csv") }

// Artifact joins name onto the artifacts directory.
func (c *Config) Artifact(name string) string {
	return filepath.Join(c.Paths.Artifacts, name)
}

// Artifact file names under Paths.Artifacts.
const (
	PreprocessorFile      = "preprocessor.gob"
	TransformedTrainFile  = "transformed_train_data.csv"
	TransformedTestFile   = "transformed_test_data.csv"
	BestModelFile         = "best_model.gob"
	TunedModelFile        = "tuned_model.gob"
	R2ComparisonFile      = "r2_comparison.txt"
	FeatureImportanceFile = "feature_importance.png"
	PredictionsFile       = "predictions_tuned_model.csv"
)

// Scaffold creates the directories the stages write into.
func (c *Config) Scaffold() error {
	for _, dir := range []string{filepath.Dir(c.Paths.Raw), c.Paths.Cleaned, c.Paths.Artifacts, c.Paths.Logs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapKind(err, errors.KindIO, "config.Scaffold", "create %s", dir)
		}
	}
	return nil
}
