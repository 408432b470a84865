// Package artifact persists the fitted preprocessor and regressors of a run.
//
// Every concrete estimator type is registered with encoding/gob by its own
// package; importing them here guarantees the registrations have run before
// any artifact is decoded.
package artifact

import (
	"github.com/google/uuid"

	"github.com/YuminosukeSato/mlpipe/core/model"
	_ "github.com/YuminosukeSato/mlpipe/linear"
	"github.com/YuminosukeSato/mlpipe/pipeline"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	_ "github.com/YuminosukeSato/mlpipe/sklearn/ensemble"
	_ "github.com/YuminosukeSato/mlpipe/sklearn/neighbors"
	_ "github.com/YuminosukeSato/mlpipe/sklearn/tree"
)

// PreprocessorName is the artifact name of the fitted ColumnTransformer.
const PreprocessorName = "preprocessor"

// NewRunID returns a fresh identifier stamped on every artifact of one run.
func NewRunID() string {
	return uuid.NewString()
}

// Preprocessor wraps a fitted ColumnTransformer in an artifact envelope.
func Preprocessor(runID string, ct *pipeline.ColumnTransformer) *model.Artifact {
	return model.NewArtifact(model.KindPreprocessor, PreprocessorName, runID, ct)
}

// Regressor wraps a fitted model in an artifact envelope.
func Regressor(name, runID string, m model.Regressor) *model.Artifact {
	return model.NewArtifact(model.KindModel, name, runID, m)
}

// SaveRegressor writes a fitted model to path.
func SaveRegressor(path, name, runID string, m model.Regressor) error {
	if m == nil || !m.IsFitted() {
		return errors.NewPipelineError(errors.KindPersistence, "artifact.SaveRegressor",
			"model %q is not fitted", name)
	}
	return model.SaveArtifact(path, Regressor(name, runID, m))
}

// LoadPreprocessor reads a fitted ColumnTransformer. A file holding any other
// payload is KindPersistence.
func LoadPreprocessor(path string) (*pipeline.ColumnTransformer, error) {
	const op = "artifact.LoadPreprocessor"
	a, err := model.LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	ct, ok := a.Payload.(*pipeline.ColumnTransformer)
	if a.Kind != model.KindPreprocessor || !ok {
		return nil, errors.NewPipelineError(errors.KindPersistence, op,
			"%s holds a %s artifact, not a preprocessor", path, a.Kind)
	}
	if !ct.IsFitted() {
		return nil, errors.NewPipelineError(errors.KindPersistence, op, "preprocessor in %s is not fitted", path)
	}
	return ct, nil
}

// Model is a regressor read back from disk with its envelope metadata.
type Model struct {
	Name      string
	RunID     string
	Regressor model.Regressor
}

// LoadRegressor reads a fitted model.
func LoadRegressor(path string) (*Model, error) {
	const op = "artifact.LoadRegressor"
	a, err := model.LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	reg, ok := a.Payload.(model.Regressor)
	if a.Kind != model.KindModel || !ok {
		return nil, errors.NewPipelineError(errors.KindPersistence, op,
			"%s holds a %s artifact, not a model", path, a.Kind)
	}
	if !reg.IsFitted() {
		return nil, errors.NewPipelineError(errors.KindPersistence, op, "model in %s is not fitted", path)
	}
	return &Model{Name: a.Name, RunID: a.RunID, Regressor: reg}, nil
}
