// Package pipeline chains preprocessing transformers and composes them per
// column group into the preprocessor persisted next to the models.
package pipeline

import (
	"encoding/gob"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/preprocessing"
)

func init() {
	gob.Register(&preprocessing.SimpleImputer{})
	gob.Register(&preprocessing.StandardScaler{})
	gob.Register(&preprocessing.MinMaxScaler{})
}

// Step is a named transformer in a Pipeline.
type Step struct {
	Name        string
	Transformer model.Transformer
}

// Pipeline applies its steps in order. Fit fits each step on the output of
// the previous one.
type Pipeline struct {
	model.BaseEstimator

	Steps []Step
}

// New creates a Pipeline with the given steps.
func New(steps ...Step) *Pipeline {
	return &Pipeline{Steps: steps}
}

// Fit fits every step in order.
func (p *Pipeline) Fit(X mat.Matrix) error {
	_, err := p.FitTransform(X)
	return err
}

// FitTransform fits every step and returns the output of the last one.
func (p *Pipeline) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if len(p.Steps) == 0 {
		return nil, errors.NewValidationError("steps", "pipeline has no steps", 0)
	}
	_, c := X.Dims()
	Xt := X
	var err error
	for _, step := range p.Steps {
		Xt, err = step.Transformer.FitTransform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fit step '%s'", step.Name)
		}
	}
	p.SetFitted(c)
	return Xt, nil
}

// Transform runs X through the fitted steps without refitting any of them.
func (p *Pipeline) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Transform")
	}
	Xt := X
	var err error
	for _, step := range p.Steps {
		Xt, err = step.Transformer.Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to transform at step '%s'", step.Name)
		}
	}
	return Xt, nil
}

// Step returns the transformer registered under name.
func (p *Pipeline) Step(name string) (model.Transformer, bool) {
	for _, s := range p.Steps {
		if s.Name == name {
			return s.Transformer, true
		}
	}
	return nil, false
}

func (p *Pipeline) String() string {
	parts := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		parts[i] = fmt.Sprintf("(%s, %v)", s.Name, s.Transformer)
	}
	return "Pipeline[" + strings.Join(parts, ", ") + "]"
}
