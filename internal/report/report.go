// Package report produces the human-facing outputs of a run: the R²
// comparison between the best and the tuned model, the predictions CSV and
// the feature importance chart.
package report

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/dataset"
	"github.com/YuminosukeSato/mlpipe/internal/artifact"
	"github.com/YuminosukeSato/mlpipe/internal/predict"
	"github.com/YuminosukeSato/mlpipe/metrics"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/pkg/log"
)

// PredictionsColumn is the header of the predictions CSV.
const PredictionsColumn = "Predicted Values"

// R2Places is the number of decimal places written to the comparison file.
const R2Places = 6

// Comparison holds the R² of the best model before and after tuning.
type Comparison struct {
	Before float64
	After  float64
	Path   string
}

// Text renders the comparison file contents.
func (c *Comparison) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "R2 Score before tuning: %s\n", round(c.Before))
	fmt.Fprintf(&b, "R2 Score after tuning: %s\n", round(c.After))
	return b.String()
}

func round(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprint(v)
	}
	return decimal.NewFromFloat(v).Round(R2Places).String()
}

// CompareR2 scores both predictors on the cleaned data at dataPath against
// its target column and writes the result to outPath.
func CompareR2(ctx context.Context, logger log.Logger, dataPath string, before, after *predict.Predictor, outPath string) (*Comparison, error) {
	const op = "report.CompareR2"
	logger = logger.With(log.ComponentKey, "report")

	t, err := dataset.LoadCSV(dataPath, before.Preprocessor.CategoricalColumns...)
	if err != nil {
		return nil, errors.Logged(logger, err)
	}
	y, err := t.Floats(before.Target)
	if err != nil {
		return nil, errors.Logged(logger, err)
	}

	c := &Comparison{Path: outPath}
	for _, s := range []struct {
		p   *predict.Predictor
		dst *float64
	}{{before, &c.Before}, {after, &c.After}} {
		logger.Info("Making predictions", log.ModelNameKey, s.p.Model.Name)
		pred, err := s.p.Predict(ctx, t)
		if err != nil {
			return nil, err
		}
		r2, err := metrics.R2Score(mat.NewVecDense(len(y), y), mat.NewVecDense(len(pred), pred), log.Warnings(logger))
		if err != nil {
			return nil, errors.Logged(logger, errors.Classify(err, errors.KindDataQuality, op))
		}
		*s.dst = r2
	}

	logger.Info("R2 Score before tuning", log.R2ScoreKey, c.Before)
	logger.Info("R2 Score after tuning", log.R2ScoreKey, c.After)

	b := artifact.NewBatch()
	if err := b.StageWriterTo(outPath, strings.NewReader(c.Text())); err != nil {
		return nil, errors.Logged(logger, err)
	}
	if err := b.Commit(); err != nil {
		return nil, errors.Logged(logger, err)
	}
	logger.Info("R2 comparison saved", log.PathKey, outPath)
	return c, nil
}

// SavePredictions writes pred as a single column CSV.
func SavePredictions(path string, pred []float64) error {
	t, err := dataset.NewTable(dataset.NumericColumn(PredictionsColumn, append([]float64(nil), pred...)))
	if err != nil {
		return err
	}
	return dataset.SaveCSV(path, t)
}

// PlotFeatureImportance draws the model's coefficients (or importances) as
// a bar chart over features and saves it as a PNG at path. A model without
// either is logged and skipped: the returned weights are nil and the error
// is nil.
func PlotFeatureImportance(logger log.Logger, m model.Regressor, features []string, path string) (*model.ModelWeights, error) {
	const op = "report.PlotFeatureImportance"
	logger = logger.With(log.ComponentKey, "report")

	mw, err := model.ExtractWeights(m, features)
	if errors.Is(err, model.ErrNoWeights) {
		logger.Info("Feature importance not available for this model.")
		return nil, nil
	}
	if err != nil {
		return nil, errors.Logged(logger, errors.Classify(err, errors.KindFitFailure, op))
	}

	p := plot.New()
	p.Title.Text = "Feature Importances (Coefficients)"
	p.X.Label.Text = "Features"
	p.Y.Label.Text = "Coefficient Value"
	if mw.Source == model.SourceImportances {
		p.Title.Text = "Feature Importances"
		p.Y.Label.Text = "Importance"
	}

	bars, err := plotter.NewBarChart(plotter.Values(mw.Values), vg.Points(12))
	if err != nil {
		return nil, errors.Logged(logger, errors.WrapKind(err, errors.KindPersistence, op, "build chart"))
	}
	bars.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars, plotter.NewGrid())
	p.NominalX(mw.Features...)
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	img, err := p.WriterTo(10*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return nil, errors.Logged(logger, errors.WrapKind(err, errors.KindPersistence, op, "render chart"))
	}
	b := artifact.NewBatch()
	if err := b.StageWriterTo(path, img); err != nil {
		return nil, errors.Logged(logger, err)
	}
	if err := b.Commit(); err != nil {
		return nil, errors.Logged(logger, err)
	}
	logger.Info("Feature importance plot saved", log.PathKey, path, log.FeaturesKey, len(mw.Features))
	return mw, nil
}
