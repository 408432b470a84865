package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlpipe/internal/artifact"
	"github.com/YuminosukeSato/mlpipe/internal/config"
	"github.com/YuminosukeSato/mlpipe/internal/evaluate"
	"github.com/YuminosukeSato/mlpipe/internal/ingest"
	"github.com/YuminosukeSato/mlpipe/internal/predict"
	"github.com/YuminosukeSato/mlpipe/internal/report"
	"github.com/YuminosukeSato/mlpipe/internal/transform"
	"github.com/YuminosukeSato/mlpipe/internal/tuning"
	"github.com/YuminosukeSato/mlpipe/pipeline"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

// Model selectors for --model.
const (
	modelBest  = "best"
	modelTuned = "tuned"
)

func (a *app) modelPath(which string) (string, error) {
	switch which {
	case modelBest:
		return a.cfg.Artifact(config.BestModelFile), nil
	case modelTuned:
		return a.cfg.Artifact(config.TunedModelFile), nil
	}
	return "", errors.NewValidationError("model", "must be best or tuned", which)
}

func (a *app) ingestion() *ingest.Ingestion {
	return ingest.NewIngestion(a.logger, a.cfg.Data.Categorical, a.cfg.Split.TestSize, a.cfg.Split.Seed)
}

func (a *app) ingest(ctx context.Context) error {
	t, err := a.ingestion().Clean(ctx, a.cfg.Paths.Raw, a.cfg.CleanedPath())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s cleaned %d rows -> %s\n", a.green("✔"), t.NRows(), a.cfg.CleanedPath())
	return nil
}

func (a *app) split(ctx context.Context) error {
	if err := a.ingestion().Split(ctx, a.cfg.CleanedPath(), a.cfg.TrainPath(), a.cfg.TestPath()); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s split -> %s, %s\n", a.green("✔"), a.cfg.TrainPath(), a.cfg.TestPath())
	return nil
}

func (a *app) transform(ctx context.Context, withEvaluation bool) error {
	cfg := a.cfg
	schema := transform.Schema{Target: cfg.Data.Target, Numeric: cfg.Data.Numeric, Categorical: cfg.Data.Categorical}
	out := transform.Outputs{
		Preprocessor: cfg.Artifact(config.PreprocessorFile),
		Train:        cfg.Artifact(config.TransformedTrainFile),
		Test:         cfg.Artifact(config.TransformedTestFile),
		BestModel:    cfg.Artifact(config.BestModelFile),
	}
	dt := transform.New(a.logger, schema, pipeline.Options{NumericScaler: cfg.Preprocessing.NumericScaler}, out, a.runID)
	if withEvaluation {
		e := evaluate.NewEngine(a.logger, evaluate.Roster(cfg.Evaluation.Seed))
		e.Workers = cfg.Evaluation.Workers
		dt.Engine = e
	}

	res, err := dt.Run(ctx, cfg.TrainPath(), cfg.TestPath(), withEvaluation)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s transformed %d features -> %s\n", a.green("✔"), len(res.FeatureNames), cfg.Paths.Artifacts)
	if res.Report != nil {
		a.printLeaderboard(res.Report)
	}
	return nil
}

func (a *app) tune(ctx context.Context) error {
	cfg := a.cfg
	t := tuning.New(a.logger, cfg.Tuning.Alphas, cfg.Tuning.Solvers, cfg.Tuning.Folds, cfg.Tuning.Workers)
	res, err := t.Run(ctx, cfg.Artifact(config.TransformedTrainFile), cfg.Artifact(config.TunedModelFile), a.runID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s tuned Ridge alpha=%v solver=%v (CV R2: %.4f) -> %s\n",
		a.green("✔"), res.BestParams["alpha"], res.BestParams["solver"], res.BestScore, res.Path)
	return nil
}

func (a *app) predictor(which string) (*predict.Predictor, error) {
	path, err := a.modelPath(which)
	if err != nil {
		return nil, err
	}
	return predict.Load(a.logger, a.cfg.Artifact(config.PreprocessorFile), path, a.cfg.Data.Target)
}

func (a *app) predict(ctx context.Context, which, input, output string) error {
	p, err := a.predictor(which)
	if err != nil {
		return err
	}
	if input == "" {
		input = a.cfg.CleanedPath()
	}
	if output == "" {
		output = a.cfg.Artifact(strings.Replace(config.PredictionsFile, modelTuned, which, 1))
	}
	_, pred, err := p.PredictFile(ctx, input)
	if err != nil {
		return err
	}
	if err := report.SavePredictions(output, pred); err != nil {
		return errors.Logged(a.logger, err)
	}
	fmt.Fprintf(a.out, "%s %d predictions (%s model) -> %s\n", a.green("✔"), len(pred), which, output)
	return nil
}

func (a *app) compare(ctx context.Context) error {
	before, err := a.predictor(modelBest)
	if err != nil {
		return err
	}
	after, err := a.predictor(modelTuned)
	if err != nil {
		return err
	}
	c, err := report.CompareR2(ctx, a.logger, a.cfg.CleanedPath(), before, after, a.cfg.Artifact(config.R2ComparisonFile))
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, c.Text())
	return nil
}

func (a *app) importance(which string) error {
	path, err := a.modelPath(which)
	if err != nil {
		return err
	}
	ct, err := artifact.LoadPreprocessor(a.cfg.Artifact(config.PreprocessorFile))
	if err != nil {
		return errors.Logged(a.logger, err)
	}
	m, err := artifact.LoadRegressor(path)
	if err != nil {
		return errors.Logged(a.logger, err)
	}
	out := a.cfg.Artifact(config.FeatureImportanceFile)
	mw, err := report.PlotFeatureImportance(a.logger, m.Regressor, ct.FeatureNames(), out)
	if err != nil {
		return err
	}
	if mw == nil {
		fmt.Fprintf(a.out, "%s feature importance not available for %s\n", a.yellow("!"), m.Name)
		return nil
	}
	fmt.Fprintf(a.out, "%s feature importance of %s -> %s\n", a.green("✔"), m.Name, out)
	return nil
}

func (a *app) ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Deduplicate the raw CSV and fill missing values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.ingest(cmd.Context())
		},
	}
}

func (a *app) splitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "split",
		Short: "Split the cleaned CSV into train and test sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.split(cmd.Context())
		},
	}
}

func (a *app) transformCmd() *cobra.Command {
	var withEvaluation bool
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Fit the preprocessor on train, transform both splits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.transform(cmd.Context(), withEvaluation)
		},
	}
	cmd.Flags().BoolVar(&withEvaluation, "evaluate", false, "train and compare the model roster, saving the best")
	return cmd
}

func (a *app) tuneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tune",
		Short: "Grid-search Ridge with cross-validation and save the tuned model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.tune(cmd.Context())
		},
	}
}

func (a *app) predictCmd() *cobra.Command {
	var which, input, output string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict a CSV with the saved preprocessor and model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.predict(cmd.Context(), which, input, output)
		},
	}
	cmd.Flags().StringVar(&which, "model", modelTuned, "model to use: best or tuned")
	cmd.Flags().StringVar(&input, "input", "", "CSV to predict (default: the cleaned dataset)")
	cmd.Flags().StringVar(&output, "output", "", "predictions CSV (default: artifacts/predictions_<model>_model.csv)")
	return cmd
}

func (a *app) compareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare",
		Short: "Compare R2 of the best and the tuned model on the cleaned data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.compare(cmd.Context())
		},
	}
}

func (a *app) importanceCmd() *cobra.Command {
	var which string
	cmd := &cobra.Command{
		Use:   "importance",
		Short: "Plot the model's feature coefficients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.importance(which)
		},
	}
	cmd.Flags().StringVar(&which, "model", modelBest, "model to plot: best or tuned")
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every stage in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runAll(cmd.Context())
		},
	}
}

// runAll runs the stages in order and stops at the first failure.
func (a *app) runAll(ctx context.Context) error {
	stages := []struct {
		name string
		fn   func() error
	}{
		{"ingest", func() error { return a.ingest(ctx) }},
		{"split", func() error { return a.split(ctx) }},
		{"transform", func() error { return a.transform(ctx, true) }},
		{"tune", func() error { return a.tune(ctx) }},
		{"predict", func() error { return a.predict(ctx, modelTuned, "", "") }},
		{"compare", func() error { return a.compare(ctx) }},
		{"importance", func() error { return a.importance(modelBest) }},
	}
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, a.cyan("==> "+s.name))
		if err := s.fn(); err != nil {
			return errors.Wrapf(err, "stage %s", s.name)
		}
	}
	a.logger.Info("Pipeline completed")
	return nil
}
