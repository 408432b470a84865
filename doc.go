// Package mlpipe is a regression pipeline that predicts a student's math
// score from their other scores and demographic attributes.
//
// The pipeline is a fixed sequence of stages, each of which reads the files
// the previous one wrote:
//
//   - ingest: load the raw CSV, drop duplicate rows, fill missing values
//     (median for numeric columns, mode for categorical ones)
//   - split: shuffle with a fixed seed and hold out a test fraction
//   - transform: fit the preprocessor on the training split only, transform
//     both splits, optionally evaluate the model roster and keep the best
//   - tune: grid-search Ridge over alpha and solver with k-fold CV
//   - predict, compare, importance: serve predictions from the saved
//     artifacts and report on them
//
// # Installation
//
//	go install github.com/YuminosukeSato/mlpipe/cmd/mlpipe@latest
//
// # Quick Start
//
//	mlpipe run                       # every stage with config/pipeline.yaml
//	mlpipe transform --evaluate      # one stage
//	mlpipe predict --model tuned --input new_students.csv
//
// # Library use
//
// The stages are plain Go packages under internal/ wired by cmd/mlpipe. The
// model packages are importable on their own:
//
//	ridge := linear.NewRidge(linear.WithAlpha(1.0))
//	if err := ridge.Fit(X, y); err != nil {
//	    return err
//	}
//	pred, err := ridge.Predict(XTest)
//
// # Packages
//
//   - dataset: column-typed tables, CSV IO, cleaning
//   - preprocessing, pipeline: imputers, scalers, one-hot encoding and the
//     column transformer that combines them
//   - linear, sklearn/tree, sklearn/ensemble, sklearn/neighbors: regressors
//   - sklearn/model_selection: train/test split, KFold, GridSearchCV
//   - metrics: MAE, RMSE, R²
//   - core/model: estimator interfaces and gob artifacts
//   - pkg/errors, pkg/log: error kinds and structured logging
//
// # Errors
//
// Every stage failure carries an errors.Kind (missing_input, parse, io,
// schema_mismatch, data_quality, fit_failure, persistence) that callers can
// test with errors.IsKind, and is logged once with that kind before it is
// returned.
package mlpipe
