// Standard attribute keys for pipeline logging. Keys follow a hierarchical
// naming convention ("model.name", "data.samples") so logs can be filtered
// by prefix.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator or roster candidate.
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies the pipeline component that owns the logger.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"

	// RunIDKey ties every record of one pipeline run together.
	RunIDKey = "run.id"
)

// Data Shape and Characteristics
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ColumnKey   = "data.column"
	PathKey     = "io.path"
)

// Performance Metrics
const (
	DurationMsKey = "perf.duration_ms"
	MAEKey        = "metrics.mae"
	RMSEKey       = "metrics.rmse"
	R2ScoreKey    = "metrics.r2_score"
	IterationKey  = "training.iteration"
	FoldKey       = "cv.fold"
)

// Error Context
const (
	ErrorKindKey = "error.kind"
	ErrorTypeKey = "error.type"
)

// Hyperparameters and Configuration
const (
	HyperParamsKey    = "model.hyperparams"
	RegularizationKey = "hyperparams.regularization"
	RandomSeedKey     = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"
	OperationLoad         = "load"
	OperationSave         = "save"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
