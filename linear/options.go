package linear

// Ridge solvers.
const (
	SolverAuto     = "auto"
	SolverSVD      = "svd"
	SolverCholesky = "cholesky"
	SolverLSQR     = "lsqr"
)

// Solvers lists every solver accepted by Ridge.
var Solvers = []string{SolverAuto, SolverSVD, SolverCholesky, SolverLSQR}

type options struct {
	alpha        float64
	solver       string
	maxIter      int
	tol          float64
	fitIntercept bool
}

func defaultOptions() options {
	return options{
		alpha:        1.0,
		solver:       SolverAuto,
		maxIter:      1000,
		tol:          1e-4,
		fitIntercept: true,
	}
}

// Option is a function that configures Ridge and Lasso
type Option func(*options)

// WithAlpha sets the regularization strength
func WithAlpha(alpha float64) Option {
	return func(o *options) {
		o.alpha = alpha
	}
}

// WithSolver selects the Ridge solver. Lasso ignores it.
func WithSolver(solver string) Option {
	return func(o *options) {
		o.solver = solver
	}
}

// WithMaxIter sets the iteration limit of the iterative solvers
func WithMaxIter(n int) Option {
	return func(o *options) {
		o.maxIter = n
	}
}

// WithTol sets the tolerance for the optimization
func WithTol(tol float64) Option {
	return func(o *options) {
		o.tol = tol
	}
}

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(o *options) {
		o.fitIntercept = fit
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
