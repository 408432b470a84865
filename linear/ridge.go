package linear

import (
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

func init() {
	gob.Register(&Ridge{})
}

// Ridge は L2 正則化付きの線形回帰。
//
//	minimize ||y - Xw||² + alpha * ||w||²
//
// 切片は正則化しない（X と y を中心化してから解く）。
type Ridge struct {
	model.BaseEstimator
	Coefficients

	Alpha        float64
	Solver       string
	MaxIter      int
	Tol          float64
	FitIntercept bool

	// NIter は lsqr が実際に行った反復回数（他のソルバーでは 0）
	NIter int

	// Warnings は収束警告の出力先。gob には載らない。
	Warnings errors.WarnFunc
}

// NewRidge は新しい Ridge モデルを作成する
//
//	ridge := linear.NewRidge(linear.WithAlpha(10), linear.WithSolver(linear.SolverSVD))
func NewRidge(opts ...Option) *Ridge {
	o := applyOptions(opts)
	return &Ridge{
		Alpha:        o.alpha,
		Solver:       o.solver,
		MaxIter:      o.maxIter,
		Tol:          o.tol,
		FitIntercept: o.fitIntercept,
	}
}

// Fit はモデルを訓練データで学習させる
func (r *Ridge) Fit(X, y mat.Matrix) error {
	const op = "Ridge.Fit"
	if r.Alpha < 0 || math.IsNaN(r.Alpha) {
		return errors.NewValidationError("alpha", "must be non-negative", r.Alpha)
	}
	_, p, err := checkFitInput(op, X, y)
	if err != nil {
		return err
	}

	Xc, yc, xMean, yMean := center(X, y, r.FitIntercept)

	var w []float64
	r.NIter = 0
	switch r.Solver {
	case SolverAuto, SolverCholesky:
		w, err = r.solveCholesky(op, Xc, yc)
		if errors.Is(err, errors.ErrSingularMatrix) {
			// 正定値でない場合は SVD にフォールバックする
			w, err = r.solveSVD(op, Xc, yc)
		}
	case SolverSVD:
		w, err = r.solveSVD(op, Xc, yc)
	case SolverLSQR:
		w, err = r.solveLSQR(op, Xc, yc)
	default:
		return errors.NewValidationError("solver", "unknown solver", r.Solver)
	}
	if err != nil {
		return err
	}
	if err := errors.CheckVector(op, w, r.NIter); err != nil {
		return err
	}

	r.setFromCentered(w, xMean, yMean)
	r.SetFitted(p)
	return nil
}

// solveCholesky は (XᵀX + αI) w = Xᵀy をコレスキー分解で解く
func (r *Ridge) solveCholesky(op string, X *mat.Dense, y []float64) ([]float64, error) {
	_, p := X.Dims()
	var gram mat.SymDense
	gram.SymOuterK(1, X.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.Alpha)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return nil, errors.NewModelError(op, "matrix is not positive definite", errors.ErrSingularMatrix)
	}

	xty := mat.NewVecDense(p, nil)
	xty.MulVec(X.T(), mat.NewVecDense(len(y), y))
	w := mat.NewVecDense(p, nil)
	if err := chol.SolveVecTo(w, xty); err != nil {
		return nil, errors.NewModelError(op, "cholesky solve failed", errors.ErrSingularMatrix)
	}
	return w.RawVector().Data, nil
}

// solveSVD は w = V diag(s / (s² + α)) Uᵀy を計算する
func (r *Ridge) solveSVD(op string, X *mat.Dense, y []float64) ([]float64, error) {
	s, U, V, err := thinSVD(op, X)
	if err != nil {
		return nil, err
	}
	return solveSpectral(s, U, V, y, func(sv float64) float64 {
		if sv <= 1e-15 {
			return 0
		}
		return sv / (sv*sv + r.Alpha)
	}), nil
}

// solveLSQR は正規方程式を作らずに共役勾配法 (CGLS) で減衰最小二乗問題を解く
func (r *Ridge) solveLSQR(op string, X *mat.Dense, y []float64) ([]float64, error) {
	n, p := X.Dims()
	maxIter := r.MaxIter
	if maxIter <= 0 {
		maxIter = max(2*p, 100)
	}
	tol := r.Tol
	if tol <= 0 {
		tol = 1e-4
	}

	w := make([]float64, p)
	res := mat.NewVecDense(n, append([]float64(nil), y...))
	s := mat.NewVecDense(p, nil)
	s.MulVec(X.T(), res)
	dir := mat.VecDenseCopyOf(s)
	q := mat.NewVecDense(n, nil)

	gamma := mat.Dot(s, s)
	stop := tol * math.Sqrt(gamma)
	if gamma == 0 {
		return w, nil
	}

	for r.NIter = 1; r.NIter <= maxIter; r.NIter++ {
		q.MulVec(X, dir)
		delta := mat.Dot(q, q) + r.Alpha*mat.Dot(dir, dir)
		if delta == 0 {
			break
		}
		step := gamma / delta
		floats.AddScaled(w, step, dir.RawVector().Data)
		res.AddScaledVec(res, -step, q)

		s.MulVec(X.T(), res)
		floats.AddScaled(s.RawVector().Data, -r.Alpha, w)
		next := mat.Dot(s, s)
		if math.Sqrt(next) <= stop {
			return w, nil
		}
		dir.AddScaledVec(s, next/gamma, dir)
		gamma = next
	}

	r.Warnings.Warn(errors.NewConvergenceWarning("Ridge(lsqr)", maxIter,
		fmt.Sprintf("gradient norm did not fall below tol=%g", tol)))
	r.NIter = maxIter
	return w, nil
}

// Predict は入力データに対する予測を行う
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	_, c := X.Dims()
	if err := r.CheckPredictInput("Ridge", c); err != nil {
		return nil, err
	}
	return r.predict(X), nil
}

// GetParams はグリッドサーチ対象のハイパーパラメータを返す
func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         r.Alpha,
		"solver":        r.Solver,
		"max_iter":      r.MaxIter,
		"tol":           r.Tol,
		"fit_intercept": r.FitIntercept,
	}
}

// SetParams はハイパーパラメータを設定する。未知のキーや型の不一致はエラー。
func (r *Ridge) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "alpha":
			r.Alpha, ok = toFloat(value)
		case "solver":
			r.Solver, ok = value.(string)
		case "max_iter":
			var f float64
			f, ok = toFloat(value)
			r.MaxIter = int(f)
		case "tol":
			r.Tol, ok = toFloat(value)
		case "fit_intercept":
			r.FitIntercept, ok = value.(bool)
		default:
			return errors.NewValidationError(key, "unknown Ridge parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "invalid type", value)
		}
	}
	return nil
}

// SetWarnFunc implements model.WarningEmitter.
func (r *Ridge) SetWarnFunc(f errors.WarnFunc) { r.Warnings = f }

func (r *Ridge) String() string {
	return fmt.Sprintf("Ridge(alpha=%g, solver=%s)", r.Alpha, r.Solver)
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
