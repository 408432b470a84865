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
	gob.Register(&Lasso{})
}

// Lasso は L1 正則化付きの線形回帰。座標降下法で
//
//	(1 / (2 * n)) * ||y - Xw||² + alpha * ||w||₁
//
// を最小化し、双対ギャップで収束を判定する。
type Lasso struct {
	model.BaseEstimator
	Coefficients

	Alpha        float64
	MaxIter      int
	Tol          float64
	FitIntercept bool

	// NIter は実際に行った座標降下の反復回数
	NIter int
	// DualGap は最終反復での双対ギャップ
	DualGap float64

	Warnings errors.WarnFunc
}

// NewLasso は新しい Lasso モデルを作成する
func NewLasso(opts ...Option) *Lasso {
	o := applyOptions(opts)
	return &Lasso{
		Alpha:        o.alpha,
		MaxIter:      o.maxIter,
		Tol:          o.tol,
		FitIntercept: o.fitIntercept,
	}
}

// Fit はモデルを訓練データで学習させる
func (l *Lasso) Fit(X, y mat.Matrix) error {
	const op = "Lasso.Fit"
	if l.Alpha < 0 || math.IsNaN(l.Alpha) {
		return errors.NewValidationError("alpha", "must be non-negative", l.Alpha)
	}
	if l.MaxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", l.MaxIter)
	}
	n, p, err := checkFitInput(op, X, y)
	if err != nil {
		return err
	}

	Xc, yc, xMean, yMean := center(X, y, l.FitIntercept)
	cols := make([][]float64, p)
	norms := make([]float64, p)
	for j := range cols {
		cols[j] = mat.Col(nil, j, Xc)
		norms[j] = floats.Dot(cols[j], cols[j])
	}

	w := make([]float64, p)
	resid := append([]float64(nil), yc...)
	penalty := l.Alpha * float64(n)
	tol := l.Tol * floats.Dot(yc, yc)

	converged := false
	l.DualGap = math.Inf(1)
	for l.NIter = 1; l.NIter <= l.MaxIter; l.NIter++ {
		wMax, dwMax := 0.0, 0.0
		for j := 0; j < p; j++ {
			if norms[j] == 0 {
				continue
			}
			old := w[j]
			if old != 0 {
				floats.AddScaled(resid, old, cols[j])
			}
			rho := floats.Dot(cols[j], resid)
			w[j] = softThreshold(rho, penalty) / norms[j]
			if w[j] != 0 {
				floats.AddScaled(resid, -w[j], cols[j])
			}
			dwMax = math.Max(dwMax, math.Abs(w[j]-old))
			wMax = math.Max(wMax, math.Abs(w[j]))
		}

		if wMax == 0 || dwMax/wMax < l.Tol || l.NIter == l.MaxIter {
			l.DualGap = dualityGap(cols, resid, yc, w, penalty)
			if l.DualGap <= tol {
				converged = true
				break
			}
		}
	}
	if !converged {
		l.NIter = l.MaxIter
		l.Warnings.Warn(errors.NewConvergenceWarning("Lasso", l.MaxIter,
			fmt.Sprintf("duality gap %.3g above tolerance %.3g", l.DualGap, tol)))
	}

	if err := errors.CheckVector(op, w, l.NIter); err != nil {
		return err
	}
	l.setFromCentered(w, xMean, yMean)
	l.SetFitted(p)
	return nil
}

func softThreshold(x, lambda float64) float64 {
	switch {
	case x > lambda:
		return x - lambda
	case x < -lambda:
		return x + lambda
	default:
		return 0
	}
}

// dualityGap は Lasso の双対ギャップを計算する
func dualityGap(cols [][]float64, resid, y, w []float64, penalty float64) float64 {
	dualNorm := 0.0
	for _, c := range cols {
		dualNorm = math.Max(dualNorm, math.Abs(floats.Dot(c, resid)))
	}
	rNorm2 := floats.Dot(resid, resid)

	scale := 1.0
	gap := rNorm2
	if dualNorm > penalty {
		scale = penalty / dualNorm
		gap = 0.5 * (rNorm2 + rNorm2*scale*scale)
	}
	l1 := 0.0
	for _, v := range w {
		l1 += math.Abs(v)
	}
	return gap + penalty*l1 - scale*floats.Dot(resid, y)
}

// Predict は入力データに対する予測を行う
func (l *Lasso) Predict(X mat.Matrix) (mat.Matrix, error) {
	_, c := X.Dims()
	if err := l.CheckPredictInput("Lasso", c); err != nil {
		return nil, err
	}
	return l.predict(X), nil
}

// GetParams はハイパーパラメータを返す
func (l *Lasso) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         l.Alpha,
		"max_iter":      l.MaxIter,
		"tol":           l.Tol,
		"fit_intercept": l.FitIntercept,
	}
}

// SetWarnFunc implements model.WarningEmitter.
func (l *Lasso) SetWarnFunc(f errors.WarnFunc) { l.Warnings = f }

func (l *Lasso) String() string {
	return fmt.Sprintf("Lasso(alpha=%g)", l.Alpha)
}
