// Package metrics provides the regression scores used to rank models.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

// MSE は平均二乗誤差 (1/n)·Σ(y - ŷ)²
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	return meanResidual("MSE", yTrue, yPred, func(d float64) float64 { return d * d })
}

// RMSE は MSE の平方根。目的変数と同じ単位（点数）で読める。
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差 (1/n)·Σ|y - ŷ|
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	return meanResidual("MAE", yTrue, yPred, math.Abs)
}

func meanResidual(op string, yTrue, yPred *mat.VecDense, loss func(float64) float64) (float64, error) {
	n, err := checkPair(op, yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += loss(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する。
// yTrue の分散が 0 の場合は予測が完全なら 1、そうでなければ 0 を返し、
// UndefinedMetricWarning を warn に渡す。
func R2Score(yTrue, yPred *mat.VecDense, warn errors.WarnFunc) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	mean := mat.Sum(yTrue) / float64(n)
	var tss, rss float64
	for i := 0; i < n; i++ {
		y := yTrue.AtVec(i)
		tss += (y - mean) * (y - mean)
		rss += (y - yPred.AtVec(i)) * (y - yPred.AtVec(i))
	}

	if tss == 0 {
		score := 0.0
		if rss == 0 {
			score = 1
		}
		warn.Warn(errors.NewUndefinedMetricWarning("r2_score", "yTrue has zero variance", score))
		return score, nil
	}

	return 1 - rss/tss, nil
}

// Regression is the score card of one model on one data set.
type Regression struct {
	MAE  float64
	RMSE float64
	R2   float64
}

func (r Regression) String() string {
	return fmt.Sprintf("MAE=%.4f RMSE=%.4f R2=%.4f", r.MAE, r.RMSE, r.R2)
}

// Evaluate scores n×1 predictions against n×1 targets.
func Evaluate(yTrue, yPred mat.Matrix, warn errors.WarnFunc) (Regression, error) {
	t, p, err := columnPair("Evaluate", yTrue, yPred)
	if err != nil {
		return Regression{}, err
	}
	var r Regression
	if r.MAE, err = MAE(t, p); err != nil {
		return Regression{}, err
	}
	if r.RMSE, err = RMSE(t, p); err != nil {
		return Regression{}, err
	}
	if r.R2, err = R2Score(t, p, warn); err != nil {
		return Regression{}, err
	}
	return r, nil
}

// MSEMatrix は行列形式（n×1）の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// R2ScoreMatrix は行列形式（n×1）の入力に対してR²を計算する
func R2ScoreMatrix(yTrue, yPred mat.Matrix, warn errors.WarnFunc) (float64, error) {
	t, p, err := columnPair("R2ScoreMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return R2Score(t, p, warn)
}

// R2Scorer は warn を束縛した R2ScoreMatrix。GridSearchCV の Scoring に使う。
func R2Scorer(warn errors.WarnFunc) func(yTrue, yPred mat.Matrix) (float64, error) {
	return func(yTrue, yPred mat.Matrix) (float64, error) {
		return R2ScoreMatrix(yTrue, yPred, warn)
	}
}

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func columnPair(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	if rTrue != rPred {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	return mat.NewVecDense(rTrue, mat.Col(nil, 0, yTrue)), mat.NewVecDense(rPred, mat.Col(nil, 0, yPred)), nil
}
