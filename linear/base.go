package linear

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

// Coefficients は学習済みの線形モデルのパラメータ。
// 埋め込むことで model.LinearModel を満たす。
type Coefficients struct {
	Coef []float64
	Bias float64
}

// Weights は学習された重み（係数）のコピーを返す
func (c *Coefficients) Weights() []float64 {
	return append([]float64(nil), c.Coef...)
}

// Intercept は学習された切片を返す
func (c *Coefficients) Intercept() float64 {
	return c.Bias
}

// predict は y = X * coef + bias を計算する
func (c *Coefficients) predict(X mat.Matrix) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	out.Mul(X, mat.NewVecDense(len(c.Coef), c.Coef))
	for i := 0; i < r; i++ {
		out.Set(i, 0, out.At(i, 0)+c.Bias)
	}
	return out
}

// setFromCentered は中心化したデータで得た重みから切片を復元する
func (c *Coefficients) setFromCentered(w, xMean []float64, yMean float64) {
	c.Coef = w
	c.Bias = yMean - floats.Dot(xMean, w)
}

// checkFitInput は学習データの形状を検証する
func checkFitInput(op string, X, y mat.Matrix) (n, p int, err error) {
	n, p = X.Dims()
	if n == 0 || p == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	ry, cy := y.Dims()
	if ry != n {
		return 0, 0, errors.NewDimensionError(op, n, ry, 0)
	}
	if cy != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a column vector")
	}
	if err := errors.CheckMatrix(op, X, n, p, 0); err != nil {
		return 0, 0, err
	}
	return n, p, nil
}

// center は X と y を列平均で中心化する。fitIntercept が false なら平均は 0 のまま。
func center(X, y mat.Matrix, fitIntercept bool) (Xc *mat.Dense, yc []float64, xMean []float64, yMean float64) {
	n, p := X.Dims()
	Xc = mat.DenseCopyOf(X)
	yc = mat.Col(nil, 0, y)
	xMean = make([]float64, p)
	if !fitIntercept {
		return Xc, yc, xMean, 0
	}

	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, Xc)
		m := floats.Sum(col) / float64(n)
		xMean[j] = m
		floats.AddConst(-m, col)
		Xc.SetCol(j, col)
	}
	yMean = floats.Sum(yc) / float64(n)
	floats.AddConst(-yMean, yc)
	return Xc, yc, xMean, yMean
}

// thinSVD は X の薄い特異値分解を返す
func thinSVD(op string, X mat.Matrix) (s []float64, U, V *mat.Dense, err error) {
	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDThin); !ok {
		return nil, nil, nil, errors.NewModelError(op, "SVD did not converge", errors.ErrSingularMatrix)
	}
	U, V = new(mat.Dense), new(mat.Dense)
	svd.UTo(U)
	svd.VTo(V)
	return svd.Values(nil), U, V, nil
}

// solveSpectral は w = V diag(f(s)) Uᵀ y を計算する。f が 0 を返す成分は捨てる。
func solveSpectral(s []float64, U, V *mat.Dense, y []float64, f func(sv float64) float64) []float64 {
	uty := mat.NewVecDense(len(s), nil)
	uty.MulVec(U.T(), mat.NewVecDense(len(y), y))
	for i, sv := range s {
		uty.SetVec(i, uty.AtVec(i)*f(sv))
	}
	p, _ := V.Dims()
	w := mat.NewVecDense(p, nil)
	w.MulVec(V, uty)
	return w.RawVector().Data
}
