package linear

import (
	"encoding/gob"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/core/model"
)

func init() {
	gob.Register(&LinearRegression{})
}

// LinearRegression は最小二乗法による線形回帰モデル。
// 特異値分解で最小ノルム解を求めるので、one-hot 列のような
// 多重共線性のある特徴量でも学習できる。
type LinearRegression struct {
	model.BaseEstimator
	Coefficients

	// Rank は中心化した X の数値的ランク
	Rank int
	// Singular は中心化した X の特異値（降順）
	Singular []float64
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Fit はモデルを訓練データで学習させる
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	const op = "LinearRegression.Fit"
	n, p, err := checkFitInput(op, X, y)
	if err != nil {
		return err
	}

	Xc, yc, xMean, yMean := center(X, y, true)
	s, U, V, err := thinSVD(op, Xc)
	if err != nil {
		return err
	}

	// LAPACK gelsd と同じ基準で小さな特異値を切り捨てる
	cutoff := 0.0
	if len(s) > 0 {
		cutoff = s[0] * float64(max(n, p)) * eps
	}
	rank := 0
	w := solveSpectral(s, U, V, yc, func(sv float64) float64 {
		if sv <= cutoff {
			return 0
		}
		rank++
		return 1 / sv
	})

	lr.Rank = rank
	lr.Singular = s
	lr.setFromCentered(w, xMean, yMean)
	lr.SetFitted(p)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	_, c := X.Dims()
	if err := lr.CheckPredictInput("LinearRegression", c); err != nil {
		return nil, err
	}
	return lr.predict(X), nil
}

// GetParams はハイパーパラメータを返す（LinearRegression にはない）
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{"fit_intercept": true}
}

func (lr *LinearRegression) String() string {
	return "LinearRegression()"
}

var eps = math.Nextafter(1, 2) - 1
