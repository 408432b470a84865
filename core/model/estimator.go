package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlpipe/pkg/errors"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う（n×1 の行列）
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor は評価ロースターに並ぶ回帰モデルのインターフェース
type Regressor interface {
	Fitter
	Predictor
	IsFitted() bool
}

// WarningEmitter は学習中の警告（収束しなかった等）の出力先を受け取れる推定器
type WarningEmitter interface {
	SetWarnFunc(f errors.WarnFunc)
}

// LinearModel は線形モデルのインターフェース
type LinearModel interface {
	// Weights は学習された重み（係数）を返す
	Weights() []float64
	// Intercept は学習された切片を返す
	Intercept() float64
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// Tunable is a Regressor whose hyperparameters can be searched over.
type Tunable interface {
	Regressor
	ParameterGetter
	ParameterSetter
}
